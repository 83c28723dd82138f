package sampler

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/agentop/agentop/internal/snapshot"
)

// Logs samples the runtime's recent log lines and classifies each by
// severity. A bracketed [LEVEL] tag takes precedence; otherwise a level
// token after a leading timestamp is recognized. Lines matching neither are
// classified LevelNone, the lowest-filtering tier, and are never dropped by
// classification itself.
type Logs struct {
	argv     []string
	timeout  time.Duration
	maxLines int
}

// NewLogs creates a log sampler bounded to maxLines retained lines.
func NewLogs(argv []string, timeout time.Duration, maxLines int) *Logs {
	if maxLines <= 0 {
		maxLines = 200
	}
	return &Logs{argv: argv, timeout: timeout, maxLines: maxLines}
}

// Sample fetches and classifies recent lines, most recent last. On failure
// the reading is unavailable; the engine retains the previous tick's lines.
func (l *Logs) Sample(ctx context.Context) snapshot.LogsReading {
	out, err := runArgv(ctx, l.timeout, l.argv)
	if err != nil {
		log.Debug("runtime logs command failed: %v", err)
		return snapshot.LogsReading{Status: snapshot.SourceUnavailable}
	}

	raw := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(raw) == 1 && raw[0] == "" {
		raw = nil
	}
	if len(raw) > l.maxLines {
		raw = raw[len(raw)-l.maxLines:]
	}

	lines := make([]snapshot.LogLine, 0, len(raw))
	for _, line := range raw {
		lines = append(lines, snapshot.LogLine{Raw: line, Level: Classify(line)})
	}

	return snapshot.LogsReading{Status: snapshot.SourceOK, Lines: lines}
}

var (
	bracketTagRe = regexp.MustCompile(`^\s*\[([A-Za-z]+)\]`)
	// ISO-ish timestamp prefix followed by a level token, e.g.
	// "2026-08-30 12:01:02 WARN agent restarting"
	timestampLevelRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}:\d{2}(?:[.,]\d+)?(?:Z|[+-]\d{2}:?\d{2})?\s+([A-Za-z]+)\b`)
)

// Classify maps a raw log line to a severity.
func Classify(line string) snapshot.LogLevel {
	if m := bracketTagRe.FindStringSubmatch(line); len(m) > 1 {
		if lvl, ok := levelFromToken(m[1]); ok {
			return lvl
		}
	}
	if m := timestampLevelRe.FindStringSubmatch(line); len(m) > 1 {
		if lvl, ok := levelFromToken(m[1]); ok {
			return lvl
		}
	}
	return snapshot.LevelNone
}

func levelFromToken(token string) (snapshot.LogLevel, bool) {
	switch strings.ToUpper(token) {
	case "ERROR", "ERR", "FATAL":
		return snapshot.LevelError, true
	case "WARN", "WARNING":
		return snapshot.LevelWarn, true
	case "INFO":
		return snapshot.LevelInfo, true
	case "DEBUG", "TRACE":
		return snapshot.LevelDebug, true
	}
	return snapshot.LevelNone, false
}

// Filter returns the lines retained by the given minimum-severity filter.
// "all" keeps everything. "debug" is an exact match: only debug-level lines,
// a deliberate asymmetry for drilling into noisy debug output. The other
// filters keep lines at or above their severity.
func Filter(lines []snapshot.LogLine, filter string) []snapshot.LogLine {
	var min snapshot.LogLevel
	switch filter {
	case "error":
		min = snapshot.LevelError
	case "warn":
		min = snapshot.LevelWarn
	case "info":
		min = snapshot.LevelInfo
	case "debug":
		out := make([]snapshot.LogLine, 0, len(lines))
		for _, l := range lines {
			if l.Level == snapshot.LevelDebug {
				out = append(out, l)
			}
		}
		return out
	default: // "all"
		return lines
	}

	out := make([]snapshot.LogLine, 0, len(lines))
	for _, l := range lines {
		if l.Level >= min {
			out = append(out, l)
		}
	}
	return out
}

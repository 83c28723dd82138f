// Package snapshot defines the committed data model for one refresh tick.
//
// Every reading carries an explicit SourceStatus so the dashboard can tell
// "this source failed" apart from "this source is turned off" and never
// presents a stale value as fresh. The one deliberate exception is token
// throughput, which carries its last known value forward tagged inactive
// (see the rate package).
package snapshot

import "time"

// SourceStatus describes why a reading's fields are or are not populated.
type SourceStatus int

const (
	// SourceOK means the sampler produced a (possibly partial) reading.
	SourceOK SourceStatus = iota
	// SourceUnavailable means the sampler ran and failed; fields are zero.
	SourceUnavailable
	// SourceDisabled means the sampler was skipped via settings.
	SourceDisabled
)

// String returns a human-readable status label.
func (s SourceStatus) String() string {
	switch s {
	case SourceOK:
		return "ok"
	case SourceUnavailable:
		return "unavailable"
	case SourceDisabled:
		return "disabled"
	default:
		return "unknown"
	}
}

// CPUReading holds overall and per-core CPU load for one tick.
type CPUReading struct {
	Status  SourceStatus
	Percent float64
	PerCore []float64
	Cores   int
	Load1   float64
	Load5   float64
	Load15  float64
}

// MemoryReading holds memory usage with the cached split reported separately.
// UsedPercent reflects the configured cache policy at sample time.
type MemoryReading struct {
	Status      SourceStatus
	UsedBytes   uint64 // excludes page cache
	CachedBytes uint64
	TotalBytes  uint64
	UsedPercent float64
}

// GPUReading holds a best-effort GPU reading. Model may be known while
// Utilization is not; a partial reading is still a reading.
type GPUReading struct {
	Status       SourceStatus
	Model        string
	Utilization  *float64 // percent, nil when unknown
	FrequencyMHz *float64 // nil when unknown
	Source       string   // which fallback tier produced the reading
}

// DiskReading holds usage for a single mount.
type DiskReading struct {
	Status      SourceStatus
	Mount       string
	UsedBytes   uint64
	TotalBytes  uint64
	UsedPercent float64
}

// NetworkReading holds cumulative counters for one interface plus derived
// rates. HasRate is false on the very first tick, when there is no previous
// counter to diff against.
type NetworkReading struct {
	Status    SourceStatus
	Interface string
	RxBytes   uint64
	TxBytes   uint64
	RxPerSec  float64
	TxPerSec  float64
	HasRate   bool
}

// Session is one tracked unit of work reported by the agent runtime.
// The dashboard only reads and diffs it; absence in a tick means deletion.
type Session struct {
	Key           string
	Name          string
	Model         string
	Channel       string
	AgentID       string
	TotalTokens   int64
	ContextWindow int64
	UpdatedAt     time.Time
}

// Agent is one configured automation unit of the runtime. Its running state
// is derived from the freshest matching session, never stored.
type Agent struct {
	ID       string
	Enabled  bool
	Schedule string
}

// Running reports whether the agent has a session updated within staleAfter
// of now.
func (a Agent) Running(sessions []Session, now time.Time, staleAfter time.Duration) bool {
	for _, s := range sessions {
		if s.AgentID != a.ID {
			continue
		}
		if !s.UpdatedAt.IsZero() && now.Sub(s.UpdatedAt) <= staleAfter {
			return true
		}
	}
	return false
}

// RuntimeReading holds the agent runtime's reported state. On source failure
// Reachable is false and the lists are empty, never stale.
type RuntimeReading struct {
	Status    SourceStatus
	Reachable bool
	Sessions  []Session
	Agents    []Agent
}

// LogLevel classifies a raw runtime log line.
type LogLevel int

const (
	// LevelNone is the lowest-filtering tier: lines matching no known
	// pattern stay visible unless the filter is exact-debug.
	LevelNone LogLevel = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the level tag in lowercase.
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "none"
	}
}

// LogLine is one classified raw log line from the runtime feed.
type LogLine struct {
	Raw   string
	Level LogLevel
}

// LogsReading holds the bounded recent-lines buffer. On source failure the
// engine keeps the previous tick's lines rather than flashing an error.
type LogsReading struct {
	Status SourceStatus
	Lines  []LogLine
}

// VersionReading holds the dashboard and runtime version strings plus the
// remote latest-release lookup. Latest is empty when the lookup failed.
type VersionReading struct {
	Status          SourceStatus
	Dashboard       string
	Runtime         string
	Latest          string
	UpdateAvailable bool
}

// Throughput is a token rate carried per session key. On a tick with no
// positive token delta the value is retained and Active flips false, so the
// display does not flicker to zero between bursts.
type Throughput struct {
	PerSecond float64
	Active    bool
}

// Snapshot is one tick's fully merged, committed data set.
type Snapshot struct {
	Taken   time.Time
	Elapsed time.Duration

	CPU      CPUReading
	Memory   MemoryReading
	GPU      GPUReading
	Disk     DiskReading
	Network  NetworkReading
	Runtime  RuntimeReading
	Logs     LogsReading
	Versions VersionReading

	TokenRates map[string]Throughput
}

// FindSession returns the session with the given key, if present.
func FindSession(sessions []Session, key string) (Session, bool) {
	for _, s := range sessions {
		if s.Key == key {
			return s, true
		}
	}
	return Session{}, false
}

// Clone returns a deep copy of the snapshot. Committing a clone decouples
// future renders from mutation of the buffers the next tick builds in.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	out := *s

	if s.CPU.PerCore != nil {
		out.CPU.PerCore = append([]float64(nil), s.CPU.PerCore...)
	}
	if s.GPU.Utilization != nil {
		v := *s.GPU.Utilization
		out.GPU.Utilization = &v
	}
	if s.GPU.FrequencyMHz != nil {
		v := *s.GPU.FrequencyMHz
		out.GPU.FrequencyMHz = &v
	}
	if s.Runtime.Sessions != nil {
		out.Runtime.Sessions = append([]Session(nil), s.Runtime.Sessions...)
	}
	if s.Runtime.Agents != nil {
		out.Runtime.Agents = append([]Agent(nil), s.Runtime.Agents...)
	}
	if s.Logs.Lines != nil {
		out.Logs.Lines = append([]LogLine(nil), s.Logs.Lines...)
	}
	if s.TokenRates != nil {
		out.TokenRates = make(map[string]Throughput, len(s.TokenRates))
		for k, v := range s.TokenRates {
			out.TokenRates[k] = v
		}
	}
	return &out
}

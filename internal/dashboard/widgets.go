package dashboard

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/agentop/agentop/internal/config"
	"github.com/agentop/agentop/internal/sampler"
	"github.com/agentop/agentop/internal/snapshot"
)

// renderContext is everything one widget needs to draw itself.
type renderContext struct {
	snap     *snapshot.Snapshot
	settings config.Settings
	width    int

	cpuHistory []float64
	memHistory []float64
	rxHistory  []float64
	txHistory  []float64

	now time.Time
}

// widget maps one snapshot field to its render function. The view iterates
// this table uniformly; adding a metric means adding one entry.
type widget struct {
	name    string
	enabled func(config.Settings) bool
	render  func(renderContext) string
}

var widgets = []widget{
	{"cpu", func(s config.Settings) bool { return s.Show.CPU }, renderCPU},
	{"memory", func(s config.Settings) bool { return s.Show.Memory }, renderMemory},
	{"gpu", func(s config.Settings) bool { return s.Show.GPU }, renderGPU},
	{"disk", func(s config.Settings) bool { return s.Show.Disk }, renderDisk},
	{"network", func(s config.Settings) bool { return s.Show.Network }, renderNetwork},
	{"sessions", func(s config.Settings) bool { return s.Show.Sessions }, renderSessions},
	{"agents", func(s config.Settings) bool { return s.Show.Agents }, renderAgents},
	{"logs", func(s config.Settings) bool { return s.Show.Logs }, renderLogs},
}

// innerWidth is the drawable width inside a panel's border and padding.
func (c renderContext) innerWidth() int {
	w := c.width - 4
	if w < 20 {
		w = 20
	}
	return w
}

func panel(title, body string) string {
	return PanelStyle.Render(TitleStyle.Render(title) + "\n" + body)
}

func unavailable(title string) string {
	return panel(title, MutedStyle.Render("unavailable"))
}

func renderCPU(c renderContext) string {
	r := c.snap.CPU
	if r.Status != snapshot.SourceOK {
		return unavailable("CPU")
	}

	w := c.innerWidth()
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n",
		GradientBar(w-8, r.Percent),
		ValueStyle.Render(fmt.Sprintf("%5.1f%%", r.Percent)))
	b.WriteString(Sparkline(c.cpuHistory, w))
	if r.Load1 > 0 || r.Load5 > 0 {
		b.WriteString("\n" + LabelStyle.Render(
			fmt.Sprintf("load %.2f %.2f %.2f, %d cores", r.Load1, r.Load5, r.Load15, r.Cores)))
	}
	return panel("CPU", b.String())
}

func renderMemory(c renderContext) string {
	r := c.snap.Memory
	if r.Status != snapshot.SourceOK {
		return unavailable("Memory")
	}

	w := c.innerWidth()
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n",
		GradientBar(w-8, r.UsedPercent),
		ValueStyle.Render(fmt.Sprintf("%5.1f%%", r.UsedPercent)))
	b.WriteString(Sparkline(c.memHistory, w))
	b.WriteString("\n" + LabelStyle.Render(fmt.Sprintf("%s used, %s cached, %s total",
		FormatBytes(r.UsedBytes), FormatBytes(r.CachedBytes), FormatBytes(r.TotalBytes))))
	return panel("Memory", b.String())
}

func renderGPU(c renderContext) string {
	r := c.snap.GPU
	if r.Status != snapshot.SourceOK {
		return unavailable("GPU")
	}

	var parts []string
	if r.Model != "" {
		parts = append(parts, ValueStyle.Render(r.Model))
	}
	if r.Utilization != nil {
		parts = append(parts, fmt.Sprintf("%s %s",
			GradientBar(12, *r.Utilization),
			ValueStyle.Render(fmt.Sprintf("%.0f%%", *r.Utilization))))
	}
	if r.FrequencyMHz != nil {
		parts = append(parts, LabelStyle.Render(fmt.Sprintf("%.0f MHz", *r.FrequencyMHz)))
	}
	if len(parts) == 0 {
		return unavailable("GPU")
	}
	return panel("GPU", strings.Join(parts, "  "))
}

func renderDisk(c renderContext) string {
	r := c.snap.Disk
	if r.Status != snapshot.SourceOK {
		return unavailable("Disk")
	}

	w := c.innerWidth()
	body := fmt.Sprintf("%s %s\n%s",
		GradientBar(w-8, r.UsedPercent),
		ValueStyle.Render(fmt.Sprintf("%5.1f%%", r.UsedPercent)),
		LabelStyle.Render(fmt.Sprintf("%s of %s on %s",
			FormatBytes(r.UsedBytes), FormatBytes(r.TotalBytes), r.Mount)))
	return panel("Disk", body)
}

func renderNetwork(c renderContext) string {
	r := c.snap.Network
	if r.Status != snapshot.SourceOK {
		return unavailable("Network")
	}

	w := c.innerWidth()
	var b strings.Builder
	if r.HasRate {
		fmt.Fprintf(&b, "%s %s  %s %s\n",
			LabelStyle.Render("rx"), ValueStyle.Render(FormatBitsPerSec(r.RxPerSec)),
			LabelStyle.Render("tx"), ValueStyle.Render(FormatBitsPerSec(r.TxPerSec)))
	} else {
		b.WriteString(MutedStyle.Render("measuring") + "\n")
	}
	half := (w - 1) / 2
	b.WriteString(RateSparkline(c.rxHistory, half) + " " + RateSparkline(c.txHistory, half))
	b.WriteString("\n" + LabelStyle.Render(r.Interface))
	return panel("Network", b.String())
}

func renderSessions(c renderContext) string {
	r := c.snap.Runtime
	if r.Status == snapshot.SourceUnavailable || !r.Reachable {
		return panel("Sessions", ErrStyle.Render("runtime unreachable"))
	}
	if len(r.Sessions) == 0 {
		return panel("Sessions", MutedStyle.Render("none active"))
	}

	sessions := append([]snapshot.Session(nil), r.Sessions...)
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].UpdatedAt.After(sessions[j].UpdatedAt)
	})

	var lines []string
	for _, s := range sessions {
		name := s.Name
		if name == "" {
			name = s.Key
		}
		line := ValueStyle.Render(name)
		if s.Model != "" {
			line += LabelStyle.Render(" " + s.Model)
		}
		line += LabelStyle.Render(" " + tokenUsage(s))
		if tp, ok := c.snap.TokenRates[s.Key]; ok {
			rate := FormatTokenRate(tp.PerSecond)
			if tp.Active {
				line += " " + OKStyle.Render(rate)
			} else {
				line += " " + MutedStyle.Render(rate+" idle")
			}
		}
		lines = append(lines, line)
	}
	return panel("Sessions", strings.Join(lines, "\n"))
}

// tokenUsage shows cumulative tokens against the context window when known.
func tokenUsage(s snapshot.Session) string {
	if s.ContextWindow > 0 {
		pct := float64(s.TotalTokens) / float64(s.ContextWindow) * 100
		return fmt.Sprintf("%s/%s (%.0f%%)",
			FormatCount(s.TotalTokens), FormatCount(s.ContextWindow), pct)
	}
	return FormatCount(s.TotalTokens) + " tok"
}

func renderAgents(c renderContext) string {
	r := c.snap.Runtime
	if r.Status == snapshot.SourceUnavailable || !r.Reachable {
		return panel("Agents", ErrStyle.Render("runtime unreachable"))
	}
	if len(r.Agents) == 0 {
		return panel("Agents", MutedStyle.Render("none configured"))
	}

	stale := c.settings.Runtime.SessionStale
	var lines []string
	for _, a := range r.Agents {
		var state string
		switch {
		case !a.Enabled:
			state = MutedStyle.Render("disabled")
		case a.Running(r.Sessions, c.now, stale):
			state = OKStyle.Render("running")
		default:
			state = LabelStyle.Render("idle")
		}
		line := ValueStyle.Render(a.ID) + " " + state
		if a.Schedule != "" {
			line += MutedStyle.Render(" " + a.Schedule)
		}
		lines = append(lines, line)
	}
	return panel("Agents", strings.Join(lines, "\n"))
}

func renderLogs(c renderContext) string {
	r := c.snap.Logs
	if r.Status != snapshot.SourceOK && len(r.Lines) == 0 {
		return unavailable("Logs")
	}

	filtered := sampler.Filter(r.Lines, c.settings.LogFilter)
	if len(filtered) == 0 {
		return panel("Logs ("+c.settings.LogFilter+")", MutedStyle.Render("no matching lines"))
	}

	w := c.innerWidth()
	var lines []string
	for _, l := range filtered {
		raw := l.Raw
		// Truncate by runes so a multi-byte character is never split.
		if r := []rune(raw); len(r) > w {
			raw = string(r[:w])
		}
		lines = append(lines, LevelStyle(l.Level.String()).Render(raw))
	}
	title := "Logs (" + c.settings.LogFilter + ")"
	if r.Status == snapshot.SourceUnavailable {
		title += " " + ErrStyle.Render("stale")
	}
	return panel(title, strings.Join(lines, "\n"))
}

package dashboard

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/agentop/agentop/internal/config"
	"github.com/agentop/agentop/internal/snapshot"
)

// renderDashboard renders the complete live view.
func (m Model) renderDashboard() string {
	var b strings.Builder

	b.WriteString(m.renderHeader())
	b.WriteString("\n")

	if m.bodyReady {
		b.WriteString(m.body.View())
	} else {
		b.WriteString(m.renderWidgets())
	}

	b.WriteString("\n")
	b.WriteString(m.renderFooter())

	return b.String()
}

// renderWidgets iterates the widget table over the current snapshot.
func (m Model) renderWidgets() string {
	if m.snap == nil {
		return MutedStyle.Render("collecting...")
	}

	cpu, mem, rx, tx := m.engine.History()
	ctx := renderContext{
		snap:       m.snap,
		settings:   m.settings,
		width:      m.width,
		cpuHistory: cpu,
		memHistory: mem,
		rxHistory:  rx,
		txHistory:  tx,
		now:        time.Now(),
	}

	var panels []string
	for _, w := range widgets {
		if !w.enabled(m.settings) {
			continue
		}
		panels = append(panels, w.render(ctx))
	}
	return lipgloss.JoinVertical(lipgloss.Left, panels...)
}

// renderHeader renders the title bar with refresh and version state.
func (m Model) renderHeader() string {
	title := lipgloss.NewStyle().Foreground(ColorAccent).Bold(true).Render("agentop")

	var parts []string
	parts = append(parts, fmt.Sprintf("every %s", m.settings.RefreshInterval))

	if !m.lastUpdate.IsZero() {
		secs := int(time.Since(m.lastUpdate).Seconds())
		switch secs {
		case 0:
			parts = append(parts, "updated just now")
		case 1:
			parts = append(parts, "updated 1s ago")
		default:
			parts = append(parts, fmt.Sprintf("updated %ds ago", secs))
		}
	}

	line := title + LabelStyle.Render(" | "+strings.Join(parts, " | "))

	if m.paused {
		line += " " + PausedStyle.Render("PAUSED")
	}

	if m.snap != nil && m.snap.Versions.UpdateAvailable {
		line += " " + WarnStyle.Render(
			fmt.Sprintf("update available: %s", m.snap.Versions.Latest))
	}

	return HeaderStyle.Render(line)
}

// renderFooter renders the keyboard hints.
func (m Model) renderFooter() string {
	hints := []string{
		"q quit",
		"r refresh",
		"space pause",
		"f filter: " + m.settings.LogFilter,
		"? help",
	}
	return FooterStyle.Render(strings.Join(hints, " | "))
}

// Render writes a one-shot plain rendering of the snapshot, as used by the
// status subcommand. Write errors are swallowed: a vanished output stream
// must not take the process down.
func Render(w io.Writer, snap *snapshot.Snapshot, settings config.Settings) {
	if snap == nil {
		fmt.Fprintln(w, "no data")
		return
	}

	ctx := renderContext{
		snap:     snap,
		settings: settings,
		width:    80,
		now:      time.Now(),
	}

	for _, widget := range widgets {
		if !widget.enabled(settings) {
			continue
		}
		fmt.Fprintln(w, widget.render(ctx))
	}
}

package dashboard

import "github.com/charmbracelet/lipgloss"

// Dashboard color palette.
const (
	ColorBorder = lipgloss.Color("#2A3A4A")

	// Severity colors for gauges and sparklines.
	ColorHealthy  = lipgloss.Color("#2ECC71")
	ColorWarning  = lipgloss.Color("#F1C40F")
	ColorCritical = lipgloss.Color("#E74C3C")

	ColorTextPrimary   = lipgloss.Color("#ECF0F1")
	ColorTextSecondary = lipgloss.Color("#95A5A6")
	ColorTextMuted     = lipgloss.Color("#5D6D7E")

	ColorAccent = lipgloss.Color("#3498DB")
	ColorGraph  = lipgloss.Color("#1ABC9C")
)

// Thresholds for metric severity coloring.
const (
	WarningThreshold  = 70.0
	CriticalThreshold = 90.0
)

var (
	HeaderStyle = lipgloss.NewStyle().
			Foreground(ColorTextPrimary).
			Bold(true).
			Padding(0, 1)

	FooterStyle = lipgloss.NewStyle().
			Foreground(ColorTextMuted).
			Padding(0, 1)

	PanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder).
			Padding(0, 1).
			MarginBottom(1)

	TitleStyle = lipgloss.NewStyle().
			Foreground(ColorAccent).
			Bold(true)

	LabelStyle = lipgloss.NewStyle().
			Foreground(ColorTextSecondary)

	ValueStyle = lipgloss.NewStyle().
			Foreground(ColorTextPrimary)

	MutedStyle = lipgloss.NewStyle().
			Foreground(ColorTextMuted)

	OKStyle = lipgloss.NewStyle().
		Foreground(ColorHealthy)

	WarnStyle = lipgloss.NewStyle().
			Foreground(ColorWarning)

	ErrStyle = lipgloss.NewStyle().
			Foreground(ColorCritical)

	PausedStyle = lipgloss.NewStyle().
			Foreground(ColorWarning).
			Bold(true)
)

// MetricColor maps a percentage to its severity color.
func MetricColor(percent float64) lipgloss.Color {
	switch {
	case percent >= CriticalThreshold:
		return ColorCritical
	case percent >= WarningThreshold:
		return ColorWarning
	default:
		return ColorHealthy
	}
}

// LevelStyle returns the style for a log severity tag.
func LevelStyle(level string) lipgloss.Style {
	switch level {
	case "error":
		return ErrStyle
	case "warn":
		return WarnStyle
	case "debug":
		return MutedStyle
	default:
		return LabelStyle
	}
}

package dashboard

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/agentop/agentop/internal/config"
	"github.com/agentop/agentop/internal/engine"
	"github.com/agentop/agentop/internal/snapshot"
)

// logFilters is the cycle order for the f key.
var logFilters = []string{"all", "debug", "info", "warn", "error"}

// Key bindings as constants for consistency.
const (
	KeyQuit        = "q"
	KeyQuitAlt     = "ctrl+c"
	KeyRefresh     = "r"
	KeyPause       = " "
	KeyCycleFilter = "f"
	KeyScrollUp    = "up"
	KeyScrollDown  = "down"
	KeyToggleHelp  = "?"
	KeyClose       = "esc"
)

// Model is the Bubble Tea model for the dashboard.
type Model struct {
	engine   *engine.Engine
	settings config.Settings

	snap       *snapshot.Snapshot
	lastUpdate time.Time

	width  int
	height int

	paused   bool
	showHelp bool
	quitting bool

	// tickGen invalidates timers scheduled before a pause. A tick from an
	// older generation is dropped instead of rescheduling itself.
	tickGen int

	// Scrollable body for terminals shorter than the rendered widgets.
	body      viewport.Model
	bodyReady bool
}

// tickMsg signals a scheduled refresh. gen ties it to the timer chain that
// scheduled it.
type tickMsg struct {
	gen int
}

// snapshotMsg carries the result of one refresh cycle.
type snapshotMsg struct {
	snap      *snapshot.Snapshot
	committed bool
	time      time.Time
}

// NewModel creates the dashboard model around a running engine.
func NewModel(eng *engine.Engine) Model {
	return Model{
		engine:   eng,
		settings: eng.Settings(),
	}
}

// Init schedules the timer and kicks off the first refresh immediately.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.tickCmd(), m.refreshCmd())
}

// Update handles messages and updates the model state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		handled, cmd := m.handleKey(msg)
		if handled {
			return m, cmd
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		headerHeight := 2
		footerHeight := 2
		bodyHeight := m.height - headerHeight - footerHeight
		if bodyHeight < 1 {
			bodyHeight = 1
		}
		if !m.bodyReady {
			m.body = viewport.New(m.width, bodyHeight)
			m.bodyReady = true
		} else {
			m.body.Width = m.width
			m.body.Height = bodyHeight
		}
		m.syncBody()

	case tickMsg:
		if m.paused || msg.gen != m.tickGen {
			return m, nil
		}
		return m, tea.Batch(m.tickCmd(), m.refreshCmd())

	case snapshotMsg:
		if msg.committed {
			m.snap = msg.snap
			m.lastUpdate = msg.time
			m.syncBody()
		}
	}

	return m, nil
}

// handleKey processes keyboard input. Returns false for keys the viewport
// should see instead.
func (m *Model) handleKey(msg tea.KeyMsg) (bool, tea.Cmd) {
	key := msg.String()

	if key == KeyToggleHelp {
		m.showHelp = !m.showHelp
		return true, nil
	}
	if m.showHelp && key == KeyClose {
		m.showHelp = false
		return true, nil
	}

	switch key {
	case KeyQuit, KeyQuitAlt:
		m.quitting = true
		return true, tea.Quit

	case KeyRefresh:
		// Works while paused: one-shot ticks stay available.
		return true, m.refreshCmd()

	case KeyPause:
		m.paused = !m.paused
		if !m.paused {
			// Resume restarts the timer at a fresh full interval. Bumping
			// the generation retires any timer left over from before the
			// pause so only one chain survives.
			m.tickGen++
			return true, m.tickCmd()
		}
		return true, nil

	case KeyCycleFilter:
		m.settings.LogFilter = nextFilter(m.settings.LogFilter)
		m.engine.SetSettings(m.settings)
		m.syncBody()
		return true, nil

	case KeyScrollUp:
		if m.bodyReady {
			m.body.ScrollUp(1)
		}
		return true, nil

	case KeyScrollDown:
		if m.bodyReady {
			m.body.ScrollDown(1)
		}
		return true, nil
	}

	return false, nil
}

// View renders the dashboard.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.showHelp {
		return m.renderHelpOverlay()
	}
	return m.renderDashboard()
}

// tickCmd schedules the next periodic refresh for the current generation.
func (m Model) tickCmd() tea.Cmd {
	gen := m.tickGen
	return tea.Tick(m.settings.RefreshInterval, func(time.Time) tea.Msg {
		return tickMsg{gen: gen}
	})
}

// refreshCmd runs one refresh cycle off the event loop. Overlap with a tick
// already in flight is resolved inside the engine by skipping.
func (m Model) refreshCmd() tea.Cmd {
	eng := m.engine
	return func() tea.Msg {
		snap, committed := eng.Refresh(context.Background())
		return snapshotMsg{snap: snap, committed: committed, time: time.Now()}
	}
}

// syncBody rebuilds the viewport content from the current snapshot.
func (m *Model) syncBody() {
	if !m.bodyReady {
		return
	}
	m.body.SetContent(m.renderWidgets())
}

// nextFilter cycles to the next log filter setting.
func nextFilter(current string) string {
	for i, f := range logFilters {
		if f == current {
			return logFilters[(i+1)%len(logFilters)]
		}
	}
	return logFilters[0]
}

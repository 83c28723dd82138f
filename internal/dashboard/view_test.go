package dashboard

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentop/agentop/internal/config"
	"github.com/agentop/agentop/internal/engine"
	"github.com/agentop/agentop/internal/snapshot"
)

func testSnapshot() *snapshot.Snapshot {
	util := 55.0
	return &snapshot.Snapshot{
		Taken: time.Now(),
		CPU: snapshot.CPUReading{
			Status: snapshot.SourceOK, Percent: 35.2, Cores: 8,
			Load1: 1.2, Load5: 0.9, Load15: 0.7,
		},
		Memory: snapshot.MemoryReading{
			Status: snapshot.SourceOK, UsedBytes: 8 << 30, CachedBytes: 2 << 30,
			TotalBytes: 16 << 30, UsedPercent: 50,
		},
		GPU: snapshot.GPUReading{
			Status: snapshot.SourceOK, Model: "RTX 4090", Utilization: &util,
		},
		Disk: snapshot.DiskReading{
			Status: snapshot.SourceOK, Mount: "/", UsedBytes: 100 << 30,
			TotalBytes: 500 << 30, UsedPercent: 20,
		},
		Network: snapshot.NetworkReading{
			Status: snapshot.SourceOK, Interface: "eth0",
			RxPerSec: 500, TxPerSec: 100, HasRate: true,
		},
		Runtime: snapshot.RuntimeReading{
			Status: snapshot.SourceOK, Reachable: true,
			Sessions: []snapshot.Session{
				{Key: "s1", Name: "main", Model: "gpt-x", TotalTokens: 1200, ContextWindow: 8000},
			},
			Agents: []snapshot.Agent{{ID: "reporter", Enabled: true}},
		},
		Logs: snapshot.LogsReading{
			Status: snapshot.SourceOK,
			Lines: []snapshot.LogLine{
				{Raw: "[INFO] gateway connected", Level: snapshot.LevelInfo},
				{Raw: "[ERROR] probe timeout", Level: snapshot.LevelError},
			},
		},
		TokenRates: map[string]snapshot.Throughput{
			"s1": {PerSecond: 42, Active: true},
		},
	}
}

func TestRenderPlainWritesAllEnabledWidgets(t *testing.T) {
	var b strings.Builder
	Render(&b, testSnapshot(), config.Default())

	out := b.String()
	for _, title := range []string{"CPU", "Memory", "GPU", "Disk", "Network", "Sessions", "Agents", "Logs"} {
		assert.Contains(t, out, title)
	}
	assert.Contains(t, out, "RTX 4090")
	assert.Contains(t, out, "eth0")
	assert.Contains(t, out, "main")
	assert.Contains(t, out, "4K", "rx rate shown in bits")
}

func TestRenderPlainSkipsDisabledWidgets(t *testing.T) {
	settings := config.Default()
	settings.Show.GPU = false
	settings.Show.Network = false

	var b strings.Builder
	Render(&b, testSnapshot(), settings)

	out := b.String()
	assert.NotContains(t, out, "GPU")
	assert.NotContains(t, out, "Network")
	assert.Contains(t, out, "CPU")
}

func TestRenderLogsTruncatesByRunes(t *testing.T) {
	snap := testSnapshot()
	snap.Logs.Lines = []snapshot.LogLine{
		{Raw: strings.Repeat("証", 30), Level: snapshot.LevelInfo},
	}

	// Width 0 clamps to the minimum inner width of 20; the line is 30
	// three-byte runes, so a byte cut would land mid-rune.
	out := renderLogs(renderContext{snap: snap, settings: config.Default()})

	assert.True(t, utf8.ValidString(out))
	assert.Contains(t, out, strings.Repeat("証", 20))
	assert.NotContains(t, out, strings.Repeat("証", 21))
}

func TestRenderPlainNilSnapshot(t *testing.T) {
	var b strings.Builder
	Render(&b, nil, config.Default())
	assert.Contains(t, b.String(), "no data")
}

func TestRenderUnreachableRuntime(t *testing.T) {
	snap := testSnapshot()
	snap.Runtime = snapshot.RuntimeReading{
		Status: snapshot.SourceUnavailable,
		Sessions: []snapshot.Session{}, Agents: []snapshot.Agent{},
	}

	var b strings.Builder
	Render(&b, snap, config.Default())
	assert.Contains(t, b.String(), "runtime unreachable")
}

func TestRenderLogFilter(t *testing.T) {
	settings := config.Default()
	settings.LogFilter = "error"

	var b strings.Builder
	Render(&b, testSnapshot(), settings)

	out := b.String()
	assert.Contains(t, out, "probe timeout")
	assert.NotContains(t, out, "gateway connected")
}

func TestNextFilterCycles(t *testing.T) {
	assert.Equal(t, "debug", nextFilter("all"))
	assert.Equal(t, "info", nextFilter("debug"))
	assert.Equal(t, "warn", nextFilter("info"))
	assert.Equal(t, "error", nextFilter("warn"))
	assert.Equal(t, "all", nextFilter("error"))
	assert.Equal(t, "all", nextFilter("bogus"))
}

func TestModelPauseSuspendsTicks(t *testing.T) {
	m := NewModel(engine.New(config.Default(), engine.Sources{}))

	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{' '}})
	m = updated.(Model)
	require.True(t, m.paused)
	assert.Nil(t, cmd)

	// While paused, scheduled ticks produce no new work.
	updated, cmd = m.Update(tickMsg{gen: m.tickGen})
	m = updated.(Model)
	assert.Nil(t, cmd)

	// Manual refresh still works while paused.
	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'r'}})
	assert.NotNil(t, cmd)

	// Resuming restarts the timer.
	updated, cmd = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{' '}})
	m = updated.(Model)
	assert.False(t, m.paused)
	assert.NotNil(t, cmd)
}

func TestResumeRetiresPrePauseTimer(t *testing.T) {
	m := NewModel(engine.New(config.Default(), engine.Sources{}))
	staleGen := m.tickGen

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{' '}})
	m = updated.(Model)
	updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{' '}})
	m = updated.(Model)

	// The timer scheduled before the pause fires after resume. It must be
	// dropped, or it would reschedule itself alongside the new chain and
	// double the cadence.
	_, cmd := m.Update(tickMsg{gen: staleGen})
	assert.Nil(t, cmd)

	// The chain started on resume keeps ticking.
	_, cmd = m.Update(tickMsg{gen: m.tickGen})
	assert.NotNil(t, cmd)
}

func TestModelQuit(t *testing.T) {
	m := NewModel(engine.New(config.Default(), engine.Sources{}))

	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	m = updated.(Model)
	assert.True(t, m.quitting)
	require.NotNil(t, cmd)
	assert.Equal(t, "", m.View())
}

func TestModelFilterKeyUpdatesEngineSettings(t *testing.T) {
	eng := engine.New(config.Default(), engine.Sources{})
	m := NewModel(eng)

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'f'}})
	m = updated.(Model)

	assert.Equal(t, "debug", m.settings.LogFilter)
	assert.Equal(t, "debug", eng.Settings().LogFilter)
}

func TestModelCommittedSnapshotRendered(t *testing.T) {
	m := NewModel(engine.New(config.Default(), engine.Sources{}))
	m.width = 100

	updated, _ := m.Update(snapshotMsg{snap: testSnapshot(), committed: true, time: time.Now()})
	m = updated.(Model)

	out := m.renderWidgets()
	assert.Contains(t, out, "RTX 4090")
}

func TestModelSkippedTickKeepsSnapshot(t *testing.T) {
	m := NewModel(engine.New(config.Default(), engine.Sources{}))
	snap := testSnapshot()

	updated, _ := m.Update(snapshotMsg{snap: snap, committed: true, time: time.Now()})
	m = updated.(Model)
	updated, _ = m.Update(snapshotMsg{snap: nil, committed: false, time: time.Now()})
	m = updated.(Model)

	assert.Same(t, snap, m.snap)
}

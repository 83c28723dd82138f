package engine

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentop/agentop/internal/config"
	"github.com/agentop/agentop/internal/snapshot"
)

type hostStub struct {
	cpu      snapshot.CPUReading
	mem      snapshot.MemoryReading
	disk     snapshot.DiskReading
	cpuCalls atomic.Int32
}

func (h *hostStub) CPU(_ context.Context) snapshot.CPUReading {
	h.cpuCalls.Add(1)
	return h.cpu
}

func (h *hostStub) Memory(_ context.Context, _ bool) snapshot.MemoryReading { return h.mem }
func (h *hostStub) Disk(_ context.Context, _ string) snapshot.DiskReading   { return h.disk }

type gpuStub struct {
	reading snapshot.GPUReading
	calls   atomic.Int32
	panics  bool
}

func (g *gpuStub) Sample(_ context.Context) snapshot.GPUReading {
	g.calls.Add(1)
	if g.panics {
		panic("nvml exploded")
	}
	return g.reading
}

type netStub struct{ reading snapshot.NetworkReading }

func (n *netStub) Sample(_ context.Context, _ time.Time) snapshot.NetworkReading {
	return n.reading
}

type runtimeStub struct{ readings []snapshot.RuntimeReading }

func (r *runtimeStub) Sample(_ context.Context) snapshot.RuntimeReading {
	if len(r.readings) == 0 {
		return snapshot.RuntimeReading{Status: snapshot.SourceUnavailable, Sessions: []snapshot.Session{}, Agents: []snapshot.Agent{}}
	}
	reading := r.readings[0]
	if len(r.readings) > 1 {
		r.readings = r.readings[1:]
	}
	return reading
}

type logsStub struct{ readings []snapshot.LogsReading }

func (l *logsStub) Sample(_ context.Context) snapshot.LogsReading {
	if len(l.readings) == 0 {
		return snapshot.LogsReading{Status: snapshot.SourceUnavailable}
	}
	reading := l.readings[0]
	if len(l.readings) > 1 {
		l.readings = l.readings[1:]
	}
	return reading
}

type versionStub struct {
	calls          atomic.Int32
	noRuntimeFirst int32 // samples to answer before the runtime version is known
}

func (v *versionStub) Sample(_ context.Context) snapshot.VersionReading {
	n := v.calls.Add(1)
	reading := snapshot.VersionReading{Status: snapshot.SourceOK, Dashboard: "0.3.0"}
	if n > v.noRuntimeFirst {
		reading.Runtime = "2.1.0"
	}
	return reading
}

func okSources() Sources {
	return Sources{
		Host: &hostStub{
			cpu: snapshot.CPUReading{Status: snapshot.SourceOK, Percent: 42.5, Cores: 8},
			mem: snapshot.MemoryReading{Status: snapshot.SourceOK, UsedPercent: 61.0},
		},
		GPU:     &gpuStub{reading: snapshot.GPUReading{Status: snapshot.SourceOK, Model: "RTX 4090"}},
		Network: &netStub{reading: snapshot.NetworkReading{Status: snapshot.SourceOK, RxPerSec: 500, TxPerSec: 120, HasRate: true}},
		Runtime: &runtimeStub{readings: []snapshot.RuntimeReading{{Status: snapshot.SourceOK, Reachable: true, Sessions: []snapshot.Session{}, Agents: []snapshot.Agent{}}}},
		Logs:    &logsStub{readings: []snapshot.LogsReading{{Status: snapshot.SourceOK}}},
		Version: &versionStub{},
	}
}

func TestRefreshCommitsSnapshot(t *testing.T) {
	e := New(config.Default(), okSources())

	snap, committed := e.Refresh(context.Background())

	require.True(t, committed)
	require.NotNil(t, snap)
	assert.Equal(t, 42.5, snap.CPU.Percent)
	assert.Equal(t, snapshot.SourceOK, snap.Memory.Status)
	assert.True(t, snap.Runtime.Reachable)
	assert.Same(t, snap, e.Current())
}

func TestDisabledSourceIsSkippedNotInvoked(t *testing.T) {
	settings := config.Default()
	settings.Show.GPU = false

	sources := okSources()
	gpu := sources.GPU.(*gpuStub)
	e := New(settings, sources)

	snap, _ := e.Refresh(context.Background())

	assert.Equal(t, snapshot.SourceDisabled, snap.GPU.Status)
	assert.Equal(t, int32(0), gpu.calls.Load(), "disabled sampler must not run")
}

func TestSamplerPanicAbortsOnlyThatSource(t *testing.T) {
	sources := okSources()
	sources.GPU = &gpuStub{panics: true}
	e := New(config.Default(), sources)

	snap, committed := e.Refresh(context.Background())

	require.True(t, committed)
	assert.Equal(t, snapshot.SourceUnavailable, snap.GPU.Status)
	assert.Equal(t, snapshot.SourceOK, snap.CPU.Status, "other sources unaffected")
}

func TestLogLinesRetainedAcrossFailedFetch(t *testing.T) {
	lines := []snapshot.LogLine{
		{Raw: "[INFO] gateway up", Level: snapshot.LevelInfo},
		{Raw: "[ERROR] probe failed", Level: snapshot.LevelError},
	}
	sources := okSources()
	sources.Logs = &logsStub{readings: []snapshot.LogsReading{
		{Status: snapshot.SourceOK, Lines: lines},
		{Status: snapshot.SourceUnavailable},
	}}
	e := New(config.Default(), sources)

	first, _ := e.Refresh(context.Background())
	require.Len(t, first.Logs.Lines, 2)

	second, _ := e.Refresh(context.Background())
	assert.Equal(t, snapshot.SourceUnavailable, second.Logs.Status)
	assert.Equal(t, lines, second.Logs.Lines, "last good lines survive a failed fetch")
}

func TestTokenRateAcrossTicks(t *testing.T) {
	sources := okSources()
	sources.Runtime = &runtimeStub{readings: []snapshot.RuntimeReading{
		{Status: snapshot.SourceOK, Reachable: true, Sessions: []snapshot.Session{{Key: "s1", TotalTokens: 1000}}},
		{Status: snapshot.SourceOK, Reachable: true, Sessions: []snapshot.Session{{Key: "s1", TotalTokens: 1600}}},
		{Status: snapshot.SourceOK, Reachable: true, Sessions: []snapshot.Session{{Key: "s1", TotalTokens: 1600}}},
		{Status: snapshot.SourceOK, Reachable: true, Sessions: []snapshot.Session{}},
	}}
	e := New(config.Default(), sources)

	first, _ := e.Refresh(context.Background())
	assert.Empty(t, first.TokenRates, "no rate on the first observation")

	time.Sleep(150 * time.Millisecond)
	second, _ := e.Refresh(context.Background())
	require.Contains(t, second.TokenRates, "s1")
	assert.True(t, second.TokenRates["s1"].Active)
	assert.Greater(t, second.TokenRates["s1"].PerSecond, 0.0)

	time.Sleep(150 * time.Millisecond)
	third, _ := e.Refresh(context.Background())
	require.Contains(t, third.TokenRates, "s1")
	assert.False(t, third.TokenRates["s1"].Active, "idle tick keeps value, flips inactive")
	assert.Equal(t, second.TokenRates["s1"].PerSecond, third.TokenRates["s1"].PerSecond)

	fourth, _ := e.Refresh(context.Background())
	assert.NotContains(t, fourth.TokenRates, "s1", "vanished session is pruned")
}

func TestHistoryAdvancesEveryTick(t *testing.T) {
	e := New(config.Default(), okSources())

	e.Refresh(context.Background())
	e.Refresh(context.Background())

	cpu, mem, rx, _ := e.History()
	assert.Len(t, cpu, 60)
	assert.Equal(t, 42.5, cpu[len(cpu)-1])
	assert.Equal(t, 42.5, cpu[len(cpu)-2])
	assert.Equal(t, 0.0, cpu[0], "window starts zero-filled")
	assert.Equal(t, 61.0, mem[len(mem)-1])
	assert.Len(t, rx, 30)
	assert.Equal(t, 500.0, rx[len(rx)-1])
}

func TestCommittedSnapshotIsDecoupled(t *testing.T) {
	lines := []snapshot.LogLine{{Raw: "[INFO] steady", Level: snapshot.LevelInfo}}
	sources := okSources()
	sources.Logs = &logsStub{readings: []snapshot.LogsReading{{Status: snapshot.SourceOK, Lines: lines}}}
	e := New(config.Default(), sources)

	snap, _ := e.Refresh(context.Background())

	// Mutating the slice the sampler handed over must not reach the
	// committed snapshot.
	lines[0].Raw = "mutated"
	assert.Equal(t, "[INFO] steady", snap.Logs.Lines[0].Raw)
}

func TestVersionCachedOnceRuntimeKnown(t *testing.T) {
	sources := okSources()
	version := sources.Version.(*versionStub)
	e := New(config.Default(), sources)

	e.Refresh(context.Background())
	snap, _ := e.Refresh(context.Background())

	assert.Equal(t, int32(1), version.calls.Load())
	assert.Equal(t, "0.3.0", snap.Versions.Dashboard)
	assert.Equal(t, "2.1.0", snap.Versions.Runtime)
}

func TestVersionRetriedUntilRuntimeKnown(t *testing.T) {
	sources := okSources()
	version := sources.Version.(*versionStub)
	version.noRuntimeFirst = 1
	e := New(config.Default(), sources)

	// Runtime not up yet on the first tick: the version stays unknown.
	snap, _ := e.Refresh(context.Background())
	assert.Empty(t, snap.Versions.Runtime)

	// The next tick retries and the answer sticks from then on.
	snap, _ = e.Refresh(context.Background())
	assert.Equal(t, "2.1.0", snap.Versions.Runtime)

	snap, _ = e.Refresh(context.Background())
	assert.Equal(t, int32(2), version.calls.Load())
	assert.Equal(t, "2.1.0", snap.Versions.Runtime)
}

func TestSessionsFileOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sessions.json")
	doc := `{"s-main": {"name": "main", "model": "m1", "totalTokens": 12}}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	settings := config.Default()
	settings.Runtime.SessionsFile = path
	e := New(settings, okSources())

	snap, _ := e.Refresh(context.Background())

	require.Len(t, snap.Runtime.Sessions, 1)
	assert.Equal(t, "s-main", snap.Runtime.Sessions[0].Key)
}

func TestSessionsFileMissingMeansNoSessions(t *testing.T) {
	settings := config.Default()
	settings.Runtime.SessionsFile = filepath.Join(t.TempDir(), "absent.json")

	sources := okSources()
	sources.Runtime = &runtimeStub{readings: []snapshot.RuntimeReading{
		{Status: snapshot.SourceOK, Reachable: true, Sessions: []snapshot.Session{{Key: "from-command"}}},
	}}
	e := New(settings, sources)

	snap, _ := e.Refresh(context.Background())

	assert.NotNil(t, snap.Runtime.Sessions)
	assert.Empty(t, snap.Runtime.Sessions)
}

type stateProbe struct {
	engine   *Engine
	observed State
}

func (p *stateProbe) Sample(_ context.Context) snapshot.GPUReading {
	p.observed = p.engine.State()
	return snapshot.GPUReading{Status: snapshot.SourceOK}
}

func TestStateObservableDuringRefresh(t *testing.T) {
	probe := &stateProbe{}
	sources := okSources()
	sources.GPU = probe
	e := New(config.Default(), sources)
	probe.engine = e

	assert.Equal(t, StateIdle, e.State())
	e.Refresh(context.Background())
	assert.Equal(t, StateSampling, probe.observed)
	assert.Equal(t, StateIdle, e.State())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "sampling", StateSampling.String())
	assert.Equal(t, "deriving", StateDeriving.String())
	assert.Equal(t, "committing", StateCommitting.String())
}

type blockingHost struct {
	started chan struct{}
	release chan struct{}
}

func (b *blockingHost) CPU(_ context.Context) snapshot.CPUReading {
	close(b.started)
	<-b.release
	return snapshot.CPUReading{Status: snapshot.SourceOK}
}

func (b *blockingHost) Memory(_ context.Context, _ bool) snapshot.MemoryReading {
	return snapshot.MemoryReading{Status: snapshot.SourceOK}
}

func (b *blockingHost) Disk(_ context.Context, _ string) snapshot.DiskReading {
	return snapshot.DiskReading{Status: snapshot.SourceOK}
}

func TestOverlappingTickIsSkipped(t *testing.T) {
	host := &blockingHost{started: make(chan struct{}), release: make(chan struct{})}
	sources := okSources()
	sources.Host = host
	e := New(config.Default(), sources)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, committed := e.Refresh(context.Background())
		assert.True(t, committed)
	}()

	<-host.started
	snap, committed := e.Refresh(context.Background())
	assert.False(t, committed, "a tick in flight skips the next")
	assert.Nil(t, snap, "nothing committed yet")

	close(host.release)
	<-done
	assert.NotNil(t, e.Current())
}

// Package engine runs the refresh cycle: fan out to the enabled samplers,
// merge their readings, derive rates, push history, and commit an immutable
// snapshot for rendering.
package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/agentop/agentop/internal/config"
	"github.com/agentop/agentop/internal/history"
	"github.com/agentop/agentop/internal/logger"
	"github.com/agentop/agentop/internal/rate"
	"github.com/agentop/agentop/internal/sampler"
	"github.com/agentop/agentop/internal/snapshot"
)

var log = logger.NewEnvLogger("[engine]")

// State identifies the phase of the refresh cycle currently executing.
type State int32

const (
	StateIdle State = iota
	StateSampling
	StateDeriving
	StateCommitting
)

// String returns the phase name in lowercase.
func (s State) String() string {
	switch s {
	case StateSampling:
		return "sampling"
	case StateDeriving:
		return "deriving"
	case StateCommitting:
		return "committing"
	default:
		return "idle"
	}
}

// HostSampler supplies local CPU, memory, and disk readings.
type HostSampler interface {
	CPU(ctx context.Context) snapshot.CPUReading
	Memory(ctx context.Context, includeCache bool) snapshot.MemoryReading
	Disk(ctx context.Context, mount string) snapshot.DiskReading
}

// GPUSampler supplies a best-effort GPU reading.
type GPUSampler interface {
	Sample(ctx context.Context) snapshot.GPUReading
}

// NetworkSampler supplies interface counters and derived rates.
type NetworkSampler interface {
	Sample(ctx context.Context, now time.Time) snapshot.NetworkReading
}

// RuntimeSampler supplies the agent runtime's status document.
type RuntimeSampler interface {
	Sample(ctx context.Context) snapshot.RuntimeReading
}

// LogsSampler supplies recent classified runtime log lines.
type LogsSampler interface {
	Sample(ctx context.Context) snapshot.LogsReading
}

// VersionSampler supplies dashboard and runtime version info.
type VersionSampler interface {
	Sample(ctx context.Context) snapshot.VersionReading
}

// Sources bundles the samplers the engine polls each tick. Any nil source
// reads as unavailable.
type Sources struct {
	Host    HostSampler
	GPU     GPUSampler
	Network NetworkSampler
	Runtime RuntimeSampler
	Logs    LogsSampler
	Version VersionSampler
}

// Engine owns the refresh cycle and the committed snapshot. One Engine per
// dashboard process; methods are safe for concurrent use.
type Engine struct {
	sources Sources

	mu       sync.Mutex // settings and committed state
	settings config.Settings
	current  *snapshot.Snapshot
	buffers  *history.Set

	tickMu sync.Mutex // held for the duration of one refresh
	state  atomic.Int32

	tokens *rate.Tracker

	versionMu   sync.Mutex
	versionInfo snapshot.VersionReading
	versionDone bool
}

// New creates an engine polling the given sources.
func New(settings config.Settings, sources Sources) *Engine {
	return &Engine{
		sources:  sources,
		settings: settings,
		buffers:  history.NewSet(),
		tokens:   rate.NewTracker(rate.MinTokenElapsed),
	}
}

// NewDefault creates an engine wired to the real local samplers per the
// given settings.
func NewDefault(settings config.Settings, dashboardVersion string) *Engine {
	rt := settings.Runtime
	return New(settings, Sources{
		Host:    sampler.NewHost(),
		GPU:     sampler.NewGPU(rt.CommandTimeout),
		Network: sampler.NewNetwork(settings.Network.Interface),
		Runtime: sampler.NewRuntime(rt.StatusCommand, rt.CommandTimeout),
		Logs:    sampler.NewLogs(rt.LogsCommand, rt.CommandTimeout, rt.LogLines),
		Version: sampler.NewVersion(dashboardVersion, rt.VersionCommand, rt.CommandTimeout),
	})
}

// Settings returns the engine's current settings.
func (e *Engine) Settings() config.Settings {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.settings
}

// SetSettings swaps the settings used by future ticks.
func (e *Engine) SetSettings(settings config.Settings) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.settings = settings
}

// State reports the refresh phase currently executing.
func (e *Engine) State() State {
	return State(e.state.Load())
}

// Current returns the last committed snapshot, or nil before the first tick.
// The returned snapshot is never mutated by later ticks.
func (e *Engine) Current() *snapshot.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

// History returns copies of the rolling metric windows for sparklines.
func (e *Engine) History() (cpu, mem, netRx, netTx []float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.buffers.CPU.Values(), e.buffers.Memory.Values(),
		e.buffers.NetRx.Values(), e.buffers.NetTx.Values()
}

// Refresh runs one full tick and commits the result. If a previous tick is
// still in flight the call is skipped and the existing snapshot returned
// with committed=false. A panic inside the tick aborts only that tick.
func (e *Engine) Refresh(ctx context.Context) (snap *snapshot.Snapshot, committed bool) {
	if !e.tickMu.TryLock() {
		log.Debug("refresh still in flight, skipping tick")
		return e.Current(), false
	}
	defer e.tickMu.Unlock()
	defer e.state.Store(int32(StateIdle))

	defer func() {
		if r := recover(); r != nil {
			log.Error("refresh panicked: %v", r)
			snap, committed = e.Current(), false
		}
	}()

	e.mu.Lock()
	settings := e.settings
	prev := e.current
	e.mu.Unlock()

	now := time.Now()
	next := &snapshot.Snapshot{Taken: now}
	if prev != nil {
		next.Elapsed = now.Sub(prev.Taken)
	}

	e.state.Store(int32(StateSampling))
	e.collect(ctx, settings, now, next)

	e.state.Store(int32(StateDeriving))
	e.derive(settings, prev, next)

	e.state.Store(int32(StateCommitting))
	e.mu.Lock()
	e.pushHistory(next)
	e.current = next.Clone()
	snap = e.current
	e.mu.Unlock()

	return snap, true
}

// collect fans out to the enabled samplers in parallel. Each goroutine
// writes a distinct snapshot field, so no merge lock is needed; a panic in
// one sampler marks only that source unavailable.
func (e *Engine) collect(ctx context.Context, settings config.Settings, now time.Time, next *snapshot.Snapshot) {
	var wg sync.WaitGroup

	// A panic in one sampler marks only that source unavailable.
	run := func(name string, fn func(), onPanic func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					log.Error("%s sampler panicked: %v", name, r)
					onPanic()
				}
			}()
			fn()
		}()
	}

	if settings.Show.CPU && e.sources.Host != nil {
		run("cpu",
			func() { next.CPU = e.sources.Host.CPU(ctx) },
			func() { next.CPU = snapshot.CPUReading{Status: snapshot.SourceUnavailable} })
	} else {
		next.CPU.Status = snapshot.SourceDisabled
	}

	if settings.Show.Memory && e.sources.Host != nil {
		run("memory",
			func() { next.Memory = e.sources.Host.Memory(ctx, settings.MemoryIncludeCache) },
			func() { next.Memory = snapshot.MemoryReading{Status: snapshot.SourceUnavailable} })
	} else {
		next.Memory.Status = snapshot.SourceDisabled
	}

	if settings.Show.GPU && e.sources.GPU != nil {
		run("gpu",
			func() { next.GPU = e.sources.GPU.Sample(ctx) },
			func() { next.GPU = snapshot.GPUReading{Status: snapshot.SourceUnavailable} })
	} else {
		next.GPU.Status = snapshot.SourceDisabled
	}

	if settings.Show.Disk && e.sources.Host != nil {
		run("disk",
			func() { next.Disk = e.sources.Host.Disk(ctx, settings.Disk.Mount) },
			func() { next.Disk = snapshot.DiskReading{Status: snapshot.SourceUnavailable} })
	} else {
		next.Disk.Status = snapshot.SourceDisabled
	}

	if settings.Show.Network && e.sources.Network != nil {
		run("network",
			func() { next.Network = e.sources.Network.Sample(ctx, now) },
			func() { next.Network = snapshot.NetworkReading{Status: snapshot.SourceUnavailable} })
	} else {
		next.Network.Status = snapshot.SourceDisabled
	}

	if (settings.Show.Sessions || settings.Show.Agents) && e.sources.Runtime != nil {
		run("runtime",
			func() {
				next.Runtime = e.sources.Runtime.Sample(ctx)
				if file := settings.Runtime.SessionsFile; file != "" {
					e.overlaySessionsFile(file, &next.Runtime)
				}
			},
			func() {
				next.Runtime = snapshot.RuntimeReading{
					Status:   snapshot.SourceUnavailable,
					Sessions: []snapshot.Session{},
					Agents:   []snapshot.Agent{},
				}
			})
	} else {
		next.Runtime.Status = snapshot.SourceDisabled
	}

	if settings.Show.Logs && e.sources.Logs != nil {
		run("logs",
			func() { next.Logs = e.sources.Logs.Sample(ctx) },
			func() { next.Logs = snapshot.LogsReading{Status: snapshot.SourceUnavailable} })
	} else {
		next.Logs.Status = snapshot.SourceDisabled
	}

	if e.sources.Version != nil {
		run("version",
			func() { next.Versions = e.sampleVersion(ctx) },
			func() { next.Versions = snapshot.VersionReading{Status: snapshot.SourceUnavailable} })
	} else {
		next.Versions.Status = snapshot.SourceUnavailable
	}

	wg.Wait()
}

// sampleVersion caches the version reading once the runtime's own version
// is known. Until then every tick retries, so a runtime started after the
// dashboard still gets its version reported.
func (e *Engine) sampleVersion(ctx context.Context) snapshot.VersionReading {
	e.versionMu.Lock()
	defer e.versionMu.Unlock()
	if e.versionDone {
		return e.versionInfo
	}
	e.versionInfo = e.sources.Version.Sample(ctx)
	e.versionDone = e.versionInfo.Runtime != ""
	return e.versionInfo
}

// overlaySessionsFile replaces the runtime's session list from the
// configured sessions file. A missing file means no sessions; a malformed
// one keeps the command-reported list.
func (e *Engine) overlaySessionsFile(path string, reading *snapshot.RuntimeReading) {
	sessions, err := sampler.ReadSessionsFile(path)
	if err != nil {
		if sampler.IsMissing(err) {
			reading.Sessions = []snapshot.Session{}
			return
		}
		log.Warn("sessions file %s unreadable: %v", path, err)
		return
	}
	reading.Sessions = sessions
}

// derive computes cross-source values that need the previous snapshot:
// token throughput, and log retention across a failed fetch.
func (e *Engine) derive(settings config.Settings, prev, next *snapshot.Snapshot) {
	var prevSessions []snapshot.Session
	if prev != nil {
		prevSessions = prev.Runtime.Sessions
	}
	next.TokenRates = e.tokens.Observe(next.Runtime.Sessions, prevSessions, next.Elapsed)

	// A failed log fetch keeps showing the last good lines instead of
	// blanking the widget. The unavailable status still surfaces.
	if settings.Show.Logs && next.Logs.Status == snapshot.SourceUnavailable && prev != nil {
		next.Logs.Lines = prev.Logs.Lines
	}
}

// pushHistory appends this tick's values to every rolling window. Windows
// advance on every tick, failed or not, so time stays linear in the graphs.
func (e *Engine) pushHistory(next *snapshot.Snapshot) {
	e.buffers.CPU.Push(next.CPU.Percent)
	e.buffers.Memory.Push(next.Memory.UsedPercent)
	e.buffers.NetRx.Push(next.Network.RxPerSec)
	e.buffers.NetTx.Push(next.Network.TxPerSec)
}

// Close releases sampler-held resources.
func (e *Engine) Close() {
	if c, ok := e.sources.GPU.(interface{ Close() }); ok {
		c.Close()
	}
}

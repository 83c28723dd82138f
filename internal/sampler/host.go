package sampler

import (
	"context"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/agentop/agentop/internal/snapshot"
)

// Host samples CPU, memory, and disk from the local machine via gopsutil.
// It remembers the previous CPU times so usage is a delta between ticks
// rather than an average since boot; that memory is scoped here, not shared.
type Host struct {
	prevTotal float64
	prevIdle  float64
	prevCore  []cpu.TimesStat

	// vmstat is swappable for tests; defaults to gopsutil.
	vmstat func(ctx context.Context) (*mem.VirtualMemoryStat, error)
}

// NewHost creates a host sampler.
func NewHost() *Host {
	return &Host{vmstat: mem.VirtualMemoryWithContext}
}

// CPU returns overall and per-core load. The first tick has no previous
// times to diff, so percentages are zero until the second sample.
func (h *Host) CPU(ctx context.Context) snapshot.CPUReading {
	times, err := cpu.TimesWithContext(ctx, false)
	if err != nil || len(times) == 0 {
		return snapshot.CPUReading{Status: snapshot.SourceUnavailable}
	}

	reading := snapshot.CPUReading{Status: snapshot.SourceOK}

	cur := times[0]
	curTotal := cur.Total()
	curIdle := cur.Idle + cur.Iowait
	if h.prevTotal > 0 {
		dt := curTotal - h.prevTotal
		di := curIdle - h.prevIdle
		if dt > 0 {
			reading.Percent = 100 * (1 - di/dt)
		}
	}
	h.prevTotal, h.prevIdle = curTotal, curIdle

	coreTimes, err := cpu.TimesWithContext(ctx, true)
	if err == nil {
		reading.Cores = len(coreTimes)
		reading.PerCore = make([]float64, len(coreTimes))
		for i, c := range coreTimes {
			if i >= len(h.prevCore) {
				continue
			}
			prev := h.prevCore[i]
			dt := c.Total() - prev.Total()
			di := (c.Idle + c.Iowait) - (prev.Idle + prev.Iowait)
			if dt > 0 {
				reading.PerCore[i] = 100 * (1 - di/dt)
			}
		}
		h.prevCore = coreTimes
	}

	if avg, err := load.AvgWithContext(ctx); err == nil {
		reading.Load1 = avg.Load1
		reading.Load5 = avg.Load5
		reading.Load15 = avg.Load15
	}

	return reading
}

// Memory returns usage with cache reported separately. When includeCache is
// true the cached pages count toward UsedPercent; otherwise they do not.
func (h *Host) Memory(ctx context.Context, includeCache bool) snapshot.MemoryReading {
	stat, err := h.vmstat(ctx)
	if err != nil || stat.Total == 0 {
		return snapshot.MemoryReading{Status: snapshot.SourceUnavailable}
	}

	// stat.Used already excludes buffers and cache on Linux, so it is the
	// exclude-cache figure as-is.
	cached := stat.Cached + stat.Buffers

	reading := snapshot.MemoryReading{
		Status:      snapshot.SourceOK,
		UsedBytes:   stat.Used,
		CachedBytes: cached,
		TotalBytes:  stat.Total,
	}

	counted := stat.Used
	if includeCache {
		counted += cached
	}
	reading.UsedPercent = 100 * float64(counted) / float64(stat.Total)

	return reading
}

// Disk returns usage for a single mount.
func (h *Host) Disk(ctx context.Context, mount string) snapshot.DiskReading {
	usage, err := disk.UsageWithContext(ctx, mount)
	if err != nil || usage.Total == 0 {
		return snapshot.DiskReading{Status: snapshot.SourceUnavailable, Mount: mount}
	}

	return snapshot.DiskReading{
		Status:      snapshot.SourceOK,
		Mount:       mount,
		UsedBytes:   usage.Used,
		TotalBytes:  usage.Total,
		UsedPercent: usage.UsedPercent,
	}
}

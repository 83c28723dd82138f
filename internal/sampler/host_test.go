package sampler

import (
	"context"
	"errors"
	"testing"

	"github.com/shirou/gopsutil/v3/mem"
	"github.com/stretchr/testify/assert"

	"github.com/agentop/agentop/internal/snapshot"
)

const mib = 1024 * 1024

// loadedStat mirrors a loaded Linux host where application memory exceeds
// the page cache: Used is Total - Free - Buffers - Cached, the way gopsutil
// reports it, so cache is already excluded.
func loadedStat() *mem.VirtualMemoryStat {
	stat := &mem.VirtualMemoryStat{
		Total:   4096 * mib,
		Free:    1272 * mib,
		Buffers: 128 * mib,
		Cached:  1141 * mib,
	}
	stat.Used = stat.Total - stat.Free - stat.Buffers - stat.Cached
	return stat
}

func TestMemoryUsedMatchesStat(t *testing.T) {
	stat := loadedStat()
	h := NewHost()
	h.vmstat = func(_ context.Context) (*mem.VirtualMemoryStat, error) { return stat, nil }

	reading := h.Memory(context.Background(), false)

	assert.Equal(t, snapshot.SourceOK, reading.Status)
	assert.Equal(t, stat.Used, reading.UsedBytes)
	assert.Equal(t, stat.Cached+stat.Buffers, reading.CachedBytes)
	assert.Equal(t, stat.Total, reading.TotalBytes)
	assert.InDelta(t, 100*float64(stat.Used)/float64(stat.Total), reading.UsedPercent, 0.01)
}

func TestMemoryIncludeCacheAddsCacheOnce(t *testing.T) {
	stat := loadedStat()
	h := NewHost()
	h.vmstat = func(_ context.Context) (*mem.VirtualMemoryStat, error) { return stat, nil }

	excl := h.Memory(context.Background(), false)
	incl := h.Memory(context.Background(), true)

	// Same byte figures either way; only the counted percent moves, by
	// exactly the cache share.
	assert.Equal(t, excl.UsedBytes, incl.UsedBytes)
	want := 100 * float64(stat.Used+stat.Cached+stat.Buffers) / float64(stat.Total)
	assert.InDelta(t, want, incl.UsedPercent, 0.01)
	assert.Greater(t, incl.UsedPercent, excl.UsedPercent)
}

func TestMemoryUnavailable(t *testing.T) {
	h := NewHost()
	h.vmstat = func(_ context.Context) (*mem.VirtualMemoryStat, error) {
		return nil, errors.New("proc unreadable")
	}

	reading := h.Memory(context.Background(), true)
	assert.Equal(t, snapshot.SourceUnavailable, reading.Status)
}

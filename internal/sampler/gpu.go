package sampler

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/NVIDIA/go-nvml/pkg/nvml"
	"github.com/shirou/gopsutil/v3/cpu"

	"github.com/agentop/agentop/internal/snapshot"
)

// GPU samples the graphics device through a fallback chain, returning the
// first structurally valid reading:
//
//  1. NVML structured query
//  2. nvidia-smi CSV output
//  3. powermetrics sampling (Apple Silicon)
//  4. CPU model-name heuristic (model only, no utilization)
//
// Each tier is independently wrapped; a tier that knows some fields but not
// others still wins. The sampler remembers the last known model so a tier
// that reports utilization without a name stays labeled.
type GPU struct {
	timeout time.Duration

	nvmlOnce sync.Once
	nvmlOK   bool

	lastModel string
}

// NewGPU creates a GPU sampler with the given per-call timeout for the
// external-process tiers.
func NewGPU(timeout time.Duration) *GPU {
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	return &GPU{timeout: timeout}
}

// Sample walks the fallback chain. It never returns an error; total failure
// is a reading with SourceUnavailable status.
func (g *GPU) Sample(ctx context.Context) snapshot.GPUReading {
	tiers := []func(context.Context) (snapshot.GPUReading, bool){
		g.sampleNVML,
		g.sampleNvidiaSMI,
		g.samplePowermetrics,
		g.sampleHeuristic,
	}

	for _, tier := range tiers {
		if reading, ok := tier(ctx); ok {
			if reading.Model == "" {
				reading.Model = g.lastModel
			} else {
				g.lastModel = reading.Model
			}
			return reading
		}
	}

	return snapshot.GPUReading{Status: snapshot.SourceUnavailable}
}

// Close releases NVML if it was initialized.
func (g *GPU) Close() {
	if g.nvmlOK {
		nvml.Shutdown()
		g.nvmlOK = false
	}
}

func (g *GPU) sampleNVML(_ context.Context) (reading snapshot.GPUReading, ok bool) {
	// NVML is cgo; a broken driver stack must not take the tick down.
	defer func() {
		if recover() != nil {
			reading, ok = snapshot.GPUReading{}, false
		}
	}()

	g.nvmlOnce.Do(func() {
		g.nvmlOK = nvml.Init() == nvml.SUCCESS
	})
	if !g.nvmlOK {
		return snapshot.GPUReading{}, false
	}

	count, ret := nvml.DeviceGetCount()
	if ret != nvml.SUCCESS || count == 0 {
		return snapshot.GPUReading{}, false
	}

	device, ret := nvml.DeviceGetHandleByIndex(0)
	if ret != nvml.SUCCESS {
		return snapshot.GPUReading{}, false
	}

	reading = snapshot.GPUReading{Status: snapshot.SourceOK, Source: "nvml"}

	if name, ret := device.GetName(); ret == nvml.SUCCESS {
		reading.Model = name
	}
	if util, ret := device.GetUtilizationRates(); ret == nvml.SUCCESS {
		v := float64(util.Gpu)
		reading.Utilization = &v
	}
	if clock, ret := device.GetClockInfo(nvml.CLOCK_GRAPHICS); ret == nvml.SUCCESS {
		v := float64(clock)
		reading.FrequencyMHz = &v
	}

	if reading.Model == "" && reading.Utilization == nil {
		return snapshot.GPUReading{}, false
	}
	return reading, true
}

func (g *GPU) sampleNvidiaSMI(ctx context.Context) (snapshot.GPUReading, bool) {
	out, err := runCmd(ctx, g.timeout, "nvidia-smi",
		"--query-gpu=name,utilization.gpu,clocks.gr",
		"--format=csv,noheader,nounits")
	if err != nil || strings.TrimSpace(out) == "" {
		return snapshot.GPUReading{}, false
	}

	line := strings.SplitN(strings.TrimSpace(out), "\n", 2)[0]
	lower := strings.ToLower(line)
	if strings.Contains(lower, "failed") || strings.Contains(lower, "not found") ||
		strings.Contains(lower, "no devices") || strings.Contains(lower, "error") {
		return snapshot.GPUReading{}, false
	}

	parts := strings.Split(line, ",")
	if len(parts) < 1 {
		return snapshot.GPUReading{}, false
	}

	reading := snapshot.GPUReading{Status: snapshot.SourceOK, Source: "nvidia-smi"}
	reading.Model = strings.TrimSpace(parts[0])

	if len(parts) >= 2 {
		if v, ok := parseSMIFloat(parts[1]); ok {
			reading.Utilization = &v
		}
	}
	if len(parts) >= 3 {
		if v, ok := parseSMIFloat(parts[2]); ok {
			reading.FrequencyMHz = &v
		}
	}

	if reading.Model == "" && reading.Utilization == nil {
		return snapshot.GPUReading{}, false
	}
	return reading, true
}

var (
	pmFrequencyRe = regexp.MustCompile(`GPU HW active frequency:\s*([\d.]+)\s*MHz`)
	pmResidencyRe = regexp.MustCompile(`GPU HW active residency:\s*([\d.]+)%`)
)

func (g *GPU) samplePowermetrics(ctx context.Context) (snapshot.GPUReading, bool) {
	out, err := runCmd(ctx, g.timeout, "powermetrics",
		"--samplers", "gpu_power", "-i", "500", "-n", "1")
	if err != nil || out == "" {
		return snapshot.GPUReading{}, false
	}

	reading := snapshot.GPUReading{Status: snapshot.SourceOK, Source: "powermetrics"}

	if m := pmResidencyRe.FindStringSubmatch(out); len(m) > 1 {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			reading.Utilization = &v
		}
	}
	if m := pmFrequencyRe.FindStringSubmatch(out); len(m) > 1 {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			reading.FrequencyMHz = &v
		}
	}

	if reading.Utilization == nil && reading.FrequencyMHz == nil {
		return snapshot.GPUReading{}, false
	}
	return reading, true
}

// sampleHeuristic identifies integrated GPUs from the CPU model name.
// Model only; utilization stays unknown.
func (g *GPU) sampleHeuristic(ctx context.Context) (snapshot.GPUReading, bool) {
	infos, err := cpu.InfoWithContext(ctx)
	if err != nil || len(infos) == 0 {
		return snapshot.GPUReading{}, false
	}

	model := strings.TrimSpace(infos[0].ModelName)
	if model == "" {
		return snapshot.GPUReading{}, false
	}
	if strings.HasPrefix(model, "Apple ") {
		return snapshot.GPUReading{
			Status: snapshot.SourceOK,
			Model:  model + " GPU",
			Source: "cpuinfo",
		}, true
	}
	return snapshot.GPUReading{}, false
}

func parseSMIFloat(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" || s == "[N/A]" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

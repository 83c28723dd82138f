package dashboard

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// sparkBlocks are block characters for 8-level vertical resolution,
// lowest to highest.
var sparkBlocks = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// Sparkline renders a single-row graph of the window scaled to 0-100.
// Colored by the most recent value's severity.
func Sparkline(data []float64, width int) string {
	return sparklineScaled(data, width, 0, 100, true)
}

// RateSparkline renders a single-row graph of a rate window, scaled to the
// window's own peak so bursts stay visible at any magnitude.
func RateSparkline(data []float64, width int) string {
	maxVal := 0.0
	for _, v := range data {
		if v > maxVal {
			maxVal = v
		}
	}
	if maxVal == 0 {
		maxVal = 1
	}
	return sparklineScaled(data, width, 0, maxVal, false)
}

func sparklineScaled(data []float64, width int, minVal, maxVal float64, severity bool) string {
	if len(data) == 0 || width <= 0 {
		return ""
	}
	resampled := resample(data, width)

	var b strings.Builder
	for _, val := range resampled {
		normalized := 0.5
		if maxVal > minVal {
			normalized = (val - minVal) / (maxVal - minVal)
		}
		idx := int(normalized * float64(len(sparkBlocks)-1))
		if idx < 0 {
			idx = 0
		}
		if idx > len(sparkBlocks)-1 {
			idx = len(sparkBlocks) - 1
		}
		b.WriteRune(sparkBlocks[idx])
	}

	color := ColorGraph
	if severity {
		color = MetricColor(data[len(data)-1])
	}
	return lipgloss.NewStyle().Foreground(color).Render(b.String())
}

// GradientBar renders a horizontal usage bar. The fill shifts green to
// yellow to red along its length.
func GradientBar(width int, percent float64) string {
	if width < 1 {
		width = 1
	}
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}

	filled := int(percent / 100.0 * float64(width))
	if filled > width {
		filled = width
	}

	var b strings.Builder
	for i := 0; i < width; i++ {
		if i < filled {
			pos := float64(i+1) / float64(width) * 100
			b.WriteString(lipgloss.NewStyle().Foreground(MetricColor(pos)).Render("█"))
		} else {
			b.WriteString(MutedStyle.Render("░"))
		}
	}
	return b.String()
}

// resample compresses or stretches data to the target width. Downsampling
// keeps the max of each bucket so spikes survive; upsampling interpolates.
func resample(data []float64, target int) []float64 {
	if len(data) == 0 || target <= 0 {
		return nil
	}
	if len(data) == target {
		return data
	}

	out := make([]float64, target)

	if len(data) == 1 {
		for i := range out {
			out[i] = data[0]
		}
		return out
	}

	if len(data) > target {
		bucket := float64(len(data)) / float64(target)
		for i := 0; i < target; i++ {
			start := int(float64(i) * bucket)
			end := int(float64(i+1) * bucket)
			if end > len(data) {
				end = len(data)
			}
			if start >= end {
				start = end - 1
			}
			maxVal := data[start]
			for j := start + 1; j < end; j++ {
				if data[j] > maxVal {
					maxVal = data[j]
				}
			}
			out[i] = maxVal
		}
		return out
	}

	scale := float64(len(data)-1) / float64(target-1)
	for i := 0; i < target; i++ {
		pos := float64(i) * scale
		idx := int(pos)
		frac := pos - float64(idx)
		if idx >= len(data)-1 {
			out[i] = data[len(data)-1]
		} else {
			out[i] = data[idx]*(1-frac) + data[idx+1]*frac
		}
	}
	return out
}

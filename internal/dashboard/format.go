package dashboard

import (
	"fmt"
	"strconv"
	"strings"
)

// FormatBytes formats a byte count as a human-readable string.
func FormatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := uint64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	units := []string{"KB", "MB", "GB", "TB", "PB"}
	return fmt.Sprintf("%.1f %s", float64(bytes)/float64(div), units[exp])
}

// FormatBitsPerSec formats a bytes-per-second rate as bits per second with
// K/M/G suffixes: 500 B/s is 4000 bit/s, shown as "4K".
func FormatBitsPerSec(bytesPerSec float64) string {
	bits := bytesPerSec * 8
	switch {
	case bits < 1000:
		return fmt.Sprintf("%.0f", bits)
	case bits < 1e6:
		return trimTrailingZero(bits/1e3) + "K"
	case bits < 1e9:
		return trimTrailingZero(bits/1e6) + "M"
	default:
		return trimTrailingZero(bits/1e9) + "G"
	}
}

// FormatTokenRate formats a tokens-per-second value for the session table.
func FormatTokenRate(perSec float64) string {
	if perSec >= 1000 {
		return trimTrailingZero(perSec/1000) + "k tok/s"
	}
	return trimTrailingZero(perSec) + " tok/s"
}

// FormatCount abbreviates a large count: 1234567 becomes "1.2M".
func FormatCount(n int64) string {
	switch {
	case n >= 1_000_000:
		return trimTrailingZero(float64(n)/1e6) + "M"
	case n >= 1_000:
		return trimTrailingZero(float64(n)/1e3) + "k"
	default:
		return strconv.FormatInt(n, 10)
	}
}

func trimTrailingZero(v float64) string {
	return strings.TrimSuffix(strconv.FormatFloat(v, 'f', 1, 64), ".0")
}

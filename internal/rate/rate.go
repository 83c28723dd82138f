// Package rate computes throughput from monotonic counters.
//
// The same function serves network bytes/sec and per-session token
// throughput; only the minimum interval differs. Counters are monotonic by
// construction, so a decrease signals a process restart or counter wrap and
// yields "no rate" rather than a negative one.
package rate

import (
	"math"
	"time"
)

// MinTokenElapsed is the minimum interval for token-throughput samples.
const MinTokenElapsed = 100 * time.Millisecond

// Rate returns (curr-prev) per second, and whether a rate is available.
// No rate is available when elapsed is below minElapsed or when the counter
// did not increase. Callers with no previous sample must not call Rate at
// all, or pass curr <= prev which yields the same result.
func Rate(curr, prev float64, elapsed, minElapsed time.Duration) (float64, bool) {
	if elapsed < minElapsed {
		return 0, false
	}
	delta := curr - prev
	if delta <= 0 {
		return 0, false
	}
	secs := elapsed.Seconds()
	if secs <= 0 {
		return 0, false
	}
	return delta / secs, true
}

// Round1 rounds a rate to one decimal for display. Internal comparisons use
// the unrounded value.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}

package rate

import (
	"time"

	"github.com/agentop/agentop/internal/snapshot"
)

// Tracker maintains per-session token throughput across ticks.
//
// On a tick where a session's token count does not increase, the last
// computed rate is retained with Active=false instead of dropping to zero.
// Entries for sessions the runtime no longer reports are pruned.
type Tracker struct {
	minElapsed time.Duration
	state      map[string]snapshot.Throughput
}

// NewTracker creates a tracker with the given minimum sample interval.
// Zero or negative minElapsed falls back to MinTokenElapsed.
func NewTracker(minElapsed time.Duration) *Tracker {
	if minElapsed <= 0 {
		minElapsed = MinTokenElapsed
	}
	return &Tracker{
		minElapsed: minElapsed,
		state:      make(map[string]snapshot.Throughput),
	}
}

// Observe updates the tracker from the current and previous session lists
// and returns the resulting per-key throughput map. The returned map is a
// copy safe to store in a committed snapshot.
func (t *Tracker) Observe(curr, prev []snapshot.Session, elapsed time.Duration) map[string]snapshot.Throughput {
	seen := make(map[string]bool, len(curr))

	for _, s := range curr {
		seen[s.Key] = true

		p, ok := snapshot.FindSession(prev, s.Key)
		if !ok {
			// New session this tick: nothing to diff yet. An existing
			// entry (from a runtime restart reusing keys) goes inactive.
			t.deactivate(s.Key)
			continue
		}

		perSec, ok := Rate(float64(s.TotalTokens), float64(p.TotalTokens), elapsed, t.minElapsed)
		if ok {
			t.state[s.Key] = snapshot.Throughput{PerSecond: perSec, Active: true}
		} else {
			t.deactivate(s.Key)
		}
	}

	// Absence means deletion: drop state for sessions no longer reported.
	for key := range t.state {
		if !seen[key] {
			delete(t.state, key)
		}
	}

	out := make(map[string]snapshot.Throughput, len(t.state))
	for k, v := range t.state {
		out[k] = v
	}
	return out
}

// deactivate retains the last known value but marks it inactive. Keys with
// no prior rate get no entry at all.
func (t *Tracker) deactivate(key string) {
	if cur, ok := t.state[key]; ok {
		cur.Active = false
		t.state[key] = cur
	}
}

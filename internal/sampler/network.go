package sampler

import (
	"context"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/net"

	"github.com/agentop/agentop/internal/rate"
	"github.com/agentop/agentop/internal/snapshot"
)

// minNetworkElapsed guards against spurious rates from back-to-back samples.
// In practice the effective minimum is one full tick, since the sampler runs
// once per refresh cycle.
const minNetworkElapsed = 100 * time.Millisecond

// Network samples cumulative rx/tx counters for one interface and derives
// bytes/sec from the previous raw counters. The previous counters are scoped
// to the sampler; on the very first tick it returns counters only, no rate.
type Network struct {
	iface string

	prevRx   uint64
	prevTx   uint64
	prevAt   time.Time
	hasPrev  bool
	prevName string
}

// NewNetwork creates a network sampler. An empty iface selects the first
// non-loopback interface with traffic.
func NewNetwork(iface string) *Network {
	return &Network{iface: iface}
}

// Sample returns the current counters and, when a previous sample for the
// same interface exists, the derived rates. A counter decrease (interface
// reset) yields counters without rates, never a negative rate.
func (n *Network) Sample(ctx context.Context, now time.Time) snapshot.NetworkReading {
	counters, err := net.IOCountersWithContext(ctx, true)
	if err != nil || len(counters) == 0 {
		return snapshot.NetworkReading{Status: snapshot.SourceUnavailable, Interface: n.iface}
	}

	stat, ok := n.pick(counters)
	if !ok {
		return snapshot.NetworkReading{Status: snapshot.SourceUnavailable, Interface: n.iface}
	}

	reading := snapshot.NetworkReading{
		Status:    snapshot.SourceOK,
		Interface: stat.Name,
		RxBytes:   stat.BytesRecv,
		TxBytes:   stat.BytesSent,
	}

	if n.hasPrev && n.prevName == stat.Name {
		elapsed := now.Sub(n.prevAt)
		rx, rxOK := rate.Rate(float64(stat.BytesRecv), float64(n.prevRx), elapsed, minNetworkElapsed)
		tx, txOK := rate.Rate(float64(stat.BytesSent), float64(n.prevTx), elapsed, minNetworkElapsed)
		if rxOK || txOK {
			reading.HasRate = true
			if rxOK {
				reading.RxPerSec = rx
			}
			if txOK {
				reading.TxPerSec = tx
			}
		}
	}

	n.prevRx = stat.BytesRecv
	n.prevTx = stat.BytesSent
	n.prevAt = now
	n.prevName = stat.Name
	n.hasPrev = true

	return reading
}

// pick selects the configured interface, or the busiest non-loopback one.
func (n *Network) pick(counters []net.IOCountersStat) (net.IOCountersStat, bool) {
	if n.iface != "" {
		for _, c := range counters {
			if c.Name == n.iface {
				return c, true
			}
		}
		return net.IOCountersStat{}, false
	}

	var best net.IOCountersStat
	found := false
	for _, c := range counters {
		if isLoopback(c.Name) {
			continue
		}
		if !found || c.BytesRecv+c.BytesSent > best.BytesRecv+best.BytesSent {
			best = c
			found = true
		}
	}
	return best, found
}

func isLoopback(name string) bool {
	return name == "lo" || strings.HasPrefix(name, "lo0")
}

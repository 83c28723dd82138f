// Package history provides fixed-length rolling windows of metric samples
// for sparkline rendering. Buffers start zero-filled so the first render
// shows a flat line instead of an empty graph.
package history

// Default capacities per metric family.
const (
	CPUCapacity     = 60
	MemoryCapacity  = 60
	NetworkCapacity = 30
)

// Buffer is a fixed-capacity rolling window of samples, oldest first.
// Display-only: not persisted, not authoritative.
type Buffer struct {
	data []float64
}

// NewBuffer creates a zero-filled buffer with the given capacity.
func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = CPUCapacity
	}
	return &Buffer{data: make([]float64, capacity)}
}

// Push appends a value and drops the oldest, keeping length fixed.
func (b *Buffer) Push(value float64) {
	copy(b.data, b.data[1:])
	b.data[len(b.data)-1] = value
}

// Values returns the window oldest-first. The returned slice is a copy.
func (b *Buffer) Values() []float64 {
	out := make([]float64, len(b.data))
	copy(out, b.data)
	return out
}

// Last returns the most recent sample.
func (b *Buffer) Last() float64 {
	return b.data[len(b.data)-1]
}

// Len returns the fixed capacity of the buffer.
func (b *Buffer) Len() int {
	return len(b.data)
}

// Set groups the buffers the engine feeds every tick.
type Set struct {
	CPU    *Buffer
	Memory *Buffer
	NetRx  *Buffer
	NetTx  *Buffer
}

// NewSet creates the standard buffer set with per-metric capacities.
func NewSet() *Set {
	return &Set{
		CPU:    NewBuffer(CPUCapacity),
		Memory: NewBuffer(MemoryCapacity),
		NetRx:  NewBuffer(NetworkCapacity),
		NetTx:  NewBuffer(NetworkCapacity),
	}
}

package ingest

import (
	"sync"

	"tickflow/internal/market"
	"tickflow/internal/metrics"
)

const (
	// DefaultCapacity bounds each per-symbol buffer. Ticks are streaming
	// telemetry, not a ledger: when full, the oldest tick is evicted.
	DefaultCapacity = 10000

	// DefaultFlushThreshold is the number of pushes since the last drain
	// after which the buffer reports itself ready for a store flush.
	DefaultFlushThreshold = 100
)

// Buffer is a bounded FIFO of ticks for one symbol. Pushes never block
// and never fail; overflow evicts the oldest tick and counts the loss.
type Buffer struct {
	mu         sync.Mutex
	ticks      []market.Tick
	capacity   int
	threshold  int
	sinceDrain int
	dropped    int64
}

func NewBuffer(capacity, flushThreshold int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if flushThreshold <= 0 {
		flushThreshold = DefaultFlushThreshold
	}
	return &Buffer{
		ticks:     make([]market.Tick, 0, capacity),
		capacity:  capacity,
		threshold: flushThreshold,
	}
}

// Push appends a tick, evicting the oldest entry if the buffer is full.
// It reports whether the pushes since the last drain have reached the
// flush threshold, so the ingestion path can request an eager flush.
func (b *Buffer) Push(t market.Tick) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.ticks) >= b.capacity {
		b.ticks = b.ticks[1:]
		b.dropped++
		metrics.TicksDropped.WithLabelValues(t.Symbol).Inc()
	}
	b.ticks = append(b.ticks, t)
	b.sinceDrain++
	return b.sinceDrain >= b.threshold
}

// Drain atomically removes and returns all buffered ticks. Concurrent
// pushes during a drain land in the fresh buffer; nothing is lost or
// returned twice across consecutive drains.
func (b *Buffer) Drain() []market.Tick {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := b.ticks
	b.ticks = make([]market.Tick, 0, b.capacity)
	b.sinceDrain = 0
	return out
}

// Requeue puts ticks that failed to flush back at the head of the
// buffer so ordering is preserved for the next attempt. Overflow policy
// still applies: the combined length is trimmed from the oldest end.
func (b *Buffer) Requeue(ticks []market.Tick) {
	if len(ticks) == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	combined := make([]market.Tick, 0, len(ticks)+len(b.ticks))
	combined = append(combined, ticks...)
	combined = append(combined, b.ticks...)
	if over := len(combined) - b.capacity; over > 0 {
		for _, t := range combined[:over] {
			b.dropped++
			metrics.TicksDropped.WithLabelValues(t.Symbol).Inc()
		}
		combined = combined[over:]
	}
	b.ticks = combined
}

// Pending returns a copy of the buffered ticks without draining them.
// Used by readers that need the not-yet-flushed tail of a series.
func (b *Buffer) Pending() []market.Tick {
	b.mu.Lock()
	defer b.mu.Unlock()

	cp := make([]market.Tick, len(b.ticks))
	copy(cp, b.ticks)
	return cp
}

// NeedsFlush reports whether the push count since the last drain has
// reached the flush threshold.
func (b *Buffer) NeedsFlush() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sinceDrain >= b.threshold
}

// Len returns the current occupancy.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.ticks)
}

// Dropped returns the total number of ticks evicted under backpressure.
func (b *Buffer) Dropped() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

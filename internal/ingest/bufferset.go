package ingest

import (
	"sync"

	"tickflow/internal/market"
	"tickflow/internal/metrics"
)

// BufferSet is a symbol-partitioned collection of ingestion buffers.
// Ingestion paths for different symbols push concurrently; each push
// only takes the per-symbol lock after the fast read-lock lookup.
type BufferSet struct {
	globalMu  sync.RWMutex
	buffers   map[string]*Buffer
	capacity  int
	threshold int
}

func NewBufferSet(capacity, flushThreshold int) *BufferSet {
	return &BufferSet{
		buffers:   make(map[string]*Buffer),
		capacity:  capacity,
		threshold: flushThreshold,
	}
}

// Push routes a tick to its symbol's buffer, creating one on first use.
// It reports whether that buffer has crossed its flush threshold.
func (s *BufferSet) Push(t market.Tick) bool {
	b := s.buffer(t.Symbol)
	due := b.Push(t)
	metrics.TicksIngested.WithLabelValues(t.Symbol).Inc()
	metrics.BufferOccupancy.WithLabelValues(t.Symbol).Set(float64(b.Len()))
	return due
}

func (s *BufferSet) buffer(symbol string) *Buffer {
	// Fast path: read-lock lookup only
	s.globalMu.RLock()
	b, ok := s.buffers[symbol]
	s.globalMu.RUnlock()
	if ok {
		return b
	}

	s.globalMu.Lock()
	defer s.globalMu.Unlock()
	if b, ok = s.buffers[symbol]; !ok {
		b = NewBuffer(s.capacity, s.threshold)
		s.buffers[symbol] = b
	}
	return b
}

// Get returns the buffer for a symbol, or nil if none exists yet.
func (s *BufferSet) Get(symbol string) *Buffer {
	s.globalMu.RLock()
	defer s.globalMu.RUnlock()
	return s.buffers[symbol]
}

// Symbols returns the symbols that currently have a buffer.
func (s *BufferSet) Symbols() []string {
	s.globalMu.RLock()
	defer s.globalMu.RUnlock()

	out := make([]string, 0, len(s.buffers))
	for sym := range s.buffers {
		out = append(out, sym)
	}
	return out
}

// Len returns the total occupancy across all symbols.
func (s *BufferSet) Len() int {
	s.globalMu.RLock()
	defer s.globalMu.RUnlock()

	total := 0
	for _, b := range s.buffers {
		total += b.Len()
	}
	return total
}

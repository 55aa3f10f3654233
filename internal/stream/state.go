package stream

import (
	"sort"
	"sync"

	"tickflow/internal/market"
)

// State is the explicit, injectable stream state: which symbols are
// tracked, their connection status, and the latest tick per symbol.
// Lifecycle is bound to Begin/Reset, not process start; a Reset fully
// discards tracked symbols so a later Begin starts clean.
type State struct {
	mu        sync.RWMutex
	running   bool
	symbols   []string
	connected map[string]bool
	latest    map[string]market.Tick
	tickCount map[string]int64
}

func NewState() *State {
	return &State{
		connected: make(map[string]bool),
		latest:    make(map[string]market.Tick),
		tickCount: make(map[string]int64),
	}
}

// Begin marks the stream running for a fresh symbol set. The set
// replaces any previous one.
func (s *State) Begin(symbols []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.running = true
	s.symbols = append([]string(nil), symbols...)
	sort.Strings(s.symbols)
	s.connected = make(map[string]bool, len(symbols))
	s.latest = make(map[string]market.Tick, len(symbols))
	s.tickCount = make(map[string]int64, len(symbols))
}

// Reset discards all tracked state. Called on stream stop.
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.running = false
	s.symbols = nil
	s.connected = make(map[string]bool)
	s.latest = make(map[string]market.Tick)
	s.tickCount = make(map[string]int64)
}

// Running reports whether a stream is active.
func (s *State) Running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Symbols returns the tracked symbol set.
func (s *State) Symbols() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.symbols...)
}

// SetConnected updates one symbol's feed status. A disconnect for one
// symbol never affects the others.
func (s *State) SetConnected(symbol string, connected bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected[symbol] = connected
}

// RecordTick updates the latest-tick view and tick counter.
func (s *State) RecordTick(t market.Tick) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest[t.Symbol] = t
	s.tickCount[t.Symbol]++
}

// LatestTicks returns the single most recent tick per tracked symbol.
func (s *State) LatestTicks() map[string]market.Tick {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]market.Tick, len(s.latest))
	for sym, t := range s.latest {
		out[sym] = t
	}
	return out
}

// LatestTick returns the most recent tick for one symbol.
func (s *State) LatestTick(symbol string) (market.Tick, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.latest[symbol]
	return t, ok
}

// Status assembles the externally visible stream snapshot. Buffer
// occupancy and drop counts are supplied by the caller per symbol.
func (s *State) Status(occupancy func(symbol string) (size int, dropped int64)) market.StreamStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := market.StreamStatus{
		Running: s.running,
		Symbols: append([]string(nil), s.symbols...),
	}
	for _, sym := range s.symbols {
		size, dropped := 0, int64(0)
		if occupancy != nil {
			size, dropped = occupancy(sym)
		}
		status.PerSymbol = append(status.PerSymbol, market.SymbolStatus{
			Symbol:       sym,
			Connected:    s.connected[sym],
			TickCount:    s.tickCount[sym],
			BufferSize:   size,
			DroppedTicks: dropped,
		})
		status.TickCount += s.tickCount[sym]
	}
	return status
}

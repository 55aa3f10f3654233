package resample

import (
	"sync"

	"tickflow/internal/market"
)

// series is the arena for one (symbol, interval): an append-only slice
// of closed bars plus exactly one mutable live-bucket accumulator. The
// live bar is swapped into the closed slice on bucket rollover.
type series struct {
	mu     sync.Mutex
	closed []market.Bar
	live   *market.Bar
	max    int // closed bars retained in memory
}

func (s *series) apply(t market.Tick, interval market.Interval) {
	bucket := interval.BucketStart(t.Timestamp)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.live != nil && bucket.After(s.live.BucketStart) {
		s.closed = append(s.closed, *s.live)
		if len(s.closed) > s.max {
			s.closed = s.closed[len(s.closed)-s.max:]
		}
		s.live = nil
	}

	if s.live == nil {
		s.live = &market.Bar{
			Symbol:      t.Symbol,
			Interval:    interval,
			BucketStart: bucket,
			Open:        t.Price,
			High:        t.Price,
			Low:         t.Price,
			Close:       t.Price,
			Volume:      t.Size,
		}
		return
	}

	// Late tick for an already-closed bucket. Folding it into the live
	// bar would corrupt the extrema, so drop it; the store still has it
	// for historical queries.
	if bucket.Before(s.live.BucketStart) {
		return
	}

	if t.Price > s.live.High {
		s.live.High = t.Price
	}
	if t.Price < s.live.Low {
		s.live.Low = t.Price
	}
	s.live.Close = t.Price
	s.live.Volume += t.Size
}

// window returns up to n most recent bars, live bar last.
func (s *series) window(n int) []market.Bar {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := len(s.closed)
	if s.live != nil {
		total++
	}
	if n <= 0 || n > total {
		n = total
	}

	out := make([]market.Bar, 0, n)
	fromClosed := n
	if s.live != nil {
		fromClosed--
	}
	if fromClosed > 0 {
		out = append(out, s.closed[len(s.closed)-fromClosed:]...)
	}
	if s.live != nil && n > 0 {
		out = append(out, *s.live)
	}
	return out
}

// SeriesSet maintains live-bar accumulators for every tracked
// (symbol, interval) pair, keeping per-tick cost O(1) amortized so the
// broadcast path never rescans the store for its stats window.
type SeriesSet struct {
	globalMu  sync.RWMutex
	data      map[string]*series // keyed by symbol + "/" + interval
	intervals []market.Interval
	maxClosed int
}

func NewSeriesSet(intervals []market.Interval, maxClosed int) *SeriesSet {
	if maxClosed <= 0 {
		maxClosed = 500
	}
	return &SeriesSet{
		data:      make(map[string]*series),
		intervals: intervals,
		maxClosed: maxClosed,
	}
}

// Apply extends the live bar of every configured interval with a tick.
func (ss *SeriesSet) Apply(t market.Tick) {
	for _, interval := range ss.intervals {
		ss.seriesFor(t.Symbol, interval).apply(t, interval)
	}
}

// Window returns up to n most recent bars for (symbol, interval),
// including the live bar. Nil when the symbol has no series yet.
func (ss *SeriesSet) Window(symbol string, interval market.Interval, n int) []market.Bar {
	ss.globalMu.RLock()
	s, ok := ss.data[key(symbol, interval)]
	ss.globalMu.RUnlock()
	if !ok {
		return nil
	}
	return s.window(n)
}

// Reset discards all series. Called on stream stop so a later start has
// no residual state.
func (ss *SeriesSet) Reset() {
	ss.globalMu.Lock()
	defer ss.globalMu.Unlock()
	ss.data = make(map[string]*series)
}

func (ss *SeriesSet) seriesFor(symbol string, interval market.Interval) *series {
	k := key(symbol, interval)

	// Fast path: read-lock lookup only
	ss.globalMu.RLock()
	s, ok := ss.data[k]
	ss.globalMu.RUnlock()
	if ok {
		return s
	}

	ss.globalMu.Lock()
	defer ss.globalMu.Unlock()
	if s, ok = ss.data[k]; !ok {
		s = &series{max: ss.maxClosed}
		ss.data[k] = s
	}
	return s
}

func key(symbol string, interval market.Interval) string {
	return symbol + "/" + string(interval)
}

package ingest

import (
	"context"
	"sync"
	"time"

	"tickflow/internal/market"
	"tickflow/internal/metrics"

	"go.uber.org/zap"
)

// TickAppender is the durable store consumed by the flush task.
type TickAppender interface {
	AppendTicks(ctx context.Context, ticks []market.Tick) (int, error)
}

// Flusher periodically drains every buffer and appends the ticks to the
// store. A failed append requeues the unwritten tail and backs off that
// symbol exponentially; other symbols are unaffected.
type Flusher struct {
	buffers  *BufferSet
	store    TickAppender
	interval time.Duration
	logger   *zap.Logger
	kick     chan struct{}

	mu      sync.Mutex
	backoff map[string]backoffState
}

type backoffState struct {
	failures    int
	nextAttempt time.Time
}

const (
	flushBackoffBase = time.Second
	flushBackoffMax  = 30 * time.Second
	maxFlushAttempts = 6
)

func NewFlusher(buffers *BufferSet, store TickAppender, interval time.Duration, logger *zap.Logger) *Flusher {
	if interval <= 0 {
		interval = time.Second
	}
	return &Flusher{
		buffers:  buffers,
		store:    store,
		interval: interval,
		logger:   logger,
		kick:     make(chan struct{}, 1),
		backoff:  make(map[string]backoffState),
	}
}

// Kick requests an eager flush of buffers that crossed their flush
// threshold. Non-blocking; a pending request coalesces with later ones.
func (f *Flusher) Kick() {
	select {
	case f.kick <- struct{}{}:
	default:
	}
}

// Run flushes on a fixed interval, or eagerly when kicked by a buffer
// crossing its threshold, until the context is cancelled. A final
// best-effort flush runs before returning.
func (f *Flusher) Run(ctx context.Context) {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			f.FlushAll(context.Background())
			return
		case <-f.kick:
			f.flush(ctx, true)
		case <-ticker.C:
			f.flush(ctx, false)
		}
	}
}

// FlushAll drains and persists every symbol's buffer. Symbols flush in
// parallel; per-symbol appends stay ordered because each symbol is
// handled by exactly one goroutine per cycle.
func (f *Flusher) FlushAll(ctx context.Context) {
	f.flush(ctx, false)
}

func (f *Flusher) flush(ctx context.Context, thresholdOnly bool) {
	var wg sync.WaitGroup
	sem := make(chan struct{}, 5) // max 5 concurrent symbol flushes

	for _, symbol := range f.buffers.Symbols() {
		if !f.attemptDue(symbol) {
			continue
		}
		buf := f.buffers.Get(symbol)
		if buf == nil || buf.Len() == 0 {
			continue
		}
		if thresholdOnly && !buf.NeedsFlush() {
			continue
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(symbol string, buf *Buffer) {
			defer wg.Done()
			defer func() { <-sem }()
			f.flushSymbol(ctx, symbol, buf)
		}(symbol, buf)
	}
	wg.Wait()
}

func (f *Flusher) flushSymbol(ctx context.Context, symbol string, buf *Buffer) {
	ticks := buf.Drain()
	if len(ticks) == 0 {
		return
	}

	written, err := f.store.AppendTicks(ctx, ticks)
	if err != nil {
		metrics.FlushFailures.Inc()
		// Unwritten ticks go back to the buffer head for the next attempt.
		buf.Requeue(ticks[written:])
		f.recordFailure(symbol)
		f.logger.Warn("store flush failed",
			zap.String("symbol", symbol),
			zap.Int("written", written),
			zap.Int("requeued", len(ticks)-written),
			zap.Error(err))
		return
	}

	f.recordSuccess(symbol)
	metrics.BufferOccupancy.WithLabelValues(symbol).Set(float64(buf.Len()))
	f.logger.Debug("flushed ticks",
		zap.String("symbol", symbol),
		zap.Int("count", written))
}

func (f *Flusher) attemptDue(symbol string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, ok := f.backoff[symbol]
	if !ok {
		return true
	}
	return time.Now().After(st.nextAttempt)
}

func (f *Flusher) recordFailure(symbol string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	st := f.backoff[symbol]
	if st.failures < maxFlushAttempts {
		st.failures++
	}
	delay := flushBackoffBase << (st.failures - 1)
	if delay > flushBackoffMax {
		delay = flushBackoffMax
	}
	st.nextAttempt = time.Now().Add(delay)
	f.backoff[symbol] = st
}

func (f *Flusher) recordSuccess(symbol string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.backoff, symbol)
}

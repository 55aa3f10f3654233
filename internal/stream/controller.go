package stream

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"tickflow/internal/ingest"
	"tickflow/internal/market"
	"tickflow/internal/resample"
	"tickflow/internal/stats"

	"go.uber.org/zap"
)

var (
	ErrAlreadyRunning = errors.New("stream already running")
	ErrNotRunning     = errors.New("stream not running")
)

// TickStore is the durable tick log consumed by the controller.
type TickStore interface {
	ingest.TickAppender
	QueryTicks(ctx context.Context, symbol string, start, end time.Time, limit int) ([]market.Tick, error)
}

// Backfiller fetches recent history for a symbol before the live
// stream settles. Optional; nil disables backfill.
type Backfiller interface {
	RecentTrades(ctx context.Context, symbol string, limit int) ([]market.Tick, error)
}

// Feed is one symbol's ingestion path. Run blocks until cancellation
// or exhausted reconnect attempts.
type Feed interface {
	Run(ctx context.Context) error
}

// FeedFactory builds the feed for a symbol, wiring the given tick
// handler into it.
type FeedFactory func(symbol string, handler func(market.Tick)) Feed

// Options tunes the engine. Zero values fall back to defaults.
type Options struct {
	BufferCapacity int
	FlushThreshold int
	FlushInterval  time.Duration
	Intervals      []market.Interval
	MaxClosedBars  int
	BackfillLimit  int
}

func (o *Options) withDefaults() {
	if o.BufferCapacity <= 0 {
		o.BufferCapacity = ingest.DefaultCapacity
	}
	if o.FlushThreshold <= 0 {
		o.FlushThreshold = ingest.DefaultFlushThreshold
	}
	if o.FlushInterval <= 0 {
		o.FlushInterval = time.Second
	}
	if len(o.Intervals) == 0 {
		o.Intervals = []market.Interval{market.Interval1s, market.Interval1m, market.Interval5m}
	}
	if o.BackfillLimit <= 0 {
		o.BackfillLimit = 500
	}
}

// Controller owns the streaming lifecycle: per-symbol feed goroutines,
// the shared ingestion buffers, the flush task, and the live bar
// series. Start replaces the full tracked set; Stop tears everything
// down after a best-effort final flush.
type Controller struct {
	store      TickStore
	feeds      FeedFactory
	backfiller Backfiller
	state      *State
	opts       Options
	logger     *zap.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	buffers *ingest.BufferSet
	series  *resample.SeriesSet
	flusher *ingest.Flusher
}

func NewController(store TickStore, feeds FeedFactory, backfiller Backfiller, state *State, opts Options, logger *zap.Logger) *Controller {
	opts.withDefaults()
	return &Controller{
		store:      store,
		feeds:      feeds,
		backfiller: backfiller,
		state:      state,
		opts:       opts,
		logger:     logger,
	}
}

// Start begins tracking the given symbols. The set replaces any
// previous one; Start fails if a stream is already running.
func (c *Controller) Start(symbols []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		return ErrAlreadyRunning
	}
	if len(symbols) == 0 {
		return fmt.Errorf("no symbols provided")
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})
	c.buffers = ingest.NewBufferSet(c.opts.BufferCapacity, c.opts.FlushThreshold)
	c.series = resample.NewSeriesSet(c.opts.Intervals, c.opts.MaxClosedBars)
	c.state.Begin(symbols)

	var wg sync.WaitGroup
	for _, symbol := range c.state.Symbols() {
		wg.Add(1)
		go func(symbol string) {
			defer wg.Done()
			c.runSymbol(ctx, symbol)
		}(symbol)
	}

	c.flusher = ingest.NewFlusher(c.buffers, c.store, c.opts.FlushInterval, c.logger)
	flusher := c.flusher
	wg.Add(1)
	go func() {
		defer wg.Done()
		flusher.Run(ctx)
	}()

	done := c.done
	go func() {
		wg.Wait()
		close(done)
	}()

	c.logger.Info("stream started", zap.Strings("symbols", c.state.Symbols()))
	return nil
}

// Stop cancels all ingestion paths, waits for the final flush, and
// discards every buffer and series.
func (c *Controller) Stop() error {
	c.mu.Lock()
	if c.cancel == nil {
		c.mu.Unlock()
		return ErrNotRunning
	}
	cancel, done, series := c.cancel, c.done, c.series
	// Clear references first so ticks from feeds still draining their
	// last frames are dropped instead of landing in dead buffers.
	c.cancel, c.done = nil, nil
	c.buffers, c.series, c.flusher = nil, nil, nil
	c.mu.Unlock()

	cancel()
	<-done

	series.Reset()
	c.state.Reset()

	c.logger.Info("stream stopped")
	return nil
}

func (c *Controller) runSymbol(ctx context.Context, symbol string) {
	if c.backfiller != nil {
		c.backfill(ctx, symbol)
	}

	c.state.SetConnected(symbol, true)
	feed := c.feeds(symbol, c.onTick)
	err := feed.Run(ctx)
	c.state.SetConnected(symbol, false)

	if err != nil && !errors.Is(err, context.Canceled) {
		c.logger.Error("ingestion path ended",
			zap.String("symbol", symbol),
			zap.Error(err))
	}
}

// backfill loads recent history straight into the store; the
// idempotent append makes overlap with the live stream harmless.
func (c *Controller) backfill(ctx context.Context, symbol string) {
	ticks, err := c.backfiller.RecentTrades(ctx, symbol, c.opts.BackfillLimit)
	if err != nil {
		c.logger.Warn("backfill failed",
			zap.String("symbol", symbol),
			zap.Error(err))
		return
	}

	resample.SortTicks(ticks)
	if _, err := c.store.AppendTicks(ctx, ticks); err != nil {
		c.logger.Warn("backfill store append failed",
			zap.String("symbol", symbol),
			zap.Error(err))
		return
	}
	c.logger.Info("backfilled recent trades",
		zap.String("symbol", symbol),
		zap.Int("count", len(ticks)))
}

func (c *Controller) onTick(t market.Tick) {
	c.mu.Lock()
	buffers, series, flusher := c.buffers, c.series, c.flusher
	c.mu.Unlock()
	if buffers == nil {
		return // stopped while a feed was draining its last frames
	}

	if buffers.Push(t) && flusher != nil {
		flusher.Kick()
	}
	series.Apply(t)
	c.state.RecordTick(t)
}

// Status reports the stream snapshot including buffer occupancy.
func (c *Controller) Status() market.StreamStatus {
	c.mu.Lock()
	buffers := c.buffers
	c.mu.Unlock()

	return c.state.Status(func(symbol string) (int, int64) {
		if buffers == nil {
			return 0, 0
		}
		b := buffers.Get(symbol)
		if b == nil {
			return 0, 0
		}
		return b.Len(), b.Dropped()
	})
}

// LatestTicks returns the most recent tick per tracked symbol.
func (c *Controller) LatestTicks() map[string]market.Tick {
	return c.state.LatestTicks()
}

// Ticks queries the durable log. Start inclusive, end exclusive;
// limit <= 0 returns the full range.
func (c *Controller) Ticks(ctx context.Context, symbol string, start, end time.Time, limit int) ([]market.Tick, error) {
	return c.store.QueryTicks(ctx, symbol, start, end, limit)
}

// Bars reconstructs OHLCV bars from the store plus the still-unflushed
// buffer tail. limit returns the most recent bars, not the first.
func (c *Controller) Bars(ctx context.Context, symbol string, interval market.Interval, start, end time.Time, limit int) ([]market.Bar, error) {
	if !interval.IsValid() {
		return nil, fmt.Errorf("invalid interval: %s", interval)
	}

	stored, err := c.store.QueryTicks(ctx, symbol, start, end, 0)
	if err != nil {
		return nil, err
	}

	ticks := stored
	if pending := c.pendingTicks(symbol, start, end); len(pending) > 0 {
		seen := make(map[string]struct{}, len(stored))
		for _, t := range stored {
			seen[t.TradeID] = struct{}{}
		}
		for _, t := range pending {
			if _, dup := seen[t.TradeID]; !dup {
				ticks = append(ticks, t)
			}
		}
		resample.SortTicks(ticks)
	}

	bars := resample.BuildBars(ticks, interval)
	return resample.Tail(bars, limit), nil
}

// BarWindow returns the n most recent in-memory bars for a symbol,
// live bar included. This is the O(1)-per-tick path the broadcast
// cycle uses; it never touches the store.
func (c *Controller) BarWindow(symbol string, interval market.Interval, n int) []market.Bar {
	c.mu.Lock()
	series := c.series
	c.mu.Unlock()
	if series == nil {
		return nil
	}
	return series.Window(symbol, interval, n)
}

// Summary computes descriptive statistics over stored tick prices for
// a range.
func (c *Controller) Summary(ctx context.Context, symbol string, start, end time.Time) (market.SummaryStatistics, error) {
	ticks, err := c.store.QueryTicks(ctx, symbol, start, end, 0)
	if err != nil {
		return market.SummaryStatistics{}, err
	}
	if len(ticks) == 0 {
		return market.SummaryStatistics{}, fmt.Errorf("no data for symbol %s", symbol)
	}

	prices := make([]float64, len(ticks))
	for i, t := range ticks {
		prices[i] = t.Price
	}
	min, max := stats.MinMax(prices)

	return market.SummaryStatistics{
		Symbol: symbol,
		Count:  len(ticks),
		Mean:   stats.Mean(prices),
		StdDev: stats.StdDev(prices),
		Min:    min,
		Max:    max,
		Start:  ticks[0].Timestamp,
		End:    ticks[len(ticks)-1].Timestamp,
	}, nil
}

func (c *Controller) pendingTicks(symbol string, start, end time.Time) []market.Tick {
	c.mu.Lock()
	buffers := c.buffers
	c.mu.Unlock()
	if buffers == nil {
		return nil
	}
	b := buffers.Get(symbol)
	if b == nil {
		return nil
	}

	var out []market.Tick
	for _, t := range b.Pending() {
		if !start.IsZero() && t.Timestamp.Before(start) {
			continue
		}
		if !end.IsZero() && !t.Timestamp.Before(end) {
			continue
		}
		out = append(out, t)
	}
	return out
}

package broadcast

import (
	"context"
	"sync"
	"time"

	"tickflow/internal/alert"
	"tickflow/internal/market"
	"tickflow/internal/resample"
	"tickflow/internal/stats"

	"go.uber.org/zap"
)

// Engine is the read side of the streaming core consumed by the
// coordinator.
type Engine interface {
	Status() market.StreamStatus
	LatestTicks() map[string]market.Tick
	BarWindow(symbol string, interval market.Interval, n int) []market.Bar
}

// CustomMetricFunc resolves a "custom" alert metric. Second return
// false skips the rule for the cycle.
type CustomMetricFunc func(rule alert.Rule) (float64, bool)

// Options tunes the broadcast cycle.
type Options struct {
	Cadence       time.Duration // snapshot interval, decoupled from tick rate
	CycleBudget   time.Duration // hard ceiling for one cycle's stats work
	StatsInterval market.Interval
	StatsWindow   int // bars per symbol fed into the statistics engine
	SubscriberBuf int
}

func (o *Options) withDefaults() {
	if o.Cadence <= 0 {
		o.Cadence = 500 * time.Millisecond
	}
	if o.CycleBudget <= 0 {
		o.CycleBudget = o.Cadence
	}
	if !o.StatsInterval.IsValid() {
		o.StatsInterval = market.Interval1m
	}
	if o.StatsWindow <= 0 {
		o.StatsWindow = 20
	}
	if o.SubscriberBuf <= 0 {
		o.SubscriberBuf = 8
	}
}

// Coordinator assembles a consolidated snapshot at a fixed cadence and
// fans it out to subscribers. Delivery never blocks: a slow or absent
// subscriber loses snapshots, not the ingestion path.
type Coordinator struct {
	engine    Engine
	evaluator *alert.Evaluator
	custom    CustomMetricFunc
	opts      Options
	logger    *zap.Logger

	mu   sync.Mutex
	subs map[chan market.Snapshot]struct{}
}

func NewCoordinator(engine Engine, evaluator *alert.Evaluator, custom CustomMetricFunc, opts Options, logger *zap.Logger) *Coordinator {
	opts.withDefaults()
	return &Coordinator{
		engine:    engine,
		evaluator: evaluator,
		custom:    custom,
		opts:      opts,
		logger:    logger,
		subs:      make(map[chan market.Snapshot]struct{}),
	}
}

// Subscribe registers a snapshot receiver. The returned cancel func
// must be called when the subscriber goes away.
func (c *Coordinator) Subscribe() (<-chan market.Snapshot, func()) {
	ch := make(chan market.Snapshot, c.opts.SubscriberBuf)

	c.mu.Lock()
	c.subs[ch] = struct{}{}
	c.mu.Unlock()

	cancel := func() {
		c.mu.Lock()
		delete(c.subs, ch)
		c.mu.Unlock()
	}
	return ch, cancel
}

// Run emits snapshots at the configured cadence until the context is
// cancelled.
func (c *Coordinator) Run(ctx context.Context) {
	ticker := time.NewTicker(c.opts.Cadence)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.publish(c.Cycle(ctx))
		}
	}
}

// Cycle assembles one snapshot: stream status, latest ticks, and the
// alert events produced by evaluating rules against this cycle's
// metrics. Assembly proceeds whether or not subscribers exist.
func (c *Coordinator) Cycle(ctx context.Context) market.Snapshot {
	now := time.Now().UTC()
	status := c.engine.Status()
	latest := c.engine.LatestTicks()
	values := c.collectMetrics(ctx, status.Symbols)

	var events []market.AlertTriggerEvent
	if c.evaluator != nil {
		events = c.evaluator.Evaluate(ctx, c.valueFunc(values), now)
	}

	analytics := make(map[string]market.SymbolAnalytics, len(values))
	for sym, m := range values {
		if !m.hasPrice && !m.hasStats {
			continue
		}
		analytics[sym] = market.SymbolAnalytics{
			Symbol:        sym,
			Price:         m.price,
			ZScore:        m.zScore,
			Volatility:    m.volatility,
			PercentChange: m.percentChange,
		}
	}

	return market.Snapshot{
		Stream:      status,
		LatestTicks: latest,
		Analytics:   analytics,
		Alerts:      events,
		Timestamp:   now,
	}
}

type symbolMetrics struct {
	price         float64
	hasPrice      bool
	zScore        float64
	volatility    float64
	percentChange float64
	hasStats      bool
}

// collectMetrics computes per-symbol statistics in parallel under the
// cycle budget. A symbol that misses the deadline is dropped from this
// cycle instead of starving the others.
func (c *Coordinator) collectMetrics(ctx context.Context, symbols []string) map[string]symbolMetrics {
	budget, cancel := context.WithTimeout(ctx, c.opts.CycleBudget)
	defer cancel()

	type result struct {
		symbol string
		m      symbolMetrics
	}
	results := make(chan result, len(symbols))

	for _, symbol := range symbols {
		go func(symbol string) {
			results <- result{symbol, c.symbolMetrics(symbol)}
		}(symbol)
	}

	out := make(map[string]symbolMetrics, len(symbols))
	for range symbols {
		select {
		case r := <-results:
			out[r.symbol] = r.m
		case <-budget.Done():
			c.logger.Warn("broadcast cycle budget exhausted",
				zap.Int("collected", len(out)),
				zap.Int("expected", len(symbols)))
			return out
		}
	}
	return out
}

func (c *Coordinator) symbolMetrics(symbol string) symbolMetrics {
	var m symbolMetrics

	if t, ok := c.engine.LatestTicks()[symbol]; ok {
		m.price = t.Price
		m.hasPrice = true
	}

	bars := c.engine.BarWindow(symbol, c.opts.StatsInterval, c.opts.StatsWindow)
	if len(bars) == 0 {
		return m
	}

	closes := resample.Closes(bars)
	mean := stats.Mean(closes)
	std := stats.StdDev(closes)

	price := closes[len(closes)-1]
	if m.hasPrice {
		price = m.price
	}

	m.zScore = stats.ZScore(price, mean, std)
	m.volatility = stats.Volatility(closes, c.opts.StatsInterval.AnnualizationFactor())
	m.percentChange = stats.PercentChange(price, mean)
	m.hasStats = true
	return m
}

// PairSpread resolves custom rules as the percent spread of the rule's
// primary symbol over its second leg, from the latest tick prices. A
// rule without both legs priced is skipped for the cycle.
func PairSpread(engine Engine) CustomMetricFunc {
	return func(rule alert.Rule) (float64, bool) {
		if rule.Symbol2 == "" {
			return 0, false
		}
		latest := engine.LatestTicks()
		a, okA := latest[rule.Symbol]
		b, okB := latest[rule.Symbol2]
		if !okA || !okB || b.Price == 0 {
			return 0, false
		}
		return (a.Price - b.Price) / b.Price * 100, true
	}
}

func (c *Coordinator) valueFunc(values map[string]symbolMetrics) alert.ValueFunc {
	return func(rule alert.Rule) (float64, bool) {
		if rule.Metric == alert.MetricCustom {
			if c.custom == nil {
				return 0, false
			}
			return c.custom(rule)
		}

		m, ok := values[rule.Symbol]
		if !ok {
			return 0, false
		}
		switch rule.Metric {
		case alert.MetricPrice:
			return m.price, m.hasPrice
		case alert.MetricZScore:
			return m.zScore, m.hasStats
		case alert.MetricVolatility:
			return m.volatility, m.hasStats
		default:
			return 0, false
		}
	}
}

func (c *Coordinator) publish(snap market.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for ch := range c.subs {
		select {
		case ch <- snap:
		default:
			// Subscriber is behind; drop the snapshot for it.
		}
	}
}

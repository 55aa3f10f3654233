package broadcast

import (
	"context"
	"testing"
	"time"

	"tickflow/internal/alert"
	"tickflow/internal/market"

	"go.uber.org/zap"
)

type fakeEngine struct {
	status market.StreamStatus
	latest map[string]market.Tick
	bars   map[string][]market.Bar
}

func (e *fakeEngine) Status() market.StreamStatus            { return e.status }
func (e *fakeEngine) LatestTicks() map[string]market.Tick    { return e.latest }
func (e *fakeEngine) BarWindow(symbol string, interval market.Interval, n int) []market.Bar {
	return e.bars[symbol]
}

type staticRules struct{ rules []alert.Rule }

func (s *staticRules) ListEnabledRules(ctx context.Context) ([]alert.Rule, error) {
	return s.rules, nil
}

type nopSink struct{}

func (nopSink) RecordTrigger(ctx context.Context, ruleID int64, at time.Time) error { return nil }

func barsWithCloses(symbol string, closes ...float64) []market.Bar {
	base := time.Unix(0, 0).UTC()
	out := make([]market.Bar, len(closes))
	for i, c := range closes {
		out[i] = market.Bar{
			Symbol:      symbol,
			Interval:    market.Interval1m,
			BucketStart: base.Add(time.Duration(i) * time.Minute),
			Open:        c, High: c, Low: c, Close: c, Volume: 1,
		}
	}
	return out
}

func testEngine() *fakeEngine {
	return &fakeEngine{
		status: market.StreamStatus{
			Running: true,
			Symbols: []string{"BTCUSDT"},
		},
		latest: map[string]market.Tick{
			"BTCUSDT": {Symbol: "BTCUSDT", Price: 125, TradeID: "9"},
		},
		bars: map[string][]market.Bar{
			"BTCUSDT": barsWithCloses("BTCUSDT", 90, 95, 100, 105, 110),
		},
	}
}

// go test -v --run TestCycleAssemblesSnapshot
func TestCycleAssemblesSnapshot(t *testing.T) {
	engine := testEngine()
	evaluator := alert.NewEvaluator(&staticRules{rules: []alert.Rule{
		{ID: 1, Name: "price breakout", Metric: alert.MetricPrice, Operator: alert.OpGreater,
			Threshold: 120, Symbol: "BTCUSDT", Enabled: true},
	}}, nopSink{}, 0, zap.NewNop())

	c := NewCoordinator(engine, evaluator, nil, Options{}, zap.NewNop())

	snap := c.Cycle(context.Background())
	if !snap.Stream.Running {
		t.Error("snapshot should carry stream status")
	}
	if snap.LatestTicks["BTCUSDT"].Price != 125 {
		t.Errorf("latest tick missing: %+v", snap.LatestTicks)
	}
	if len(snap.Alerts) != 1 || snap.Alerts[0].RuleID != 1 {
		t.Fatalf("expected the price rule to trigger, got %+v", snap.Alerts)
	}
	if snap.Alerts[0].Value != 125 {
		t.Errorf("trigger value = %f, want 125", snap.Alerts[0].Value)
	}

	// closes 90..110: mean=100, live price 125 → +25% vs the window mean
	a, ok := snap.Analytics["BTCUSDT"]
	if !ok {
		t.Fatal("expected analytics for BTCUSDT")
	}
	if a.Price != 125 {
		t.Errorf("analytics price = %f, want 125", a.Price)
	}
	if a.PercentChange < 24.9 || a.PercentChange > 25.1 {
		t.Errorf("percent change = %f, want ~25", a.PercentChange)
	}
	if a.ZScore == 0 || a.Volatility == 0 {
		t.Errorf("expected window stats in analytics: %+v", a)
	}

	// Next cycle: condition still true, debounced.
	snap = c.Cycle(context.Background())
	if len(snap.Alerts) != 0 {
		t.Errorf("expected debounced second cycle, got %d alerts", len(snap.Alerts))
	}
}

// go test -v --run TestCycleZScoreMetric
func TestCycleZScoreMetric(t *testing.T) {
	engine := testEngine()
	// closes 90..110: mean=100, population std ~7.07; live price 125 → z ~3.54
	evaluator := alert.NewEvaluator(&staticRules{rules: []alert.Rule{
		{ID: 2, Name: "z spike", Metric: alert.MetricZScore, Operator: alert.OpGreater,
			Threshold: 3, Symbol: "BTCUSDT", Enabled: true},
	}}, nopSink{}, 0, zap.NewNop())

	c := NewCoordinator(engine, evaluator, nil, Options{}, zap.NewNop())

	snap := c.Cycle(context.Background())
	if len(snap.Alerts) != 1 {
		t.Fatalf("expected z-score rule to trigger, got %+v", snap.Alerts)
	}
	if z := snap.Alerts[0].Value; z < 3.5 || z > 3.6 {
		t.Errorf("z-score = %f, want ~3.54", z)
	}
}

// go test -v --run TestCustomMetricDispatch
func TestCustomMetricDispatch(t *testing.T) {
	engine := testEngine()
	evaluator := alert.NewEvaluator(&staticRules{rules: []alert.Rule{
		{ID: 3, Name: "spread wide", Metric: alert.MetricCustom, Operator: alert.OpGreater,
			Threshold: 1, Symbol: "BTCUSDT", Symbol2: "ETHUSDT", Enabled: true},
	}}, nopSink{}, 0, zap.NewNop())

	custom := func(rule alert.Rule) (float64, bool) { return 2.5, true }
	c := NewCoordinator(engine, evaluator, custom, Options{}, zap.NewNop())

	snap := c.Cycle(context.Background())
	if len(snap.Alerts) != 1 || snap.Alerts[0].Value != 2.5 {
		t.Fatalf("expected custom metric trigger, got %+v", snap.Alerts)
	}
}

// go test -v --run TestPairSpread
func TestPairSpread(t *testing.T) {
	engine := testEngine()
	engine.latest["ETHUSDT"] = market.Tick{Symbol: "ETHUSDT", Price: 100, TradeID: "5"}

	resolve := PairSpread(engine)

	// BTC 125 over ETH 100 → +25%
	v, ok := resolve(alert.Rule{Metric: alert.MetricCustom, Symbol: "BTCUSDT", Symbol2: "ETHUSDT"})
	if !ok || v != 25 {
		t.Fatalf("spread = %f (ok=%v), want 25", v, ok)
	}

	if _, ok := resolve(alert.Rule{Metric: alert.MetricCustom, Symbol: "BTCUSDT", Symbol2: "XRPUSDT"}); ok {
		t.Error("unpriced second leg must skip the rule")
	}
	if _, ok := resolve(alert.Rule{Metric: alert.MetricCustom, Symbol: "BTCUSDT"}); ok {
		t.Error("rule without a second leg must skip")
	}
}

// go test -v --run TestPublishNeverBlocks
func TestPublishNeverBlocks(t *testing.T) {
	c := NewCoordinator(testEngine(), nil, nil, Options{SubscriberBuf: 1}, zap.NewNop())

	ch, cancel := c.Subscribe()
	defer cancel()

	// Fill the subscriber's buffer and keep publishing; the coordinator
	// must drop, not block.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			c.publish(market.Snapshot{Timestamp: time.Now()})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}

	// The subscriber still got the first snapshot.
	select {
	case <-ch:
	default:
		t.Error("expected at least one delivered snapshot")
	}

	// No subscribers at all: assembly and publish still proceed.
	cancel()
	c.publish(market.Snapshot{})
}

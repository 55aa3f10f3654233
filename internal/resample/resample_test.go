package resample

import (
	"testing"
	"time"

	"tickflow/internal/market"
)

func tickAt(symbol string, price, size float64, ts time.Time, id string) market.Tick {
	return market.Tick{Symbol: symbol, Price: price, Size: size, Timestamp: ts, TradeID: id}
}

// go test -v --run TestBuildBarsSingleBucket
func TestBuildBarsSingleBucket(t *testing.T) {
	base := time.Unix(0, 0).UTC()
	ticks := []market.Tick{
		tickAt("BTCUSDT", 100, 1, base, "1"),
		tickAt("BTCUSDT", 110, 2, base.Add(30*time.Second), "2"),
		tickAt("BTCUSDT", 90, 3, base.Add(45*time.Second), "3"),
	}

	bars := BuildBars(ticks, market.Interval1m)
	if len(bars) != 1 {
		t.Fatalf("expected 1 bar, got %d", len(bars))
	}

	b := bars[0]
	if b.Open != 100 || b.High != 110 || b.Low != 90 || b.Close != 90 {
		t.Errorf("unexpected OHLC: %+v", b)
	}
	if b.Volume != 6 {
		t.Errorf("expected volume 6, got %f", b.Volume)
	}
	if !b.BucketStart.Equal(base) {
		t.Errorf("expected bucket_start %v, got %v", base, b.BucketStart)
	}
}

// go test -v --run TestBuildBarsGapsNotSynthesized
func TestBuildBarsGapsNotSynthesized(t *testing.T) {
	base := time.Unix(0, 0).UTC()
	ticks := []market.Tick{
		tickAt("BTCUSDT", 100, 1, base, "1"),
		// Two empty minutes, then trading resumes.
		tickAt("BTCUSDT", 105, 1, base.Add(3*time.Minute), "2"),
	}

	bars := BuildBars(ticks, market.Interval1m)
	if len(bars) != 2 {
		t.Fatalf("expected 2 bars (gap not filled), got %d", len(bars))
	}
	if !bars[1].BucketStart.Equal(base.Add(3 * time.Minute)) {
		t.Errorf("unexpected second bucket: %v", bars[1].BucketStart)
	}
}

// go test -v --run TestBuildBarsInvariants
func TestBuildBarsInvariants(t *testing.T) {
	base := time.Unix(1700000000, 0).UTC()
	var ticks []market.Tick
	prices := []float64{101, 99, 104, 98, 103, 100, 97, 105}
	for i, p := range prices {
		ticks = append(ticks, tickAt("ETHUSDT", p, 0.5, base.Add(time.Duration(i)*17*time.Second), ""))
	}

	bars := BuildBars(ticks, market.Interval1m)
	var prev time.Time
	for _, b := range bars {
		if b.Low > b.Open || b.Low > b.Close || b.High < b.Open || b.High < b.Close {
			t.Errorf("OHLC invariant violated: %+v", b)
		}
		if b.Volume < 0 {
			t.Errorf("negative volume: %+v", b)
		}
		if b.BucketStart.Before(prev) {
			t.Errorf("bucket starts not non-decreasing: %v after %v", b.BucketStart, prev)
		}
		if b.BucketStart.UnixMicro()%market.Interval1m.Width().Microseconds() != 0 {
			t.Errorf("bucket not aligned: %v", b.BucketStart)
		}
		prev = b.BucketStart
	}
}

// go test -v --run TestTailReturnsMostRecent
func TestTailReturnsMostRecent(t *testing.T) {
	base := time.Unix(0, 0).UTC()
	var ticks []market.Tick
	for i := 0; i < 5; i++ {
		ticks = append(ticks, tickAt("BTCUSDT", 100+float64(i), 1, base.Add(time.Duration(i)*time.Minute), ""))
	}

	bars := Tail(BuildBars(ticks, market.Interval1m), 2)
	if len(bars) != 2 {
		t.Fatalf("expected 2 bars, got %d", len(bars))
	}
	if bars[0].Close != 103 || bars[1].Close != 104 {
		t.Errorf("expected the most recent bars, got closes %f %f", bars[0].Close, bars[1].Close)
	}
}

// go test -v --run TestSeriesLiveBarRollover
func TestSeriesLiveBarRollover(t *testing.T) {
	ss := NewSeriesSet([]market.Interval{market.Interval1m}, 100)
	base := time.Unix(60, 0).UTC()

	ss.Apply(tickAt("BTCUSDT", 100, 1, base, "1"))
	ss.Apply(tickAt("BTCUSDT", 110, 1, base.Add(20*time.Second), "2"))

	window := ss.Window("BTCUSDT", market.Interval1m, 10)
	if len(window) != 1 {
		t.Fatalf("expected 1 live bar, got %d", len(window))
	}
	if window[0].Close != 110 || window[0].High != 110 || window[0].Open != 100 {
		t.Errorf("unexpected live bar: %+v", window[0])
	}

	// A tick in the next bucket closes the live bar.
	ss.Apply(tickAt("BTCUSDT", 120, 1, base.Add(time.Minute), "3"))

	window = ss.Window("BTCUSDT", market.Interval1m, 10)
	if len(window) != 2 {
		t.Fatalf("expected closed + live bar, got %d", len(window))
	}
	if window[0].Close != 110 {
		t.Errorf("closed bar close = %f, want 110", window[0].Close)
	}
	if window[1].Open != 120 || window[1].Close != 120 {
		t.Errorf("unexpected new live bar: %+v", window[1])
	}
}

// go test -v --run TestSeriesLateTickDropped
func TestSeriesLateTickDropped(t *testing.T) {
	ss := NewSeriesSet([]market.Interval{market.Interval1m}, 100)
	base := time.Unix(0, 0).UTC()

	ss.Apply(tickAt("BTCUSDT", 100, 1, base.Add(time.Minute), "1"))
	// Arrives after its bucket already closed.
	ss.Apply(tickAt("BTCUSDT", 999, 1, base, "2"))

	window := ss.Window("BTCUSDT", market.Interval1m, 10)
	if len(window) != 1 {
		t.Fatalf("expected 1 bar, got %d", len(window))
	}
	if window[0].High == 999 {
		t.Error("late tick must not mutate the live bar")
	}
}

// go test -v --run TestSeriesReset
func TestSeriesReset(t *testing.T) {
	ss := NewSeriesSet([]market.Interval{market.Interval1m}, 100)
	ss.Apply(tickAt("BTCUSDT", 100, 1, time.Unix(0, 0).UTC(), "1"))

	ss.Reset()
	if got := ss.Window("BTCUSDT", market.Interval1m, 10); got != nil {
		t.Errorf("expected no series after reset, got %d bars", len(got))
	}
}

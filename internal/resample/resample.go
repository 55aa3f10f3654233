package resample

import (
	"sort"

	"tickflow/internal/market"
)

// BuildBars buckets ticks into OHLCV bars of the given interval. Ticks
// are assumed ordered by timestamp ascending (ties keep arrival order).
// Buckets with no ticks are not synthesized: gaps in trading produce
// gaps in the bar sequence. Bars come back ordered by bucket start.
func BuildBars(ticks []market.Tick, interval market.Interval) []market.Bar {
	if len(ticks) == 0 {
		return nil
	}

	var bars []market.Bar
	var cur *market.Bar

	for _, t := range ticks {
		bucket := interval.BucketStart(t.Timestamp)

		if cur == nil || bucket.After(cur.BucketStart) {
			if cur != nil {
				bars = append(bars, *cur)
			}
			cur = &market.Bar{
				Symbol:      t.Symbol,
				Interval:    interval,
				BucketStart: bucket,
				Open:        t.Price,
				High:        t.Price,
				Low:         t.Price,
				Close:       t.Price,
				Volume:      t.Size,
			}
			continue
		}

		if t.Price > cur.High {
			cur.High = t.Price
		}
		if t.Price < cur.Low {
			cur.Low = t.Price
		}
		cur.Close = t.Price
		cur.Volume += t.Size
	}
	bars = append(bars, *cur)
	return bars
}

// Tail returns the most recent n bars. n <= 0 returns all bars.
func Tail(bars []market.Bar, n int) []market.Bar {
	if n <= 0 || len(bars) <= n {
		return bars
	}
	return bars[len(bars)-n:]
}

// SortTicks orders ticks by timestamp ascending, preserving arrival
// order for equal timestamps.
func SortTicks(ticks []market.Tick) {
	sort.SliceStable(ticks, func(i, j int) bool {
		return ticks[i].Timestamp.Before(ticks[j].Timestamp)
	})
}

// Closes extracts the close-price series from a bar sequence.
func Closes(bars []market.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

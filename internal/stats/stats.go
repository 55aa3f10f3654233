// Package stats holds pure, deterministic descriptive statistics over
// price windows. No state, no I/O.
package stats

import (
	"math"
)

// Mean returns the arithmetic mean of xs, 0 for an empty slice.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// StdDev returns the population standard deviation (divide by n, not
// n-1): the window is the complete observed population, not a sample.
func StdDev(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	m := Mean(xs)
	sum := 0.0
	for _, x := range xs {
		d := x - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(xs)))
}

// MinMax returns the extrema of xs. Zeroes for an empty slice.
func MinMax(xs []float64) (min, max float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	min, max = xs[0], xs[0]
	for _, x := range xs[1:] {
		if x < min {
			min = x
		}
		if x > max {
			max = x
		}
	}
	return min, max
}

// ZScore standardizes price against the window. A zero std dev
// (constant window) yields 0, not a division error.
func ZScore(price, mean, stdDev float64) float64 {
	if stdDev == 0 {
		return 0
	}
	return (price - mean) / stdDev
}

// PercentChange reports price relative to the window mean, in percent.
func PercentChange(price, mean float64) float64 {
	if mean == 0 {
		return 0
	}
	return (price - mean) / mean * 100
}

// LogReturns computes ln(p_t / p_{t-1}) over the series. Non-positive
// prices produce no return for that step.
func LogReturns(prices []float64) []float64 {
	if len(prices) < 2 {
		return nil
	}
	out := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i-1] <= 0 || prices[i] <= 0 {
			continue
		}
		out = append(out, math.Log(prices[i]/prices[i-1]))
	}
	return out
}

// Volatility is the population standard deviation of log returns over
// the window, annualized by the interval's sqrt(periods-per-year)
// factor.
func Volatility(prices []float64, annualizationFactor float64) float64 {
	returns := LogReturns(prices)
	if len(returns) == 0 {
		return 0
	}
	return StdDev(returns) * annualizationFactor
}

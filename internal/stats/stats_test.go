package stats

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

// go test -v --run TestConstantSeries
func TestConstantSeries(t *testing.T) {
	xs := []float64{42, 42, 42, 42}

	if sd := StdDev(xs); sd != 0 {
		t.Errorf("std dev of constant series = %f, want 0", sd)
	}
	if z := ZScore(42, Mean(xs), StdDev(xs)); z != 0 {
		t.Errorf("z-score with zero std dev = %f, want 0", z)
	}
}

// go test -v --run TestZScoreExample
func TestZScoreExample(t *testing.T) {
	// mean=100, std=10, live price=125
	if z := ZScore(125, 100, 10); !almostEqual(z, 2.5) {
		t.Errorf("z-score = %f, want 2.5", z)
	}
	if pc := PercentChange(125, 100); !almostEqual(pc, 25.0) {
		t.Errorf("percent change = %f, want 25.0", pc)
	}
}

// go test -v --run TestPopulationStdDev
func TestPopulationStdDev(t *testing.T) {
	// Population std dev divides by n: for {2,4,4,4,5,5,7,9} it is exactly 2.
	xs := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	if sd := StdDev(xs); !almostEqual(sd, 2) {
		t.Errorf("population std dev = %f, want 2", sd)
	}
	if m := Mean(xs); !almostEqual(m, 5) {
		t.Errorf("mean = %f, want 5", m)
	}
}

// go test -v --run TestMinMax
func TestMinMax(t *testing.T) {
	min, max := MinMax([]float64{3, -1, 7, 0})
	if min != -1 || max != 7 {
		t.Errorf("min/max = %f/%f, want -1/7", min, max)
	}

	min, max = MinMax(nil)
	if min != 0 || max != 0 {
		t.Errorf("empty min/max = %f/%f, want 0/0", min, max)
	}
}

// go test -v --run TestLogReturns
func TestLogReturns(t *testing.T) {
	rs := LogReturns([]float64{100, 110, 99})
	if len(rs) != 2 {
		t.Fatalf("expected 2 returns, got %d", len(rs))
	}
	if !almostEqual(rs[0], math.Log(1.1)) {
		t.Errorf("first return = %f, want ln(1.1)", rs[0])
	}
	if !almostEqual(rs[1], math.Log(0.9)) {
		t.Errorf("second return = %f, want ln(0.9)", rs[1])
	}
}

// go test -v --run TestVolatilityDeterministic
func TestVolatilityDeterministic(t *testing.T) {
	prices := []float64{100, 101, 99, 102, 100}

	v1 := Volatility(prices, 10)
	v2 := Volatility(prices, 10)
	if v1 != v2 {
		t.Errorf("volatility must be deterministic: %f vs %f", v1, v2)
	}
	if v1 <= 0 {
		t.Errorf("expected positive volatility, got %f", v1)
	}

	// Annualization scales linearly with the factor.
	if v10, v20 := Volatility(prices, 10), Volatility(prices, 20); !almostEqual(v20, 2*v10) {
		t.Errorf("annualization factor not applied linearly: %f vs %f", v10, v20)
	}

	if v := Volatility([]float64{100, 100, 100}, 10); v != 0 {
		t.Errorf("constant prices volatility = %f, want 0", v)
	}
}

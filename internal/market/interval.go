package market

import (
	"fmt"
	"math"
	"time"
)

// Interval is a resampling bucket width.
type Interval string

// IntervalMeta holds the bucket width and the annualization factor for
// an Interval.
type IntervalMeta struct {
	Width          time.Duration
	PeriodsPerYear float64
}

const (
	Interval1s   Interval = "1s"
	Interval1m   Interval = "1min"
	Interval5m   Interval = "5min"
	Interval15m  Interval = "15min"
	Interval1h   Interval = "1h"
	Interval4h   Interval = "4h"
)

const secondsPerYear = 365 * 24 * 60 * 60

// validIntervals maps each supported Interval to its metadata. The set
// is closed; callers must reject anything else at the boundary.
var validIntervals = map[Interval]IntervalMeta{
	Interval1s:  {Width: time.Second, PeriodsPerYear: secondsPerYear},
	Interval1m:  {Width: time.Minute, PeriodsPerYear: secondsPerYear / 60},
	Interval5m:  {Width: 5 * time.Minute, PeriodsPerYear: secondsPerYear / 300},
	Interval15m: {Width: 15 * time.Minute, PeriodsPerYear: secondsPerYear / 900},
	Interval1h:  {Width: time.Hour, PeriodsPerYear: secondsPerYear / 3600},
	Interval4h:  {Width: 4 * time.Hour, PeriodsPerYear: secondsPerYear / 14400},
}

// IsValid checks if the Interval is one of the supported bucket widths.
func (i Interval) IsValid() bool {
	_, ok := validIntervals[i]
	return ok
}

// Width returns the bucket width. Zero for an unknown interval.
func (i Interval) Width() time.Duration {
	return validIntervals[i].Width
}

// AnnualizationFactor returns sqrt(periods-per-year) for the interval,
// used to annualize per-period volatility.
func (i Interval) AnnualizationFactor() float64 {
	return math.Sqrt(validIntervals[i].PeriodsPerYear)
}

// BucketStart floors t to the interval boundary, aligned to epoch.
func (i Interval) BucketStart(t time.Time) time.Time {
	w := validIntervals[i].Width
	us := t.UnixMicro()
	return time.UnixMicro(us - us%w.Microseconds()).UTC()
}

// ParseInterval parses a string into a valid Interval.
func ParseInterval(s string) (Interval, error) {
	interval := Interval(s)
	if !interval.IsValid() {
		return "", fmt.Errorf("invalid interval: %s", s)
	}
	return interval, nil
}

package market

import "time"

// Tick is a single normalized trade execution. Ticks are immutable once
// created by the venue decoder; only store retention deletes them.
type Tick struct {
	Symbol    string    `json:"symbol"`    // Uppercase instrument identifier, e.g. "BTCUSDT"
	Price     float64   `json:"price"`     // Execution price
	Size      float64   `json:"size"`      // Executed quantity, non-negative
	Timestamp time.Time `json:"timestamp"` // Event time, microsecond precision
	TradeID   string    `json:"trade_id"`  // Venue-assigned id, used for de-duplication
}

// Bar is an OHLCV aggregate over one interval bucket, uniquely identified
// by (Symbol, Interval, BucketStart). The newest bar for a series is
// mutable until its bucket closes; all earlier bars are immutable.
type Bar struct {
	Symbol      string    `json:"symbol"`
	Interval    Interval  `json:"interval"`
	BucketStart time.Time `json:"bucket_start"` // Aligned to the interval boundary
	Open        float64   `json:"open"`
	High        float64   `json:"high"`
	Low         float64   `json:"low"`
	Close       float64   `json:"close"`
	Volume      float64   `json:"volume"`
}

// SummaryStatistics is a derived view over a price series. It is
// recomputed on each query and never persisted.
type SummaryStatistics struct {
	Symbol string    `json:"symbol"`
	Count  int       `json:"count"`
	Mean   float64   `json:"mean"`
	StdDev float64   `json:"std_dev"`
	Min    float64   `json:"min"`
	Max    float64   `json:"max"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
}

// SymbolStatus describes one tracked symbol's ingestion path.
type SymbolStatus struct {
	Symbol       string `json:"symbol"`
	Connected    bool   `json:"connected"`
	TickCount    int64  `json:"tick_count"`
	BufferSize   int    `json:"buffer_size"`
	DroppedTicks int64  `json:"dropped_ticks"`
}

// StreamStatus is the process-wide streaming state exposed to subscribers.
type StreamStatus struct {
	Running   bool           `json:"running"`
	Symbols   []string       `json:"symbols"`
	TickCount int64          `json:"tick_count"`
	PerSymbol []SymbolStatus `json:"per_symbol"`
}

// AlertTriggerEvent is emitted once per Armed -> Triggered transition.
type AlertTriggerEvent struct {
	RuleID    int64     `json:"rule_id"`
	Name      string    `json:"name"`
	Metric    string    `json:"metric"`
	Value     float64   `json:"value"`
	Operator  string    `json:"operator"`
	Threshold float64   `json:"threshold"`
	Timestamp time.Time `json:"timestamp"`
}

// SymbolAnalytics is the per-symbol derived view carried in each
// broadcast snapshot: the live price with its window statistics.
type SymbolAnalytics struct {
	Symbol        string  `json:"symbol"`
	Price         float64 `json:"price"`
	ZScore        float64 `json:"z_score"`
	Volatility    float64 `json:"volatility"`
	PercentChange float64 `json:"percent_change"` // vs the window mean, in percent
}

// Snapshot is the consolidated broadcast payload assembled once per
// cycle: stream status, the latest tick per symbol, per-symbol
// analytics, and any alert events emitted since the previous cycle.
type Snapshot struct {
	Stream      StreamStatus               `json:"stream_status"`
	LatestTicks map[string]Tick            `json:"latest_ticks"`
	Analytics   map[string]SymbolAnalytics `json:"analytics"`
	Alerts      []AlertTriggerEvent        `json:"alerts"`
	Timestamp   time.Time                  `json:"timestamp"`
}

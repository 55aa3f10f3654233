package postgres

import (
	"time"

	"tickflow/internal/market"
)

// TickRecord is one normalized trade execution persisted to the
// append-only tick log. (Symbol, TradeID) is unique so a reconnecting
// feed re-delivering a trade is a no-op on insert.
type TickRecord struct {
	ID uint `gorm:"primaryKey"`

	Symbol  string `gorm:"type:text;not null;index:idx_tick_symbol_ts;index:idx_tick_symbol_trade,unique"`
	TradeID string `gorm:"type:text;not null;index:idx_tick_symbol_trade,unique"`

	Timestamp time.Time `gorm:"not null;index:idx_tick_symbol_ts"`

	Price float64 `gorm:"type:numeric;not null"`
	Size  float64 `gorm:"type:numeric;not null"`

	RecordedAt time.Time `gorm:"autoCreateTime"`
}

// TableName overrides the default table name for GORM.
func (TickRecord) TableName() string {
	return "tick_record"
}

// ToTickRecord converts a canonical tick into its storage row.
func ToTickRecord(t market.Tick) *TickRecord {
	return &TickRecord{
		Symbol:    t.Symbol,
		TradeID:   t.TradeID,
		Timestamp: t.Timestamp,
		Price:     t.Price,
		Size:      t.Size,
	}
}

// ToTick converts a storage row back into a canonical tick.
func (r *TickRecord) ToTick() market.Tick {
	return market.Tick{
		Symbol:    r.Symbol,
		Price:     r.Price,
		Size:      r.Size,
		Timestamp: r.Timestamp,
		TradeID:   r.TradeID,
	}
}

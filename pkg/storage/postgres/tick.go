package postgres

import (
	"context"
	"fmt"
	"time"

	"tickflow/internal/market"

	"gorm.io/gorm/clause"
)

// InsertTick appends one tick. Re-inserting an already-stored
// (symbol, trade_id) pair is a no-op, not an error.
func (p *PostgresClient) InsertTick(ctx context.Context, record *TickRecord) error {
	tx := p.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "symbol"},
			{Name: "trade_id"},
		},
		DoNothing: true,
	}).Create(record)

	if tx.Error != nil {
		return fmt.Errorf("insert tick: %w", tx.Error)
	}
	return nil
}

// AppendTicks writes ticks one at a time, in order. On failure it
// returns how many were durably written so the caller can requeue the
// rest; earlier writes stay intact.
func (p *PostgresClient) AppendTicks(ctx context.Context, ticks []market.Tick) (int, error) {
	for i, t := range ticks {
		if err := p.InsertTick(ctx, ToTickRecord(t)); err != nil {
			return i, err
		}
	}
	return len(ticks), nil
}

// QueryTicks returns ticks for a symbol ordered by timestamp ascending.
// start is inclusive, end exclusive; zero times leave that bound open.
// limit <= 0 returns the full range.
func (p *PostgresClient) QueryTicks(ctx context.Context, symbol string, start, end time.Time, limit int) ([]market.Tick, error) {
	q := p.DB.WithContext(ctx).
		Model(&TickRecord{}).
		Where("symbol = ?", symbol)

	if !start.IsZero() {
		q = q.Where("timestamp >= ?", start)
	}
	if !end.IsZero() {
		q = q.Where("timestamp < ?", end)
	}

	q = q.Order("timestamp asc")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var records []TickRecord
	if err := q.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("query ticks: %w", err)
	}

	ticks := make([]market.Tick, len(records))
	for i, r := range records {
		ticks[i] = r.ToTick()
	}
	return ticks, nil
}

// CountTicks returns the number of stored ticks for a symbol.
func (p *PostgresClient) CountTicks(ctx context.Context, symbol string) (int64, error) {
	var count int64
	err := p.DB.WithContext(ctx).
		Model(&TickRecord{}).
		Where("symbol = ?", symbol).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count ticks: %w", err)
	}
	return count, nil
}

// DeleteTicksBefore removes ticks older than the cutoff. Retention is
// the only path that destroys ticks.
func (p *PostgresClient) DeleteTicksBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tx := p.DB.WithContext(ctx).
		Where("timestamp < ?", cutoff).
		Delete(&TickRecord{})
	if tx.Error != nil {
		return 0, fmt.Errorf("delete old ticks: %w", tx.Error)
	}
	return tx.RowsAffected, nil
}

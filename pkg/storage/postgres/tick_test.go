package postgres_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"tickflow/internal/market"
	"tickflow/pkg/storage/postgres"
)

func connect(t *testing.T) *postgres.PostgresClient {
	t.Helper()

	cfg := testConfig()
	client, err := postgres.NewClient(cfg.DSN("dev"))
	if err != nil {
		t.Fatalf("failed to connect to DB: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	if err := client.AutoMigrate(); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return client
}

// go test -v --run TestTickAppendIdempotent
func TestTickAppendIdempotent(t *testing.T) {
	client := connect(t)
	ctx := context.Background()

	symbol := fmt.Sprintf("TST%dUSDT", time.Now().UnixNano()%1000000)
	base := time.Now().UTC().Truncate(time.Second)
	ticks := []market.Tick{
		{Symbol: symbol, Price: 100, Size: 1, Timestamp: base, TradeID: "t-1"},
		{Symbol: symbol, Price: 101, Size: 2, Timestamp: base.Add(time.Second), TradeID: "t-2"},
	}

	if _, err := client.AppendTicks(ctx, ticks); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	before, err := client.CountTicks(ctx, symbol)
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if before != 2 {
		t.Fatalf("expected 2 stored ticks, got %d", before)
	}

	// Re-delivery from a reconnecting feed: same trade ids, a no-op.
	if _, err := client.AppendTicks(ctx, ticks); err != nil {
		t.Fatalf("re-append failed: %v", err)
	}
	after, err := client.CountTicks(ctx, symbol)
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if after != before {
		t.Errorf("idempotent append changed store size: %d -> %d", before, after)
	}
}

// go test -v --run TestQueryTicksRange
func TestQueryTicksRange(t *testing.T) {
	client := connect(t)
	ctx := context.Background()

	symbol := fmt.Sprintf("RNG%dUSDT", time.Now().UnixNano()%1000000)
	base := time.Now().UTC().Truncate(time.Minute)
	var ticks []market.Tick
	for i := 0; i < 5; i++ {
		ticks = append(ticks, market.Tick{
			Symbol:    symbol,
			Price:     100 + float64(i),
			Size:      1,
			Timestamp: base.Add(time.Duration(i) * time.Second),
			TradeID:   fmt.Sprintf("q-%d", i),
		})
	}
	if _, err := client.AppendTicks(ctx, ticks); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	// start inclusive, end exclusive
	got, err := client.QueryTicks(ctx, symbol, base.Add(1*time.Second), base.Add(4*time.Second), 0)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 ticks in [1s,4s), got %d", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].Timestamp.Before(got[i-1].Timestamp) {
			t.Errorf("ticks not ordered ascending: %v after %v", got[i].Timestamp, got[i-1].Timestamp)
		}
	}
	if got[0].TradeID != "q-1" || got[2].TradeID != "q-3" {
		t.Errorf("unexpected range bounds: first=%s last=%s", got[0].TradeID, got[2].TradeID)
	}

	// limit caps the result
	got, err = client.QueryTicks(ctx, symbol, time.Time{}, time.Time{}, 2)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("expected 2 ticks with limit, got %d", len(got))
	}

	// Retention is the only deletion path.
	deleted, err := client.DeleteTicksBefore(ctx, base.Add(time.Hour))
	if err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if deleted < 5 {
		t.Errorf("expected at least 5 deleted rows, got %d", deleted)
	}
}

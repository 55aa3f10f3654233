package postgres_test

import (
	"context"
	"testing"
	"time"

	"tickflow/config"
	"tickflow/pkg/storage/postgres"
)

func testConfig() config.PostgresConfig {
	return config.PostgresConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "postgres",
		Password: "yourpw",
		DBName:   "tickflow",
		SSLMode:  "disable",
		TimeZone: "UTC",
	}
}

// go test -v --run ^TestPostgresInvalidDSN$
func TestPostgresInvalidDSN(t *testing.T) {
	invalidDSN := "host=invalid port=5432 user=fail password=fail dbname=fail sslmode=disable"

	_, err := postgres.NewClient(invalidDSN)
	if err == nil {
		t.Fatal("expected error for invalid DSN, got nil")
	}
}

// go test -v --run ^TestPostgresClientWithConfig$
func TestPostgresClientWithConfig(t *testing.T) {
	cfg := testConfig()

	client, err := postgres.NewClient(cfg.DSN("dev"))
	if err != nil {
		t.Fatalf("failed to create Postgres client: %v", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if !client.IsHealthy(ctx) {
		t.Fatal("expected healthy DB connection")
	}

	if err := client.AutoMigrate(); err != nil {
		t.Fatalf("auto migration failed: %v", err)
	}
}

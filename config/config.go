package config

import (
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Feed      FeedConfig      `mapstructure:"feed"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Broadcast BroadcastConfig `mapstructure:"broadcast"`
	Retention RetentionConfig `mapstructure:"retention"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Log       LogConfig       `mapstructure:"log"`
	Postgres  PostgresConfig  `mapstructure:"postgres"`
}

type FeedConfig struct {
	Symbols              []string      `mapstructure:"symbols"`  // tracked instrument set at boot
	WSURL                string        `mapstructure:"ws_url"`   // e.g., wss://fstream.binance.com
	RESTURL              string        `mapstructure:"rest_url"` // e.g., https://fapi.binance.com
	RESTTimeout          time.Duration `mapstructure:"rest_timeout"`
	MaxReconnectAttempts int           `mapstructure:"max_reconnect_attempts"`
	BackfillLimit        int           `mapstructure:"backfill_limit"` // recent trades fetched per symbol at start
}

type EngineConfig struct {
	BufferCapacity int           `mapstructure:"buffer_capacity"` // per-symbol ring buffer size
	FlushThreshold int           `mapstructure:"flush_threshold"` // pushes before a buffer wants flushing
	FlushInterval  time.Duration `mapstructure:"flush_interval"`
	Intervals      []string      `mapstructure:"intervals"`       // live bar series maintained per symbol
	MaxClosedBars  int           `mapstructure:"max_closed_bars"` // closed bars retained in memory per series
}

type BroadcastConfig struct {
	Cadence       time.Duration `mapstructure:"cadence"`        // snapshot interval
	CycleBudget   time.Duration `mapstructure:"cycle_budget"`   // per-cycle stats deadline
	StatsInterval string        `mapstructure:"stats_interval"` // bar interval feeding z-score/volatility
	StatsWindow   int           `mapstructure:"stats_window"`   // bars per stats window
	AlertCooldown time.Duration `mapstructure:"alert_cooldown"` // re-arm window for still-true conditions
}

type RetentionConfig struct {
	Horizon time.Duration `mapstructure:"horizon"` // ticks older than this are pruned; 0 disables
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"` // prometheus listener, e.g. ":9100"
}

// LogConfig defines the logger configuration options.
type LogConfig struct {
	Level       string `mapstructure:"level"`       // log level: "debug", "info", "warn", "error"
	Format      string `mapstructure:"format"`      // log format: "json" or "console"
	OutputFile  string `mapstructure:"output_file"` // file path to store logs (optional)
	Environment string `mapstructure:"environment"` // environment: "dev" or "prod"
}

// Load loads application configuration using Viper.
// It reads from config.yaml and overrides with environment variables.
func Load() *Config {
	v := viper.New()

	v.SetConfigName("config") // config.yaml
	v.SetConfigType("yaml")
	v.AddConfigPath("config")
	v.AddConfigPath(".")

	// Support environment variables with dot notation (e.g., FEED_WS_URL)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		log.Fatalf("failed to read config: %v", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		log.Fatalf("failed to unmarshal config: %v", err)
	}

	return &cfg
}

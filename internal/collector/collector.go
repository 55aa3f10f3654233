package collector

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"tickflow/config"
	"tickflow/internal/alert"
	"tickflow/internal/broadcast"
	"tickflow/internal/market"
	"tickflow/internal/metrics"
	"tickflow/internal/retention"
	"tickflow/internal/stream"
	"tickflow/pkg/binance"
	"tickflow/pkg/storage/postgres"

	"go.uber.org/zap"
)

// Engine bundles the running core: the stream controller and the
// broadcast coordinator, plus a teardown hook.
type Engine struct {
	Controller  *stream.Controller
	Coordinator *broadcast.Coordinator

	cancel     context.CancelFunc
	client     *postgres.PostgresClient
	metricsSrv *http.Server
	logger     *zap.Logger
}

// Start wires the full pipeline for the configured symbol set: Postgres
// store, Binance feeds, ingestion buffers, live resampling, alert
// evaluation, broadcast, and tick retention.
func Start(cfg *config.Config, logger *zap.Logger) (*Engine, error) {
	// Initialize PostgreSQL client and migrate the tick/alert tables
	postgresClient, err := postgres.InitializeAndMigrate(cfg.Postgres, true)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to DB: %w", err)
	}

	restClient := binance.NewRESTClient(cfg.Feed.RESTURL, cfg.Feed.RESTTimeout)

	symbols, err := validateSymbols(cfg, restClient, logger)
	if err != nil {
		return nil, err
	}

	intervals, err := parseIntervals(cfg.Engine.Intervals)
	if err != nil {
		return nil, err
	}
	statsInterval, err := market.ParseInterval(cfg.Broadcast.StatsInterval)
	if err != nil {
		return nil, err
	}

	feeds := func(symbol string, handler func(market.Tick)) stream.Feed {
		return binance.NewTradeStream(cfg.Feed.WSURL, symbol, cfg.Feed.MaxReconnectAttempts, handler, logger)
	}

	state := stream.NewState()
	controller := stream.NewController(postgresClient, feeds, restClient, state, stream.Options{
		BufferCapacity: cfg.Engine.BufferCapacity,
		FlushThreshold: cfg.Engine.FlushThreshold,
		FlushInterval:  cfg.Engine.FlushInterval,
		Intervals:      intervals,
		MaxClosedBars:  cfg.Engine.MaxClosedBars,
		BackfillLimit:  cfg.Feed.BackfillLimit,
	}, logger)

	evaluator := alert.NewEvaluator(postgresClient, postgresClient, cfg.Broadcast.AlertCooldown, logger)
	coordinator := broadcast.NewCoordinator(controller, evaluator, broadcast.PairSpread(controller), broadcast.Options{
		Cadence:       cfg.Broadcast.Cadence,
		CycleBudget:   cfg.Broadcast.CycleBudget,
		StatsInterval: statsInterval,
		StatsWindow:   cfg.Broadcast.StatsWindow,
	}, logger)

	ctx, cancel := context.WithCancel(context.Background())

	var metricsSrv *http.Server
	if cfg.Metrics.Addr != "" {
		metricsSrv = metrics.Serve(cfg.Metrics.Addr)
	}
	retention.NewScheduler(postgresClient, cfg.Retention.Horizon, logger).Start(ctx)

	if err := controller.Start(symbols); err != nil {
		cancel()
		return nil, err
	}
	go coordinator.Run(ctx)

	return &Engine{
		Controller:  controller,
		Coordinator: coordinator,
		cancel:      cancel,
		client:      postgresClient,
		metricsSrv:  metricsSrv,
		logger:      logger,
	}, nil
}

// Stop tears the pipeline down: broadcast first, then the stream (with
// its final best-effort flush), then the metrics listener and the store
// connection.
func (e *Engine) Stop() {
	e.cancel()
	if err := e.Controller.Stop(); err != nil {
		e.logger.Warn("stream stop", zap.Error(err))
	}
	if e.metricsSrv != nil {
		if err := e.metricsSrv.Close(); err != nil {
			e.logger.Warn("metrics server close", zap.Error(err))
		}
	}
	if err := e.client.Close(); err != nil {
		e.logger.Warn("store close", zap.Error(err))
	}
}

// validateSymbols uppercases the configured set and, when the exchange
// is reachable, drops instruments not currently trading.
func validateSymbols(cfg *config.Config, restClient *binance.RESTClient, logger *zap.Logger) ([]string, error) {
	if len(cfg.Feed.Symbols) == 0 {
		return nil, fmt.Errorf("no symbols configured")
	}

	symbols := make([]string, 0, len(cfg.Feed.Symbols))
	for _, s := range cfg.Feed.Symbols {
		symbols = append(symbols, strings.ToUpper(strings.TrimSpace(s)))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Feed.RESTTimeout)
	defer cancel()

	active, err := restClient.ActiveSymbols(ctx)
	if err != nil {
		// The stream itself will surface a truly bad symbol; don't block
		// startup on a metadata fetch.
		logger.Warn("could not fetch instrument list, skipping symbol validation", zap.Error(err))
		return symbols, nil
	}

	valid := symbols[:0]
	for _, s := range symbols {
		if active[s] {
			valid = append(valid, s)
		} else {
			logger.Warn("dropping symbol not in TRADING status", zap.String("symbol", s))
		}
	}
	if len(valid) == 0 {
		return nil, fmt.Errorf("no tradable symbols in configured set")
	}
	return valid, nil
}

func parseIntervals(raw []string) ([]market.Interval, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make([]market.Interval, 0, len(raw))
	for _, s := range raw {
		interval, err := market.ParseInterval(s)
		if err != nil {
			return nil, err
		}
		out = append(out, interval)
	}
	return out, nil
}

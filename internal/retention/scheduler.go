package retention

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// TickPruner deletes ticks older than a cutoff and reports how many
// rows went away.
type TickPruner interface {
	DeleteTicksBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Scheduler prunes the tick log once at startup and then every day at
// UTC midnight. Retention is the only path that destroys ticks.
type Scheduler struct {
	pruner  TickPruner
	horizon time.Duration
	logger  *zap.Logger
}

func NewScheduler(pruner TickPruner, horizon time.Duration, logger *zap.Logger) *Scheduler {
	return &Scheduler{pruner: pruner, horizon: horizon, logger: logger}
}

// Start runs the retention loop in the background until the context is
// cancelled. A zero or negative horizon disables retention entirely.
func (s *Scheduler) Start(ctx context.Context) {
	if s.horizon <= 0 {
		return
	}

	go func() {
		// Run immediately once at startup
		s.runOnce(ctx)

		// Wait until next UTC midnight
		now := time.Now().UTC()
		nextMidnight := now.Truncate(24 * time.Hour).Add(24 * time.Hour)
		select {
		case <-time.After(time.Until(nextMidnight)):
		case <-ctx.Done():
			return
		}

		// Then run once every 24 hours
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()

		for {
			s.runOnce(ctx)
			select {
			case <-ticker.C:
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (s *Scheduler) runOnce(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-s.horizon)

	opCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	deleted, err := s.pruner.DeleteTicksBefore(opCtx, cutoff)
	if err != nil {
		s.logger.Warn("tick retention pass failed", zap.Error(err))
		return
	}
	if deleted > 0 {
		s.logger.Info("pruned old ticks",
			zap.Int64("deleted", deleted),
			zap.Time("cutoff", cutoff))
	}
}

// Package sweep runs the freshness-cache janitor on a cron schedule so
// long-idle query caches do not pin stale materializations.
package sweep

import (
	"context"
	"fmt"
	"time"

	"github.com/adhocore/gronx"

	"feedstore/pkg/config"
	"feedstore/pkg/logger"
)

// Cache is the sweepable surface of the orchestrator.
type Cache interface {
	SweepCache() int
}

// Start launches the sweeper if enabled and returns a cancel func. The cron
// expression defaults to every minute when empty.
func Start(ctx context.Context, c Cache, cfg config.SweepConfig) (context.CancelFunc, error) {
	if !cfg.Enabled {
		logger.Info("sweep_disabled")
		return func() {}, nil
	}

	cronExpr := cfg.Cron
	if cronExpr == "" {
		cronExpr = config.DefaultSweepCron
	}
	if !gronx.IsValid(cronExpr) {
		logger.Error("sweep_invalid_cron", "cron", cfg.Cron)
		return nil, fmt.Errorf("invalid sweep cron expression: %s", cfg.Cron)
	}

	logger.Info("sweep_enabled", "cron", cronExpr)
	ctx2, cancel := context.WithCancel(ctx)
	go run(ctx2, c, cronExpr)
	return cancel, nil
}

// run computes the next tick for the cron expression via gronx and sleeps
// until then, sweeping once per tick.
func run(ctx context.Context, c Cache, cronExpr string) {
	for {
		select {
		case <-ctx.Done():
			logger.Info("sweep_stopping")
			return
		default:
		}

		now := time.Now().UTC()
		next, err := gronx.NextTickAfter(cronExpr, now, false)
		if err != nil {
			logger.Error("sweep_nexttick_failed", "cron", cronExpr, "error", err)
			select {
			case <-time.After(30 * time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}

		select {
		case <-time.After(time.Until(next)):
			c.SweepCache()
		case <-ctx.Done():
			logger.Info("sweep_stopping")
			return
		}
	}
}

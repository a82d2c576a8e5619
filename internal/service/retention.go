package service

import (
	"context"
	"log/slog"
	"time"
)

// RetentionStore deletes expired rows.
type RetentionStore interface {
	PruneRateCounters(ctx context.Context, before time.Time) (int64, error)
	PruneRequestLogs(ctx context.Context, before time.Time) (int64, error)
}

// Janitor periodically deletes expired rate counters and old audit rows.
type Janitor struct {
	store            RetentionStore
	logger           *slog.Logger
	interval         time.Duration
	counterRetention time.Duration
	logRetention     time.Duration
	now              func() time.Time
}

// NewJanitor creates a janitor. A zero retention keeps those rows forever.
func NewJanitor(s RetentionStore, logger *slog.Logger, interval, counterRetention, logRetention time.Duration) *Janitor {
	return &Janitor{
		store:            s,
		logger:           logger,
		interval:         interval,
		counterRetention: counterRetention,
		logRetention:     logRetention,
		now:              time.Now,
	}
}

// Run sweeps once immediately and then every interval until ctx ends.
func (j *Janitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	for {
		j.Sweep(ctx)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Sweep performs one pass. Failures are logged; the next pass retries.
func (j *Janitor) Sweep(ctx context.Context) {
	now := j.now()
	if j.counterRetention > 0 {
		n, err := j.store.PruneRateCounters(ctx, now.Add(-j.counterRetention))
		if err != nil {
			j.logger.Warn("prune rate counters failed", "error", err)
		} else if n > 0 {
			j.logger.Debug("pruned rate counters", "rows", n)
		}
	}
	if j.logRetention > 0 {
		n, err := j.store.PruneRequestLogs(ctx, now.Add(-j.logRetention))
		if err != nil {
			j.logger.Warn("prune request logs failed", "error", err)
		} else if n > 0 {
			j.logger.Info("pruned request logs", "rows", n)
		}
	}
}

package queue

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/benvon/cinematch/internal/metrics"
)

const purgeTimeout = 2 * time.Minute

// GarbageCollector drops dead-lettered jobs once they are older than the
// retention period. Failed reconcile jobs stay inspectable until then.
type GarbageCollector struct {
	purger    DLQPurger
	interval  time.Duration
	retention time.Duration
	logger    *zap.Logger
}

// NewGarbageCollector creates a collector that purges every interval.
func NewGarbageCollector(purger DLQPurger, interval, retention time.Duration, logger *zap.Logger) *GarbageCollector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GarbageCollector{purger: purger, interval: interval, retention: retention, logger: logger}
}

// Run purges once immediately and then every interval until ctx is cancelled.
func (gc *GarbageCollector) Run(ctx context.Context) error {
	gc.logger.Info("dlq_gc_started",
		zap.Duration("interval", gc.interval),
		zap.Duration("retention", gc.retention),
	)
	ticker := time.NewTicker(gc.interval)
	defer ticker.Stop()
	for {
		if _, err := gc.Collect(ctx); err != nil && ctx.Err() == nil {
			gc.logger.Error("dlq_gc_failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Collect runs a single purge and reports how many jobs were dropped.
func (gc *GarbageCollector) Collect(ctx context.Context) (int, error) {
	if gc.purger == nil {
		return 0, nil
	}
	ctx, cancel := context.WithTimeout(ctx, purgeTimeout)
	defer cancel()

	n, err := gc.purger.PurgeOlderThan(ctx, gc.retention)
	if n > 0 {
		metrics.DeadLettersPurged.Add(float64(n))
		gc.logger.Info("dlq_gc_purged", zap.Int("count", n))
	}
	if err != nil {
		return n, fmt.Errorf("failed to purge dead letters: %w", err)
	}
	return n, nil
}

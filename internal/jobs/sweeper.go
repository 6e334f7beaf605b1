package jobs

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// ChunkSweeper removes chunks left behind by runs that never closed their store.
type ChunkSweeper interface {
	Sweep(ctx context.Context, olderThan time.Duration) (int64, error)
}

// SweepWorker deletes stale per-run chunks on every tick.
type SweepWorker struct {
	sweeper ChunkSweeper
	ttl     time.Duration
	logger  *zap.Logger
}

func NewSweepWorker(sweeper ChunkSweeper, ttl time.Duration, logger *zap.Logger) *SweepWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SweepWorker{sweeper: sweeper, ttl: ttl, logger: logger}
}

// ProcessJobs implements the JobProcessor interface
func (w *SweepWorker) ProcessJobs(ctx context.Context) error {
	removed, err := w.sweeper.Sweep(ctx, w.ttl)
	if err != nil {
		return fmt.Errorf("failed to sweep stale chunks: %w", err)
	}

	if removed > 0 {
		w.logger.Info("swept stale chunks", zap.Int64("removed", removed), zap.Duration("ttl", w.ttl))
	}

	return nil
}

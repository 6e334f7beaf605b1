package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"

	"github.com/domenicocinque/web-rag/internal/domain"
	"github.com/domenicocinque/web-rag/internal/service"
)

const runPrefix = "runs"

// ObjectStore is the subset of S3Client the archive needs.
type ObjectStore interface {
	PutJSON(ctx context.Context, key string, v any) error
	GetJSON(ctx context.Context, key string, v any) error
}

// RunArchive writes finished run reports as runs/<yyyy-mm-dd>/<run_id>.json.
type RunArchive struct {
	store ObjectStore
}

func NewRunArchive(store ObjectStore) *RunArchive {
	return &RunArchive{store: store}
}

// RunKey returns the object key of a run started at startedAt.
func RunKey(runID string, startedAt time.Time) string {
	return path.Join(runPrefix, startedAt.UTC().Format(time.DateOnly), runID+".json")
}

func (a *RunArchive) ArchiveRun(ctx context.Context, report *service.RunReport) error {
	if report == nil || report.RunID == "" {
		return errors.New("run report has no run id")
	}

	key := RunKey(report.RunID, report.StartedAt)
	if err := a.store.PutJSON(ctx, key, report); err != nil {
		return fmt.Errorf("archive run %s: %w", report.RunID, err)
	}

	ctxzap.Debug(ctx, "run archived", zap.String("key", key))
	return nil
}

// LoadRun reads back an archived report. A missing object is a NOT_FOUND
// domain error.
func (a *RunArchive) LoadRun(ctx context.Context, runID string, startedAt time.Time) (*service.RunReport, error) {
	var report service.RunReport
	if err := a.store.GetJSON(ctx, RunKey(runID, startedAt), &report); err != nil {
		if errors.Is(err, ErrObjectNotFound) {
			return nil, domain.NewDomainErrorWithCause(domain.ErrCodeNotFound, "run not found", err)
		}
		return nil, fmt.Errorf("load run %s: %w", runID, err)
	}
	return &report, nil
}

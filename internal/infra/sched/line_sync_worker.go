package sched

import (
	"context"
	"time"

	"esim-storefront/internal/infra/metrics"
	"esim-storefront/internal/usecase"

	"github.com/rs/zerolog"
)

type LineSyncer interface {
	SyncLines(ctx context.Context) (usecase.LineSyncReport, error)
}

const JobLineSync = "line_sync"

// NewLineSyncWorker mirrors provider line status into the lines table.
func NewLineSyncWorker(interval time.Duration, syncer LineSyncer, logger *zerolog.Logger) *Job {
	return NewJob(JobLineSync, interval, func(ctx context.Context) (int, error) {
		r, err := syncer.SyncLines(ctx)
		metrics.AddJobItems(JobLineSync, "expired", r.Expired)
		metrics.AddJobItems(JobLineSync, "failed", r.Failed)
		return r.Updated, err
	}, logger)
}

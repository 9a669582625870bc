package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

type StaleSweeper interface {
	SweepStaleOrders(ctx context.Context) (int, error)
}

const JobStaleSweep = "stale_order_sweep"

// NewStaleSweepWorker cancels PENDING orders that were never paid.
func NewStaleSweepWorker(interval time.Duration, sweeper StaleSweeper, logger *zerolog.Logger) *Job {
	return NewJob(JobStaleSweep, interval, sweeper.SweepStaleOrders, logger)
}

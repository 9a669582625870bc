package sched

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"esim-storefront/internal/domain/model"
	"esim-storefront/internal/infra/metrics"
	"esim-storefront/internal/infra/worker"

	"github.com/rs/zerolog"
)

// PendingLineRetrier is the maintenance surface used to re-provision paid orders.
type PendingLineRetrier interface {
	PendingLineOrders(ctx context.Context) ([]*model.Order, error)
	RetryPendingLine(ctx context.Context, order *model.Order) (bool, error)
}

const JobPendingLine = "pending_line_retry"

// NewPendingLineWorker retries PENDING_LINE orders, fanning each batch out on the pool.
func NewPendingLineWorker(interval time.Duration, retrier PendingLineRetrier, pool *worker.Pool, logger *zerolog.Logger) *Job {
	return NewJob(JobPendingLine, interval, func(ctx context.Context) (int, error) {
		orders, err := retrier.PendingLineOrders(ctx)
		if err != nil {
			return 0, err
		}
		var attached int64
		var wg sync.WaitGroup
		for _, o := range orders {
			o := o
			wg.Add(1)
			err := pool.Submit(ctx, func(ctx context.Context) error {
				defer wg.Done()
				if ctx.Err() != nil {
					return ctx.Err()
				}
				ok, err := retrier.RetryPendingLine(ctx, o)
				if ok {
					atomic.AddInt64(&attached, 1)
				} else {
					metrics.AddJobItems(JobPendingLine, "still_pending", 1)
				}
				return err
			})
			if err != nil {
				wg.Done()
				wg.Wait()
				return int(atomic.LoadInt64(&attached)), err
			}
		}
		wg.Wait()
		return int(attached), nil
	}, logger).RunAtStart()
}

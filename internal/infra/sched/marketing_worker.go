package sched

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

type MarketingSender interface {
	SendAbandonedCart(ctx context.Context) (int, error)
	SendFeedback(ctx context.Context) (int, error)
}

const JobMarketing = "marketing"

// NewMarketingWorker sends abandoned-cart reminders and feedback requests in one pass.
// A failing automation does not block the other.
func NewMarketingWorker(interval time.Duration, m MarketingSender, logger *zerolog.Logger) *Job {
	return NewJob(JobMarketing, interval, func(ctx context.Context) (int, error) {
		carts, errCart := m.SendAbandonedCart(ctx)
		feedback, errFeedback := m.SendFeedback(ctx)
		return carts + feedback, errors.Join(errCart, errFeedback)
	}, logger)
}

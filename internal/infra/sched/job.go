package sched

import (
	"context"
	"time"

	"esim-storefront/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// JobFunc runs one pass and reports how many items it handled.
type JobFunc func(ctx context.Context) (int, error)

// Job runs a JobFunc on a ticker. Each pass is bounded by timeout; a failed pass is
// logged and counted and the loop keeps going.
type Job struct {
	name     string
	interval time.Duration
	timeout  time.Duration
	runNow   bool
	fn       JobFunc
	log      *zerolog.Logger
}

func NewJob(name string, interval time.Duration, fn JobFunc, logger *zerolog.Logger) *Job {
	if interval <= 0 {
		interval = time.Minute
	}
	l := logger.With().Str("component", "sched").Str("job", name).Logger()
	return &Job{name: name, interval: interval, timeout: interval, fn: fn, log: &l}
}

// RunAtStart makes the first pass happen immediately instead of after one interval.
func (j *Job) RunAtStart() *Job {
	j.runNow = true
	return j
}

func (j *Job) Name() string { return j.name }

func (j *Job) Run(ctx context.Context) error {
	j.log.Info().Dur("interval", j.interval).Msg("starting job")
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	if j.runNow {
		j.Tick(ctx)
	}
	for {
		select {
		case <-ctx.Done():
			j.log.Info().Msg("stopping job")
			return nil
		case <-ticker.C:
			j.Tick(ctx)
		}
	}
}

// Tick runs a single pass.
func (j *Job) Tick(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	start := time.Now()
	n, err := j.fn(runCtx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		metrics.IncJobRun(j.name, "error")
		j.log.Error().Err(err).Int("items", n).Dur("duration", time.Since(start)).Msg("job pass failed")
		return
	}
	metrics.IncJobRun(j.name, "ok")
	if n > 0 {
		metrics.AddJobItems(j.name, "processed", n)
		j.log.Info().Int("items", n).Dur("duration", time.Since(start)).Msg("job pass finished")
	}
}

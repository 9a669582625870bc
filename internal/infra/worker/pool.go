// File: internal/infra/worker/pool.go
package worker

import (
	"context"
	"errors"
	"runtime"
	"sync"

	"github.com/rs/zerolog"
)

// Task is one unit of background work.
type Task func(ctx context.Context) error

// ErrStopped is returned by Submit after Stop.
var ErrStopped = errors.New("worker pool stopped")

// Pool runs submitted tasks on a fixed number of goroutines. On shutdown every task
// still queued is run with a cancelled context, so callers waiting on a task's
// completion are always released.
type Pool struct {
	wg      sync.WaitGroup
	jobs    chan Task
	quit    chan struct{}
	done    chan struct{} // closed when shutdown begins
	stopped sync.Once

	mu     sync.RWMutex
	closed bool // no task is queued once set

	n   int
	log *zerolog.Logger
}

func NewPool(workers int, logger *zerolog.Logger) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	l := logger.With().Str("component", "worker_pool").Logger()
	return &Pool{
		jobs: make(chan Task, workers*4),
		quit: make(chan struct{}),
		done: make(chan struct{}),
		n:    workers,
		log:  &l,
	}
}

// Start launches the workers. They run until ctx is done or Stop is called.
func (p *Pool) Start(ctx context.Context) {
	var workers sync.WaitGroup
	for i := 0; i < p.n; i++ {
		workers.Add(1)
		go func(id int) {
			defer workers.Done()
			for {
				select {
				case <-p.done:
					return
				case task := <-p.jobs:
					if task == nil {
						continue
					}
					p.run(ctx, id, task)
				}
			}
		}(i)
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		select {
		case <-ctx.Done():
		case <-p.quit:
		}
		close(p.done)
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()
		workers.Wait()
		p.drain()
	}()
}

func (p *Pool) drain() {
	cctx, cancel := context.WithCancel(context.Background())
	cancel()
	for {
		select {
		case task := <-p.jobs:
			if task != nil {
				p.run(cctx, -1, task)
			}
		default:
			return
		}
	}
}

func (p *Pool) run(ctx context.Context, id int, task Task) {
	defer func() {
		if rec := recover(); rec != nil {
			p.log.Error().Int("worker", id).Interface("panic", rec).Msg("task panicked")
		}
	}()
	if err := task(ctx); err != nil {
		p.log.Warn().Int("worker", id).Err(err).Msg("task failed")
	}
}

// Stop signals workers to exit and waits for in-flight and queued tasks.
func (p *Pool) Stop() {
	p.stopped.Do(func() { close(p.quit) })
	p.wg.Wait()
}

// Submit blocks until the task is queued, ctx is done or the pool shuts down.
func (p *Pool) Submit(ctx context.Context, task Task) error {
	if task == nil {
		return errors.New("nil task")
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrStopped
	}
	select {
	case <-p.done:
		return ErrStopped
	case <-p.quit:
		return ErrStopped
	default:
	}
	select {
	case p.jobs <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.done:
		return ErrStopped
	case <-p.quit:
		return ErrStopped
	}
}

//go:build !integration

package sched

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"esim-storefront/internal/domain/model"
	"esim-storefront/internal/infra/worker"
	"esim-storefront/internal/usecase"

	"github.com/rs/zerolog"
)

type mockRetrier struct {
	PendingLineOrdersFunc func(ctx context.Context) ([]*model.Order, error)
	RetryPendingLineFunc  func(ctx context.Context, order *model.Order) (bool, error)
}

func (m *mockRetrier) PendingLineOrders(ctx context.Context) ([]*model.Order, error) {
	return m.PendingLineOrdersFunc(ctx)
}
func (m *mockRetrier) RetryPendingLine(ctx context.Context, order *model.Order) (bool, error) {
	return m.RetryPendingLineFunc(ctx, order)
}

type mockMarketing struct {
	cartN, feedbackN     int
	cartErr, feedbackErr error
	feedbackCalled       bool
}

func (m *mockMarketing) SendAbandonedCart(ctx context.Context) (int, error) { return m.cartN, m.cartErr }
func (m *mockMarketing) SendFeedback(ctx context.Context) (int, error) {
	m.feedbackCalled = true
	return m.feedbackN, m.feedbackErr
}

type syncerFunc func(ctx context.Context) (usecase.LineSyncReport, error)

func (f syncerFunc) SyncLines(ctx context.Context) (usecase.LineSyncReport, error) { return f(ctx) }

func nopLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

func TestJob_RunsOnTickerUntilCancelled(t *testing.T) {
	var calls int32
	j := NewJob("test", 10*time.Millisecond, func(ctx context.Context) (int, error) {
		if atomic.AddInt32(&calls, 1) == 2 {
			return 0, errors.New("transient")
		}
		return 1, nil
	}, nopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- j.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for atomic.LoadInt32(&calls) < 3 {
		select {
		case <-deadline:
			t.Fatalf("job ran %d times, expected at least 3", atomic.LoadInt32(&calls))
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("expected clean stop, got %v", err)
	}
}

func TestPendingLineWorker(t *testing.T) {
	orders := []*model.Order{{ID: "o1"}, {ID: "o2"}, {ID: "o3"}, {ID: "o4"}}
	var mu sync.Mutex
	retried := map[string]bool{}
	r := &mockRetrier{
		PendingLineOrdersFunc: func(ctx context.Context) ([]*model.Order, error) { return orders, nil },
		RetryPendingLineFunc: func(ctx context.Context, o *model.Order) (bool, error) {
			mu.Lock()
			retried[o.ID] = true
			mu.Unlock()
			if o.ID == "o4" {
				return false, errors.New("provider down")
			}
			return o.ID != "o3", nil
		},
	}
	pool := worker.NewPool(2, nopLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)
	defer pool.Stop()

	j := NewPendingLineWorker(time.Minute, r, pool, nopLogger())
	n, err := j.fn(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 attached lines, got %d", n)
	}
	if len(retried) != 4 {
		t.Errorf("expected every order retried, got %v", retried)
	}
	if !j.runNow {
		t.Error("pending line retry should run at start")
	}
}

func TestPendingLineWorker_ReturnsOnShutdown(t *testing.T) {
	orders := make([]*model.Order, 6)
	for i := range orders {
		orders[i] = &model.Order{ID: fmt.Sprintf("o%d", i)}
	}
	started := make(chan struct{})
	var once sync.Once
	r := &mockRetrier{
		PendingLineOrdersFunc: func(ctx context.Context) ([]*model.Order, error) { return orders, nil },
		RetryPendingLineFunc: func(ctx context.Context, o *model.Order) (bool, error) {
			once.Do(func() { close(started) })
			<-ctx.Done()
			return false, ctx.Err()
		},
	}
	pool := worker.NewPool(1, nopLogger())
	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)
	defer pool.Stop()

	j := NewPendingLineWorker(time.Minute, r, pool, nopLogger())
	returned := make(chan struct{})
	go func() {
		_, _ = j.fn(ctx)
		close(returned)
	}()

	<-started
	cancel()
	select {
	case <-returned:
	case <-time.After(2 * time.Second):
		t.Fatal("pending line batch still blocked after shutdown")
	}
}

func TestPendingLineWorker_ListFails(t *testing.T) {
	r := &mockRetrier{
		PendingLineOrdersFunc: func(ctx context.Context) ([]*model.Order, error) { return nil, errors.New("db down") },
	}
	pool := worker.NewPool(1, nopLogger())
	j := NewPendingLineWorker(time.Minute, r, pool, nopLogger())
	if _, err := j.fn(context.Background()); err == nil {
		t.Fatal("expected listing error")
	}
}

func TestMarketingWorker_RunsBothAutomations(t *testing.T) {
	m := &mockMarketing{cartN: 2, feedbackN: 1, cartErr: errors.New("twilio 500")}
	n, err := NewMarketingWorker(time.Minute, m, nopLogger()).fn(context.Background())
	if !m.feedbackCalled {
		t.Fatal("feedback must run even when abandoned cart fails")
	}
	if n != 3 || err == nil {
		t.Fatalf("expected 3 items and an error, got %d, %v", n, err)
	}
}

func TestLineSyncWorker(t *testing.T) {
	s := syncerFunc(func(ctx context.Context) (usecase.LineSyncReport, error) {
		return usecase.LineSyncReport{Seen: 10, Updated: 7, Expired: 2}, nil
	})
	n, err := NewLineSyncWorker(time.Minute, s, nopLogger()).fn(context.Background())
	if err != nil || n != 7 {
		t.Fatalf("expected 7 updated, got %d, %v", n, err)
	}
}

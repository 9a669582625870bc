package usecase

import (
	"context"
	"sync"
	"time"

	"esim-storefront/internal/domain/model"
	"esim-storefront/internal/domain/ports/repository"
	"esim-storefront/internal/infra/logging"

	"github.com/rs/zerolog"
)

type MaintenanceConfig struct {
	StaleOrderAfter time.Duration
	InvoiceGrace    time.Duration // paid payments younger than this are left to the capture path
	BatchSize       int
}

// MaintenanceUseCase holds the periodic repair jobs: pending-line retries, stale order
// sweeping and invoice reconciliation. Each reads the database as the source of truth.
type MaintenanceUseCase struct {
	checkout *CheckoutUseCase
	orders   repository.OrderRepository
	payments repository.PaymentRepository
	users    repository.UserRepository
	cfg      MaintenanceConfig
	log      *zerolog.Logger
	now      func() time.Time

	mu         sync.Mutex
	lineCursor repository.OrderCursor
}

func NewMaintenanceUseCase(
	checkout *CheckoutUseCase,
	orders repository.OrderRepository,
	payments repository.PaymentRepository,
	users repository.UserRepository,
	cfg MaintenanceConfig,
	logger *zerolog.Logger,
) *MaintenanceUseCase {
	if cfg.StaleOrderAfter <= 0 {
		cfg.StaleOrderAfter = 72 * time.Hour
	}
	if cfg.InvoiceGrace <= 0 {
		cfg.InvoiceGrace = 10 * time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	l := logger.With().Str("component", "Maintenance").Logger()
	return &MaintenanceUseCase{
		checkout: checkout,
		orders:   orders,
		payments: payments,
		users:    users,
		cfg:      cfg,
		log:      &l,
		now:      time.Now,
	}
}

// PendingLineOrders returns the next batch of paid orders still waiting for a line.
// Successive calls walk the backlog oldest first and wrap around at the end, so
// orders that keep failing do not hold back the rest.
func (m *MaintenanceUseCase) PendingLineOrders(ctx context.Context) ([]*model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	orders, err := m.orders.ListByStatusAfter(ctx, repository.NoTX, model.OrderStatusPendingLine, now, m.lineCursor, m.cfg.BatchSize)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 && !m.lineCursor.IsZero() {
		m.lineCursor = repository.OrderCursor{}
		if orders, err = m.orders.ListByStatus(ctx, repository.NoTX, model.OrderStatusPendingLine, now, m.cfg.BatchSize); err != nil {
			return nil, err
		}
	}
	if len(orders) < m.cfg.BatchSize {
		m.lineCursor = repository.OrderCursor{}
	} else {
		last := orders[len(orders)-1]
		m.lineCursor = repository.OrderCursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}
	return orders, nil
}

// RetryPendingLine provisions one waiting order. It reports whether a line was attached.
func (m *MaintenanceUseCase) RetryPendingLine(ctx context.Context, order *model.Order) (bool, error) {
	state, err := m.checkout.RetryPendingLine(ctx, order)
	if err != nil {
		logging.With(logging.WithOrderID(ctx, order.ID), m.log).Error().Err(err).Msg("pending line retry failed")
		return false, err
	}
	return state == model.CheckoutProvisioned, nil
}

// RetryPendingLines runs RetryPendingLine over one batch sequentially.
func (m *MaintenanceUseCase) RetryPendingLines(ctx context.Context) (int, error) {
	orders, err := m.PendingLineOrders(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, o := range orders {
		if ctx.Err() != nil {
			return n, ctx.Err()
		}
		if ok, _ := m.RetryPendingLine(ctx, o); ok {
			n++
		}
	}
	return n, nil
}

// SweepStaleOrders cancels PENDING orders older than StaleOrderAfter.
func (m *MaintenanceUseCase) SweepStaleOrders(ctx context.Context) (int, error) {
	cutoff := m.now().Add(-m.cfg.StaleOrderAfter)
	orders, err := m.orders.ListByStatus(ctx, repository.NoTX, model.OrderStatusPending, cutoff, m.cfg.BatchSize)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, o := range orders {
		ok, err := m.checkout.CancelStale(ctx, o.ID)
		if err != nil {
			m.log.Error().Err(err).Str("order_id", o.ID).Msg("cancel stale order failed")
			continue
		}
		if ok {
			n++
		}
	}
	if n > 0 {
		m.log.Info().Int("count", n).Msg("stale orders cancelled")
	}
	return n, nil
}

// ReconcileInvoices issues missing invoices for paid payments.
func (m *MaintenanceUseCase) ReconcileInvoices(ctx context.Context) (int, error) {
	before := m.now().Add(-m.cfg.InvoiceGrace)
	payments, err := m.payments.ListPaidWithoutInvoice(ctx, repository.NoTX, before, m.cfg.BatchSize)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, p := range payments {
		log := m.log.With().Str("order_id", p.OrderID).Str("payment_id", p.ID).Logger()
		order, err := m.orders.FindByID(ctx, repository.NoTX, p.OrderID)
		if err != nil {
			log.Error().Err(err).Msg("load order failed")
			continue
		}
		user, err := m.users.FindByID(ctx, repository.NoTX, order.UserID)
		if err != nil {
			log.Error().Err(err).Msg("load customer failed")
			continue
		}
		if m.checkout.IssueInvoice(ctx, order, p, user) {
			n++
		}
	}
	return n, nil
}

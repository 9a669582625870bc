package usecase

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"esim-storefront/internal/domain"
	"esim-storefront/internal/domain/model"
	"esim-storefront/internal/domain/ports/repository"
	"esim-storefront/internal/infra/logging"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
)

// OrderStore owns every write to orders, payments and coupon usage counters.
// Each operation runs in one transaction.
type OrderStore struct {
	tm       repository.TransactionManager
	orders   repository.OrderRepository
	payments repository.PaymentRepository
	coupons  repository.CouponRepository
	plans    repository.PlanModelRepository
	log      *zerolog.Logger
	now      func() time.Time
}

func NewOrderStore(
	tm repository.TransactionManager,
	orders repository.OrderRepository,
	payments repository.PaymentRepository,
	coupons repository.CouponRepository,
	plans repository.PlanModelRepository,
	logger *zerolog.Logger,
) *OrderStore {
	return &OrderStore{
		tm:       tm,
		orders:   orders,
		payments: payments,
		coupons:  coupons,
		plans:    plans,
		log:      logger,
		now:      time.Now,
	}
}

// CreatePendingOrder prices the plan model (with the optional coupon) and inserts
// Order(PENDING) together with its first Payment(PENDING).
func (s *OrderStore) CreatePendingOrder(ctx context.Context, userID, planModelID string, couponID *string, provider string) (*model.Order, *model.Payment, error) {
	defer logging.TraceDuration(s.log, "OrderStore.CreatePendingOrder")()

	var order *model.Order
	var payment *model.Payment
	err := s.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		plan, err := s.plans.FindByID(ctx, tx, planModelID)
		if err != nil {
			return err
		}
		if !plan.Active {
			return domain.NewValidationError("planModel", "plan model is not available")
		}
		coupon, err := s.availableCoupon(ctx, tx, couponID, userID)
		if err != nil {
			return err
		}

		now := s.now()
		order = &model.Order{
			ID:          uuid.NewString(),
			UserID:      userID,
			PlanModelID: plan.ID,
			BundleID:    plan.BundleID,
			RefillID:    plan.Refill.ID,
			Status:      model.OrderStatusPending,
			Price:       ResolvePrice(plan.BasePrice, coupon),
			Currency:    plan.Currency,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if coupon != nil {
			order.CouponID = &coupon.ID
		}
		if err := s.orders.Save(ctx, tx, order); err != nil {
			return err
		}
		payment = s.newPayment(order, provider)
		return s.payments.Save(ctx, tx, payment)
	})
	if err != nil {
		return nil, nil, err
	}
	return order, payment, nil
}

func (s *OrderStore) availableCoupon(ctx context.Context, tx repository.Tx, couponID *string, userID string) (*model.Coupon, error) {
	if couponID == nil || *couponID == "" {
		return nil, nil
	}
	c, err := s.coupons.FindByID(ctx, tx, *couponID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrCouponUnavailable
	}
	if err != nil {
		return nil, err
	}
	used, err := s.coupons.CountPaidUsesByUser(ctx, tx, c.ID, userID)
	if err != nil {
		return nil, err
	}
	if !c.Available(s.now(), used) {
		return nil, domain.ErrCouponUnavailable
	}
	return c, nil
}

func (s *OrderStore) newPayment(o *model.Order, provider string) *model.Payment {
	now := s.now()
	return &model.Payment{
		ID:        uuid.NewString(),
		OrderID:   o.ID,
		UserID:    o.UserID,
		Provider:  provider,
		Status:    model.PaymentStatusPending,
		Amount:    o.Price,
		Currency:  o.Currency,
		CouponID:  o.CouponID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// MarkPaid records a successful capture. Under the per-order advisory lock it flips the
// current payment PENDING -> PAID with a conditional update and, only when that update
// applied, moves the order to PENDING_LINE and bumps the coupon usage counter.
// A replay of the same capture returns applied=false.
func (s *OrderStore) MarkPaid(ctx context.Context, orderID string, res model.CaptureResult) (*model.Order, bool, error) {
	defer logging.TraceDuration(s.log, "OrderStore.MarkPaid")()

	var order *model.Order
	var applied bool
	err := s.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := s.orders.Lock(ctx, tx, orderID); err != nil {
			return err
		}
		o, err := s.orders.FindByID(ctx, tx, orderID)
		if err != nil {
			return err
		}
		p, err := s.payments.FindCurrentByOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		order = o

		if p.Status == model.PaymentStatusPaid {
			if res.ExternalPaymentID != "" && p.ExternalPaymentID != "" && res.ExternalPaymentID != p.ExternalPaymentID {
				return domain.ErrInvalidStateTransition
			}
			return nil
		}
		if !model.CanTransitionPayment(p.Status, model.PaymentStatusPaid) {
			return domain.ErrInvalidStateTransition
		}

		now := s.now()
		ok, err := s.payments.MarkPaidIfPending(ctx, tx, p.ID, res.ExternalPaymentID, res.ClearingLogID, now)
		if err != nil || !ok {
			return err
		}
		moved, err := s.orders.UpdateStatusIf(ctx, tx, o.ID, []model.OrderStatus{model.OrderStatusPending}, model.OrderStatusPendingLine, &now)
		if err != nil {
			return err
		}
		if !moved {
			return domain.ErrInvalidStateTransition
		}
		if o.CouponID != nil {
			if err := s.coupons.IncrementUses(ctx, tx, *o.CouponID); err != nil {
				return err
			}
		}
		o.Status = model.OrderStatusPendingLine
		o.PaidAt = &now
		o.UpdatedAt = now
		applied = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return order, applied, nil
}

// MarkFailed fails the current PENDING payment. The order stays PENDING so it can be retried.
// reason is cut to maxFailureReason bytes of valid UTF-8.
func (s *OrderStore) MarkFailed(ctx context.Context, orderID, reason string) error {
	reason = failureReason(reason)
	return s.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		p, err := s.payments.FindCurrentByOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		ok, err := s.payments.MarkFailedIfPending(ctx, tx, p.ID, reason)
		if err != nil {
			return err
		}
		if !ok {
			s.log.Debug().Str("order_id", orderID).Str("payment_status", string(p.Status)).Msg("mark failed skipped: payment not pending")
		}
		return nil
	})
}

// SetSession stores the provider session on the current payment.
func (s *OrderStore) SetSession(ctx context.Context, paymentID, sessionToken, externalID, clearingLogID string) error {
	return s.payments.SetSession(ctx, repository.NoTX, paymentID, sessionToken, externalID, clearingLogID)
}

// AttachLine links a provisioned line and activates the order.
func (s *OrderStore) AttachLine(ctx context.Context, orderID, lineID string) (*model.Order, error) {
	var order *model.Order
	err := s.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		o, err := s.orders.FindByID(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if !model.CanTransitionOrder(o.Status, model.OrderStatusActive) {
			return domain.ErrInvalidStateTransition
		}
		if err := s.orders.SetLine(ctx, tx, o.ID, lineID); err != nil {
			return err
		}
		ok, err := s.orders.UpdateStatusIf(ctx, tx, o.ID, []model.OrderStatus{o.Status}, model.OrderStatusActive, nil)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrInvalidStateTransition
		}
		o.LineID = &lineID
		o.Status = model.OrderStatusActive
		order = o
		return nil
	})
	return order, err
}

// MarkPendingLine records that the order is paid but has no line yet.
// It is a no-op when the order is already PENDING_LINE.
func (s *OrderStore) MarkPendingLine(ctx context.Context, orderID string) error {
	return s.transition(ctx, orderID, model.OrderStatusPendingLine)
}

// MarkExpired moves a paid order to EXPIRED.
func (s *OrderStore) MarkExpired(ctx context.Context, orderID string) error {
	return s.transition(ctx, orderID, model.OrderStatusExpired)
}

// Cancel moves an order to CANCELLED.
func (s *OrderStore) Cancel(ctx context.Context, orderID string) error {
	return s.transition(ctx, orderID, model.OrderStatusCancelled)
}

func (s *OrderStore) transition(ctx context.Context, orderID string, to model.OrderStatus) error {
	return s.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		o, err := s.orders.FindByID(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if o.Status == to {
			return nil
		}
		if !model.CanTransitionOrder(o.Status, to) {
			return domain.ErrInvalidStateTransition
		}
		if to == model.OrderStatusPendingLine || to == model.OrderStatusExpired {
			p, err := s.payments.FindCurrentByOrder(ctx, tx, orderID)
			if err != nil {
				return err
			}
			if p.Status != model.PaymentStatusPaid {
				return domain.ErrInvalidStateTransition
			}
		}
		ok, err := s.orders.UpdateStatusIf(ctx, tx, o.ID, []model.OrderStatus{o.Status}, to, nil)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrInvalidStateTransition
		}
		return nil
	})
}

// Reprice switches the order to another plan model, re-applying its coupon.
// Rejected once the current payment is PAID.
func (s *OrderStore) Reprice(ctx context.Context, orderID, planModelID string) (*model.Order, error) {
	defer logging.TraceDuration(s.log, "OrderStore.Reprice")()

	var order *model.Order
	err := s.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := s.orders.Lock(ctx, tx, orderID); err != nil {
			return err
		}
		o, err := s.orders.FindByID(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if o.Status != model.OrderStatusPending {
			return domain.ErrInvalidStateTransition
		}
		p, err := s.payments.FindCurrentByOrder(ctx, tx, orderID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		if p != nil && p.Status == model.PaymentStatusPaid {
			return domain.ErrInvalidStateTransition
		}
		plan, err := s.plans.FindByID(ctx, tx, planModelID)
		if err != nil {
			return err
		}
		var coupon *model.Coupon
		if o.CouponID != nil {
			coupon, err = s.coupons.FindByID(ctx, tx, *o.CouponID)
			if err != nil && !errors.Is(err, domain.ErrNotFound) {
				return err
			}
		}
		price := ResolvePrice(plan.BasePrice, coupon)
		if err := s.orders.UpdatePricing(ctx, tx, o.ID, plan.ID, plan.BundleID, plan.Refill.ID, price); err != nil {
			return err
		}
		if p != nil && p.Status == model.PaymentStatusPending {
			if err := s.payments.UpdateAmountIfPending(ctx, tx, p.ID, price); err != nil {
				return err
			}
		}
		o.PlanModelID, o.BundleID, o.RefillID, o.Price = plan.ID, plan.BundleID, plan.Refill.ID, price
		order = o
		return nil
	})
	return order, err
}

// NewPaymentAttempt supersedes the current payment (if still PENDING or FAILED) and inserts a fresh one.
func (s *OrderStore) NewPaymentAttempt(ctx context.Context, orderID, provider string) (*model.Order, *model.Payment, error) {
	var order *model.Order
	var payment *model.Payment
	err := s.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := s.orders.Lock(ctx, tx, orderID); err != nil {
			return err
		}
		o, err := s.orders.FindByID(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if o.Status != model.OrderStatusPending {
			return domain.ErrInvalidStateTransition
		}
		cur, err := s.payments.FindCurrentByOrder(ctx, tx, orderID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		if cur != nil {
			if cur.Status == model.PaymentStatusPaid {
				return domain.ErrInvalidStateTransition
			}
			if err := s.payments.Supersede(ctx, tx, cur.ID); err != nil {
				return err
			}
		}
		if provider == "" && cur != nil {
			provider = cur.Provider
		}
		order = o
		payment = s.newPayment(o, provider)
		return s.payments.Save(ctx, tx, payment)
	})
	if err != nil {
		return nil, nil, err
	}
	return order, payment, nil
}

// SetInvoice stores the accounting document id on a paid payment.
func (s *OrderStore) SetInvoice(ctx context.Context, paymentID, docID string) error {
	return s.payments.SetInvoiceDoc(ctx, repository.NoTX, paymentID, docID)
}

// Load returns the order with its current payment (nil when none exists).
func (s *OrderStore) Load(ctx context.Context, orderID string) (*model.Order, *model.Payment, error) {
	o, err := s.orders.FindByID(ctx, repository.NoTX, orderID)
	if err != nil {
		return nil, nil, err
	}
	p, err := s.payments.FindCurrentByOrder(ctx, repository.NoTX, orderID)
	if errors.Is(err, domain.ErrNotFound) {
		return o, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	return o, p, nil
}

// LoadBySession resolves the order owning a provider session token.
func (s *OrderStore) LoadBySession(ctx context.Context, token string) (*model.Order, *model.Payment, error) {
	p, err := s.payments.FindBySessionToken(ctx, repository.NoTX, token)
	if err != nil {
		return nil, nil, err
	}
	o, err := s.orders.FindByID(ctx, repository.NoTX, p.OrderID)
	if err != nil {
		return nil, nil, err
	}
	return o, p, nil
}

const maxFailureReason = 500

// failureReason makes provider text storable: valid UTF-8 without NUL bytes,
// cut on a rune boundary.
func failureReason(s string) string {
	s = strings.ReplaceAll(strings.ToValidUTF8(s, ""), "\x00", "")
	if len(s) <= maxFailureReason {
		return s
	}
	n := maxFailureReason
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"esim-storefront/internal/domain"
	"esim-storefront/internal/domain/model"
	"esim-storefront/internal/domain/ports/adapter"
	"esim-storefront/internal/domain/ports/repository"
	"esim-storefront/internal/infra/logging"
	"esim-storefront/internal/infra/metrics"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Provisioner allocates a line for a paid order.
type Provisioner interface {
	ProvisionLine(ctx context.Context, order *model.Order) (LineResult, error)
}

// Notifier sends order notifications.
type Notifier interface {
	Notify(ctx context.Context, kind NotificationKind, order *model.Order, user *model.User, line *model.Line)
}

// Session is the caller identity resolved from the session cookie or bearer token.
type Session struct {
	UserID string
	Role   model.UserRole
}

func (s Session) Authenticated() bool { return s.UserID != "" }
func (s Session) IsAdmin() bool       { return s.Role == model.RoleAdmin }

// CheckoutConfig holds the URLs and thresholds the orchestrator needs.
type CheckoutConfig struct {
	CallbackURL     string // card clearing return url; ?id=<order> is appended
	CancelURL       string
	DefaultProvider string
	Currency        string
	MinCaptchaScore float64
	CaptchaDisabled bool
	CaptureLockTTL  time.Duration
}

type PlaceOrderInput struct {
	FirstName    string
	LastName     string
	Email        string
	PhoneNumber  string
	PlanModelID  string
	CouponCode   string
	ClientPrice  *decimal.Decimal
	CaptchaToken string
	RemoteIP     string
	Provider     string
	Locale       string
}

type PlaceOrderResult struct {
	OrderID      string
	FriendlyID   int64
	PaymentID    string
	Provider     string
	SessionToken string
	RedirectURL  string
	State        model.CheckoutState
}

type CaptureInput struct {
	OrderID      string
	SessionToken string
	PayerRef     string
	Provider     string
}

type CaptureOutcome struct {
	OrderID string
	State   model.CheckoutState
	Order   *model.Order
}

const (
	ActionPayment      = "payment"
	ActionAuthenticate = "authenticate"
)

type FinishResult struct {
	Action  string
	OrderID string
}

// CheckoutUseCase drives an order from placement through capture, line provisioning and notification.
type CheckoutUseCase struct {
	store       *OrderStore
	gateways    adapter.GatewayRegistry
	provisioner Provisioner
	notifier    Notifier
	users       repository.UserRepository
	coupons     repository.CouponRepository
	captcha     adapter.CaptchaVerifier
	invoicer    adapter.Invoicer
	events      adapter.EventPublisher
	alerts      adapter.OpsAlerter
	locker      adapter.Locker
	cfg         CheckoutConfig
	log         *zerolog.Logger
}

// CheckoutDeps groups the optional collaborators: nil Invoicer, EventPublisher,
// OpsAlerter or Locker disables that concern.
type CheckoutDeps struct {
	Store       *OrderStore
	Gateways    adapter.GatewayRegistry
	Provisioner Provisioner
	Notifier    Notifier
	Users       repository.UserRepository
	Coupons     repository.CouponRepository
	Captcha     adapter.CaptchaVerifier
	Invoicer    adapter.Invoicer
	Events      adapter.EventPublisher
	Alerts      adapter.OpsAlerter
	Locker      adapter.Locker
}

func NewCheckoutUseCase(deps CheckoutDeps, cfg CheckoutConfig, logger *zerolog.Logger) *CheckoutUseCase {
	if cfg.MinCaptchaScore == 0 {
		cfg.MinCaptchaScore = 0.5
	}
	if cfg.CaptureLockTTL <= 0 {
		cfg.CaptureLockTTL = 2 * time.Minute
	}
	l := logger.With().Str("component", "checkout").Logger()
	return &CheckoutUseCase{
		store:       deps.Store,
		gateways:    deps.Gateways,
		provisioner: deps.Provisioner,
		notifier:    deps.Notifier,
		users:       deps.Users,
		coupons:     deps.Coupons,
		captcha:     deps.Captcha,
		invoicer:    deps.Invoicer,
		events:      deps.Events,
		alerts:      deps.Alerts,
		locker:      deps.Locker,
		cfg:         cfg,
		log:         &l,
	}
}

// PlaceOrder verifies the caller is human, reuses or creates the customer by phone,
// creates the pending order and opens a clearing session.
func (c *CheckoutUseCase) PlaceOrder(ctx context.Context, in PlaceOrderInput) (*PlaceOrderResult, error) {
	defer logging.TraceDuration(c.log, "Checkout.PlaceOrder")()

	if err := c.verifyHuman(ctx, in.CaptchaToken, in.RemoteIP); err != nil {
		c.log.Warn().Err(err).Str("ip", in.RemoteIP).Msg("captcha rejected")
		return nil, err
	}
	user, err := c.findOrCreateUser(ctx, in)
	if err != nil {
		return nil, err
	}
	ctx = logging.WithUserID(ctx, user.ID)

	var couponID *string
	if code := strings.TrimSpace(in.CouponCode); code != "" {
		cp, err := c.coupons.FindByCode(ctx, repository.NoTX, code)
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrCouponUnavailable
		}
		if err != nil {
			return nil, err
		}
		couponID = &cp.ID
	}

	provider := c.provider(in.Provider)
	order, payment, err := c.store.CreatePendingOrder(ctx, user.ID, in.PlanModelID, couponID, provider)
	if err != nil {
		logging.With(ctx, c.log).Error().Err(err).Str("step", "create_order").Msg("create pending order failed")
		return nil, err
	}
	ctx = logging.WithOrderID(ctx, order.ID)
	log := logging.With(ctx, c.log)
	if in.ClientPrice != nil && !in.ClientPrice.Equal(order.Price) {
		log.Warn().Str("client_price", in.ClientPrice.String()).Str("price", order.Price.String()).Msg("client price differs from resolved price")
	}
	metrics.IncOrder(string(model.OrderStatusPending))
	c.publish(ctx, adapter.EventOrderCreated, order, payment)

	session, err := c.openSession(ctx, order, payment, user)
	if err != nil {
		return nil, err
	}
	log.Info().Str("provider", payment.Provider).Int64("friendly_id", order.FriendlyID).Msg("order placed")
	return &PlaceOrderResult{
		OrderID:      order.ID,
		FriendlyID:   order.FriendlyID,
		PaymentID:    payment.ID,
		Provider:     payment.Provider,
		SessionToken: session.SessionToken,
		RedirectURL:  session.RedirectURL,
		State:        model.CheckoutAwaitingPayment,
	}, nil
}

func (c *CheckoutUseCase) verifyHuman(ctx context.Context, token, ip string) error {
	if c.cfg.CaptchaDisabled {
		return nil
	}
	if strings.TrimSpace(token) == "" {
		return domain.ErrVerification
	}
	score, err := c.captcha.Verify(ctx, token, ip)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrVerification, err)
	}
	if score < c.cfg.MinCaptchaScore {
		return domain.ErrVerification
	}
	return nil
}

func (c *CheckoutUseCase) findOrCreateUser(ctx context.Context, in PlaceOrderInput) (*model.User, error) {
	phone := model.NormalizePhone(in.PhoneNumber)
	u, err := c.users.FindByPhone(ctx, repository.NoTX, phone)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	nu, err := model.NewUser("", in.FirstName, in.LastName, in.Email, phone)
	if err != nil {
		return nil, err
	}
	if in.Locale != "" {
		nu.Locale = in.Locale
	}
	if err := c.users.Save(ctx, repository.NoTX, nu); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			// concurrent checkout with the same phone
			return c.users.FindByPhone(ctx, repository.NoTX, phone)
		}
		return nil, err
	}
	return nu, nil
}

func (c *CheckoutUseCase) provider(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return c.cfg.DefaultProvider
	}
	return name
}

// openSession asks the provider for a hosted payment session. Any failure marks the
// current payment FAILED before the error is returned.
func (c *CheckoutUseCase) openSession(ctx context.Context, order *model.Order, payment *model.Payment, user *model.User) (adapter.ClearingSession, error) {
	log := logging.With(logging.WithStep(ctx, "create_session"), c.log)

	gw, err := c.gateways.Gateway(payment.Provider)
	if err != nil {
		c.failPayment(ctx, order.ID, "gateway unavailable: "+payment.Provider)
		log.Error().Err(err).Str("provider", payment.Provider).Msg("no gateway for provider")
		return adapter.ClearingSession{}, fmt.Errorf("%w: %v", domain.ErrConfiguration, err)
	}

	req := adapter.ClearingRequest{
		OrderID:     order.ID,
		FriendlyID:  order.FriendlyID,
		PaymentID:   payment.ID,
		Amount:      payment.Amount,
		Currency:    payment.Currency,
		Description: fmt.Sprintf("eSIM order #%d", order.FriendlyID),
		Customer:    adapter.Customer{FullName: user.FullName(), Email: user.Email, Phone: user.PhoneNumber},
		ReturnURL:   withQuery(c.cfg.CallbackURL, "id", order.ID),
		CancelURL:   c.cfg.CancelURL,
		Locale:      user.Locale,
	}
	start := time.Now()
	session, err := gw.CreateClearingSession(ctx, req)
	metrics.ObserveGateway(gw.Name(), "create_session", time.Since(start).Seconds(), err == nil)
	if err == nil && (session.SessionToken == "" || session.RedirectURL == "") {
		err = &domain.GatewayError{Provider: gw.Name(), Op: "create session", Details: []string{"missing session token or redirect url"}}
	}
	if err != nil {
		c.failPayment(ctx, order.ID, err.Error())
		metrics.IncPayment(gw.Name(), "failed")
		log.Error().Err(err).Str("provider", gw.Name()).Msg("clearing session failed")
		c.alert(ctx, fmt.Sprintf("clearing session failed for order #%d (%s): %v", order.FriendlyID, gw.Name(), err))
		var gerr *domain.GatewayError
		if !errors.As(err, &gerr) {
			err = &domain.GatewayError{Provider: gw.Name(), Op: "create session", Err: err}
		}
		return adapter.ClearingSession{}, err
	}
	if err := c.store.SetSession(ctx, payment.ID, session.SessionToken, session.ExternalPaymentID, session.ClearingLogID); err != nil {
		log.Error().Err(err).Msg("persist session failed")
		return adapter.ClearingSession{}, err
	}
	metrics.IncPayment(gw.Name(), "initiated")
	return session, nil
}

func (c *CheckoutUseCase) failPayment(ctx context.Context, orderID, reason string) {
	if err := c.store.MarkFailed(ctx, orderID, reason); err != nil {
		logging.With(ctx, c.log).Error().Err(err).Msg("mark payment failed")
	}
}

// ResumePayment opens a new clearing session for a still-pending order.
func (c *CheckoutUseCase) ResumePayment(ctx context.Context, orderID, provider string) (*PlaceOrderResult, error) {
	defer logging.TraceDuration(c.log, "Checkout.ResumePayment")()
	ctx = logging.WithOrderID(ctx, orderID)

	order, payment, err := c.store.Load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != model.OrderStatusPending {
		return nil, domain.ErrInvalidStateTransition
	}
	name := strings.ToLower(strings.TrimSpace(provider))
	reusable := payment != nil && payment.Status == model.PaymentStatusPending && payment.SessionToken == "" &&
		(name == "" || name == payment.Provider)
	if !reusable {
		if name == "" && payment != nil {
			name = payment.Provider
		}
		order, payment, err = c.store.NewPaymentAttempt(ctx, orderID, c.provider(name))
		if err != nil {
			return nil, err
		}
	}
	user, err := c.users.FindByID(ctx, repository.NoTX, order.UserID)
	if err != nil {
		return nil, err
	}
	session, err := c.openSession(ctx, order, payment, user)
	if err != nil {
		return nil, err
	}
	return &PlaceOrderResult{
		OrderID:      order.ID,
		FriendlyID:   order.FriendlyID,
		PaymentID:    payment.ID,
		Provider:     payment.Provider,
		SessionToken: session.SessionToken,
		RedirectURL:  session.RedirectURL,
		State:        model.CheckoutAwaitingPayment,
	}, nil
}

// Capture settles a clearing session returned by the provider. Concurrent or repeated
// captures of the same order collapse into one PAID transition and one provisioning run.
func (c *CheckoutUseCase) Capture(ctx context.Context, in CaptureInput) (*CaptureOutcome, error) {
	defer logging.TraceDuration(c.log, "Checkout.Capture")()

	orderID := in.OrderID
	if orderID == "" {
		if in.SessionToken == "" {
			return nil, domain.NewValidationError("id", "order id or session token is required")
		}
		o, _, err := c.store.LoadBySession(ctx, in.SessionToken)
		if err != nil {
			return nil, err
		}
		orderID = o.ID
	}
	ctx = logging.WithStep(logging.WithOrderID(ctx, orderID), "capture")
	log := logging.With(ctx, c.log)

	unlock, err := c.lock(ctx, orderID)
	if errors.Is(err, domain.ErrLockNotAcquired) {
		log.Info().Msg("capture already in progress")
		return &CaptureOutcome{OrderID: orderID, State: model.CheckoutCapturing}, nil
	}
	if err != nil {
		return nil, err
	}
	defer unlock()

	order, payment, err := c.store.Load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, domain.ErrNotFound
	}
	if payment.Status == model.PaymentStatusPaid || order.Paid() {
		return &CaptureOutcome{OrderID: orderID, State: model.DeriveCheckoutState(order, payment), Order: order}, nil
	}
	if payment.Status == model.PaymentStatusFailed || order.Status != model.OrderStatusPending {
		if order.Status == model.OrderStatusCancelled && payment.SessionToken != "" {
			// the hosted page may have charged the customer after the sweep
			log.Warn().Str("provider", payment.Provider).Msg("payment callback for a cancelled order")
			c.alert(ctx, fmt.Sprintf("order #%d: payment callback after cancellation (%s session %s), check the provider for a charge",
				order.FriendlyID, payment.Provider, payment.SessionToken))
		}
		return &CaptureOutcome{OrderID: orderID, State: model.CheckoutFailed, Order: order}, nil
	}
	if in.SessionToken != "" && payment.SessionToken != "" && in.SessionToken != payment.SessionToken {
		log.Warn().Msg("capture for a superseded session")
		return nil, domain.ErrInvalidStateTransition
	}
	if in.Provider != "" && !strings.EqualFold(in.Provider, payment.Provider) {
		return nil, domain.NewValidationError("provider", "does not match the order payment")
	}
	if payment.SessionToken == "" {
		return nil, domain.ErrInvalidStateTransition
	}

	gw, err := c.gateways.Gateway(payment.Provider)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConfiguration, err)
	}
	start := time.Now()
	res, err := gw.CaptureSession(ctx, payment.SessionToken, in.PayerRef)
	metrics.ObserveGateway(gw.Name(), "capture", time.Since(start).Seconds(), err == nil)
	if err != nil {
		// outcome unknown: leave the payment PENDING so a later callback can settle it
		log.Error().Err(err).Str("provider", gw.Name()).Msg("capture call failed")
		var gerr *domain.GatewayError
		if !errors.As(err, &gerr) {
			err = &domain.GatewayError{Provider: gw.Name(), Op: "capture", Err: err}
		}
		return nil, err
	}
	if !res.Approved {
		c.failPayment(ctx, orderID, "declined: "+res.Status)
		metrics.IncPayment(gw.Name(), "declined")
		metrics.IncCheckoutOutcome(string(model.CheckoutFailed))
		log.Info().Str("provider_status", res.Status).Msg("payment declined")
		return &CaptureOutcome{OrderID: orderID, State: model.CheckoutFailed, Order: order}, nil
	}
	if !res.Amount.IsZero() && !res.Amount.Equal(payment.Amount) {
		log.Error().Str("captured", res.Amount.String()).Str("expected", payment.Amount.String()).Msg("captured amount mismatch")
		c.alert(ctx, fmt.Sprintf("order #%d captured %s, expected %s", order.FriendlyID, res.Amount, payment.Amount))
	}

	order, applied, err := c.store.MarkPaid(ctx, orderID, res)
	if err != nil {
		log.Error().Err(err).Msg("mark paid failed")
		return nil, err
	}
	if !applied {
		order, payment, err = c.store.Load(ctx, orderID)
		if err != nil {
			return nil, err
		}
		return &CaptureOutcome{OrderID: orderID, State: model.DeriveCheckoutState(order, payment), Order: order}, nil
	}
	payment.Status = model.PaymentStatusPaid
	payment.ExternalPaymentID = res.ExternalPaymentID
	metrics.IncPayment(gw.Name(), "paid")
	metrics.AddPaymentRevenue(payment.Currency, payment.Amount.InexactFloat64())
	metrics.IncOrder(string(model.OrderStatusPendingLine))
	c.publish(ctx, adapter.EventOrderPaid, order, payment)
	log.Info().Str("provider", gw.Name()).Msg("payment captured")

	state := c.completePaid(ctx, order, payment)
	metrics.IncCheckoutOutcome(string(state))
	return &CaptureOutcome{OrderID: orderID, State: state, Order: order}, nil
}

// completePaid runs the post-payment steps inline. The order is already PENDING_LINE,
// so a crash here leaves it for the retry job.
func (c *CheckoutUseCase) completePaid(ctx context.Context, order *model.Order, payment *model.Payment) model.CheckoutState {
	log := logging.With(ctx, c.log)
	user, err := c.users.FindByID(ctx, repository.NoTX, order.UserID)
	if err != nil {
		log.Error().Err(err).Msg("load customer failed")
		return model.CheckoutPaidNoLine
	}
	c.IssueInvoice(ctx, order, payment, user)
	return c.provisionAndNotify(ctx, order, user, true)
}

func (c *CheckoutUseCase) provisionAndNotify(ctx context.Context, order *model.Order, user *model.User, notifyPending bool) model.CheckoutState {
	log := logging.With(logging.WithStep(ctx, "provision"), c.log)

	res, err := c.provisioner.ProvisionLine(ctx, order)
	if err == nil && res.OK && res.Line != nil {
		attached, err := c.store.AttachLine(ctx, order.ID, res.Line.ID)
		if err == nil {
			*order = *attached
			metrics.IncOrder(string(model.OrderStatusActive))
			c.notifier.Notify(ctx, NotifyLineReady, order, user, res.Line)
			c.publish(ctx, adapter.EventOrderLineAttached, order, nil)
			log.Info().Str("line_id", res.Line.ID).Msg("line attached")
			return model.CheckoutProvisioned
		}
		log.Error().Err(err).Str("line_id", res.Line.ID).Msg("attach line failed")
		c.alert(ctx, fmt.Sprintf("order #%d: line %s provisioned but not attached: %v", order.FriendlyID, res.Line.ICCID, err))
	}

	if err := c.store.MarkPendingLine(ctx, order.ID); err != nil {
		log.Error().Err(err).Msg("mark pending line failed")
	}
	if notifyPending {
		c.notifier.Notify(ctx, NotifyLinePending, order, user, nil)
		c.publish(ctx, adapter.EventOrderLinePending, order, nil)
		c.alert(ctx, fmt.Sprintf("order #%d is paid but has no line yet", order.FriendlyID))
	}
	return model.CheckoutPaidNoLine
}

// IssueInvoice issues the receipt for a paid payment. Failures are logged only.
func (c *CheckoutUseCase) IssueInvoice(ctx context.Context, order *model.Order, payment *model.Payment, user *model.User) bool {
	if c.invoicer == nil || payment.InvoiceDocID != "" {
		return false
	}
	log := logging.With(logging.WithStep(ctx, "invoice"), c.log)
	docID, err := c.invoicer.IssueInvoice(ctx, adapter.InvoiceRequest{
		PaymentID:   payment.ID,
		OrderID:     order.ID,
		FriendlyID:  order.FriendlyID,
		Amount:      payment.Amount,
		Currency:    payment.Currency,
		Description: fmt.Sprintf("eSIM order #%d", order.FriendlyID),
		Method:      payment.Provider,
		Customer:    adapter.Customer{FullName: user.FullName(), Email: user.Email, Phone: user.PhoneNumber},
	})
	if err != nil {
		log.Warn().Err(err).Msg("invoice issuance failed")
		return false
	}
	if err := c.store.SetInvoice(ctx, payment.ID, docID); err != nil {
		log.Warn().Err(err).Str("doc_id", docID).Msg("persist invoice id failed")
		return false
	}
	payment.InvoiceDocID = docID
	return true
}

// RetryPendingLine provisions a line for a paid order that has none yet.
func (c *CheckoutUseCase) RetryPendingLine(ctx context.Context, order *model.Order) (model.CheckoutState, error) {
	ctx = logging.WithOrderID(ctx, order.ID)
	unlock, err := c.lock(ctx, order.ID)
	if errors.Is(err, domain.ErrLockNotAcquired) {
		return model.CheckoutCapturing, nil
	}
	if err != nil {
		return "", err
	}
	defer unlock()

	fresh, payment, err := c.store.Load(ctx, order.ID)
	if err != nil {
		return "", err
	}
	if fresh.Status != model.OrderStatusPendingLine {
		return model.DeriveCheckoutState(fresh, payment), nil
	}
	user, err := c.users.FindByID(ctx, repository.NoTX, fresh.UserID)
	if err != nil {
		return "", err
	}
	state := c.provisionAndNotify(ctx, fresh, user, false)
	*order = *fresh
	return state, nil
}

// CancelStale cancels a PENDING order that was never paid and fails its open payment.
// It reports false when the order moved on or a capture holds the lock.
func (c *CheckoutUseCase) CancelStale(ctx context.Context, orderID string) (bool, error) {
	ctx = logging.WithStep(logging.WithOrderID(ctx, orderID), "sweep")
	unlock, err := c.lock(ctx, orderID)
	if errors.Is(err, domain.ErrLockNotAcquired) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	defer unlock()

	order, payment, err := c.store.Load(ctx, orderID)
	if err != nil {
		return false, err
	}
	if order.Status != model.OrderStatusPending || (payment != nil && payment.Status == model.PaymentStatusPaid) {
		return false, nil
	}
	if err := c.store.Cancel(ctx, orderID); err != nil {
		if errors.Is(err, domain.ErrInvalidStateTransition) {
			return false, nil
		}
		return false, err
	}
	if payment != nil && payment.Status == model.PaymentStatusPending {
		c.failPayment(ctx, orderID, "order cancelled")
	}
	order.Status = model.OrderStatusCancelled
	metrics.IncOrder(string(model.OrderStatusCancelled))
	c.publish(ctx, adapter.EventOrderCancelled, order, payment)
	logging.With(ctx, c.log).Info().Msg("stale order cancelled")
	return true, nil
}

// EditOrder re-prices a pending order against another plan model. Owner or admin only.
func (c *CheckoutUseCase) EditOrder(ctx context.Context, s Session, orderID, planModelID string) (*model.Order, error) {
	if !s.Authenticated() {
		return nil, domain.ErrUnauthorized
	}
	order, _, err := c.store.Load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !s.IsAdmin() && order.UserID != s.UserID {
		return nil, domain.ErrForbidden
	}
	return c.store.Reprice(ctx, orderID, planModelID)
}

// FinishOrder prepares a fresh payment attempt for the owner, or asks the caller to sign in.
func (c *CheckoutUseCase) FinishOrder(ctx context.Context, s Session, orderID string) (*FinishResult, error) {
	order, _, err := c.store.Load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !s.Authenticated() || (!s.IsAdmin() && order.UserID != s.UserID) {
		return &FinishResult{Action: ActionAuthenticate, OrderID: orderID}, nil
	}
	if _, _, err := c.store.NewPaymentAttempt(ctx, orderID, ""); err != nil {
		return nil, err
	}
	return &FinishResult{Action: ActionPayment, OrderID: orderID}, nil
}

// State returns the derived pipeline state of an order.
func (c *CheckoutUseCase) State(ctx context.Context, orderID string) (model.CheckoutState, error) {
	o, p, err := c.store.Load(ctx, orderID)
	if err != nil {
		return "", err
	}
	return model.DeriveCheckoutState(o, p), nil
}

func (c *CheckoutUseCase) lock(ctx context.Context, orderID string) (func(), error) {
	if c.locker == nil {
		return func() {}, nil
	}
	key := "order:capture:" + orderID
	token, err := c.locker.TryLock(ctx, key, c.cfg.CaptureLockTTL)
	if err != nil {
		return nil, err
	}
	return func() {
		// the request context may already be cancelled
		uctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := c.locker.Unlock(uctx, key, token); err != nil {
			c.log.Warn().Err(err).Str("order_id", orderID).Msg("unlock failed")
		}
	}, nil
}

func (c *CheckoutUseCase) publish(ctx context.Context, typ string, order *model.Order, payment *model.Payment) {
	if c.events == nil {
		return
	}
	ev := adapter.OrderEvent{
		Type:       typ,
		OrderID:    order.ID,
		FriendlyID: order.FriendlyID,
		UserID:     order.UserID,
		Status:     string(order.Status),
		OccurredAt: time.Now().UTC(),
	}
	if payment != nil {
		ev.Amount = payment.Amount.StringFixed(2)
		ev.Provider = payment.Provider
	}
	if err := c.events.Publish(ctx, ev); err != nil {
		logging.With(ctx, c.log).Warn().Err(err).Str("event", typ).Msg("publish event failed")
	}
}

func (c *CheckoutUseCase) alert(ctx context.Context, text string) {
	if c.alerts == nil {
		return
	}
	if err := c.alerts.Alert(ctx, text); err != nil {
		c.log.Warn().Err(err).Msg("ops alert failed")
	}
}

func withQuery(base, key, value string) string {
	if base == "" {
		return ""
	}
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()
	return u.String()
}

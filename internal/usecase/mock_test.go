//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"testing/fstest"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"esim-storefront/internal/domain"
	"esim-storefront/internal/domain/model"
	"esim-storefront/internal/domain/ports/adapter"
	"esim-storefront/internal/domain/ports/repository"
	"esim-storefront/internal/infra/i18n"
	"esim-storefront/internal/usecase"
)

// =============================
// In-memory database
// =============================

// memDB backs every in-memory repository. Each method holds mu, so conditional
// updates are atomic the way they are in Postgres.
type memDB struct {
	mu        sync.Mutex
	seq       int64
	orders    map[string]*model.Order
	payments  map[string]*model.Payment
	coupons   map[string]*model.Coupon
	plans     map[string]*model.PlanModel
	users     map[string]*model.User
	lines     map[string]*model.Line
	messages  map[string]*model.Message
	paySeq    map[string]int // creation order of payments
	payCursor int

	CouponIncrements int
}

func newMemDB() *memDB {
	return &memDB{
		seq:      1000,
		orders:   map[string]*model.Order{},
		payments: map[string]*model.Payment{},
		coupons:  map[string]*model.Coupon{},
		plans:    map[string]*model.PlanModel{},
		users:    map[string]*model.User{},
		lines:    map[string]*model.Line{},
		messages: map[string]*model.Message{},
		paySeq:   map[string]int{},
	}
}

func cloneOrder(o *model.Order) *model.Order     { c := *o; return &c }
func clonePayment(p *model.Payment) *model.Payment { c := *p; return &c }

// ---- Orders ----

type MemOrderRepo struct {
	db         *memDB
	SetLineErr error
}

var _ repository.OrderRepository = (*MemOrderRepo)(nil)

func (r *MemOrderRepo) Save(ctx context.Context, tx repository.Tx, o *model.Order) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.seq++
	o.FriendlyID = r.db.seq
	r.db.orders[o.ID] = cloneOrder(o)
	return nil
}

func (r *MemOrderRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Order, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	o, ok := r.db.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneOrder(o), nil
}

func (r *MemOrderRepo) Lock(ctx context.Context, tx repository.Tx, orderID string) error { return nil }

func (r *MemOrderRepo) UpdateStatusIf(ctx context.Context, tx repository.Tx, id string, from []model.OrderStatus, to model.OrderStatus, paidAt *time.Time) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	o, ok := r.db.orders[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	for _, f := range from {
		if o.Status == f {
			o.Status = to
			if paidAt != nil {
				o.PaidAt = paidAt
			}
			o.UpdatedAt = time.Now()
			return true, nil
		}
	}
	return false, nil
}

func (r *MemOrderRepo) SetLine(ctx context.Context, tx repository.Tx, id, lineID string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.SetLineErr != nil {
		return r.SetLineErr
	}
	o, ok := r.db.orders[id]
	if !ok {
		return domain.ErrNotFound
	}
	o.LineID = &lineID
	return nil
}

func (r *MemOrderRepo) UpdatePricing(ctx context.Context, tx repository.Tx, id, planModelID, bundleID, refillID string, price decimal.Decimal) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	o, ok := r.db.orders[id]
	if !ok {
		return domain.ErrNotFound
	}
	o.PlanModelID, o.BundleID, o.RefillID, o.Price = planModelID, bundleID, refillID, price
	return nil
}

func (r *MemOrderRepo) ListByStatus(ctx context.Context, tx repository.Tx, status model.OrderStatus, before time.Time, limit int) ([]*model.Order, error) {
	return r.ListByStatusAfter(ctx, tx, status, before, repository.OrderCursor{}, limit)
}

func (r *MemOrderRepo) ListByStatusAfter(ctx context.Context, tx repository.Tx, status model.OrderStatus, before time.Time, after repository.OrderCursor, limit int) ([]*model.Order, error) {
	return r.filter(limit, func(o *model.Order) bool {
		if o.Status != status || !o.CreatedAt.Before(before) {
			return false
		}
		if after.IsZero() {
			return true
		}
		return o.CreatedAt.After(after.CreatedAt) || (o.CreatedAt.Equal(after.CreatedAt) && o.ID > after.ID)
	})
}

func (r *MemOrderRepo) ListUnmessaged(ctx context.Context, tx repository.Tx, status model.OrderStatus, before time.Time, subject model.MessageSubject, minStep, limit int) ([]*model.Order, error) {
	return r.filter(limit, func(o *model.Order) bool {
		return o.Status == status && o.CreatedAt.Before(before) && !r.db.hasOutbound(o.ID, subject, minStep)
	})
}

func (r *MemOrderRepo) ListPaidUnmessaged(ctx context.Context, tx repository.Tx, from, to time.Time, subject model.MessageSubject, limit int) ([]*model.Order, error) {
	return r.filter(limit, func(o *model.Order) bool {
		return o.Status == model.OrderStatusActive && o.PaidAt != nil && !o.PaidAt.Before(from) && o.PaidAt.Before(to) &&
			!r.db.hasOutbound(o.ID, subject, 0)
	})
}

// filter returns matching orders in created_at, id order. keep runs under db.mu.
func (r *MemOrderRepo) filter(limit int, keep func(o *model.Order) bool) ([]*model.Order, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []*model.Order
	for _, o := range r.db.orders {
		if keep(o) {
			out = append(out, cloneOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemOrderRepo) FindByLineID(ctx context.Context, tx repository.Tx, lineID string) (*model.Order, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, o := range r.db.orders {
		if o.LineID != nil && *o.LineID == lineID {
			return cloneOrder(o), nil
		}
	}
	return nil, domain.ErrNotFound
}

// ---- Payments ----

type MemPaymentRepo struct {
	db *memDB

	SetSessionFunc func(id, token string) error
}

var _ repository.PaymentRepository = (*MemPaymentRepo)(nil)

func (r *MemPaymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.payCursor++
	r.db.paySeq[p.ID] = r.db.payCursor
	r.db.payments[p.ID] = clonePayment(p)
	return nil
}

func (r *MemPaymentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Payment, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p, ok := r.db.payments[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return clonePayment(p), nil
}

func (r *MemPaymentRepo) FindCurrentByOrder(ctx context.Context, tx repository.Tx, orderID string) (*model.Payment, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var cur *model.Payment
	for _, p := range r.db.payments {
		if p.OrderID != orderID || p.Superseded {
			continue
		}
		if cur == nil || r.db.paySeq[p.ID] > r.db.paySeq[cur.ID] {
			cur = p
		}
	}
	if cur == nil {
		return nil, domain.ErrNotFound
	}
	return clonePayment(cur), nil
}

func (r *MemPaymentRepo) FindBySessionToken(ctx context.Context, tx repository.Tx, token string) (*model.Payment, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, p := range r.db.payments {
		if p.SessionToken == token {
			return clonePayment(p), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *MemPaymentRepo) SetSession(ctx context.Context, tx repository.Tx, id, token, externalID, clearingLogID string) error {
	if r.SetSessionFunc != nil {
		if err := r.SetSessionFunc(id, token); err != nil {
			return err
		}
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p, ok := r.db.payments[id]
	if !ok {
		return domain.ErrNotFound
	}
	p.SessionToken, p.ExternalPaymentID, p.ClearingLogID = token, externalID, clearingLogID
	return nil
}

func (r *MemPaymentRepo) MarkPaidIfPending(ctx context.Context, tx repository.Tx, id, externalID, clearingLogID string, paidAt time.Time) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p, ok := r.db.payments[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	if p.Status != model.PaymentStatusPending {
		return false, nil
	}
	p.Status = model.PaymentStatusPaid
	if externalID != "" {
		p.ExternalPaymentID = externalID
	}
	if clearingLogID != "" {
		p.ClearingLogID = clearingLogID
	}
	p.PaidAt = &paidAt
	return true, nil
}

func (r *MemPaymentRepo) MarkFailedIfPending(ctx context.Context, tx repository.Tx, id, reason string) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p, ok := r.db.payments[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	if p.Status != model.PaymentStatusPending {
		return false, nil
	}
	// Postgres rejects text that is not valid UTF-8 (SQLSTATE 22021).
	if !utf8.ValidString(reason) || strings.ContainsRune(reason, 0) {
		return false, errors.New("invalid byte sequence for encoding \"UTF8\"")
	}
	p.Status = model.PaymentStatusFailed
	p.FailureReason = reason
	return true, nil
}

func (r *MemPaymentRepo) Supersede(ctx context.Context, tx repository.Tx, id string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if p, ok := r.db.payments[id]; ok {
		p.Superseded = true
	}
	return nil
}

func (r *MemPaymentRepo) UpdateAmountIfPending(ctx context.Context, tx repository.Tx, id string, amount decimal.Decimal) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if p, ok := r.db.payments[id]; ok && p.Status == model.PaymentStatusPending {
		p.Amount = amount
	}
	return nil
}

func (r *MemPaymentRepo) SetInvoiceDoc(ctx context.Context, tx repository.Tx, id, docID string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if p, ok := r.db.payments[id]; ok {
		p.InvoiceDocID = docID
	}
	return nil
}

func (r *MemPaymentRepo) ListPaidWithoutInvoice(ctx context.Context, tx repository.Tx, before time.Time, limit int) ([]*model.Payment, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []*model.Payment
	for _, p := range r.db.payments {
		if p.Status == model.PaymentStatusPaid && p.InvoiceDocID == "" && p.PaidAt != nil && p.PaidAt.Before(before) {
			out = append(out, clonePayment(p))
		}
	}
	return out, nil
}

// ---- Coupons ----

type MemCouponRepo struct{ db *memDB }

var _ repository.CouponRepository = (*MemCouponRepo)(nil)

func (r *MemCouponRepo) Save(ctx context.Context, tx repository.Tx, c *model.Coupon) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	cp := *c
	r.db.coupons[c.ID] = &cp
	return nil
}

func (r *MemCouponRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Coupon, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	c, ok := r.db.coupons[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *MemCouponRepo) FindByCode(ctx context.Context, tx repository.Tx, code string) (*model.Coupon, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, c := range r.db.coupons {
		if c.Code == code {
			cp := *c
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *MemCouponRepo) IncrementUses(ctx context.Context, tx repository.Tx, id string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	c, ok := r.db.coupons[id]
	if !ok {
		return domain.ErrNotFound
	}
	c.Uses++
	r.db.CouponIncrements++
	return nil
}

func (r *MemCouponRepo) CountPaidUsesByUser(ctx context.Context, tx repository.Tx, couponID, userID string) (int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	n := 0
	for _, o := range r.db.orders {
		if o.UserID == userID && o.CouponID != nil && *o.CouponID == couponID && o.Paid() {
			n++
		}
	}
	return n, nil
}

// ---- Plan models ----

type MemPlanRepo struct{ db *memDB }

var _ repository.PlanModelRepository = (*MemPlanRepo)(nil)

func (r *MemPlanRepo) Save(ctx context.Context, tx repository.Tx, p *model.PlanModel) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	cp := *p
	r.db.plans[p.ID] = &cp
	return nil
}

func (r *MemPlanRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.PlanModel, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p, ok := r.db.plans[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *MemPlanRepo) ListActive(ctx context.Context, tx repository.Tx) ([]*model.PlanModel, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []*model.PlanModel
	for _, p := range r.db.plans {
		if p.Active {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

// ---- Users ----

type MemUserRepo struct{ db *memDB }

var _ repository.UserRepository = (*MemUserRepo)(nil)

func (r *MemUserRepo) Save(ctx context.Context, tx repository.Tx, u *model.User) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, x := range r.db.users {
		if x.PhoneNumber == u.PhoneNumber && x.ID != u.ID {
			return domain.ErrAlreadyExists
		}
	}
	cp := *u
	r.db.users[u.ID] = &cp
	return nil
}

func (r *MemUserRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	u, ok := r.db.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *MemUserRepo) FindByPhone(ctx context.Context, tx repository.Tx, phone string) (*model.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, u := range r.db.users {
		if u.PhoneNumber == phone {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

// ---- Lines ----

type MemLineRepo struct{ db *memDB }

var _ repository.LineRepository = (*MemLineRepo)(nil)

func (r *MemLineRepo) UpsertByICCID(ctx context.Context, tx repository.Tx, l *model.Line) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, x := range r.db.lines {
		if x.ICCID == l.ICCID {
			l.ID = x.ID
			if l.UserID == "" {
				l.UserID = x.UserID
			}
			if x.OrderID != "" {
				l.OrderID = x.OrderID
			}
			if l.LPACode == "" {
				l.LPACode, l.QRCode = x.LPACode, x.QRCode
			}
			break
		}
	}
	cp := *l
	r.db.lines[l.ID] = &cp
	return nil
}

func (r *MemLineRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Line, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	l, ok := r.db.lines[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *l
	return &cp, nil
}

func (r *MemLineRepo) FindByICCID(ctx context.Context, tx repository.Tx, iccid string) (*model.Line, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, l := range r.db.lines {
		if l.ICCID == iccid {
			cp := *l
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *MemLineRepo) FindByOrderID(ctx context.Context, tx repository.Tx, orderID string) (*model.Line, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, l := range r.db.lines {
		if orderID != "" && l.OrderID == orderID {
			cp := *l
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

// ---- Messages ----

type MemMessageRepo struct{ db *memDB }

var _ repository.MessageRepository = (*MemMessageRepo)(nil)

func (r *MemMessageRepo) Record(ctx context.Context, tx repository.Tx, m *model.Message) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if m.OrderID != nil && m.Direction == model.DirectionOutbound {
		for _, x := range r.db.messages {
			if x.OrderID != nil && *x.OrderID == *m.OrderID && x.Subject == m.Subject && x.Step == m.Step && x.Direction == model.DirectionOutbound {
				return false, nil
			}
		}
	}
	cp := *m
	r.db.messages[m.ID] = &cp
	return true, nil
}

func (r *MemMessageRepo) Exists(ctx context.Context, tx repository.Tx, orderID string, subject model.MessageSubject, step int) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, x := range r.db.messages {
		if x.OrderID != nil && *x.OrderID == orderID && x.Subject == subject && x.Step == step {
			return true, nil
		}
	}
	return false, nil
}

// hasOutbound must be called with db.mu held.
func (db *memDB) hasOutbound(orderID string, subject model.MessageSubject, minStep int) bool {
	for _, x := range db.messages {
		if x.OrderID != nil && *x.OrderID == orderID && x.Subject == subject && x.Step >= minStep &&
			x.Direction == model.DirectionOutbound {
			return true
		}
	}
	return false
}

func (db *memDB) countMessages(orderID string, subject model.MessageSubject) int {
	db.mu.Lock()
	defer db.mu.Unlock()
	n := 0
	for _, x := range db.messages {
		if x.OrderID != nil && *x.OrderID == orderID && x.Subject == subject {
			n++
		}
	}
	return n
}

// ---- Tx manager ----

// MockTxManager serializes transactions, which is enough to emulate row locks in tests.
type MockTxManager struct {
	mu         sync.Mutex
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

func NewMockTxManager() *MockTxManager { return &MockTxManager{} }

var _ repository.TransactionManager = (*MockTxManager)(nil)

func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(ctx, repository.NoTX)
}

// =============================
// Adapters
// =============================

// ---- Mock ClearingGateway ----

type MockGateway struct {
	NameVal string

	mu           sync.Mutex
	CreateCalls  int
	CaptureCalls int

	CreateFunc  func(ctx context.Context, req adapter.ClearingRequest) (adapter.ClearingSession, error)
	CaptureFunc func(ctx context.Context, token, payerRef string) (model.CaptureResult, error)
}

var _ adapter.ClearingGateway = (*MockGateway)(nil)

func (m *MockGateway) Name() string {
	if m.NameVal == "" {
		return "creditcard"
	}
	return m.NameVal
}

func (m *MockGateway) CreateClearingSession(ctx context.Context, req adapter.ClearingRequest) (adapter.ClearingSession, error) {
	m.mu.Lock()
	m.CreateCalls++
	m.mu.Unlock()
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, req)
	}
	tok := "TRACE-" + uuid.NewString()
	return adapter.ClearingSession{SessionToken: tok, RedirectURL: "https://pay.example/" + tok, ExternalPaymentID: "PAY-" + req.PaymentID, ClearingLogID: "LOG-1"}, nil
}

func (m *MockGateway) CaptureSession(ctx context.Context, token, payerRef string) (model.CaptureResult, error) {
	m.mu.Lock()
	m.CaptureCalls++
	m.mu.Unlock()
	if m.CaptureFunc != nil {
		return m.CaptureFunc(ctx, token, payerRef)
	}
	return model.CaptureResult{Approved: true, ExternalPaymentID: "EXT-" + token, Status: "approved"}, nil
}

func (m *MockGateway) captures() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CaptureCalls
}

type MockRegistry map[string]adapter.ClearingGateway

func (r MockRegistry) Gateway(name string) (adapter.ClearingGateway, error) {
	if g, ok := r[name]; ok {
		return g, nil
	}
	return nil, errors.New("unsupported provider " + name)
}

// ---- Mock ConnectivityProvider ----

type MockConnectivity struct {
	mu    sync.Mutex
	Calls int

	CreateLineFunc func(ctx context.Context, bundleID string, mb int64, days int) (adapter.LineAllocation, error)
	DetailFunc     func(ctx context.Context, iccid string) (adapter.LineDetail, error)
	ListFunc       func(ctx context.Context, page, perPage int) (adapter.LinePage, error)
}

var _ adapter.ConnectivityProvider = (*MockConnectivity)(nil)

func (m *MockConnectivity) CreateLine(ctx context.Context, bundleID string, mb int64, days int) (adapter.LineAllocation, error) {
	m.mu.Lock()
	m.Calls++
	n := m.Calls
	m.mu.Unlock()
	if m.CreateLineFunc != nil {
		return m.CreateLineFunc(ctx, bundleID, mb, days)
	}
	return adapter.LineAllocation{Ack: true, ICCID: fmt.Sprintf("8997%016d", n), LPACode: "LPA:1$smdp.example$ACT" + uuid.NewString()[:8], Status: "active"}, nil
}

func (m *MockConnectivity) LineDetail(ctx context.Context, iccid string) (adapter.LineDetail, error) {
	if m.DetailFunc != nil {
		return m.DetailFunc(ctx, iccid)
	}
	return adapter.LineDetail{ICCID: iccid, Status: "active"}, nil
}

func (m *MockConnectivity) ListLines(ctx context.Context, page, perPage int) (adapter.LinePage, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, page, perPage)
	}
	return adapter.LinePage{}, nil
}

func (m *MockConnectivity) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Calls
}

type MockQR struct{ Err error }

func (m *MockQR) PNG(content string, size int) ([]byte, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return []byte("png:" + content), nil
}

type MockQRStore struct{ Err error }

func (m *MockQRStore) Put(ctx context.Context, key string, png []byte) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}
	return "https://cdn.example/" + key, nil
}

// ---- Mock notification channels ----

type MockMailer struct {
	mu       sync.Mutex
	Sent     []adapter.Email
	SendFunc func(ctx context.Context, e adapter.Email) error
}

func (m *MockMailer) Send(ctx context.Context, e adapter.Email) error {
	if m.SendFunc != nil {
		if err := m.SendFunc(ctx, e); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, e)
	return nil
}

func (m *MockMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Sent)
}

type MockWhatsApp struct {
	mu   sync.Mutex
	Sent []string
	Err  error
}

func (m *MockWhatsApp) SendWhatsApp(ctx context.Context, to, body string) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, to+": "+body)
	return nil
}

type MockCaptcha struct {
	Score float64
	Err   error
}

func (m *MockCaptcha) Verify(ctx context.Context, token, ip string) (float64, error) {
	return m.Score, m.Err
}

type MockInvoicer struct {
	mu    sync.Mutex
	Calls []adapter.InvoiceRequest
	Err   error
}

func (m *MockInvoicer) IssueInvoice(ctx context.Context, req adapter.InvoiceRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, req)
	if m.Err != nil {
		return "", m.Err
	}
	return "DOC-" + req.PaymentID, nil
}

type MockEvents struct {
	mu     sync.Mutex
	Events []adapter.OrderEvent
}

func (m *MockEvents) Publish(ctx context.Context, ev adapter.OrderEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, ev)
	return nil
}

func (m *MockEvents) types() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.Events))
	for _, e := range m.Events {
		out = append(out, e.Type)
	}
	return out
}

type MockAlerter struct {
	mu   sync.Mutex
	Sent []string
}

func (m *MockAlerter) Alert(ctx context.Context, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, text)
	return nil
}

// ---- In-memory Locker (implements the Redis lock port) ----

type MockLocker struct {
	mu    sync.Mutex
	held  map[string]string
	ErrOn map[string]error
}

func NewMockLocker() *MockLocker {
	return &MockLocker{held: map[string]string{}, ErrOn: map[string]error{}}
}

func (l *MockLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err, bad := l.ErrOn[key]; bad {
		return "", err
	}
	if tok, ok := l.held[key]; ok && tok != "" {
		return "", domain.ErrLockNotAcquired
	}
	tok := uuid.NewString()
	l.held[key] = tok
	return tok, nil
}

func (l *MockLocker) Unlock(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] == token {
		delete(l.held, key)
		return nil
	}
	return errors.New("unlock token mismatch")
}

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

func newTestTranslator() *i18n.Translator {
	testFS := fstest.MapFS{
		"locales/he.yaml": {Data: []byte(`
line_ready.subject: "ready {order}"
line_ready.html: "hi {name} {qr} {days}"
line_ready.text: "hi {name}"
line_pending.subject: "pending {order}"
line_pending.html: "hi {name} pending"
line_pending.text: "pending"
abandoned_cart.1: "come back {name} {link}"
abandoned_cart.2: "last call {name} {link}"
feedback.1: "how was it {name} {link}"
`)},
	}
	translator, _ := i18n.NewTranslator(testFS, "he")
	return translator
}

// =============================
// Fixture
// =============================

type fixture struct {
	db        *memDB
	tm        *MockTxManager
	orders    *MemOrderRepo
	payments  *MemPaymentRepo
	coupons   *MemCouponRepo
	plans     *MemPlanRepo
	users     *MemUserRepo
	lines     *MemLineRepo
	messages  *MemMessageRepo
	gateway   *MockGateway
	paypal    *MockGateway
	conn      *MockConnectivity
	mailer    *MockMailer
	whatsapp  *MockWhatsApp
	captcha   *MockCaptcha
	invoicer  *MockInvoicer
	events    *MockEvents
	alerts    *MockAlerter
	locker    *MockLocker
	plan      *model.PlanModel
	store     *usecase.OrderStore
	notifier  *usecase.NotificationDispatcher
	provision *usecase.LineProvisioner
	checkout  *usecase.CheckoutUseCase
}

func newFixture() *fixture {
	db := newMemDB()
	f := &fixture{
		db:       db,
		tm:       NewMockTxManager(),
		orders:   &MemOrderRepo{db: db},
		payments: &MemPaymentRepo{db: db},
		coupons:  &MemCouponRepo{db: db},
		plans:    &MemPlanRepo{db: db},
		users:    &MemUserRepo{db: db},
		lines:    &MemLineRepo{db: db},
		messages: &MemMessageRepo{db: db},
		gateway:  &MockGateway{NameVal: "creditcard"},
		paypal:   &MockGateway{NameVal: "paypal"},
		conn:     &MockConnectivity{},
		mailer:   &MockMailer{},
		whatsapp: &MockWhatsApp{},
		captcha:  &MockCaptcha{Score: 0.9},
		invoicer: &MockInvoicer{},
		events:   &MockEvents{},
		alerts:   &MockAlerter{},
		locker:   NewMockLocker(),
	}
	f.plan = &model.PlanModel{
		ID: "plan-eu", Name: "Europe 5GB", BundleID: "bundle-eu",
		Refill:    model.Refill{ID: "refill-5gb", AmountMB: 5120, Days: 30},
		BasePrice: decimal.NewFromInt(100), Currency: "ILS", Active: true,
	}
	_ = f.plans.Save(context.Background(), nil, f.plan)
	_ = f.plans.Save(context.Background(), nil, &model.PlanModel{
		ID: "plan-world", Name: "World 10GB", BundleID: "bundle-world",
		Refill:    model.Refill{ID: "refill-10gb", AmountMB: 10240, Days: 15},
		BasePrice: decimal.NewFromInt(150), Currency: "ILS", Active: true,
	})

	log := newTestLogger()
	f.store = usecase.NewOrderStore(f.tm, f.orders, f.payments, f.coupons, f.plans, log)
	f.notifier = usecase.NewNotificationDispatcher(f.mailer, f.whatsapp, f.messages, f.plans, newTestTranslator(), log)
	f.provision = usecase.NewLineProvisioner(f.conn, &MockQR{}, &MockQRStore{}, f.lines, f.plans, time.Second, log)
	f.rebuildCheckout(f.locker)
	return f
}

// rebuildCheckout recreates the orchestrator with the given locker; nil disables locking.
func (f *fixture) rebuildCheckout(locker adapter.Locker) {
	f.checkout = usecase.NewCheckoutUseCase(usecase.CheckoutDeps{
		Store:       f.store,
		Gateways:    MockRegistry{"creditcard": f.gateway, "paypal": f.paypal},
		Provisioner: f.provision,
		Notifier:    f.notifier,
		Users:       f.users,
		Coupons:     f.coupons,
		Captcha:     f.captcha,
		Invoicer:    f.invoicer,
		Events:      f.events,
		Alerts:      f.alerts,
		Locker:      locker,
	}, usecase.CheckoutConfig{
		CallbackURL:     "https://api.example/order/payment/callback",
		CancelURL:       "https://shop.example/error?error=Order",
		DefaultProvider: "creditcard",
		Currency:        "ILS",
	}, newTestLogger())
}

func (f *fixture) addCoupon(c *model.Coupon) *model.Coupon {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	_ = f.coupons.Save(context.Background(), nil, c)
	return c
}

func (f *fixture) placeInput() usecase.PlaceOrderInput {
	return usecase.PlaceOrderInput{
		FirstName:    "Dana",
		LastName:     "Levi",
		Email:        "dana@example.com",
		PhoneNumber:  "+972501234567",
		PlanModelID:  f.plan.ID,
		CaptchaToken: "tok",
		RemoteIP:     "10.0.0.1",
	}
}

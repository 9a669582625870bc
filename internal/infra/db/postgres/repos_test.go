//go:build integration

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"esim-storefront/internal/domain"
	"esim-storefront/internal/domain/model"
	"esim-storefront/internal/infra/security"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func TestUserRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}
	ctx := context.Background()
	repo := NewUserRepo(testPool)

	t.Run("should find by normalized phone", func(t *testing.T) {
		s := seed(t)
		found, err := repo.FindByPhone(ctx, nil, "+972 50-123-4567")
		if err != nil {
			t.Fatalf("FindByPhone failed: %v", err)
		}
		if found.ID != s.user.ID || found.Email != "dana@example.com" {
			t.Errorf("unexpected user: %+v", found)
		}
	})

	t.Run("phone numbers are unique", func(t *testing.T) {
		seed(t)
		dup, _ := model.NewUser("", "Other", "Person", "o@example.com", "+972501234567")
		if err := repo.Save(ctx, nil, dup); !errors.Is(err, domain.ErrAlreadyExists) {
			t.Fatalf("expected ErrAlreadyExists, got %v", err)
		}
	})
}

func TestCouponRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}
	ctx := context.Background()
	repo := NewCouponRepo(testPool)
	orders := NewOrderRepo(testPool)

	s := seed(t)
	c := &model.Coupon{
		ID: uuid.NewString(), Code: "summer10", DiscountType: model.DiscountPercent, Discount: decimal.NewFromInt(10),
		MaxUsesPerUser: 1, MaxUsesTotal: model.Unlimited, CreatedAt: time.Now(),
	}
	if err := repo.Save(ctx, nil, c); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	found, err := repo.FindByCode(ctx, nil, " Summer10 ")
	if err != nil {
		t.Fatalf("FindByCode failed: %v", err)
	}
	if found.ID != c.ID || found.DiscountType != model.DiscountPercent {
		t.Errorf("unexpected coupon: %+v", found)
	}

	if err := repo.IncrementUses(ctx, nil, c.ID); err != nil {
		t.Fatalf("IncrementUses failed: %v", err)
	}
	found, _ = repo.FindByID(ctx, nil, c.ID)
	if found.Uses != 1 {
		t.Errorf("expected 1 use, got %d", found.Uses)
	}

	pending := newOrder(s, model.OrderStatusPending, time.Now())
	pending.CouponID = &c.ID
	paid := newOrder(s, model.OrderStatusActive, time.Now())
	paid.CouponID = &c.ID
	_ = orders.Save(ctx, nil, pending)
	_ = orders.Save(ctx, nil, paid)

	n, err := repo.CountPaidUsesByUser(ctx, nil, c.ID, s.user.ID)
	if err != nil {
		t.Fatalf("CountPaidUsesByUser failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 paid use, got %d", n)
	}
}

func TestLineRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}
	ctx := context.Background()
	cipher, err := security.NewFieldCipher("0123456789abcdef0123456789abcdef")
	if err != nil {
		t.Fatalf("NewFieldCipher failed: %v", err)
	}
	repo := NewLineRepo(testPool, cipher)

	s := seed(t)
	order := newOrder(s, model.OrderStatusPendingLine, time.Now())
	if err := NewOrderRepo(testPool).Save(ctx, nil, order); err != nil {
		t.Fatalf("Save order failed: %v", err)
	}
	line := &model.Line{
		ID: uuid.NewString(), ICCID: "8997212330000000001", LPACode: "LPA:1$smdp.example$ACT",
		Status: "active", UserID: s.user.ID, OrderID: order.ID, BundleID: "bundle-eu", CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}
	if err := repo.UpsertByICCID(ctx, nil, line); err != nil {
		t.Fatalf("UpsertByICCID failed: %v", err)
	}
	originalID := line.ID

	var stored string
	_ = testPool.QueryRow(ctx, `SELECT lpa_code FROM lines WHERE id=$1`, line.ID).Scan(&stored)
	if !security.Sealed(stored) {
		t.Errorf("expected sealed lpa code at rest, got %q", stored)
	}

	update := &model.Line{
		ID: uuid.NewString(), ICCID: line.ICCID, Status: "deactivated", RemainingUsageKB: 12,
		DeactivatedAt: ptrTime(time.Now()), CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}
	if err := repo.UpsertByICCID(ctx, nil, update); err != nil {
		t.Fatalf("second UpsertByICCID failed: %v", err)
	}
	if update.ID != originalID {
		t.Errorf("expected upsert to keep id %s, got %s", originalID, update.ID)
	}

	found, err := repo.FindByICCID(ctx, nil, line.ICCID)
	if err != nil {
		t.Fatalf("FindByICCID failed: %v", err)
	}
	if found.LPACode != line.LPACode {
		t.Errorf("expected lpa code to survive an empty update, got %q", found.LPACode)
	}
	if !found.Deactivated() || found.UserID != s.user.ID || found.OrderID != order.ID {
		t.Errorf("unexpected line: %+v", found)
	}

	byOrder, err := repo.FindByOrderID(ctx, nil, order.ID)
	if err != nil || byOrder.ID != originalID {
		t.Errorf("FindByOrderID: %v, %v", byOrder, err)
	}
	if _, err := repo.FindByOrderID(ctx, nil, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMessageRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}
	ctx := context.Background()
	repo := NewMessageRepo(testPool)
	s := seed(t)
	o := newOrder(s, model.OrderStatusPending, time.Now())
	_ = NewOrderRepo(testPool).Save(ctx, nil, o)

	msg := func() *model.Message {
		return &model.Message{
			UserID: s.user.ID, OrderID: &o.ID, Subject: model.SubjectAbandonedCart, Channel: model.ChannelWhatsApp,
			Direction: model.DirectionOutbound, Step: 1, Template: "cart_1", CreatedAt: time.Now(),
		}
	}

	ok, err := repo.Record(ctx, nil, msg())
	if err != nil || !ok {
		t.Fatalf("expected first Record to insert, got %v, %v", ok, err)
	}
	ok, err = repo.Record(ctx, nil, msg())
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if ok {
		t.Error("expected duplicate step to be skipped")
	}

	inbound := msg()
	inbound.Direction = model.DirectionInbound
	inbound.Subject = model.SubjectIncoming
	if ok, _ := repo.Record(ctx, nil, inbound); !ok {
		t.Error("expected inbound message to be stored")
	}

	exists, err := repo.Exists(ctx, nil, o.ID, model.SubjectAbandonedCart, 1)
	if err != nil || !exists {
		t.Errorf("expected step 1 to exist, got %v, %v", exists, err)
	}
	exists, _ = repo.Exists(ctx, nil, o.ID, model.SubjectAbandonedCart, 2)
	if exists {
		t.Error("expected step 2 to be absent")
	}
}

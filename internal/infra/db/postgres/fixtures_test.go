//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"esim-storefront/internal/domain/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type seeded struct {
	user *model.User
	plan *model.PlanModel
}

func seed(t *testing.T) seeded {
	t.Helper()
	cleanup(t)
	ctx := context.Background()

	u, err := model.NewUser("", "Dana", "Levi", "dana@example.com", "+972501234567")
	if err != nil {
		t.Fatalf("model.NewUser() failed: %v", err)
	}
	if err := NewUserRepo(testPool).Save(ctx, nil, u); err != nil {
		t.Fatalf("failed to save user: %v", err)
	}
	p, err := model.NewPlanModel("", "Europe 10GB", "bundle-eu", model.Refill{ID: "refill-10", Title: "10GB", AmountMB: 10240, Days: 30}, decimal.RequireFromString("99.90"), "ILS")
	if err != nil {
		t.Fatalf("model.NewPlanModel() failed: %v", err)
	}
	if err := NewPlanModelRepo(testPool).Save(ctx, nil, p); err != nil {
		t.Fatalf("failed to save plan: %v", err)
	}
	return seeded{user: u, plan: p}
}

func newOrder(s seeded, status model.OrderStatus, createdAt time.Time) *model.Order {
	return &model.Order{
		ID:          uuid.NewString(),
		UserID:      s.user.ID,
		PlanModelID: s.plan.ID,
		BundleID:    s.plan.BundleID,
		RefillID:    s.plan.Refill.ID,
		Status:      status,
		Price:       s.plan.BasePrice,
		Currency:    "ILS",
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}
}

func newPayment(o *model.Order, token string) *model.Payment {
	now := time.Now()
	return &model.Payment{
		ID:           uuid.NewString(),
		OrderID:      o.ID,
		UserID:       o.UserID,
		Provider:     "invoice4u",
		Status:       model.PaymentStatusPending,
		Amount:       o.Price,
		Currency:     o.Currency,
		SessionToken: token,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func recordOutbound(t *testing.T, s seeded, orderID string, subject model.MessageSubject, step int) {
	t.Helper()
	_, err := NewMessageRepo(testPool).Record(context.Background(), nil, &model.Message{
		UserID:    s.user.ID,
		OrderID:   &orderID,
		Subject:   subject,
		Channel:   model.ChannelWhatsApp,
		Direction: model.DirectionOutbound,
		Step:      step,
		CreatedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("failed to record message: %v", err)
	}
}

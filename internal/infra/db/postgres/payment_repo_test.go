//go:build integration

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"esim-storefront/internal/domain"
	"esim-storefront/internal/domain/model"
)

func TestPaymentRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}
	ctx := context.Background()
	repo := NewPaymentRepo(testPool)
	orders := NewOrderRepo(testPool)

	setup := func(t *testing.T) *model.Order {
		s := seed(t)
		o := newOrder(s, model.OrderStatusPending, time.Now())
		if err := orders.Save(ctx, nil, o); err != nil {
			t.Fatalf("failed to save order: %v", err)
		}
		return o
	}

	t.Run("should save and find a payment by session token", func(t *testing.T) {
		o := setup(t)
		p := newPayment(o, "trace-123")
		if err := repo.Save(ctx, nil, p); err != nil {
			t.Fatalf("Save failed: %v", err)
		}

		found, err := repo.FindBySessionToken(ctx, nil, "trace-123")
		if err != nil {
			t.Fatalf("FindBySessionToken failed: %v", err)
		}
		if found.ID != p.ID || !found.Amount.Equal(o.Price) {
			t.Errorf("unexpected payment: %+v", found)
		}
		if _, err := repo.FindBySessionToken(ctx, nil, ""); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound for empty token, got %v", err)
		}
	})

	t.Run("session tokens are unique", func(t *testing.T) {
		o := setup(t)
		_ = repo.Save(ctx, nil, newPayment(o, "dup"))
		err := repo.Save(ctx, nil, newPayment(o, "dup"))
		if !errors.Is(err, domain.ErrAlreadyExists) {
			t.Fatalf("expected ErrAlreadyExists, got %v", err)
		}
	})

	t.Run("should mark paid only once", func(t *testing.T) {
		o := setup(t)
		p := newPayment(o, "trace-1")
		_ = repo.Save(ctx, nil, p)

		ok, err := repo.MarkPaidIfPending(ctx, nil, p.ID, "ext-1", "log-1", time.Now())
		if err != nil || !ok {
			t.Fatalf("expected first MarkPaid to apply, got %v, %v", ok, err)
		}
		ok, err = repo.MarkPaidIfPending(ctx, nil, p.ID, "ext-2", "log-2", time.Now())
		if err != nil {
			t.Fatalf("MarkPaidIfPending failed: %v", err)
		}
		if ok {
			t.Error("expected second MarkPaid to be rejected")
		}
		ok, _ = repo.MarkFailedIfPending(ctx, nil, p.ID, "late decline")
		if ok {
			t.Error("expected MarkFailed on a paid payment to be rejected")
		}

		found, _ := repo.FindByID(ctx, nil, p.ID)
		if found.Status != model.PaymentStatusPaid || found.ExternalPaymentID != "ext-1" || found.ClearingLogID != "log-1" {
			t.Errorf("unexpected payment after capture: %+v", found)
		}
	})

	t.Run("current payment skips superseded attempts", func(t *testing.T) {
		o := setup(t)
		first := newPayment(o, "t1")
		_ = repo.Save(ctx, nil, first)
		if err := repo.Supersede(ctx, nil, first.ID); err != nil {
			t.Fatalf("Supersede failed: %v", err)
		}
		second := newPayment(o, "t2")
		second.CreatedAt = first.CreatedAt.Add(time.Second)
		_ = repo.Save(ctx, nil, second)

		cur, err := repo.FindCurrentByOrder(ctx, nil, o.ID)
		if err != nil {
			t.Fatalf("FindCurrentByOrder failed: %v", err)
		}
		if cur.ID != second.ID {
			t.Errorf("expected the newest attempt, got %s", cur.ID)
		}
	})

	t.Run("should list paid payments without invoices", func(t *testing.T) {
		o := setup(t)
		p := newPayment(o, "t1")
		_ = repo.Save(ctx, nil, p)
		_, _ = repo.MarkPaidIfPending(ctx, nil, p.ID, "", "", time.Now().Add(-time.Hour))

		list, err := repo.ListPaidWithoutInvoice(ctx, nil, time.Now().Add(-10*time.Minute), 10)
		if err != nil {
			t.Fatalf("ListPaidWithoutInvoice failed: %v", err)
		}
		if len(list) != 1 {
			t.Fatalf("expected one payment, got %d", len(list))
		}

		if err := repo.SetInvoiceDoc(ctx, nil, p.ID, "doc-1"); err != nil {
			t.Fatalf("SetInvoiceDoc failed: %v", err)
		}
		list, _ = repo.ListPaidWithoutInvoice(ctx, nil, time.Now(), 10)
		if len(list) != 0 {
			t.Errorf("expected no payments after invoicing, got %d", len(list))
		}
	})
}

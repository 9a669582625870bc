//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"esim-storefront/internal/domain/model"
	"esim-storefront/internal/domain/ports/adapter"
	"esim-storefront/internal/usecase"
)

func TestNotificationDispatcher_Notify(t *testing.T) {
	ctx := context.Background()
	user := &model.User{ID: "user-1", FirstName: "Dana", LastName: "Levi", Email: "dana@example.com", PhoneNumber: "+972501234567", Locale: "he"}

	t.Run("should render the template and send once", func(t *testing.T) {
		f := newFixture()
		order := &model.Order{ID: "o-1", FriendlyID: 1042, PlanModelID: f.plan.ID}
		line := &model.Line{QRCode: "https://cdn.example/qr.png"}

		f.notifier.Notify(ctx, usecase.NotifyLineReady, order, user, line)
		f.notifier.Notify(ctx, usecase.NotifyLineReady, order, user, line)

		if f.mailer.count() != 1 {
			t.Fatalf("expected one email, got %d", f.mailer.count())
		}
		e := f.mailer.Sent[0]
		if e.To != "dana@example.com" || e.Subject != "ready 1042" {
			t.Errorf("unexpected email %+v", e)
		}
		if !strings.Contains(e.HTMLBody, "https://cdn.example/qr.png") || !strings.Contains(e.HTMLBody, "30") {
			t.Errorf("qr or days missing from body: %s", e.HTMLBody)
		}
	})

	t.Run("should keep the claim when delivery fails", func(t *testing.T) {
		f := newFixture()
		f.mailer.SendFunc = func(ctx context.Context, e adapter.Email) error { return errors.New("smtp down") }
		order := &model.Order{ID: "o-2", FriendlyID: 7, PlanModelID: f.plan.ID}

		f.notifier.Notify(ctx, usecase.NotifyLinePending, order, user, nil)
		f.mailer.SendFunc = nil
		f.notifier.Notify(ctx, usecase.NotifyLinePending, order, user, nil)

		if f.mailer.count() != 0 {
			t.Errorf("at-most-once: no resend after a failed attempt, got %d", f.mailer.count())
		}
		if f.db.countMessages(order.ID, model.SubjectLinePending) != 1 {
			t.Error("expected the claimed message row")
		}
	})

	t.Run("should escape customer input in the html body", func(t *testing.T) {
		f := newFixture()
		evil := *user
		evil.FirstName = `<a href="https://evil.example">Claim refund</a>`
		order := &model.Order{ID: "o-4", PlanModelID: f.plan.ID}

		f.notifier.Notify(ctx, usecase.NotifyLinePending, order, &evil, nil)

		if f.mailer.count() != 1 {
			t.Fatalf("expected one email, got %d", f.mailer.count())
		}
		body := f.mailer.Sent[0].HTMLBody
		if strings.Contains(body, "<a ") || !strings.Contains(body, "&lt;a href=") {
			t.Errorf("markup was not escaped: %s", body)
		}
	})

	t.Run("should track kinds separately", func(t *testing.T) {
		f := newFixture()
		order := &model.Order{ID: "o-3", PlanModelID: f.plan.ID}
		f.notifier.Notify(ctx, usecase.NotifyLinePending, order, user, nil)
		f.notifier.Notify(ctx, usecase.NotifyLineReady, order, user, &model.Line{})
		if f.mailer.count() != 2 {
			t.Errorf("expected two emails, got %d", f.mailer.count())
		}
	})
}

func TestNotificationDispatcher_SendWhatsApp(t *testing.T) {
	ctx := context.Background()
	user := &model.User{ID: "user-1", FirstName: "Dana", PhoneNumber: "+972501234567", Locale: "he"}

	t.Run("should send each step once", func(t *testing.T) {
		f := newFixture()
		order := &model.Order{ID: "o-1", PlanModelID: f.plan.ID}
		if !f.notifier.SendWhatsApp(ctx, model.SubjectAbandonedCart, 1, order, user, "https://shop.example/finish") {
			t.Fatal("expected first step to be sent")
		}
		if f.notifier.SendWhatsApp(ctx, model.SubjectAbandonedCart, 1, order, user, "https://shop.example/finish") {
			t.Error("step 1 must not be sent twice")
		}
		if !f.notifier.SendWhatsApp(ctx, model.SubjectAbandonedCart, 2, order, user, "https://shop.example/finish") {
			t.Error("expected step 2 to be sent")
		}
		if len(f.whatsapp.Sent) != 2 || !strings.Contains(f.whatsapp.Sent[0], "come back Dana https://shop.example/finish") {
			t.Errorf("unexpected messages %v", f.whatsapp.Sent)
		}
	})

	t.Run("should skip steps without a template", func(t *testing.T) {
		f := newFixture()
		order := &model.Order{ID: "o-2", PlanModelID: f.plan.ID}
		if f.notifier.SendWhatsApp(ctx, model.SubjectFeedback, 5, order, user, "") {
			t.Error("expected no message for a missing template")
		}
		if f.db.countMessages(order.ID, model.SubjectFeedback) != 0 {
			t.Error("nothing must be claimed")
		}
	})

	t.Run("should report delivery failures", func(t *testing.T) {
		f := newFixture()
		f.whatsapp.Err = errors.New("twilio 500")
		order := &model.Order{ID: "o-3", PlanModelID: f.plan.ID}
		if f.notifier.SendWhatsApp(ctx, model.SubjectFeedback, 1, order, user, "") {
			t.Error("expected false on failure")
		}
	})
}

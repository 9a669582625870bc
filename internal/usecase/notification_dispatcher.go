package usecase

import (
	"context"
	"strconv"
	"time"

	"esim-storefront/internal/domain"
	"esim-storefront/internal/domain/model"
	"esim-storefront/internal/domain/ports/adapter"
	"esim-storefront/internal/domain/ports/repository"
	"esim-storefront/internal/infra/i18n"
	"esim-storefront/internal/infra/logging"
	"esim-storefront/internal/infra/metrics"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type NotificationKind string

const (
	NotifyLineReady   NotificationKind = "line_ready"
	NotifyLinePending NotificationKind = "line_pending"
)

func (k NotificationKind) subject() model.MessageSubject {
	if k == NotifyLineReady {
		return model.SubjectLineReady
	}
	return model.SubjectLinePending
}

// NotificationDispatcher sends customer notifications at most once per (order, subject, step).
// Delivery failures are logged and counted; they never reach the caller.
type NotificationDispatcher struct {
	mailer   adapter.Mailer
	whatsapp adapter.WhatsAppSender
	messages repository.MessageRepository
	plans    repository.PlanModelRepository
	tr       *i18n.Translator
	log      *zerolog.Logger
}

func NewNotificationDispatcher(
	mailer adapter.Mailer,
	whatsapp adapter.WhatsAppSender,
	messages repository.MessageRepository,
	plans repository.PlanModelRepository,
	tr *i18n.Translator,
	logger *zerolog.Logger,
) *NotificationDispatcher {
	return &NotificationDispatcher{
		mailer:   mailer,
		whatsapp: whatsapp,
		messages: messages,
		plans:    plans,
		tr:       tr,
		log:      logger,
	}
}

// Notify emails the customer about the order's line. line is required for line_ready.
func (d *NotificationDispatcher) Notify(ctx context.Context, kind NotificationKind, order *model.Order, user *model.User, line *model.Line) {
	log := logging.With(logging.WithStep(logging.WithOrderID(ctx, order.ID), "notify"), d.log)

	claimed, err := d.claim(ctx, order, user, kind.subject(), model.ChannelEmail, 0, string(kind))
	if err != nil {
		metrics.IncNotification(string(kind), string(model.ChannelEmail), "failed")
		log.Error().Err(err).Str("kind", string(kind)).Msg("failed to record notification")
		return
	}
	if !claimed {
		metrics.IncNotification(string(kind), string(model.ChannelEmail), "skipped")
		log.Debug().Str("kind", string(kind)).Msg("notification already sent")
		return
	}

	vars := d.vars(ctx, order, user)
	if line != nil {
		vars["qr"] = line.QRCode
	}
	key := string(kind)
	email := adapter.Email{
		To:       user.Email,
		ToName:   user.FullName(),
		Subject:  d.tr.T(user.Locale, key+".subject", vars),
		HTMLBody: d.tr.HTML(user.Locale, key+".html", vars),
		TextBody: d.tr.T(user.Locale, key+".text", vars),
	}
	if err := d.mailer.Send(ctx, email); err != nil {
		nerr := &domain.NotificationError{Channel: string(model.ChannelEmail), Kind: key, Err: err}
		metrics.IncNotification(key, string(model.ChannelEmail), "failed")
		log.Error().Err(nerr).Str("to", logging.Redact(user.Email, false)).Msg("notification failed")
		return
	}
	metrics.IncNotification(key, string(model.ChannelEmail), "sent")
	log.Info().Str("kind", key).Msg("notification sent")
}

// SendWhatsApp delivers one marketing step. It reports whether a message went out.
func (d *NotificationDispatcher) SendWhatsApp(ctx context.Context, subject model.MessageSubject, step int, order *model.Order, user *model.User, link string) bool {
	log := logging.With(logging.WithOrderID(ctx, order.ID), d.log)
	key := templateKey(subject, step)
	kind := string(subject)

	if !d.tr.Has(user.Locale, key) {
		log.Warn().Str("template", key).Msg("no template for marketing step")
		return false
	}
	claimed, err := d.claim(ctx, order, user, subject, model.ChannelWhatsApp, step, key)
	if err != nil {
		metrics.IncNotification(kind, string(model.ChannelWhatsApp), "failed")
		log.Error().Err(err).Str("template", key).Msg("failed to record notification")
		return false
	}
	if !claimed {
		metrics.IncNotification(kind, string(model.ChannelWhatsApp), "skipped")
		return false
	}

	vars := d.vars(ctx, order, user)
	vars["link"] = link
	if err := d.whatsapp.SendWhatsApp(ctx, user.PhoneNumber, d.tr.T(user.Locale, key, vars)); err != nil {
		nerr := &domain.NotificationError{Channel: string(model.ChannelWhatsApp), Kind: key, Err: err}
		metrics.IncNotification(kind, string(model.ChannelWhatsApp), "failed")
		log.Error().Err(nerr).Str("to", logging.Redact(user.PhoneNumber, false)).Msg("whatsapp failed")
		return false
	}
	metrics.IncNotification(kind, string(model.ChannelWhatsApp), "sent")
	return true
}

func (d *NotificationDispatcher) claim(ctx context.Context, order *model.Order, user *model.User, subject model.MessageSubject, ch model.MessageChannel, step int, tpl string) (bool, error) {
	orderID := order.ID
	return d.messages.Record(ctx, repository.NoTX, &model.Message{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		OrderID:   &orderID,
		Subject:   subject,
		Channel:   ch,
		Direction: model.DirectionOutbound,
		Step:      step,
		Template:  tpl,
		CreatedAt: time.Now(),
	})
}

func (d *NotificationDispatcher) vars(ctx context.Context, order *model.Order, user *model.User) map[string]string {
	vars := map[string]string{
		"name":  user.FullName(),
		"order": strconv.FormatInt(order.FriendlyID, 10),
		"days":  "",
	}
	if plan, err := d.plans.FindByID(ctx, repository.NoTX, order.PlanModelID); err == nil {
		vars["days"] = strconv.Itoa(plan.Refill.Days)
		vars["plan"] = plan.Name
	}
	return vars
}

func templateKey(subject model.MessageSubject, step int) string {
	switch subject {
	case model.SubjectAbandonedCart:
		return "abandoned_cart." + strconv.Itoa(step)
	case model.SubjectFeedback:
		return "feedback." + strconv.Itoa(step)
	}
	return string(subject)
}

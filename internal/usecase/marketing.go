package usecase

import (
	"context"
	"sort"
	"time"

	"esim-storefront/internal/domain/model"
	"esim-storefront/internal/domain/ports/repository"

	"github.com/rs/zerolog"
)

// WhatsAppNotifier sends one marketing step at most once.
type WhatsAppNotifier interface {
	SendWhatsApp(ctx context.Context, subject model.MessageSubject, step int, order *model.Order, user *model.User, link string) bool
}

type MarketingConfig struct {
	AbandonedCartEnabled bool
	AbandonedCartSteps   []time.Duration // delay after order creation, step 1 first
	FeedbackEnabled      bool
	FeedbackAfter        time.Duration
	FeedbackWindow       time.Duration // paid orders older than FeedbackAfter+FeedbackWindow are skipped
	ResumeURL            string        // ?id=<order> is appended
	FeedbackURL          string
	BatchSize            int
}

// MarketingUseCase sends abandoned-cart reminders and post-activation feedback requests.
type MarketingUseCase struct {
	orders   repository.OrderRepository
	users    repository.UserRepository
	messages repository.MessageRepository
	sender   WhatsAppNotifier
	cfg      MarketingConfig
	log      *zerolog.Logger
	now      func() time.Time
}

func NewMarketingUseCase(
	orders repository.OrderRepository,
	users repository.UserRepository,
	messages repository.MessageRepository,
	sender WhatsAppNotifier,
	cfg MarketingConfig,
	logger *zerolog.Logger,
) *MarketingUseCase {
	if cfg.FeedbackWindow <= 0 {
		cfg.FeedbackWindow = 7 * 24 * time.Hour
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	l := logger.With().Str("component", "Marketing").Logger()
	return &MarketingUseCase{
		orders:   orders,
		users:    users,
		messages: messages,
		sender:   sender,
		cfg:      cfg,
		log:      &l,
		now:      time.Now,
	}
}

// SendAbandonedCart reminds owners of unpaid orders. Only the latest due step is sent
// for an order, so a late run never delivers two reminders at once.
func (m *MarketingUseCase) SendAbandonedCart(ctx context.Context) (int, error) {
	if !m.cfg.AbandonedCartEnabled || len(m.cfg.AbandonedCartSteps) == 0 {
		return 0, nil
	}
	type step struct {
		n     int
		delay time.Duration
	}
	steps := make([]step, 0, len(m.cfg.AbandonedCartSteps))
	for i, d := range m.cfg.AbandonedCartSteps {
		steps = append(steps, step{n: i + 1, delay: d})
	}
	sort.Slice(steps, func(i, j int) bool { return steps[i].delay > steps[j].delay })

	now := m.now()
	handled := map[string]bool{}
	sent := 0
	for _, st := range steps {
		orders, err := m.orders.ListUnmessaged(ctx, repository.NoTX, model.OrderStatusPending, now.Add(-st.delay),
			model.SubjectAbandonedCart, st.n, m.cfg.BatchSize)
		if err != nil {
			return sent, err
		}
		for _, o := range orders {
			if handled[o.ID] {
				continue
			}
			handled[o.ID] = true
			if m.send(ctx, model.SubjectAbandonedCart, st.n, o, withQuery(m.cfg.ResumeURL, "id", o.ID)) {
				sent++
			}
		}
	}
	if sent > 0 {
		m.log.Info().Int("count", sent).Msg("abandoned cart reminders sent")
	}
	return sent, nil
}

// SendFeedback asks for feedback once an active order has been in use for FeedbackAfter.
func (m *MarketingUseCase) SendFeedback(ctx context.Context) (int, error) {
	if !m.cfg.FeedbackEnabled {
		return 0, nil
	}
	to := m.now().Add(-m.cfg.FeedbackAfter)
	orders, err := m.orders.ListPaidUnmessaged(ctx, repository.NoTX, to.Add(-m.cfg.FeedbackWindow), to,
		model.SubjectFeedback, m.cfg.BatchSize)
	if err != nil {
		return 0, err
	}
	sent := 0
	for _, o := range orders {
		if m.send(ctx, model.SubjectFeedback, 1, o, withQuery(m.cfg.FeedbackURL, "id", o.ID)) {
			sent++
		}
	}
	return sent, nil
}

func (m *MarketingUseCase) send(ctx context.Context, subject model.MessageSubject, step int, o *model.Order, link string) bool {
	exists, err := m.messages.Exists(ctx, repository.NoTX, o.ID, subject, step)
	if err != nil {
		m.log.Error().Err(err).Str("order_id", o.ID).Msg("message lookup failed")
		return false
	}
	if exists {
		return false
	}
	user, err := m.users.FindByID(ctx, repository.NoTX, o.UserID)
	if err != nil {
		m.log.Error().Err(err).Str("order_id", o.ID).Msg("load customer failed")
		return false
	}
	return m.sender.SendWhatsApp(ctx, subject, step, o, user, link)
}

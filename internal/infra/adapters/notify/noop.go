package notify

import (
	"context"

	"esim-storefront/internal/domain/ports/adapter"
	"esim-storefront/internal/infra/logging"

	"github.com/rs/zerolog"
)

var (
	_ adapter.Mailer         = (*LogSender)(nil)
	_ adapter.WhatsAppSender = (*LogSender)(nil)
)

// LogSender writes outbound messages to the log instead of delivering them.
type LogSender struct {
	log zerolog.Logger
}

func NewLogSender(logger *zerolog.Logger) *LogSender {
	return &LogSender{log: logger.With().Str("component", "log_sender").Logger()}
}

func (s *LogSender) Send(ctx context.Context, e adapter.Email) error {
	s.log.Info().Str("to", logging.Redact(e.To, false)).Str("subject", e.Subject).Msg("email suppressed")
	return nil
}

func (s *LogSender) SendWhatsApp(ctx context.Context, toPhone, body string) error {
	s.log.Info().Str("to", logging.Redact(toPhone, false)).Int("len", len(body)).Msg("whatsapp suppressed")
	return nil
}

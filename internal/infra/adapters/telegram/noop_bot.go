package telegram

import (
	"context"

	"esim-storefront/internal/domain/ports/adapter"

	"github.com/rs/zerolog"
)

var _ adapter.OpsAlerter = (*NoopAlerter)(nil)

// NoopAlerter logs alerts instead of sending them to Telegram.
type NoopAlerter struct {
	log zerolog.Logger
}

func NewNoopAlerter(logger *zerolog.Logger) *NoopAlerter {
	return &NoopAlerter{log: logger.With().Str("component", "ops_alert").Logger()}
}

func (a *NoopAlerter) Alert(ctx context.Context, text string) error {
	a.log.Warn().Str("alert", text).Msg("ops alert")
	return nil
}

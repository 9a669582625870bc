package events

import (
	"context"

	"esim-storefront/internal/domain/ports/adapter"

	"github.com/rs/zerolog"
)

var _ adapter.EventPublisher = (*LogPublisher)(nil)

// LogPublisher logs events when no broker is configured.
type LogPublisher struct {
	log zerolog.Logger
}

func NewLogPublisher(logger *zerolog.Logger) *LogPublisher {
	return &LogPublisher{log: logger.With().Str("component", "events").Logger()}
}

func (p *LogPublisher) Publish(ctx context.Context, ev adapter.OrderEvent) error {
	p.log.Debug().Str("type", ev.Type).Str("order_id", ev.OrderID).Str("status", ev.Status).Msg("order event")
	return nil
}

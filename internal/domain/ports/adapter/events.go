package adapter

import (
	"context"
	"time"
)

// OrderEvent is published on order lifecycle transitions.
type OrderEvent struct {
	Type       string    `json:"type"`
	OrderID    string    `json:"order_id"`
	FriendlyID int64     `json:"friendly_id"`
	UserID     string    `json:"user_id"`
	Status     string    `json:"status"`
	Amount     string    `json:"amount,omitempty"`
	Provider   string    `json:"provider,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

const (
	EventOrderCreated      = "order.created"
	EventOrderPaid         = "order.paid"
	EventOrderLineAttached = "order.line_attached"
	EventOrderLinePending  = "order.line_pending"
	EventOrderExpired      = "order.expired"
	EventOrderCancelled    = "order.cancelled"
)

type EventPublisher interface {
	Publish(ctx context.Context, ev OrderEvent) error
}

// Locker is a distributed mutex keyed by name.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}

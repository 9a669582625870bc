package repository

import (
	"context"
	"time"

	"esim-storefront/internal/domain/model"

	"github.com/shopspring/decimal"
)

type OrderRepository interface {
	// Save inserts the order and fills FriendlyID from the sequence.
	Save(ctx context.Context, tx Tx, o *model.Order) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Order, error)
	// Lock takes a transaction-scoped advisory lock keyed by order id. tx must be non-nil.
	Lock(ctx context.Context, tx Tx, orderID string) error
	// UpdateStatusIf moves the order to `to` only when it is currently in `from`.
	UpdateStatusIf(ctx context.Context, tx Tx, id string, from []model.OrderStatus, to model.OrderStatus, paidAt *time.Time) (bool, error)
	SetLine(ctx context.Context, tx Tx, id, lineID string) error
	UpdatePricing(ctx context.Context, tx Tx, id, planModelID, bundleID, refillID string, price decimal.Decimal) error
	// ListByStatus returns orders in status created strictly before `before`, oldest first.
	ListByStatus(ctx context.Context, tx Tx, status model.OrderStatus, before time.Time, limit int) ([]*model.Order, error)
	// ListByStatusAfter pages ListByStatus by (created_at, id), starting strictly after `after`.
	// A zero cursor starts from the oldest order.
	ListByStatusAfter(ctx context.Context, tx Tx, status model.OrderStatus, before time.Time, after OrderCursor, limit int) ([]*model.Order, error)
	// ListUnmessaged is ListByStatus restricted to orders without an outbound message
	// of subject at step minStep or later.
	ListUnmessaged(ctx context.Context, tx Tx, status model.OrderStatus, before time.Time, subject model.MessageSubject, minStep, limit int) ([]*model.Order, error)
	// ListPaidUnmessaged returns ACTIVE orders paid within [from, to) that have no
	// outbound message of subject, oldest payment first.
	ListPaidUnmessaged(ctx context.Context, tx Tx, from, to time.Time, subject model.MessageSubject, limit int) ([]*model.Order, error)
	FindByLineID(ctx context.Context, tx Tx, lineID string) (*model.Order, error)
}

// OrderCursor is a keyset position in created_at, id order.
type OrderCursor struct {
	CreatedAt time.Time
	ID        string
}

func (c OrderCursor) IsZero() bool { return c.ID == "" }

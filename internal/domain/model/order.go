package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending     OrderStatus = "PENDING"
	OrderStatusActive      OrderStatus = "ACTIVE"
	OrderStatusPendingLine OrderStatus = "PENDING_LINE" // paid, line not attached yet
	OrderStatusCancelled   OrderStatus = "CANCELLED"
	OrderStatusExpired     OrderStatus = "EXPIRED"
)

// Order is one purchased package ("plan" in the storefront).
// It references its current Payment and Line by id, never by containment.
type Order struct {
	ID          string
	FriendlyID  int64
	UserID      string
	PlanModelID string
	BundleID    string
	RefillID    string
	CouponID    *string
	LineID      *string
	Status      OrderStatus
	Price       decimal.Decimal
	Currency    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	PaidAt      *time.Time
}

func (o *Order) IsZero() bool { return o == nil || o.ID == "" }

// Paid reports whether money has been collected for the order.
func (o *Order) Paid() bool {
	switch o.Status {
	case OrderStatusActive, OrderStatusPendingLine, OrderStatusExpired:
		return true
	}
	return false
}

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:     {OrderStatusActive, OrderStatusPendingLine, OrderStatusCancelled},
	OrderStatusPendingLine: {OrderStatusActive, OrderStatusExpired, OrderStatusCancelled},
	OrderStatusActive:      {OrderStatusExpired, OrderStatusCancelled},
}

// CanTransitionOrder reports whether an order may move from -> to.
// EXPIRED is only reachable once the order is paid.
func CanTransitionOrder(from, to OrderStatus) bool {
	for _, s := range orderTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

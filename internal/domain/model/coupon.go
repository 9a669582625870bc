package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type DiscountType string

const (
	DiscountPercent DiscountType = "PERCENT"
	DiscountAmount  DiscountType = "AMOUNT"
)

// Unlimited marks MaxUsesTotal / MaxUsesPerUser as uncapped.
const Unlimited = -1

// Coupon is a shared discount rule. Orders only ever increment Uses.
type Coupon struct {
	ID             string
	Code           string
	DiscountType   DiscountType
	Discount       decimal.Decimal
	ValidFrom      *time.Time
	ValidTo        *time.Time
	MaxUsesPerUser int
	MaxUsesTotal   int
	Uses           int
	CreatedAt      time.Time
}

// Available reports whether the coupon can be applied at `now` by a user who has
// already redeemed it `usesByUser` times.
func (c *Coupon) Available(now time.Time, usesByUser int) bool {
	if c == nil {
		return false
	}
	if c.ValidFrom != nil && now.Before(*c.ValidFrom) {
		return false
	}
	if c.ValidTo != nil && now.After(*c.ValidTo) {
		return false
	}
	if c.MaxUsesTotal != Unlimited && c.Uses >= c.MaxUsesTotal {
		return false
	}
	if c.MaxUsesPerUser != Unlimited && c.MaxUsesPerUser > 0 && usesByUser >= c.MaxUsesPerUser {
		return false
	}
	return true
}

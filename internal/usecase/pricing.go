package usecase

import (
	"esim-storefront/internal/domain/model"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ResolvePrice applies an optional coupon to a base price. The result is never negative.
// It is the only place prices are computed, for both new orders and re-pricing.
func ResolvePrice(base decimal.Decimal, coupon *model.Coupon) decimal.Decimal {
	if coupon == nil {
		return base
	}
	price := base
	switch coupon.DiscountType {
	case model.DiscountPercent:
		price = base.Sub(base.Mul(coupon.Discount).Div(hundred))
	case model.DiscountAmount:
		price = base.Sub(coupon.Discount)
	}
	if price.IsNegative() {
		return decimal.Zero
	}
	return price
}

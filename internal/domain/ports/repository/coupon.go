package repository

import (
	"context"

	"esim-storefront/internal/domain/model"
)

type CouponRepository interface {
	Save(ctx context.Context, tx Tx, c *model.Coupon) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Coupon, error)
	FindByCode(ctx context.Context, tx Tx, code string) (*model.Coupon, error)
	// IncrementUses applies uses = uses + 1.
	IncrementUses(ctx context.Context, tx Tx, id string) error
	// CountPaidUsesByUser counts paid orders of userID that carried the coupon.
	CountPaidUsesByUser(ctx context.Context, tx Tx, couponID, userID string) (int, error)
}

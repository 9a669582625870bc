package postgres

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"esim-storefront/internal/domain"
	"esim-storefront/internal/domain/model"
	"esim-storefront/internal/domain/ports/repository"
)

var _ repository.CouponRepository = (*CouponRepo)(nil)

type CouponRepo struct{ pool *pgxpool.Pool }

func NewCouponRepo(pool *pgxpool.Pool) *CouponRepo {
	return &CouponRepo{pool: pool}
}

const couponColumns = `id, code, discount_type, discount, valid_from, valid_to, max_uses_per_user, max_uses_total, uses, created_at`

func scanCoupon(row pgx.Row) (*model.Coupon, error) {
	c := &model.Coupon{}
	if err := row.Scan(&c.ID, &c.Code, &c.DiscountType, &c.Discount, &c.ValidFrom, &c.ValidTo,
		&c.MaxUsesPerUser, &c.MaxUsesTotal, &c.Uses, &c.CreatedAt); err != nil {
		return nil, err
	}
	return c, nil
}

func (r *CouponRepo) Save(ctx context.Context, tx repository.Tx, c *model.Coupon) error {
	const q = `
INSERT INTO coupons (id, code, discount_type, discount, valid_from, valid_to, max_uses_per_user, max_uses_total, uses, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
ON CONFLICT (id) DO UPDATE SET
  code=$2, discount_type=$3, discount=$4, valid_from=$5, valid_to=$6, max_uses_per_user=$7, max_uses_total=$8;`
	_, err := execSQL(ctx, r.pool, tx, q, c.ID, strings.ToUpper(strings.TrimSpace(c.Code)), string(c.DiscountType), c.Discount,
		c.ValidFrom, c.ValidTo, c.MaxUsesPerUser, c.MaxUsesTotal, c.Uses, c.CreatedAt)
	return mapErr("save coupon", err)
}

func (r *CouponRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Coupon, error) {
	return r.findOne(ctx, tx, "find coupon", `id=$1`, id)
}

// FindByCode matches case-insensitively; codes are stored upper-cased.
func (r *CouponRepo) FindByCode(ctx context.Context, tx repository.Tx, code string) (*model.Coupon, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, domain.ErrNotFound
	}
	return r.findOne(ctx, tx, "find coupon by code", `code=$1`, code)
}

func (r *CouponRepo) findOne(ctx context.Context, tx repository.Tx, op, where string, arg interface{}) (*model.Coupon, error) {
	q := `SELECT ` + couponColumns + ` FROM coupons WHERE ` + where
	if inTx(tx) {
		q += " FOR UPDATE"
	}
	row, err := pickRow(ctx, r.pool, tx, q, arg)
	if err != nil {
		return nil, err
	}
	c, err := scanCoupon(row)
	if err != nil {
		return nil, mapErr(op, err)
	}
	return c, nil
}

func (r *CouponRepo) IncrementUses(ctx context.Context, tx repository.Tx, id string) error {
	cmd, err := execSQL(ctx, r.pool, tx, `UPDATE coupons SET uses = uses + 1 WHERE id=$1;`, id)
	if err != nil {
		return mapErr("increment coupon uses", err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *CouponRepo) CountPaidUsesByUser(ctx context.Context, tx repository.Tx, couponID, userID string) (int, error) {
	const q = `
SELECT COUNT(*) FROM orders
 WHERE coupon_id=$1 AND user_id=$2 AND status IN ('ACTIVE','PENDING_LINE','EXPIRED');`
	row, err := pickRow(ctx, r.pool, tx, q, couponID, userID)
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, mapErr("count coupon uses", err)
	}
	return n, nil
}

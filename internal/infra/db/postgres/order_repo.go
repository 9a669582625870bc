package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/shopspring/decimal"

	"esim-storefront/internal/domain"
	"esim-storefront/internal/domain/model"
	"esim-storefront/internal/domain/ports/repository"
)

var _ repository.OrderRepository = (*OrderRepo)(nil)

type OrderRepo struct{ pool *pgxpool.Pool }

func NewOrderRepo(pool *pgxpool.Pool) *OrderRepo {
	return &OrderRepo{pool: pool}
}

const orderColumns = `id, friendly_id, user_id, plan_model_id, bundle_id, refill_id, coupon_id, line_id, status, price, currency, created_at, updated_at, paid_at`

func scanOrder(row pgx.Row) (*model.Order, error) {
	o := &model.Order{}
	err := row.Scan(&o.ID, &o.FriendlyID, &o.UserID, &o.PlanModelID, &o.BundleID, &o.RefillID, &o.CouponID, &o.LineID,
		&o.Status, &o.Price, &o.Currency, &o.CreatedAt, &o.UpdatedAt, &o.PaidAt)
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (r *OrderRepo) Save(ctx context.Context, tx repository.Tx, o *model.Order) error {
	const q = `
INSERT INTO orders (id, user_id, plan_model_id, bundle_id, refill_id, coupon_id, line_id, status, price, currency, created_at, updated_at, paid_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
RETURNING friendly_id;`
	row, err := pickRow(ctx, r.pool, tx, q, o.ID, o.UserID, o.PlanModelID, o.BundleID, o.RefillID, o.CouponID, o.LineID,
		string(o.Status), o.Price, o.Currency, o.CreatedAt, o.UpdatedAt, o.PaidAt)
	if err != nil {
		return err
	}
	if err := row.Scan(&o.FriendlyID); err != nil {
		return mapErr("save order", err)
	}
	return nil
}

func (r *OrderRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Order, error) {
	q := `SELECT ` + orderColumns + ` FROM orders WHERE id=$1`
	if inTx(tx) {
		q += " FOR UPDATE"
	}
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	o, err := scanOrder(row)
	if err != nil {
		return nil, mapErr("find order", err)
	}
	return o, nil
}

// Lock serializes writers of one order for the rest of the transaction.
func (r *OrderRepo) Lock(ctx context.Context, tx repository.Tx, orderID string) error {
	if !inTx(tx) {
		return domain.ErrInvalidExecContext
	}
	_, err := execSQL(ctx, r.pool, tx, `SELECT pg_advisory_xact_lock($1)`, advisoryKey(orderID))
	return mapErr("lock order", err)
}

func (r *OrderRepo) UpdateStatusIf(ctx context.Context, tx repository.Tx, id string, from []model.OrderStatus, to model.OrderStatus, paidAt *time.Time) (bool, error) {
	const q = `
UPDATE orders
   SET status = $2,
       paid_at = COALESCE($3, paid_at),
       updated_at = NOW()
 WHERE id = $1
   AND status = ANY($4)`
	states := make([]string, len(from))
	for i, s := range from {
		states[i] = string(s)
	}
	cmd, err := execSQL(ctx, r.pool, tx, q, id, string(to), paidAt, states)
	if err != nil {
		return false, mapErr("update order status", err)
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *OrderRepo) SetLine(ctx context.Context, tx repository.Tx, id, lineID string) error {
	cmd, err := execSQL(ctx, r.pool, tx, `UPDATE orders SET line_id=$2, updated_at=NOW() WHERE id=$1`, id, lineID)
	if err != nil {
		return mapErr("set order line", err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *OrderRepo) UpdatePricing(ctx context.Context, tx repository.Tx, id, planModelID, bundleID, refillID string, price decimal.Decimal) error {
	const q = `UPDATE orders SET plan_model_id=$2, bundle_id=$3, refill_id=$4, price=$5, updated_at=NOW() WHERE id=$1 AND status='PENDING'`
	cmd, err := execSQL(ctx, r.pool, tx, q, id, planModelID, bundleID, refillID, price)
	if err != nil {
		return mapErr("update order pricing", err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrInvalidStateTransition
	}
	return nil
}

func (r *OrderRepo) ListByStatus(ctx context.Context, tx repository.Tx, status model.OrderStatus, before time.Time, limit int) ([]*model.Order, error) {
	if limit <= 0 {
		limit = 100
	}
	q := `SELECT ` + orderColumns + ` FROM orders WHERE status=$1 AND created_at < $2 ORDER BY created_at ASC, id ASC LIMIT $3`
	return r.list(ctx, tx, q, string(status), before, limit)
}

func (r *OrderRepo) ListByStatusAfter(ctx context.Context, tx repository.Tx, status model.OrderStatus, before time.Time, after repository.OrderCursor, limit int) ([]*model.Order, error) {
	if after.IsZero() {
		return r.ListByStatus(ctx, tx, status, before, limit)
	}
	if limit <= 0 {
		limit = 100
	}
	q := `SELECT ` + orderColumns + ` FROM orders
 WHERE status=$1 AND created_at < $2 AND (created_at, id) > ($3, $4)
 ORDER BY created_at ASC, id ASC LIMIT $5`
	return r.list(ctx, tx, q, string(status), before, after.CreatedAt, after.ID, limit)
}

func (r *OrderRepo) ListUnmessaged(ctx context.Context, tx repository.Tx, status model.OrderStatus, before time.Time, subject model.MessageSubject, minStep, limit int) ([]*model.Order, error) {
	if limit <= 0 {
		limit = 100
	}
	q := `SELECT ` + orderColumns + ` FROM orders o
 WHERE o.status=$1 AND o.created_at < $2
   AND NOT EXISTS (
     SELECT 1 FROM messages m
      WHERE m.order_id=o.id AND m.subject=$3 AND m.step >= $4 AND m.direction='OUTBOUND')
 ORDER BY o.created_at ASC LIMIT $5`
	return r.list(ctx, tx, q, string(status), before, string(subject), minStep, limit)
}

func (r *OrderRepo) ListPaidUnmessaged(ctx context.Context, tx repository.Tx, from, to time.Time, subject model.MessageSubject, limit int) ([]*model.Order, error) {
	if limit <= 0 {
		limit = 100
	}
	q := `SELECT ` + orderColumns + ` FROM orders o
 WHERE o.status='ACTIVE' AND o.paid_at >= $1 AND o.paid_at < $2
   AND NOT EXISTS (
     SELECT 1 FROM messages m
      WHERE m.order_id=o.id AND m.subject=$3 AND m.direction='OUTBOUND')
 ORDER BY o.paid_at ASC LIMIT $4`
	return r.list(ctx, tx, q, from, to, string(subject), limit)
}

func (r *OrderRepo) FindByLineID(ctx context.Context, tx repository.Tx, lineID string) (*model.Order, error) {
	q := `SELECT ` + orderColumns + ` FROM orders WHERE line_id=$1 ORDER BY created_at DESC LIMIT 1`
	row, err := pickRow(ctx, r.pool, tx, q, lineID)
	if err != nil {
		return nil, err
	}
	o, err := scanOrder(row)
	if err != nil {
		return nil, mapErr("find order by line", err)
	}
	return o, nil
}

func (r *OrderRepo) list(ctx context.Context, tx repository.Tx, q string, args ...interface{}) ([]*model.Order, error) {
	rows, err := queryRows(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, mapErr("list orders", err)
	}
	defer rows.Close()

	var out []*model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, o)
	}
	return out, mapErr("list orders", rows.Err())
}

package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"esim-storefront/internal/domain"
	"esim-storefront/internal/domain/model"
	"esim-storefront/internal/domain/ports/repository"
)

var _ repository.LineRepository = (*LineRepo)(nil)

// FieldSealer encrypts column values bound to a row key.
type FieldSealer interface {
	Seal(plaintext, rowID string) (string, error)
	Open(value, rowID string) (string, error)
}

// LineRepo stores activation codes sealed with the ICCID as associated data.
// A nil sealer stores them as-is.
type LineRepo struct {
	pool   *pgxpool.Pool
	sealer FieldSealer
}

func NewLineRepo(pool *pgxpool.Pool, sealer FieldSealer) *LineRepo {
	return &LineRepo{pool: pool, sealer: sealer}
}

const lineColumns = `id, iccid, lpa_code, qr_code, status, allowed_usage_kb, remaining_usage_kb, remaining_days,
auto_refill_turned_on, auto_refill_amount_mb, auto_refill_price, COALESCE(user_id, ''), COALESCE(order_id, ''), bundle_id,
deactivated_at, created_at, updated_at`

func (r *LineRepo) scan(row pgx.Row) (*model.Line, error) {
	l := &model.Line{}
	if err := row.Scan(&l.ID, &l.ICCID, &l.LPACode, &l.QRCode, &l.Status, &l.AllowedUsageKB, &l.RemainingUsageKB,
		&l.RemainingDays, &l.AutoRefillTurnedOn, &l.AutoRefillAmountMB, &l.AutoRefillPrice, &l.UserID, &l.OrderID, &l.BundleID,
		&l.DeactivatedAt, &l.CreatedAt, &l.UpdatedAt); err != nil {
		return nil, err
	}
	if r.sealer != nil {
		plain, err := r.sealer.Open(l.LPACode, l.ICCID)
		if err != nil {
			return nil, fmt.Errorf("open lpa code: %w", err)
		}
		l.LPACode = plain
	}
	return l, nil
}

func (r *LineRepo) UpsertByICCID(ctx context.Context, tx repository.Tx, l *model.Line) error {
	lpa := l.LPACode
	if r.sealer != nil {
		sealed, err := r.sealer.Seal(lpa, l.ICCID)
		if err != nil {
			return fmt.Errorf("seal lpa code: %w", err)
		}
		lpa = sealed
	}
	const q = `
INSERT INTO lines (
  id, iccid, lpa_code, qr_code, status, allowed_usage_kb, remaining_usage_kb, remaining_days,
  auto_refill_turned_on, auto_refill_amount_mb, auto_refill_price, user_id, bundle_id, deactivated_at, created_at, updated_at,
  order_id
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,NULLIF($12, ''),$13,$14,$15,$16,NULLIF($17, '')
) ON CONFLICT (iccid) DO UPDATE SET
  lpa_code=COALESCE(NULLIF(EXCLUDED.lpa_code, ''), lines.lpa_code),
  qr_code=COALESCE(NULLIF(EXCLUDED.qr_code, ''), lines.qr_code),
  status=EXCLUDED.status,
  allowed_usage_kb=EXCLUDED.allowed_usage_kb,
  remaining_usage_kb=EXCLUDED.remaining_usage_kb,
  remaining_days=EXCLUDED.remaining_days,
  auto_refill_turned_on=EXCLUDED.auto_refill_turned_on,
  auto_refill_amount_mb=EXCLUDED.auto_refill_amount_mb,
  auto_refill_price=EXCLUDED.auto_refill_price,
  user_id=COALESCE(EXCLUDED.user_id, lines.user_id),
  order_id=COALESCE(lines.order_id, EXCLUDED.order_id),
  bundle_id=COALESCE(NULLIF(EXCLUDED.bundle_id, ''), lines.bundle_id),
  deactivated_at=EXCLUDED.deactivated_at,
  updated_at=EXCLUDED.updated_at
RETURNING id;`
	row, err := pickRow(ctx, r.pool, tx, q, l.ID, l.ICCID, lpa, l.QRCode, l.Status, l.AllowedUsageKB, l.RemainingUsageKB,
		l.RemainingDays, l.AutoRefillTurnedOn, l.AutoRefillAmountMB, l.AutoRefillPrice, l.UserID, l.BundleID,
		l.DeactivatedAt, l.CreatedAt, l.UpdatedAt, l.OrderID)
	if err != nil {
		return err
	}
	if err := row.Scan(&l.ID); err != nil {
		return mapErr("upsert line", err)
	}
	return nil
}

func (r *LineRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Line, error) {
	return r.findOne(ctx, tx, "find line", `id=$1`, id)
}

func (r *LineRepo) FindByICCID(ctx context.Context, tx repository.Tx, iccid string) (*model.Line, error) {
	if iccid == "" {
		return nil, domain.ErrNotFound
	}
	return r.findOne(ctx, tx, "find line by iccid", `iccid=$1`, iccid)
}

func (r *LineRepo) FindByOrderID(ctx context.Context, tx repository.Tx, orderID string) (*model.Line, error) {
	if orderID == "" {
		return nil, domain.ErrNotFound
	}
	return r.findOne(ctx, tx, "find line by order", `order_id=$1`, orderID)
}

func (r *LineRepo) findOne(ctx context.Context, tx repository.Tx, op, where string, arg interface{}) (*model.Line, error) {
	q := `SELECT ` + lineColumns + ` FROM lines WHERE ` + where
	if inTx(tx) {
		q += " FOR UPDATE"
	}
	row, err := pickRow(ctx, r.pool, tx, q, arg)
	if err != nil {
		return nil, err
	}
	l, err := r.scan(row)
	if err != nil {
		return nil, mapErr(op, err)
	}
	return l, nil
}

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

var _ repository.PaymentRepository = (*paymentRepo)(nil)

type paymentRepo struct{ pool *pgxpool.Pool }

func NewPaymentRepo(pool *pgxpool.Pool) *paymentRepo {
	return &paymentRepo{pool: pool}
}

const paymentColumns = `id, order_id, user_id, provider, status, amount, currency, session_token, external_payment_id,
clearing_log_id, invoice_doc_id, coupon_id, failure_reason, superseded, created_at, updated_at, paid_at`

func scanPayment(row pgx.Row) (*model.Payment, error) {
	p := &model.Payment{}
	err := row.Scan(&p.ID, &p.OrderID, &p.UserID, &p.Provider, &p.Status, &p.Amount, &p.Currency, &p.SessionToken,
		&p.ExternalPaymentID, &p.ClearingLogID, &p.InvoiceDocID, &p.CouponID, &p.FailureReason, &p.Superseded,
		&p.CreatedAt, &p.UpdatedAt, &p.PaidAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *paymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	const q = `
INSERT INTO payments (
  id, order_id, user_id, provider, status, amount, currency, session_token, external_payment_id,
  clearing_log_id, invoice_doc_id, coupon_id, failure_reason, superseded, created_at, updated_at, paid_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17
);`
	_, err := execSQL(ctx, r.pool, tx, q, p.ID, p.OrderID, p.UserID, p.Provider, string(p.Status), p.Amount, p.Currency,
		p.SessionToken, p.ExternalPaymentID, p.ClearingLogID, p.InvoiceDocID, p.CouponID, p.FailureReason, p.Superseded,
		p.CreatedAt, p.UpdatedAt, p.PaidAt)
	return mapErr("save payment", err)
}

func (r *paymentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Payment, error) {
	return r.findOne(ctx, tx, "find payment", `WHERE id=$1`, id)
}

func (r *paymentRepo) FindCurrentByOrder(ctx context.Context, tx repository.Tx, orderID string) (*model.Payment, error) {
	return r.findOne(ctx, tx, "find current payment", `WHERE order_id=$1 AND superseded=false ORDER BY created_at DESC LIMIT 1`, orderID)
}

func (r *paymentRepo) FindBySessionToken(ctx context.Context, tx repository.Tx, token string) (*model.Payment, error) {
	if token == "" {
		return nil, domain.ErrNotFound
	}
	return r.findOne(ctx, tx, "find payment by session", `WHERE session_token=$1 LIMIT 1`, token)
}

func (r *paymentRepo) findOne(ctx context.Context, tx repository.Tx, op, where string, args ...interface{}) (*model.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments ` + where
	if inTx(tx) {
		q += " FOR UPDATE"
	}
	row, err := pickRow(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, err
	}
	p, err := scanPayment(row)
	if err != nil {
		return nil, mapErr(op, err)
	}
	return p, nil
}

func (r *paymentRepo) SetSession(ctx context.Context, tx repository.Tx, id, sessionToken, externalID, clearingLogID string) error {
	const q = `
UPDATE payments
   SET session_token=$2,
       external_payment_id=COALESCE(NULLIF($3, ''), external_payment_id),
       clearing_log_id=COALESCE(NULLIF($4, ''), clearing_log_id),
       updated_at=NOW()
 WHERE id=$1;`
	cmd, err := execSQL(ctx, r.pool, tx, q, id, sessionToken, externalID, clearingLogID)
	if err != nil {
		return mapErr("set payment session", err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *paymentRepo) MarkPaidIfPending(ctx context.Context, tx repository.Tx, id, externalID, clearingLogID string, paidAt time.Time) (bool, error) {
	const q = `
UPDATE payments
   SET status='PAID',
       external_payment_id=COALESCE(NULLIF($2, ''), external_payment_id),
       clearing_log_id=COALESCE(NULLIF($3, ''), clearing_log_id),
       paid_at=$4,
       updated_at=NOW()
 WHERE id=$1 AND status='PENDING';`
	cmd, err := execSQL(ctx, r.pool, tx, q, id, externalID, clearingLogID, paidAt)
	if err != nil {
		return false, mapErr("mark payment paid", err)
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *paymentRepo) MarkFailedIfPending(ctx context.Context, tx repository.Tx, id, reason string) (bool, error) {
	const q = `UPDATE payments SET status='FAILED', failure_reason=$2, updated_at=NOW() WHERE id=$1 AND status='PENDING';`
	cmd, err := execSQL(ctx, r.pool, tx, q, id, reason)
	if err != nil {
		return false, mapErr("mark payment failed", err)
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *paymentRepo) Supersede(ctx context.Context, tx repository.Tx, id string) error {
	_, err := execSQL(ctx, r.pool, tx, `UPDATE payments SET superseded=true, updated_at=NOW() WHERE id=$1;`, id)
	return mapErr("supersede payment", err)
}

func (r *paymentRepo) UpdateAmountIfPending(ctx context.Context, tx repository.Tx, id string, amount decimal.Decimal) error {
	cmd, err := execSQL(ctx, r.pool, tx, `UPDATE payments SET amount=$2, updated_at=NOW() WHERE id=$1 AND status='PENDING';`, id, amount)
	if err != nil {
		return mapErr("update payment amount", err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrInvalidStateTransition
	}
	return nil
}

func (r *paymentRepo) SetInvoiceDoc(ctx context.Context, tx repository.Tx, id, docID string) error {
	_, err := execSQL(ctx, r.pool, tx, `UPDATE payments SET invoice_doc_id=$2, updated_at=NOW() WHERE id=$1;`, id, docID)
	return mapErr("set invoice doc", err)
}

func (r *paymentRepo) ListPaidWithoutInvoice(ctx context.Context, tx repository.Tx, before time.Time, limit int) ([]*model.Payment, error) {
	if limit <= 0 {
		limit = 100
	}
	q := `SELECT ` + paymentColumns + ` FROM payments
 WHERE status='PAID' AND invoice_doc_id='' AND paid_at < $1
 ORDER BY paid_at ASC LIMIT $2`
	rows, err := queryRows(ctx, r.pool, tx, q, before, limit)
	if err != nil {
		return nil, mapErr("list uninvoiced payments", err)
	}
	defer rows.Close()

	var out []*model.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, p)
	}
	return out, mapErr("list uninvoiced payments", rows.Err())
}

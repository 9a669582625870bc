package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4/pgxpool"

	"esim-storefront/internal/domain/model"
	"esim-storefront/internal/domain/ports/repository"
)

var _ repository.MessageRepository = (*MessageRepo)(nil)

type MessageRepo struct{ pool *pgxpool.Pool }

func NewMessageRepo(pool *pgxpool.Pool) *MessageRepo {
	return &MessageRepo{pool: pool}
}

// Record relies on uq_messages_outbound_step; a duplicate outbound step is not an error.
func (r *MessageRepo) Record(ctx context.Context, tx repository.Tx, m *model.Message) (bool, error) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	const q = `
INSERT INTO messages (id, user_id, order_id, subject, channel, direction, step, template, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT DO NOTHING;`
	cmd, err := execSQL(ctx, r.pool, tx, q, m.ID, m.UserID, m.OrderID, string(m.Subject), string(m.Channel),
		string(m.Direction), m.Step, m.Template, m.CreatedAt)
	if err != nil {
		return false, mapErr("record message", err)
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *MessageRepo) Exists(ctx context.Context, tx repository.Tx, orderID string, subject model.MessageSubject, step int) (bool, error) {
	const q = `
SELECT EXISTS (
  SELECT 1 FROM messages
   WHERE order_id=$1 AND subject=$2 AND step=$3 AND direction='OUTBOUND'
);`
	row, err := pickRow(ctx, r.pool, tx, q, orderID, string(subject), step)
	if err != nil {
		return false, err
	}
	var ok bool
	if err := row.Scan(&ok); err != nil {
		return false, mapErr("message exists", err)
	}
	return ok, nil
}

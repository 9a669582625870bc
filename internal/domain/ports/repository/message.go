package repository

import (
	"context"

	"esim-storefront/internal/domain/model"
)

type MessageRepository interface {
	// Record inserts the message. For outbound rows with an order it returns false without
	// error when (order_id, subject, step) already exists.
	Record(ctx context.Context, tx Tx, m *model.Message) (bool, error)
	Exists(ctx context.Context, tx Tx, orderID string, subject model.MessageSubject, step int) (bool, error)
}

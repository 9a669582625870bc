package repository

import (
	"context"
	"time"

	"esim-storefront/internal/domain/model"

	"github.com/shopspring/decimal"
)

type PaymentRepository interface {
	Save(ctx context.Context, tx Tx, p *model.Payment) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Payment, error)
	// FindCurrentByOrder returns the newest non-superseded payment of an order.
	FindCurrentByOrder(ctx context.Context, tx Tx, orderID string) (*model.Payment, error)
	FindBySessionToken(ctx context.Context, tx Tx, token string) (*model.Payment, error)
	SetSession(ctx context.Context, tx Tx, id, sessionToken, externalID, clearingLogID string) error
	// MarkPaidIfPending is a conditional update; false means the payment was not PENDING.
	MarkPaidIfPending(ctx context.Context, tx Tx, id, externalID, clearingLogID string, paidAt time.Time) (bool, error)
	MarkFailedIfPending(ctx context.Context, tx Tx, id, reason string) (bool, error)
	Supersede(ctx context.Context, tx Tx, id string) error
	UpdateAmountIfPending(ctx context.Context, tx Tx, id string, amount decimal.Decimal) error
	SetInvoiceDoc(ctx context.Context, tx Tx, id, docID string) error
	ListPaidWithoutInvoice(ctx context.Context, tx Tx, before time.Time, limit int) ([]*model.Payment, error)
}

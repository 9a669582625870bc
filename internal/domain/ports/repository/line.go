package repository

import (
	"context"

	"esim-storefront/internal/domain/model"
)

type LineRepository interface {
	// UpsertByICCID inserts or updates by natural key and sets l.ID to the stored id.
	UpsertByICCID(ctx context.Context, tx Tx, l *model.Line) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Line, error)
	FindByICCID(ctx context.Context, tx Tx, iccid string) (*model.Line, error)
	// FindByOrderID returns the line allocated for orderID, attached or not.
	FindByOrderID(ctx context.Context, tx Tx, orderID string) (*model.Line, error)
}

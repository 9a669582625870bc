package repository

import (
	"context"

	"esim-storefront/internal/domain/model"
)

type PlanModelRepository interface {
	Save(ctx context.Context, tx Tx, p *model.PlanModel) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.PlanModel, error)
	ListActive(ctx context.Context, tx Tx) ([]*model.PlanModel, error)
}

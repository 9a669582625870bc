package postgres

import (
	"context"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"esim-storefront/internal/domain"
	"esim-storefront/internal/domain/model"
	"esim-storefront/internal/domain/ports/repository"
)

var _ repository.PlanModelRepository = (*PlanModelRepo)(nil)

type PlanModelRepo struct{ pool *pgxpool.Pool }

func NewPlanModelRepo(pool *pgxpool.Pool) *PlanModelRepo {
	return &PlanModelRepo{pool: pool}
}

const planModelColumns = `id, name, bundle_id, refill_id, refill_title, refill_amount_mb, refill_days, base_price, currency, active, created_at`

func scanPlanModel(row pgx.Row) (*model.PlanModel, error) {
	p := &model.PlanModel{}
	if err := row.Scan(&p.ID, &p.Name, &p.BundleID, &p.Refill.ID, &p.Refill.Title, &p.Refill.AmountMB, &p.Refill.Days,
		&p.BasePrice, &p.Currency, &p.Active, &p.CreatedAt); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *PlanModelRepo) Save(ctx context.Context, tx repository.Tx, p *model.PlanModel) error {
	const q = `
INSERT INTO plan_models (id, name, bundle_id, refill_id, refill_title, refill_amount_mb, refill_days, base_price, currency, active, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (id) DO UPDATE SET
  name=$2, bundle_id=$3, refill_id=$4, refill_title=$5, refill_amount_mb=$6, refill_days=$7, base_price=$8, currency=$9, active=$10;`
	_, err := execSQL(ctx, r.pool, tx, q, p.ID, p.Name, p.BundleID, p.Refill.ID, p.Refill.Title, p.Refill.AmountMB,
		p.Refill.Days, p.BasePrice, p.Currency, p.Active, p.CreatedAt)
	return mapErr("save plan model", err)
}

func (r *PlanModelRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.PlanModel, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT `+planModelColumns+` FROM plan_models WHERE id=$1;`, id)
	if err != nil {
		return nil, err
	}
	p, err := scanPlanModel(row)
	if err != nil {
		return nil, mapErr("find plan model", err)
	}
	return p, nil
}

func (r *PlanModelRepo) ListActive(ctx context.Context, tx repository.Tx) ([]*model.PlanModel, error) {
	rows, err := queryRows(ctx, r.pool, tx, `SELECT `+planModelColumns+` FROM plan_models WHERE active ORDER BY base_price ASC, name ASC;`)
	if err != nil {
		return nil, mapErr("list plan models", err)
	}
	defer rows.Close()

	var out []*model.PlanModel
	for rows.Next() {
		p, err := scanPlanModel(rows)
		if err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, p)
	}
	return out, mapErr("list plan models", rows.Err())
}

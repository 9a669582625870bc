package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"esim-storefront/internal/domain/model"
	"esim-storefront/internal/domain/ports/repository"
	"esim-storefront/internal/infra/metrics"
	red "esim-storefront/internal/infra/redis"
)

var _ repository.PlanModelRepository = (*planModelCacheDecorator)(nil)

const activePlansKey = "plans:active"

// planModelCacheDecorator caches plan models and the active catalog in redis.
// Cache errors fall through to the inner repository.
type planModelCacheDecorator struct {
	inner repository.PlanModelRepository
	cache red.RedisClient
	ttl   time.Duration
}

func NewPlanModelCacheDecorator(inner repository.PlanModelRepository, cache red.RedisClient, ttl time.Duration) repository.PlanModelRepository {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &planModelCacheDecorator{inner: inner, cache: cache, ttl: ttl}
}

func planKey(id string) string { return fmt.Sprintf("plan:%s", id) }

func (d *planModelCacheDecorator) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.PlanModel, error) {
	// reads inside a transaction bypass the cache
	if inTx(tx) {
		return d.inner.FindByID(ctx, tx, id)
	}
	if val, err := d.cache.Get(ctx, planKey(id)); err == nil {
		var p model.PlanModel
		if json.Unmarshal([]byte(val), &p) == nil {
			metrics.IncCacheRequest("plan", "hit")
			return &p, nil
		}
	}

	metrics.IncCacheRequest("plan", "miss")
	p, err := d.inner.FindByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(p); err == nil {
		_ = d.cache.Set(ctx, planKey(id), b, d.ttl)
	}
	return p, nil
}

func (d *planModelCacheDecorator) ListActive(ctx context.Context, tx repository.Tx) ([]*model.PlanModel, error) {
	if inTx(tx) {
		return d.inner.ListActive(ctx, tx)
	}
	if val, err := d.cache.Get(ctx, activePlansKey); err == nil {
		var plans []*model.PlanModel
		if json.Unmarshal([]byte(val), &plans) == nil {
			metrics.IncCacheRequest("plan_list", "hit")
			return plans, nil
		}
	}

	metrics.IncCacheRequest("plan_list", "miss")
	plans, err := d.inner.ListActive(ctx, tx)
	if err != nil {
		return nil, err
	}
	if len(plans) > 0 {
		if b, err := json.Marshal(plans); err == nil {
			_ = d.cache.Set(ctx, activePlansKey, b, d.ttl)
		}
	}
	return plans, nil
}

// Save invalidates the plan and the catalog before writing.
func (d *planModelCacheDecorator) Save(ctx context.Context, tx repository.Tx, p *model.PlanModel) error {
	_ = d.cache.Del(ctx, planKey(p.ID), activePlansKey)
	return d.inner.Save(ctx, tx, p)
}

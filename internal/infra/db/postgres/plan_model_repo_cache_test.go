//go:build !integration

package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"esim-storefront/internal/domain"
	"esim-storefront/internal/domain/model"
	"esim-storefront/internal/domain/ports/repository"

	"github.com/shopspring/decimal"
)

func testPlan() *model.PlanModel {
	return &model.PlanModel{
		ID:        "plan-123",
		Name:      "Europe 10GB",
		BundleID:  "bundle-eu",
		Refill:    model.Refill{ID: "refill-10", AmountMB: 10240, Days: 30},
		BasePrice: decimal.RequireFromString("99.90"),
		Currency:  "ILS",
		Active:    true,
	}
}

func TestPlanModelCacheDecorator(t *testing.T) {
	ctx := context.Background()
	plan := testPlan()
	planJSON, _ := json.Marshal(plan)

	t.Run("FindByID should return from cache on hit", func(t *testing.T) {
		mockRedis := newMockRedis()
		mockRedis.data[planKey(plan.ID)] = string(planJSON)
		innerCalled := false
		inner := &mockInnerPlanRepo{
			FindByIDFunc: func(ctx context.Context, tx repository.Tx, id string) (*model.PlanModel, error) {
				innerCalled = true
				return nil, nil
			},
		}

		result, err := NewPlanModelCacheDecorator(inner, mockRedis, 0).FindByID(ctx, nil, plan.ID)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if innerCalled {
			t.Error("inner repository should not be called on a cache hit")
		}
		if result == nil || result.ID != plan.ID || !result.BasePrice.Equal(plan.BasePrice) {
			t.Errorf("did not return the cached plan: %+v", result)
		}
	})

	t.Run("FindByID should populate the cache on miss", func(t *testing.T) {
		mockRedis := newMockRedis()
		calls := 0
		inner := &mockInnerPlanRepo{
			FindByIDFunc: func(ctx context.Context, tx repository.Tx, id string) (*model.PlanModel, error) {
				calls++
				return plan, nil
			},
		}
		d := NewPlanModelCacheDecorator(inner, mockRedis, 0)

		for i := 0; i < 2; i++ {
			if _, err := d.FindByID(ctx, nil, plan.ID); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		}
		if calls != 1 {
			t.Errorf("expected one inner call, got %d", calls)
		}
	})

	t.Run("FindByID should not cache not found", func(t *testing.T) {
		mockRedis := newMockRedis()
		inner := &mockInnerPlanRepo{
			FindByIDFunc: func(ctx context.Context, tx repository.Tx, id string) (*model.PlanModel, error) {
				return nil, domain.ErrNotFound
			},
		}
		_, err := NewPlanModelCacheDecorator(inner, mockRedis, 0).FindByID(ctx, nil, "missing")
		if !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		if len(mockRedis.data) != 0 {
			t.Errorf("expected empty cache, got %v", mockRedis.data)
		}
	})

	t.Run("redis failure falls through to the database", func(t *testing.T) {
		mockRedis := newMockRedis()
		mockRedis.GetFunc = func(ctx context.Context, key string) (string, error) {
			return "", errors.New("connection refused")
		}
		inner := &mockInnerPlanRepo{
			ListActiveFunc: func(ctx context.Context, tx repository.Tx) ([]*model.PlanModel, error) {
				return []*model.PlanModel{plan}, nil
			},
		}
		plans, err := NewPlanModelCacheDecorator(inner, mockRedis, 0).ListActive(ctx, nil)
		if err != nil || len(plans) != 1 {
			t.Fatalf("expected one plan, got %v, %v", plans, err)
		}
	})

	t.Run("Save should invalidate the cache", func(t *testing.T) {
		var deletedKeys []string
		mockRedis := newMockRedis()
		mockRedis.DelFunc = func(ctx context.Context, keys ...string) error {
			deletedKeys = append(deletedKeys, keys...)
			return nil
		}
		inner := &mockInnerPlanRepo{
			SaveFunc: func(ctx context.Context, tx repository.Tx, p *model.PlanModel) error { return nil },
		}

		if err := NewPlanModelCacheDecorator(inner, mockRedis, 0).Save(ctx, nil, plan); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(deletedKeys) != 2 {
			t.Fatalf("expected 2 keys to be deleted, but got %d", len(deletedKeys))
		}
	})
}

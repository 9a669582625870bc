package main

import (
	"context"
	"errors"
	"os"
	"time"

	"esim-storefront/internal/config"
	"esim-storefront/internal/domain"
	"esim-storefront/internal/domain/model"
	"esim-storefront/internal/domain/ports/repository"
	pg "esim-storefront/internal/infra/db/postgres"
	"esim-storefront/internal/infra/logging"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type planSeed struct {
	ID, Name, Bundle, RefillID, Title string
	MB                                int64
	Days                              int
	Price                             string
}

var plans = []planSeed{
	{"europe-5gb", "Europe 5GB", "bundle-eu", "refill-eu-5", "5GB / 15 days", 5120, 15, "59.90"},
	{"europe-10gb", "Europe 10GB", "bundle-eu", "refill-eu-10", "10GB / 30 days", 10240, 30, "99.90"},
	{"usa-10gb", "USA 10GB", "bundle-us", "refill-us-10", "10GB / 30 days", 10240, 30, "109.90"},
	{"global-3gb", "Global 3GB", "bundle-global", "refill-gl-3", "3GB / 7 days", 3072, 7, "79.90"},
}

var coupons = []model.Coupon{
	{Code: "WELCOME10", DiscountType: model.DiscountPercent, Discount: decimal.NewFromInt(10), MaxUsesPerUser: 1, MaxUsesTotal: model.Unlimited},
	{Code: "SUMMER20", DiscountType: model.DiscountAmount, Discount: decimal.NewFromInt(20), MaxUsesPerUser: model.Unlimited, MaxUsesTotal: 500},
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		boot := zerolog.New(os.Stderr).With().Timestamp().Logger()
		boot.Fatal().Err(err).Msg("load config")
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := pg.Migrate(cfg.Database.URL, logger); err != nil {
		logger.Fatal().Err(err).Msg("migrate")
	}
	pool, err := pg.NewPgxPool(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	planRepo := pg.NewPlanModelRepo(pool)
	couponRepo := pg.NewCouponRepo(pool)

	// plan models upsert by id, so re-running refreshes prices
	for _, s := range plans {
		p, err := model.NewPlanModel(s.ID, s.Name, s.Bundle,
			model.Refill{ID: s.RefillID, Title: s.Title, AmountMB: s.MB, Days: s.Days},
			decimal.RequireFromString(s.Price), cfg.Payment.Currency)
		if err != nil {
			logger.Fatal().Err(err).Str("plan", s.ID).Msg("invalid plan")
		}
		if err := planRepo.Save(ctx, repository.NoTX, p); err != nil {
			logger.Fatal().Err(err).Str("plan", s.ID).Msg("save plan")
		}
		logger.Info().Str("plan", p.ID).Str("price", p.BasePrice.StringFixed(2)).Msg("plan model seeded")
	}

	for i := range coupons {
		c := coupons[i]
		if _, err := couponRepo.FindByCode(ctx, repository.NoTX, c.Code); err == nil {
			logger.Info().Str("coupon", c.Code).Msg("coupon already present")
			continue
		} else if !errors.Is(err, domain.ErrNotFound) {
			logger.Fatal().Err(err).Str("coupon", c.Code).Msg("lookup coupon")
		}
		c.ID = uuid.NewString()
		c.CreatedAt = time.Now().UTC()
		if err := couponRepo.Save(ctx, repository.NoTX, &c); err != nil {
			logger.Fatal().Err(err).Str("coupon", c.Code).Msg("save coupon")
		}
		logger.Info().Str("coupon", c.Code).Msg("coupon seeded")
	}
}

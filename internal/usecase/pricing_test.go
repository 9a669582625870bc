//go:build !integration

package usecase_test

import (
	"testing"

	"esim-storefront/internal/domain/model"
	"esim-storefront/internal/usecase"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestResolvePrice(t *testing.T) {
	t.Run("should return base price without coupon", func(t *testing.T) {
		for _, p := range []string{"0", "0.01", "49.90", "100", "1234.5678"} {
			if got := usecase.ResolvePrice(dec(p), nil); !got.Equal(dec(p)) {
				t.Errorf("ResolvePrice(%s, nil) = %s", p, got)
			}
		}
	})

	t.Run("should apply percent and amount discounts", func(t *testing.T) {
		testCases := []struct {
			name string
			base string
			typ  model.DiscountType
			d    string
			want string
		}{
			{"100 with 20 percent", "100", model.DiscountPercent, "20", "80"},
			{"50 with amount 70 clamps", "50", model.DiscountAmount, "70", "0"},
			{"full percent", "19.99", model.DiscountPercent, "100", "0"},
			{"zero percent", "19.99", model.DiscountPercent, "0", "19.99"},
			{"exact amount", "30", model.DiscountAmount, "30", "0"},
			{"fractional percent", "59.90", model.DiscountPercent, "15", "50.915"},
		}
		for _, tc := range testCases {
			t.Run(tc.name, func(t *testing.T) {
				c := &model.Coupon{DiscountType: tc.typ, Discount: dec(tc.d)}
				if got := usecase.ResolvePrice(dec(tc.base), c); !got.Equal(dec(tc.want)) {
					t.Errorf("got %s, want %s", got, tc.want)
				}
			})
		}
	})

	t.Run("should match closed forms over a grid", func(t *testing.T) {
		for p := int64(0); p <= 300; p += 7 {
			base := decimal.NewFromInt(p).Div(decimal.NewFromInt(4))
			for d := int64(0); d <= 100; d += 5 {
				dd := decimal.NewFromInt(d)

				percent := usecase.ResolvePrice(base, &model.Coupon{DiscountType: model.DiscountPercent, Discount: dd})
				wantPct := decimal.Max(decimal.Zero, base.Sub(base.Mul(dd).Div(decimal.NewFromInt(100))))
				if !percent.Equal(wantPct) {
					t.Fatalf("percent P=%s d=%s: got %s want %s", base, dd, percent, wantPct)
				}

				amount := usecase.ResolvePrice(base, &model.Coupon{DiscountType: model.DiscountAmount, Discount: dd})
				wantAmt := decimal.Max(decimal.Zero, base.Sub(dd))
				if !amount.Equal(wantAmt) {
					t.Fatalf("amount P=%s d=%s: got %s want %s", base, dd, amount, wantAmt)
				}
				if percent.IsNegative() || amount.IsNegative() {
					t.Fatalf("negative price for P=%s d=%s", base, dd)
				}
			}
		}
	})
}

package model

import (
	"time"

	"esim-storefront/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Refill describes the data package allocated on a line.
type Refill struct {
	ID       string
	Title    string
	AmountMB int64
	Days     int
}

// PlanModel is a sellable product definition: a connectivity bundle plus a refill at a base price.
type PlanModel struct {
	ID        string
	Name      string
	BundleID  string
	Refill    Refill
	BasePrice decimal.Decimal
	Currency  string
	Active    bool
	CreatedAt time.Time
}

func (p *PlanModel) IsZero() bool { return p == nil || p.ID == "" }

// NewPlanModel validates and constructs a plan model.
func NewPlanModel(id, name, bundleID string, refill Refill, basePrice decimal.Decimal, currency string) (*PlanModel, error) {
	if id == "" {
		id = uuid.NewString()
	}
	if name == "" || bundleID == "" || refill.ID == "" || refill.Days <= 0 || refill.AmountMB <= 0 || basePrice.IsNegative() {
		return nil, domain.ErrInvalidArgument
	}
	if currency == "" {
		currency = "ILS"
	}
	return &PlanModel{
		ID:        id,
		Name:      name,
		BundleID:  bundleID,
		Refill:    refill,
		BasePrice: basePrice,
		Currency:  currency,
		Active:    true,
		CreatedAt: time.Now(),
	}, nil
}

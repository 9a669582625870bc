package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Line is a connectivity allocation (an eSIM profile) at the external provider.
// ICCID is the natural key used by sync jobs.
type Line struct {
	ID                 string
	ICCID              string
	LPACode            string
	QRCode             string // image URL or data URI rendered from LPACode
	Status             string
	AllowedUsageKB     int64
	RemainingUsageKB   int64
	RemainingDays      int
	AutoRefillTurnedOn bool
	AutoRefillAmountMB int64
	AutoRefillPrice    decimal.Decimal
	UserID             string
	OrderID            string // order that allocated the line, empty for lines found by sync
	BundleID           string
	DeactivatedAt      *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Deactivated reports whether the provider reports the line as no longer usable.
func (l *Line) Deactivated() bool {
	if l == nil {
		return false
	}
	if l.DeactivatedAt != nil {
		return true
	}
	switch strings.ToLower(l.Status) {
	case "deactivated", "expired", "terminated":
		return true
	}
	return false
}

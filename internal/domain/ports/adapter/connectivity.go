package adapter

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// LineAllocation is the provider's acknowledgement of a newly created line.
type LineAllocation struct {
	Ack     bool
	ICCID   string
	LPACode string
	Status  string
}

// LineDetail is the provider's current view of a line.
type LineDetail struct {
	ICCID              string
	Status             string
	AllowedUsageKB     int64
	RemainingUsageKB   int64
	RemainingDays      int
	AutoRefillTurnedOn bool
	AutoRefillAmountMB int64
	AutoRefillPrice    decimal.Decimal
	DeactivatedAt      *time.Time
}

// LinePage is one page of the provider's line listing.
type LinePage struct {
	Lines    []LineDetail
	NextPage int // 0 when exhausted
}

// ConnectivityProvider allocates and reports data lines (KeepGo).
type ConnectivityProvider interface {
	CreateLine(ctx context.Context, bundleID string, refillMB int64, refillDays int) (LineAllocation, error)
	LineDetail(ctx context.Context, iccid string) (LineDetail, error)
	ListLines(ctx context.Context, page, perPage int) (LinePage, error)
}

// QRCodeStore persists a rendered QR image and returns a URL (or data URI) for it.
type QRCodeStore interface {
	Put(ctx context.Context, key string, png []byte) (string, error)
}

// QRRenderer renders content into a PNG QR code.
type QRRenderer interface {
	PNG(content string, size int) ([]byte, error)
}

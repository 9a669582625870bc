package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "PENDING" // clearing session requested or awaiting capture
	PaymentStatusPaid    PaymentStatus = "PAID"    // captured at provider
	PaymentStatusFailed  PaymentStatus = "FAILED"  // session creation or capture failed
)

// Payment is one attempt to collect money for an Order. A retry is a new row.
type Payment struct {
	ID                string
	OrderID           string
	UserID            string
	Provider          string
	Status            PaymentStatus
	Amount            decimal.Decimal
	Currency          string
	SessionToken      string // clearing trace id (card) / order id (paypal)
	ExternalPaymentID string
	ClearingLogID     string
	InvoiceDocID      string
	CouponID          *string
	FailureReason     string
	Superseded        bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
	PaidAt            *time.Time
}

// CanTransitionPayment enforces PENDING -> {PAID | FAILED} only.
func CanTransitionPayment(from, to PaymentStatus) bool {
	return from == PaymentStatusPending && (to == PaymentStatusPaid || to == PaymentStatusFailed)
}

// CaptureResult is the provider-agnostic outcome of capturing a clearing session.
type CaptureResult struct {
	Approved          bool
	Amount            decimal.Decimal
	ExternalPaymentID string
	ClearingLogID     string
	Status            string // raw provider status, for logs
}

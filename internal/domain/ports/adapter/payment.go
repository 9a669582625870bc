package adapter

import (
	"context"

	"esim-storefront/internal/domain/model"

	"github.com/shopspring/decimal"
)

// Customer is the payer as the clearing provider sees it.
type Customer struct {
	FullName string
	Email    string
	Phone    string
}

// ClearingRequest carries everything a provider needs to open a hosted payment page.
type ClearingRequest struct {
	OrderID     string
	FriendlyID  int64
	PaymentID   string
	Amount      decimal.Decimal
	Currency    string
	Description string
	Customer    Customer
	ReturnURL   string
	CancelURL   string
	Locale      string
}

// ClearingSession is a provider session the payer is redirected into.
type ClearingSession struct {
	SessionToken      string // trace id (card clearing) or order id (paypal)
	RedirectURL       string
	ExternalPaymentID string
	ClearingLogID     string
}

// ClearingGateway is the hex port for clearing providers. Implementations never touch the database.
type ClearingGateway interface {
	Name() string

	// CreateClearingSession returns *domain.GatewayError when the provider reports errors or
	// the response lacks a redirect or trace ids.
	CreateClearingSession(ctx context.Context, req ClearingRequest) (ClearingSession, error)
	// CaptureSession reports Approved=false for declined sessions. An error means the
	// outcome is unknown (transport or protocol failure).
	CaptureSession(ctx context.Context, sessionToken, payerRef string) (model.CaptureResult, error)
}

// InvoiceRequest describes a receipt document for a captured payment.
type InvoiceRequest struct {
	PaymentID   string
	OrderID     string
	FriendlyID  int64
	Amount      decimal.Decimal
	Currency    string
	Description string
	Method      string
	Customer    Customer
}

// Invoicer issues accounting documents. A failure never reverts a capture.
type Invoicer interface {
	IssueInvoice(ctx context.Context, req InvoiceRequest) (docID string, err error)
}

// GatewayRegistry resolves a clearing gateway by provider name; "" means the default.
type GatewayRegistry interface {
	Gateway(name string) (ClearingGateway, error)
}

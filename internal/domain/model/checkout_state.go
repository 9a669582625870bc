package model

// CheckoutState is the orchestrator's view of where an order is in the purchase pipeline.
// It is derived from the persisted Order and Payment, never stored.
type CheckoutState string

const (
	CheckoutCreated         CheckoutState = "CREATED"
	CheckoutAwaitingPayment CheckoutState = "AWAITING_PAYMENT"
	CheckoutCapturing       CheckoutState = "CAPTURING"
	CheckoutPaidPendingLine CheckoutState = "PAID_PENDING_LINE"
	CheckoutProvisioned     CheckoutState = "PROVISIONED"
	CheckoutPaidNoLine      CheckoutState = "PAID_NO_LINE"
	CheckoutFailed          CheckoutState = "FAILED"
)

// Terminal reports whether no further step runs inline for this state.
func (s CheckoutState) Terminal() bool {
	switch s {
	case CheckoutProvisioned, CheckoutPaidNoLine, CheckoutFailed:
		return true
	}
	return false
}

// DeriveCheckoutState maps persisted records onto the pipeline state.
func DeriveCheckoutState(o *Order, p *Payment) CheckoutState {
	if o == nil {
		return CheckoutCreated
	}
	switch o.Status {
	case OrderStatusActive, OrderStatusExpired:
		return CheckoutProvisioned
	case OrderStatusPendingLine:
		return CheckoutPaidNoLine
	}
	if p == nil {
		return CheckoutCreated
	}
	switch p.Status {
	case PaymentStatusFailed:
		return CheckoutFailed
	case PaymentStatusPaid:
		return CheckoutPaidPendingLine
	}
	if p.SessionToken == "" {
		return CheckoutCreated
	}
	return CheckoutAwaitingPayment
}

package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// Common domain errors
	ErrNotFound               = errors.New("entity not found")
	ErrAlreadyExists          = errors.New("entity already exists")
	ErrInvalidArgument        = errors.New("invalid argument")
	ErrUnauthorized           = errors.New("unauthorized")
	ErrForbidden              = errors.New("forbidden")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrCouponUnavailable      = errors.New("coupon is not available")
	ErrVerification           = errors.New("human verification failed")
	ErrLockNotAcquired        = errors.New("lock not acquired")
	ErrConfiguration          = errors.New("service misconfigured")

	// Collaborator failures. The typed errors below unwrap to these.
	ErrGateway      = errors.New("payment gateway error")
	ErrProvisioning = errors.New("line provisioning error")
	ErrNotification = errors.New("notification error")

	// Storage plumbing
	ErrInvalidExecContext = errors.New("invalid exec context")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrOperationFailed    = errors.New("database operation failed")
)

// ValidationError carries field-level messages for malformed requests.
type ValidationError struct {
	Fields map[string]string
}

func NewValidationError(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return ErrInvalidArgument.Error()
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrInvalidArgument }

// GatewayError is returned when a clearing provider reports errors or an incomplete response.
type GatewayError struct {
	Provider string
	Op       string
	Details  []string
	Err      error
}

func (e *GatewayError) Error() string {
	msg := fmt.Sprintf("%s %s failed", e.Provider, e.Op)
	if len(e.Details) > 0 {
		msg += ": " + strings.Join(e.Details, "; ")
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *GatewayError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrGateway, e.Err}
	}
	return []error{ErrGateway}
}

// ProvisioningError wraps a failed or malformed line allocation.
type ProvisioningError struct {
	OrderID string
	Reason  string
	Err     error
}

func (e *ProvisioningError) Error() string {
	msg := "provisioning order " + e.OrderID + ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProvisioningError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrProvisioning, e.Err}
	}
	return []error{ErrProvisioning}
}

// NotificationError is logged only; it never crosses the orchestrator boundary.
type NotificationError struct {
	Channel string
	Kind    string
	Err     error
}

func (e *NotificationError) Error() string {
	return fmt.Sprintf("notify %s via %s: %v", e.Kind, e.Channel, e.Err)
}

func (e *NotificationError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrNotification, e.Err}
	}
	return []error{ErrNotification}
}

// Code returns the coarse, user-visible error code for an error page redirect.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrVerification):
		return "Verification"
	case errors.Is(err, ErrConfiguration):
		return "Configuration"
	default:
		return "Order"
	}
}

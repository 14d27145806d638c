package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// Common domain errors
	ErrNotFound        = errors.New("entity not found")
	ErrAlreadyExists   = errors.New("entity already exists")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrUnauthenticated = errors.New("authentication required")
	ErrRateLimited     = errors.New("too many requests")
	ErrUnavailable     = errors.New("temporarily unavailable")

	// Quota
	ErrQuotaExceeded = errors.New("fiber length quota exceeded")

	// Payments / gateway
	ErrSignatureInvalid        = errors.New("webhook signature invalid")
	ErrMalformedPayload        = errors.New("malformed webhook payload")
	ErrOrderCreationFailed     = errors.New("order creation failed")
	ErrVerificationUnavailable = errors.New("payment verification unavailable")
	ErrPaymentTerminal         = errors.New("payment already in a terminal state")

	// Storage
	ErrOperationFailed    = errors.New("operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid execution context")
)

// QuotaDeniedError is the structured reason returned when a route write would
// exceed the tenant's free allowance plus paid capacity.
type QuotaDeniedError struct {
	CurrentKM      decimal.Decimal // non-deleted total before the write
	ProjectedKM    decimal.Decimal // total if the write were applied
	FreeAllowance  decimal.Decimal
	ChunkKM        decimal.Decimal
	RequiredChunks int64
	PaidChunks     int64
}

func (e *QuotaDeniedError) Error() string {
	return fmt.Sprintf("fiber quota exceeded: projected %s km (current %s km) needs %d paid chunk(s) of %s km beyond the free %s km, %d available",
		e.ProjectedKM.String(), e.CurrentKM.String(), e.RequiredChunks, e.ChunkKM.String(), e.FreeAllowance.String(), e.PaidChunks)
}

func (e *QuotaDeniedError) Is(target error) bool { return target == ErrQuotaExceeded }

// Gateway operations reported in GatewayError.Op.
const (
	GatewayOpCreateOrder = "create_order"
	GatewayOpVerifyOrder = "verify_order"
)

// GatewayError wraps a failed call to the payment provider. It unwraps to
// ErrOrderCreationFailed or ErrVerificationUnavailable so callers can tell a
// provider outage apart from a payment that actually failed.
type GatewayError struct {
	Op         string
	StatusCode int  // 0 when the request never got a response
	Timeout    bool // deadline exceeded on the outbound call
	Err        error
}

func (e *GatewayError) Error() string {
	switch {
	case e.Timeout:
		return fmt.Sprintf("gateway %s: timeout: %v", e.Op, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("gateway %s: http %d: %v", e.Op, e.StatusCode, e.Err)
	default:
		return fmt.Sprintf("gateway %s: %v", e.Op, e.Err)
	}
}

func (e *GatewayError) Unwrap() []error {
	kind := ErrVerificationUnavailable
	if e.Op == GatewayOpCreateOrder {
		kind = ErrOrderCreationFailed
	}
	return []error{kind, e.Err}
}

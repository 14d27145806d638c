package adapter

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// GatewayOrderStatus is the provider-agnostic view of an order's state.
type GatewayOrderStatus string

const (
	GatewayOrderActive  GatewayOrderStatus = "active"  // created, not paid yet
	GatewayOrderPaid    GatewayOrderStatus = "paid"    // captured
	GatewayOrderFailed  GatewayOrderStatus = "failed"  // last attempt failed or user dropped
	GatewayOrderExpired GatewayOrderStatus = "expired" // no longer payable
)

// Final reports whether the status can be applied to the ledger.
func (s GatewayOrderStatus) Final() bool {
	return s == GatewayOrderPaid || s == GatewayOrderFailed || s == GatewayOrderExpired
}

// OrderRequest describes one order to create at the provider. OrderID is the
// idempotency key: creating the same OrderID twice must not charge twice.
type OrderRequest struct {
	OrderID       string
	Amount        decimal.Decimal
	Currency      string
	CustomerID    string
	CustomerEmail string
	CustomerPhone string
	ReturnURL     string
}

// OrderHandle is what the client needs to complete the payment.
type OrderHandle struct {
	OrderID     string
	GatewayID   string // provider-side order reference
	SessionID   string // checkout session token
	PaymentLink string
	Status      GatewayOrderStatus
}

// GatewayStatus is the result of polling an order.
type GatewayStatus struct {
	OrderID   string
	Status    GatewayOrderStatus
	Amount    decimal.Decimal
	PaymentID string
	CheckedAt time.Time
}

// PaymentNotification is a parsed, provider-agnostic webhook event. Status is
// GatewayOrderPaid, GatewayOrderFailed, or GatewayOrderActive for events that
// carry nothing to apply.
type PaymentNotification struct {
	Type      string
	EventTime time.Time
	OrderID   string
	Amount    decimal.Decimal
	Currency  string
	PaymentID string
	Status    GatewayOrderStatus
}

// PaymentGateway is the hex port for payment providers.
//
// Transport failures are returned as *domain.GatewayError so callers can
// distinguish "order creation failed" and "verification unavailable" from a
// payment that the provider reports as failed.
type PaymentGateway interface {
	Name() string

	CreateOrder(ctx context.Context, req OrderRequest) (OrderHandle, error)
	VerifyOrder(ctx context.Context, orderID string) (GatewayStatus, error)
	// VerifyWebhookSignature checks the signature header against the exact raw
	// bytes received.
	VerifyWebhookSignature(rawPayload []byte, signature string) bool
	// ParseWebhook decodes a verified payload. Shapes it does not recognise
	// are domain.ErrMalformedPayload.
	ParseWebhook(rawPayload []byte) (PaymentNotification, error)
}

package payment

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"opticalfiber-backend/internal/domain"
	"opticalfiber-backend/internal/domain/ports/adapter"
)

// Webhook event types accepted by ParseNotification.
const (
	EventPaymentSuccess     = "PAYMENT_SUCCESS_WEBHOOK"
	EventPaymentFailed      = "PAYMENT_FAILED_WEBHOOK"
	EventPaymentUserDropped = "PAYMENT_USER_DROPPED_WEBHOOK"
)

// eventStatus is the payment_status each event type must carry.
var eventStatus = map[string]string{
	EventPaymentSuccess:     "SUCCESS",
	EventPaymentFailed:      "FAILED",
	EventPaymentUserDropped: "USER_DROPPED",
}

type webhookEnvelope struct {
	Type      string `json:"type"`
	EventTime string `json:"event_time"`
	Data      *struct {
		Order *struct {
			OrderID       string          `json:"order_id"`
			OrderAmount   decimal.Decimal `json:"order_amount"`
			OrderCurrency string          `json:"order_currency"`
		} `json:"order"`
		Payment *struct {
			CfPaymentID   json.RawMessage `json:"cf_payment_id"`
			PaymentStatus string          `json:"payment_status"`
			PaymentGroup  string          `json:"payment_group"`
		} `json:"payment"`
	} `json:"data"`
}

// ParseNotification decodes the one supported webhook schema. Anything that
// does not match it is domain.ErrMalformedPayload; there is no fallback to
// older payload shapes.
func ParseNotification(raw []byte) (adapter.PaymentNotification, error) {
	var env webhookEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return adapter.PaymentNotification{}, fmt.Errorf("%w: %v", domain.ErrMalformedPayload, err)
	}
	if env.Data == nil || env.Data.Order == nil || env.Data.Order.OrderID == "" {
		return adapter.PaymentNotification{}, fmt.Errorf("%w: missing data.order.order_id", domain.ErrMalformedPayload)
	}
	if env.Data.Payment == nil {
		return adapter.PaymentNotification{}, fmt.Errorf("%w: missing data.payment", domain.ErrMalformedPayload)
	}

	n := adapter.PaymentNotification{
		Type:      env.Type,
		OrderID:   env.Data.Order.OrderID,
		Amount:    env.Data.Order.OrderAmount,
		Currency:  env.Data.Order.OrderCurrency,
		PaymentID: string(bytes.Trim(env.Data.Payment.CfPaymentID, `"`)),
	}
	if env.EventTime != "" {
		if t, err := time.Parse(time.RFC3339, env.EventTime); err == nil {
			n.EventTime = t
		}
	}

	want, ok := eventStatus[env.Type]
	if !ok {
		return adapter.PaymentNotification{}, fmt.Errorf("%w: unknown type %q", domain.ErrMalformedPayload, env.Type)
	}
	status := env.Data.Payment.PaymentStatus
	if status != want {
		return adapter.PaymentNotification{}, fmt.Errorf("%w: payment_status %q does not match type %q", domain.ErrMalformedPayload, status, env.Type)
	}
	if status == "SUCCESS" {
		n.Status = adapter.GatewayOrderPaid
	} else {
		n.Status = adapter.GatewayOrderFailed
	}
	return n, nil
}

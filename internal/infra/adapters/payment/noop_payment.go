package payment

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"opticalfiber-backend/internal/domain"
	"opticalfiber-backend/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*NoopPaymentGateway)(nil)

// NoopPaymentGateway is a simple in-memory gateway for dev mode and tests.
// Orders stay active until Settle is called.
type NoopPaymentGateway struct {
	mu     sync.Mutex
	seq    int64
	secret []byte
	orders map[string]*noopOrder
}

type noopOrder struct {
	amount decimal.Decimal
	status adapter.GatewayOrderStatus
}

func NewNoopPaymentGateway(webhookSecret string) *NoopPaymentGateway {
	return &NoopPaymentGateway{
		secret: []byte(webhookSecret),
		orders: make(map[string]*noopOrder),
	}
}

func (g *NoopPaymentGateway) Name() string { return "noop" }

func (g *NoopPaymentGateway) CreateOrder(ctx context.Context, req adapter.OrderRequest) (adapter.OrderHandle, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if o, ok := g.orders[req.OrderID]; ok {
		return adapter.OrderHandle{OrderID: req.OrderID, GatewayID: req.OrderID, SessionID: "session_" + req.OrderID, PaymentLink: "https://example.test/pay/" + req.OrderID, Status: o.status}, nil
	}
	g.seq++
	g.orders[req.OrderID] = &noopOrder{amount: req.Amount, status: adapter.GatewayOrderActive}
	return adapter.OrderHandle{
		OrderID:     req.OrderID,
		GatewayID:   fmt.Sprintf("noop-%d", g.seq),
		SessionID:   "session_" + req.OrderID,
		PaymentLink: "https://example.test/pay/" + req.OrderID,
		Status:      adapter.GatewayOrderActive,
	}, nil
}

func (g *NoopPaymentGateway) VerifyOrder(ctx context.Context, orderID string) (adapter.GatewayStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	o, ok := g.orders[orderID]
	if !ok {
		return adapter.GatewayStatus{}, &domain.GatewayError{Op: domain.GatewayOpVerifyOrder, StatusCode: 404, Err: fmt.Errorf("noop: order %s not found", orderID)}
	}
	return adapter.GatewayStatus{OrderID: orderID, Status: o.status, Amount: o.amount, PaymentID: "ref-" + orderID, CheckedAt: time.Now()}, nil
}

func (g *NoopPaymentGateway) VerifyWebhookSignature(rawPayload []byte, signature string) bool {
	return VerifySignature(g.secret, rawPayload, signature)
}

func (g *NoopPaymentGateway) ParseWebhook(rawPayload []byte) (adapter.PaymentNotification, error) {
	return ParseNotification(rawPayload)
}

// Settle sets the provider-side status of an order, as a customer paying or
// abandoning checkout would.
func (g *NoopPaymentGateway) Settle(orderID string, status adapter.GatewayOrderStatus) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	o, ok := g.orders[orderID]
	if !ok {
		return false
	}
	o.status = status
	return true
}

package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"opticalfiber-backend/internal/config"
	"opticalfiber-backend/internal/domain"
	"opticalfiber-backend/internal/domain/ports/adapter"
	"opticalfiber-backend/internal/infra/logging"
	"opticalfiber-backend/internal/infra/metrics"
)

var _ adapter.PaymentGateway = (*CashfreeGateway)(nil)

const (
	cashfreeSandboxURL = "https://sandbox.cashfree.com/pg"
	cashfreeProdURL    = "https://api.cashfree.com/pg"
)

// CashfreeGateway implements adapter.PaymentGateway against the Cashfree PG
// orders API.
type CashfreeGateway struct {
	appID         string
	secretKey     string
	webhookSecret []byte
	apiVersion    string
	baseURL       string
	client        *http.Client
	maxRetries    int
	backoff       time.Duration
	log           *zerolog.Logger
}

func NewCashfreeGateway(cfg config.CashfreeConfig, logger *zerolog.Logger) (*CashfreeGateway, error) {
	if cfg.AppID == "" || cfg.SecretKey == "" {
		return nil, errors.New("cashfree app_id and secret_key are required")
	}
	base := cfg.BaseURL
	if base == "" {
		base = cashfreeSandboxURL
		if strings.EqualFold(cfg.Env, "prod") {
			base = cashfreeProdURL
		}
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("invalid cashfree base url: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	l := logging.Component(logger, "CashfreeGateway")
	return &CashfreeGateway{
		appID:         cfg.AppID,
		secretKey:     cfg.SecretKey,
		webhookSecret: []byte(cfg.WebhookSecret),
		apiVersion:    cfg.APIVersion,
		baseURL:       strings.TrimRight(base, "/"),
		client:        &http.Client{Timeout: timeout},
		maxRetries:    cfg.MaxRetries,
		backoff:       cfg.RetryBackoff,
		log:           l,
	}, nil
}

func (g *CashfreeGateway) Name() string { return "cashfree" }

type cashfreeOrderRequest struct {
	OrderID         string                  `json:"order_id"`
	OrderAmount     json.Number             `json:"order_amount"`
	OrderCurrency   string                  `json:"order_currency"`
	CustomerDetails cashfreeCustomerDetails `json:"customer_details"`
	OrderMeta       cashfreeOrderMeta       `json:"order_meta"`
}

type cashfreeCustomerDetails struct {
	CustomerID    string `json:"customer_id"`
	CustomerEmail string `json:"customer_email,omitempty"`
	CustomerPhone string `json:"customer_phone"`
}

type cashfreeOrderMeta struct {
	ReturnURL string `json:"return_url,omitempty"`
}

type cashfreeOrder struct {
	CfOrderID        json.RawMessage `json:"cf_order_id"`
	OrderID          string          `json:"order_id"`
	OrderAmount      decimal.Decimal `json:"order_amount"`
	OrderStatus      string          `json:"order_status"`
	PaymentSessionID string          `json:"payment_session_id"`
	PaymentLink      string          `json:"payment_link"`
}

// CreateOrder posts /orders. The order id doubles as the provider's
// idempotency key, so retrying after a lost response does not open a second
// order.
func (g *CashfreeGateway) CreateOrder(ctx context.Context, req adapter.OrderRequest) (adapter.OrderHandle, error) {
	customerID := req.CustomerID
	if customerID == "" {
		customerID = "user_" + req.OrderID
	}
	currency := req.Currency
	if currency == "" {
		currency = "INR"
	}
	body, err := json.Marshal(cashfreeOrderRequest{
		OrderID:       req.OrderID,
		OrderAmount:   json.Number(req.Amount.StringFixed(2)),
		OrderCurrency: currency,
		CustomerDetails: cashfreeCustomerDetails{
			CustomerID:    customerID,
			CustomerEmail: req.CustomerEmail,
			CustomerPhone: req.CustomerPhone,
		},
		OrderMeta: cashfreeOrderMeta{ReturnURL: req.ReturnURL},
	})
	if err != nil {
		return adapter.OrderHandle{}, &domain.GatewayError{Op: domain.GatewayOpCreateOrder, Err: err}
	}

	raw, err := g.do(ctx, domain.GatewayOpCreateOrder, http.MethodPost, "/orders", body)
	if isOrderConflict(err) {
		// An earlier attempt got through and only its response was lost.
		g.log.Info().Str("order_id", req.OrderID).Msg("order already exists; fetching its session")
		raw, err = g.do(ctx, domain.GatewayOpCreateOrder, http.MethodGet, "/orders/"+url.PathEscape(req.OrderID), nil)
	}
	if err != nil {
		return adapter.OrderHandle{}, err
	}
	out, err := decodeOrder(domain.GatewayOpCreateOrder, raw)
	if err != nil {
		return adapter.OrderHandle{}, err
	}
	if out.PaymentSessionID == "" {
		return adapter.OrderHandle{}, &domain.GatewayError{Op: domain.GatewayOpCreateOrder, StatusCode: http.StatusOK, Err: errors.New("response carries no payment_session_id")}
	}
	return adapter.OrderHandle{
		OrderID:     req.OrderID,
		GatewayID:   strings.Trim(string(out.CfOrderID), `"`),
		SessionID:   out.PaymentSessionID,
		PaymentLink: out.PaymentLink,
		Status:      mapOrderStatus(out.OrderStatus),
	}, nil
}

// isOrderConflict reports the provider refusing a create because the order
// id is already taken.
func isOrderConflict(err error) bool {
	var gerr *domain.GatewayError
	return errors.As(err, &gerr) && gerr.StatusCode == http.StatusConflict
}

func decodeOrder(op string, raw []byte) (cashfreeOrder, error) {
	var out cashfreeOrder
	if err := json.Unmarshal(raw, &out); err != nil {
		return cashfreeOrder{}, &domain.GatewayError{Op: op, StatusCode: http.StatusOK, Err: fmt.Errorf("decode order: %w", err)}
	}
	return out, nil
}

// VerifyOrder fetches /orders/{order_id}.
func (g *CashfreeGateway) VerifyOrder(ctx context.Context, orderID string) (adapter.GatewayStatus, error) {
	raw, err := g.do(ctx, domain.GatewayOpVerifyOrder, http.MethodGet, "/orders/"+url.PathEscape(orderID), nil)
	if err != nil {
		return adapter.GatewayStatus{}, err
	}
	out, err := decodeOrder(domain.GatewayOpVerifyOrder, raw)
	if err != nil {
		return adapter.GatewayStatus{}, err
	}
	// The order resource carries no payment id; cf_order_id is a different
	// identifier, so PaymentID stays empty here.
	return adapter.GatewayStatus{
		OrderID:   orderID,
		Status:    mapOrderStatus(out.OrderStatus),
		Amount:    out.OrderAmount,
		CheckedAt: time.Now(),
	}, nil
}

// VerifyWebhookSignature compares base64(HMAC-SHA256(secret, raw)) with the
// header value in constant time.
func (g *CashfreeGateway) VerifyWebhookSignature(rawPayload []byte, signature string) bool {
	return VerifySignature(g.webhookSecret, rawPayload, signature)
}

func (g *CashfreeGateway) ParseWebhook(rawPayload []byte) (adapter.PaymentNotification, error) {
	return ParseNotification(rawPayload)
}

func VerifySignature(secret, rawPayload []byte, signature string) bool {
	if len(secret) == 0 || signature == "" {
		return false
	}
	return hmac.Equal([]byte(Sign(secret, rawPayload)), []byte(strings.TrimSpace(signature)))
}

// Sign returns the signature the provider sends for rawPayload.
func Sign(secret, rawPayload []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(rawPayload)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func mapOrderStatus(s string) adapter.GatewayOrderStatus {
	switch strings.ToUpper(s) {
	case "PAID":
		return adapter.GatewayOrderPaid
	case "EXPIRED", "TERMINATED":
		return adapter.GatewayOrderExpired
	default:
		return adapter.GatewayOrderActive
	}
}

// do runs one API call, retrying transport errors and 5xx answers up to
// maxRetries times with a fixed backoff. 4xx answers are returned at once.
func (g *CashfreeGateway) do(ctx context.Context, op, method, path string, body []byte) ([]byte, error) {
	var lastErr *domain.GatewayError
	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, &domain.GatewayError{Op: op, Timeout: errors.Is(ctx.Err(), context.DeadlineExceeded), Err: ctx.Err()}
			case <-time.After(g.backoff):
			}
		}

		raw, gerr := g.once(ctx, op, method, path, body)
		if gerr == nil {
			return raw, nil
		}
		lastErr = gerr
		if gerr.StatusCode != 0 && gerr.StatusCode < 500 {
			break
		}
		g.log.Warn().Err(gerr).Str("op", op).Int("attempt", attempt+1).Msg("gateway call failed")
	}
	g.log.Error().Err(lastErr).Str("op", op).Msg("gateway call gave up")
	return nil, lastErr
}

func (g *CashfreeGateway) once(ctx context.Context, op, method, path string, body []byte) ([]byte, *domain.GatewayError) {
	start := time.Now()
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, rd)
	if err != nil {
		return nil, &domain.GatewayError{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("x-api-version", g.apiVersion)
	req.Header.Set("x-client-id", g.appID)
	req.Header.Set("x-client-secret", g.secretKey)

	resp, err := g.client.Do(req)
	if err != nil {
		timeout := isTimeout(err)
		result := "transport"
		if timeout {
			result = "timeout"
		}
		metrics.ObserveGatewayRequest(op, result, time.Since(start).Seconds())
		return nil, &domain.GatewayError{Op: op, Timeout: timeout, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		metrics.ObserveGatewayRequest(op, "transport", time.Since(start).Seconds())
		return nil, &domain.GatewayError{Op: op, Timeout: isTimeout(err), Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.ObserveGatewayRequest(op, "http_error", time.Since(start).Seconds())
		return nil, &domain.GatewayError{Op: op, StatusCode: resp.StatusCode, Err: errors.New(providerMessage(raw))}
	}
	metrics.ObserveGatewayRequest(op, "ok", time.Since(start).Seconds())
	return raw, nil
}

// providerMessage extracts the provider's error message without echoing the
// full body.
func providerMessage(raw []byte) string {
	var e struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	}
	if json.Unmarshal(raw, &e) == nil && e.Message != "" {
		if e.Code != "" {
			return e.Code + ": " + e.Message
		}
		return e.Message
	}
	return "unexpected response"
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

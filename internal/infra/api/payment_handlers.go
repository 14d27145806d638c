package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"opticalfiber-backend/internal/domain"
	"opticalfiber-backend/internal/infra/logging"
	"opticalfiber-backend/internal/usecase"
)

// HeaderWebhookSignature carries base64(HMAC-SHA256(secret, raw body)).
const HeaderWebhookSignature = "x-webhook-signature"

const maxWebhookBytes = 1 << 20

type initiatePaymentRequest struct {
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod string          `json:"payment_method"`
	CustomerEmail string          `json:"customer_email"`
	CustomerPhone string          `json:"customer_phone"`
}

type paymentDTO struct {
	TransactionID    string          `json:"transaction_id"`
	OrderID          string          `json:"order_id"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency"`
	Status           string          `json:"status"`
	PaymentDate      time.Time       `json:"payment_date"`
	ValidUntil       *time.Time      `json:"valid_until"`
	IsValid          bool            `json:"is_valid"`
	PaymentMethod    string          `json:"payment_method"`
	GatewayPaymentID string          `json:"gateway_payment_id,omitempty"`
}

func toPaymentDTO(v *usecase.PaymentView) paymentDTO {
	return paymentDTO{
		TransactionID:    v.TransactionID,
		OrderID:          v.OrderID,
		Amount:           v.Amount,
		Currency:         v.Currency,
		Status:           string(v.Status),
		PaymentDate:      v.PaymentDate,
		ValidUntil:       v.ValidUntil,
		IsValid:          v.IsValid,
		PaymentMethod:    v.PaymentMethod,
		GatewayPaymentID: v.GatewayPaymentID,
	}
}

func (s *Server) initiatePayment(w http.ResponseWriter, r *http.Request) {
	var req initiatePaymentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	res, err := s.payments.Initiate(r.Context(), PrincipalFrom(r.Context()), usecase.InitiatePaymentInput{
		Amount:        req.Amount,
		Method:        req.PaymentMethod,
		CustomerEmail: req.CustomerEmail,
		CustomerPhone: req.CustomerPhone,
	})
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{
		"transaction_id":     res.TransactionID,
		"order_id":           res.OrderID,
		"payment_session_id": res.PaymentSessionID,
		"payment_link":       res.PaymentLink,
	})
}

func (s *Server) listPayments(w http.ResponseWriter, r *http.Request) {
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if offset < 0 {
		offset = 0
	}
	views, err := s.payments.List(r.Context(), PrincipalFrom(r.Context()), offset, limit)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	items := make([]paymentDTO, 0, len(views))
	for _, v := range views {
		items = append(items, toPaymentDTO(v))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "offset": offset})
}

func (s *Server) getPayment(w http.ResponseWriter, r *http.Request) {
	refresh := r.URL.Query().Get("refresh") == "true"
	v, err := s.payments.Get(r.Context(), PrincipalFrom(r.Context()), chi.URLParam(r, "transaction_id"), refresh)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentDTO(v))
}

// paymentCallback is the gateway return url. It carries no credentials, so
// it only reports status and never exposes tenant data beyond the order.
func (s *Server) paymentCallback(w http.ResponseWriter, r *http.Request) {
	v, err := s.payments.Callback(r.Context(), r.URL.Query().Get("order_id"))
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	msg := "Payment pending"
	switch v.Status {
	case "success":
		msg = "Transaction successful"
	case "failed":
		msg = "Transaction failed"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":        v.IsValid,
		"message":        msg,
		"transaction_id": v.TransactionID,
		"status":         v.Status,
	})
}

func (s *Server) paymentWebhook(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		writeError(w, r, s.log, errors.Join(domain.ErrMalformedPayload, err))
		return
	}
	ack, err := s.webhooks.HandleNotification(r.Context(), raw, r.Header.Get(HeaderWebhookSignature))
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	l := logging.With(r.Context(), s.log)
	l.Debug().Str("order_id", ack.OrderID).Str("outcome", ack.Outcome).Msg("webhook acknowledged")
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "outcome": ack.Outcome})
}

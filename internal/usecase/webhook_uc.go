package usecase

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"opticalfiber-backend/internal/domain"
	"opticalfiber-backend/internal/domain/ports/adapter"
	"opticalfiber-backend/internal/domain/ports/repository"
	"opticalfiber-backend/internal/infra/metrics"
)

// Compile-time check
var _ WebhookReconciler = (*webhookReconciler)(nil)

type WebhookReconciler interface {
	// HandleNotification returns nil to acknowledge the delivery.
	// domain.ErrSignatureInvalid and domain.ErrMalformedPayload reject it;
	// any other error means the ledger could not be reached and the
	// provider should redeliver.
	HandleNotification(ctx context.Context, rawPayload []byte, signature string) (WebhookAck, error)
}

type WebhookAck struct {
	OrderID string
	Outcome string // applied | noop | ignored | unknown_order
}

type webhookReconciler struct {
	payments repository.PaymentRepository
	ledger   PaymentLedger
	gateway  adapter.PaymentGateway
	log      *zerolog.Logger
}

func NewWebhookReconciler(payments repository.PaymentRepository, ledger PaymentLedger, gateway adapter.PaymentGateway, logger *zerolog.Logger) *webhookReconciler {
	l := logger.With().Str("component", "WebhookReconciler").Logger()
	return &webhookReconciler{payments: payments, ledger: ledger, gateway: gateway, log: &l}
}

func (w *webhookReconciler) HandleNotification(ctx context.Context, rawPayload []byte, signature string) (WebhookAck, error) {
	if !w.gateway.VerifyWebhookSignature(rawPayload, signature) {
		metrics.IncWebhook("bad_signature")
		w.log.Warn().Int("bytes", len(rawPayload)).Msg("webhook signature invalid")
		return WebhookAck{}, domain.ErrSignatureInvalid
	}

	n, err := w.gateway.ParseWebhook(rawPayload)
	if err != nil {
		metrics.IncWebhook("malformed")
		w.log.Warn().Err(err).Msg("webhook payload rejected")
		if !errors.Is(err, domain.ErrMalformedPayload) {
			err = domain.ErrMalformedPayload
		}
		return WebhookAck{}, err
	}

	pay, err := w.payments.FindByOrderID(ctx, repository.NoTX, n.OrderID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			metrics.IncWebhook("unknown_order")
			w.log.Info().Str("order_id", n.OrderID).Str("type", n.Type).Msg("webhook for unknown order acknowledged")
			return WebhookAck{OrderID: n.OrderID, Outcome: "unknown_order"}, nil
		}
		metrics.IncWebhook("error")
		return WebhookAck{}, err
	}

	outcome, err := applyGatewayStatus(ctx, w.ledger, w.log, pay, n.Status, n.Amount, n.PaymentID)
	if err != nil {
		metrics.IncWebhook("error")
		w.log.Error().Err(err).Str("order_id", n.OrderID).Msg("webhook could not be applied")
		return WebhookAck{}, err
	}
	metrics.IncWebhook(outcome)
	metrics.IncPaymentTransition(SourceWebhook, outcome)
	w.log.Info().Str("order_id", n.OrderID).Str("type", n.Type).Str("outcome", outcome).Str("status", string(pay.Status)).Msg("webhook processed")
	return WebhookAck{OrderID: n.OrderID, Outcome: outcome}, nil
}

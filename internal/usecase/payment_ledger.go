package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"opticalfiber-backend/internal/domain"
	"opticalfiber-backend/internal/domain/model"
	"opticalfiber-backend/internal/domain/ports/repository"
	"opticalfiber-backend/internal/infra/metrics"
)

// Compile-time check
var _ PaymentLedger = (*paymentLedger)(nil)

// PaymentLedger owns every payment state change. Transitions are
// compare-and-set against the stored row, so concurrent callback, webhook
// and reconciler deliveries settle on whichever arrives first.
type PaymentLedger interface {
	CreatePending(ctx context.Context, tx repository.Tx, companyID, transactionID string, amount decimal.Decimal, method string) (*model.Payment, error)
	// MarkSuccess reports whether this call performed the transition. On a
	// payment that is already terminal it is a no-op and p is refreshed from
	// the store.
	MarkSuccess(ctx context.Context, tx repository.Tx, p *model.Payment, gatewayPaymentID string) (bool, error)
	// MarkFailed never downgrades a success.
	MarkFailed(ctx context.Context, tx repository.Tx, p *model.Payment, reason string) (bool, error)
	IsValid(p *model.Payment) bool
}

type paymentLedger struct {
	payments     repository.PaymentRepository
	currency     string
	durationDays int
	now          func() time.Time
	log          *zerolog.Logger
}

func NewPaymentLedger(payments repository.PaymentRepository, currency string, durationDays int, logger *zerolog.Logger) *paymentLedger {
	l := logger.With().Str("component", "PaymentLedger").Logger()
	return &paymentLedger{payments: payments, currency: currency, durationDays: durationDays, now: time.Now, log: &l}
}

func (l *paymentLedger) CreatePending(ctx context.Context, tx repository.Tx, companyID, transactionID string, amount decimal.Decimal, method string) (*model.Payment, error) {
	p, err := model.NewPendingPayment(companyID, transactionID, amount, l.currency, method, l.durationDays)
	if err != nil {
		return nil, err
	}
	if err := l.payments.Save(ctx, tx, p); err != nil {
		return nil, err
	}
	metrics.IncPayment(string(model.PaymentStatusPending))
	l.log.Info().Str("company_id", companyID).Str("transaction_id", transactionID).Str("amount", p.Amount.String()).Msg("payment created")
	return p, nil
}

func (l *paymentLedger) MarkSuccess(ctx context.Context, tx repository.Tx, p *model.Payment, gatewayPaymentID string) (bool, error) {
	if p == nil {
		return false, domain.ErrInvalidArgument
	}
	next := *p
	if !next.MarkSuccess(l.now()) {
		return false, nil
	}
	if gatewayPaymentID != "" {
		next.GatewayPaymentID = gatewayPaymentID
	}
	applied, err := l.apply(ctx, tx, p, &next)
	if err != nil || !applied {
		return false, err
	}
	metrics.IncPayment(string(model.PaymentStatusSuccess))
	metrics.AddPaymentRevenue(p.Currency, p.Amount)
	l.log.Info().Str("transaction_id", p.TransactionID).Time("valid_until", *p.ValidUntil).Msg("payment succeeded")
	return true, nil
}

func (l *paymentLedger) MarkFailed(ctx context.Context, tx repository.Tx, p *model.Payment, reason string) (bool, error) {
	if p == nil {
		return false, domain.ErrInvalidArgument
	}
	next := *p
	if !next.MarkFailed(l.now()) {
		if p.Status == model.PaymentStatusSuccess {
			l.log.Warn().Str("transaction_id", p.TransactionID).Msg("ignoring failure report for a successful payment")
		}
		return false, nil
	}
	if reason != "" {
		next.Notes = reason
	}
	applied, err := l.apply(ctx, tx, p, &next)
	if err != nil || !applied {
		return false, err
	}
	metrics.IncPayment(string(model.PaymentStatusFailed))
	l.log.Info().Str("transaction_id", p.TransactionID).Str("reason", reason).Msg("payment failed")
	return true, nil
}

func (l *paymentLedger) IsValid(p *model.Payment) bool {
	return p != nil && p.IsValid(l.now())
}

// apply persists next if the stored row is still pending and copies the
// winning state into p either way.
func (l *paymentLedger) apply(ctx context.Context, tx repository.Tx, p, next *model.Payment) (bool, error) {
	ok, err := l.payments.TransitionIfPending(ctx, tx, next)
	if err != nil {
		return false, err
	}
	if ok {
		*p = *next
		return true, nil
	}
	stored, err := l.payments.FindByID(ctx, tx, p.ID)
	if err != nil {
		return false, err
	}
	*p = *stored
	l.log.Debug().Str("transaction_id", p.TransactionID).Str("status", string(p.Status)).Msg("transition lost to an earlier update")
	return false, nil
}

package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"opticalfiber-backend/internal/domain"
	"opticalfiber-backend/internal/domain/model"
	"opticalfiber-backend/internal/domain/ports/adapter"
	"opticalfiber-backend/internal/domain/ports/repository"
	"opticalfiber-backend/internal/infra/logging"
	"opticalfiber-backend/internal/infra/metrics"
)

// Compile-time check
var _ PaymentUseCase = (*paymentUC)(nil)

// Sources reported with every ledger transition attempt.
const (
	SourceCallback   = "callback"
	SourceWebhook    = "webhook"
	SourcePoll       = "poll"
	SourceReconciler = "reconciler"
)

type PaymentUseCase interface {
	// Initiate records a pending payment, then opens the gateway order for it.
	// A gateway failure leaves the payment pending and returns an error that
	// matches domain.ErrOrderCreationFailed.
	Initiate(ctx context.Context, p *model.Principal, in InitiatePaymentInput) (*InitiatedPayment, error)
	// Get returns a payment of the principal's company. With refresh set, a
	// pending payment is first re-verified with the gateway.
	Get(ctx context.Context, p *model.Principal, transactionID string, refresh bool) (*PaymentView, error)
	List(ctx context.Context, p *model.Principal, offset, limit int) ([]*PaymentView, error)
	// Callback handles the customer's return from the hosted checkout.
	Callback(ctx context.Context, orderID string) (*PaymentView, error)
	// ReconcilePending re-verifies pending payments created before olderThan.
	ReconcilePending(ctx context.Context, olderThan time.Time, limit int) (int, error)
}

type InitiatePaymentInput struct {
	Amount        decimal.Decimal
	Method        string
	CustomerEmail string
	CustomerPhone string
}

type InitiatedPayment struct {
	TransactionID    string
	OrderID          string
	PaymentSessionID string
	PaymentLink      string
}

// PaymentView is a payment plus its derived validity at read time.
type PaymentView struct {
	*model.Payment
	IsValid bool
}

type PaymentOptions struct {
	ChunkPrice decimal.Decimal // zero accepts any positive amount
	ReturnURL  string          // order_id is appended as a query parameter
	Dev        bool            // log customer contact unredacted
}

type paymentUC struct {
	payments repository.PaymentRepository
	ledger   PaymentLedger
	gateway  adapter.PaymentGateway
	opts     PaymentOptions
	log      *zerolog.Logger
}

func NewPaymentUseCase(payments repository.PaymentRepository, ledger PaymentLedger, gateway adapter.PaymentGateway, opts PaymentOptions, logger *zerolog.Logger) *paymentUC {
	l := logger.With().Str("component", "PaymentUseCase").Logger()
	return &paymentUC{payments: payments, ledger: ledger, gateway: gateway, opts: opts, log: &l}
}

// NewTransactionID returns a sortable unique id used as both the internal
// transaction id and the gateway order id.
func NewTransactionID() string {
	return "txn_" + ulid.Make().String()
}

func (u *paymentUC) Initiate(ctx context.Context, p *model.Principal, in InitiatePaymentInput) (*InitiatedPayment, error) {
	if err := requirePrincipal(p); err != nil {
		return nil, err
	}
	if !in.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", domain.ErrInvalidArgument)
	}
	if !u.opts.ChunkPrice.IsZero() && !in.Amount.Equal(u.opts.ChunkPrice) {
		return nil, fmt.Errorf("%w: amount must be %s", domain.ErrInvalidArgument, u.opts.ChunkPrice.StringFixed(2))
	}
	if strings.TrimSpace(in.CustomerPhone) == "" {
		return nil, fmt.Errorf("%w: customer_phone is required", domain.ErrInvalidArgument)
	}

	// The pending row exists before the provider sees the order id, so a
	// retried request can never open an order the ledger does not know.
	txnID := NewTransactionID()
	pay, err := u.ledger.CreatePending(ctx, repository.NoTX, p.CompanyID, txnID, in.Amount, in.Method)
	if err != nil {
		return nil, err
	}

	h, err := u.gateway.CreateOrder(ctx, adapter.OrderRequest{
		OrderID:       pay.OrderID,
		Amount:        pay.Amount,
		Currency:      pay.Currency,
		CustomerID:    "company_" + p.CompanyID,
		CustomerEmail: in.CustomerEmail,
		CustomerPhone: in.CustomerPhone,
		ReturnURL:     u.returnURL(pay.OrderID),
	})
	if err != nil {
		u.log.Error().Err(err).
			Str("transaction_id", txnID).
			Str("company_id", p.CompanyID).
			Str("customer_phone", logging.Redact(in.CustomerPhone, u.opts.Dev)).
			Msg("order creation failed; payment left pending")
		if uerr := u.payments.UpdateGatewayRefs(ctx, repository.NoTX, pay.ID, "", "order creation failed"); uerr != nil {
			u.log.Warn().Err(uerr).Str("transaction_id", txnID).Msg("failed to annotate payment")
		}
		if !errors.Is(err, domain.ErrOrderCreationFailed) {
			err = &domain.GatewayError{Op: domain.GatewayOpCreateOrder, Err: err}
		}
		return nil, err
	}

	if err := u.payments.UpdateGatewayRefs(ctx, repository.NoTX, pay.ID, h.SessionID, "gateway_order="+h.GatewayID); err != nil {
		return nil, err
	}
	return &InitiatedPayment{
		TransactionID:    pay.TransactionID,
		OrderID:          pay.OrderID,
		PaymentSessionID: h.SessionID,
		PaymentLink:      h.PaymentLink,
	}, nil
}

func (u *paymentUC) returnURL(orderID string) string {
	if u.opts.ReturnURL == "" {
		return ""
	}
	ru, err := url.Parse(u.opts.ReturnURL)
	if err != nil {
		return ""
	}
	q := ru.Query()
	q.Set("order_id", orderID)
	ru.RawQuery = q.Encode()
	return ru.String()
}

func (u *paymentUC) Get(ctx context.Context, p *model.Principal, transactionID string, refresh bool) (*PaymentView, error) {
	if err := requirePrincipal(p); err != nil {
		return nil, err
	}
	pay, err := u.payments.FindByTransactionID(ctx, repository.NoTX, p.CompanyID, transactionID)
	if err != nil {
		return nil, err
	}
	if refresh && pay.Status == model.PaymentStatusPending {
		if err := u.verifyAndApply(ctx, pay, SourcePoll); err != nil {
			return nil, err
		}
	}
	return u.view(pay), nil
}

func (u *paymentUC) List(ctx context.Context, p *model.Principal, offset, limit int) ([]*PaymentView, error) {
	if err := requirePrincipal(p); err != nil {
		return nil, err
	}
	items, err := u.payments.ListByCompany(ctx, repository.NoTX, p.CompanyID, offset, limit)
	if err != nil {
		return nil, err
	}
	out := make([]*PaymentView, 0, len(items))
	for _, it := range items {
		out = append(out, u.view(it))
	}
	return out, nil
}

func (u *paymentUC) Callback(ctx context.Context, orderID string) (*PaymentView, error) {
	if strings.TrimSpace(orderID) == "" {
		return nil, domain.ErrInvalidArgument
	}
	pay, err := u.payments.FindByOrderID(ctx, repository.NoTX, orderID)
	if err != nil {
		return nil, err
	}
	if pay.Status == model.PaymentStatusPending {
		if err := u.verifyAndApply(ctx, pay, SourceCallback); err != nil {
			return nil, err
		}
	}
	return u.view(pay), nil
}

func (u *paymentUC) ReconcilePending(ctx context.Context, olderThan time.Time, limit int) (int, error) {
	pending, err := u.payments.ListPendingOlderThan(ctx, repository.NoTX, olderThan, limit)
	if err != nil {
		return 0, err
	}
	settled := 0
	for _, pay := range pending {
		if ctx.Err() != nil {
			return settled, ctx.Err()
		}
		err := u.verifyAndApply(ctx, pay, SourceReconciler)
		if isUnknownOrder(err) {
			// The create never reached the provider, so nothing can ever be
			// paid against this order.
			applied, ferr := u.ledger.MarkFailed(ctx, repository.NoTX, pay, "order never created")
			if ferr != nil {
				u.log.Warn().Err(ferr).Str("transaction_id", pay.TransactionID).Msg("reconcile: could not fail unknown order")
				continue
			}
			if applied {
				metrics.IncPaymentTransition(SourceReconciler, "applied")
			}
			settled++
			continue
		}
		if err != nil {
			u.log.Warn().Err(err).Str("transaction_id", pay.TransactionID).Msg("reconcile: verification failed")
			continue
		}
		if pay.IsTerminal() {
			settled++
		}
	}
	return settled, nil
}

func isUnknownOrder(err error) bool {
	var gerr *domain.GatewayError
	return errors.As(err, &gerr) && gerr.StatusCode == http.StatusNotFound
}

// verifyAndApply polls the gateway for pay and applies a final status
// through the ledger. pay is updated in place.
func (u *paymentUC) verifyAndApply(ctx context.Context, pay *model.Payment, source string) error {
	st, err := u.gateway.VerifyOrder(ctx, pay.OrderID)
	if err != nil {
		u.log.Error().Err(err).Str("transaction_id", pay.TransactionID).Str("source", source).Msg("order verification failed")
		if !errors.Is(err, domain.ErrVerificationUnavailable) {
			err = &domain.GatewayError{Op: domain.GatewayOpVerifyOrder, Err: err}
		}
		return err
	}
	outcome, err := applyGatewayStatus(ctx, u.ledger, u.log, pay, st.Status, st.Amount, st.PaymentID)
	if err != nil {
		return err
	}
	metrics.IncPaymentTransition(source, outcome)
	return nil
}

func (u *paymentUC) view(p *model.Payment) *PaymentView {
	return &PaymentView{Payment: p, IsValid: u.ledger.IsValid(p)}
}

// applyGatewayStatus maps a provider status onto the ledger and returns the
// outcome label: applied, noop or ignored.
func applyGatewayStatus(ctx context.Context, ledger PaymentLedger, log *zerolog.Logger, pay *model.Payment, status adapter.GatewayOrderStatus, amount decimal.Decimal, paymentID string) (string, error) {
	var (
		applied bool
		err     error
	)
	switch status {
	case adapter.GatewayOrderPaid:
		if !amount.IsZero() && !amount.Equal(pay.Amount) {
			log.Error().Str("transaction_id", pay.TransactionID).Str("expected", pay.Amount.String()).Str("reported", amount.String()).Msg("paid amount mismatch; not applying")
			return "ignored", nil
		}
		applied, err = ledger.MarkSuccess(ctx, repository.NoTX, pay, paymentID)
	case adapter.GatewayOrderFailed:
		applied, err = ledger.MarkFailed(ctx, repository.NoTX, pay, "gateway reported failure")
	case adapter.GatewayOrderExpired:
		applied, err = ledger.MarkFailed(ctx, repository.NoTX, pay, "gateway order expired")
	default:
		return "noop", nil
	}
	if err != nil {
		return "", err
	}
	if applied {
		return "applied", nil
	}
	return "noop", nil
}

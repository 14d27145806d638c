package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"opticalfiber-backend/internal/domain"
)

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending" // order created (or being created) at the gateway
	PaymentStatusSuccess PaymentStatus = "success" // confirmed paid; terminal
	PaymentStatusFailed  PaymentStatus = "failed"  // confirmed failed or dropped; terminal
)

// DefaultPaymentDurationDays is how long a successful payment keeps its
// capacity chunk unlocked unless a plan overrides it.
const DefaultPaymentDurationDays = 365

// Payment records one purchase attempt of a capacity chunk by a company.
type Payment struct {
	ID               string
	CompanyID        string
	Amount           decimal.Decimal
	Currency         string
	TransactionID    string // internal, unique
	OrderID          string // gateway order id, unique
	Status           PaymentStatus
	PaymentDate      time.Time
	DurationDays     int
	ValidUntil       *time.Time // set once, on the transition to success
	PaymentMethod    string
	SessionID        string // gateway checkout session token, if any
	GatewayPaymentID string
	Notes            string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NewPendingPayment validates and constructs a pending payment. The same
// identifier is used as transaction id and gateway order id.
var maxPaymentAmount = decimal.New(1, 8)

func NewPendingPayment(companyID, transactionID string, amount decimal.Decimal, currency, method string, durationDays int) (*Payment, error) {
	// Validate what will be stored: amounts are NUMERIC(10,2).
	amount = amount.Round(2)
	if companyID == "" || transactionID == "" || !amount.IsPositive() || amount.GreaterThanOrEqual(maxPaymentAmount) {
		return nil, domain.ErrInvalidArgument
	}
	if durationDays <= 0 {
		durationDays = DefaultPaymentDurationDays
	}
	if currency == "" {
		currency = "INR"
	}
	if method == "" {
		method = "upi"
	}
	now := time.Now()
	return &Payment{
		ID:            uuid.NewString(),
		CompanyID:     companyID,
		Amount:        amount,
		Currency:      currency,
		TransactionID: transactionID,
		OrderID:       transactionID,
		Status:        PaymentStatusPending,
		PaymentDate:   now,
		DurationDays:  durationDays,
		PaymentMethod: method,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

func (p *Payment) IsTerminal() bool {
	return p.Status == PaymentStatusSuccess || p.Status == PaymentStatusFailed
}

// ValidityEnd is PaymentDate + DurationDays.
func (p *Payment) ValidityEnd() time.Time {
	return p.PaymentDate.AddDate(0, 0, p.DurationDays)
}

// MarkSuccess moves a pending payment to success and fixes ValidUntil.
// It reports whether anything changed; on a terminal payment it is a no-op,
// so re-verifying never extends validity.
func (p *Payment) MarkSuccess(at time.Time) bool {
	if p.Status != PaymentStatusPending {
		return false
	}
	end := p.ValidityEnd()
	p.Status = PaymentStatusSuccess
	p.ValidUntil = &end
	p.UpdatedAt = at
	return true
}

// MarkFailed moves a pending payment to failed. Success is sticky: a late
// failure notification never downgrades it.
func (p *Payment) MarkFailed(at time.Time) bool {
	if p.Status != PaymentStatusPending {
		return false
	}
	p.Status = PaymentStatusFailed
	p.UpdatedAt = at
	return true
}

// IsValid reports whether the payment currently unlocks a capacity chunk.
func (p *Payment) IsValid(now time.Time) bool {
	return p.Status == PaymentStatusSuccess && p.ValidUntil != nil && !now.After(*p.ValidUntil)
}

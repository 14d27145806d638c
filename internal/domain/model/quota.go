package model

import (
	"github.com/shopspring/decimal"

	"opticalfiber-backend/internal/domain"
)

// QuotaPolicy holds the tenant-independent fiber allowance parameters.
type QuotaPolicy struct {
	FreeAllowanceKM decimal.Decimal // deployable without any payment
	ChunkKM         decimal.Decimal // unlocked by each valid payment
}

func NewQuotaPolicy(freeKM, chunkKM decimal.Decimal) (QuotaPolicy, error) {
	p := QuotaPolicy{FreeAllowanceKM: freeKM, ChunkKM: chunkKM}
	if err := p.Validate(); err != nil {
		return QuotaPolicy{}, err
	}
	return p, nil
}

func (p QuotaPolicy) Validate() error {
	if p.FreeAllowanceKM.IsNegative() || !p.ChunkKM.IsPositive() {
		return domain.ErrInvalidArgument
	}
	return nil
}

// PaidKM is the part of total that lies beyond the free allowance.
func (p QuotaPolicy) PaidKM(total decimal.Decimal) decimal.Decimal {
	paid := total.Sub(p.FreeAllowanceKM)
	if paid.IsNegative() {
		return decimal.Zero
	}
	return paid
}

// RequiredChunks is ceil(PaidKM(total) / ChunkKM).
func (p QuotaPolicy) RequiredChunks(total decimal.Decimal) int64 {
	paid := p.PaidKM(total)
	if paid.IsZero() {
		return 0
	}
	return paid.Div(p.ChunkKM).Ceil().IntPart()
}

// CapacityKM is the largest total allowed with the given number of paid chunks.
func (p QuotaPolicy) CapacityKM(paidChunks int64) decimal.Decimal {
	if paidChunks < 0 {
		paidChunks = 0
	}
	return p.FreeAllowanceKM.Add(p.ChunkKM.Mul(decimal.NewFromInt(paidChunks)))
}

// QuotaDecision is the outcome of authorizing a route write.
type QuotaDecision struct {
	Authorized     bool
	CurrentKM      decimal.Decimal
	ProjectedKM    decimal.Decimal
	RequiredChunks int64
	PaidChunks     int64
	RemainingKM    decimal.Decimal // capacity left after the write; zero when denied
	// BoundaryWarning is set when an authorized write lands exactly on the
	// capacity limit, so the next kilometre of growth needs another payment.
	BoundaryWarning bool
}

// Decide applies the policy to a projected total. It performs no I/O.
func (p QuotaPolicy) Decide(currentKM, candidateKM decimal.Decimal, paidChunks int64) QuotaDecision {
	projected := currentKM.Add(candidateKM)
	d := QuotaDecision{
		CurrentKM:      currentKM,
		ProjectedKM:    projected,
		RequiredChunks: p.RequiredChunks(projected),
		PaidChunks:     paidChunks,
		RemainingKM:    decimal.Zero,
	}
	if d.RequiredChunks > paidChunks {
		return d
	}
	d.Authorized = true
	remaining := p.CapacityKM(paidChunks).Sub(projected)
	if remaining.IsPositive() {
		d.RemainingKM = remaining
	}
	d.BoundaryWarning = remaining.IsZero()
	return d
}

// DeniedError converts a denial into the structured domain error.
func (p QuotaPolicy) DeniedError(d QuotaDecision) error {
	if d.Authorized {
		return nil
	}
	return &domain.QuotaDeniedError{
		CurrentKM:      d.CurrentKM,
		ProjectedKM:    d.ProjectedKM,
		FreeAllowance:  p.FreeAllowanceKM,
		ChunkKM:        p.ChunkKM,
		RequiredChunks: d.RequiredChunks,
		PaidChunks:     d.PaidChunks,
	}
}

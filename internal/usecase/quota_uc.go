package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"opticalfiber-backend/internal/domain/model"
	"opticalfiber-backend/internal/domain/ports/repository"
	"opticalfiber-backend/internal/infra/logging"
	"opticalfiber-backend/internal/infra/metrics"
)

// Compile-time check
var _ QuotaEngine = (*quotaEngine)(nil)

type QuotaEngine interface {
	// CheckAndAuthorize decides whether candidateKM more fiber may be written
	// for the company. It must run inside tx with the tenant lock held, so
	// the aggregate it reads cannot move before the write commits.
	// excludingRouteID leaves a route being replaced out of the current total.
	CheckAndAuthorize(ctx context.Context, tx repository.Tx, companyID string, candidateKM decimal.Decimal, excludingRouteID string) (model.QuotaDecision, error)
	Status(ctx context.Context, p *model.Principal) (*QuotaStatus, error)
	Policy() model.QuotaPolicy
}

// QuotaStatus is the read-only view of a company's fiber usage.
type QuotaStatus struct {
	TotalKM         decimal.Decimal
	FreeAllowanceKM decimal.Decimal
	ChunkKM         decimal.Decimal
	RequiredChunks  int64
	PaidChunks      int64
	CapacityKM      decimal.Decimal
	RemainingKM     decimal.Decimal
	OverQuota       bool // payments lapsed below what existing routes need
	AtBoundary      bool
}

type quotaEngine struct {
	routes   repository.RouteRepository
	payments repository.PaymentRepository
	policy   model.QuotaPolicy
	now      func() time.Time
	log      *zerolog.Logger
}

func NewQuotaEngine(routes repository.RouteRepository, payments repository.PaymentRepository, policy model.QuotaPolicy, logger *zerolog.Logger) *quotaEngine {
	l := logger.With().Str("component", "QuotaEngine").Logger()
	return &quotaEngine{routes: routes, payments: payments, policy: policy, now: time.Now, log: &l}
}

func (q *quotaEngine) Policy() model.QuotaPolicy { return q.policy }

func (q *quotaEngine) CheckAndAuthorize(ctx context.Context, tx repository.Tx, companyID string, candidateKM decimal.Decimal, excludingRouteID string) (model.QuotaDecision, error) {
	defer logging.TraceDuration(q.log, "QuotaEngine.CheckAndAuthorize")()
	current, err := q.routes.SumActiveLength(ctx, tx, companyID, excludingRouteID)
	if err != nil {
		return model.QuotaDecision{}, err
	}

	paid, err := q.payments.CountValid(ctx, tx, companyID, q.now())
	if err != nil {
		return model.QuotaDecision{}, err
	}
	d := q.policy.Decide(current, candidateKM, paid)

	switch {
	case !d.Authorized:
		metrics.IncQuotaDecision("denied")
		q.log.Info().
			Str("company_id", companyID).
			Str("projected_km", d.ProjectedKM.String()).
			Int64("required_chunks", d.RequiredChunks).
			Int64("paid_chunks", d.PaidChunks).
			Msg("quota denied")
		return d, q.policy.DeniedError(d)
	case d.BoundaryWarning:
		metrics.IncQuotaDecision("boundary")
		q.log.Info().Str("company_id", companyID).Str("projected_km", d.ProjectedKM.String()).Msg("quota authorized at capacity boundary")
	default:
		metrics.IncQuotaDecision("authorized")
	}
	return d, nil
}

func (q *quotaEngine) Status(ctx context.Context, p *model.Principal) (*QuotaStatus, error) {
	if err := requirePrincipal(p); err != nil {
		return nil, err
	}
	total, err := q.routes.SumActiveLength(ctx, repository.NoTX, p.CompanyID, "")
	if err != nil {
		return nil, err
	}
	paid, err := q.payments.CountValid(ctx, repository.NoTX, p.CompanyID, q.now())
	if err != nil {
		return nil, err
	}
	d := q.policy.Decide(total, decimal.Zero, paid)
	return &QuotaStatus{
		TotalKM:         total,
		FreeAllowanceKM: q.policy.FreeAllowanceKM,
		ChunkKM:         q.policy.ChunkKM,
		RequiredChunks:  d.RequiredChunks,
		PaidChunks:      paid,
		CapacityKM:      q.policy.CapacityKM(paid),
		RemainingKM:     d.RemainingKM,
		OverQuota:       !d.Authorized,
		AtBoundary:      d.BoundaryWarning,
	}, nil
}

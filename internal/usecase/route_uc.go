package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
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
var _ RouteUseCase = (*routeUC)(nil)

type RouteUseCase interface {
	// Create authorizes and persists a route synchronously.
	Create(ctx context.Context, p *model.Principal, in RouteInput) (*RouteResult, error)
	// Enqueue validates the request and hands persistence to the job queue.
	// The returned id is the id the route will be stored under.
	Enqueue(ctx context.Context, p *model.Principal, in RouteInput) (string, error)
	Update(ctx context.Context, p *model.Principal, id string, patch RoutePatch) (*RouteResult, error)
	Delete(ctx context.Context, p *model.Principal, id string) error
	Get(ctx context.Context, p *model.Principal, id string) (*model.FiberRoute, error)
	List(ctx context.Context, p *model.Principal) ([]*model.FiberRoute, error)
}

type RouteInput struct {
	OfficeID string
	Name     string
	Path     []model.Coordinate
	LengthKM decimal.Decimal
}

// RoutePatch carries the fields a partial update may change.
type RoutePatch struct {
	Name     *string
	Path     []model.Coordinate
	LengthKM *decimal.Decimal
}

type RouteResult struct {
	Route    *model.FiberRoute
	Decision *model.QuotaDecision // nil when the write did not need a quota check
}

type TxRunner interface {
	repository.TransactionManager
	repository.TenantLocker
}

type routeUC struct {
	routes  repository.RouteRepository
	offices repository.OfficeRepository
	cache   repository.RouteListCache
	quota   QuotaEngine
	tm      TxRunner
	jobs    adapter.JobQueue
	log     *zerolog.Logger
}

func NewRouteUseCase(routes repository.RouteRepository, offices repository.OfficeRepository, cache repository.RouteListCache, quota QuotaEngine, tm TxRunner, jobs adapter.JobQueue, logger *zerolog.Logger) *routeUC {
	l := logger.With().Str("component", "RouteUseCase").Logger()
	return &routeUC{routes: routes, offices: offices, cache: cache, quota: quota, tm: tm, jobs: jobs, log: &l}
}

func (u *routeUC) Create(ctx context.Context, p *model.Principal, in RouteInput) (*RouteResult, error) {
	if err := requirePrincipal(p); err != nil {
		return nil, err
	}
	r, err := u.prepare(ctx, p, uuid.NewString(), in)
	if err != nil {
		return nil, err
	}
	return u.persist(ctx, r)
}

func (u *routeUC) Enqueue(ctx context.Context, p *model.Principal, in RouteInput) (string, error) {
	if err := requirePrincipal(p); err != nil {
		return "", err
	}
	if u.jobs == nil {
		return "", fmt.Errorf("%w: deferred route creation is disabled", domain.ErrOperationFailed)
	}
	r, err := u.prepare(ctx, p, uuid.NewString(), in)
	if err != nil {
		return "", err
	}
	// Unlocked precheck so an obvious denial reaches the caller. The job
	// repeats the check under the tenant lock and that one decides.
	err = u.tm.WithTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly}, func(ctx context.Context, tx repository.Tx) error {
		_, err := u.quota.CheckAndAuthorize(ctx, tx, r.CompanyID, r.LengthKM, r.ID)
		return err
	})
	if err != nil {
		return "", err
	}

	job := adapter.Job{
		Name: "route:" + r.ID,
		Run: func(ctx context.Context) error {
			_, err := u.persist(ctx, r)
			if isRejection(err) {
				return adapter.Permanent(err)
			}
			return err
		},
		OnGiveUp: func(ctx context.Context, err error) {
			u.log.Error().Err(err).Str("route_id", r.ID).Str("company_id", r.CompanyID).Msg("deferred route creation abandoned")
		},
	}
	if err := u.jobs.Submit(job); err != nil {
		metrics.IncRouteJob("rejected")
		return "", err
	}
	metrics.IncRouteJob("queued")
	u.log.Info().Str("route_id", r.ID).Str("company_id", r.CompanyID).Msg("route creation queued")
	return r.ID, nil
}

// prepare validates the request against the principal's tenant.
func (u *routeUC) prepare(ctx context.Context, p *model.Principal, id string, in RouteInput) (*model.FiberRoute, error) {
	if _, err := u.offices.FindByID(ctx, repository.NoTX, p.CompanyID, in.OfficeID); err != nil {
		return nil, err
	}
	return model.NewFiberRoute(id, p.CompanyID, in.OfficeID, in.Name, in.Path, in.LengthKM, p.StaffID)
}

// persist runs the quota check and the insert under the tenant lock. The
// route's own id is excluded from the current total, so a retried job that
// already committed is re-authorized against the same numbers, and the
// insert leaves an existing row alone, including one deleted since.
func (u *routeUC) persist(ctx context.Context, r *model.FiberRoute) (*RouteResult, error) {
	defer logging.TraceDuration(u.log, "RouteUC.persist")()
	var decision model.QuotaDecision
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := u.tm.LockTenant(ctx, tx, r.CompanyID); err != nil {
			return err
		}
		d, err := u.quota.CheckAndAuthorize(ctx, tx, r.CompanyID, r.LengthKM, r.ID)
		if err != nil {
			return err
		}
		decision = d
		return u.routes.Create(ctx, tx, r)
	})
	if err != nil {
		return nil, err
	}
	u.invalidate(ctx, r.CompanyID)
	u.log.Info().Str("route_id", r.ID).Str("company_id", r.CompanyID).Str("length_km", r.LengthKM.String()).Msg("route saved")
	return &RouteResult{Route: r, Decision: &decision}, nil
}

func (u *routeUC) Update(ctx context.Context, p *model.Principal, id string, patch RoutePatch) (*RouteResult, error) {
	if err := requirePrincipal(p); err != nil {
		return nil, err
	}
	var res RouteResult
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := u.tm.LockTenant(ctx, tx, p.CompanyID); err != nil {
			return err
		}
		r, err := u.routes.FindByID(ctx, tx, p.CompanyID, id)
		if err != nil {
			return err
		}
		grows := false
		if patch.Name != nil {
			r.Name = *patch.Name
		}
		if patch.Path != nil {
			r.Path = patch.Path
		}
		if patch.LengthKM != nil {
			grows = patch.LengthKM.GreaterThan(r.LengthKM)
			r.LengthKM = *patch.LengthKM
		}
		if err := r.Validate(); err != nil {
			return err
		}
		// Shrinking or keeping the length never needs authorization, even
		// when lapsed payments left the company over quota.
		if grows {
			d, err := u.quota.CheckAndAuthorize(ctx, tx, p.CompanyID, r.LengthKM, r.ID)
			if err != nil {
				return err
			}
			res.Decision = &d
		}
		r.UpdatedAt = time.Now()
		res.Route = r
		return u.routes.Save(ctx, tx, r)
	})
	if err != nil {
		return nil, err
	}
	u.invalidate(ctx, p.CompanyID)
	return &res, nil
}

func (u *routeUC) Delete(ctx context.Context, p *model.Principal, id string) error {
	if err := requirePrincipal(p); err != nil {
		return err
	}
	if err := u.routes.SoftDelete(ctx, repository.NoTX, p.CompanyID, id); err != nil {
		return err
	}
	u.invalidate(ctx, p.CompanyID)
	u.log.Info().Str("route_id", id).Str("company_id", p.CompanyID).Str("staff_id", p.StaffID).Msg("route deleted")
	return nil
}

func (u *routeUC) Get(ctx context.Context, p *model.Principal, id string) (*model.FiberRoute, error) {
	if err := requirePrincipal(p); err != nil {
		return nil, err
	}
	return u.routes.FindByID(ctx, repository.NoTX, p.CompanyID, id)
}

func (u *routeUC) List(ctx context.Context, p *model.Principal) ([]*model.FiberRoute, error) {
	if err := requirePrincipal(p); err != nil {
		return nil, err
	}
	return u.routes.ListByCompany(ctx, repository.NoTX, p.CompanyID)
}

func (u *routeUC) invalidate(ctx context.Context, companyID string) {
	if u.cache == nil {
		return
	}
	if err := u.cache.Invalidate(ctx, companyID); err != nil {
		u.log.Warn().Err(err).Str("company_id", companyID).Msg("route cache invalidation failed")
	}
}

// isRejection reports errors that a retry cannot fix.
func isRejection(err error) bool {
	return errors.Is(err, domain.ErrQuotaExceeded) ||
		errors.Is(err, domain.ErrInvalidArgument) ||
		errors.Is(err, domain.ErrNotFound) ||
		errors.Is(err, domain.ErrAlreadyExists)
}

package postgres

import (
	"context"

	"github.com/shopspring/decimal"

	"opticalfiber-backend/internal/domain/model"
	"opticalfiber-backend/internal/domain/ports/repository"
)

var _ repository.RouteRepository = (*routeRepoCacheDecorator)(nil)

// routeRepoCacheDecorator serves company listings from the route cache.
// Reads bound to a transaction and the quota aggregate always hit the
// database.
type routeRepoCacheDecorator struct {
	inner repository.RouteRepository
	cache repository.RouteListCache
}

func NewRouteRepoCacheDecorator(inner repository.RouteRepository, cache repository.RouteListCache) repository.RouteRepository {
	return &routeRepoCacheDecorator{inner: inner, cache: cache}
}

func (d *routeRepoCacheDecorator) ListByCompany(ctx context.Context, tx repository.Tx, companyID string) ([]*model.FiberRoute, error) {
	if tx != nil {
		return d.inner.ListByCompany(ctx, tx, companyID)
	}
	if routes, ok := d.cache.Get(ctx, companyID); ok {
		return routes, nil
	}
	routes, err := d.inner.ListByCompany(ctx, nil, companyID)
	if err != nil {
		return nil, err
	}
	d.cache.Set(ctx, companyID, routes)
	return routes, nil
}

// For write operations, we must invalidate the cache. Callers writing inside a
// transaction invalidate again after commit.
func (d *routeRepoCacheDecorator) Create(ctx context.Context, tx repository.Tx, r *model.FiberRoute) error {
	_ = d.cache.Invalidate(ctx, r.CompanyID)
	return d.inner.Create(ctx, tx, r)
}

func (d *routeRepoCacheDecorator) Save(ctx context.Context, tx repository.Tx, r *model.FiberRoute) error {
	_ = d.cache.Invalidate(ctx, r.CompanyID)
	return d.inner.Save(ctx, tx, r)
}

func (d *routeRepoCacheDecorator) SoftDelete(ctx context.Context, tx repository.Tx, companyID, id string) error {
	_ = d.cache.Invalidate(ctx, companyID)
	return d.inner.SoftDelete(ctx, tx, companyID, id)
}

func (d *routeRepoCacheDecorator) FindByID(ctx context.Context, tx repository.Tx, companyID, id string) (*model.FiberRoute, error) {
	return d.inner.FindByID(ctx, tx, companyID, id)
}

func (d *routeRepoCacheDecorator) SumActiveLength(ctx context.Context, tx repository.Tx, companyID, excludeID string) (decimal.Decimal, error) {
	return d.inner.SumActiveLength(ctx, tx, companyID, excludeID)
}

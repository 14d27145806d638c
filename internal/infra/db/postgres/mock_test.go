//go:build !integration

package postgres

import (
	"context"

	"github.com/shopspring/decimal"

	"opticalfiber-backend/internal/domain/model"
	"opticalfiber-backend/internal/domain/ports/repository"
)

// --- Mocks for Cache Decorator Tests ---

// mockInnerRouteRepo mocks the database repository that the route decorator wraps.
type mockInnerRouteRepo struct {
	CreateFunc          func(ctx context.Context, tx repository.Tx, r *model.FiberRoute) error
	SaveFunc            func(ctx context.Context, tx repository.Tx, r *model.FiberRoute) error
	FindByIDFunc        func(ctx context.Context, tx repository.Tx, companyID, id string) (*model.FiberRoute, error)
	ListByCompanyFunc   func(ctx context.Context, tx repository.Tx, companyID string) ([]*model.FiberRoute, error)
	SoftDeleteFunc      func(ctx context.Context, tx repository.Tx, companyID, id string) error
	SumActiveLengthFunc func(ctx context.Context, tx repository.Tx, companyID, excludeID string) (decimal.Decimal, error)
}

func (m *mockInnerRouteRepo) Create(ctx context.Context, tx repository.Tx, r *model.FiberRoute) error {
	return m.CreateFunc(ctx, tx, r)
}
func (m *mockInnerRouteRepo) Save(ctx context.Context, tx repository.Tx, r *model.FiberRoute) error {
	return m.SaveFunc(ctx, tx, r)
}
func (m *mockInnerRouteRepo) FindByID(ctx context.Context, tx repository.Tx, companyID, id string) (*model.FiberRoute, error) {
	return m.FindByIDFunc(ctx, tx, companyID, id)
}
func (m *mockInnerRouteRepo) ListByCompany(ctx context.Context, tx repository.Tx, companyID string) ([]*model.FiberRoute, error) {
	return m.ListByCompanyFunc(ctx, tx, companyID)
}
func (m *mockInnerRouteRepo) SoftDelete(ctx context.Context, tx repository.Tx, companyID, id string) error {
	return m.SoftDeleteFunc(ctx, tx, companyID, id)
}
func (m *mockInnerRouteRepo) SumActiveLength(ctx context.Context, tx repository.Tx, companyID, excludeID string) (decimal.Decimal, error) {
	return m.SumActiveLengthFunc(ctx, tx, companyID, excludeID)
}

// mockRouteCache is an in-memory RouteListCache that records invalidations.
type mockRouteCache struct {
	entries     map[string][]*model.FiberRoute
	invalidated []string
}

func newMockRouteCache() *mockRouteCache {
	return &mockRouteCache{entries: map[string][]*model.FiberRoute{}}
}

func (c *mockRouteCache) Get(ctx context.Context, companyID string) ([]*model.FiberRoute, bool) {
	r, ok := c.entries[companyID]
	return r, ok
}
func (c *mockRouteCache) Set(ctx context.Context, companyID string, routes []*model.FiberRoute) {
	c.entries[companyID] = routes
}
func (c *mockRouteCache) Invalidate(ctx context.Context, companyID string) error {
	delete(c.entries, companyID)
	c.invalidated = append(c.invalidated, companyID)
	return nil
}

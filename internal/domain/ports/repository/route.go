package repository

import (
	"context"

	"github.com/shopspring/decimal"

	"opticalfiber-backend/internal/domain/model"
)

// -----------------------------
// Fiber routes
// -----------------------------

type RouteRepository interface {
	// Create inserts a new route. An existing row with the same id is left
	// untouched and reported as success.
	Create(ctx context.Context, tx Tx, r *model.FiberRoute) error
	Save(ctx context.Context, tx Tx, r *model.FiberRoute) error
	FindByID(ctx context.Context, tx Tx, companyID, id string) (*model.FiberRoute, error)
	ListByCompany(ctx context.Context, tx Tx, companyID string) ([]*model.FiberRoute, error)
	SoftDelete(ctx context.Context, tx Tx, companyID, id string) error
	// SumActiveLength sums non-deleted route lengths for the company, leaving
	// out excludeID when it is not empty. Always reads the authoritative store.
	SumActiveLength(ctx context.Context, tx Tx, companyID, excludeID string) (decimal.Decimal, error)
}

type OfficeRepository interface {
	FindByID(ctx context.Context, tx Tx, companyID, id string) (*model.Office, error)
}

// RouteListCache caches the per-company route listing. It is an optimisation
// only; quota decisions never read from it.
type RouteListCache interface {
	Get(ctx context.Context, companyID string) ([]*model.FiberRoute, bool)
	Set(ctx context.Context, companyID string, routes []*model.FiberRoute)
	Invalidate(ctx context.Context, companyID string) error
}

package postgres

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/shopspring/decimal"

	"opticalfiber-backend/internal/domain"
	"opticalfiber-backend/internal/domain/model"
	"opticalfiber-backend/internal/domain/ports/repository"
)

var _ repository.RouteRepository = (*routeRepo)(nil)

type routeRepo struct{ pool *pgxpool.Pool }

func NewRouteRepo(pool *pgxpool.Pool) *routeRepo {
	return &routeRepo{pool: pool}
}

const routeColumns = `id, company_id, office_id, name, path, length_km, is_deleted, deleted_at, created_by, created_at, updated_at`

func scanRoute(row pgx.Row) (*model.FiberRoute, error) {
	r := &model.FiberRoute{}
	var path []byte
	if err := row.Scan(&r.ID, &r.CompanyID, &r.OfficeID, &r.Name, &path, &r.LengthKM, &r.Deleted, &r.DeletedAt, &r.CreatedBy, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	if len(path) > 0 {
		if err := json.Unmarshal(path, &r.Path); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *routeRepo) Create(ctx context.Context, tx repository.Tx, route *model.FiberRoute) error {
	path, err := json.Marshal(route.Path)
	if err != nil {
		return domain.ErrInvalidArgument
	}
	const q = `
INSERT INTO fiber_routes (
  ` + routeColumns + `
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11
) ON CONFLICT (id) DO NOTHING;`

	_, err = execSQL(ctx, r.pool, tx, q, route.ID, route.CompanyID, route.OfficeID, route.Name, string(path), route.LengthKM, route.Deleted, route.DeletedAt, route.CreatedBy, route.CreatedAt, route.UpdatedAt)
	return mapExecErr(err)
}

// Save inserts a route or rewrites its mutable fields.
func (r *routeRepo) Save(ctx context.Context, tx repository.Tx, route *model.FiberRoute) error {
	path, err := json.Marshal(route.Path)
	if err != nil {
		return domain.ErrInvalidArgument
	}
	const q = `
INSERT INTO fiber_routes (
  ` + routeColumns + `
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11
) ON CONFLICT (id) DO UPDATE SET
  office_id=$3, name=$4, path=$5, length_km=$6, is_deleted=$7, deleted_at=$8, updated_at=$11;`

	_, err = execSQL(ctx, r.pool, tx, q, route.ID, route.CompanyID, route.OfficeID, route.Name, string(path), route.LengthKM, route.Deleted, route.DeletedAt, route.CreatedBy, route.CreatedAt, route.UpdatedAt)
	return mapExecErr(err)
}

func (r *routeRepo) FindByID(ctx context.Context, tx repository.Tx, companyID, id string) (*model.FiberRoute, error) {
	q := forUpdate(`SELECT `+routeColumns+` FROM fiber_routes WHERE company_id=$1 AND id=$2 AND NOT is_deleted`, tx)
	row, err := pickRow(ctx, r.pool, tx, q, companyID, id)
	if err != nil {
		return nil, err
	}
	route, err := scanRoute(row)
	if err != nil {
		return nil, mapScanErr(err)
	}
	return route, nil
}

func (r *routeRepo) ListByCompany(ctx context.Context, tx repository.Tx, companyID string) ([]*model.FiberRoute, error) {
	const q = `SELECT ` + routeColumns + ` FROM fiber_routes WHERE company_id=$1 AND NOT is_deleted ORDER BY created_at ASC, id ASC;`
	rows, err := queryRows(ctx, r.pool, tx, q, companyID)
	if err != nil {
		return nil, mapExecErr(err)
	}
	defer rows.Close()

	out := []*model.FiberRoute{}
	for rows.Next() {
		route, err := scanRoute(rows)
		if err != nil {
			return nil, mapScanErr(err)
		}
		out = append(out, route)
	}
	if err := rows.Err(); err != nil {
		return nil, mapExecErr(err)
	}
	return out, nil
}

func (r *routeRepo) SoftDelete(ctx context.Context, tx repository.Tx, companyID, id string) error {
	const q = `UPDATE fiber_routes SET is_deleted=TRUE, deleted_at=NOW(), updated_at=NOW() WHERE company_id=$1 AND id=$2 AND NOT is_deleted;`
	cmd, err := execSQL(ctx, r.pool, tx, q, companyID, id)
	if err != nil {
		return mapExecErr(err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *routeRepo) SumActiveLength(ctx context.Context, tx repository.Tx, companyID, excludeID string) (decimal.Decimal, error) {
	const q = `SELECT COALESCE(SUM(length_km), 0) FROM fiber_routes WHERE company_id=$1 AND NOT is_deleted AND ($2 = '' OR id <> $2);`
	row, err := pickRow(ctx, r.pool, tx, q, companyID, excludeID)
	if err != nil {
		return decimal.Zero, err
	}
	var sum decimal.Decimal
	if err := row.Scan(&sum); err != nil {
		return decimal.Zero, mapScanErr(err)
	}
	return sum, nil
}

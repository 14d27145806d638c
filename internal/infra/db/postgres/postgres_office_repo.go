package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"opticalfiber-backend/internal/domain/model"
	"opticalfiber-backend/internal/domain/ports/repository"
)

var _ repository.OfficeRepository = (*officeRepo)(nil)

type officeRepo struct{ pool *pgxpool.Pool }

func NewOfficeRepo(pool *pgxpool.Pool) *officeRepo {
	return &officeRepo{pool: pool}
}

func (r *officeRepo) FindByID(ctx context.Context, tx repository.Tx, companyID, id string) (*model.Office, error) {
	const q = `SELECT id, company_id, name, office_type, latitude, longitude, created_at FROM offices WHERE company_id=$1 AND id=$2;`
	row, err := pickRow(ctx, r.pool, tx, q, companyID, id)
	if err != nil {
		return nil, err
	}
	o := &model.Office{}
	var typ string
	if err := row.Scan(&o.ID, &o.CompanyID, &o.Name, &typ, &o.Latitude, &o.Longitude, &o.CreatedAt); err != nil {
		return nil, mapScanErr(err)
	}
	o.Type = model.OfficeType(typ)
	return o, nil
}

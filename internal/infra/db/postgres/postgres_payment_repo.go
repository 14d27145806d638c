package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"opticalfiber-backend/internal/domain/model"
	"opticalfiber-backend/internal/domain/ports/repository"
)

var _ repository.PaymentRepository = (*paymentRepo)(nil)

type paymentRepo struct{ pool *pgxpool.Pool }

func NewPaymentRepo(pool *pgxpool.Pool) *paymentRepo {
	return &paymentRepo{pool: pool}
}

const paymentColumns = `id, company_id, amount, currency, transaction_id, order_id, status, payment_date, duration_days, valid_until, payment_method, session_id, gateway_payment_id, notes, created_at, updated_at`

func scanPayment(row pgx.Row) (*model.Payment, error) {
	p := &model.Payment{}
	var status string
	if err := row.Scan(&p.ID, &p.CompanyID, &p.Amount, &p.Currency, &p.TransactionID, &p.OrderID, &status, &p.PaymentDate, &p.DurationDays, &p.ValidUntil, &p.PaymentMethod, &p.SessionID, &p.GatewayPaymentID, &p.Notes, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Status = model.PaymentStatus(status)
	return p, nil
}

func (r *paymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	const q = `
INSERT INTO payments (
  ` + paymentColumns + `
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16
) ON CONFLICT (id) DO UPDATE SET
  session_id=$12, gateway_payment_id=$13, notes=$14, updated_at=$16;`

	_, err := execSQL(ctx, r.pool, tx, q, p.ID, p.CompanyID, p.Amount, p.Currency, p.TransactionID, p.OrderID, string(p.Status), p.PaymentDate, p.DurationDays, p.ValidUntil, p.PaymentMethod, p.SessionID, p.GatewayPaymentID, p.Notes, p.CreatedAt, p.UpdatedAt)
	return mapExecErr(err)
}

func (r *paymentRepo) findOne(ctx context.Context, tx repository.Tx, where string, args ...interface{}) (*model.Payment, error) {
	q := forUpdate(`SELECT `+paymentColumns+` FROM payments WHERE `+where, tx)
	row, err := pickRow(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, err
	}
	p, err := scanPayment(row)
	if err != nil {
		return nil, mapScanErr(err)
	}
	return p, nil
}

func (r *paymentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Payment, error) {
	return r.findOne(ctx, tx, `id=$1`, id)
}

func (r *paymentRepo) FindByTransactionID(ctx context.Context, tx repository.Tx, companyID, transactionID string) (*model.Payment, error) {
	return r.findOne(ctx, tx, `company_id=$1 AND transaction_id=$2`, companyID, transactionID)
}

func (r *paymentRepo) FindByOrderID(ctx context.Context, tx repository.Tx, orderID string) (*model.Payment, error) {
	return r.findOne(ctx, tx, `order_id=$1`, orderID)
}

func (r *paymentRepo) list(ctx context.Context, tx repository.Tx, q string, args ...interface{}) ([]*model.Payment, error) {
	rows, err := queryRows(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, mapExecErr(err)
	}
	defer rows.Close()

	var out []*model.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, mapScanErr(err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, mapExecErr(err)
	}
	return out, nil
}

func (r *paymentRepo) ListByCompany(ctx context.Context, tx repository.Tx, companyID string, offset, limit int) ([]*model.Payment, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	const q = `SELECT ` + paymentColumns + ` FROM payments WHERE company_id=$1 ORDER BY created_at DESC OFFSET $2 LIMIT $3;`
	return r.list(ctx, tx, q, companyID, offset, limit)
}

func (r *paymentRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Payment, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `SELECT ` + paymentColumns + ` FROM payments WHERE status='pending' AND created_at < $1 ORDER BY created_at ASC LIMIT $2;`
	return r.list(ctx, tx, q, olderThan, limit)
}

// TransitionIfPending writes the terminal state carried by p only when the
// stored row is still pending.
func (r *paymentRepo) TransitionIfPending(ctx context.Context, tx repository.Tx, p *model.Payment) (bool, error) {
	const q = `
    UPDATE payments
       SET status = $2,
           valid_until = $3,
           gateway_payment_id = CASE WHEN $4 = '' THEN gateway_payment_id ELSE $4 END,
           notes = CASE WHEN $5 = '' THEN notes ELSE $5 END,
           updated_at = $6
     WHERE id = $1
       AND status = 'pending'`

	cmd, err := execSQL(ctx, r.pool, tx, q, p.ID, string(p.Status), p.ValidUntil, p.GatewayPaymentID, p.Notes, p.UpdatedAt)
	if err != nil {
		return false, mapExecErr(err)
	}
	return cmd.RowsAffected() >= 1, nil
}

func (r *paymentRepo) UpdateGatewayRefs(ctx context.Context, tx repository.Tx, id, sessionID, notes string) error {
	const q = `UPDATE payments SET session_id=$2, notes=$3, updated_at=NOW() WHERE id=$1;`
	_, err := execSQL(ctx, r.pool, tx, q, id, sessionID, notes)
	return mapExecErr(err)
}

func (r *paymentRepo) CountValid(ctx context.Context, tx repository.Tx, companyID string, now time.Time) (int64, error) {
	const q = `SELECT COUNT(*) FROM payments WHERE company_id=$1 AND status='success' AND valid_until >= $2;`
	row, err := pickRow(ctx, r.pool, tx, q, companyID, now)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := row.Scan(&n); err != nil {
		return 0, mapScanErr(err)
	}
	return n, nil
}

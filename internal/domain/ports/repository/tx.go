package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

type Tx interface{}

var NoTX interface{}

// TransactionManager provides a thin abstraction to execute a function within a
// database transaction, passing the underlying transaction handle via `tx`.
//
// Repository methods that accept `tx` detect a live transaction and bind their
// statements to it (and use SELECT ... FOR UPDATE where relevant). They MUST
// gracefully accept a nil tx (non-transactional path).
//
// USAGE
//
//	tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
//		p, err := payments.FindByID(ctx, tx, id)
//		...
//		return err
//	})
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}

// TenantLocker serialises read-modify-write sequences over a company's
// aggregate state. The lock is scoped to tx and released when it ends.
type TenantLocker interface {
	LockTenant(ctx context.Context, tx Tx, companyID string) error
}

package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

// Tx is an opaque transaction handle threaded through repository calls via
// the `qx` parameter. Repositories must accept nil (non-transactional path);
// the concrete type is infra-defined (pgx.Tx for Postgres).
type Tx interface{}

// TransactionManager runs fn inside a database transaction, rolling back when
// fn returns an error. Keeping the handle opaque stops transaction types from
// leaking into use-case signatures.
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}

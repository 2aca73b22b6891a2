package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

type Tx interface{}

var NoTX interface{}

// TransactionManager provides a thin abstraction to execute a function
// within a database transaction, passing the underlying transaction
// handle via the opaque Tx argument.
//
// Use-case interfaces stay clean (no driver types leaking out) while
// repository implementations can detect a tx handle and run
// SELECT ... FOR UPDATE or tx-bound Exec/Query as needed. Repositories
// MUST gracefully accept a nil tx (non-transactional path).
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}

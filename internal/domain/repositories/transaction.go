package repositories

import "context"

// TxFn is a function that runs within a transaction. It receives the
// transaction-scoped context; repositories called with it join the
// transaction.
type TxFn func(ctx context.Context) error

// TransactionManager runs a read-validate-write sequence atomically.
// If fn returns an error every write made through the context is rolled back.
type TransactionManager interface {
	ExecTx(ctx context.Context, fn TxFn) error
}

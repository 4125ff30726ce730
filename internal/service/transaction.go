package service

import "context"

// TransactionManager defines the interface for transaction management.
// Services use this to wrap multiple repository operations in a single transaction.
type TransactionManager interface {
	// WithTransaction executes the given function within a database transaction.
	// If fn returns an error, the transaction is rolled back.
	// Otherwise, it is committed. When ctx already carries a transaction,
	// fn runs in a nested savepoint of it, so producers can enqueue inside
	// their own unit of work.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

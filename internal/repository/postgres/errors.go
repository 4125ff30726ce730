package postgres

import (
	"errors"

	domainErrors "github.com/cassiomorais/edi-gateway/internal/domain/errors"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	uniqueViolation      = "23505"
	serializationFailure = "40001"
	deadlockDetected     = "40P01"
)

type scanner interface {
	Scan(dest ...any) error
}

// isConflict reports errors that a concurrent writer caused. Retrying the
// whole unit of work resolves them.
func isConflict(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case uniqueViolation, serializationFailure, deadlockDetected:
		return true
	}
	return false
}

// conflictOrWrap maps concurrent-writer errors to ErrOptimisticLockFailed so
// that callers retry them like any other version conflict.
func conflictOrWrap(err error, wrap func(error) error) error {
	if isConflict(err) {
		return domainErrors.ErrOptimisticLockFailed
	}
	return wrap(err)
}

package knowledge

import (
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound indicates the requested row does not exist (or is outside
	// the caller's scope, which is indistinguishable by design).
	ErrNotFound = errors.New("not found")

	// ErrUniqueViolation indicates a uniqueness constraint was violated,
	// e.g. a duplicate tag name.
	ErrUniqueViolation = errors.New("unique constraint violation")

	// ErrForeignKeyViolation indicates an association references a missing
	// item or tag.
	ErrForeignKeyViolation = errors.New("foreign key violation")

	// ErrEmptyTextContent indicates an attempt to persist a content item
	// without text content.
	ErrEmptyTextContent = errors.New("text content must not be empty")

	// ErrAtomicWrite indicates the enrichment transaction failed after
	// exhausting its retry. Nothing was persisted.
	ErrAtomicWrite = errors.New("atomic write failed")
)

// mapPgError translates driver errors into the store's error taxonomy.
// Unrecognized errors pass through unchanged.
func mapPgError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.UniqueViolation:
			return ErrUniqueViolation
		case pgerrcode.ForeignKeyViolation:
			return ErrForeignKeyViolation
		}
	}

	return err
}

// isRetryableTxError reports whether a failed transaction is worth one
// retry: serialization failures and deadlocks from concurrent writers.
func isRetryableTxError(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case pgerrcode.SerializationFailure, pgerrcode.DeadlockDetected:
		return true
	}
	return false
}

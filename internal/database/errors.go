package database

import (
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

var (
	// ErrNotFound indicates the referenced entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates a uniqueness violation on create, or a refusal
	// to delete an entity that still has dependents.
	ErrConflict = errors.New("conflict")
)

// Postgres error codes we translate into sentinels. Uniqueness and
// referential integrity are enforced by the backend, never pre-checked,
// so these are the only race-free signals for Conflict/NotFound on writes.
const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

// translateError maps driver-level errors onto the package sentinels.
// Foreign key violations become ErrNotFound: a write referenced a row
// that is not there.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqUniqueViolation:
			return ErrConflict
		case pqForeignKeyViolation:
			return ErrNotFound
		}
	}
	return err
}

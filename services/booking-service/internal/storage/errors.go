package storage

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// IsConflict reports whether err is a unique or exclusion constraint
// violation, i.e. a concurrent writer already took the slot.
func IsConflict(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "23505" || pgErr.Code == "23P01"
}

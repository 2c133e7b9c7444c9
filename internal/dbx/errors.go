package dbx

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// sqlStateInvalidText is raised when a parameter cannot be cast to the
// column type, e.g. a malformed UUID compared with a UUID key.
const sqlStateInvalidText = "22P02"

// IsInvalidInput reports whether err is a PostgreSQL invalid text
// representation error. A key that cannot be parsed cannot match any row.
func IsInvalidInput(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == sqlStateInvalidText
}

package errors

import (
	stdErrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// ErrorDump renders driver-level postgres details for log output. Returns the
// plain error string for anything that is not a postgres driver error.
func ErrorDump(err error) string {
	if err == nil {
		return ""
	}

	var pgErr *pgconn.PgError
	if stdErrors.As(err, &pgErr) {
		return fmt.Sprintf(
			"pg error code=%s message=%q detail=%q constraint=%q table=%q",
			pgErr.Code, pgErr.Message, pgErr.Detail, pgErr.ConstraintName, pgErr.TableName,
		)
	}

	var pqErr *pq.Error
	if stdErrors.As(err, &pqErr) {
		return fmt.Sprintf(
			"pq error code=%s message=%q detail=%q constraint=%q table=%q",
			pqErr.Code, pqErr.Message, pqErr.Detail, pqErr.Constraint, pqErr.Table,
		)
	}

	return err.Error()
}

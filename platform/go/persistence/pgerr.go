package persistence

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// Postgres error codes we translate into domain sentinels.
const (
	uniqueViolationCode = "23505"
	fkViolationCode     = "23503"
)

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == fkViolationCode
}

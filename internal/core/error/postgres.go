package errx

import (
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5"
)

const (
	// PostgresErrorMessage describes Postgres related failures.
	PostgresErrorMessage = "database operation failed"
	// PostgresNotFoundMessage is used when a query returns no rows.
	PostgresNotFoundMessage = "record not found"
)

// WrapPostgres maps pgx errors to the unified Error type.
func WrapPostgres(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return New(err, http.StatusNotFound, PostgresNotFoundMessage)
	}

	return New(err, http.StatusBadGateway, PostgresErrorMessage)
}

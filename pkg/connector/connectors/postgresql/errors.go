package postgresql

import (
	stderrors "errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ajitpratap0/opgate/pkg/connector/base"
	"github.com/ajitpratap0/opgate/pkg/errors"
)

var fallback = base.NewErrorHandler()

// classify maps server error classes onto error types. pgx.ErrNoRows is left
// unwrapped in the chain so callers can still test for it.
func classify(err error, message string) error {
	if err == nil {
		return nil
	}
	if stderrors.Is(err, pgx.ErrNoRows) {
		return errors.Wrap(err, errors.ErrorTypeNotFound, message)
	}

	var pgErr *pgconn.PgError
	if !stderrors.As(err, &pgErr) {
		return fallback.Classify(err, message)
	}

	typed := errors.Wrap(err, errorTypeForCode(pgErr.Code), message)
	typed.WithDetail("sqlstate", pgErr.Code)
	if pgErr.TableName != "" {
		typed.WithDetail("table", pgErr.TableName)
	}
	return typed
}

func errorTypeForCode(code string) errors.ErrorType {
	switch {
	case code == "23505":
		return errors.ErrorTypeConflict
	case code == "42P01" || code == "42703":
		return errors.ErrorTypeNotFound
	case code == "57014":
		return errors.ErrorTypeTimeout
	case strings.HasPrefix(code, "28"):
		return errors.ErrorTypeAuthentication
	case strings.HasPrefix(code, "08") || strings.HasPrefix(code, "57P"):
		return errors.ErrorTypeConnection
	case strings.HasPrefix(code, "22") || strings.HasPrefix(code, "23"):
		return errors.ErrorTypeValidation
	}
	return errors.ErrorTypeQuery
}

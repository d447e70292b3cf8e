package errors

import (
	"context"
	"errors"
	"regexp"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var keyDetail = regexp.MustCompile(`Key \(([^)]+)\)=`)

// MapDBError categorizes a ledger database failure. Errors that are not recognized
// are returned unchanged.
func MapDBError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return Wrap(err, ErrCodeTimeout, "ledger query timed out")
	case errors.Is(err, context.Canceled):
		return Wrap(err, ErrCodeCanceled, "ledger query canceled")
	case errors.Is(err, pgx.ErrNoRows):
		return Wrap(err, ErrCodeNotFound, "no ledger row")
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return mapPgError(pgErr)
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return Wrap(err, ErrCodeUnavailable, "ledger database unreachable")
	}
	return err
}

func mapPgError(pgErr *pgconn.PgError) error {
	code := pgErr.Code
	switch {
	case code == pgerrcode.UniqueViolation:
		return &AppError{Code: ErrCodeConflict, Message: "duplicate ledger row", Field: conflictColumn(pgErr), Cause: pgErr}
	case code == pgerrcode.SerializationFailure, code == pgerrcode.DeadlockDetected:
		return Wrap(pgErr, ErrCodeConflict, "concurrent ledger update")
	case code == pgerrcode.CheckViolation, code == pgerrcode.NotNullViolation:
		return &AppError{Code: ErrCodeValidation, Message: "rejected by " + tableOrRecord(pgErr.TableName), Field: pgErr.ColumnName, Cause: pgErr}
	case code == pgerrcode.UndefinedTable:
		// Usually means migrations were never applied.
		return Wrap(pgErr, ErrCodeUnavailable, "ledger schema missing; run repodoc-admin migrate")
	case pgerrcode.IsConnectionException(code), code == pgerrcode.AdminShutdown, code == pgerrcode.CannotConnectNow:
		return Wrap(pgErr, ErrCodeUnavailable, "ledger database unreachable")
	default:
		return Wrap(pgErr, ErrCodeInternal, "ledger database error")
	}
}

// conflictColumn prefers the column metadata and falls back to the "Key (col)=(val)" detail.
func conflictColumn(pgErr *pgconn.PgError) string {
	if pgErr.ColumnName != "" {
		return pgErr.ColumnName
	}
	if m := keyDetail.FindStringSubmatch(pgErr.Detail); len(m) == 2 {
		return m[1]
	}
	return ""
}

func tableOrRecord(table string) string {
	if table == "" {
		return "record"
	}
	return table
}

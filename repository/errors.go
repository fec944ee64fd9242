package repository

import (
	"context"
	"database/sql"
	stderrors "errors"
	"net/http"
	"regexp"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun/driver/pgdriver"
)

const (
	TextCodeRecordNotFound      = "RECORD_NOT_FOUND"
	TextCodeDuplicateKey        = "DUPLICATE_KEY"
	TextCodeForeignKeyViolation = "FOREIGN_KEY_VIOLATION"
	TextCodeStorageTimeout      = "STORAGE_TIMEOUT"
)

// postgres SQLSTATE codes
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

var (
	pgKeyDetail     = regexp.MustCompile(`Key \(([^)]+)\)=`)
	sqliteUniqueMsg = regexp.MustCompile(`UNIQUE constraint failed: ([^\s,]+)`)
)

// NewRecordNotFound returns a fresh not found error
func NewRecordNotFound() *goerrors.Error {
	return goerrors.New("record not found", goerrors.CategoryNotFound).
		WithTextCode(TextCodeRecordNotFound).
		WithCode(goerrors.CodeNotFound)
}

// IsRecordNotFound reports whether err means the row does not exist
func IsRecordNotFound(err error) bool {
	if err == nil {
		return false
	}
	if stderrors.Is(err, sql.ErrNoRows) {
		return true
	}
	return goerrors.IsNotFound(err)
}

// NewDuplicateKey wraps a unique constraint violation on column.
func NewDuplicateKey(column string, source error) *goerrors.Error {
	return goerrors.Wrap(source, goerrors.CategoryConflict, "duplicate key").
		WithTextCode(TextCodeDuplicateKey).
		WithCode(goerrors.CodeConflict).
		WithMetadata(map[string]any{"column": column})
}

// IsDuplicateKey reports whether err is a unique violation and on which
// column. The column is empty when the driver did not tell us.
func IsDuplicateKey(err error) (string, bool) {
	var e *goerrors.Error
	if !goerrors.As(err, &e) || e.TextCode != TextCodeDuplicateKey {
		return "", false
	}
	column, _ := e.Metadata["column"].(string)
	return column, true
}

// IsDuplicateKeyOn reports a unique violation on the given column
func IsDuplicateKeyOn(err error, column string) bool {
	col, ok := IsDuplicateKey(err)
	return ok && col == column
}

// IsForeignKeyViolation reports whether a write was rejected by a FK
func IsForeignKeyViolation(err error) bool {
	var e *goerrors.Error
	return goerrors.As(err, &e) && e.TextCode == TextCodeForeignKeyViolation
}

// IsTimeout reports storage errors caused by an expired deadline
func IsTimeout(err error) bool {
	var e *goerrors.RetryableError
	if goerrors.As(err, &e) && e.BaseError != nil {
		return e.BaseError.TextCode == TextCodeStorageTimeout
	}
	return false
}

// MapError translates driver errors into categorized errors. It is safe to
// call with errors that were already mapped.
func MapError(err error) error {
	if err == nil {
		return nil
	}

	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return err
	}

	var retry *goerrors.RetryableError
	if goerrors.As(err, &retry) {
		return err
	}

	if stderrors.Is(err, sql.ErrNoRows) {
		return NewRecordNotFound()
	}

	if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(err, context.Canceled) {
		return goerrors.WrapRetryable(err, goerrors.CategoryOperation, "storage operation timed out").
			WithTextCode(TextCodeStorageTimeout).
			WithCode(http.StatusServiceUnavailable)
	}

	var pgErr pgdriver.Error
	if stderrors.As(err, &pgErr) {
		switch pgErr.Field('C') {
		case pgUniqueViolation:
			return NewDuplicateKey(pgColumn(pgErr), err)
		case pgForeignKeyViolation:
			return newForeignKeyViolation(err)
		}
	}

	msg := err.Error()
	if m := sqliteUniqueMsg.FindStringSubmatch(msg); m != nil {
		column := m[1]
		if i := strings.LastIndex(column, "."); i >= 0 {
			column = column[i+1:]
		}
		return NewDuplicateKey(column, err)
	}

	if strings.Contains(msg, "FOREIGN KEY constraint failed") {
		return newForeignKeyViolation(err)
	}

	return err
}

func newForeignKeyViolation(source error) *goerrors.Error {
	return goerrors.Wrap(source, goerrors.CategoryConflict, "record is referenced by other records").
		WithTextCode(TextCodeForeignKeyViolation).
		WithCode(goerrors.CodeConflict)
}

func pgColumn(pgErr pgdriver.Error) string {
	if m := pgKeyDetail.FindStringSubmatch(pgErr.Field('D')); m != nil {
		return strings.TrimSpace(m[1])
	}
	return pgErr.Field('c')
}

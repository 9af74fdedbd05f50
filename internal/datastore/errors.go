// Package datastore provides error handling helpers for database operations
package datastore

import (
	"fmt"
	"strings"

	sqldriver "github.com/go-sql-driver/mysql"
	"github.com/mattn/go-sqlite3"
	"github.com/tphakala/fruitcount-go/internal/errors"
)

// MySQL server error numbers used for classification.
const (
	mysqlErrDuplicateEntry  = 1062
	mysqlErrLockDeadlock    = 1213
	mysqlErrLockWaitTimeout = 1205
)

// dbError creates a properly categorized database error with context
func dbError(err error, operation string, context ...any) error {
	builder := errors.New(err).
		Component("datastore").
		Category(errors.CategoryDatabase).
		Context("operation", operation).
		Context("error_type", classifyError(err))

	for i := 0; i < len(context)-1; i += 2 {
		if key, ok := context[i].(string); ok {
			builder = builder.Context(key, context[i+1])
		}
	}

	return builder.Build()
}

// validationError creates a validation error for bad inputs or bad stored values
func validationError(message, field string, value any) error {
	return errors.Newf("%s", message).
		Component("datastore").
		Category(errors.CategoryValidation).
		Context("field", field).
		Context("value", fmt.Sprintf("%v", value)).
		Build()
}

// notFoundError creates a not found error (low priority, expected during lookups)
func notFoundError(resource string, id uint) error {
	return errors.Newf("%s not found", resource).
		Component("datastore").
		Category(errors.CategoryNotFound).
		Priority(errors.PriorityLow).
		Context("resource", resource).
		Context("id", id).
		Build()
}

// criticalError creates a critical database error, used for failures that
// leave the store unusable such as open or migration errors.
func criticalError(err error, operation, reason string, context ...any) error {
	builder := errors.New(err).
		Component("datastore").
		Category(errors.CategoryDatabase).
		Priority(errors.PriorityCritical).
		Context("operation", operation).
		Context("critical_reason", reason)

	for i := 0; i < len(context)-1; i += 2 {
		if key, ok := context[i].(string); ok {
			builder = builder.Context(key, context[i+1])
		}
	}

	return builder.Build()
}

// classifyError maps a database error to a stable label for metrics and
// error context. Native driver error types are checked first, string
// matching is the fallback for errors that arrive already wrapped in text.
func classifyError(err error) string {
	if err == nil {
		return "none"
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code {
		case sqlite3.ErrBusy, sqlite3.ErrLocked:
			return "database_locked"
		case sqlite3.ErrConstraint:
			return "constraint_violation"
		case sqlite3.ErrCorrupt, sqlite3.ErrNotADB:
			return "corruption"
		case sqlite3.ErrFull:
			return "disk_full"
		}
	}

	var mysqlErr *sqldriver.MySQLError
	if errors.As(err, &mysqlErr) {
		switch mysqlErr.Number {
		case mysqlErrDuplicateEntry:
			return "constraint_violation"
		case mysqlErrLockDeadlock:
			return "deadlock"
		case mysqlErrLockWaitTimeout:
			return "timeout"
		}
	}

	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "unique constraint") || strings.Contains(errStr, "duplicate key"):
		return "constraint_violation"
	case strings.Contains(errStr, "deadlock"):
		return "deadlock"
	case strings.Contains(errStr, "database is locked"):
		return "database_locked"
	case strings.Contains(errStr, "connection"):
		return "connection_error"
	case strings.Contains(errStr, "timeout"):
		return "timeout"
	case strings.Contains(errStr, "corrupt") || strings.Contains(errStr, "malformed"):
		return "corruption"
	case strings.Contains(errStr, "disk full") || strings.Contains(errStr, "no space"):
		return "disk_full"
	default:
		return "other"
	}
}

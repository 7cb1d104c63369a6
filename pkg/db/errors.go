package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

const pgUniqueViolation = "23505"

// pgFault is the driver-neutral view of a Postgres error.
type pgFault struct {
	Code, Constraint, Table, Column, Detail, Message string
}

// asPgFault extracts server-side detail from either the pgx or the lib/pq driver.
func asPgFault(err error) (pgFault, bool) {
	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return pgFault{pgxErr.Code, pgxErr.ConstraintName, pgxErr.TableName, pgxErr.ColumnName, pgxErr.Detail, pgxErr.Message}, true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pgFault{string(pqErr.Code), pqErr.Constraint, pqErr.Table, pqErr.Column, pqErr.Detail, pqErr.Message}, true
	}
	return pgFault{}, false
}

// IsUniqueViolation matches unique-key failures from Postgres and SQLite.
// A non-empty constraint must also match the violated constraint.
func IsUniqueViolation(err error, constraint string) bool {
	if err == nil {
		return false
	}
	if fault, ok := asPgFault(err); ok {
		return fault.Code == pgUniqueViolation && (constraint == "" || fault.Constraint == constraint)
	}
	msg := err.Error()
	if constraint != "" {
		return strings.Contains(msg, constraint)
	}
	return errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}

func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// Diagnose returns log fields describing a Postgres error in err's chain, or nil.
func Diagnose(err error) map[string]any {
	fault, ok := asPgFault(err)
	if !ok {
		return nil
	}
	fields := map[string]any{"pg_code": fault.Code}
	for key, val := range map[string]string{
		"pg_constraint": fault.Constraint,
		"pg_table":      fault.Table,
		"pg_column":     fault.Column,
		"pg_detail":     fault.Detail,
		"pg_message":    fault.Message,
	} {
		if val != "" {
			fields[key] = val
		}
	}
	return fields
}

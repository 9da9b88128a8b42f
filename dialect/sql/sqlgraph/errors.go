// Package sqlgraph classifies driver errors raised while flushing entities.
package sqlgraph

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"github.com/syssam/sqlprov"
)

// ConstraintKind names the violated constraint class.
type ConstraintKind string

// Constraint kinds.
const (
	UniqueConstraint     ConstraintKind = "unique"
	ForeignKeyConstraint ConstraintKind = "foreign key"
	CheckConstraint      ConstraintKind = "check"
	NotNullConstraint    ConstraintKind = "not null"
)

// PostgreSQL SQLSTATE codes for constraint violations (Class 23).
const (
	pgNotNullViolation    = "23502"
	pgForeignKeyViolation = "23503"
	pgUniqueViolation     = "23505"
	pgCheckViolation      = "23514"
)

// MySQL error numbers for constraint violations.
const (
	mysqlBadNull                = 1048
	mysqlDuplicateEntry         = 1062
	mysqlForeignKeyParent       = 1451
	mysqlForeignKeyChild        = 1452
	mysqlCheckConstraintViolate = 3819
)

// mssqlMessages are the constraint failure texts of SQL Server.
var mssqlMessages = map[ConstraintKind][]string{
	UniqueConstraint:     {"Cannot insert duplicate key", "Violation of UNIQUE KEY constraint", "Violation of PRIMARY KEY constraint"},
	ForeignKeyConstraint: {"conflicted with the FOREIGN KEY constraint", "conflicted with the REFERENCE constraint"},
	CheckConstraint:      {"conflicted with the CHECK constraint"},
	NotNullConstraint:    {"Cannot insert the value NULL into column"},
}

// sqliteMessages are the constraint failure texts of SQLite drivers.
var sqliteMessages = map[ConstraintKind][]string{
	UniqueConstraint:     {"UNIQUE constraint failed"},
	ForeignKeyConstraint: {"FOREIGN KEY constraint failed"},
	CheckConstraint:      {"CHECK constraint failed"},
	NotNullConstraint:    {"NOT NULL constraint failed"},
}

// Kind returns the constraint class of err, if any.
func Kind(err error) (ConstraintKind, bool) {
	if err == nil {
		return "", false
	}
	if code, ok := pgCode(err); ok {
		switch code {
		case pgUniqueViolation:
			return UniqueConstraint, true
		case pgForeignKeyViolation:
			return ForeignKeyConstraint, true
		case pgCheckViolation:
			return CheckConstraint, true
		case pgNotNullViolation:
			return NotNullConstraint, true
		}
		return "", false
	}
	if e := new(mysql.MySQLError); errors.As(err, &e) {
		switch e.Number {
		case mysqlDuplicateEntry:
			return UniqueConstraint, true
		case mysqlForeignKeyParent, mysqlForeignKeyChild:
			return ForeignKeyConstraint, true
		case mysqlCheckConstraintViolate:
			return CheckConstraint, true
		case mysqlBadNull:
			return NotNullConstraint, true
		}
		return "", false
	}
	msg := err.Error()
	for _, table := range []map[ConstraintKind][]string{sqliteMessages, mssqlMessages} {
		for _, kind := range []ConstraintKind{UniqueConstraint, ForeignKeyConstraint, CheckConstraint, NotNullConstraint} {
			if containsAny(msg, table[kind]...) {
				return kind, true
			}
		}
	}
	return "", false
}

// pgCode extracts the SQLSTATE of a lib/pq or pgx error.
func pgCode(err error) (string, bool) {
	if e := new(pq.Error); errors.As(err, &e) {
		return string(e.Code), true
	}
	if e := new(pgconn.PgError); errors.As(err, &e) {
		return e.Code, true
	}
	return "", false
}

// IsConstraintError returns true if the error resulted from a database constraint violation.
func IsConstraintError(err error) bool {
	if sqlprov.IsConstraintError(err) {
		return true
	}
	_, ok := Kind(err)
	return ok
}

// IsUniqueConstraintError reports if the error resulted from a DB uniqueness constraint violation.
func IsUniqueConstraintError(err error) bool {
	k, ok := Kind(err)
	return ok && k == UniqueConstraint
}

// IsForeignKeyConstraintError reports if the error resulted from a database foreign-key constraint violation.
func IsForeignKeyConstraintError(err error) bool {
	k, ok := Kind(err)
	return ok && k == ForeignKeyConstraint
}

// IsCheckConstraintError reports if the error resulted from a database check constraint violation.
func IsCheckConstraintError(err error) bool {
	k, ok := Kind(err)
	return ok && k == CheckConstraint
}

// Wrap converts a constraint violation into a sqlprov.ConstraintError and
// returns any other error unchanged. The original error stays reachable
// through errors.Unwrap.
func Wrap(err error) error {
	if err == nil || sqlprov.IsConstraintError(err) {
		return err
	}
	if k, ok := Kind(err); ok {
		return sqlprov.NewConstraintError(string(k), err)
	}
	return err
}

// containsAny returns true if s contains any of the substrings.
func containsAny(s string, substrings ...string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

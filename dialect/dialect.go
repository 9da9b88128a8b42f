// Package dialect defines the database dialect names and the execution
// contract the flush executor runs statements through.
//
// # Dialect Constants
//
//	dialect.Postgres = "postgres"
//	dialect.MySQL    = "mysql"
//	dialect.SQLite   = "sqlite3"
//	dialect.MSSQL    = "mssql"
//
// # Driver Interface
//
// A Driver executes generated statements:
//
//	type Driver interface {
//	    Exec(ctx context.Context, query string, args, v any) error
//	    Query(ctx context.Context, query string, args, v any) error
//	    Tx(ctx context.Context) (Tx, error)
//	    Close() error
//	    Dialect() string
//	}
//
// Drivers that can pin a single connection implement Sessioner. The flush
// executor prefers a Session so that the transaction of one batch starts on a
// connection that is idle and is released on every exit path.
package dialect

import (
	"context"
	"database/sql/driver"
)

// Dialect names for external usage.
const (
	MySQL    = "mysql"
	SQLite   = "sqlite3"
	Postgres = "postgres"
	MSSQL    = "mssql"
)

// ExecQuerier wraps the two database operations.
type ExecQuerier interface {
	// Exec executes a query that does not return records. For example, in SQL, INSERT or UPDATE.
	// It scans the result into the pointer v. For SQL drivers, it is dialect/sql.Result.
	Exec(ctx context.Context, query string, args, v any) error
	// Query executes a query that returns rows, typically a SELECT in SQL.
	// It scans the result into the pointer v. For SQL drivers, it is *dialect/sql.Rows.
	Query(ctx context.Context, query string, args, v any) error
}

// Driver is the interface that wraps all necessary operations for the flush executor.
type Driver interface {
	ExecQuerier
	// Tx starts and returns a new transaction.
	Tx(context.Context) (Tx, error)
	// Close closes the underlying connection.
	Close() error
	// Dialect returns the dialect name of the driver.
	Dialect() string
}

// Tx wraps the Exec and Query operations in transaction.
type Tx interface {
	ExecQuerier
	driver.Tx
}

// Session is a single dedicated connection. Closing it returns the
// connection to its pool.
type Session interface {
	ExecQuerier
	// Tx starts a transaction bound to the session connection.
	Tx(context.Context) (Tx, error)
	// Close releases the session connection.
	Close() error
}

// Sessioner is implemented by drivers that can hand out a dedicated Session.
type Sessioner interface {
	Session(context.Context) (Session, error)
}

// Supported returns true if the dialect name is known.
func Supported(name string) bool {
	switch name {
	case MySQL, SQLite, Postgres, MSSQL:
		return true
	}
	return false
}

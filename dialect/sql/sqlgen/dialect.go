// Package sqlgen renders query.Query values and entity mutations into
// dialect-specific SQL text with an ordered parameter list.
//
// Rendering is built from pure fragments: every renderer returns a Frag
// holding its text and the parameters it binds. Placeholders are numbered
// only when a statement is finalized, so the parameter order always equals
// the textual placeholder order.
//
// # Dialects
//
// Each target implements Dialect. Canonical operations a dialect does not
// render itself fall back to the shared ANSI renderer; when that has no rule
// either, generation fails with an *sqlprov.UnsupportedError naming the node.
//
//	d, err := sqlgen.NewDialect(dialect.MSSQL, 10)
//	g := sqlgen.New(d, cache)
//	stmt, err := g.Select(q)
package sqlgen

import (
	"fmt"

	"github.com/syssam/sqlprov/dialect"
	entsql "github.com/syssam/sqlprov/dialect/sql"
	"github.com/syssam/sqlprov/query"
	"github.com/syssam/sqlprov/schema"
)

// Returning is the way a dialect reports generated keys of an INSERT.
type Returning uint8

// Returning styles.
const (
	NoReturning     Returning = iota
	ReturningClause           // INSERT ... RETURNING cols
	OutputClause              // INSERT ... OUTPUT INSERTED.cols VALUES ...
)

// Dialect holds the rendering rules of one database.
type Dialect interface {
	// Name returns the dialect name, e.g. dialect.MSSQL.
	Name() string
	// Version returns the major server version the dialect targets, 0 for latest.
	Version() int
	// Quote quotes an identifier.
	Quote(ident string) string
	// Placeholder returns the n-th (1-based) parameter placeholder.
	Placeholder(n int) string
	// NamedParams reports whether placeholders are named.
	NamedParams() bool

	// NativeOffset reports whether the dialect can skip rows natively.
	NativeOffset() bool
	// TopN reports whether a take without skip renders as TOP (n).
	TopN() bool
	// Limit returns the paging clause appended after ORDER BY.
	Limit(p query.Paging, ordered bool) string

	// DeleteAlias reports whether DELETE can name its target by alias and
	// join other tables (DELETE a FROM t AS a JOIN ...).
	DeleteAlias() bool
	// Returning returns how inserted keys are reported.
	Returning() Returning
	// EmptyInsert returns the INSERT tail used when no column is written.
	EmptyInsert() string

	// RenderOp renders a canonical operation. args[0] is the target.
	// It returns false for kinds left to the ANSI renderer.
	RenderOp(kind query.OpKind, args []Frag) (Frag, bool)
	// RenderAgg renders an aggregate, or returns false.
	RenderAgg(kind query.AggKind, arg Frag) (Frag, bool)
	// CastType returns the type name used in CAST for t.
	CastType(t schema.DataType) (string, bool)
}

// NewDialect returns the dialect with the given name. Driver aliases such as
// "pgx" or "sqlserver" are accepted. version selects the server major
// version for version-aware dialects; 0 means latest.
func NewDialect(name string, version int) (Dialect, error) {
	switch n := entsql.Normalize(name); n {
	case dialect.Postgres:
		return Postgres{}, nil
	case dialect.MySQL:
		return MySQL{}, nil
	case dialect.SQLite:
		return SQLite{}, nil
	case dialect.MSSQL:
		return MSSQL{ServerVersion: version}, nil
	default:
		return nil, fmt.Errorf("sqlgen: unsupported dialect %q", name)
	}
}

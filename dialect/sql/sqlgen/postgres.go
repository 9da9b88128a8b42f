package sqlgen

import (
	"strconv"

	"github.com/syssam/sqlprov/dialect"
	"github.com/syssam/sqlprov/query"
	"github.com/syssam/sqlprov/schema"
)

// Postgres renders PostgreSQL.
type Postgres struct{}

func (Postgres) Name() string { return dialect.Postgres }
func (Postgres) Version() int { return 0 }
func (Postgres) Quote(ident string) string { return quoteWith(ident, '"', '"') }
func (Postgres) Placeholder(n int) string { return "$" + strconv.Itoa(n) }
func (Postgres) NamedParams() bool { return false }
func (Postgres) NativeOffset() bool { return true }
func (Postgres) TopN() bool { return false }
func (Postgres) DeleteAlias() bool { return false }
func (Postgres) Returning() Returning { return ReturningClause }
func (Postgres) EmptyInsert() string { return "DEFAULT VALUES" }
func (Postgres) Limit(p query.Paging, _ bool) string { return limitOffset(p, "") }

// RenderOp implements Dialect.
func (Postgres) RenderOp(kind query.OpKind, a []Frag) (Frag, bool) {
	switch kind {
	case query.OpIndexOfFrom:
		return Tmpl("(CASE WHEN STRPOS(SUBSTRING({0} FROM {2} + 1), {1}) = 0 THEN -1 ELSE STRPOS(SUBSTRING({0} FROM {2} + 1), {1}) + {2} - 1 END)", a...), true
	case query.OpAddYears:
		return Tmpl("({0} + {1} * INTERVAL '1 year')", a...), true
	case query.OpAddMonths:
		return Tmpl("({0} + {1} * INTERVAL '1 month')", a...), true
	case query.OpAddDays:
		return Tmpl("({0} + {1} * INTERVAL '1 day')", a...), true
	case query.OpAddHours:
		return Tmpl("({0} + {1} * INTERVAL '1 hour')", a...), true
	case query.OpAddMinutes:
		return Tmpl("({0} + {1} * INTERVAL '1 minute')", a...), true
	case query.OpAddSeconds:
		return Tmpl("({0} + {1} * INTERVAL '1 second')", a...), true
	case query.OpDiffDays:
		return Tmpl("(CAST({1} AS DATE) - CAST({0} AS DATE))", a...), true
	case query.OpDiffSeconds:
		return Tmpl("CAST(EXTRACT(EPOCH FROM ({1} - {0})) AS BIGINT)", a...), true
	case query.OpSecond:
		return Tmpl("FLOOR(EXTRACT(SECOND FROM {0}))", a...), true
	case query.OpModulo:
		return Tmpl("MOD({0}, {1})", a...), true
	case query.OpRound:
		// ROUND(double precision, int) does not exist.
		return Tmpl("ROUND(CAST({0} AS NUMERIC), {1})", a...), true
	}
	return Frag{}, false
}

// RenderAgg implements Dialect.
func (Postgres) RenderAgg(kind query.AggKind, arg Frag) (Frag, bool) {
	switch kind {
	case query.AggStdDev:
		return Tmpl("STDDEV_SAMP({0})", arg), true
	case query.AggVariance:
		return Tmpl("VAR_SAMP({0})", arg), true
	}
	return Frag{}, false
}

// CastType implements Dialect.
func (Postgres) CastType(t schema.DataType) (string, bool) {
	switch t {
	case schema.String:
		return "TEXT", true
	case schema.Int:
		return "INTEGER", true
	case schema.Int64:
		return "BIGINT", true
	case schema.Float:
		return "DOUBLE PRECISION", true
	case schema.Decimal:
		return "NUMERIC", true
	case schema.Bool:
		return "BOOLEAN", true
	case schema.Time:
		return "TIMESTAMP", true
	case schema.Date:
		return "DATE", true
	case schema.Bytes:
		return "BYTEA", true
	case schema.UUID:
		return "UUID", true
	case schema.JSON:
		return "JSONB", true
	}
	return "", false
}

package sqlgen

import (
	"github.com/syssam/sqlprov/dialect"
	"github.com/syssam/sqlprov/query"
	"github.com/syssam/sqlprov/schema"
)

// SQLite renders SQLite. It has no STDDEV or VARIANCE aggregates.
type SQLite struct{}

func (SQLite) Name() string { return dialect.SQLite }
func (SQLite) Version() int { return 0 }
func (SQLite) Quote(ident string) string { return quoteWith(ident, '"', '"') }
func (SQLite) Placeholder(int) string { return "?" }
func (SQLite) NamedParams() bool { return false }
func (SQLite) NativeOffset() bool { return true }
func (SQLite) TopN() bool { return false }
func (SQLite) DeleteAlias() bool { return false }
func (SQLite) Returning() Returning { return NoReturning }
func (SQLite) EmptyInsert() string { return "DEFAULT VALUES" }
func (SQLite) Limit(p query.Paging, _ bool) string { return limitOffset(p, "-1") }

// RenderOp implements Dialect.
func (SQLite) RenderOp(kind query.OpKind, a []Frag) (Frag, bool) {
	switch kind {
	case query.OpSubstring:
		return Tmpl("SUBSTR({0}, {1} + 1)", a...), true
	case query.OpSubstringLen:
		return Tmpl("SUBSTR({0}, {1} + 1, {2})", a...), true
	case query.OpLength:
		return Tmpl("LENGTH({0})", a...), true
	case query.OpIndexOf:
		return Tmpl("(INSTR({0}, {1}) - 1)", a...), true
	case query.OpIndexOfFrom:
		return Tmpl("(CASE WHEN INSTR(SUBSTR({0}, {2} + 1), {1}) = 0 THEN -1 ELSE INSTR(SUBSTR({0}, {2} + 1), {1}) + {2} - 1 END)", a...), true
	case query.OpYear:
		return Tmpl("CAST(strftime('%Y', {0}) AS INTEGER)", a...), true
	case query.OpMonth:
		return Tmpl("CAST(strftime('%m', {0}) AS INTEGER)", a...), true
	case query.OpDay:
		return Tmpl("CAST(strftime('%d', {0}) AS INTEGER)", a...), true
	case query.OpHour:
		return Tmpl("CAST(strftime('%H', {0}) AS INTEGER)", a...), true
	case query.OpMinute:
		return Tmpl("CAST(strftime('%M', {0}) AS INTEGER)", a...), true
	case query.OpSecond:
		return Tmpl("CAST(strftime('%S', {0}) AS INTEGER)", a...), true
	case query.OpDate:
		return Tmpl("date({0})", a...), true
	case query.OpAddYears:
		return Tmpl("datetime({0}, printf('%+d years', {1}))", a...), true
	case query.OpAddMonths:
		return Tmpl("datetime({0}, printf('%+d months', {1}))", a...), true
	case query.OpAddDays:
		return Tmpl("datetime({0}, printf('%+d days', {1}))", a...), true
	case query.OpAddHours:
		return Tmpl("datetime({0}, printf('%+d hours', {1}))", a...), true
	case query.OpAddMinutes:
		return Tmpl("datetime({0}, printf('%+d minutes', {1}))", a...), true
	case query.OpAddSeconds:
		return Tmpl("datetime({0}, printf('%+d seconds', {1}))", a...), true
	case query.OpDiffDays:
		return Tmpl("CAST(julianday({1}) - julianday({0}) AS INTEGER)", a...), true
	case query.OpDiffSeconds:
		return Tmpl("CAST((julianday({1}) - julianday({0})) * 86400 AS INTEGER)", a...), true
	case query.OpLeast:
		return Tmpl("MIN({0}, {1})", a...), true
	case query.OpGreatest:
		return Tmpl("MAX({0}, {1})", a...), true
	}
	return Frag{}, false
}

// RenderAgg implements Dialect.
func (SQLite) RenderAgg(query.AggKind, Frag) (Frag, bool) {
	return Frag{}, false
}

// CastType implements Dialect.
func (SQLite) CastType(t schema.DataType) (string, bool) {
	switch t {
	case schema.String, schema.Time, schema.Date, schema.UUID, schema.JSON:
		return "TEXT", true
	case schema.Int, schema.Int64, schema.Bool:
		return "INTEGER", true
	case schema.Float:
		return "REAL", true
	case schema.Decimal:
		return "NUMERIC", true
	case schema.Bytes:
		return "BLOB", true
	}
	return "", false
}

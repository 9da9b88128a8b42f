package sqlgen

import (
	"github.com/syssam/sqlprov/dialect"
	"github.com/syssam/sqlprov/query"
	"github.com/syssam/sqlprov/schema"
)

// mysqlMaxRows is the LIMIT MySQL needs for an OFFSET without take.
const mysqlMaxRows = "18446744073709551615"

// MySQL renders MySQL and MariaDB.
type MySQL struct{}

func (MySQL) Name() string { return dialect.MySQL }
func (MySQL) Version() int { return 0 }
func (MySQL) Quote(ident string) string { return quoteWith(ident, '`', '`') }
func (MySQL) Placeholder(int) string { return "?" }
func (MySQL) NamedParams() bool { return false }
func (MySQL) NativeOffset() bool { return true }
func (MySQL) TopN() bool { return false }
func (MySQL) DeleteAlias() bool { return true }
func (MySQL) Returning() Returning { return NoReturning }
func (MySQL) EmptyInsert() string { return "() VALUES ()" }
func (MySQL) Limit(p query.Paging, _ bool) string { return limitOffset(p, mysqlMaxRows) }

// RenderOp implements Dialect.
func (MySQL) RenderOp(kind query.OpKind, a []Frag) (Frag, bool) {
	switch kind {
	case query.OpSubstring:
		return Tmpl("SUBSTRING({0}, {1} + 1)", a...), true
	case query.OpSubstringLen:
		return Tmpl("SUBSTRING({0}, {1} + 1, {2})", a...), true
	case query.OpIndexOf:
		return Tmpl("(LOCATE({1}, {0}) - 1)", a...), true
	case query.OpIndexOfFrom:
		return Tmpl("(LOCATE({1}, {0}, {2} + 1) - 1)", a...), true
	case query.OpConcat:
		return Tmpl("CONCAT({0}, {1})", a...), true
	case query.OpDate:
		return Tmpl("DATE({0})", a...), true
	case query.OpAddYears:
		return Tmpl("DATE_ADD({0}, INTERVAL {1} YEAR)", a...), true
	case query.OpAddMonths:
		return Tmpl("DATE_ADD({0}, INTERVAL {1} MONTH)", a...), true
	case query.OpAddDays:
		return Tmpl("DATE_ADD({0}, INTERVAL {1} DAY)", a...), true
	case query.OpAddHours:
		return Tmpl("DATE_ADD({0}, INTERVAL {1} HOUR)", a...), true
	case query.OpAddMinutes:
		return Tmpl("DATE_ADD({0}, INTERVAL {1} MINUTE)", a...), true
	case query.OpAddSeconds:
		return Tmpl("DATE_ADD({0}, INTERVAL {1} SECOND)", a...), true
	case query.OpDiffDays:
		return Tmpl("DATEDIFF({1}, {0})", a...), true
	case query.OpDiffSeconds:
		return Tmpl("TIMESTAMPDIFF(SECOND, {0}, {1})", a...), true
	}
	return Frag{}, false
}

// RenderAgg implements Dialect.
func (MySQL) RenderAgg(kind query.AggKind, arg Frag) (Frag, bool) {
	switch kind {
	case query.AggStdDev:
		return Tmpl("STDDEV_SAMP({0})", arg), true
	case query.AggVariance:
		return Tmpl("VAR_SAMP({0})", arg), true
	}
	return Frag{}, false
}

// CastType implements Dialect. MySQL accepts only a few CAST targets.
func (MySQL) CastType(t schema.DataType) (string, bool) {
	switch t {
	case schema.String, schema.UUID:
		return "CHAR", true
	case schema.Int, schema.Int64, schema.Bool:
		return "SIGNED", true
	case schema.Float:
		return "DOUBLE", true
	case schema.Decimal:
		return "DECIMAL(65, 30)", true
	case schema.Time:
		return "DATETIME", true
	case schema.Date:
		return "DATE", true
	case schema.Bytes:
		return "BINARY", true
	case schema.JSON:
		return "JSON", true
	}
	return "", false
}

package sqlgen

import (
	"strconv"
	"strings"

	"github.com/syssam/sqlprov/dialect"
	"github.com/syssam/sqlprov/query"
	"github.com/syssam/sqlprov/schema"
)

// MSSQL renders Microsoft SQL Server. Versions before 11 (SQL Server 2012)
// have no OFFSET/FETCH; skipping rows there uses a ROW_NUMBER window.
// Versions before 16 (SQL Server 2022) have no LEAST/GREATEST.
type MSSQL struct {
	ServerVersion int // Major version, 0 for latest
}

func (MSSQL) Name() string { return dialect.MSSQL }
func (d MSSQL) Version() int { return d.ServerVersion }
func (MSSQL) Quote(ident string) string { return quoteWith(ident, '[', ']') }
func (MSSQL) Placeholder(n int) string { return "@p" + strconv.Itoa(n) }
func (MSSQL) NamedParams() bool { return true }
func (d MSSQL) NativeOffset() bool { return d.atLeast(11) }
func (MSSQL) TopN() bool { return true }
func (MSSQL) DeleteAlias() bool { return true }
func (MSSQL) Returning() Returning { return OutputClause }
func (MSSQL) EmptyInsert() string { return "DEFAULT VALUES" }

func (d MSSQL) atLeast(v int) bool {
	return d.ServerVersion == 0 || d.ServerVersion >= v
}

// Limit implements Dialect. Take without skip is rendered as TOP (n) by the
// statement assembler and yields no clause here.
func (d MSSQL) Limit(p query.Paging, ordered bool) string {
	if !p.HasSkip || !d.NativeOffset() {
		return ""
	}
	var b strings.Builder
	if !ordered {
		b.WriteString("ORDER BY (SELECT NULL) ")
	}
	b.WriteString("OFFSET ")
	b.WriteString(strconv.Itoa(p.Skip))
	b.WriteString(" ROWS")
	if p.HasTake {
		b.WriteString(" FETCH NEXT ")
		b.WriteString(strconv.Itoa(p.Take))
		b.WriteString(" ROWS ONLY")
	}
	return b.String()
}

// RenderOp implements Dialect.
func (d MSSQL) RenderOp(kind query.OpKind, a []Frag) (Frag, bool) {
	switch kind {
	case query.OpSubstring:
		return Tmpl("SUBSTRING({0}, {1} + 1, LEN({0}))", a...), true
	case query.OpSubstringLen:
		return Tmpl("SUBSTRING({0}, {1} + 1, {2})", a...), true
	case query.OpTrim:
		return Tmpl("LTRIM(RTRIM({0}))", a...), true
	case query.OpLength:
		return Tmpl("LEN({0})", a...), true
	case query.OpIndexOf:
		return Tmpl("(CHARINDEX({1}, {0}) - 1)", a...), true
	case query.OpIndexOfFrom:
		return Tmpl("(CHARINDEX({1}, {0}, {2} + 1) - 1)", a...), true
	case query.OpConcat:
		return Tmpl("({0} + {1})", a...), true
	case query.OpYear:
		return Tmpl("DATEPART(year, {0})", a...), true
	case query.OpMonth:
		return Tmpl("DATEPART(month, {0})", a...), true
	case query.OpDay:
		return Tmpl("DATEPART(day, {0})", a...), true
	case query.OpHour:
		return Tmpl("DATEPART(hour, {0})", a...), true
	case query.OpMinute:
		return Tmpl("DATEPART(minute, {0})", a...), true
	case query.OpSecond:
		return Tmpl("DATEPART(second, {0})", a...), true
	case query.OpAddYears:
		return Tmpl("DATEADD(year, {1}, {0})", a...), true
	case query.OpAddMonths:
		return Tmpl("DATEADD(month, {1}, {0})", a...), true
	case query.OpAddDays:
		return Tmpl("DATEADD(day, {1}, {0})", a...), true
	case query.OpAddHours:
		return Tmpl("DATEADD(hour, {1}, {0})", a...), true
	case query.OpAddMinutes:
		return Tmpl("DATEADD(minute, {1}, {0})", a...), true
	case query.OpAddSeconds:
		return Tmpl("DATEADD(second, {1}, {0})", a...), true
	case query.OpDiffDays:
		return Tmpl("DATEDIFF(day, {0}, {1})", a...), true
	case query.OpDiffSeconds:
		return Tmpl("DATEDIFF(second, {0}, {1})", a...), true
	case query.OpLeast:
		if !d.atLeast(16) {
			return Tmpl("(CASE WHEN {0} <= {1} THEN {0} ELSE {1} END)", a...), true
		}
	case query.OpGreatest:
		if !d.atLeast(16) {
			return Tmpl("(CASE WHEN {0} >= {1} THEN {0} ELSE {1} END)", a...), true
		}
	case query.OpCoalesce:
		return Tmpl("ISNULL({0}, {1})", a...), true
	}
	return Frag{}, false
}

// RenderAgg implements Dialect.
func (MSSQL) RenderAgg(kind query.AggKind, arg Frag) (Frag, bool) {
	switch kind {
	case query.AggStdDev:
		return Tmpl("STDEV({0})", arg), true
	case query.AggVariance:
		return Tmpl("VAR({0})", arg), true
	}
	return Frag{}, false
}

// CastType implements Dialect.
func (MSSQL) CastType(t schema.DataType) (string, bool) {
	switch t {
	case schema.String, schema.JSON:
		return "NVARCHAR(MAX)", true
	case schema.Int:
		return "INT", true
	case schema.Int64:
		return "BIGINT", true
	case schema.Float:
		return "FLOAT", true
	case schema.Decimal:
		return "DECIMAL(38, 10)", true
	case schema.Bool:
		return "BIT", true
	case schema.Time:
		return "DATETIME2", true
	case schema.Date:
		return "DATE", true
	case schema.Bytes:
		return "VARBINARY(MAX)", true
	case schema.UUID:
		return "UNIQUEIDENTIFIER", true
	}
	return "", false
}

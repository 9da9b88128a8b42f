package sqlgen

import (
	"strconv"
	"strings"

	"github.com/syssam/sqlprov/query"
)

// ansiOp is the shared renderer for canonical operations. Dialects fall back
// to it for every kind they do not render themselves.
func ansiOp(kind query.OpKind, a []Frag) (Frag, bool) {
	switch kind {
	case query.OpReplace:
		return Tmpl("REPLACE({0}, {1}, {2})", a...), true
	case query.OpSubstring:
		return Tmpl("SUBSTRING({0} FROM {1} + 1)", a...), true
	case query.OpSubstringLen:
		return Tmpl("SUBSTRING({0} FROM {1} + 1 FOR {2})", a...), true
	case query.OpTrim:
		return Tmpl("TRIM({0})", a...), true
	case query.OpTrimStart:
		return Tmpl("LTRIM({0})", a...), true
	case query.OpTrimEnd:
		return Tmpl("RTRIM({0})", a...), true
	case query.OpUpper:
		return Tmpl("UPPER({0})", a...), true
	case query.OpLower:
		return Tmpl("LOWER({0})", a...), true
	case query.OpLength:
		return Tmpl("CHAR_LENGTH({0})", a...), true
	case query.OpIndexOf:
		return Tmpl("(POSITION({1} IN {0}) - 1)", a...), true
	case query.OpConcat:
		return Tmpl("({0} || {1})", a...), true
	case query.OpYear:
		return Tmpl("EXTRACT(YEAR FROM {0})", a...), true
	case query.OpMonth:
		return Tmpl("EXTRACT(MONTH FROM {0})", a...), true
	case query.OpDay:
		return Tmpl("EXTRACT(DAY FROM {0})", a...), true
	case query.OpHour:
		return Tmpl("EXTRACT(HOUR FROM {0})", a...), true
	case query.OpMinute:
		return Tmpl("EXTRACT(MINUTE FROM {0})", a...), true
	case query.OpSecond:
		return Tmpl("EXTRACT(SECOND FROM {0})", a...), true
	case query.OpDate:
		return Tmpl("CAST({0} AS DATE)", a...), true
	case query.OpAdd:
		return Tmpl("({0} + {1})", a...), true
	case query.OpSubtract:
		return Tmpl("({0} - {1})", a...), true
	case query.OpMultiply:
		return Tmpl("({0} * {1})", a...), true
	case query.OpDivide:
		return Tmpl("(1.0 * {0} / {1})", a...), true
	case query.OpModulo:
		return Tmpl("({0} % {1})", a...), true
	case query.OpLeast:
		return Tmpl("LEAST({0}, {1})", a...), true
	case query.OpGreatest:
		return Tmpl("GREATEST({0}, {1})", a...), true
	case query.OpPower:
		return Tmpl("POWER({0}, {1})", a...), true
	case query.OpAbs:
		return Tmpl("ABS({0})", a...), true
	case query.OpRound:
		return Tmpl("ROUND({0}, {1})", a...), true
	case query.OpCeiling:
		return Tmpl("CEILING({0})", a...), true
	case query.OpFloor:
		return Tmpl("FLOOR({0})", a...), true
	case query.OpCoalesce:
		return Tmpl("COALESCE({0}, {1})", a...), true
	}
	return Frag{}, false
}

// ansiAgg renders the aggregates every supported database knows.
func ansiAgg(kind query.AggKind, arg Frag) (Frag, bool) {
	switch kind {
	case query.AggSum:
		return Tmpl("SUM({0})", arg), true
	case query.AggMin:
		return Tmpl("MIN({0})", arg), true
	case query.AggMax:
		return Tmpl("MAX({0})", arg), true
	case query.AggAvg:
		return Tmpl("AVG({0})", arg), true
	case query.AggCount:
		if arg.Empty() {
			return Text("COUNT(*)"), true
		}
		return Tmpl("COUNT({0})", arg), true
	case query.AggCountDistinct:
		return Tmpl("COUNT(DISTINCT {0})", arg), true
	}
	return Frag{}, false
}

// quoteWith wraps ident in l and r, doubling embedded r characters.
func quoteWith(ident string, l, r byte) string {
	var b strings.Builder
	b.Grow(len(ident) + 2)
	b.WriteByte(l)
	for i := 0; i < len(ident); i++ {
		if ident[i] == r {
			b.WriteByte(r)
		}
		b.WriteByte(ident[i])
	}
	b.WriteByte(r)
	return b.String()
}

// limitOffset renders the LIMIT/OFFSET clause. maxRows is the LIMIT used
// when only a skip is requested, empty for dialects that allow a bare OFFSET.
func limitOffset(p query.Paging, maxRows string) string {
	switch {
	case p.HasTake && p.HasSkip:
		return "LIMIT " + strconv.Itoa(p.Take) + " OFFSET " + strconv.Itoa(p.Skip)
	case p.HasTake:
		return "LIMIT " + strconv.Itoa(p.Take)
	case p.HasSkip && maxRows != "":
		return "LIMIT " + maxRows + " OFFSET " + strconv.Itoa(p.Skip)
	case p.HasSkip:
		return "OFFSET " + strconv.Itoa(p.Skip)
	}
	return ""
}

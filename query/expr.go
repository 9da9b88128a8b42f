// Package query is the provider-agnostic query model: canonical
// expressions, boolean filter trees and the Query value with its builder.
//
// Nothing in this package knows about SQL dialects. Package sqlgen renders a
// Query for a concrete database.
//
// String positions follow Go conventions: Substring and IndexOf are
// zero-based and IndexOf yields -1 when nothing is found.
package query

import (
	"fmt"

	"github.com/syssam/sqlprov"
	"github.com/syssam/sqlprov/schema"
)

// Expr is a canonical expression. The set of implementations is closed:
// Ref, Col, Const, Op, Cast, Case, Agg and Key.
type Expr interface {
	expr()
}

// Ref is a column of the table occurrence the expression is rendered
// against (the predicate or projection alias).
type Ref struct {
	Name string
}

// Col is a column of an explicitly named alias, e.g. a joined table.
type Col struct {
	Alias string
	Name  string
}

// Const is a literal. It is always bound as a parameter.
type Const struct {
	Value any
}

// Op applies a canonical operation to Target. Args holds the operands, their
// count is fixed by Kind.Arity. Reversed swaps the sides of a binary
// arithmetic operation, so that the operand is on the left.
type Op struct {
	Kind     OpKind
	Target   Expr
	Args     []Expr
	Reversed bool
}

// Cast converts X to another data type.
type Cast struct {
	X  Expr
	To schema.DataType
}

// Case is a conditional expression.
type Case struct {
	When Condition
	Then Expr
	Else Expr
}

// Agg is an aggregate over Arg. A nil Arg is only valid for Count.
type Agg struct {
	Kind AggKind
	Arg  Expr
}

// Key references a grouping key. It renders as the plain column and is
// never aggregated again.
type Key struct {
	X Expr
}

func (Ref) expr()   {}
func (Col) expr()   {}
func (Const) expr() {}
func (Op) expr()    {}
func (Cast) expr()  {}
func (Case) expr()  {}
func (Agg) expr()   {}
func (Key) expr()   {}

// OpKind enumerates the canonical operations.
type OpKind uint8

// Canonical operations.
const (
	OpInvalid OpKind = iota

	// Strings.
	OpReplace      // Replace(target, old, new)
	OpSubstring    // Substring(target, start)
	OpSubstringLen // Substring(target, start, length)
	OpTrim
	OpTrimStart
	OpTrimEnd
	OpUpper
	OpLower
	OpLength
	OpIndexOf     // IndexOf(target, s)
	OpIndexOfFrom // IndexOf(target, s, start)
	OpConcat

	// Date parts.
	OpYear
	OpMonth
	OpDay
	OpHour
	OpMinute
	OpSecond
	OpDate

	// Date arithmetic. The operand is a constant or another column.
	OpAddYears
	OpAddMonths
	OpAddDays
	OpAddHours
	OpAddMinutes
	OpAddSeconds
	OpDiffDays    // whole days from target to operand
	OpDiffSeconds // seconds from target to operand

	// Math.
	OpAdd
	OpSubtract
	OpMultiply
	OpDivide
	OpModulo
	OpLeast
	OpGreatest
	OpPower
	OpAbs
	OpRound // Round(target, digits)
	OpCeiling
	OpFloor
	OpCoalesce

	opLast
)

var opNames = [...]string{
	OpInvalid:      "invalid",
	OpReplace:      "replace",
	OpSubstring:    "substring",
	OpSubstringLen: "substring_len",
	OpTrim:         "trim",
	OpTrimStart:    "trim_start",
	OpTrimEnd:      "trim_end",
	OpUpper:        "upper",
	OpLower:        "lower",
	OpLength:       "length",
	OpIndexOf:      "index_of",
	OpIndexOfFrom:  "index_of_from",
	OpConcat:       "concat",
	OpYear:         "year",
	OpMonth:        "month",
	OpDay:          "day",
	OpHour:         "hour",
	OpMinute:       "minute",
	OpSecond:       "second",
	OpDate:         "date",
	OpAddYears:     "add_years",
	OpAddMonths:    "add_months",
	OpAddDays:      "add_days",
	OpAddHours:     "add_hours",
	OpAddMinutes:   "add_minutes",
	OpAddSeconds:   "add_seconds",
	OpDiffDays:     "diff_days",
	OpDiffSeconds:  "diff_seconds",
	OpAdd:          "add",
	OpSubtract:     "subtract",
	OpMultiply:     "multiply",
	OpDivide:       "divide",
	OpModulo:       "modulo",
	OpLeast:        "least",
	OpGreatest:     "greatest",
	OpPower:        "power",
	OpAbs:          "abs",
	OpRound:        "round",
	OpCeiling:      "ceiling",
	OpFloor:        "floor",
	OpCoalesce:     "coalesce",
}

// String returns the operation name.
func (k OpKind) String() string {
	if k < opLast {
		return opNames[k]
	}
	return fmt.Sprintf("OpKind(%d)", k)
}

// Arity returns the number of operands besides the target, or -1 for
// unknown kinds.
func (k OpKind) Arity() int {
	switch k {
	case OpTrim, OpTrimStart, OpTrimEnd, OpUpper, OpLower, OpLength,
		OpYear, OpMonth, OpDay, OpHour, OpMinute, OpSecond, OpDate,
		OpAbs, OpCeiling, OpFloor:
		return 0
	case OpReplace, OpSubstringLen, OpIndexOfFrom:
		return 2
	case OpSubstring, OpIndexOf, OpConcat,
		OpAddYears, OpAddMonths, OpAddDays, OpAddHours, OpAddMinutes, OpAddSeconds,
		OpDiffDays, OpDiffSeconds,
		OpAdd, OpSubtract, OpMultiply, OpDivide, OpModulo,
		OpLeast, OpGreatest, OpPower, OpRound, OpCoalesce:
		return 1
	}
	return -1
}

// AggKind enumerates the aggregate operators.
type AggKind uint8

// Aggregate operators.
const (
	AggSum AggKind = iota + 1
	AggMin
	AggMax
	AggAvg
	AggCount
	AggCountDistinct
	AggStdDev
	AggVariance
)

var aggNames = [...]string{
	AggSum:           "sum",
	AggMin:           "min",
	AggMax:           "max",
	AggAvg:           "avg",
	AggCount:         "count",
	AggCountDistinct: "count_distinct",
	AggStdDev:        "stddev",
	AggVariance:      "variance",
}

// String returns the aggregate name.
func (k AggKind) String() string {
	if k > 0 && int(k) < len(aggNames) {
		return aggNames[k]
	}
	return fmt.Sprintf("AggKind(%d)", k)
}

// C references a column of the current alias.
func C(name string) Ref { return Ref{Name: name} }

// AC references a column of the given alias.
func AC(alias, name string) Col { return Col{Alias: alias, Name: name} }

// V wraps a literal value.
func V(v any) Const { return Const{Value: v} }

func op(kind OpKind, target Expr, args ...Expr) Op {
	return Op{Kind: kind, Target: target, Args: args}
}

// Replace replaces all occurrences of old in target with repl.
func Replace(target, old, repl Expr) Op { return op(OpReplace, target, old, repl) }

// Substring returns target from the zero-based start position.
func Substring(target, start Expr) Op { return op(OpSubstring, target, start) }

// SubstringLen returns length characters of target from start.
func SubstringLen(target, start, length Expr) Op {
	return op(OpSubstringLen, target, start, length)
}

// Trim removes leading and trailing spaces.
func Trim(target Expr) Op { return op(OpTrim, target) }

// TrimStart removes leading spaces.
func TrimStart(target Expr) Op { return op(OpTrimStart, target) }

// TrimEnd removes trailing spaces.
func TrimEnd(target Expr) Op { return op(OpTrimEnd, target) }

// Upper converts to upper case.
func Upper(target Expr) Op { return op(OpUpper, target) }

// Lower converts to lower case.
func Lower(target Expr) Op { return op(OpLower, target) }

// Length returns the number of characters.
func Length(target Expr) Op { return op(OpLength, target) }

// IndexOf returns the zero-based position of s in target, or -1.
func IndexOf(target, s Expr) Op { return op(OpIndexOf, target, s) }

// IndexOfFrom is IndexOf starting the search at start.
func IndexOfFrom(target, s, start Expr) Op { return op(OpIndexOfFrom, target, s, start) }

// Concat appends s to target.
func Concat(target, s Expr) Op { return op(OpConcat, target, s) }

// Year extracts the year.
func Year(target Expr) Op { return op(OpYear, target) }

// Month extracts the month.
func Month(target Expr) Op { return op(OpMonth, target) }

// Day extracts the day of month.
func Day(target Expr) Op { return op(OpDay, target) }

// Hour extracts the hour.
func Hour(target Expr) Op { return op(OpHour, target) }

// Minute extracts the minute.
func Minute(target Expr) Op { return op(OpMinute, target) }

// Second extracts the second.
func Second(target Expr) Op { return op(OpSecond, target) }

// DateOf truncates a timestamp to its date.
func DateOf(target Expr) Op { return op(OpDate, target) }

// AddYears adds n years.
func AddYears(target, n Expr) Op { return op(OpAddYears, target, n) }

// AddMonths adds n months.
func AddMonths(target, n Expr) Op { return op(OpAddMonths, target, n) }

// AddDays adds n days.
func AddDays(target, n Expr) Op { return op(OpAddDays, target, n) }

// AddHours adds n hours.
func AddHours(target, n Expr) Op { return op(OpAddHours, target, n) }

// AddMinutes adds n minutes.
func AddMinutes(target, n Expr) Op { return op(OpAddMinutes, target, n) }

// AddSeconds adds n seconds.
func AddSeconds(target, n Expr) Op { return op(OpAddSeconds, target, n) }

// DiffDays returns the days from target to other.
func DiffDays(target, other Expr) Op { return op(OpDiffDays, target, other) }

// DiffSeconds returns the seconds from target to other.
func DiffSeconds(target, other Expr) Op { return op(OpDiffSeconds, target, other) }

// Add returns target + x.
func Add(target, x Expr) Op { return op(OpAdd, target, x) }

// Subtract returns target - x.
func Subtract(target, x Expr) Op { return op(OpSubtract, target, x) }

// Multiply returns target * x.
func Multiply(target, x Expr) Op { return op(OpMultiply, target, x) }

// Divide returns target / x without integer truncation.
func Divide(target, x Expr) Op { return op(OpDivide, target, x) }

// Modulo returns target % x.
func Modulo(target, x Expr) Op { return op(OpModulo, target, x) }

// Least returns the smaller of target and x.
func Least(target, x Expr) Op { return op(OpLeast, target, x) }

// Greatest returns the larger of target and x.
func Greatest(target, x Expr) Op { return op(OpGreatest, target, x) }

// Power raises target to x.
func Power(target, x Expr) Op { return op(OpPower, target, x) }

// Abs returns the absolute value.
func Abs(target Expr) Op { return op(OpAbs, target) }

// Round rounds target to digits decimals.
func Round(target, digits Expr) Op { return op(OpRound, target, digits) }

// Ceiling rounds up.
func Ceiling(target Expr) Op { return op(OpCeiling, target) }

// Floor rounds down.
func Floor(target Expr) Op { return op(OpFloor, target) }

// Coalesce returns x when target is NULL.
func Coalesce(target, x Expr) Op { return op(OpCoalesce, target, x) }

// Reverse returns the operation with its operand on the left side.
func (o Op) Reverse() Op {
	o.Reversed = !o.Reversed
	return o
}

// Sum aggregates x.
func Sum(x Expr) Agg { return Agg{Kind: AggSum, Arg: x} }

// Min aggregates x.
func Min(x Expr) Agg { return Agg{Kind: AggMin, Arg: x} }

// Max aggregates x.
func Max(x Expr) Agg { return Agg{Kind: AggMax, Arg: x} }

// Avg aggregates x.
func Avg(x Expr) Agg { return Agg{Kind: AggAvg, Arg: x} }

// Count counts rows, or non-null values of x when x is not nil.
func Count(x Expr) Agg { return Agg{Kind: AggCount, Arg: x} }

// CountDistinct counts distinct values of x.
func CountDistinct(x Expr) Agg { return Agg{Kind: AggCountDistinct, Arg: x} }

// StdDev aggregates x.
func StdDev(x Expr) Agg { return Agg{Kind: AggStdDev, Arg: x} }

// Variance aggregates x.
func Variance(x Expr) Agg { return Agg{Kind: AggVariance, Arg: x} }

// ValidateExpr checks the operand counts of every operation in e.
func ValidateExpr(e Expr) error {
	switch e := e.(type) {
	case nil:
		return sqlprov.NewInvariantError("missing expression", "nil expression")
	case Ref:
		if e.Name == "" {
			return sqlprov.NewInvariantError("missing expression", "empty column name")
		}
	case Col:
		if e.Name == "" {
			return sqlprov.NewInvariantError("missing expression", "empty column name for alias %q", e.Alias)
		}
	case Const:
	case Op:
		if n := e.Kind.Arity(); n < 0 {
			return sqlprov.NewUnsupportedError("operation", e)
		} else if n != len(e.Args) {
			return sqlprov.NewInvariantError("operator arity", "%s takes %d operand(s), got %d", e.Kind, n, len(e.Args))
		}
		if err := ValidateExpr(e.Target); err != nil {
			return err
		}
		for _, a := range e.Args {
			if err := ValidateExpr(a); err != nil {
				return err
			}
		}
	case Cast:
		if e.To == schema.Unknown {
			return sqlprov.NewInvariantError("cast target", "unknown data type")
		}
		return ValidateExpr(e.X)
	case Case:
		if err := validateCondition(e.When, nil); err != nil {
			return err
		}
		if err := ValidateExpr(e.Then); err != nil {
			return err
		}
		return ValidateExpr(e.Else)
	case Agg:
		if e.Arg == nil {
			if e.Kind != AggCount {
				return sqlprov.NewInvariantError("aggregate operand", "%s requires an operand", e.Kind)
			}
			return nil
		}
		if _, ok := e.Arg.(Agg); ok {
			return sqlprov.NewInvariantError("aggregate operand", "nested aggregate in %s", e.Kind)
		}
		return ValidateExpr(e.Arg)
	case Key:
		return ValidateExpr(e.X)
	default:
		return sqlprov.NewUnsupportedError("expression", e)
	}
	return nil
}

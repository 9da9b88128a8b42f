package query

import (
	"fmt"
	"reflect"

	"github.com/syssam/sqlprov"
)

// CondKind is the kind of a Condition node.
type CondKind uint8

// Condition kinds.
const (
	AndCond CondKind = iota
	OrCond
	TrueCond
	FalseCond
	UnsupportedCond
)

// Condition is a boolean tree: a conjunction or disjunction of predicates
// followed by nested conditions, a constant, or a marker for a filter that
// could not be translated. Rendering an Unsupported condition fails.
type Condition struct {
	Kind       CondKind
	Predicates []Predicate
	Nested     []Condition
	Reason     string // Why the filter is unsupported
}

// Operator is a predicate operator.
type Operator uint8

// Predicate operators.
const (
	Eq Operator = iota + 1
	Ne
	Lt
	Le
	Gt
	Ge
	Like
	NotLike
	IsNull
	IsNotNull
	In
	NotIn
	Exists
	NotExists
	InQuery
	NotInQuery
)

var operatorNames = [...]string{
	Eq:         "=",
	Ne:         "<>",
	Lt:         "<",
	Le:         "<=",
	Gt:         ">",
	Ge:         ">=",
	Like:       "LIKE",
	NotLike:    "NOT LIKE",
	IsNull:     "IS NULL",
	IsNotNull:  "IS NOT NULL",
	In:         "IN",
	NotIn:      "NOT IN",
	Exists:     "EXISTS",
	NotExists:  "NOT EXISTS",
	InQuery:    "IN",
	NotInQuery: "NOT IN",
}

// String returns the SQL keyword of the operator.
func (o Operator) String() string {
	if o > 0 && int(o) < len(operatorNames) {
		return operatorNames[o]
	}
	return fmt.Sprintf("Operator(%d)", o)
}

// Nested reports whether the operator takes a Subquery operand.
func (o Operator) Nested() bool {
	return o == Exists || o == NotExists || o == InQuery || o == NotInQuery
}

// Subquery is pre-rendered SQL spliced into another statement. Its
// parameters are written as ? markers and listed in Args in text order.
type Subquery struct {
	SQL  string
	Args []any
}

// Predicate is an atomic comparison. Field is rendered against Alias.
// Operand is a value, a slice for In/NotIn, a Subquery for nested operators,
// a Col or Ref for a column-to-column comparison, or another Expr.
type Predicate struct {
	Alias   string
	Field   Expr
	Op      Operator
	Operand any
}

// On returns a copy of the predicate bound to the given alias.
func (p Predicate) On(alias string) Predicate {
	p.Alias = alias
	return p
}

func pred(field Expr, op Operator, v any) Predicate {
	return Predicate{Field: field, Op: op, Operand: v}
}

// EQ builds field = v.
func EQ(field Expr, v any) Predicate { return pred(field, Eq, v) }

// NE builds field <> v.
func NE(field Expr, v any) Predicate { return pred(field, Ne, v) }

// LT builds field < v.
func LT(field Expr, v any) Predicate { return pred(field, Lt, v) }

// LE builds field <= v.
func LE(field Expr, v any) Predicate { return pred(field, Le, v) }

// GT builds field > v.
func GT(field Expr, v any) Predicate { return pred(field, Gt, v) }

// GE builds field >= v.
func GE(field Expr, v any) Predicate { return pred(field, Ge, v) }

// LIKE builds field LIKE pattern.
func LIKE(field Expr, pattern string) Predicate { return pred(field, Like, pattern) }

// NotLIKE builds field NOT LIKE pattern.
func NotLIKE(field Expr, pattern string) Predicate { return pred(field, NotLike, pattern) }

// Null builds field IS NULL.
func Null(field Expr) Predicate { return pred(field, IsNull, nil) }

// NotNull builds field IS NOT NULL.
func NotNull(field Expr) Predicate { return pred(field, IsNotNull, nil) }

// IN builds field IN (values...). An empty list matches every row.
func IN(field Expr, values any) Predicate { return pred(field, In, values) }

// NotIN builds field NOT IN (values...). An empty list matches no row.
func NotIN(field Expr, values any) Predicate { return pred(field, NotIn, values) }

// EXISTS builds EXISTS (sub).
func EXISTS(sub Subquery) Predicate { return pred(nil, Exists, sub) }

// NotEXISTS builds NOT EXISTS (sub).
func NotEXISTS(sub Subquery) Predicate { return pred(nil, NotExists, sub) }

// InSub builds field IN (sub).
func InSub(field Expr, sub Subquery) Predicate { return pred(field, InQuery, sub) }

// NotInSub builds field NOT IN (sub).
func NotInSub(field Expr, sub Subquery) Predicate { return pred(field, NotInQuery, sub) }

// And joins predicates with AND.
func And(preds ...Predicate) Condition {
	return Condition{Kind: AndCond, Predicates: preds}
}

// Or joins predicates with OR.
func Or(preds ...Predicate) Condition {
	return Condition{Kind: OrCond, Predicates: preds}
}

// Always is the constant true condition.
func Always() Condition { return Condition{Kind: TrueCond} }

// Never is the constant false condition.
func Never() Condition { return Condition{Kind: FalseCond} }

// Unsupported marks a filter that has no translation. Generation fails
// with reason when it reaches the marker.
func Unsupported(reason string) Condition {
	return Condition{Kind: UnsupportedCond, Reason: reason}
}

// With appends nested conditions. They are joined with the same operator
// as the predicates.
func (c Condition) With(nested ...Condition) Condition {
	c.Nested = append(append([]Condition(nil), c.Nested...), nested...)
	return c
}

// validateCondition checks the predicates of c. When aliases is not nil,
// every predicate alias must be in it.
func validateCondition(c Condition, aliases map[string]bool) error {
	switch c.Kind {
	case TrueCond, FalseCond, UnsupportedCond:
		return nil
	case AndCond, OrCond:
	default:
		return sqlprov.NewUnsupportedError("condition", c.Kind)
	}
	for _, p := range c.Predicates {
		if err := validatePredicate(p, aliases); err != nil {
			return err
		}
	}
	for _, n := range c.Nested {
		if err := validateCondition(n, aliases); err != nil {
			return err
		}
	}
	return nil
}

func validatePredicate(p Predicate, aliases map[string]bool) error {
	if aliases != nil && !aliases[p.Alias] {
		return sqlprov.NewInvariantError("unknown alias", "predicate alias %q is not declared", p.Alias)
	}
	if p.Op == 0 || int(p.Op) >= len(operatorNames) {
		return sqlprov.NewUnsupportedError("operator", p.Op)
	}
	if p.Op != Exists && p.Op != NotExists {
		if err := ValidateExpr(p.Field); err != nil {
			return err
		}
	}
	switch p.Op {
	case IsNull, IsNotNull:
		if p.Operand != nil {
			return sqlprov.NewInvariantError("predicate operand", "%s takes no operand", p.Op)
		}
	case In, NotIn:
		if _, ok := p.Operand.(Subquery); ok {
			return nil
		}
		if p.Operand == nil {
			return nil
		}
		if k := reflect.TypeOf(p.Operand).Kind(); k != reflect.Slice && k != reflect.Array {
			return sqlprov.NewInvariantError("predicate operand", "%s requires a list, got %T", p.Op, p.Operand)
		}
	case Exists, NotExists, InQuery, NotInQuery:
		if _, ok := p.Operand.(Subquery); !ok {
			return sqlprov.NewInvariantError("predicate operand", "%s requires a subquery, got %T", p.Op, p.Operand)
		}
	default:
		if e, ok := p.Operand.(Expr); ok {
			if c, ok := e.(Col); ok && aliases != nil && !aliases[c.Alias] {
				return sqlprov.NewInvariantError("unknown alias", "operand alias %q is not declared", c.Alias)
			}
			return ValidateExpr(e)
		}
	}
	return nil
}

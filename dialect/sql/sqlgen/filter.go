package sqlgen

import (
	"reflect"

	"github.com/syssam/sqlprov"
	"github.com/syssam/sqlprov/query"
)

// Constant conditions.
const (
	tautology     = "1=1"
	contradiction = "1=0"
)

// cond renders a filter tree. Parameters are collected in the order their
// operands appear in the text.
func (s *scope) cond(c query.Condition) (Frag, error) {
	var sep, empty string
	switch c.Kind {
	case query.TrueCond:
		return Text(tautology), nil
	case query.FalseCond:
		return Text(contradiction), nil
	case query.UnsupportedCond:
		return Frag{}, sqlprov.NewUnsupportedError("filter", c.Reason)
	case query.AndCond:
		sep, empty = " AND ", tautology
	case query.OrCond:
		sep, empty = " OR ", contradiction
	default:
		return Frag{}, sqlprov.NewUnsupportedError("condition", c.Kind)
	}
	parts := make([]Frag, 0, len(c.Predicates)+len(c.Nested))
	for _, p := range c.Predicates {
		f, err := s.pred(p)
		if err != nil {
			return Frag{}, err
		}
		parts = append(parts, f)
	}
	for _, n := range c.Nested {
		f, err := s.cond(n)
		if err != nil {
			return Frag{}, err
		}
		parts = append(parts, f)
	}
	if len(parts) == 0 {
		return Text(empty), nil
	}
	return Tmpl("({0})", Join(sep, parts...)), nil
}

func (s *scope) pred(p query.Predicate) (Frag, error) {
	op := p.Op.String()
	if p.Op == query.Exists || p.Op == query.NotExists {
		sub, err := splice(p.Operand.(query.Subquery))
		if err != nil {
			return Frag{}, err
		}
		return Tmpl(op+" ({0})", sub), nil
	}
	field, err := s.expr(p.Alias, p.Field)
	if err != nil {
		return Frag{}, err
	}
	switch p.Op {
	case query.IsNull, query.IsNotNull:
		return Concat(field, Text(" "+op)), nil
	case query.InQuery, query.NotInQuery:
		return s.inQuery(field, op, p.Operand)
	case query.In, query.NotIn:
		if _, ok := p.Operand.(query.Subquery); ok {
			return s.inQuery(field, op, p.Operand)
		}
		return s.inList(p, field)
	}
	if p.Operand == nil {
		switch p.Op {
		case query.Eq:
			return Concat(field, Text(" IS NULL")), nil
		case query.Ne:
			return Concat(field, Text(" IS NOT NULL")), nil
		}
		return Frag{}, sqlprov.NewInvariantError("null comparison", "%s requires a non-null operand", op)
	}
	var rhs Frag
	if e, ok := p.Operand.(query.Expr); ok {
		// Column-to-column comparison; Col operands carry their own alias.
		if rhs, err = s.expr(p.Alias, e); err != nil {
			return Frag{}, err
		}
	} else {
		rhs = Bind(p.Operand, s.dataType(p.Alias, p.Field, p.Operand))
	}
	return Tmpl("{0} "+op+" {1}", field, rhs), nil
}

func (s *scope) inQuery(field Frag, op string, operand any) (Frag, error) {
	sub, err := splice(operand.(query.Subquery))
	if err != nil {
		return Frag{}, err
	}
	return Tmpl("{0} "+op+" ({1})", field, sub), nil
}

// inList binds one parameter per element. An empty list matches every row
// for In and no row for NotIn.
func (s *scope) inList(p query.Predicate, field Frag) (Frag, error) {
	var rv reflect.Value
	if p.Operand != nil {
		rv = reflect.ValueOf(p.Operand)
	}
	if !rv.IsValid() || rv.Len() == 0 {
		if p.Op == query.In {
			return Text(tautology), nil
		}
		return Text(contradiction), nil
	}
	binds := make([]Frag, rv.Len())
	for i := range binds {
		v := rv.Index(i).Interface()
		binds[i] = Bind(v, s.dataType(p.Alias, p.Field, v))
	}
	return Tmpl("{0} "+p.Op.String()+" ({1})", field, Join(", ", binds...)), nil
}

// inherit binds the predicates of c without alias to alias.
func inherit(c query.Condition, alias string) query.Condition {
	if alias == "" {
		return c
	}
	out := c
	out.Predicates = make([]query.Predicate, len(c.Predicates))
	for i, p := range c.Predicates {
		if p.Alias == "" {
			p.Alias = alias
		}
		out.Predicates[i] = p
	}
	out.Nested = make([]query.Condition, len(c.Nested))
	for i, n := range c.Nested {
		out.Nested[i] = inherit(n, alias)
	}
	return out
}

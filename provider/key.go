package provider

import (
	"reflect"
	"strings"
	"time"

	"github.com/syssam/sqlprov/query"
)

var timeType = reflect.TypeOf(time.Time{})

// shape walks the expressions and bound values of a query. It records the
// dynamic type of every node and value, since the structural hash sees
// neither, and refuses values whose state the hash cannot see.
type shape struct {
	b  strings.Builder
	ok bool
}

// signature returns the type signature of q. ok is false when q binds a
// value with unexported state, such as a decimal type, and must not be
// cached.
func signature(q *query.Query) (string, bool) {
	s := &shape{ok: true}
	for _, c := range q.Filters {
		s.cond(c)
	}
	for _, c := range q.Having {
		s.cond(c)
	}
	for _, o := range q.OrderBy {
		s.expr(o.X)
	}
	for _, alias := range q.Aliases() {
		for _, it := range q.Projection[alias] {
			s.expr(it.X)
		}
	}
	if g := q.Grouping; g != nil {
		for _, it := range g.Aggs {
			s.expr(it.X)
		}
	}
	if q.SetOp != nil {
		s.args(q.SetOp.Right.Args)
	}
	return s.b.String(), s.ok
}

func (s *shape) cond(c query.Condition) {
	for _, p := range c.Predicates {
		s.expr(p.Field)
		switch o := p.Operand.(type) {
		case query.Subquery:
			s.args(o.Args)
		case query.Expr:
			s.expr(o)
		default:
			s.value(o)
		}
	}
	for _, n := range c.Nested {
		s.cond(n)
	}
}

func (s *shape) expr(e query.Expr) {
	if e == nil {
		s.b.WriteString("nil;")
		return
	}
	s.b.WriteString(reflect.TypeOf(e).Name())
	s.b.WriteByte(';')
	switch x := e.(type) {
	case query.Const:
		s.value(x.Value)
	case query.Op:
		s.expr(x.Target)
		for _, a := range x.Args {
			s.expr(a)
		}
	case query.Cast:
		s.expr(x.X)
	case query.Case:
		s.cond(x.When)
		s.expr(x.Then)
		s.expr(x.Else)
	case query.Agg:
		s.expr(x.Arg)
	case query.Key:
		s.expr(x.X)
	}
}

func (s *shape) args(args []any) {
	for _, a := range args {
		s.value(a)
	}
}

func (s *shape) value(v any) {
	if v == nil {
		s.b.WriteString("nil;")
		return
	}
	rv := reflect.ValueOf(v)
	s.b.WriteString(rv.Type().String())
	s.b.WriteByte(';')
	if !plain(rv) {
		s.ok = false
	}
}

// plain reports whether every bit of v is visible to the structural hash:
// basic kinds, time.Time, and pointers, slices and arrays of those.
func plain(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Invalid, reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	case reflect.Pointer, reflect.Interface:
		return v.IsNil() || plain(v.Elem())
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			if !plain(v.Index(i)) {
				return false
			}
		}
		return true
	case reflect.Struct:
		return v.Type() == timeType
	default:
		return false
	}
}

package sqlgen

import (
	"github.com/syssam/sqlprov"
	"github.com/syssam/sqlprov/query"
	"github.com/syssam/sqlprov/schema"
)

// column resolves name in the table of alias. The column must have a type
// mapping to take part in generation.
func (s *scope) column(alias, name string) (*schema.Column, error) {
	t, ok := s.tables[alias]
	if !ok {
		return nil, sqlprov.NewInvariantError("unknown alias", "alias %q is not declared", alias)
	}
	c, ok := t.Column(name)
	if !ok {
		return nil, &schema.LookupError{Table: t.FullName(), Column: name}
	}
	if !c.Type.Valid() {
		return nil, &schema.LookupError{Table: t.FullName(), Column: c.Name, DBType: c.Type.DBType}
	}
	return c, nil
}

// expr renders e with alias as the current occurrence. Ref columns resolve
// against alias, Col columns against their own alias.
func (s *scope) expr(alias string, e query.Expr) (Frag, error) {
	switch e := e.(type) {
	case query.Ref:
		c, err := s.column(alias, e.Name)
		if err != nil {
			return Frag{}, err
		}
		return Text(s.qualify(alias, c.Name)), nil
	case query.Col:
		c, err := s.column(e.Alias, e.Name)
		if err != nil {
			return Frag{}, err
		}
		return Text(s.qualify(e.Alias, c.Name)), nil
	case query.Const:
		return Bind(e.Value, typeOf(e.Value)), nil
	case query.Key:
		if _, ok := e.X.(query.Agg); ok {
			return Frag{}, sqlprov.NewInvariantError("grouping key", "aggregate used as grouping key")
		}
		return s.expr(alias, e.X)
	case query.Op:
		return s.op(alias, e)
	case query.Cast:
		x, err := s.expr(alias, e.X)
		if err != nil {
			return Frag{}, err
		}
		name, ok := s.d.CastType(e.To)
		if !ok {
			return Frag{}, sqlprov.NewUnsupportedError("cast", e)
		}
		return Tmpl("CAST({0} AS "+name+")", x), nil
	case query.Case:
		when, err := s.cond(inherit(e.When, alias))
		if err != nil {
			return Frag{}, err
		}
		then, err := s.expr(alias, e.Then)
		if err != nil {
			return Frag{}, err
		}
		els, err := s.expr(alias, e.Else)
		if err != nil {
			return Frag{}, err
		}
		return Tmpl("(CASE WHEN {0} THEN {1} ELSE {2} END)", when, then, els), nil
	case query.Agg:
		return s.agg(alias, e)
	default:
		return Frag{}, sqlprov.NewUnsupportedError("expression", e)
	}
}

// reversible lists the binary operations whose sides may be swapped.
var reversible = map[query.OpKind]bool{
	query.OpAdd:      true,
	query.OpSubtract: true,
	query.OpMultiply: true,
	query.OpDivide:   true,
	query.OpModulo:   true,
	query.OpPower:    true,
	query.OpConcat:   true,
}

func (s *scope) op(alias string, e query.Op) (Frag, error) {
	args := make([]Frag, 0, 1+len(e.Args))
	target, err := s.expr(alias, e.Target)
	if err != nil {
		return Frag{}, err
	}
	args = append(args, target)
	for _, a := range e.Args {
		f, err := s.expr(alias, a)
		if err != nil {
			return Frag{}, err
		}
		args = append(args, f)
	}
	if e.Reversed {
		if !reversible[e.Kind] {
			return Frag{}, sqlprov.NewUnsupportedError("reversed operation", e.Kind)
		}
		args[0], args[1] = args[1], args[0]
	}
	if f, ok := s.d.RenderOp(e.Kind, args); ok {
		return f, nil
	}
	if f, ok := ansiOp(e.Kind, args); ok {
		return f, nil
	}
	return Frag{}, sqlprov.NewUnsupportedError("operation", e)
}

func (s *scope) agg(alias string, e query.Agg) (Frag, error) {
	var arg Frag
	if e.Arg != nil {
		var err error
		if arg, err = s.expr(alias, e.Arg); err != nil {
			return Frag{}, err
		}
	}
	if f, ok := s.d.RenderAgg(e.Kind, arg); ok {
		return f, nil
	}
	if f, ok := ansiAgg(e.Kind, arg); ok {
		return f, nil
	}
	return Frag{}, sqlprov.NewUnsupportedError("aggregate", e)
}

// dataType returns the type a value compared with field is bound as.
func (s *scope) dataType(alias string, field query.Expr, v any) schema.DataType {
	switch f := field.(type) {
	case query.Ref:
		if c, err := s.column(alias, f.Name); err == nil {
			return c.Type.DataType
		}
	case query.Col:
		if c, err := s.column(f.Alias, f.Name); err == nil {
			return c.Type.DataType
		}
	case query.Key:
		return s.dataType(alias, f.X, v)
	}
	return typeOf(v)
}

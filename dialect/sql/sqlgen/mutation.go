package sqlgen

import (
	"strings"

	"github.com/syssam/sqlprov"
	"github.com/syssam/sqlprov/schema"
)

// Assignment is a column and the value written to it or matched against it.
type Assignment struct {
	Column string
	Value  any
}

// Insert renders an INSERT of values into table. Primary key columns that
// are not written are reported back by the statement when the dialect can
// do so (see Statement.Keys).
func (g *Generator) Insert(table string, values []Assignment) (*Statement, error) {
	s, t, err := g.tableScope(table)
	if err != nil {
		return nil, err
	}
	written := make(map[string]bool, len(values))
	cols := make([]string, 0, len(values))
	vals := make([]Frag, 0, len(values))
	for _, a := range values {
		c, err := s.writable(t, a.Column)
		if err != nil {
			return nil, err
		}
		if written[c.Name] {
			return nil, sqlprov.NewInvariantError("duplicate column", "column %q of %q is written twice", c.Name, t.FullName())
		}
		written[c.Name] = true
		cols = append(cols, s.quote(c.Name))
		vals = append(vals, Bind(a.Value, c.Type.DataType))
	}
	var missing []string
	for _, k := range t.KeyColumns() {
		if !written[k.Name] {
			missing = append(missing, k.Name)
		}
	}

	clauses := []Frag{Text("INSERT INTO " + s.tableName(t))}
	if len(cols) > 0 {
		clauses = append(clauses, Text("("+strings.Join(cols, ", ")+")"))
	}
	keys := KeyNone
	if len(missing) > 0 {
		switch s.d.Returning() {
		case OutputClause:
			out := make([]string, len(missing))
			for i, k := range missing {
				out[i] = "INSERTED." + s.quote(k)
			}
			clauses = append(clauses, Text("OUTPUT "+strings.Join(out, ", ")))
			keys = KeyReturning
		case ReturningClause:
			keys = KeyReturning
		default:
			if c, _ := t.Column(missing[0]); len(missing) == 1 && c.AutoNumber {
				keys = KeyLastInsertID
			}
		}
	}
	if len(cols) > 0 {
		clauses = append(clauses, Tmpl("VALUES ({0})", Join(", ", vals...)))
	} else {
		clauses = append(clauses, Text(s.d.EmptyInsert()))
	}
	if keys == KeyReturning && s.d.Returning() == ReturningClause {
		ret := make([]string, len(missing))
		for i, k := range missing {
			ret[i] = s.quote(k)
		}
		clauses = append(clauses, Text("RETURNING "+strings.Join(ret, ", ")))
	}
	stmt, err := finalize(s.d, Join(" ", clauses...))
	if err != nil {
		return nil, err
	}
	if keys != KeyNone {
		stmt.Keys, stmt.KeyColumns = keys, missing
	}
	return stmt, nil
}

// Update renders an UPDATE of the set columns of the row matching key.
func (g *Generator) Update(table string, set, key []Assignment) (*Statement, error) {
	s, t, err := g.tableScope(table)
	if err != nil {
		return nil, err
	}
	if len(set) == 0 {
		return nil, sqlprov.NewInvariantError("empty update", "no column of %q to update", t.FullName())
	}
	assigns := make([]Frag, len(set))
	for i, a := range set {
		c, err := s.writable(t, a.Column)
		if err != nil {
			return nil, err
		}
		assigns[i] = Concat(Text(s.quote(c.Name)+" = "), Bind(a.Value, c.Type.DataType))
	}
	where, err := s.keyFilter(t, key)
	if err != nil {
		return nil, err
	}
	return finalize(s.d, Join(" ",
		Text("UPDATE "+s.tableName(t)+" SET"),
		Join(", ", assigns...),
		where,
	))
}

// DeleteByKey renders a DELETE of the row matching key.
func (g *Generator) DeleteByKey(table string, key []Assignment) (*Statement, error) {
	s, t, err := g.tableScope(table)
	if err != nil {
		return nil, err
	}
	where, err := s.keyFilter(t, key)
	if err != nil {
		return nil, err
	}
	return finalize(s.d, Join(" ", Text("DELETE FROM "+s.tableName(t)), where))
}

// SelectByKey renders a SELECT of every column of the row matching key.
func (g *Generator) SelectByKey(table string, key []Assignment) (*Statement, error) {
	s, t, err := g.tableScope(table)
	if err != nil {
		return nil, err
	}
	cols := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		if _, err := s.column("", c.Name); err != nil {
			return nil, err
		}
		cols[i] = s.quote(c.Name)
	}
	where, err := s.keyFilter(t, key)
	if err != nil {
		return nil, err
	}
	return finalize(s.d, Join(" ",
		Text("SELECT "+strings.Join(cols, ", ")+" FROM "+s.tableName(t)),
		where,
	))
}

// tableScope returns a scope holding only table, under the empty alias.
func (g *Generator) tableScope(table string) (*scope, *schema.Table, error) {
	t, err := g.schema.Resolve(table)
	if err != nil {
		return nil, nil, err
	}
	return &scope{d: g.dialect, tables: map[string]*schema.Table{"": t}}, t, nil
}

func (s *scope) writable(t *schema.Table, name string) (*schema.Column, error) {
	c, err := s.column("", name)
	if err != nil {
		return nil, err
	}
	if !c.Writable() {
		return nil, sqlprov.NewInvariantError("read-only column", "column %q of %q is computed or auto-numbered", c.Name, t.FullName())
	}
	return c, nil
}

// keyFilter renders the WHERE clause matching key.
func (s *scope) keyFilter(t *schema.Table, key []Assignment) (Frag, error) {
	if len(key) == 0 {
		return Frag{}, sqlprov.NewInvariantError("missing key", "no key to match a row of %q", t.FullName())
	}
	conds := make([]Frag, len(key))
	for i, a := range key {
		c, err := s.column("", a.Column)
		if err != nil {
			return Frag{}, err
		}
		if a.Value == nil {
			return Frag{}, sqlprov.NewInvariantError("missing key", "key column %q of %q is NULL", c.Name, t.FullName())
		}
		conds[i] = Concat(Text(s.quote(c.Name)+" = "), Bind(a.Value, c.Type.DataType))
	}
	return Concat(Text("WHERE "), Join(" AND ", conds...)), nil
}

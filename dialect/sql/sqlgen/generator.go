package sqlgen

import (
	"strconv"
	"strings"

	"github.com/syssam/sqlprov"
	"github.com/syssam/sqlprov/query"
	"github.com/syssam/sqlprov/schema"
)

// Names of the helper relations introduced by the assembler.
const (
	pagedName  = "paged"
	rowNumName = "RN"
	countName  = "cnt"
)

// Resolver resolves a table by full name. *schema.Cache implements it.
type Resolver interface {
	Resolve(name string) (*schema.Table, error)
}

// Generator renders queries and mutations for one dialect. It holds no
// mutable state and is safe for concurrent use.
type Generator struct {
	dialect Dialect
	schema  Resolver
}

// New returns a generator for the given dialect and schema.
func New(d Dialect, r Resolver) *Generator {
	return &Generator{dialect: d, schema: r}
}

// Dialect returns the dialect of the generator.
func (g *Generator) Dialect() Dialect { return g.dialect }

// Select renders q as a SELECT statement.
func (g *Generator) Select(q *query.Query) (*Statement, error) {
	f, err := g.render(q, false)
	if err != nil {
		return nil, err
	}
	return finalize(g.dialect, f)
}

// Delete renders q as a DELETE statement removing the rows of the base
// occurrence that match the filters.
func (g *Generator) Delete(q *query.Query) (*Statement, error) {
	f, err := g.render(q, true)
	if err != nil {
		return nil, err
	}
	return finalize(g.dialect, f)
}

// Subquery renders q in the portable form used by nested predicates and set
// operations of other queries.
func (g *Generator) Subquery(q *query.Query) (query.Subquery, error) {
	f, err := g.render(q, false)
	if err != nil {
		return query.Subquery{}, err
	}
	return unsplice(f), nil
}

func (g *Generator) render(q *query.Query, del bool) (Frag, error) {
	if err := q.Validate(); err != nil {
		return Frag{}, err
	}
	s, err := g.scope(q)
	if err != nil {
		return Frag{}, err
	}
	if del {
		return s.delete(q)
	}
	p := q.Paging
	if q.SetOp != nil && (len(q.OrderBy) > 0 || p.Paged()) {
		return Frag{}, sqlprov.NewUnsupportedError("set operation with ordering or paging", q.SetOp.Kind)
	}
	if p.HasSkip && !g.dialect.NativeOffset() {
		return s.rowNumber(q)
	}
	if q.Count && (q.Distinct || p.Paged() || q.Grouping != nil || q.SetOp != nil) {
		inner, err := s.selectBody(q, false, p.Paged())
		if err != nil {
			return Frag{}, err
		}
		return Tmpl("SELECT COUNT(*) FROM ({0}) AS "+s.quote(countName), inner), nil
	}
	return s.selectBody(q, q.Count, !q.Count)
}

// scope maps the aliases of one query to their tables. joined is set when
// the base occurrence shares the FROM clause with other occurrences.
type scope struct {
	d      Dialect
	tables map[string]*schema.Table
	joined bool
}

func (g *Generator) scope(q *query.Query) (*scope, error) {
	s := &scope{
		d:      g.dialect,
		tables: make(map[string]*schema.Table, 1+len(q.CrossJoins)+len(q.Joins)),
		joined: len(q.CrossJoins) > 0 || len(q.Joins) > 0,
	}
	add := func(alias, name string) error {
		t, err := g.schema.Resolve(name)
		if err != nil {
			return err
		}
		s.tables[alias] = t
		return nil
	}
	if err := add(q.Alias, q.Table); err != nil {
		return nil, err
	}
	for _, c := range q.CrossJoins {
		if err := add(c.Alias, c.Table); err != nil {
			return nil, err
		}
	}
	for _, j := range q.Joins {
		if err := add(j.Alias, j.Table); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *scope) quote(ident string) string { return s.d.Quote(ident) }

// tableName returns the quoted full name of t.
func (s *scope) tableName(t *schema.Table) string {
	if t.Schema == "" {
		return s.quote(t.Name)
	}
	return s.quote(t.Schema) + "." + s.quote(t.Name)
}

// tableRef returns the table of alias as it appears in FROM.
func (s *scope) tableRef(alias string) string {
	name := s.tableName(s.tables[alias])
	if alias == "" {
		return name
	}
	return name + " AS " + s.quote(alias)
}

// qualify returns the column reference of name under alias. Columns of an
// unaliased base occurrence are qualified by the table name once other
// occurrences are joined.
func (s *scope) qualify(alias, name string) string {
	if alias == "" {
		if s.joined {
			return s.tableName(s.tables[alias]) + "." + s.quote(name)
		}
		return s.quote(name)
	}
	return s.quote(alias) + "." + s.quote(name)
}

// selectBody renders the statement without row-number paging. When count
// is set the projection is COUNT(*). ORDER BY is rendered only if ordered.
func (s *scope) selectBody(q *query.Query, count, ordered bool) (Frag, error) {
	p := q.Paging
	head := "SELECT"
	if q.Distinct && !count {
		head += " DISTINCT"
	}
	if p.HasTake && !p.HasSkip && s.d.TopN() {
		head += " TOP (" + strconv.Itoa(p.Take) + ")"
	}
	var proj Frag
	if count {
		proj = Text("COUNT(*)")
	} else {
		items, err := s.projection(q)
		if err != nil {
			return Frag{}, err
		}
		proj = Join(", ", items...)
	}
	clauses := []Frag{Text(head), proj}
	tail, err := s.tail(q)
	if err != nil {
		return Frag{}, err
	}
	clauses = append(clauses, tail...)
	ordered = ordered && len(q.OrderBy) > 0
	if ordered {
		order, err := s.orderBy(q)
		if err != nil {
			return Frag{}, err
		}
		clauses = append(clauses, Concat(Text("ORDER BY "), order))
	}
	if limit := s.d.Limit(p, ordered); limit != "" {
		clauses = append(clauses, Text(limit))
	}
	if q.SetOp != nil {
		right, err := splice(q.SetOp.Right)
		if err != nil {
			return Frag{}, err
		}
		clauses = append(clauses, Concat(Text(q.SetOp.Kind.String()+" "), right))
	}
	return Join(" ", clauses...), nil
}

// tail renders FROM, joins, WHERE, GROUP BY and HAVING.
func (s *scope) tail(q *query.Query) ([]Frag, error) {
	from := "FROM " + s.tableRef(q.Alias)
	for _, c := range q.CrossJoins {
		from += " CROSS JOIN " + s.tableRef(c.Alias)
	}
	clauses := []Frag{Text(from)}
	for _, j := range q.Joins {
		f, err := s.join(j)
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, f)
	}
	where, err := s.filters("WHERE", q.Filters)
	if err != nil {
		return nil, err
	}
	if !where.Empty() {
		clauses = append(clauses, where)
	}
	if g := q.Grouping; g != nil {
		keys := make([]string, len(g.Keys))
		for i, k := range g.Keys {
			c, err := s.column(g.Alias, k)
			if err != nil {
				return nil, err
			}
			keys[i] = s.qualify(g.Alias, c.Name)
		}
		clauses = append(clauses, Text("GROUP BY "+strings.Join(keys, ", ")))
		having := make([]query.Condition, len(q.Having))
		for i, c := range q.Having {
			having[i] = inherit(c, g.Alias)
		}
		f, err := s.filters("HAVING", having)
		if err != nil {
			return nil, err
		}
		if !f.Empty() {
			clauses = append(clauses, f)
		}
	}
	return clauses, nil
}

func (s *scope) join(j query.Join) (Frag, error) {
	kw := "INNER JOIN "
	if j.Outer {
		kw = "LEFT OUTER JOIN "
	}
	on := make([]string, len(j.Pairs))
	for i, p := range j.Pairs {
		srcCol, dstCol := p.Foreign, p.Primary
		if j.Direction == query.ParentToChild {
			srcCol, dstCol = p.Primary, p.Foreign
		}
		src, err := s.column(j.Source, srcCol)
		if err != nil {
			return Frag{}, err
		}
		dst, err := s.column(j.Alias, dstCol)
		if err != nil {
			return Frag{}, err
		}
		on[i] = s.qualify(j.Source, src.Name) + " = " + s.qualify(j.Alias, dst.Name)
	}
	return Text(kw + s.tableRef(j.Alias) + " ON " + strings.Join(on, " AND ")), nil
}

// filters renders a list of conditions under keyword. A single condition
// is rendered as is, several are joined with AND.
func (s *scope) filters(keyword string, conds []query.Condition) (Frag, error) {
	if len(conds) == 0 {
		return Frag{}, nil
	}
	parts := make([]Frag, len(conds))
	for i, c := range conds {
		f, err := s.cond(c)
		if err != nil {
			return Frag{}, err
		}
		parts[i] = f
	}
	if len(parts) == 1 {
		return Concat(Text(keyword+" "), parts[0]), nil
	}
	return Tmpl(keyword+" ({0})", Join(" AND ", parts...)), nil
}

func (s *scope) orderBy(q *query.Query) (Frag, error) {
	terms := make([]Frag, len(q.OrderBy))
	for i, o := range q.OrderBy {
		f, err := s.expr(o.Alias, o.X)
		if err != nil {
			return Frag{}, err
		}
		if o.Desc {
			f = Concat(f, Text(" DESC"))
		}
		terms[i] = f
	}
	return Join(", ", terms...), nil
}

// output is one rendered projection item and its output name.
type output struct {
	name string
	frag Frag
}

// outputs renders the projection in alias declaration order. A grouped query
// without explicit projection outputs its keys followed by its aggregates.
func (s *scope) outputs(q *query.Query) ([]output, error) {
	var outs []output
	for _, alias := range q.Aliases() {
		for _, it := range q.Projection[alias] {
			f, err := s.expr(alias, it.X)
			if err != nil {
				return nil, err
			}
			outs = append(outs, output{name: it.Name, frag: s.as(f, it)})
		}
	}
	if len(outs) > 0 || q.Grouping == nil {
		return outs, nil
	}
	g := q.Grouping
	for _, k := range g.Keys {
		c, err := s.column(g.Alias, k)
		if err != nil {
			return nil, err
		}
		outs = append(outs, output{name: c.Name, frag: Text(s.qualify(g.Alias, c.Name))})
	}
	for _, it := range g.Aggs {
		f, err := s.expr(g.Alias, it.X)
		if err != nil {
			return nil, err
		}
		outs = append(outs, output{name: it.Name, frag: s.as(f, it)})
	}
	return outs, nil
}

// as names the rendered item unless it is the plain column of that name.
func (s *scope) as(f Frag, it query.Item) Frag {
	var col string
	switch x := it.X.(type) {
	case query.Ref:
		col = x.Name
	case query.Col:
		col = x.Name
	case query.Key:
		return s.as(f, query.Item{Name: it.Name, X: x.X})
	}
	if name := s.quote(it.Name); col != "" && (f.SQL == name || strings.HasSuffix(f.SQL, "."+name)) {
		return f
	}
	return Concat(f, Text(" AS "+s.quote(it.Name)))
}

func (s *scope) projection(q *query.Query) ([]Frag, error) {
	outs, err := s.outputs(q)
	if err != nil {
		return nil, err
	}
	if len(outs) == 0 {
		return []Frag{Text("*")}, nil
	}
	items := make([]Frag, len(outs))
	for i, o := range outs {
		items[i] = o.frag
	}
	return items, nil
}

// rowNumber renders paging for dialects without native OFFSET: the query is
// wrapped in a CTE with a ROW_NUMBER column and filtered on it.
func (s *scope) rowNumber(q *query.Query) (Frag, error) {
	if q.Distinct {
		return Frag{}, sqlprov.NewUnsupportedError("distinct with row-number paging", q.Table)
	}
	outs, err := s.outputs(q)
	if err != nil {
		return Frag{}, err
	}
	if len(outs) == 0 {
		for _, c := range s.tables[q.Alias].Columns {
			outs = append(outs, output{name: c.Name, frag: Text(s.qualify(q.Alias, c.Name))})
		}
	}
	seen := make(map[string]bool, len(outs))
	names := make([]string, len(outs))
	items := make([]Frag, len(outs), len(outs)+1)
	for i, o := range outs {
		key := strings.ToLower(o.name)
		if seen[key] {
			return Frag{}, sqlprov.NewInvariantError("unique output name", "column %q appears twice in a paged projection", o.name)
		}
		seen[key] = true
		names[i] = s.quote(o.name)
		items[i] = o.frag
	}
	order := Text("(SELECT NULL)")
	if len(q.OrderBy) > 0 {
		if order, err = s.orderBy(q); err != nil {
			return Frag{}, err
		}
	}
	items = append(items, Tmpl("ROW_NUMBER() OVER (ORDER BY {0}) AS "+s.quote(rowNumName), order))
	tail, err := s.tail(q)
	if err != nil {
		return Frag{}, err
	}
	inner := Join(" ", append([]Frag{Text("SELECT"), Join(", ", items...)}, tail...)...)

	p := q.Paging
	rn := s.quote(rowNumName)
	filter := rn + " > " + strconv.Itoa(p.Skip)
	if p.HasTake {
		filter = rn + " BETWEEN " + strconv.Itoa(p.Skip+1) + " AND " + strconv.Itoa(p.Skip+p.Take)
	}
	proj := strings.Join(names, ", ")
	if q.Count {
		proj = "COUNT(*)"
	}
	outer := Text("SELECT " + proj + " FROM " + s.quote(pagedName) + " WHERE " + filter)
	return Tmpl("WITH "+s.quote(pagedName)+" AS ({0}) {1}", inner, outer), nil
}

// delete renders the DELETE form of q.
func (s *scope) delete(q *query.Query) (Frag, error) {
	switch {
	case q.Paging.Paged():
		return Frag{}, sqlprov.NewUnsupportedError("delete with paging", q.Table)
	case q.Grouping != nil:
		return Frag{}, sqlprov.NewUnsupportedError("delete with grouping", q.Table)
	case q.SetOp != nil:
		return Frag{}, sqlprov.NewUnsupportedError("delete with set operation", q.SetOp.Kind)
	case q.Count || q.Distinct:
		return Frag{}, sqlprov.NewUnsupportedError("delete with count or distinct", q.Table)
	}
	joined := len(q.Joins) > 0 || len(q.CrossJoins) > 0
	head := "DELETE"
	if s.d.DeleteAlias() {
		if q.Alias != "" {
			head += " " + s.quote(q.Alias)
		} else if joined {
			head += " " + s.tableName(s.tables[q.Alias])
		}
	} else if joined {
		return Frag{}, sqlprov.NewUnsupportedError("delete with joins", s.d.Name())
	}
	tail, err := s.tail(q)
	if err != nil {
		return Frag{}, err
	}
	return Join(" ", append([]Frag{Text(head)}, tail...)...), nil
}

package query

import (
	"strings"

	"github.com/syssam/sqlprov"
	"github.com/syssam/sqlprov/schema"
)

// Direction tells on which side of a relationship a join starts.
type Direction uint8

// Join directions.
const (
	// ChildToParent joins the referenced table from the declaring one:
	// source.Foreign = target.Primary.
	ChildToParent Direction = iota
	// ParentToChild joins the declaring table from the referenced one:
	// source.Primary = target.Foreign.
	ParentToChild
)

// String returns the direction name.
func (d Direction) String() string {
	if d == ParentToChild {
		return "parent_to_child"
	}
	return "child_to_parent"
}

// Join adds a table occurrence reached from Source over a relationship.
type Join struct {
	Table     string // Full name of the joined table
	Source    string // Alias the join starts from
	Alias     string
	Pairs     []schema.ColumnPair
	Direction Direction
	Outer     bool // LEFT OUTER JOIN instead of INNER JOIN
}

// Left returns the join as a left outer join.
func (j Join) Left() Join {
	j.Outer = true
	return j
}

// Parent joins the table referenced by rel, starting from the occurrence
// source of the table declaring rel.
func Parent(rel *schema.Relationship, source, alias string) (Join, error) {
	pairs, err := rel.Pairs()
	if err != nil {
		return Join{}, err
	}
	return Join{
		Table:     rel.RefFullName(),
		Source:    source,
		Alias:     alias,
		Pairs:     pairs,
		Direction: ChildToParent,
	}, nil
}

// Child joins child over its relationship named rel, starting from the
// occurrence source of the referenced table.
func Child(child *schema.Table, rel, source, alias string) (Join, error) {
	r, ok := child.Relationship(rel)
	if !ok {
		return Join{}, &schema.LookupError{Table: child.FullName(), Column: rel}
	}
	pairs, err := r.Pairs()
	if err != nil {
		return Join{}, err
	}
	return Join{
		Table:     child.FullName(),
		Source:    source,
		Alias:     alias,
		Pairs:     pairs,
		Direction: ParentToChild,
	}, nil
}

// Source is a table occurrence without join condition (CROSS JOIN).
type Source struct {
	Table string
	Alias string
}

// Item is one output column: the value of X under the output name Name.
type Item struct {
	Name string
	X    Expr
}

// Group groups the occurrence Alias by Keys. Aggs are computed per group.
type Group struct {
	Alias string
	Keys  []string
	Aggs  []Item
}

// Order is one ordering term.
type Order struct {
	Alias string
	X     Expr
	Desc  bool
}

// Asc orders by x ascending.
func Asc(x Expr) Order { return Order{X: x} }

// Desc orders by x descending.
func Desc(x Expr) Order { return Order{X: x, Desc: true} }

// On returns a copy of the ordering term bound to alias.
func (o Order) On(alias string) Order {
	o.Alias = alias
	return o
}

// Paging limits the result window.
type Paging struct {
	Skip    int
	Take    int
	HasSkip bool
	HasTake bool
}

// Paged reports whether any bound is set.
func (p Paging) Paged() bool { return p.HasSkip || p.HasTake }

// SetKind is a set operation kind.
type SetKind uint8

// Set operation kinds.
const (
	Union SetKind = iota + 1
	UnionAll
	Intersect
	Except
)

// String returns the SQL keyword.
func (k SetKind) String() string {
	switch k {
	case Union:
		return "UNION"
	case UnionAll:
		return "UNION ALL"
	case Intersect:
		return "INTERSECT"
	case Except:
		return "EXCEPT"
	}
	return "SET"
}

// SetOp combines the query with a pre-rendered right-hand side.
type SetOp struct {
	Kind  SetKind
	Right Subquery
}

// Query is a select or delete over a base table occurrence, joined
// occurrences and filters. The base occurrence has alias Alias, which may
// be empty.
type Query struct {
	Table      string
	Alias      string
	CrossJoins []Source
	Joins      []Join
	Filters    []Condition // Joined with AND
	Grouping   *Group
	Having     []Condition // Joined with AND
	OrderBy    []Order
	Projection map[string][]Item // Alias to output items
	Distinct   bool
	Count      bool
	Paging     Paging
	SetOp      *SetOp
}

// From starts a query over table.
func From(table string) *Query {
	return &Query{Table: table}
}

// FromAs starts a query over table with the given alias.
func FromAs(table, alias string) *Query {
	return &Query{Table: table, Alias: alias}
}

// CrossJoin adds a table occurrence without join condition.
func (q *Query) CrossJoin(table, alias string) *Query {
	q.CrossJoins = append(q.CrossJoins, Source{Table: table, Alias: alias})
	return q
}

// Join adds joins.
func (q *Query) Join(joins ...Join) *Query {
	q.Joins = append(q.Joins, joins...)
	return q
}

// Where adds filters.
func (q *Query) Where(conds ...Condition) *Query {
	q.Filters = append(q.Filters, conds...)
	return q
}

// GroupBy groups the occurrence alias by keys.
func (q *Query) GroupBy(alias string, keys ...string) *Query {
	if q.Grouping == nil {
		q.Grouping = &Group{}
	}
	q.Grouping.Alias = alias
	q.Grouping.Keys = append(q.Grouping.Keys, keys...)
	return q
}

// Aggregate adds an aggregate output to the grouping.
func (q *Query) Aggregate(name string, agg Agg) *Query {
	if q.Grouping == nil {
		q.Grouping = &Group{Alias: q.Alias}
	}
	q.Grouping.Aggs = append(q.Grouping.Aggs, Item{Name: name, X: agg})
	return q
}

// HavingWhere adds filters on grouping keys and aggregates.
func (q *Query) HavingWhere(conds ...Condition) *Query {
	q.Having = append(q.Having, conds...)
	return q
}

// Order adds ordering terms.
func (q *Query) Order(terms ...Order) *Query {
	q.OrderBy = append(q.OrderBy, terms...)
	return q
}

// Select adds output items for the occurrence alias.
func (q *Query) Select(alias string, items ...Item) *Query {
	if q.Projection == nil {
		q.Projection = make(map[string][]Item)
	}
	q.Projection[alias] = append(q.Projection[alias], items...)
	return q
}

// Columns adds plain columns of the occurrence alias as output items.
func (q *Query) Columns(alias string, names ...string) *Query {
	items := make([]Item, len(names))
	for i, n := range names {
		items[i] = Item{Name: n, X: Ref{Name: n}}
	}
	return q.Select(alias, items...)
}

// Unique removes duplicate rows.
func (q *Query) Unique() *Query {
	q.Distinct = true
	return q
}

// CountRows turns the query into a row count.
func (q *Query) CountRows() *Query {
	q.Count = true
	return q
}

// Skip skips n rows. Skip(0) clears the bound.
func (q *Query) Skip(n int) *Query {
	q.Paging.Skip, q.Paging.HasSkip = n, n != 0
	return q
}

// Take limits the result to n rows.
func (q *Query) Take(n int) *Query {
	q.Paging.Take, q.Paging.HasTake = n, true
	return q
}

// Combine appends a set operation.
func (q *Query) Combine(kind SetKind, right Subquery) *Query {
	q.SetOp = &SetOp{Kind: kind, Right: right}
	return q
}

// Aliases returns the occurrence aliases in declaration order: the base
// occurrence, cross joins, then joins.
func (q *Query) Aliases() []string {
	aliases := make([]string, 0, 1+len(q.CrossJoins)+len(q.Joins))
	aliases = append(aliases, q.Alias)
	for _, s := range q.CrossJoins {
		aliases = append(aliases, s.Alias)
	}
	for _, j := range q.Joins {
		aliases = append(aliases, j.Alias)
	}
	return aliases
}

// Validate checks the structural rules of the query before any SQL is
// produced.
func (q *Query) Validate() error {
	if q.Table == "" {
		return sqlprov.NewInvariantError("missing table", "query has no base table")
	}
	declared := map[string]bool{q.Alias: true}
	for _, s := range q.CrossJoins {
		if s.Table == "" {
			return sqlprov.NewInvariantError("missing table", "cross join %q has no table", s.Alias)
		}
		if declared[s.Alias] {
			return sqlprov.NewInvariantError("unique alias", "alias %q is used twice", s.Alias)
		}
		declared[s.Alias] = true
	}
	for _, j := range q.Joins {
		if j.Table == "" {
			return sqlprov.NewInvariantError("missing table", "join %q has no table", j.Alias)
		}
		if declared[j.Alias] {
			return sqlprov.NewInvariantError("unique alias", "alias %q is used twice", j.Alias)
		}
		if !declared[j.Source] {
			return sqlprov.NewInvariantError("join source", "join %q starts from undeclared alias %q", j.Alias, j.Source)
		}
		if len(j.Pairs) == 0 {
			return sqlprov.NewInvariantError("join columns", "join %q has no column pairs", j.Alias)
		}
		declared[j.Alias] = true
	}
	for _, c := range q.Filters {
		if err := validateCondition(c, declared); err != nil {
			return err
		}
	}
	if err := q.validateGrouping(declared); err != nil {
		return err
	}
	for alias, items := range q.Projection {
		if !declared[alias] {
			return sqlprov.NewInvariantError("unknown alias", "projection alias %q is not declared", alias)
		}
		for _, it := range items {
			if it.Name == "" {
				return sqlprov.NewInvariantError("missing expression", "projection item of %q has no name", alias)
			}
			if err := ValidateExpr(it.X); err != nil {
				return err
			}
		}
	}
	for _, o := range q.OrderBy {
		if !declared[o.Alias] {
			return sqlprov.NewInvariantError("unknown alias", "ordering alias %q is not declared", o.Alias)
		}
		if err := ValidateExpr(o.X); err != nil {
			return err
		}
	}
	p := q.Paging
	if (p.HasSkip && p.Skip < 0) || (p.HasTake && p.Take < 0) {
		return sqlprov.NewInvariantError("paging bounds", "skip=%d take=%d", p.Skip, p.Take)
	}
	if p.HasSkip && p.HasTake && len(q.OrderBy) == 0 {
		return sqlprov.NewInvariantError("paging requires ordering", "skip=%d take=%d", p.Skip, p.Take)
	}
	if q.SetOp != nil && q.SetOp.Right.SQL == "" {
		return sqlprov.NewInvariantError("set operation", "%s has an empty right side", q.SetOp.Kind)
	}
	return nil
}

func (q *Query) validateGrouping(declared map[string]bool) error {
	if q.Grouping == nil {
		if len(q.Having) > 0 {
			return sqlprov.NewInvariantError("having requires grouping", "%d having condition(s) without grouping", len(q.Having))
		}
		return nil
	}
	g := q.Grouping
	if !declared[g.Alias] {
		return sqlprov.NewInvariantError("unknown alias", "grouping alias %q is not declared", g.Alias)
	}
	if len(g.Keys) == 0 {
		return sqlprov.NewInvariantError("grouping keys", "grouping of %q has no keys", g.Alias)
	}
	for _, it := range g.Aggs {
		if _, ok := it.X.(Agg); !ok || it.Name == "" {
			return sqlprov.NewInvariantError("grouping aggregate", "aggregate %q must be a named aggregate", it.Name)
		}
		if err := ValidateExpr(it.X); err != nil {
			return err
		}
	}
	for _, c := range q.Having {
		if err := validateHaving(c, g); err != nil {
			return err
		}
	}
	return nil
}

// validateHaving allows only grouping keys of g and aggregates as
// predicate fields.
func validateHaving(c Condition, g *Group) error {
	if err := validateCondition(c, nil); err != nil {
		return err
	}
	for _, p := range c.Predicates {
		switch f := p.Field.(type) {
		case Agg:
		case Key:
			if err := g.checkKey(p.Alias, f); err != nil {
				return err
			}
		default:
			return sqlprov.NewInvariantError("having operand", "%T is neither a grouping key nor an aggregate", p.Field)
		}
	}
	for _, n := range c.Nested {
		if err := validateHaving(n, g); err != nil {
			return err
		}
	}
	return nil
}

// checkKey reports an error unless k names one of the grouping keys. An
// empty alias stands for the grouping alias.
func (g *Group) checkKey(alias string, k Key) error {
	var name string
	switch x := k.X.(type) {
	case Ref:
		name = x.Name
	case Col:
		alias, name = x.Alias, x.Name
	default:
		return sqlprov.NewInvariantError("having operand", "grouping key %T is not a column", k.X)
	}
	if alias == "" || alias == g.Alias {
		for _, key := range g.Keys {
			if strings.EqualFold(key, name) {
				return nil
			}
		}
	}
	return sqlprov.NewInvariantError("having operand", "%q is not a grouping key of %q", name, g.Alias)
}

package query

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/syssam/sqlprov"
	"github.com/syssam/sqlprov/schema"
)

// Resolver resolves a table by full name. *schema.Cache implements it.
type Resolver interface {
	Resolve(name string) (*schema.Table, error)
}

// Document is a list of declared queries, as read from YAML:
//
//	queries:
//	  - name: recent_hires
//	    from: dbo.Employees
//	    alias: e
//	    joins:
//	      - {relationship: FK_Employees_Departments, source: e, alias: d, outer: true}
//	    where:
//	      - and:
//	          - {alias: d, field: department_name, op: in, value: [Sales, IT]}
//	          - {alias: e, field: {fn: year, args: [hire_date]}, op: ge, value: 2020}
//	    select:
//	      e: [id, Name]
//	      d: [department_name]
//	    order_by:
//	      - {alias: e, by: hire_date, desc: true}
//	    skip: 10
//	    take: 5
type Document struct {
	Queries []QueryDoc `yaml:"queries"`
}

// QueryDoc is one query of a Document. Delete renders it as a DELETE.
type QueryDoc struct {
	Name       string               `yaml:"name"`
	Delete     bool                 `yaml:"delete"`
	From       string               `yaml:"from"`
	Alias      string               `yaml:"alias"`
	CrossJoins []Source             `yaml:"cross_joins"`
	Joins      []JoinDoc            `yaml:"joins"`
	Where      []ConditionDoc       `yaml:"where"`
	GroupBy    *GroupDoc            `yaml:"group_by"`
	Having     []ConditionDoc       `yaml:"having"`
	OrderBy    []OrderDoc           `yaml:"order_by"`
	Select     map[string][]ItemDoc `yaml:"select"`
	Distinct   bool                 `yaml:"distinct"`
	Count      bool                 `yaml:"count"`
	Skip       *int                 `yaml:"skip"`
	Take       *int                 `yaml:"take"`
	Combine    *SetDoc              `yaml:"combine"`
}

// JoinDoc joins over a named relationship. Without Child the relationship
// is declared by the table of Source and the referenced table is joined.
// With Child the relationship is declared by Child, which is joined from
// the referenced table at Source.
type JoinDoc struct {
	Relationship string `yaml:"relationship"`
	Source       string `yaml:"source"`
	Alias        string `yaml:"alias"`
	Child        string `yaml:"child"`
	Outer        bool   `yaml:"outer"`
}

// ConditionDoc is a filter tree node. Predicates are listed under either
// And or Or; Nested conditions share that operator. Const makes the node
// a constant.
type ConditionDoc struct {
	And    []PredicateDoc `yaml:"and"`
	Or     []PredicateDoc `yaml:"or"`
	Nested []ConditionDoc `yaml:"nested"`
	Const  *bool          `yaml:"const"`
}

// PredicateDoc is one comparison. The operand is Column for a
// column-to-column comparison, Subquery for nested operators and Value
// otherwise.
type PredicateDoc struct {
	Alias    string       `yaml:"alias"`
	Field    ExprDoc      `yaml:"field"`
	Op       string       `yaml:"op"`
	Value    any          `yaml:"value"`
	Column   *ExprDoc     `yaml:"column"`
	Subquery *SubqueryDoc `yaml:"subquery"`
}

// SubqueryDoc is pre-rendered SQL with ? markers.
type SubqueryDoc struct {
	SQL  string `yaml:"sql"`
	Args []any  `yaml:"args"`
}

// ExprDoc is an expression. A plain scalar is a column name. Fn names a
// canonical operation, an aggregate or "key"; its first argument is the
// target.
type ExprDoc struct {
	Column string    `yaml:"column"`
	Alias  string    `yaml:"alias"`
	Value  any       `yaml:"value"`
	Fn     string    `yaml:"fn"`
	Args   []ExprDoc `yaml:"args"`
	Cast   string    `yaml:"cast"`
}

// UnmarshalYAML accepts a column name in place of the mapping form.
func (e *ExprDoc) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind == yaml.ScalarNode {
		*e = ExprDoc{Column: n.Value}
		return nil
	}
	type plain ExprDoc
	return n.Decode((*plain)(e))
}

// ItemDoc is an output item. A plain scalar selects the column of that
// name.
type ItemDoc struct {
	Name string  `yaml:"name"`
	Expr ExprDoc `yaml:"expr"`
}

// UnmarshalYAML accepts a column name in place of the mapping form.
func (it *ItemDoc) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind == yaml.ScalarNode {
		*it = ItemDoc{Name: n.Value, Expr: ExprDoc{Column: n.Value}}
		return nil
	}
	type plain ItemDoc
	return n.Decode((*plain)(it))
}

// GroupDoc groups the occurrence Alias by Keys.
type GroupDoc struct {
	Alias      string    `yaml:"alias"`
	Keys       []string  `yaml:"keys"`
	Aggregates []ItemDoc `yaml:"aggregates"`
}

// OrderDoc is one ordering term.
type OrderDoc struct {
	Alias string  `yaml:"alias"`
	By    ExprDoc `yaml:"by"`
	Desc  bool    `yaml:"desc"`
}

// SetDoc combines the query with pre-rendered SQL.
type SetDoc struct {
	Kind string `yaml:"kind"`
	SubqueryDoc `yaml:",inline"`
}

var (
	opByName  = make(map[string]OpKind)
	aggByName = make(map[string]AggKind)
	setByName = map[string]SetKind{
		"union":     Union,
		"union_all": UnionAll,
		"intersect": Intersect,
		"except":    Except,
	}
	operatorByName = map[string]Operator{
		"eq":           Eq,
		"ne":           Ne,
		"lt":           Lt,
		"le":           Le,
		"gt":           Gt,
		"ge":           Ge,
		"like":         Like,
		"not_like":     NotLike,
		"null":         IsNull,
		"not_null":     IsNotNull,
		"in":           In,
		"not_in":       NotIn,
		"exists":       Exists,
		"not_exists":   NotExists,
		"in_query":     InQuery,
		"not_in_query": NotInQuery,
	}
)

func init() {
	for k := OpInvalid + 1; k < opLast; k++ {
		opByName[k.String()] = k
	}
	for k := AggSum; int(k) < len(aggNames); k++ {
		aggByName[k.String()] = k
	}
}

// DecodeYAML reads a Document.
func DecodeYAML(r io.Reader) (Document, error) {
	var doc Document
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return Document{}, fmt.Errorf("query: decode yaml: %w", err)
	}
	return doc, nil
}

// Build converts the document into a Query. Relationship joins are
// resolved through r.
func (d QueryDoc) Build(r Resolver) (*Query, error) {
	if d.From == "" {
		return nil, fmt.Errorf("query: %s: missing from", d.label())
	}
	q := FromAs(d.From, d.Alias)
	tables := map[string]string{d.Alias: d.From}
	for _, s := range d.CrossJoins {
		q.CrossJoin(s.Table, s.Alias)
		tables[s.Alias] = s.Table
	}
	for _, jd := range d.Joins {
		j, err := jd.build(r, tables)
		if err != nil {
			return nil, fmt.Errorf("query: %s: %w", d.label(), err)
		}
		q.Join(j)
		tables[j.Alias] = j.Table
	}
	for _, cd := range d.Where {
		c, err := cd.build()
		if err != nil {
			return nil, fmt.Errorf("query: %s: where: %w", d.label(), err)
		}
		q.Where(c)
	}
	if g := d.GroupBy; g != nil {
		q.GroupBy(g.Alias, g.Keys...)
		for _, it := range g.Aggregates {
			x, err := it.Expr.build()
			if err != nil {
				return nil, fmt.Errorf("query: %s: group_by: %w", d.label(), err)
			}
			agg, ok := x.(Agg)
			if !ok {
				return nil, fmt.Errorf("query: %s: group_by: %q is not an aggregate", d.label(), it.Name)
			}
			q.Aggregate(it.Name, agg)
		}
	}
	for _, cd := range d.Having {
		c, err := cd.build()
		if err != nil {
			return nil, fmt.Errorf("query: %s: having: %w", d.label(), err)
		}
		q.HavingWhere(c)
	}
	for _, od := range d.OrderBy {
		x, err := od.By.build()
		if err != nil {
			return nil, fmt.Errorf("query: %s: order_by: %w", d.label(), err)
		}
		q.Order(Order{Alias: od.Alias, X: x, Desc: od.Desc})
	}
	for alias, items := range d.Select {
		for _, it := range items {
			x, err := it.Expr.build()
			if err != nil {
				return nil, fmt.Errorf("query: %s: select: %w", d.label(), err)
			}
			q.Select(alias, Item{Name: it.Name, X: x})
		}
	}
	if d.Distinct {
		q.Unique()
	}
	if d.Count {
		q.CountRows()
	}
	if d.Skip != nil {
		q.Skip(*d.Skip)
	}
	if d.Take != nil {
		q.Take(*d.Take)
	}
	if s := d.Combine; s != nil {
		kind, ok := setByName[s.Kind]
		if !ok {
			return nil, sqlprov.NewUnsupportedError("set operation", s.Kind)
		}
		q.Combine(kind, Subquery{SQL: s.SQL, Args: s.Args})
	}
	return q, nil
}

func (d QueryDoc) label() string {
	if d.Name != "" {
		return d.Name
	}
	return d.From
}

func (jd JoinDoc) build(r Resolver, tables map[string]string) (Join, error) {
	var (
		j   Join
		err error
	)
	if jd.Child != "" {
		child, rerr := r.Resolve(jd.Child)
		if rerr != nil {
			return Join{}, rerr
		}
		j, err = Child(child, jd.Relationship, jd.Source, jd.Alias)
	} else {
		name, ok := tables[jd.Source]
		if !ok {
			return Join{}, sqlprov.NewInvariantError("unknown alias", "join source %q is not declared", jd.Source)
		}
		t, rerr := r.Resolve(name)
		if rerr != nil {
			return Join{}, rerr
		}
		rel, ok := t.Relationship(jd.Relationship)
		if !ok {
			return Join{}, &schema.LookupError{Table: t.FullName(), Column: jd.Relationship}
		}
		j, err = Parent(rel, jd.Source, jd.Alias)
	}
	if err != nil {
		return Join{}, err
	}
	j.Outer = jd.Outer
	return j, nil
}

func (cd ConditionDoc) build() (Condition, error) {
	if cd.Const != nil {
		if *cd.Const {
			return Always(), nil
		}
		return Never(), nil
	}
	if len(cd.And) > 0 && len(cd.Or) > 0 {
		return Condition{}, sqlprov.NewInvariantError("condition", "and and or in one node")
	}
	c := Condition{Kind: AndCond}
	preds := cd.And
	if len(cd.Or) > 0 {
		c.Kind, preds = OrCond, cd.Or
	}
	for _, pd := range preds {
		p, err := pd.build()
		if err != nil {
			return Condition{}, err
		}
		c.Predicates = append(c.Predicates, p)
	}
	for _, nd := range cd.Nested {
		n, err := nd.build()
		if err != nil {
			return Condition{}, err
		}
		c.Nested = append(c.Nested, n)
	}
	return c, nil
}

func (pd PredicateDoc) build() (Predicate, error) {
	op, ok := operatorByName[pd.Op]
	if !ok {
		return Predicate{}, sqlprov.NewUnsupportedError("operator", pd.Op)
	}
	field, err := pd.Field.build()
	if err != nil {
		return Predicate{}, err
	}
	p := Predicate{Alias: pd.Alias, Field: field, Op: op, Operand: pd.Value}
	switch {
	case pd.Subquery != nil:
		p.Operand = Subquery{SQL: pd.Subquery.SQL, Args: pd.Subquery.Args}
	case pd.Column != nil:
		if p.Operand, err = pd.Column.build(); err != nil {
			return Predicate{}, err
		}
	}
	return p, nil
}

func (e ExprDoc) build() (Expr, error) {
	x, err := e.base()
	if err != nil || e.Cast == "" {
		return x, err
	}
	to, err := schema.ParseDataType(e.Cast)
	if err != nil {
		return nil, err
	}
	return Cast{X: x, To: to}, nil
}

func (e ExprDoc) base() (Expr, error) {
	switch {
	case e.Fn != "":
		args := make([]Expr, len(e.Args))
		for i, a := range e.Args {
			x, err := a.build()
			if err != nil {
				return nil, err
			}
			args[i] = x
		}
		return call(e.Fn, args)
	case e.Column != "" && e.Alias != "":
		return Col{Alias: e.Alias, Name: e.Column}, nil
	case e.Column != "":
		return Ref{Name: e.Column}, nil
	case e.Value != nil:
		return Const{Value: e.Value}, nil
	}
	return nil, nil
}

func call(fn string, args []Expr) (Expr, error) {
	if fn == "key" {
		if len(args) != 1 {
			return nil, sqlprov.NewInvariantError("arity", "key takes 1 argument, got %d", len(args))
		}
		return Key{X: args[0]}, nil
	}
	if kind, ok := aggByName[fn]; ok {
		switch len(args) {
		case 0:
			return Agg{Kind: kind}, nil
		case 1:
			return Agg{Kind: kind, Arg: args[0]}, nil
		}
		return nil, sqlprov.NewInvariantError("arity", "%s takes at most 1 argument, got %d", fn, len(args))
	}
	kind, ok := opByName[fn]
	if !ok {
		return nil, sqlprov.NewUnsupportedError("function", fn)
	}
	if len(args) == 0 {
		return nil, sqlprov.NewInvariantError("arity", "%s needs a target", fn)
	}
	x := op(kind, args[0])
	if len(args) > 1 {
		x.Args = args[1:]
	}
	if err := ValidateExpr(x); err != nil {
		return nil, err
	}
	return x, nil
}

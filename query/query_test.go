package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/sqlprov"
	"github.com/syssam/sqlprov/schema"
)

func TestValidateExpr(t *testing.T) {
	tests := []struct {
		name    string
		expr    Expr
		wantErr func(error) bool
	}{
		{name: "Column", expr: C("Name")},
		{name: "Nested", expr: Upper(Trim(Concat(C("first"), V(" "))))},
		{name: "Replace", expr: Replace(C("Name"), V("a"), V("b"))},
		{name: "Case", expr: Case{When: And(EQ(C("active"), true)), Then: V(1), Else: V(0)}},
		{name: "CountStar", expr: Count(nil)},
		{name: "Nil", expr: nil, wantErr: sqlprov.IsInvariant},
		{name: "EmptyColumn", expr: AC("e", ""), wantErr: sqlprov.IsInvariant},
		{name: "Arity", expr: Op{Kind: OpReplace, Target: C("a"), Args: []Expr{V("x")}}, wantErr: sqlprov.IsInvariant},
		{name: "UnknownOp", expr: Op{Kind: opLast, Target: C("a")}, wantErr: sqlprov.IsUnsupported},
		{name: "CastUnknown", expr: Cast{X: C("a")}, wantErr: sqlprov.IsInvariant},
		{name: "SumWithoutOperand", expr: Sum(nil), wantErr: sqlprov.IsInvariant},
		{name: "NestedAggregate", expr: Max(Sum(C("x"))), wantErr: sqlprov.IsInvariant},
		{name: "BadCaseCondition", expr: Case{When: And(IN(C("id"), 5)), Then: V(1), Else: V(0)}, wantErr: sqlprov.IsInvariant},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateExpr(tt.expr)
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, tt.wantErr(err), err.Error())
		})
	}
}

func TestOpKind(t *testing.T) {
	assert.Equal(t, "substring_len", OpSubstringLen.String())
	assert.Equal(t, 2, OpIndexOfFrom.Arity())
	assert.Equal(t, 0, OpYear.Arity())
	assert.Equal(t, -1, opLast.Arity())
	for k := OpReplace; k < opLast; k++ {
		assert.GreaterOrEqual(t, k.Arity(), 0, k.String())
	}
	assert.True(t, Subtract(C("a"), V(1)).Reverse().Reversed)
}

func TestConditionValidate(t *testing.T) {
	aliases := map[string]bool{"": true, "d": true}
	ok := And(
		EQ(C("id"), 1),
		NotNull(C("Name")),
		IN(C("id"), []int{1, 2}),
		EQ(C("department_id"), AC("d", "id")),
		InSub(C("id"), Subquery{SQL: "SELECT id FROM t WHERE x = ?", Args: []any{1}}),
	).With(Or(LIKE(C("Name"), "A%")), Always())
	require.NoError(t, validateCondition(ok, aliases))

	bad := []Condition{
		And(EQ(C("id"), 1).On("x")),
		And(EQ(C("id"), AC("x", "id"))),
		And(isNullWithOperand(C("id"))),
		And(EXISTS(Subquery{}), Predicate{Field: C("id"), Op: InQuery, Operand: []int{1}}),
		Or().With(And(NotIN(C("id"), "1,2"))),
	}
	for i, c := range bad {
		err := validateCondition(c, aliases)
		assert.True(t, sqlprov.IsInvariant(err), "case %d: %v", i, err)
	}

	err := validateCondition(And(Predicate{Field: C("id"), Operand: 1}), aliases)
	assert.True(t, sqlprov.IsUnsupported(err))

	assert.Equal(t, "<>", Ne.String())
	assert.Equal(t, "NOT EXISTS", NotExists.String())
	assert.True(t, NotInQuery.Nested())
}

// isNullWithOperand builds an IS NULL predicate that wrongly carries an operand.
func isNullWithOperand(field Expr) Predicate {
	return Predicate{Field: field, Op: IsNull, Operand: 1}
}

func departmentsRel() *schema.Relationship {
	return &schema.Relationship{
		Name:       "FK_Employees_Departments",
		Columns:    []string{"department_id"},
		RefSchema:  "dbo",
		RefTable:   "Departments",
		RefColumns: []string{"id"},
	}
}

func TestJoins(t *testing.T) {
	j, err := Parent(departmentsRel(), "e", "d")
	require.NoError(t, err)
	assert.Equal(t, "dbo.Departments", j.Table)
	assert.Equal(t, ChildToParent, j.Direction)
	assert.Equal(t, []schema.ColumnPair{{Foreign: "department_id", Primary: "id"}}, j.Pairs)
	assert.True(t, j.Left().Outer)
	assert.False(t, j.Outer)

	emp := &schema.Table{Schema: "dbo", Name: "Employees", Relationships: []*schema.Relationship{departmentsRel()}}
	j, err = Child(emp, "FK_Employees_Departments", "d", "e")
	require.NoError(t, err)
	assert.Equal(t, "dbo.Employees", j.Table)
	assert.Equal(t, ParentToChild, j.Direction)

	_, err = Child(emp, "FK_missing", "d", "e")
	require.True(t, schema.IsLookupError(err))

	_, err = Parent(&schema.Relationship{Name: "broken", Columns: []string{"a"}}, "", "p")
	require.Error(t, err)
}

func TestQueryValidate(t *testing.T) {
	join, err := Parent(departmentsRel(), "e", "d")
	require.NoError(t, err)
	valid := func() *Query {
		return FromAs("dbo.Employees", "e").
			Join(join).
			Where(And(GT(C("id"), 10).On("e"))).
			Columns("e", "id", "Name").
			Columns("d", "department_name").
			Order(Desc(C("hire_date")).On("e"))
	}
	require.NoError(t, valid().Skip(10).Take(5).Validate())
	assert.Equal(t, []string{"e", "r", "d"}, valid().CrossJoin("dbo.Regions", "r").Aliases())

	tests := []struct {
		name string
		q    *Query
		rule string
	}{
		{name: "NoTable", q: From(""), rule: "missing table"},
		{name: "DuplicateAlias", q: valid().CrossJoin("dbo.Regions", "d"), rule: "unique alias"},
		{name: "JoinBeforeSource", q: FromAs("dbo.Employees", "e").Join(Join{Table: "t", Source: "x", Alias: "y", Pairs: join.Pairs}), rule: "join source"},
		{name: "JoinPairs", q: FromAs("dbo.Employees", "e").Join(Join{Table: "t", Source: "e", Alias: "y"}), rule: "join columns"},
		{name: "FilterAlias", q: valid().Where(And(EQ(C("id"), 1).On("z"))), rule: "unknown alias"},
		{name: "ProjectionAlias", q: valid().Columns("z", "id"), rule: "unknown alias"},
		{name: "OrderAlias", q: valid().Order(Asc(C("id")).On("z")), rule: "unknown alias"},
		{name: "PagingWithoutOrder", q: From("t").Skip(10).Take(5), rule: "paging requires ordering"},
		{name: "NegativeTake", q: From("t").Take(-1), rule: "paging bounds"},
		{name: "HavingWithoutGrouping", q: From("t").HavingWhere(And(GT(Count(nil), 1))), rule: "having requires grouping"},
		{name: "HavingOnColumn", q: From("t").GroupBy("", "a").HavingWhere(And(GT(C("b"), 1))), rule: "having operand"},
		{name: "HavingOnOtherKey", q: From("t").GroupBy("", "department_id").HavingWhere(And(GT(Key{X: C("hire_date")}, 2))), rule: "having operand"},
		{name: "HavingKeyOfOtherAlias", q: FromAs("t", "e").CrossJoin("u", "x").GroupBy("e", "a").HavingWhere(And(GT(Key{X: AC("x", "a")}, 2))), rule: "having operand"},
		{name: "HavingKeyNotColumn", q: From("t").GroupBy("", "a").HavingWhere(And(GT(Key{X: V(1)}, 2))), rule: "having operand"},
		{name: "HavingNestedKey", q: From("t").GroupBy("", "a").HavingWhere(And(GT(Count(nil), 1)).With(And(EQ(Key{X: C("b")}, 1)))), rule: "having operand"},
		{name: "GroupingKeys", q: From("t").Aggregate("n", Count(nil)), rule: "grouping keys"},
		{name: "EmptySetOp", q: From("t").Combine(Union, Subquery{}), rule: "set operation"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.q.Validate()
			require.Error(t, err)
			var ie *sqlprov.InvariantError
			require.ErrorAs(t, err, &ie)
			assert.Equal(t, tt.rule, ie.Rule)
		})
	}

	err = From("t").Skip(10).Take(5).Validate()
	assert.EqualError(t, err, "sqlprov: paging requires ordering: skip=10 take=5")
}

func TestQueryBuilder(t *testing.T) {
	q := From("dbo.Employees").Skip(0)
	assert.False(t, q.Paging.HasSkip, "skip 0 is no skip")
	q.Skip(5).Take(0)
	assert.Equal(t, Paging{Skip: 5, HasSkip: true, HasTake: true}, q.Paging)
	assert.True(t, q.Paging.Paged())

	q = From("dbo.Employees").GroupBy("", "department_id").Aggregate("total", Count(nil))
	require.NoError(t, q.HavingWhere(And(GT(Count(nil), 2), EQ(Key{X: C("department_id")}, 1))).Validate())
	q = FromAs("dbo.Employees", "e").GroupBy("e", "department_id")
	require.NoError(t, q.HavingWhere(And(EQ(Key{X: AC("e", "DEPARTMENT_ID")}, 1), EQ(Key{X: C("department_id")}, 2).On("e"))).Validate())
	assert.Len(t, q.Grouping.Aggs, 1)

	q = From("t").Unique().CountRows().Combine(UnionAll, Subquery{SQL: "SELECT 1"})
	assert.True(t, q.Distinct)
	assert.True(t, q.Count)
	assert.Equal(t, "UNION ALL", q.SetOp.Kind.String())
}

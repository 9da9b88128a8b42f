package provider

import (
	"context"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/sqlprov"
	"github.com/syssam/sqlprov/changeset"
	"github.com/syssam/sqlprov/dialect"
	entsql "github.com/syssam/sqlprov/dialect/sql"
	"github.com/syssam/sqlprov/dialect/sql/sqlgen"
	"github.com/syssam/sqlprov/query"
	"github.com/syssam/sqlprov/schema"
)

const (
	selectByName = `SELECT "id", "Name" FROM "dbo"."Employees" WHERE ("Name" = $1)`
	deleteByID   = `DELETE FROM "dbo"."Employees" WHERE ("id" = $1)`
	updateName   = `UPDATE "dbo"."Employees" SET "Name" = $1 WHERE "id" = $2`
)

func employees(t *testing.T) *schema.Table {
	t.Helper()
	m := schema.NewMapper(dialect.Postgres)
	integer, err := m.Map("integer")
	require.NoError(t, err)
	varchar, err := m.Map("varchar(100)")
	require.NoError(t, err)
	return &schema.Table{
		Schema: "dbo",
		Name:   "Employees",
		Columns: []*schema.Column{
			{Name: "id", Type: integer, PrimaryKey: true, AutoNumber: true},
			{Name: "Name", Type: varchar},
		},
		PrimaryKey: []string{"id"},
	}
}

func hr(t *testing.T) *schema.Cache {
	c := schema.NewCache()
	c.PutTable(employees(t))
	return c
}

func byName(name string) *query.Query {
	return query.From("dbo.Employees").
		Columns("", "id", "Name").
		Where(query.And(query.EQ(query.C("Name"), name)))
}

// countingCache records the calls made to a statement cache.
type countingCache struct {
	sqlprov.Cache[*sqlgen.Statement]
	hits, adds, purges int
}

func (c *countingCache) Get(k sqlprov.CacheKey) (*sqlgen.Statement, bool) {
	stmt, ok := c.Cache.Get(k)
	if ok {
		c.hits++
	}
	return stmt, ok
}

func (c *countingCache) Add(k sqlprov.CacheKey, stmt *sqlgen.Statement) {
	c.adds++
	c.Cache.Add(k, stmt)
}

func (c *countingCache) Purge() {
	c.purges++
	c.Cache.Purge()
}

func newCountingCache(t *testing.T) *countingCache {
	t.Helper()
	c, err := NewStatementCache(16)
	require.NoError(t, err)
	return &countingCache{Cache: c}
}

func mockProvider(t *testing.T, opts ...Option) (*Provider, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	opts = append([]Option{WithDriver(entsql.OpenDB(dialect.Postgres, db))}, opts...)
	p, err := New(sqlprov.DefaultConfig(), hr(t), opts...)
	require.NoError(t, err)
	return p, mock
}

func TestNew(t *testing.T) {
	cfg := sqlprov.DefaultConfig()
	cfg.Dialect = "oracle"
	_, err := New(cfg, hr(t))
	require.Error(t, err)

	_, err = New(sqlprov.DefaultConfig(), nil)
	require.Error(t, err)

	_, err = New(sqlprov.DefaultConfig(), hr(t), WithLogger(nil))
	require.Error(t, err)

	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	_, err = New(sqlprov.DefaultConfig(), hr(t), WithDriver(entsql.OpenDB(dialect.MySQL, db)))
	require.ErrorContains(t, err, "does not match")

	cfg = sqlprov.DefaultConfig()
	cfg.Dialect = "mssql"
	cfg.ServerVersion = 10
	p, err := New(cfg, hr(t))
	require.NoError(t, err)
	assert.Equal(t, sqlgen.MSSQL{ServerVersion: 10}, p.Generator().Dialect())
	assert.Nil(t, p.Driver())
	assert.Equal(t, entsql.StatsSnapshot{}, p.Stats())
}

func TestSelectCached(t *testing.T) {
	ctx := context.Background()
	c := newCountingCache(t)
	p, err := New(sqlprov.DefaultConfig(), hr(t), WithCache(c))
	require.NoError(t, err)

	first, err := p.Select(ctx, byName("Ann"))
	require.NoError(t, err)
	assert.Equal(t, selectByName, first.SQL)
	second, err := p.Select(ctx, byName("Ann"))
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, c.hits)
	assert.Equal(t, 1, c.adds)

	second.Params[0].Value = "changed"
	third, err := p.Select(ctx, byName("Ann"))
	require.NoError(t, err)
	assert.Equal(t, "Ann", third.Params[0].Value)

	other, err := p.Select(ctx, byName("Bob"))
	require.NoError(t, err)
	assert.Equal(t, "Bob", other.Params[0].Value)
	assert.Equal(t, 2, c.adds)

	del, err := p.Delete(ctx, query.From("dbo.Employees").Where(query.And(query.EQ(query.C("id"), 1))))
	require.NoError(t, err)
	assert.Equal(t, deleteByID, del.SQL)
	assert.Equal(t, 3, c.adds)
	assert.Zero(t, c.purges)
}

// money is a decimal-style value with unexported state.
type money struct{ cents int64 }

func (m money) Value() (driver.Value, error) { return m.cents, nil }

func TestCacheSkipsOpaqueValues(t *testing.T) {
	ctx := context.Background()
	c := newCountingCache(t)
	p, err := New(sqlprov.DefaultConfig(), hr(t), WithCache(c))
	require.NoError(t, err)

	salary := func(v any) *query.Query {
		return query.From("dbo.Employees").Columns("", "id").Where(query.And(query.EQ(query.C("id"), v)))
	}
	for _, v := range []any{money{100}, money{999}, &money{999}} {
		stmt, err := p.Select(ctx, salary(v))
		require.NoError(t, err)
		assert.Equal(t, v, stmt.Params[0].Value)
	}
	for _, v := range []money{{5}, {6}} {
		stmt, err := p.Select(ctx, query.From("dbo.Employees").Where(query.And(query.IN(query.C("id"), []money{v}))))
		require.NoError(t, err)
		assert.Equal(t, v, stmt.Params[0].Value)
	}
	assert.Zero(t, c.adds)
	assert.Zero(t, c.hits)

	first, err := p.Select(ctx, salary(1))
	require.NoError(t, err)
	assert.Equal(t, 1, first.Params[0].Value)
	second, err := p.Select(ctx, salary(int64(1)))
	require.NoError(t, err)
	assert.Equal(t, int64(1), second.Params[0].Value)
	assert.Equal(t, 2, c.adds)
	assert.Zero(t, c.hits)

	at := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	for range 2 {
		stmt, err := p.Select(ctx, salary(at))
		require.NoError(t, err)
		assert.Equal(t, at, stmt.Params[0].Value)
	}
	assert.Equal(t, 3, c.adds)
	assert.Equal(t, 1, c.hits)
}

func TestSignature(t *testing.T) {
	base := func() *query.Query { return query.From("dbo.Employees") }
	tests := []struct {
		name string
		q    *query.Query
		ok   bool
	}{
		{name: "Plain", q: base().Where(query.And(query.IN(query.C("id"), []int{1, 2}))), ok: true},
		{name: "ColumnOperand", q: base().Where(query.And(query.Predicate{Field: query.C("id"), Op: query.Eq, Operand: query.Add(query.C("id"), query.V(1))})), ok: true},
		{name: "OpaqueList", q: base().Where(query.And(query.IN(query.C("id"), []any{1, money{1}}))), ok: false},
		{name: "Bytes", q: base().Where(query.And(query.EQ(query.C("Name"), []byte("a")))), ok: true},
		{name: "Subquery", q: base().Where(query.And(query.InSub(query.C("id"), query.Subquery{SQL: "SELECT ?", Args: []any{money{1}}}))), ok: false},
		{name: "Projection", q: base().Select("", query.Item{Name: "x", X: query.Add(query.C("id"), query.V(money{1}))}), ok: false},
		{name: "Case", q: base().Select("", query.Item{Name: "x", X: query.Case{
			When: query.And(query.EQ(query.C("id"), money{1})),
			Then: query.V(1),
			Else: query.V(2),
		}}), ok: false},
		{name: "SetOp", q: base().Combine(query.Union, query.Subquery{SQL: "SELECT ?", Args: []any{money{1}}}), ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := signature(tt.q)
			assert.Equal(t, tt.ok, ok)
		})
	}

	a, _ := signature(base().Where(query.And(query.EQ(query.C("id"), 1))))
	b, _ := signature(base().Where(query.And(query.EQ(query.C("id"), int64(1)))))
	assert.NotEqual(t, a, b)
}

func TestCachePurgedOnSchemaChange(t *testing.T) {
	ctx := context.Background()
	c := newCountingCache(t)
	sc := hr(t)
	p, err := New(sqlprov.DefaultConfig(), sc, WithCache(c))
	require.NoError(t, err)

	_, err = p.Select(ctx, byName("Ann"))
	require.NoError(t, err)
	require.Zero(t, c.purges)

	sc.PutTable(employees(t))
	_, err = p.Select(ctx, byName("Ann"))
	require.NoError(t, err)
	assert.Equal(t, 1, c.purges)
	assert.Zero(t, c.hits)
	assert.Equal(t, 2, c.adds)

	p.PurgeCache()
	assert.Equal(t, 2, c.purges)
}

func TestCacheDisabled(t *testing.T) {
	cfg := sqlprov.DefaultConfig()
	cfg.CacheSize = 0
	p, err := New(cfg, hr(t))
	require.NoError(t, err)
	assert.IsType(t, nopCache{}, p.cache)
	for range 2 {
		stmt, err := p.Select(context.Background(), byName("Ann"))
		require.NoError(t, err)
		assert.Equal(t, selectByName, stmt.SQL)
	}
}

func TestSelectLoadsTables(t *testing.T) {
	ctx := context.Background()
	var calls int
	sc := schema.NewCache(schema.WithLoader(schema.LoaderFunc(func(_ context.Context, name string) (*schema.Table, error) {
		calls++
		if name != "dbo.Employees" {
			return nil, nil
		}
		return employees(t), nil
	})))
	p, err := New(sqlprov.DefaultConfig(), sc)
	require.NoError(t, err)

	stmt, err := p.Select(ctx, byName("Ann"))
	require.NoError(t, err)
	assert.Equal(t, selectByName, stmt.SQL)
	_, err = p.Select(ctx, byName("Ann"))
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	_, err = p.Select(ctx, query.From("dbo.Payroll"))
	assert.True(t, schema.IsLookupError(err))
	_, err = p.Subquery(ctx, query.From("dbo.Employees").CrossJoin("dbo.Payroll", "x"))
	assert.True(t, schema.IsLookupError(err))

	sub, err := p.Subquery(ctx, query.From("dbo.Employees").Columns("", "id").Where(query.And(query.EQ(query.C("Name"), "Ann"))))
	require.NoError(t, err)
	assert.Equal(t, query.Subquery{SQL: `SELECT "id" FROM "dbo"."Employees" WHERE ("Name" = ?)`, Args: []any{"Ann"}}, sub)
}

func TestRows(t *testing.T) {
	p, mock := mockProvider(t)
	mock.ExpectQuery(regexp.QuoteMeta(selectByName)).
		WithArgs("Ann").
		WillReturnRows(sqlmock.NewRows([]string{"id", "Name"}).AddRow(int64(1), "Ann"))

	rows, err := p.Rows(context.Background(), byName("Ann"))
	require.NoError(t, err)
	assert.Equal(t, []map[string]any{{"id": int64(1), "Name": "Ann"}}, rows)
	assert.Equal(t, int64(1), p.Stats().TotalQueries)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteRows(t *testing.T) {
	p, mock := mockProvider(t)
	mock.ExpectExec(regexp.QuoteMeta(deleteByID)).
		WithArgs(1).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := p.DeleteRows(context.Background(), query.From("dbo.Employees").Where(query.And(query.EQ(query.C("id"), 1))))
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.Equal(t, int64(1), p.Stats().TotalExecs)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFlush(t *testing.T) {
	p, mock := mockProvider(t)
	tr := p.Tracker()
	e, err := tr.Attach("dbo.Employees", map[string]any{"id": 7, "Name": "Ann"})
	require.NoError(t, err)
	require.NoError(t, e.Set("Name", "Bob"))

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(updateName)).
		WithArgs("Bob", 7).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, p.Flush(context.Background(), tr.ChangeList()))
	assert.Equal(t, changeset.Unchanged, e.State())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNoDriver(t *testing.T) {
	ctx := context.Background()
	p, err := New(sqlprov.DefaultConfig(), hr(t))
	require.NoError(t, err)

	_, err = p.Rows(ctx, byName("Ann"))
	assert.True(t, errors.Is(err, ErrNoDriver))
	_, err = p.DeleteRows(ctx, query.From("dbo.Employees"))
	assert.True(t, errors.Is(err, ErrNoDriver))
	_, err = p.Executor()
	assert.True(t, errors.Is(err, ErrNoDriver))
	assert.True(t, errors.Is(p.Flush(ctx, nil), ErrNoDriver))
}

func TestLock(t *testing.T) {
	cfg := sqlprov.DefaultConfig()
	cfg.Dialect = "sqlite3"
	p, err := New(cfg, hr(t))
	require.NoError(t, err)
	unlock := p.Lock()
	assert.False(t, p.mu.TryLock())
	unlock()
	require.True(t, p.mu.TryLock())
	p.mu.Unlock()

	p, err = New(sqlprov.DefaultConfig(), hr(t))
	require.NoError(t, err)
	unlock = p.Lock()
	require.True(t, p.mu.TryLock())
	p.mu.Unlock()
	unlock()
}

package sqlgen

import (
	stdsql "database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/sqlprov"
	"github.com/syssam/sqlprov/dialect"
	"github.com/syssam/sqlprov/query"
	"github.com/syssam/sqlprov/schema"
)

func values(ps []Param) []any {
	vs := make([]any, len(ps))
	for i, p := range ps {
		vs[i] = p.Value
	}
	return vs
}

func TestTmpl(t *testing.T) {
	a, b := Bind("x", schema.String), Bind(1, schema.Int)
	f := Tmpl("F({1}, {0}, {1}) {", a, b)
	assert.Equal(t, "F("+marker+", "+marker+", "+marker+") {", f.SQL)
	assert.Equal(t, []any{1, "x", 1}, values(f.Params))

	j := Join(" AND ", a, Text("y"), b)
	assert.Equal(t, marker+" AND y AND "+marker, j.SQL)
	assert.Equal(t, []any{"x", 1}, values(j.Params))
	assert.True(t, Frag{}.Empty())

	assert.Panics(t, func() { Tmpl("{2}", a) })
}

func TestSplice(t *testing.T) {
	f, err := splice(query.Subquery{
		SQL:  `SELECT 1 FROM [a?] WHERE x = ? AND y = '?' AND "z?" = ?`,
		Args: []any{1, "two"},
	})
	require.NoError(t, err)
	assert.Equal(t, `SELECT 1 FROM [a?] WHERE x = `+marker+` AND y = '?' AND "z?" = `+marker, f.SQL)
	assert.Equal(t, []any{1, "two"}, values(f.Params))
	assert.Equal(t, schema.String, f.Params[1].Type)

	_, err = splice(query.Subquery{SQL: "SELECT ? , ?", Args: []any{1}})
	require.True(t, sqlprov.IsInvariant(err))
	_, err = splice(query.Subquery{SQL: "SELECT " + marker})
	require.True(t, sqlprov.IsInvariant(err))

	sub := unsplice(f)
	assert.Equal(t, `SELECT 1 FROM [a?] WHERE x = ? AND y = '?' AND "z?" = ?`, sub.SQL)
	assert.Equal(t, []any{1, "two"}, sub.Args)
}

func TestFinalize(t *testing.T) {
	f := Concat(Text("a = "), Bind(1, schema.Int), Text(" AND b = "), Bind("x", schema.String))

	stmt, err := finalize(Postgres{}, f)
	require.NoError(t, err)
	assert.Equal(t, "a = $1 AND b = $2", stmt.SQL)
	assert.Equal(t, []any{1, "x"}, stmt.Args())

	stmt, err = finalize(MySQL{}, f)
	require.NoError(t, err)
	assert.Equal(t, "a = ? AND b = ?", stmt.SQL)

	stmt, err = finalize(MSSQL{}, f)
	require.NoError(t, err)
	assert.Equal(t, "a = @p1 AND b = @p2", stmt.SQL)
	assert.Equal(t, []any{stdsql.Named("p1", 1), stdsql.Named("p2", "x")}, stmt.Args())
	assert.Equal(t, "p2", stmt.Params[1].Name)

	_, err = finalize(MySQL{}, Frag{SQL: "a = " + marker})
	require.True(t, sqlprov.IsInvariant(err))
}

func TestNewDialect(t *testing.T) {
	for name, want := range map[string]string{
		"postgres":  dialect.Postgres,
		"pgx":       dialect.Postgres,
		"mysql":     dialect.MySQL,
		"sqlite":    dialect.SQLite,
		"sqlite3":   dialect.SQLite,
		"sqlserver": dialect.MSSQL,
	} {
		d, err := NewDialect(name, 0)
		require.NoError(t, err, name)
		assert.Equal(t, want, d.Name())
	}
	d, err := NewDialect(dialect.MSSQL, 10)
	require.NoError(t, err)
	assert.False(t, d.NativeOffset())
	assert.Equal(t, 10, d.Version())

	_, err = NewDialect("oracle", 0)
	require.Error(t, err)
}

func TestQuote(t *testing.T) {
	assert.Equal(t, "[a]]b]", MSSQL{}.Quote("a]b"))
	assert.Equal(t, `"a""b"`, Postgres{}.Quote(`a"b`))
	assert.Equal(t, "`a``b`", MySQL{}.Quote("a`b"))
}

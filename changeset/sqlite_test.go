package changeset

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/syssam/sqlprov"
	"github.com/syssam/sqlprov/dialect"
	entsql "github.com/syssam/sqlprov/dialect/sql"
	"github.com/syssam/sqlprov/dialect/sql/sqlgen"
	"github.com/syssam/sqlprov/schema"
)

func sqliteStore(t *testing.T) (*entsql.Driver, *sqlgen.Generator, *Tracker) {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "flush.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	_, err = db.Exec(`CREATE TABLE employees (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		salary INTEGER
	)`)
	require.NoError(t, err)

	m := schema.NewMapper(dialect.SQLite)
	integer, err := m.Map("INTEGER")
	require.NoError(t, err)
	text, err := m.Map("TEXT")
	require.NoError(t, err)
	c := schema.NewCache()
	c.PutTable(&schema.Table{
		Name: "employees",
		Columns: []*schema.Column{
			{Name: "id", Type: integer, PrimaryKey: true, AutoNumber: true},
			{Name: "name", Type: text},
			{Name: "salary", Type: integer, Nullable: true},
		},
		PrimaryKey: []string{"id"},
	})
	drv := entsql.OpenDB(dialect.SQLite, db)
	return drv, sqlgen.New(sqlgen.SQLite{}, c), NewTracker(c)
}

func readRow(t *testing.T, drv *entsql.Driver, gen *sqlgen.Generator, id any) map[string]any {
	t.Helper()
	stmt, err := gen.SelectByKey("employees", []sqlgen.Assignment{{Column: "id", Value: id}})
	require.NoError(t, err)
	var rows entsql.Rows
	require.NoError(t, drv.Query(context.Background(), stmt.SQL, stmt.Args(), &rows))
	maps, err := entsql.ScanMaps(rows)
	require.NoError(t, err)
	if len(maps) == 0 {
		return nil
	}
	return maps[0]
}

func TestSQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	drv, gen, tr := sqliteStore(t)
	x := NewExecutor(drv, gen)

	e, err := tr.New("employees")
	require.NoError(t, err)
	require.NoError(t, e.Set("name", "Ann"))
	require.NoError(t, e.Set("salary", 100))
	require.NoError(t, x.Flush(ctx, tr.ChangeList()))

	id, ok := e.PrimaryKey()
	require.True(t, ok)
	assert.Equal(t, int64(1), id)
	row := readRow(t, drv, gen, id)
	assert.Equal(t, "Ann", row["name"])
	assert.Equal(t, int64(100), row["salary"])

	require.NoError(t, e.Set("name", "Bob"))
	require.NoError(t, x.Flush(ctx, tr.ChangeList()))
	row = readRow(t, drv, gen, id)
	assert.Equal(t, "Bob", row["name"])
	assert.Equal(t, int64(100), row["salary"])

	e.Delete()
	require.NoError(t, x.Flush(ctx, tr.ChangeList()))
	assert.Nil(t, readRow(t, drv, gen, id))
	assert.Equal(t, Deleted, e.State())
	assert.Equal(t, 1, tr.Prune())
}

func TestSQLitePartialBatchIsNotCommitted(t *testing.T) {
	ctx := context.Background()
	drv, gen, tr := sqliteStore(t)
	x := NewExecutor(drv, gen)

	ok, err := tr.New("employees")
	require.NoError(t, err)
	require.NoError(t, ok.Set("name", "Cid"))
	bad, err := tr.New("employees")
	require.NoError(t, err)
	require.NoError(t, bad.Set("name", nil))
	after, err := tr.New("employees")
	require.NoError(t, err)
	require.NoError(t, after.Set("name", "Dan"))

	err = x.Flush(ctx, tr.ChangeList())
	require.Error(t, err)
	assert.True(t, sqlprov.IsConstraintError(err))
	var me *sqlprov.MutationError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, 1, me.Index)

	var n int
	require.NoError(t, drv.DB().QueryRow("SELECT COUNT(*) FROM employees").Scan(&n))
	assert.Zero(t, n)
	assert.Equal(t, Unchanged, ok.State())
	assert.Equal(t, Created, bad.State())
	assert.Equal(t, Created, after.State())
}

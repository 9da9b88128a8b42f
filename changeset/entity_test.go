package changeset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/sqlprov"
	"github.com/syssam/sqlprov/dialect"
	"github.com/syssam/sqlprov/schema"
)

func hr(t *testing.T) *schema.Cache {
	t.Helper()
	m := schema.NewMapper(dialect.Postgres)
	typ := func(s string) schema.TypeMapping {
		tm, err := m.Map(s)
		require.NoError(t, err)
		return tm
	}
	c := schema.NewCache()
	c.PutTables(
		&schema.Table{
			Schema: "dbo",
			Name:   "Employees",
			Columns: []*schema.Column{
				{Name: "id", Type: typ("integer"), PrimaryKey: true, AutoNumber: true},
				{Name: "Name", Type: typ("varchar(100)")},
				{Name: "department_id", Type: typ("integer"), Nullable: true},
				{Name: "hire_date", Type: typ("timestamp")},
				{Name: "full_label", Type: typ("text"), Computed: true},
			},
			PrimaryKey: []string{"id"},
		},
		&schema.Table{
			Schema: "dbo",
			Name:   "Badges",
			Columns: []*schema.Column{
				{Name: "code", Type: typ("uuid"), PrimaryKey: true},
				{Name: "label", Type: typ("text")},
			},
			PrimaryKey: []string{"code"},
		},
		&schema.Table{
			Schema: "dbo",
			Name:   "Assignments",
			Columns: []*schema.Column{
				{Name: "employee_id", Type: typ("integer"), PrimaryKey: true},
				{Name: "project_id", Type: typ("integer"), PrimaryKey: true},
				{Name: "role", Type: typ("text")},
			},
			PrimaryKey: []string{"employee_id", "project_id"},
		},
	)
	return c
}

func TestEntityStates(t *testing.T) {
	tr := NewTracker(hr(t))
	e, err := tr.Attach("dbo.employees", map[string]any{"ID": 7, "name": "Ann"})
	require.NoError(t, err)
	assert.Equal(t, Unchanged, e.State())
	assert.Empty(t, e.ChangedFields())
	v, ok := e.Get("Name")
	require.True(t, ok)
	assert.Equal(t, "Ann", v)

	require.NoError(t, e.Set("name", "Bob"))
	require.NoError(t, e.Set("hire_date", nil))
	require.NoError(t, e.Set("Name", "Cid"))
	assert.Equal(t, Modified, e.State())
	assert.Equal(t, []string{"Name", "hire_date"}, e.ChangedFields())
	assert.Equal(t, map[string]any{"id": 7, "Name": "Cid", "hire_date": nil}, e.Values())

	e.MarkUnchanged()
	assert.Equal(t, Unchanged, e.State())
	assert.Empty(t, e.ChangedFields())

	e.Delete()
	assert.Equal(t, Delete, e.State())
	var ie *sqlprov.InvariantError
	require.ErrorAs(t, e.Set("Name", "x"), &ie)
	assert.Equal(t, "write after delete", ie.Rule)

	n, err := tr.New("dbo.Employees")
	require.NoError(t, err)
	assert.Equal(t, Created, n.State())
	n.Delete()
	assert.Equal(t, Deleted, n.State())
	assert.Equal(t, "deleted", n.State().String())
}

func TestEntitySetErrors(t *testing.T) {
	tr := NewTracker(hr(t))
	e, err := tr.Attach("dbo.Employees", map[string]any{"id": 7})
	require.NoError(t, err)
	var ie *sqlprov.InvariantError

	require.ErrorAs(t, e.Set("full_label", "x"), &ie)
	assert.Equal(t, "read-only column", ie.Rule)
	require.ErrorAs(t, e.Set("id", 8), &ie)
	assert.Equal(t, "read-only column", ie.Rule)
	assert.True(t, schema.IsLookupError(e.Set("salary", 1)))
	assert.Equal(t, Unchanged, e.State())

	a, err := tr.Attach("dbo.Assignments", map[string]any{"employee_id": 7, "project_id": 1})
	require.NoError(t, err)
	require.ErrorAs(t, a.Set("project_id", 2), &ie)
	assert.Equal(t, "key column", ie.Rule)
	require.NoError(t, a.Set("role", "lead"))

	c, err := tr.New("dbo.Assignments")
	require.NoError(t, err)
	require.NoError(t, c.Set("project_id", 2))
	assert.Equal(t, Created, c.State())
}

func TestEntityPrimaryKey(t *testing.T) {
	tr := NewTracker(hr(t))
	e, err := tr.Attach("dbo.Employees", map[string]any{"id": 7})
	require.NoError(t, err)
	pk, ok := e.PrimaryKey()
	require.True(t, ok)
	assert.Equal(t, 7, pk)

	e.SetPrimaryKey(nil, false)
	_, ok = e.PrimaryKey()
	assert.False(t, ok)
	e.SetPrimaryKey(int64(9), true)
	pk, _ = e.PrimaryKey()
	assert.Equal(t, int64(9), pk)

	a, err := tr.Attach("dbo.Assignments", map[string]any{"employee_id": 7, "project_id": 1})
	require.NoError(t, err)
	pk, ok = a.PrimaryKey()
	require.True(t, ok)
	assert.Equal(t, []any{7, 1}, pk)
	a.SetPrimaryKey([]any{8, 2}, true)
	pk, _ = a.PrimaryKey()
	assert.Equal(t, []any{8, 2}, pk)

	n, err := tr.New("dbo.Employees")
	require.NoError(t, err)
	_, ok = n.PrimaryKey()
	assert.False(t, ok)
}

func TestTracker(t *testing.T) {
	tr := NewTracker(hr(t))
	_, err := tr.Attach("dbo.Employees", map[string]any{"Name": "no key"})
	require.True(t, sqlprov.IsInvariant(err))
	_, err = tr.Attach("dbo.Employees", map[string]any{"id": 1, "salary": 1})
	require.True(t, schema.IsLookupError(err))
	_, err = tr.New("dbo.Payroll")
	require.True(t, schema.IsLookupError(err))
	assert.Zero(t, tr.Len())

	a, err := tr.Attach("dbo.Employees", map[string]any{"id": 1})
	require.NoError(t, err)
	b, err := tr.Attach("dbo.Employees", map[string]any{"id": 2})
	require.NoError(t, err)
	c, err := tr.New("dbo.Employees")
	require.NoError(t, err)
	d, err := tr.AttachPartial("dbo.Employees", map[string]any{"id": 3})
	require.NoError(t, err)
	assert.True(t, d.Partial())
	assert.False(t, a.Partial())

	require.NoError(t, b.Set("Name", "x"))
	a.Delete()
	require.NoError(t, c.Set("Name", "y"))
	assert.Equal(t, []*Entity{a, b, c}, tr.ChangeList())

	a.markDeleted()
	assert.Equal(t, 1, tr.Prune())
	assert.Equal(t, 3, tr.Len())
	assert.Equal(t, []*Entity{b, c}, tr.ChangeList())
}

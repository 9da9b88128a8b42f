package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateTable(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		result := ValidateTable(employees())
		assert.False(t, result.HasErrors(), result.String())
		assert.False(t, result.HasWarnings(), result.String())
		assert.Equal(t, "No issues found", result.String())
		require.NoError(t, result.Err())
	})

	t.Run("Problems", func(t *testing.T) {
		str := TypeMapping{DBType: "text", DataType: String}
		tbl := &Table{
			Name: "broken",
			Columns: []*Column{
				{Name: "a", Type: str},
				{Name: "A", Type: str},
				{Name: "b", Type: TypeMapping{DBType: "geometry"}},
				{Name: "bad\x1aname", Type: str},
			},
			PrimaryKey: []string{"missing"},
			Relationships: []*Relationship{
				{Name: "fk", Columns: []string{"a", "z"}, RefTable: "other", RefColumns: []string{"id"}},
			},
		}
		result := ValidateTable(tbl)
		require.True(t, result.HasErrors())
		out := result.String()
		assert.Contains(t, out, "broken.A: duplicate column name")
		assert.Contains(t, out, `broken.b: no type mapping for "geometry"`)
		assert.Contains(t, out, "invalid column name")
		assert.Contains(t, out, `primary key references non-existent column "missing"`)
		assert.Contains(t, out, `relationship "fk" has 2 local and 1 referenced columns`)
		assert.Contains(t, out, `relationship "fk" references non-existent column "z"`)
		require.Error(t, result.Err())
	})

	t.Run("NoPrimaryKey", func(t *testing.T) {
		result := ValidateTable(&Table{Name: "log"})
		assert.False(t, result.HasErrors())
		require.True(t, result.HasWarnings())
		assert.Equal(t, "log: table has no primary key", result.Warnings[0].Error())

		view := ValidateTable(&Table{Name: "active_users", Kind: View})
		assert.False(t, view.HasWarnings(), "views need no key")
	})
}

func TestValidateSchema(t *testing.T) {
	departments := &Table{
		Schema:     "dbo",
		Name:       "Departments",
		Columns:    []*Column{{Name: "id", Type: TypeMapping{DBType: "int", DataType: Int}, PrimaryKey: true}},
		PrimaryKey: []string{"id"},
	}

	result := ValidateSchema([]*Table{employees(), departments})
	assert.False(t, result.HasErrors(), result.String())

	result = ValidateSchema([]*Table{employees()})
	require.True(t, result.HasErrors())
	assert.Contains(t, result.String(), `references non-existent table "dbo.Departments"`)

	emp := employees()
	emp.Relationships[0].RefColumns = []string{"dept_no"}
	result = ValidateSchema([]*Table{emp, departments, departments})
	out := result.String()
	assert.Contains(t, out, "dbo.Departments: duplicate table name")
	assert.Contains(t, out, `references non-existent column "dept_no" of "dbo.Departments"`)
}

package schema

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/sqlprov/dialect"
)

const hrYAML = `
tables:
  - schema: dbo
    name: Departments
    columns:
      - {name: id, type: int, autonumber: true}
      - {name: department_name, type: nvarchar(50)}
    primary_key: [id]
  - schema: dbo
    name: Employees
    columns:
      - {name: id, type: int, autonumber: true}
      - {name: Name, type: nvarchar(100)}
      - {name: department_id, type: int, nullable: true}
      - {name: hire_date, type: datetime2, default: true}
    primary_key: [ID]
    relationships:
      - name: FK_Employees_Departments
        columns: [department_id]
        ref_table: Departments
        ref_columns: [id]
  - schema: dbo
    name: ActiveEmployees
    view: true
    columns:
      - {name: id, type: int}
`

func TestDecodeYAML(t *testing.T) {
	tables, err := DecodeYAML(strings.NewReader(hrYAML), NewMapper(dialect.MSSQL))
	require.NoError(t, err)
	require.Len(t, tables, 3)

	emp := tables[1]
	assert.Equal(t, "dbo.Employees", emp.FullName())
	id, _ := emp.Column("id")
	assert.True(t, id.PrimaryKey, "key names match case-insensitively")
	assert.True(t, id.AutoNumber)
	hire, _ := emp.Column("hire_date")
	assert.True(t, hire.HasDefault)
	assert.Equal(t, Time, hire.Type.DataType)
	assert.Equal(t, "dbo.Departments", emp.Relationships[0].RefFullName(), "ref schema defaults to the table schema")
	assert.Equal(t, View, tables[2].Kind)

	assert.False(t, ValidateSchema(tables).HasErrors())
}

func TestDecodeYAMLErrors(t *testing.T) {
	_, err := DecodeYAML(strings.NewReader("tables: [\n"), NewMapper(dialect.MSSQL))
	require.ErrorContains(t, err, "schema: decode yaml")

	_, err = DecodeYAML(strings.NewReader("tables:\n  - name: t\n    columns:\n      - {name: g, type: geography}\n"), NewMapper(dialect.MSSQL))
	require.True(t, IsLookupError(err))
}

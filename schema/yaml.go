package schema

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Document is a declared schema, as read from YAML:
//
//	tables:
//	  - schema: dbo
//	    name: Employees
//	    columns:
//	      - {name: id, type: int, autonumber: true}
//	      - {name: department_id, type: int}
//	    primary_key: [id]
//	    relationships:
//	      - name: FK_Employees_Departments
//	        columns: [department_id]
//	        ref_table: Departments
//	        ref_columns: [id]
type Document struct {
	Tables []TableDoc `yaml:"tables"`
}

// TableDoc is one table of a Document.
type TableDoc struct {
	Schema        string            `yaml:"schema"`
	Name          string            `yaml:"name"`
	View          bool              `yaml:"view"`
	Columns       []ColumnDoc       `yaml:"columns"`
	PrimaryKey    []string          `yaml:"primary_key"`
	Relationships []RelationshipDoc `yaml:"relationships"`
}

// ColumnDoc is one column of a TableDoc.
type ColumnDoc struct {
	Name       string `yaml:"name"`
	Type       string `yaml:"type"`
	Nullable   bool   `yaml:"nullable"`
	AutoNumber bool   `yaml:"autonumber"`
	Default    bool   `yaml:"default"`
	Computed   bool   `yaml:"computed"`
}

// RelationshipDoc is one relationship of a TableDoc. An empty RefSchema
// means the schema of the declaring table.
type RelationshipDoc struct {
	Name       string   `yaml:"name"`
	Columns    []string `yaml:"columns"`
	RefSchema  string   `yaml:"ref_schema"`
	RefTable   string   `yaml:"ref_table"`
	RefColumns []string `yaml:"ref_columns"`
}

// DecodeYAML reads a Document and resolves its column types through m.
func DecodeYAML(r io.Reader, m *Mapper) ([]*Table, error) {
	var doc Document
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("schema: decode yaml: %w", err)
	}
	return doc.Build(m)
}

// Build converts the document into tables.
func (d Document) Build(m *Mapper) ([]*Table, error) {
	tables := make([]*Table, 0, len(d.Tables))
	for _, td := range d.Tables {
		t := &Table{Schema: td.Schema, Name: td.Name, PrimaryKey: td.PrimaryKey}
		if td.View {
			t.Kind = View
		}
		keys := make(map[string]bool, len(td.PrimaryKey))
		for _, k := range td.PrimaryKey {
			keys[fold(k)] = true
		}
		for _, cd := range td.Columns {
			tm, err := m.Map(cd.Type)
			if err != nil {
				return nil, &LookupError{Table: t.FullName(), Column: cd.Name, DBType: cd.Type}
			}
			t.Columns = append(t.Columns, &Column{
				Name:       cd.Name,
				Type:       tm,
				Nullable:   cd.Nullable,
				PrimaryKey: keys[fold(cd.Name)],
				AutoNumber: cd.AutoNumber,
				HasDefault: cd.Default,
				Computed:   cd.Computed,
			})
		}
		for _, rd := range td.Relationships {
			ref := rd.RefSchema
			if ref == "" {
				ref = td.Schema
			}
			t.Relationships = append(t.Relationships, &Relationship{
				Name:       rd.Name,
				Columns:    rd.Columns,
				RefSchema:  ref,
				RefTable:   rd.RefTable,
				RefColumns: rd.RefColumns,
			})
		}
		tables = append(tables, t)
	}
	return tables, nil
}

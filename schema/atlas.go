package schema

import (
	"errors"
	"fmt"
	"strings"

	atlas "ariga.io/atlas/sql/schema"
)

// FromAtlas converts an already inspected Atlas schema into tables.
// Native types resolve through m; the first unmapped column type fails the
// conversion.
func FromAtlas(s *atlas.Schema, m *Mapper) ([]*Table, error) {
	if s == nil {
		return nil, errors.New("schema: nil atlas schema")
	}
	tables := make([]*Table, 0, len(s.Tables))
	for _, at := range s.Tables {
		t, err := fromAtlasTable(s.Name, at, m)
		if err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return tables, nil
}

func fromAtlasTable(schemaName string, at *atlas.Table, m *Mapper) (*Table, error) {
	t := &Table{Schema: schemaName, Name: at.Name, Kind: BaseTable}
	keys := make(map[string]bool)
	if at.PrimaryKey != nil {
		for _, p := range at.PrimaryKey.Parts {
			if p.C != nil {
				t.PrimaryKey = append(t.PrimaryKey, p.C.Name)
				keys[p.C.Name] = true
			}
		}
	}
	for _, ac := range at.Columns {
		raw := atlasTypeName(ac.Type)
		tm, err := m.Map(raw)
		if err != nil {
			return nil, &LookupError{Table: t.FullName(), Column: ac.Name, DBType: raw}
		}
		col := &Column{
			Name:       ac.Name,
			Type:       tm,
			PrimaryKey: keys[ac.Name],
			HasDefault: ac.Default != nil,
		}
		if ac.Type != nil {
			col.Nullable = ac.Type.Null
		}
		for _, a := range ac.Attrs {
			switch a.(type) {
			case *atlas.GeneratedExpr:
				col.Computed = true
			default:
				// Driver packages model identity columns with their own
				// attribute types (postgres.Identity, mysql.AutoIncrement).
				name := fmt.Sprintf("%T", a)
				if strings.HasSuffix(name, ".Identity") || strings.HasSuffix(name, ".AutoIncrement") {
					col.AutoNumber = true
				}
			}
		}
		if strings.Contains(NormalizeType(raw), "serial") {
			col.AutoNumber = true
		}
		t.Columns = append(t.Columns, col)
	}
	for _, fk := range at.ForeignKeys {
		r := &Relationship{Name: fk.Symbol}
		for _, c := range fk.Columns {
			r.Columns = append(r.Columns, c.Name)
		}
		for _, c := range fk.RefColumns {
			r.RefColumns = append(r.RefColumns, c.Name)
		}
		if fk.RefTable != nil {
			r.RefTable = fk.RefTable.Name
			r.RefSchema = schemaName
			if fk.RefTable.Schema != nil {
				r.RefSchema = fk.RefTable.Schema.Name
			}
		}
		t.Relationships = append(t.Relationships, r)
	}
	return t, nil
}

// atlasTypeName returns the native type name of an Atlas column type.
func atlasTypeName(ct *atlas.ColumnType) string {
	if ct == nil {
		return ""
	}
	if ct.Raw != "" {
		return ct.Raw
	}
	switch t := ct.Type.(type) {
	case *atlas.IntegerType:
		return t.T
	case *atlas.StringType:
		return t.T
	case *atlas.BoolType:
		return t.T
	case *atlas.TimeType:
		return t.T
	case *atlas.DecimalType:
		return t.T
	case *atlas.FloatType:
		return t.T
	case *atlas.BinaryType:
		return t.T
	case *atlas.JSONType:
		return t.T
	case *atlas.UUIDType:
		return t.T
	case *atlas.UnsupportedType:
		return t.T
	}
	return ""
}

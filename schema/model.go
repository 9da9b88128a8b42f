// Package schema holds the normalized description of a relational database
// that query generation and change tracking work against: tables and views,
// columns with their type mappings, primary keys and relationships.
//
// Tables are immutable once handed to a Cache. Updates to the cache replace
// whole values, so a *Table obtained from it may be shared freely.
package schema

import (
	"fmt"
	"strings"

	"github.com/go-openapi/inflect"
	"golang.org/x/text/cases"
)

// DataType classifies a column type independently of the database.
type DataType uint8

// Data type classifiers.
const (
	Unknown DataType = iota
	String
	Int
	Int64
	Float
	Decimal
	Bool
	Time
	Date
	Bytes
	UUID
	JSON
)

var dataTypeNames = [...]string{
	Unknown: "unknown",
	String:  "string",
	Int:     "int",
	Int64:   "int64",
	Float:   "float",
	Decimal: "decimal",
	Bool:    "bool",
	Time:    "time",
	Date:    "date",
	Bytes:   "bytes",
	UUID:    "uuid",
	JSON:    "json",
}

// String returns the classifier name.
func (t DataType) String() string {
	if int(t) < len(dataTypeNames) {
		return dataTypeNames[t]
	}
	return fmt.Sprintf("DataType(%d)", t)
}

// Numeric reports whether values of the type take part in arithmetic.
func (t DataType) Numeric() bool {
	switch t {
	case Int, Int64, Float, Decimal:
		return true
	}
	return false
}

// ParseDataType returns the classifier with the given name.
func ParseDataType(s string) (DataType, error) {
	for i, n := range dataTypeNames {
		if i != int(Unknown) && strings.EqualFold(n, s) {
			return DataType(i), nil
		}
	}
	return Unknown, fmt.Errorf("schema: unknown data type %q", s)
}

// TypeMapping maps a database-native type to a Go type and a classifier.
type TypeMapping struct {
	DBType          string   // Native type name, e.g. "nvarchar"
	GoType          string   // Go type name, e.g. "string"
	DataType        DataType // Generic classifier
	ProviderType    int      // Provider-specific type code, e.g. a Postgres OID
	HasProviderType bool
}

// Valid reports whether the mapping resolved to a known classifier.
func (m TypeMapping) Valid() bool {
	return m.DataType != Unknown
}

// Kind distinguishes base tables from views.
type Kind uint8

// Table kinds.
const (
	BaseTable Kind = iota
	View
)

// String returns the kind name.
func (k Kind) String() string {
	if k == View {
		return "view"
	}
	return "table"
}

// Table describes a table or view.
type Table struct {
	Schema        string
	Name          string
	Kind          Kind
	Columns       []*Column
	PrimaryKey    []string
	Relationships []*Relationship
}

// FullName returns the globally unique name "schema.table", or the bare
// table name when the table has no schema.
func (t *Table) FullName() string {
	return FullName(t.Schema, t.Name)
}

// FullName joins a schema and a table name.
func FullName(schema, table string) string {
	if schema == "" {
		return table
	}
	return schema + "." + table
}

// Column returns the column with the given name. Names match case-insensitively.
func (t *Table) Column(name string) (*Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	f := fold(name)
	for _, c := range t.Columns {
		if fold(c.Name) == f {
			return c, true
		}
	}
	return nil, false
}

// KeyColumns returns the primary key columns in key order.
func (t *Table) KeyColumns() []*Column {
	cols := make([]*Column, 0, len(t.PrimaryKey))
	for _, name := range t.PrimaryKey {
		if c, ok := t.Column(name); ok {
			cols = append(cols, c)
		}
	}
	return cols
}

// Relationship returns the relationship with the given name.
func (t *Table) Relationship(name string) (*Relationship, bool) {
	for _, r := range t.Relationships {
		if r.Name == name {
			return r, true
		}
	}
	return nil, false
}

// TypeName returns the entity type name of the table, e.g. "Employee" for
// a table named "employees".
func (t *Table) TypeName() string {
	return inflect.Camelize(inflect.Singularize(t.Name))
}

// clone returns a shallow copy with its own slices.
func (t *Table) clone() *Table {
	c := *t
	c.Columns = append([]*Column(nil), t.Columns...)
	c.PrimaryKey = append([]string(nil), t.PrimaryKey...)
	c.Relationships = append([]*Relationship(nil), t.Relationships...)
	return &c
}

// Column describes one column of a table.
type Column struct {
	Name       string
	Type       TypeMapping
	Nullable   bool
	PrimaryKey bool
	AutoNumber bool
	HasDefault bool
	Computed   bool
}

// Writable reports whether the column may appear in INSERT or UPDATE.
func (c *Column) Writable() bool {
	return !c.Computed && !c.AutoNumber
}

// Relationship is a foreign key. The table declaring it is the child side;
// RefSchema.RefTable is the parent side that owns the referenced key.
type Relationship struct {
	Name       string
	Columns    []string
	RefSchema  string
	RefTable   string
	RefColumns []string
}

// ColumnPair is one foreign/primary column pair of a relationship.
type ColumnPair struct {
	Foreign string // Column on the child side
	Primary string // Column on the parent side
}

// RefFullName returns the full name of the parent table.
func (r *Relationship) RefFullName() string {
	return FullName(r.RefSchema, r.RefTable)
}

// Pairs returns the column pairs in declaration order.
func (r *Relationship) Pairs() ([]ColumnPair, error) {
	if len(r.Columns) != len(r.RefColumns) || len(r.Columns) == 0 {
		return nil, fmt.Errorf("schema: relationship %q has %d local and %d referenced columns", r.Name, len(r.Columns), len(r.RefColumns))
	}
	pairs := make([]ColumnPair, len(r.Columns))
	for i := range r.Columns {
		pairs[i] = ColumnPair{Foreign: r.Columns[i], Primary: r.RefColumns[i]}
	}
	return pairs, nil
}

// First returns the first column pair, for callers that only handle
// single-column keys.
func (r *Relationship) First() (ColumnPair, error) {
	pairs, err := r.Pairs()
	if err != nil {
		return ColumnPair{}, err
	}
	return pairs[0], nil
}

// fold returns the case-insensitive form of a name.
func fold(s string) string {
	return cases.Fold().String(s)
}

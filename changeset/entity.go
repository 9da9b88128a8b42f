// Package changeset tracks in-memory row edits and flushes them to the
// database as one transaction per batch.
//
// An Entity is a plain row of one table plus its mutation state. A Tracker
// creates and attaches entities and produces the ordered change list, and an
// Executor turns the change list into INSERT, UPDATE and DELETE statements:
//
//	tr := changeset.NewTracker(cache)
//	e, _ := tr.Attach("dbo.Employees", map[string]any{"id": 7, "Name": "Ann"})
//	_ = e.Set("Name", "Bob")
//	err := changeset.NewExecutor(drv, gen).Flush(ctx, tr.ChangeList())
package changeset

import (
	"fmt"
	"slices"

	"github.com/syssam/sqlprov"
	"github.com/syssam/sqlprov/dialect/sql/sqlgen"
	"github.com/syssam/sqlprov/schema"
)

// State is the mutation state of an entity.
type State uint8

// Entity states.
const (
	// Unchanged entities match their database row.
	Unchanged State = iota
	// Created entities are inserted by the next flush.
	Created
	// Modified entities have written fields that the next flush updates.
	Modified
	// Delete entities are deleted by the next flush.
	Delete
	// Deleted entities no longer exist in the database.
	Deleted
)

var stateNames = [...]string{
	Unchanged: "unchanged",
	Created:   "created",
	Modified:  "modified",
	Delete:    "delete",
	Deleted:   "deleted",
}

// String returns the state name.
func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", s)
}

// Pending reports whether the next flush has work for the state.
func (s State) Pending() bool {
	return s == Created || s == Modified || s == Delete
}

// Entity is a change-tracked row. Values are keyed by the canonical column
// name of the table. Entity is not safe for concurrent use.
type Entity struct {
	table   *schema.Table
	values  map[string]any
	state   State
	changed []string
	partial bool
}

func newEntity(t *schema.Table, state State) *Entity {
	return &Entity{table: t, values: make(map[string]any, len(t.Columns)), state: state}
}

// Table returns the table of the entity.
func (e *Entity) Table() *schema.Table { return e.table }

// State returns the current mutation state.
func (e *Entity) State() State { return e.state }

// Partial reports whether the entity was attached without its full row.
func (e *Entity) Partial() bool { return e.partial }

// Get returns the value of a column.
func (e *Entity) Get(column string) (any, bool) {
	c, ok := e.table.Column(column)
	if !ok {
		return nil, false
	}
	v, ok := e.values[c.Name]
	return v, ok
}

// Values returns a copy of the known column values.
func (e *Entity) Values() map[string]any {
	m := make(map[string]any, len(e.values))
	for k, v := range e.values {
		m[k] = v
	}
	return m
}

// ChangedFields returns the written columns in first-write order.
func (e *Entity) ChangedFields() []string {
	return slices.Clone(e.changed)
}

// Set writes a column. Unchanged entities become Modified. Computed and
// auto-numbered columns cannot be written, and key columns only while the
// entity is Created.
func (e *Entity) Set(column string, v any) error {
	c, ok := e.table.Column(column)
	if !ok {
		return &schema.LookupError{Table: e.table.FullName(), Column: column}
	}
	if !c.Writable() {
		return sqlprov.NewInvariantError("read-only column", "column %q of %q is computed or auto-numbered", c.Name, e.table.FullName())
	}
	switch e.state {
	case Delete, Deleted:
		return sqlprov.NewInvariantError("write after delete", "%s entity of %q", e.state, e.table.FullName())
	case Unchanged, Modified:
		if c.PrimaryKey {
			return sqlprov.NewInvariantError("key column", "key column %q of a stored %q entity cannot change", c.Name, e.table.FullName())
		}
	}
	e.values[c.Name] = v
	if !slices.Contains(e.changed, c.Name) {
		e.changed = append(e.changed, c.Name)
	}
	if e.state == Unchanged {
		e.state = Modified
	}
	return nil
}

// Delete requests the deletion of the entity. A Created entity was never
// stored and becomes Deleted right away.
func (e *Entity) Delete() {
	switch e.state {
	case Created:
		e.state = Deleted
	case Deleted:
	default:
		e.state = Delete
	}
}

// PrimaryKey returns the key value. It is the value of the key column for
// single-column keys and a []any in key order for composite keys. It reports
// false when the table has no key or a key column has no value.
func (e *Entity) PrimaryKey() (any, bool) {
	key, ok := e.key()
	switch {
	case !ok:
		return nil, false
	case len(key) == 1:
		return key[0].Value, true
	}
	vs := make([]any, len(key))
	for i, a := range key {
		vs[i] = a.Value
	}
	return vs, true
}

// SetPrimaryKey sets the key value, in the form PrimaryKey returns it. When
// ok is false the key is cleared so that the entity cannot address a row
// anymore.
func (e *Entity) SetPrimaryKey(v any, ok bool) {
	cols := e.table.PrimaryKey
	if !ok {
		for _, k := range cols {
			if c, found := e.table.Column(k); found {
				delete(e.values, c.Name)
			}
		}
		return
	}
	vs := []any{v}
	if len(cols) > 1 {
		vs, _ = v.([]any)
	}
	for i, k := range cols {
		if c, found := e.table.Column(k); found && i < len(vs) {
			e.values[c.Name] = vs[i]
		}
	}
}

// MarkUnchanged records a successful flush: the entity matches its row again
// and has no changed fields.
func (e *Entity) MarkUnchanged() {
	e.state = Unchanged
	e.changed = nil
}

func (e *Entity) markDeleted() {
	e.state = Deleted
	e.changed = nil
}

// key returns the key columns with their values.
func (e *Entity) key() ([]sqlgen.Assignment, bool) {
	cols := e.table.KeyColumns()
	if len(cols) == 0 || len(cols) != len(e.table.PrimaryKey) {
		return nil, false
	}
	key := make([]sqlgen.Assignment, len(cols))
	for i, c := range cols {
		v, ok := e.values[c.Name]
		if !ok || v == nil {
			return nil, false
		}
		key[i] = sqlgen.Assignment{Column: c.Name, Value: v}
	}
	return key, true
}

// assignments returns the changed fields with their values.
func (e *Entity) assignments() []sqlgen.Assignment {
	set := make([]sqlgen.Assignment, len(e.changed))
	for i, name := range e.changed {
		set[i] = sqlgen.Assignment{Column: name, Value: e.values[name]}
	}
	return set
}

// load merges a row read from the database. Changed fields keep their
// written values.
func (e *Entity) load(row map[string]any) error {
	for name, v := range row {
		c, ok := e.table.Column(name)
		if !ok {
			return &schema.LookupError{Table: e.table.FullName(), Column: name}
		}
		if slices.Contains(e.changed, c.Name) {
			continue
		}
		e.values[c.Name] = v
	}
	return nil
}

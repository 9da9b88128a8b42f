package changeset

import (
	"sync"

	"github.com/syssam/sqlprov"
	"github.com/syssam/sqlprov/dialect/sql/sqlgen"
)

// Tracker records the entities of one unit of work in attach order.
// It is safe for concurrent use; the entities it hands out are not.
type Tracker struct {
	schema   sqlgen.Resolver
	mu       sync.Mutex
	entities []*Entity
}

// NewTracker returns a tracker resolving tables from r.
func NewTracker(r sqlgen.Resolver) *Tracker {
	return &Tracker{schema: r}
}

// New starts tracking a new row of table. The entity is Created.
func (t *Tracker) New(table string) (*Entity, error) {
	tbl, err := t.schema.Resolve(table)
	if err != nil {
		return nil, err
	}
	return t.track(newEntity(tbl, Created)), nil
}

// Attach starts tracking a row read from the database. The row must hold
// every key column. The entity is Unchanged.
func (t *Tracker) Attach(table string, row map[string]any) (*Entity, error) {
	e, err := t.attach(table, row)
	if err != nil {
		return nil, err
	}
	return t.track(e), nil
}

// AttachPartial is like Attach for rows read with a subset of their
// columns. The rest of the row is loaded before the entity is updated.
func (t *Tracker) AttachPartial(table string, row map[string]any) (*Entity, error) {
	e, err := t.attach(table, row)
	if err != nil {
		return nil, err
	}
	e.partial = true
	return t.track(e), nil
}

func (t *Tracker) attach(table string, row map[string]any) (*Entity, error) {
	tbl, err := t.schema.Resolve(table)
	if err != nil {
		return nil, err
	}
	e := newEntity(tbl, Unchanged)
	if err := e.load(row); err != nil {
		return nil, err
	}
	if _, ok := e.key(); !ok {
		return nil, sqlprov.NewInvariantError("missing key", "attached %q row has no primary key value", tbl.FullName())
	}
	return e, nil
}

func (t *Tracker) track(e *Entity) *Entity {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entities = append(t.entities, e)
	return e
}

// Len returns the number of tracked entities.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entities)
}

// ChangeList returns the entities with pending work in attach order.
func (t *Tracker) ChangeList() []*Entity {
	t.mu.Lock()
	defer t.mu.Unlock()
	var changes []*Entity
	for _, e := range t.entities {
		if e.state.Pending() {
			changes = append(changes, e)
		}
	}
	return changes
}

// Prune stops tracking Deleted entities and returns how many were removed.
func (t *Tracker) Prune() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	kept := t.entities[:0]
	for _, e := range t.entities {
		if e.state != Deleted {
			kept = append(kept, e)
		}
	}
	n := len(t.entities) - len(kept)
	clear(t.entities[len(kept):])
	t.entities = kept
	return n
}

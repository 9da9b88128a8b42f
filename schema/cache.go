package schema

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// Loader supplies tables the cache does not hold yet.
type Loader interface {
	LoadTable(ctx context.Context, fullName string) (*Table, error)
}

// LoaderFunc adapts an ordinary function to the Loader interface.
type LoaderFunc func(ctx context.Context, fullName string) (*Table, error)

// LoadTable calls f(ctx, fullName).
func (f LoaderFunc) LoadTable(ctx context.Context, fullName string) (*Table, error) {
	return f(ctx, fullName)
}

// Cache is the shared table cache. It is populated lazily, either by a
// Loader or by explicit Put calls, and may be updated concurrently.
//
// Conflicting writes merge instead of overwriting each other:
//
//   - PutTable replaces the whole table (last writer wins)
//   - PutColumns replaces columns by name and appends new ones
//   - AddPrimaryKey unions the key columns, deduplicated and sorted
//   - PutRelationships replaces relationships by name and appends new ones
//
// Names match case-insensitively. A name without a schema part matches the
// only cached table of that name.
type Cache struct {
	mu      sync.RWMutex
	tables  map[string]*Table
	loader  Loader
	group   singleflight.Group
	version atomic.Uint64
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithLoader sets the Loader used by Load for missing tables.
func WithLoader(l Loader) CacheOption {
	return func(c *Cache) {
		c.loader = l
	}
}

// NewCache returns an empty cache.
func NewCache(opts ...CacheOption) *Cache {
	c := &Cache{tables: make(map[string]*Table)}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Version is incremented by every write. Values derived from the cache
// are stale once it changes.
func (c *Cache) Version() uint64 {
	return c.version.Load()
}

// Len returns the number of cached tables.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.tables)
}

// PutTable stores t under its full name, replacing any previous value.
func (c *Cache) PutTable(t *Table) {
	t = t.clone()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tables[fold(t.FullName())] = t
	c.version.Add(1)
}

// PutTables stores all tables.
func (c *Cache) PutTables(ts ...*Table) {
	for _, t := range ts {
		c.PutTable(t)
	}
}

// PutColumns merges columns into the named table.
func (c *Cache) PutColumns(name string, cols ...*Column) error {
	return c.update(name, func(t *Table) {
		for _, col := range cols {
			i := slices.IndexFunc(t.Columns, func(x *Column) bool { return fold(x.Name) == fold(col.Name) })
			if i >= 0 {
				t.Columns[i] = col
			} else {
				t.Columns = append(t.Columns, col)
			}
		}
	})
}

// AddPrimaryKey adds key columns to the named table. The resulting key
// list holds each column once and is sorted.
func (c *Cache) AddPrimaryKey(name string, cols ...string) error {
	return c.update(name, func(t *Table) {
		seen := make(map[string]bool, len(t.PrimaryKey)+len(cols))
		keys := make([]string, 0, len(t.PrimaryKey)+len(cols))
		for _, k := range append(slices.Clone(t.PrimaryKey), cols...) {
			if col, ok := t.Column(k); ok {
				k = col.Name
			}
			if f := fold(k); !seen[f] {
				seen[f] = true
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		t.PrimaryKey = keys
		for i, col := range t.Columns {
			if seen[fold(col.Name)] && !col.PrimaryKey {
				cp := *col
				cp.PrimaryKey = true
				t.Columns[i] = &cp
			}
		}
	})
}

// PutRelationships merges relationships into the named table.
func (c *Cache) PutRelationships(name string, rels ...*Relationship) error {
	return c.update(name, func(t *Table) {
		for _, r := range rels {
			i := slices.IndexFunc(t.Relationships, func(x *Relationship) bool { return x.Name == r.Name })
			if i >= 0 {
				t.Relationships[i] = r
			} else {
				t.Relationships = append(t.Relationships, r)
			}
		}
	})
}

// update applies fn to a copy of the named table and stores the copy.
func (c *Cache) update(name string, fn func(*Table)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	key, ok := c.keyLocked(name)
	if !ok {
		return &LookupError{Table: name}
	}
	t := c.tables[key].clone()
	fn(t)
	c.tables[key] = t
	c.version.Add(1)
	return nil
}

// Invalidate drops the named table. It is a no-op for unknown names.
func (c *Cache) Invalidate(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if key, ok := c.keyLocked(name); ok {
		delete(c.tables, key)
		c.version.Add(1)
	}
}

// keyLocked resolves a name to its map key. c.mu must be held.
func (c *Cache) keyLocked(name string) (string, bool) {
	f := fold(name)
	if _, ok := c.tables[f]; ok {
		return f, true
	}
	if strings.Contains(name, ".") {
		return "", false
	}
	match := ""
	for key, t := range c.tables {
		if fold(t.Name) == f {
			if match != "" {
				return "", false
			}
			match = key
		}
	}
	return match, match != ""
}

// Lookup returns the cached table with the given name.
func (c *Cache) Lookup(name string) (*Table, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	key, ok := c.keyLocked(name)
	if !ok {
		return nil, false
	}
	return c.tables[key], true
}

// PrimaryKey returns the primary key columns of the named table. A missing
// table or a table without key both report false.
func (c *Cache) PrimaryKey(name string) ([]string, bool) {
	t, ok := c.Lookup(name)
	if !ok || len(t.PrimaryKey) == 0 {
		return nil, false
	}
	return slices.Clone(t.PrimaryKey), true
}

// Relationships returns the relationships declared by the named table.
func (c *Cache) Relationships(name string) []*Relationship {
	t, ok := c.Lookup(name)
	if !ok {
		return nil
	}
	return slices.Clone(t.Relationships)
}

// Resolve returns the named table or a *LookupError.
func (c *Cache) Resolve(name string) (*Table, error) {
	t, ok := c.Lookup(name)
	if !ok {
		return nil, &LookupError{Table: name}
	}
	return t, nil
}

// ResolveColumn returns the named column or a *LookupError.
func (c *Cache) ResolveColumn(table, column string) (*Column, error) {
	t, err := c.Resolve(table)
	if err != nil {
		return nil, err
	}
	col, ok := t.Column(column)
	if !ok {
		return nil, &LookupError{Table: t.FullName(), Column: column}
	}
	return col, nil
}

// Load returns the named table, asking the Loader when it is not cached.
// Concurrent loads of the same table share one Loader call.
func (c *Cache) Load(ctx context.Context, name string) (*Table, error) {
	if t, ok := c.Lookup(name); ok {
		return t, nil
	}
	if c.loader == nil {
		return nil, &LookupError{Table: name}
	}
	v, err, _ := c.group.Do(fold(name), func() (any, error) {
		t, err := c.loader.LoadTable(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("schema: load %q: %w", name, err)
		}
		if t == nil {
			return nil, &LookupError{Table: name}
		}
		c.PutTable(t)
		if stored, ok := c.Lookup(t.FullName()); ok {
			return stored, nil
		}
		return t, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Table), nil
}

// Tables returns all cached tables ordered by full name.
func (c *Cache) Tables() []*Table {
	c.mu.RLock()
	ts := make([]*Table, 0, len(c.tables))
	for _, t := range c.tables {
		ts = append(ts, t)
	}
	c.mu.RUnlock()
	sort.Slice(ts, func(i, j int) bool { return ts[i].FullName() < ts[j].FullName() })
	return ts
}

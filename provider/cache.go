package provider

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/mitchellh/hashstructure/v2"

	"github.com/syssam/sqlprov"
	"github.com/syssam/sqlprov/dialect/sql/sqlgen"
	"github.com/syssam/sqlprov/query"
)

// Cache modes.
const (
	modeSelect = "select"
	modeDelete = "delete"
)

// StatementCache is the default statement cache, a 2Q LRU keyed by the
// structural hash of the rendered query.
type StatementCache struct {
	*lru.TwoQueueCache[sqlprov.CacheKey, *sqlgen.Statement]
}

// NewStatementCache returns a cache holding up to size statements.
func NewStatementCache(size int) (*StatementCache, error) {
	c, err := lru.New2Q[sqlprov.CacheKey, *sqlgen.Statement](size)
	if err != nil {
		return nil, err
	}
	return &StatementCache{c}, nil
}

var _ sqlprov.Cache[*sqlgen.Statement] = (*StatementCache)(nil)

// nopCache is used when caching is disabled.
type nopCache struct{}

func (nopCache) Get(sqlprov.CacheKey) (*sqlgen.Statement, bool) { return nil, false }
func (nopCache) Add(sqlprov.CacheKey, *sqlgen.Statement)        {}
func (nopCache) Purge()                                         {}

// statements fronts a Cache with schema version tracking. Entries created
// against an older schema are dropped as soon as a newer version is seen.
type statements struct {
	cache   sqlprov.Cache[*sqlgen.Statement]
	dialect string
	mu      sync.Mutex
	version uint64
}

// key hashes q together with its type signature. ok is false when q binds
// values the hash cannot tell apart, in which case the statement is not
// cached.
func (s *statements) key(mode string, version uint64, q *query.Query) (sqlprov.CacheKey, bool) {
	sig, ok := signature(q)
	if !ok {
		return sqlprov.CacheKey{}, false
	}
	h, err := hashstructure.Hash(struct {
		Query     *query.Query
		Signature string
	}{q, sig}, hashstructure.FormatV2, nil)
	if err != nil {
		return sqlprov.CacheKey{}, false
	}
	return sqlprov.CacheKey{Dialect: s.dialect, Version: int(version), Mode: mode, Hash: h}, true
}

// observe purges the cache when the schema moved past the last seen
// version.
func (s *statements) observe(version uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if version != s.version {
		s.cache.Purge()
		s.version = version
	}
}

func (s *statements) get(k sqlprov.CacheKey) (*sqlgen.Statement, bool) {
	stmt, ok := s.cache.Get(k)
	if !ok {
		return nil, false
	}
	return clone(stmt), true
}

func (s *statements) add(k sqlprov.CacheKey, stmt *sqlgen.Statement) {
	s.cache.Add(k, clone(stmt))
}

// clone copies stmt so callers never share parameter slices with the
// cache.
func clone(stmt *sqlgen.Statement) *sqlgen.Statement {
	c := *stmt
	c.Params = append([]sqlgen.Param(nil), stmt.Params...)
	c.KeyColumns = append([]string(nil), stmt.KeyColumns...)
	return &c
}

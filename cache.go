package sqlprov

import "strconv"

// Cache is the interface for caching generated statements.
// Generation is a pure function of the query, the schema and the dialect, so
// a cached value stays valid for as long as the schema it was generated
// against. Implementations must be safe for concurrent use.
type Cache[V any] interface {
	// Get retrieves a value from the cache.
	Get(key CacheKey) (V, bool)

	// Add stores a value in the cache, possibly evicting older entries.
	Add(key CacheKey, value V)

	// Purge removes all values from the cache.
	Purge()
}

// CacheKey identifies one generated statement.
type CacheKey struct {
	Dialect string
	Version int
	Mode    string // "select", "delete" or "subquery"
	Hash    uint64 // Structural hash of the query
}

// String returns the string representation of the cache key.
func (k CacheKey) String() string {
	return k.Dialect + ":" + strconv.Itoa(k.Version) + ":" + k.Mode + ":" + strconv.FormatUint(k.Hash, 16)
}

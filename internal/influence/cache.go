package influence

import (
	"sync"

	"github.com/banshee-data/lightskin/internal/grid"
)

// DefaultCacheEntries bounds the number of rays a Cache remembers before it
// starts over.
const DefaultCacheEntries = 4096

type cacheKey struct {
	ray   grid.Ray
	geom  grid.Geometry
	model string
}

// CacheStats reports cache effectiveness.
type CacheStats struct {
	Hits    uint64
	Misses  uint64
	Entries int
	Resets  uint64
}

// Cache memoises a Model. The same rays are requested on every
// reconstruction cycle, so after the first cycle every lookup is a hit.
//
// Entries are keyed by ray endpoints, geometry and model key, are never
// modified after insertion, and are safe to read from multiple goroutines.
// When the cache holds maxEntries rays it is cleared rather than evicting
// individually.
type Cache struct {
	inner      Model
	maxEntries int

	mu      sync.RWMutex
	entries map[cacheKey][]Influence
	stats   CacheStats
}

// NewCache wraps m. maxEntries <= 0 selects DefaultCacheEntries.
func NewCache(m Model, maxEntries int) *Cache {
	if maxEntries <= 0 {
		maxEntries = DefaultCacheEntries
	}
	return &Cache{
		inner:      m,
		maxEntries: maxEntries,
		entries:    make(map[cacheKey][]Influence),
	}
}

func (c *Cache) Geometry() grid.Geometry { return c.inner.Geometry() }

func (c *Cache) Key() string { return c.inner.Key() }

// Unwrap returns the memoised model.
func (c *Cache) Unwrap() Model { return c.inner }

func (c *Cache) Influences(r grid.Ray) []Influence {
	key := cacheKey{ray: r, geom: c.inner.Geometry(), model: c.inner.Key()}

	c.mu.RLock()
	infl, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		c.mu.Lock()
		c.stats.Hits++
		c.mu.Unlock()
		return infl
	}

	infl = c.inner.Influences(r)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats.Misses++
	if existing, ok := c.entries[key]; ok {
		return existing
	}
	if len(c.entries) >= c.maxEntries {
		c.entries = make(map[cacheKey][]Influence)
		c.stats.Resets++
	}
	c.entries[key] = infl
	return infl
}

// Invalidate drops every cached entry. Call it whenever the geometry or model
// parameters of the wrapped model change.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[cacheKey][]Influence)
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := c.stats
	s.Entries = len(c.entries)
	return s
}

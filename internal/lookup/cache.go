// Package lookup enriches a main dataset by left-joining it against a
// reference ("lookup") table loaded from disk, with an injected cache of
// loaded tables keyed by path.
package lookup

import (
	"container/list"
	"sync"

	"github.com/JonMunkholm/datacleaner/internal/dataset"
)

// Cache holds loaded lookup tables keyed by the exact path string they were
// requested with. No path canonicalization is done: "a.csv" and "./a.csv"
// are different entries. The least recently used entry is evicted once
// Capacity is exceeded; with capacity 1 a load of a different path replaces
// the cached table.
//
// Cached datasets are shared between callers and must not be modified.
type Cache struct {
	mu       sync.RWMutex
	capacity int
	order    *list.List // front = most recently used
	entries  map[string]*list.Element

	hits      uint64
	misses    uint64
	evictions uint64
}

type cacheEntry struct {
	path string
	ds   *dataset.Dataset
}

// CacheStats is a point-in-time view of a Cache.
type CacheStats struct {
	Capacity  int      `json:"capacity"`
	Entries   int      `json:"entries"`
	Paths     []string `json:"paths"`
	Hits      uint64   `json:"hits"`
	Misses    uint64   `json:"misses"`
	Evictions uint64   `json:"evictions"`
}

// NewCache returns an empty cache. capacity <= 0 means 1.
func NewCache(capacity int) *Cache {
	if capacity <= 0 {
		capacity = 1
	}
	return &Cache{
		capacity: capacity,
		order:    list.New(),
		entries:  make(map[string]*list.Element),
	}
}

// Get returns the table cached for path and marks it recently used.
func (c *Cache) Get(path string) (*dataset.Dataset, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[path]
	if !ok {
		c.misses++
		return nil, false
	}
	c.hits++
	c.order.MoveToFront(el)
	return el.Value.(*cacheEntry).ds, true
}

// Put stores ds under path, replacing any previous table for that path, and
// returns the paths evicted to stay within capacity.
func (c *Cache) Put(path string, ds *dataset.Dataset) (evicted []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[path]; ok {
		el.Value.(*cacheEntry).ds = ds
		c.order.MoveToFront(el)
		return nil
	}

	c.entries[path] = c.order.PushFront(&cacheEntry{path: path, ds: ds})
	for c.order.Len() > c.capacity {
		oldest := c.order.Back()
		e := oldest.Value.(*cacheEntry)
		c.order.Remove(oldest)
		delete(c.entries, e.path)
		c.evictions++
		evicted = append(evicted, e.path)
	}
	return evicted
}

// Evict drops the entry for path. It reports whether one existed.
func (c *Cache) Evict(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[path]
	if !ok {
		return false
	}
	c.order.Remove(el)
	delete(c.entries, path)
	c.evictions++
	return true
}

// Reset drops every entry. Counters are kept.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.order.Init()
	c.entries = make(map[string]*list.Element)
}

// Len returns the number of cached tables.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.order.Len()
}

// Stats returns counters and cached paths, most recently used first.
func (c *Cache) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	paths := make([]string, 0, c.order.Len())
	for el := c.order.Front(); el != nil; el = el.Next() {
		paths = append(paths, el.Value.(*cacheEntry).path)
	}
	return CacheStats{
		Capacity:  c.capacity,
		Entries:   len(paths),
		Paths:     paths,
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
	}
}

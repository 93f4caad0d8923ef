// Package cache implements the shared decoded-image cache: a
// concurrent, size- and count-bounded LRU keyed by source path.
package cache

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
)

// Stats reports cumulative cache activity.
type Stats struct {
	Hits             uint64
	Misses           uint64
	Evictions        uint64
	CurrentEntries   int
	CurrentSizeBytes int64
}

type entry struct {
	image      any
	sizeBytes  int64
	lastAccess time.Time
}

// Cache is a reader-writer-locked LRU over decoded images, bounded by
// both entry count and total byte size. Stats and Len take the shared
// lock; Get, inserts and evictions take the exclusive lock, since a Get
// updates the entry's recency and the hit/miss counters.
//
// The entry-count ceiling is enforced by the backing golang-lru cache
// itself; the byte-size ceiling is not something golang-lru knows
// about, so Insert additionally calls RemoveOldest in a loop after
// each insert until the tracked byte total is back under budget. Both
// eviction paths run through the same onEvicted callback, so Stats
// stays consistent regardless of which ceiling triggered the evict.
type Cache struct {
	mu sync.RWMutex

	maxSizeBytes int64
	backing      *lru.Cache

	stats Stats
}

// New creates a Cache bounded by maxEntries and, if maxSizeBytes > 0,
// by total decoded byte size as well.
func New(maxEntries int, maxSizeBytes int64) *Cache {
	if maxEntries <= 0 {
		maxEntries = 1
	}
	c := &Cache{maxSizeBytes: maxSizeBytes}
	backing, _ := lru.NewWithEvict(maxEntries, c.onEvicted)
	c.backing = backing
	return c
}

// onEvicted is golang-lru's eviction callback; it fires for both the
// library's own count-based eviction and for the manual RemoveOldest
// calls Insert makes to enforce the byte-size ceiling.
func (c *Cache) onEvicted(_ any, value any) {
	e := value.(*entry)
	c.stats.CurrentEntries--
	c.stats.CurrentSizeBytes -= e.sizeBytes
	c.stats.Evictions++
}

// Get returns the cached image for key, if present, bumping it to
// most-recently-used and recording a hit or miss.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.backing.Get(key)
	if !ok {
		c.stats.Misses++
		return nil, false
	}
	e := v.(*entry)
	e.lastAccess = time.Now()
	c.stats.Hits++
	return e.image, true
}

// Insert adds or replaces the cached image for key, then evicts
// least-recently-used entries until the byte-size ceiling (if set) is
// satisfied. The entry-count ceiling is enforced by the backing cache
// itself on Add.
func (c *Cache) Insert(key string, image any, sizeBytes int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.backing.Peek(key); ok {
		c.stats.CurrentSizeBytes -= old.(*entry).sizeBytes
	} else {
		c.stats.CurrentEntries++
	}
	c.backing.Add(key, &entry{image: image, sizeBytes: sizeBytes, lastAccess: time.Now()})
	c.stats.CurrentSizeBytes += sizeBytes

	for c.maxSizeBytes > 0 && c.stats.CurrentSizeBytes > c.maxSizeBytes && c.backing.Len() > 0 {
		c.backing.RemoveOldest()
	}
}

// Remove drops key from the cache, if present. This does not count
// toward Stats.Evictions: eviction is the cache's own space-pressure
// response, distinct from a caller explicitly invalidating an entry.
// Nothing in the engine calls Remove; slideshow rotation leaves cached
// images in place.
func (c *Cache) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.backing.Peek(key); ok {
		c.backing.Remove(key) // onEvicted adjusts CurrentEntries/CurrentSizeBytes and bumps Evictions
		c.stats.Evictions--   // undo: an explicit Remove is not a space-pressure eviction
	}
}

// Loader decodes the image for a cache miss. It runs outside the
// cache's write lock so a slow decode never blocks concurrent readers.
type Loader func() (image any, sizeBytes int64, err error)

// GetOrInsert returns the cached image for key, or runs load to
// produce one on a miss, inserting the result before returning it.
func (c *Cache) GetOrInsert(key string, load Loader) (any, error) {
	if img, ok := c.Get(key); ok {
		return img, nil
	}
	img, size, err := load()
	if err != nil {
		return nil, err
	}
	c.Insert(key, img, size)
	return img, nil
}

// Stats returns a snapshot of cumulative cache statistics.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}

// Len returns the current entry count.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.backing.Len()
}

// Purge removes all entries, resetting size and count but not
// cumulative hit/miss/eviction counters.
func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	purged := c.backing.Len()
	c.backing.Purge() // onEvicted fires once per entry; undo its Evictions bump below
	c.stats.Evictions -= uint64(purged)
	c.stats.CurrentEntries = 0
	c.stats.CurrentSizeBytes = 0
}

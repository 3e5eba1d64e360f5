package fileservice

import (
	"sort"
	"sync"
)

// Entry is a cached file body, grounded in original_source's CacheEntry:
// content bytes, MIME type, last-access timestamp, and size (size is kept
// denormalized, always equal to len(Content), so the bound check never
// needs to recompute it).
type Entry struct {
	Path       string
	Content    []byte
	MIME       string
	LastAccess int64 // monotonic tick, see Cache.clock
	Size       int64
}

// Cache is a bounded, access-ordered body cache. Access is serialized
// behind a mutex even though the reactor is single-threaded, so the cache
// stays safe to share if a future worker pool ever calls into it from more
// than one goroutine.
type Cache struct {
	mu sync.Mutex

	entries    map[string]*Entry
	size       int64
	maxSize    int64
	maxEntries int
	maxFile    int64

	clock int64 // ticks forward on every touch; stands in for a wall clock
}

// NewCache builds a Cache bounded by three independent limits: total
// bytes, entry count, and per-file cutoff.
func NewCache(maxSize int64, maxEntries int, maxFileSize int64) *Cache {
	return &Cache{
		entries:    make(map[string]*Entry),
		maxSize:    maxSize,
		maxEntries: maxEntries,
		maxFile:    maxFileSize,
	}
}

// MaxFileSize reports the per-file cutoff above which Get bypasses the
// cache entirely.
func (c *Cache) MaxFileSize() int64 {
	return c.maxFile
}

// Get returns the cached entry for path and bumps its last-access tick,
// so a hit never looks like the next eviction candidate.
func (c *Cache) Get(path string) (*Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[path]
	if !ok {
		return nil, false
	}

	c.clock++
	e.LastAccess = c.clock

	return e, true
}

// Put inserts content under path, evicting oldest-by-access entries first
// if needed to stay within bounds. Callers shouldn't pass content larger
// than maxFile; Put enforces this defensively by refusing the insert.
func (c *Cache) Put(path, mime string, content []byte) {
	size := int64(len(content))
	if size > c.maxFile {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[path]; exists {
		return
	}

	for len(c.entries) >= c.maxEntries || c.size+size > c.maxSize {
		if !c.evictOldest() {
			break
		}
	}

	c.clock++
	c.entries[path] = &Entry{
		Path:       path,
		Content:    content,
		MIME:       mime,
		LastAccess: c.clock,
		Size:       size,
	}
	c.size += size
}

// evictOldest drops the entry with the smallest LastAccess tick. Must be
// called with mu held. Returns false if the cache is already empty.
func (c *Cache) evictOldest() bool {
	if len(c.entries) == 0 {
		return false
	}

	ordered := c.sortedByAccess()
	oldest := ordered[0]

	delete(c.entries, oldest.Path)
	c.size -= oldest.Size

	return true
}

// sortedByAccess returns every entry sorted ascending by LastAccess, the
// order evictOldest walks to find the next eviction candidate.
func (c *Cache) sortedByAccess() []*Entry {
	ordered := make([]*Entry, 0, len(c.entries))
	for _, e := range c.entries {
		ordered = append(ordered, e)
	}

	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].LastAccess < ordered[j].LastAccess
	})

	return ordered
}

// Len and Size report the current entry count and byte total.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}

func (c *Cache) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.size
}

// Clear empties the cache, mirroring original_source's
// FileService::clearCache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*Entry)
	c.size = 0
}

package dispatch

import (
	"strconv"
	"sync"
	"unicode/utf16"

	"github.com/aretw0/umlsync/pkg/domain"
)

const (
	// DefaultCacheSize bounds the dispatch cache.
	DefaultCacheSize = 100
	// CacheKeyPrefix is the number of UTF-16 code units hashed into a cache key.
	CacheKeyPrefix = 1000
)

// Cache is a bounded, insertion-ordered mapping from cache keys to results.
// Eviction removes the oldest inserted key regardless of how recently it was read:
// this is a FIFO cache, not an LRU.
type Cache struct {
	mu    sync.Mutex
	limit int
	order []string
	items map[string]domain.ParseResult
}

// NewCache creates a cache holding at most limit entries.
func NewCache(limit int) *Cache {
	if limit <= 0 {
		limit = DefaultCacheSize
	}
	return &Cache{
		limit: limit,
		items: make(map[string]domain.ParseResult, limit),
	}
}

// Get returns a copy of the cached result for key.
func (c *Cache) Get(key string) (domain.ParseResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	res, ok := c.items[key]
	if !ok {
		return domain.ParseResult{}, false
	}
	return res.Clone(), true
}

// Put stores a result. Replacing an existing key keeps its original position.
func (c *Cache) Put(key string, res domain.ParseResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.items[key]; !ok {
		c.order = append(c.order, key)
	}
	c.items[key] = res.Clone()
	for len(c.order) > c.limit {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.items, oldest)
	}
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order = nil
	c.items = make(map[string]domain.ParseResult, c.limit)
}

// CacheKey hashes the first 1000 UTF-16 code units of text with the 32-bit
// rolling hash h = h*31 + unit. Texts sharing that prefix share a key.
func CacheKey(text string) string {
	var h int32
	n := 0
	for _, r := range text {
		if n >= CacheKeyPrefix {
			break
		}
		if r < 0x10000 {
			h = h*31 + int32(r)
			n++
			continue
		}
		hi, lo := utf16.EncodeRune(r)
		h = h*31 + int32(hi)
		n++
		if n < CacheKeyPrefix {
			h = h*31 + int32(lo)
			n++
		}
	}
	return strconv.FormatInt(int64(h), 10)
}

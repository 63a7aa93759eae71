package speech

import (
	"strings"
	"sync"
	"time"
)

// Cache deduplicates synthesis requests across calls. Keys are exact
// (provider, voice, text) triples; entries expire by TTL and the cache is
// bounded by entry count with insertion-order eviction.
type Cache struct {
	mu         sync.Mutex
	ttl        time.Duration
	maxEntries int
	entries    map[string]cacheEntry
	order      []string
	now        func() time.Time
}

type cacheEntry struct {
	audio   []byte
	addedAt time.Time
}

func NewCache(ttl time.Duration, maxEntries int) *Cache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if maxEntries <= 0 {
		maxEntries = 256
	}
	return &Cache{
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    make(map[string]cacheEntry),
		now:        time.Now,
	}
}

// CacheKey builds the lookup key. Equality is byte-for-byte; no text
// normalization beyond what the caller already did.
func CacheKey(provider, voiceID, text string) string {
	return strings.Join([]string{provider, voiceID, text}, "\x1f")
}

func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().Sub(entry.addedAt) > c.ttl {
		c.removeLocked(key)
		return nil, false
	}
	return entry.audio, true
}

func (c *Cache) Put(key string, audio []byte) {
	if len(audio) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; exists {
		// Refresh in place; insertion order is kept.
		c.entries[key] = cacheEntry{audio: audio, addedAt: c.now()}
		return
	}

	c.entries[key] = cacheEntry{audio: audio, addedAt: c.now()}
	c.order = append(c.order, key)

	for len(c.order) > c.maxEntries {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) removeLocked(key string) {
	delete(c.entries, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

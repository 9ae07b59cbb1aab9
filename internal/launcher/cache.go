package launcher

import (
	"fmt"
	"log"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// SearchCacheEntry represents a cached search result
type SearchCacheEntry struct {
	Results    []*Item
	Timestamp  time.Time
	Query      string
	Version    string
	DurationMs float64
}

// SearchCache provides LRU caching for default-launcher search results.
// Entries expire after an adaptive TTL or when the launcher version changes.
type SearchCache struct {
	cache   *lru.Cache[string, *SearchCacheEntry]
	maxSize int
	hits    int64
	misses  int64
	mu      sync.Mutex
	now     func() time.Time
}

// CacheStats holds cache statistics
type CacheStats struct {
	Size    int     `json:"size"`
	MaxSize int     `json:"max_size"`
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

func NewSearchCache(maxSize int) (*SearchCache, error) {
	if maxSize <= 0 {
		maxSize = 100
	}

	cache, err := lru.New[string, *SearchCacheEntry](maxSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create LRU cache: %w", err)
	}

	return &SearchCache{
		cache:   cache,
		maxSize: maxSize,
		now:     time.Now,
	}, nil
}

// ttlFor caches fast searches longer than slow ones.
func ttlFor(durationMs float64) time.Duration {
	switch {
	case durationMs < 50:
		return 30 * time.Minute
	case durationMs < 100:
		return 10 * time.Minute
	default:
		return 5 * time.Minute
	}
}

// Get retrieves cached results for a query and launcher version
func (c *SearchCache) Get(query, version string) ([]*Item, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := query
	if entry, found := c.cache.Get(key); found {
		switch {
		case entry.Version != version:
			c.cache.Remove(key)
			log.Printf("[SEARCH-CACHE] EXPIRED BY VERSION: key='%s'", key)
		case c.now().Sub(entry.Timestamp) >= ttlFor(entry.DurationMs):
			c.cache.Remove(key)
			log.Printf("[SEARCH-CACHE] EXPIRED BY TTL: key='%s'", key)
		default:
			c.hits++
			return entry.Results, true
		}
	}

	c.misses++
	return nil, false
}

// Put stores search results in the cache
func (c *SearchCache) Put(query, version string, results []*Item, durationMs float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cache.Len() >= c.maxSize {
		c.evictLowValueEntries()
	}

	c.cache.Add(query, &SearchCacheEntry{
		Results:    results,
		Timestamp:  c.now(),
		Query:      query,
		Version:    version,
		DurationMs: durationMs,
	})
	log.Printf("[SEARCH-CACHE] STORED: key='%s', %d results, duration=%.2fms", query, len(results), durationMs)
}

// Invalidate removes all cached entries
func (c *SearchCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cache.Purge()
	c.hits = 0
	c.misses = 0
}

// GetStats returns current cache statistics
func (c *SearchCache) GetStats() *CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.hits + c.misses
	hitRate := float64(0)
	if total > 0 {
		hitRate = float64(c.hits) / float64(total)
	}

	return &CacheStats{
		Size:    c.cache.Len(),
		MaxSize: c.maxSize,
		Hits:    c.hits,
		Misses:  c.misses,
		HitRate: hitRate,
	}
}

// evictLowValueEntries drops old or slow entries when the cache is full.
// Plain LRU eviction covers whatever is left.
func (c *SearchCache) evictLowValueEntries() {
	evicted := 0
	for _, key := range c.cache.Keys() {
		entry, found := c.cache.Peek(key)
		if !found {
			continue
		}
		if c.now().Sub(entry.Timestamp) > 30*time.Minute || entry.DurationMs > 200 {
			c.cache.Remove(key)
			evicted++
		}
	}
	if evicted > 0 {
		log.Printf("[SEARCH-CACHE] Evicted %d low-value entries", evicted)
	}
}

package embedding

import (
	"context"
	"sync"
	"time"
)

// memoryEntry is one cached vector with its bookkeeping timestamps.
type memoryEntry struct {
	vector       []float32
	insertedAt   time.Time
	lastAccessed time.Time
	accesses     int64
}

// MemoryCache is a bounded in-process cache with least-recently-used
// eviction and time-based expiration. Safe for concurrent use.
type MemoryCache struct {
	mu         sync.Mutex
	entries    map[string]*memoryEntry
	maxEntries int
	expiration time.Duration
	enabled    bool

	// now is the clock, replaceable in tests.
	now func() time.Time
}

// MemoryCacheOptions configures a MemoryCache.
type MemoryCacheOptions struct {
	// MaxEntries bounds the cache. Zero means 1000.
	MaxEntries int

	// Expiration is the entry time-to-live. Zero means 24 hours.
	Expiration time.Duration

	// Disabled makes every read a miss and every write a no-op.
	Disabled bool
}

// NewMemoryCache creates a MemoryCache with the given options.
func NewMemoryCache(opts MemoryCacheOptions) *MemoryCache {
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = 1000
	}
	if opts.Expiration <= 0 {
		opts.Expiration = 24 * time.Hour
	}
	return &MemoryCache{
		entries:    make(map[string]*memoryEntry),
		maxEntries: opts.MaxEntries,
		expiration: opts.Expiration,
		enabled:    !opts.Disabled,
		now:        time.Now,
	}
}

// TryGet implements Cache. Expired entries are removed on access.
func (c *MemoryCache) TryGet(_ context.Context, content string) ([]float32, bool, error) {
	if !c.enabled {
		return nil, false, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[content]
	if !ok {
		return nil, false, nil
	}

	now := c.now()
	if now.Sub(e.insertedAt) > c.expiration {
		delete(c.entries, content)
		return nil, false, nil
	}

	e.lastAccessed = now
	e.accesses++
	return append([]float32(nil), e.vector...), true, nil
}

// Set implements Cache. At capacity, the entry with the oldest
// last-access time is evicted before inserting.
func (c *MemoryCache) Set(_ context.Context, content string, vector []float32) error {
	if !c.enabled {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if e, ok := c.entries[content]; ok {
		e.vector = append([]float32(nil), vector...)
		e.insertedAt = now
		e.lastAccessed = now
		return nil
	}

	if len(c.entries) >= c.maxEntries {
		c.evictOldest()
	}

	c.entries[content] = &memoryEntry{
		vector:       append([]float32(nil), vector...),
		insertedAt:   now,
		lastAccessed: now,
	}
	return nil
}

// Remove implements Cache.
func (c *MemoryCache) Remove(_ context.Context, content string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, content)
	return nil
}

// Clear implements Cache.
func (c *MemoryCache) Clear(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*memoryEntry)
	return nil
}

// Stats implements Cache.
func (c *MemoryCache) Stats(_ context.Context) (CacheStats, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := CacheStats{Entries: len(c.entries)}
	for _, e := range c.entries {
		stats.TotalAccesses += e.accesses
		if e.accesses > stats.MaxAccesses {
			stats.MaxAccesses = e.accesses
		}
	}
	return stats, nil
}

// evictOldest removes the entry with the oldest last-access timestamp.
// Callers must hold mu.
func (c *MemoryCache) evictOldest() {
	var oldestKey string
	var oldest time.Time
	first := true
	for key, e := range c.entries {
		if first || e.lastAccessed.Before(oldest) {
			oldestKey = key
			oldest = e.lastAccessed
			first = false
		}
	}
	if !first {
		delete(c.entries, oldestKey)
	}
}

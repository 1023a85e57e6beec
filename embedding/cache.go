package embedding

import "context"

// CacheStats reports cache-effectiveness counters. Used for
// observability only; eviction never consults them.
type CacheStats struct {
	// Entries is the current number of cached vectors.
	Entries int

	// TotalAccesses is the sum of per-entry access counts.
	TotalAccesses int64

	// MaxAccesses is the highest per-entry access count.
	MaxAccesses int64
}

// Cache stores embedding vectors keyed by exact content string. A
// disabled cache reports every read as a miss and drops every write.
//
// Implementations must be safe for concurrent use.
type Cache interface {
	// TryGet returns the cached vector for content. Found is false for a
	// missing, expired, or disabled-cache entry. A hit refreshes the
	// entry's last-access time.
	TryGet(ctx context.Context, content string) (vector []float32, found bool, err error)

	// Set inserts or overwrites the vector for content, updating both
	// the insertion and last-access timestamps.
	Set(ctx context.Context, content string, vector []float32) error

	// Remove deletes the entry for content, if present.
	Remove(ctx context.Context, content string) error

	// Clear deletes all entries.
	Clear(ctx context.Context) error

	// Stats returns a point-in-time snapshot of the cache counters.
	Stats(ctx context.Context) (CacheStats, error)
}

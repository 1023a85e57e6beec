package embedding

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMemoryCache(opts MemoryCacheOptions) (*MemoryCache, *time.Time) {
	c := NewMemoryCache(opts)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	return c, &now
}

func TestMemoryCache_SetAndTryGet(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestMemoryCache(MemoryCacheOptions{})

	require.NoError(t, c.Set(ctx, "hello", []float32{0.1, 0.2}))

	got, found, err := c.TryGet(ctx, "hello")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []float32{0.1, 0.2}, got)

	_, found, err = c.TryGet(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemoryCache_ReturnsCopy(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestMemoryCache(MemoryCacheOptions{})

	original := []float32{1, 2, 3}
	require.NoError(t, c.Set(ctx, "k", original))
	original[0] = 99

	got, found, err := c.TryGet(ctx, "k")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []float32{1, 2, 3}, got)

	got[1] = 99
	again, _, _ := c.TryGet(ctx, "k")
	assert.Equal(t, []float32{1, 2, 3}, again)
}

func TestMemoryCache_Expiration(t *testing.T) {
	ctx := context.Background()
	c, now := newTestMemoryCache(MemoryCacheOptions{Expiration: time.Hour})

	require.NoError(t, c.Set(ctx, "k", []float32{1}))

	*now = now.Add(59 * time.Minute)
	_, found, _ := c.TryGet(ctx, "k")
	assert.True(t, found)

	*now = now.Add(2 * time.Minute)
	_, found, _ = c.TryGet(ctx, "k")
	assert.False(t, found)

	// The expired entry is gone, not just hidden.
	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Entries)
}

func TestMemoryCache_EvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	c, now := newTestMemoryCache(MemoryCacheOptions{MaxEntries: 2})

	require.NoError(t, c.Set(ctx, "a", []float32{1}))
	*now = now.Add(time.Second)
	require.NoError(t, c.Set(ctx, "b", []float32{2}))

	// Touch "a" so "b" becomes the least recently used.
	*now = now.Add(time.Second)
	_, found, _ := c.TryGet(ctx, "a")
	require.True(t, found)

	*now = now.Add(time.Second)
	require.NoError(t, c.Set(ctx, "c", []float32{3}))

	_, found, _ = c.TryGet(ctx, "a")
	assert.True(t, found, "recently used entry survives")
	_, found, _ = c.TryGet(ctx, "b")
	assert.False(t, found, "least recently used entry evicted")
	_, found, _ = c.TryGet(ctx, "c")
	assert.True(t, found)
}

func TestMemoryCache_SetOverwritesWithoutEviction(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestMemoryCache(MemoryCacheOptions{MaxEntries: 2})

	require.NoError(t, c.Set(ctx, "a", []float32{1}))
	require.NoError(t, c.Set(ctx, "b", []float32{2}))
	require.NoError(t, c.Set(ctx, "a", []float32{10}))

	got, found, _ := c.TryGet(ctx, "a")
	require.True(t, found)
	assert.Equal(t, []float32{10}, got)
	_, found, _ = c.TryGet(ctx, "b")
	assert.True(t, found)
}

func TestMemoryCache_Disabled(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestMemoryCache(MemoryCacheOptions{Disabled: true})

	require.NoError(t, c.Set(ctx, "k", []float32{1}))
	_, found, err := c.TryGet(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Entries)
}

func TestMemoryCache_RemoveAndClear(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestMemoryCache(MemoryCacheOptions{})

	require.NoError(t, c.Set(ctx, "a", []float32{1}))
	require.NoError(t, c.Set(ctx, "b", []float32{2}))

	require.NoError(t, c.Remove(ctx, "a"))
	_, found, _ := c.TryGet(ctx, "a")
	assert.False(t, found)

	require.NoError(t, c.Clear(ctx))
	_, found, _ = c.TryGet(ctx, "b")
	assert.False(t, found)
}

func TestMemoryCache_Stats(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestMemoryCache(MemoryCacheOptions{})

	require.NoError(t, c.Set(ctx, "a", []float32{1}))
	require.NoError(t, c.Set(ctx, "b", []float32{2}))

	for i := 0; i < 3; i++ {
		c.TryGet(ctx, "a")
	}
	c.TryGet(ctx, "b")

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Entries)
	assert.Equal(t, int64(4), stats.TotalAccesses)
	assert.Equal(t, int64(3), stats.MaxAccesses)
}

// Package embedding wraps a raw embedding provider with the caching and
// resilience layers that make it safe to call under partial failure.
//
// Service is the entry point: every call either returns a vector or a
// well-typed *UnavailableError, never an unhandled fault. Successful
// results are written to a Cache; when the embedding backend's circuit is
// open, a previously cached vector for the exact same content is returned
// instead of failing.
//
// Two Cache implementations are provided:
//
//   - MemoryCache: bounded in-process LRU with time-based expiration
//   - RedisCache: Redis-backed cache for multi-process deployments,
//     with expiration delegated to Redis TTLs
//
// Concurrent requests for identical content are collapsed into a single
// backend call via singleflight.
package embedding

// Package ratelimit provides a per-tool, optionally per-caller request
// limiter enforcing three independent ceilings simultaneously: an
// instantaneous burst token bucket, a per-minute window, and a per-hour
// window. A request is admitted only when all three have capacity, and
// admitting consumes one unit from each.
//
// Buckets are keyed by (tool, caller). Callers that do not identify
// themselves share one anonymous bucket per tool. Per-tool configuration
// overrides the global default; unconfigured tools use the default table.
//
// # Usage
//
//	limiter := ratelimit.NewLimiter(cfg.RateLimit, logger)
//
//	d := limiter.TryAcquire("graphrag_query", callerID)
//	if !d.Allowed {
//		return fmt.Errorf("rate limited: %s (retry after %v)", d.Reason, d.RetryAfter)
//	}
//
// WaitAndAcquire additionally waits cooperatively until capacity frees or
// the caller's context is cancelled; cancellation yields a rejection with
// reason "cancelled", not an error.
package ratelimit

package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/docuverse/graphrag/config"
)

// AnonymousCaller is the caller ID used when a caller does not identify
// itself. All anonymous callers of a tool share one bucket.
const AnonymousCaller = "anonymous"

// ReasonCancelled is the rejection reason reported when a cooperative
// wait is cancelled by the caller's context.
const ReasonCancelled = "cancelled"

// maxWaitPoll bounds how long WaitAndAcquire sleeps between attempts so
// that freed capacity (e.g. an administrative Reset) is observed promptly.
const maxWaitPoll = 250 * time.Millisecond

// Decision is the outcome of an acquisition attempt.
type Decision struct {
	// Allowed reports whether the request was admitted.
	Allowed bool

	// Reason is a human-readable rejection reason, empty when Allowed.
	Reason string

	// RetryAfter is the time until the limiting ceiling next frees
	// capacity. Zero when Allowed.
	RetryAfter time.Duration

	// RemainingBurst is the whole number of burst tokens left.
	RemainingBurst int

	// RemainingMinute is the remaining per-minute capacity.
	RemainingMinute int

	// RemainingHour is the remaining per-hour capacity.
	RemainingHour int
}

// BucketStats is a point-in-time snapshot of one bucket's state.
type BucketStats struct {
	// Caller is the bucket's caller ID.
	Caller string

	// BurstTokens is the current burst token count, rounded down.
	BurstTokens int

	// CountMinute is the request count in the current minute window.
	CountMinute int

	// CountHour is the request count in the current hour window.
	CountHour int
}

// bucketKey identifies one (tool, caller) bucket.
type bucketKey struct {
	tool   string
	caller string
}

// bucket is the mutable token state for one (tool, caller) pair. It is
// mutated only under the limiter's lock and never escapes it.
type bucket struct {
	burstTokens       float64
	lastRefill        time.Time
	windowStartMinute time.Time
	countMinute       int
	windowStartHour   time.Time
	countHour         int
}

// Limiter enforces per-tool request ceilings. Safe for concurrent use.
type Limiter struct {
	mu       sync.Mutex
	enabled  bool
	defaults config.ToolLimitConfig
	tools    map[string]config.ToolLimitConfig
	buckets  map[bucketKey]*bucket
	logger   *slog.Logger

	// now is the clock, replaceable in tests.
	now func() time.Time
}

// NewLimiter creates a limiter from its configuration tables.
func NewLimiter(cfg config.RateLimitConfig, logger *slog.Logger) *Limiter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Limiter{
		enabled:  cfg.GetEnabled(),
		defaults: cfg.Default,
		tools:    cfg.Tools,
		buckets:  make(map[bucketKey]*bucket),
		logger:   logger,
		now:      time.Now,
	}
}

// limitsFor returns the effective limit table for a tool.
func (l *Limiter) limitsFor(tool string) config.ToolLimitConfig {
	if t, ok := l.tools[tool]; ok {
		return t
	}
	return l.defaults
}

// TryAcquire attempts to admit one request for the (tool, caller) bucket
// without blocking. An empty callerID uses the shared anonymous bucket.
func (l *Limiter) TryAcquire(tool, callerID string) Decision {
	if callerID == "" {
		callerID = AnonymousCaller
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	limits := l.limitsFor(tool)
	if !l.enabled {
		return Decision{
			Allowed:         true,
			RemainingBurst:  limits.GetBurstSize(),
			RemainingMinute: limits.GetRequestsPerMinute(),
			RemainingHour:   limits.GetRequestsPerHour(),
		}
	}

	now := l.now()
	key := bucketKey{tool: tool, caller: callerID}
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{
			burstTokens:       float64(limits.GetBurstSize()),
			lastRefill:        now,
			windowStartMinute: now,
			windowStartHour:   now,
		}
		l.buckets[key] = b
	}

	l.refill(b, limits, now)
	l.rollWindows(b, now)

	if d, ok := l.reject(b, limits, now); ok {
		l.logger.Debug("rate limit rejection",
			"tool", tool,
			"caller", callerID,
			"reason", d.Reason,
			"retry_after", d.RetryAfter)
		return d
	}

	b.burstTokens--
	b.countMinute++
	b.countHour++
	return Decision{
		Allowed:         true,
		RemainingBurst:  int(b.burstTokens),
		RemainingMinute: limits.GetRequestsPerMinute() - b.countMinute,
		RemainingHour:   limits.GetRequestsPerHour() - b.countHour,
	}
}

// WaitAndAcquire attempts to admit one request, waiting cooperatively
// until capacity frees or ctx is cancelled. Cancellation returns a
// rejection with reason "cancelled", not an error.
func (l *Limiter) WaitAndAcquire(ctx context.Context, tool, callerID string) Decision {
	for {
		d := l.TryAcquire(tool, callerID)
		if d.Allowed {
			return d
		}

		wait := d.RetryAfter
		if wait <= 0 || wait > maxWaitPoll {
			wait = maxWaitPoll
		}

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return Decision{Allowed: false, Reason: ReasonCancelled}
		case <-t.C:
		}
	}
}

// Reset clears all bucket state for a tool across every caller.
func (l *Limiter) Reset(tool string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key := range l.buckets {
		if key.tool == tool {
			delete(l.buckets, key)
		}
	}
}

// ResetAll clears all bucket state for every tool and caller.
func (l *Limiter) ResetAll() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buckets = make(map[bucketKey]*bucket)
}

// Stats returns a snapshot of every bucket for a tool, sorted by caller.
func (l *Limiter) Stats(tool string) []BucketStats {
	l.mu.Lock()
	defer l.mu.Unlock()

	var stats []BucketStats
	for key, b := range l.buckets {
		if key.tool != tool {
			continue
		}
		stats = append(stats, BucketStats{
			Caller:      key.caller,
			BurstTokens: int(b.burstTokens),
			CountMinute: b.countMinute,
			CountHour:   b.countHour,
		})
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Caller < stats[j].Caller })
	return stats
}

// refill adds burst tokens accrued since the last refill at the sustained
// per-minute rate, capped at the burst size. Callers must hold mu.
func (l *Limiter) refill(b *bucket, limits config.ToolLimitConfig, now time.Time) {
	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	rate := float64(limits.GetRequestsPerMinute()) / 60.0
	b.burstTokens = math.Min(float64(limits.GetBurstSize()), b.burstTokens+elapsed*rate)
	b.lastRefill = now
}

// rollWindows restarts the minute and hour windows when they have
// elapsed. Callers must hold mu.
func (l *Limiter) rollWindows(b *bucket, now time.Time) {
	if now.Sub(b.windowStartMinute) >= time.Minute {
		b.windowStartMinute = now
		b.countMinute = 0
	}
	if now.Sub(b.windowStartHour) >= time.Hour {
		b.windowStartHour = now
		b.countHour = 0
	}
}

// reject evaluates the three ceilings, returning a rejection decision for
// the first exhausted one. Callers must hold mu.
func (l *Limiter) reject(b *bucket, limits config.ToolLimitConfig, now time.Time) (Decision, bool) {
	remaining := func() (int, int, int) {
		return int(b.burstTokens),
			limits.GetRequestsPerMinute() - b.countMinute,
			limits.GetRequestsPerHour() - b.countHour
	}

	if b.burstTokens < 1 {
		rate := float64(limits.GetRequestsPerMinute()) / 60.0
		retry := time.Duration((1 - b.burstTokens) / rate * float64(time.Second))
		if retry <= 0 {
			retry = time.Second
		}
		rb, rm, rh := remaining()
		return Decision{
			Reason:          fmt.Sprintf("burst capacity of %d exhausted", limits.GetBurstSize()),
			RetryAfter:      retry,
			RemainingBurst:  rb,
			RemainingMinute: rm,
			RemainingHour:   rh,
		}, true
	}
	if b.countMinute >= limits.GetRequestsPerMinute() {
		rb, rm, rh := remaining()
		return Decision{
			Reason:          fmt.Sprintf("per-minute limit of %d reached", limits.GetRequestsPerMinute()),
			RetryAfter:      b.windowStartMinute.Add(time.Minute).Sub(now),
			RemainingBurst:  rb,
			RemainingMinute: rm,
			RemainingHour:   rh,
		}, true
	}
	if b.countHour >= limits.GetRequestsPerHour() {
		rb, rm, rh := remaining()
		return Decision{
			Reason:          fmt.Sprintf("per-hour limit of %d reached", limits.GetRequestsPerHour()),
			RetryAfter:      b.windowStartHour.Add(time.Hour).Sub(now),
			RemainingBurst:  rb,
			RemainingMinute: rm,
			RemainingHour:   rh,
		}, true
	}
	return Decision{}, false
}

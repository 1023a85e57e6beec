// Package config provides loading and parsing of the graphrag configuration
// block. The block is consumed, not owned: host applications embed it in
// their own configuration file and hand the decoded struct to this library.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full configuration block consumed by the library.
type Config struct {
	// Query holds query pipeline defaults.
	Query QueryConfig `yaml:"query,omitempty"`

	// Resilience holds per-dependency-class execution pipeline settings.
	Resilience ResilienceConfig `yaml:"resilience,omitempty"`

	// RateLimit holds per-tool rate limit tables.
	RateLimit RateLimitConfig `yaml:"rate_limit,omitempty"`

	// Cache holds embedding cache settings.
	Cache CacheConfig `yaml:"cache,omitempty"`
}

// QueryConfig holds query pipeline defaults.
type QueryConfig struct {
	// MaxChunksPerQuery is the default number of vector candidates
	// requested per query. Default: 10.
	MaxChunksPerQuery int `yaml:"max_chunks_per_query,omitempty"`

	// MinRelevanceScore is the default similarity threshold below which
	// candidates are dropped. Default: 0.7.
	MinRelevanceScore *float64 `yaml:"min_relevance_score,omitempty"`

	// MaxTraversalSteps bounds graph traversal depth. Default: 5.
	MaxTraversalSteps int `yaml:"max_traversal_steps,omitempty"`

	// UseCrossRepoLinks enables cross-repository enrichment. Default: true.
	UseCrossRepoLinks *bool `yaml:"use_cross_repo_links,omitempty"`
}

// GetMaxChunksPerQuery returns the configured candidate count, or the
// default of 10 when unset.
func (q QueryConfig) GetMaxChunksPerQuery() int {
	if q.MaxChunksPerQuery > 0 {
		return q.MaxChunksPerQuery
	}
	return 10
}

// GetMinRelevanceScore returns the configured relevance threshold, or the
// default of 0.7 when unset.
func (q QueryConfig) GetMinRelevanceScore() float64 {
	if q.MinRelevanceScore != nil {
		return *q.MinRelevanceScore
	}
	return 0.7
}

// GetMaxTraversalSteps returns the configured traversal bound, or the
// default of 5 when unset.
func (q QueryConfig) GetMaxTraversalSteps() int {
	if q.MaxTraversalSteps > 0 {
		return q.MaxTraversalSteps
	}
	return 5
}

// GetUseCrossRepoLinks reports whether cross-repository enrichment is
// enabled. Defaults to true when unset.
func (q QueryConfig) GetUseCrossRepoLinks() bool {
	if q.UseCrossRepoLinks != nil {
		return *q.UseCrossRepoLinks
	}
	return true
}

// ResilienceConfig holds one PipelineConfig per dependency class.
type ResilienceConfig struct {
	// EmbeddingBackend configures the "embedding-backend" pipeline.
	EmbeddingBackend PipelineConfig `yaml:"embedding_backend,omitempty"`

	// RelationalStore configures the "relational-store" pipeline.
	RelationalStore PipelineConfig `yaml:"relational_store,omitempty"`

	// Default configures the "default" pipeline used by every other
	// external call (LLM synthesis included).
	Default PipelineConfig `yaml:"default,omitempty"`
}

// PipelineConfig configures one named resilience pipeline.
// Duration fields use Go duration strings (e.g. "30s", "2m").
type PipelineConfig struct {
	// Timeout is the per-call timeout. Default: 30s.
	Timeout string `yaml:"timeout,omitempty"`

	// MaxRetryAttempts is the number of retries after the initial
	// attempt. Default: 3.
	MaxRetryAttempts int `yaml:"max_retry_attempts,omitempty"`

	// InitialDelay is the first backoff delay. Default: 200ms.
	InitialDelay string `yaml:"initial_delay,omitempty"`

	// MaxDelay caps the exponential backoff. Default: 5s.
	MaxDelay string `yaml:"max_delay,omitempty"`

	// Jitter enables randomized backoff delays.
	Jitter bool `yaml:"jitter,omitempty"`

	// FailureRatio is the failure fraction that trips the circuit
	// breaker once MinimumThroughput calls have been observed.
	// Default: 0.5.
	FailureRatio float64 `yaml:"failure_ratio,omitempty"`

	// MinimumThroughput is the minimum call sample before the breaker
	// evaluates FailureRatio. Default: 10.
	MinimumThroughput int `yaml:"minimum_throughput,omitempty"`

	// BreakDuration is how long an open circuit rejects calls before a
	// probe is allowed. Default: 30s.
	BreakDuration string `yaml:"break_duration,omitempty"`
}

// GetTimeout parses the per-call timeout, returning the default of 30s
// when unset or invalid.
func (p PipelineConfig) GetTimeout() time.Duration {
	return parseDuration(p.Timeout, 30*time.Second)
}

// GetMaxRetryAttempts returns the retry count, or the default of 3 when
// unset. A negative value means no retries.
func (p PipelineConfig) GetMaxRetryAttempts() int {
	if p.MaxRetryAttempts < 0 {
		return 0
	}
	if p.MaxRetryAttempts == 0 {
		return 3
	}
	return p.MaxRetryAttempts
}

// GetInitialDelay parses the first backoff delay, returning the default of
// 200ms when unset or invalid.
func (p PipelineConfig) GetInitialDelay() time.Duration {
	return parseDuration(p.InitialDelay, 200*time.Millisecond)
}

// GetMaxDelay parses the backoff cap, returning the default of 5s when
// unset or invalid.
func (p PipelineConfig) GetMaxDelay() time.Duration {
	return parseDuration(p.MaxDelay, 5*time.Second)
}

// GetFailureRatio returns the breaker failure threshold, or the default of
// 0.5 when unset.
func (p PipelineConfig) GetFailureRatio() float64 {
	if p.FailureRatio > 0 {
		return p.FailureRatio
	}
	return 0.5
}

// GetMinimumThroughput returns the breaker sample floor, or the default of
// 10 when unset.
func (p PipelineConfig) GetMinimumThroughput() int {
	if p.MinimumThroughput > 0 {
		return p.MinimumThroughput
	}
	return 10
}

// GetBreakDuration parses the open-circuit duration, returning the default
// of 30s when unset or invalid.
func (p PipelineConfig) GetBreakDuration() time.Duration {
	return parseDuration(p.BreakDuration, 30*time.Second)
}

// RateLimitConfig holds the per-tool rate limit tables.
type RateLimitConfig struct {
	// Enabled toggles the limiter; when false every acquisition
	// succeeds unconditionally. Defaults to true when unset.
	Enabled *bool `yaml:"enabled,omitempty"`

	// Default applies to tools without an entry in Tools.
	Default ToolLimitConfig `yaml:"default,omitempty"`

	// Tools maps tool names to their limit overrides.
	Tools map[string]ToolLimitConfig `yaml:"tools,omitempty"`
}

// GetEnabled reports whether the limiter is enabled. Defaults to true.
func (r RateLimitConfig) GetEnabled() bool {
	if r.Enabled != nil {
		return *r.Enabled
	}
	return true
}

// ToolLimitConfig holds the three ceilings enforced per bucket.
type ToolLimitConfig struct {
	// RequestsPerMinute caps requests within a fixed minute window.
	// Default: 60.
	RequestsPerMinute int `yaml:"requests_per_minute,omitempty"`

	// RequestsPerHour caps requests within a fixed hour window.
	// Default: 1000.
	RequestsPerHour int `yaml:"requests_per_hour,omitempty"`

	// BurstSize is the instantaneous token bucket capacity. Default: 10.
	BurstSize int `yaml:"burst_size,omitempty"`
}

// GetRequestsPerMinute returns the per-minute ceiling, or 60 when unset.
func (t ToolLimitConfig) GetRequestsPerMinute() int {
	if t.RequestsPerMinute > 0 {
		return t.RequestsPerMinute
	}
	return 60
}

// GetRequestsPerHour returns the per-hour ceiling, or 1000 when unset.
func (t ToolLimitConfig) GetRequestsPerHour() int {
	if t.RequestsPerHour > 0 {
		return t.RequestsPerHour
	}
	return 1000
}

// GetBurstSize returns the burst capacity, or 10 when unset.
func (t ToolLimitConfig) GetBurstSize() int {
	if t.BurstSize > 0 {
		return t.BurstSize
	}
	return 10
}

// Cache backends.
const (
	// CacheBackendMemory selects the in-process LRU cache.
	CacheBackendMemory = "memory"

	// CacheBackendRedis selects the Redis-backed cache for multi-process
	// deployments.
	CacheBackendRedis = "redis"
)

// CacheConfig holds embedding cache settings.
type CacheConfig struct {
	// Enabled toggles the cache; when false every read misses and every
	// write is a no-op. Defaults to true when unset.
	Enabled *bool `yaml:"enabled,omitempty"`

	// Backend selects the cache implementation ("memory" or "redis").
	// Default: "memory".
	Backend string `yaml:"backend,omitempty"`

	// MaxEntries bounds the in-memory cache. Default: 1000.
	MaxEntries int `yaml:"max_entries,omitempty"`

	// ExpirationHours is the entry time-to-live in hours. Default: 24.
	ExpirationHours int `yaml:"expiration_hours,omitempty"`

	// RedisURL is the Redis connection string used when Backend is
	// "redis" (e.g. "redis://localhost:6379").
	RedisURL string `yaml:"redis_url,omitempty"`
}

// GetEnabled reports whether the cache is enabled. Defaults to true.
func (c CacheConfig) GetEnabled() bool {
	if c.Enabled != nil {
		return *c.Enabled
	}
	return true
}

// GetBackend returns the cache backend, or "memory" when unset.
func (c CacheConfig) GetBackend() string {
	if c.Backend != "" {
		return c.Backend
	}
	return CacheBackendMemory
}

// GetMaxEntries returns the cache capacity, or 1000 when unset.
func (c CacheConfig) GetMaxEntries() int {
	if c.MaxEntries > 0 {
		return c.MaxEntries
	}
	return 1000
}

// GetExpiration returns the entry time-to-live, or 24h when unset.
func (c CacheConfig) GetExpiration() time.Duration {
	if c.ExpirationHours > 0 {
		return time.Duration(c.ExpirationHours) * time.Hour
	}
	return 24 * time.Hour
}

// Load parses a Config from yaml bytes and validates it.
func Load(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFile reads and parses a Config from a yaml file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return Load(data)
}

// Default returns a Config with every field unset, meaning all Get*
// accessors return their documented defaults.
func Default() *Config {
	return &Config{}
}

// Validate checks the configuration for values that cannot be defaulted
// around.
func (c *Config) Validate() error {
	if s := c.Query.MinRelevanceScore; s != nil && (*s < 0 || *s > 1) {
		return fmt.Errorf("query.min_relevance_score %v outside [0, 1]", *s)
	}
	if r := c.Resilience.EmbeddingBackend.FailureRatio; r < 0 || r > 1 {
		return fmt.Errorf("resilience.embedding_backend.failure_ratio %v outside [0, 1]", r)
	}
	if r := c.Resilience.RelationalStore.FailureRatio; r < 0 || r > 1 {
		return fmt.Errorf("resilience.relational_store.failure_ratio %v outside [0, 1]", r)
	}
	if r := c.Resilience.Default.FailureRatio; r < 0 || r > 1 {
		return fmt.Errorf("resilience.default.failure_ratio %v outside [0, 1]", r)
	}
	if c.Cache.GetBackend() != CacheBackendMemory && c.Cache.GetBackend() != CacheBackendRedis {
		return fmt.Errorf("cache.backend %q is not one of %q, %q", c.Cache.Backend, CacheBackendMemory, CacheBackendRedis)
	}
	return nil
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

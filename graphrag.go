package graphrag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/docuverse/graphrag/config"
	"github.com/docuverse/graphrag/embedding"
	"github.com/docuverse/graphrag/graph"
	"github.com/docuverse/graphrag/llm"
	"github.com/docuverse/graphrag/pipeline"
	"github.com/docuverse/graphrag/ratelimit"
	"github.com/docuverse/graphrag/resilience"
	"github.com/docuverse/graphrag/resolve"
	"github.com/docuverse/graphrag/telemetry"
)

// QueryTool is the rate limiter tool name under which facade queries are
// accounted.
const QueryTool = "graphrag_query"

// Deps are the external collaborators a System is wired with. Embedder,
// VectorStore, GraphStore, and LLM are required; the rest default.
type Deps struct {
	// Embedder is the raw embedding backend.
	Embedder embedding.Provider

	// VectorStore serves dense similarity search.
	VectorStore graph.VectorStore

	// GraphStore serves chunk, concept, and document lookups.
	GraphStore graph.GraphStore

	// LLM synthesizes answers.
	LLM llm.Provider

	// Cache overrides the configured embedding cache backend. Optional.
	Cache embedding.Cache

	// Logger receives structured logs. Optional; defaults to
	// slog.Default().
	Logger *slog.Logger

	// TracerProvider enables per-stage spans. Optional.
	TracerProvider trace.TracerProvider

	// MeterProvider enables the metric instrument bundle. Optional.
	MeterProvider metric.MeterProvider
}

// System is the assembled query system: the pipeline plus the shared
// resilience, caching, and rate limiting infrastructure. Safe for
// concurrent use.
type System struct {
	pipeline *pipeline.Pipeline
	embedder *embedding.Service
	limiter  *ratelimit.Limiter
	policies *resilience.Policies
	cache    embedding.Cache
	logger   *slog.Logger

	instruments *telemetry.Instruments
}

// New wires a System from configuration and dependencies. A nil cfg uses
// all defaults.
func New(cfg *config.Config, deps Deps) (*System, error) {
	const op = "graphrag.New"

	if deps.Embedder == nil {
		return nil, NewConfigurationError(op, fmt.Errorf("%w: embedding provider is required", ErrInvalidConfig))
	}
	if deps.VectorStore == nil {
		return nil, NewConfigurationError(op, fmt.Errorf("%w: vector store is required", ErrInvalidConfig))
	}
	if deps.GraphStore == nil {
		return nil, NewConfigurationError(op, fmt.Errorf("%w: graph store is required", ErrInvalidConfig))
	}
	if deps.LLM == nil {
		return nil, NewConfigurationError(op, fmt.Errorf("%w: llm provider is required", ErrInvalidConfig))
	}

	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, NewConfigurationError(op, err)
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var instruments *telemetry.Instruments
	if deps.MeterProvider != nil {
		var err error
		instruments, err = telemetry.NewInstruments(deps.MeterProvider.Meter(telemetry.ServiceName))
		if err != nil {
			return nil, NewConfigurationError(op, err)
		}
	}

	policies := resilience.NewPolicies(cfg.Resilience, logger)
	policies.OnStateChange(func(name resilience.Name, from, to resilience.State) {
		logger.Warn("circuit breaker state change",
			"pipeline", string(name),
			"from", from.String(),
			"to", to.String())
		instruments.RecordBreakerTransition(context.Background(), string(name), from.String(), to.String())
	})

	cache := deps.Cache
	if cache == nil {
		var err error
		cache, err = newCache(cfg.Cache)
		if err != nil {
			return nil, NewConfigurationError(op, err)
		}
	}

	embedder := embedding.NewService(deps.Embedder, cache, policies, logger)
	embedder.SetInstruments(instruments)
	limiter := ratelimit.NewLimiter(cfg.RateLimit, logger)
	resolver := resolve.NewResolver(deps.GraphStore, logger)

	var tracer trace.Tracer
	if deps.TracerProvider != nil {
		tracer = telemetry.Tracer(deps.TracerProvider)
	}

	pipe, err := pipeline.New(pipeline.Deps{
		Embedder:    embedder,
		VectorStore: deps.VectorStore,
		GraphStore:  deps.GraphStore,
		LLM:         deps.LLM,
		Resolver:    resolver,
		Policies:    policies,
		Logger:      logger,
		Tracer:      tracer,
		Instruments: instruments,
	}, cfg.Query)
	if err != nil {
		return nil, NewConfigurationError(op, err)
	}

	return &System{
		pipeline:    pipe,
		embedder:    embedder,
		limiter:     limiter,
		policies:    policies,
		cache:       cache,
		logger:      logger,
		instruments: instruments,
	}, nil
}

// newCache builds the configured embedding cache backend.
func newCache(cfg config.CacheConfig) (embedding.Cache, error) {
	switch cfg.GetBackend() {
	case config.CacheBackendRedis:
		return embedding.NewRedisCache(embedding.RedisCacheOptions{
			URL:        cfg.RedisURL,
			Expiration: cfg.GetExpiration(),
			Disabled:   !cfg.GetEnabled(),
		})
	default:
		return embedding.NewMemoryCache(embedding.MemoryCacheOptions{
			MaxEntries: cfg.GetMaxEntries(),
			Expiration: cfg.GetExpiration(),
			Disabled:   !cfg.GetEnabled(),
		}), nil
	}
}

// Query answers text over the corpus. The call is accounted against the
// QueryTool rate limit bucket for callerID; an empty callerID shares the
// anonymous bucket. opts may be nil.
func (s *System) Query(ctx context.Context, text string, opts *pipeline.Options, callerID string) (*pipeline.Result, error) {
	const op = "System.Query"

	if strings.TrimSpace(text) == "" {
		return nil, NewValidationError(op, ErrEmptyQuery)
	}

	if d := s.limiter.TryAcquire(QueryTool, callerID); !d.Allowed {
		s.instruments.RecordRateLimitRejection(ctx, QueryTool)
		return nil, NewRateLimitedError(op,
			fmt.Errorf("%w: %s (retry after %v)", ErrRateLimited, d.Reason, d.RetryAfter))
	}

	return s.pipeline.Query(ctx, text, opts)
}

// Pipeline returns the underlying query pipeline for callers that manage
// rate limiting themselves.
func (s *System) Pipeline() *pipeline.Pipeline {
	return s.pipeline
}

// Embedder returns the resilient embedding service.
func (s *System) Embedder() *embedding.Service {
	return s.embedder
}

// Limiter returns the rate limiter for administrative operations.
func (s *System) Limiter() *ratelimit.Limiter {
	return s.limiter
}

// CacheStats reports embedding cache effectiveness counters.
func (s *System) CacheStats(ctx context.Context) (embedding.CacheStats, error) {
	return s.cache.Stats(ctx)
}

package resilience

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"time"

	"github.com/docuverse/graphrag/config"
)

// Name identifies a resilience pipeline. One pipeline exists per external
// dependency class, not per call site.
type Name string

const (
	// PipelineEmbeddingBackend wraps calls to the embedding provider.
	PipelineEmbeddingBackend Name = "embedding-backend"

	// PipelineRelationalStore wraps calls to the vector and graph stores.
	PipelineRelationalStore Name = "relational-store"

	// PipelineDefault wraps every other external call.
	PipelineDefault Name = "default"
)

// AllNames returns all named pipelines.
func AllNames() []Name {
	return []Name{PipelineEmbeddingBackend, PipelineRelationalStore, PipelineDefault}
}

// Pipeline is one named execution pipeline: timeout, retry with backoff,
// and a circuit breaker shared by all of the pipeline's callers.
type Pipeline struct {
	name         Name
	timeout      time.Duration
	maxRetries   int
	initialDelay time.Duration
	maxDelay     time.Duration
	jitter       bool
	breaker      *CircuitBreaker
	logger       *slog.Logger

	// sleep waits for the backoff delay or context cancellation,
	// replaceable in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewPipeline creates a pipeline from its configuration.
func NewPipeline(name Name, cfg config.PipelineConfig, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		name:         name,
		timeout:      cfg.GetTimeout(),
		maxRetries:   cfg.GetMaxRetryAttempts(),
		initialDelay: cfg.GetInitialDelay(),
		maxDelay:     cfg.GetMaxDelay(),
		jitter:       cfg.Jitter,
		breaker: NewCircuitBreaker(BreakerSettings{
			FailureRatio:      cfg.GetFailureRatio(),
			MinimumThroughput: cfg.GetMinimumThroughput(),
			BreakDuration:     cfg.GetBreakDuration(),
		}),
		logger: logger.With("pipeline", string(name)),
		sleep:  sleepContext,
	}
}

// Name returns the pipeline name.
func (p *Pipeline) Name() Name {
	return p.name
}

// Breaker returns the pipeline's shared circuit breaker.
func (p *Pipeline) Breaker() *CircuitBreaker {
	return p.breaker
}

// backoff returns the delay before the given zero-based retry.
func (p *Pipeline) backoff(retry int) time.Duration {
	d := p.initialDelay << uint(retry)
	if d <= 0 || d > p.maxDelay {
		d = p.maxDelay
	}
	if p.jitter {
		d = d/2 + time.Duration(rand.Int63n(int64(d/2)+1))
	}
	return d
}

// Policies is the set of named pipelines injected into every component
// that performs external calls. Breaker state is per pipeline: one
// dependency's failures trip only that pipeline's breaker.
type Policies struct {
	pipelines map[Name]*Pipeline
}

// NewPolicies builds the three named pipelines from configuration.
func NewPolicies(cfg config.ResilienceConfig, logger *slog.Logger) *Policies {
	return &Policies{
		pipelines: map[Name]*Pipeline{
			PipelineEmbeddingBackend: NewPipeline(PipelineEmbeddingBackend, cfg.EmbeddingBackend, logger),
			PipelineRelationalStore:  NewPipeline(PipelineRelationalStore, cfg.RelationalStore, logger),
			PipelineDefault:          NewPipeline(PipelineDefault, cfg.Default, logger),
		},
	}
}

// Get returns the pipeline for name, falling back to the default pipeline
// for unknown names.
func (p *Policies) Get(name Name) *Pipeline {
	if pl, ok := p.pipelines[name]; ok {
		return pl
	}
	return p.pipelines[PipelineDefault]
}

// OnStateChange registers fn to be called for every breaker transition of
// every pipeline. Must be called before the policies are shared across
// goroutines.
func (p *Policies) OnStateChange(fn func(pipeline Name, from, to State)) {
	for name, pl := range p.pipelines {
		name := name
		pl.breaker.onStateChange = func(from, to State) {
			fn(name, from, to)
		}
	}
}

// Execute runs op through the named pipeline. The operation receives a
// context bounded by the pipeline's per-call timeout, derived from ctx so
// caller cancellation propagates.
//
// Transient failures are retried MaxRetryAttempts times after the initial
// attempt. When every attempt fails, the original error is returned
// unchanged unless the final attempt timed out, in which case a
// *TimeoutError is returned. An open breaker rejects immediately with a
// *CircuitOpenError without invoking op. Non-transient failures are
// returned unchanged without retrying.
func Execute[T any](ctx context.Context, policies *Policies, name Name, op func(ctx context.Context) (T, error)) (T, error) {
	return run(ctx, policies.Get(name), op)
}

func run[T any](ctx context.Context, p *Pipeline, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	attempts := p.maxRetries + 1
	var lastErr error
	timedOut := false

	for attempt := 0; attempt < attempts; attempt++ {
		allowed, retryAfter := p.breaker.Allow()
		if !allowed {
			return zero, &CircuitOpenError{Pipeline: p.name, RetryAfter: retryAfter}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, p.timeout)
		v, err := op(attemptCtx)
		cancel()

		if err == nil {
			p.breaker.RecordSuccess()
			return v, nil
		}

		// Caller cancellation is not a dependency failure.
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}

		p.breaker.RecordFailure()
		lastErr = err
		timedOut = errors.Is(err, context.DeadlineExceeded)

		if !IsTransient(err) {
			return zero, err
		}

		if attempt < attempts-1 {
			delay := p.backoff(attempt)
			p.logger.Debug("retrying after transient failure",
				"attempt", attempt+1,
				"delay", delay,
				"error", err)
			if err := p.sleep(ctx, delay); err != nil {
				return zero, err
			}
		}
	}

	if timedOut {
		return zero, &TimeoutError{Pipeline: p.name, Timeout: p.timeout, Err: lastErr}
	}
	return zero, lastErr
}

// sleepContext waits for d or until ctx is cancelled, returning the
// context error on cancellation.
func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

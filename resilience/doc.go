// Package resilience provides named execution pipelines that make external
// dependency calls safe under partial failure.
//
// Each pipeline composes three policies, applied in order around every
// call:
//
//   - a per-call timeout
//   - a retry with exponential backoff (optionally jittered)
//   - a circuit breaker shared by all callers of the pipeline
//
// One pipeline exists per dependency class rather than per call site, so a
// failing dependency trips only its own breaker:
//
//   - "embedding-backend" wraps calls to the embedding provider
//   - "relational-store" wraps calls to the vector/graph stores
//   - "default" wraps everything else, LLM synthesis included
//
// # Usage
//
//	policies := resilience.NewPolicies(cfg.Resilience, logger)
//
//	vec, err := resilience.Execute(ctx, policies, resilience.PipelineEmbeddingBackend,
//		func(ctx context.Context) ([]float32, error) {
//			return provider.GenerateEmbedding(ctx, content)
//		})
//
// # Error Contract
//
// Transient failures (network errors, timeouts, and errors wrapped with
// NewTransient) are retried up to MaxRetryAttempts times after the initial
// attempt. When every attempt fails the original error is returned
// unchanged, except for timeouts, which surface as a *TimeoutError. An
// open circuit rejects the call immediately with a *CircuitOpenError,
// without invoking the operation. Both typed errors match their sentinel
// with errors.Is (ErrTimeout, ErrCircuitOpen), letting callers distinguish
// "try later" from "bad input". Caller cancellation is returned as the
// context error and is never counted as a dependency failure.
//
// Components must not layer their own retries on top of a pipeline;
// compounding backoff multiplies recovery time under load.
package resilience

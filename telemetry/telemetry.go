// Package telemetry provides OpenTelemetry tracer and meter construction
// plus the instrument bundle recorded by the query pipeline and its
// supporting layers. All recording call sites are nil-safe: a nil
// *Instruments disables measurement without branching at every caller.
package telemetry

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// ServiceName identifies this library in exported telemetry.
const ServiceName = "docuverse-graphrag"

// NewTracerProvider creates a TracerProvider with the library's service
// resource and the given span exporter. A nil exporter yields a provider
// that records spans locally without exporting.
func NewTracerProvider(exporter sdktrace.SpanExporter, logger *slog.Logger) *sdktrace.TracerProvider {
	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(ServiceName),
		),
	)
	if err != nil {
		if logger != nil {
			logger.Warn("failed to create resource, using default", "error", err)
		}
		res = resource.Default()
	}

	opts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	if exporter != nil {
		opts = append(opts, sdktrace.WithBatcher(exporter))
	}
	return sdktrace.NewTracerProvider(opts...)
}

// NewMeterProvider creates a MeterProvider with the library's service
// resource and the given reader. A nil reader yields a provider that
// aggregates without exporting.
func NewMeterProvider(reader sdkmetric.Reader) *sdkmetric.MeterProvider {
	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(ServiceName),
		),
	)
	if err != nil {
		res = resource.Default()
	}

	opts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	if reader != nil {
		opts = append(opts, sdkmetric.WithReader(reader))
	}
	return sdkmetric.NewMeterProvider(opts...)
}

// Tracer returns the library's tracer from a provider.
func Tracer(tp trace.TracerProvider) trace.Tracer {
	return tp.Tracer(ServiceName)
}

// Instruments bundles the metric instruments recorded across the
// library.
type Instruments struct {
	// QueryDuration measures end-to-end pipeline latency in seconds.
	QueryDuration metric.Float64Histogram

	// CacheHits counts embedding cache hits.
	CacheHits metric.Int64Counter

	// CacheMisses counts embedding cache misses.
	CacheMisses metric.Int64Counter

	// BreakerTransitions counts circuit breaker state changes, with
	// pipeline/from/to attributes.
	BreakerTransitions metric.Int64Counter

	// RateLimitRejections counts rejected acquisitions, with a tool
	// attribute.
	RateLimitRejections metric.Int64Counter
}

// NewInstruments creates the instrument bundle on the given meter.
func NewInstruments(meter metric.Meter) (*Instruments, error) {
	queryDuration, err := meter.Float64Histogram("graphrag.query.duration",
		metric.WithDescription("End-to-end query pipeline latency"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}
	cacheHits, err := meter.Int64Counter("graphrag.embedding.cache.hits",
		metric.WithDescription("Embedding cache hits"))
	if err != nil {
		return nil, err
	}
	cacheMisses, err := meter.Int64Counter("graphrag.embedding.cache.misses",
		metric.WithDescription("Embedding cache misses"))
	if err != nil {
		return nil, err
	}
	breakerTransitions, err := meter.Int64Counter("graphrag.resilience.breaker.transitions",
		metric.WithDescription("Circuit breaker state transitions"))
	if err != nil {
		return nil, err
	}
	rateLimitRejections, err := meter.Int64Counter("graphrag.ratelimit.rejections",
		metric.WithDescription("Rejected rate limit acquisitions"))
	if err != nil {
		return nil, err
	}

	return &Instruments{
		QueryDuration:       queryDuration,
		CacheHits:           cacheHits,
		CacheMisses:         cacheMisses,
		BreakerTransitions:  breakerTransitions,
		RateLimitRejections: rateLimitRejections,
	}, nil
}

// RecordQueryDuration records pipeline latency. Nil-safe.
func (i *Instruments) RecordQueryDuration(ctx context.Context, seconds float64) {
	if i == nil {
		return
	}
	i.QueryDuration.Record(ctx, seconds)
}

// RecordCacheHit counts one embedding cache hit. Nil-safe.
func (i *Instruments) RecordCacheHit(ctx context.Context) {
	if i == nil {
		return
	}
	i.CacheHits.Add(ctx, 1)
}

// RecordCacheMiss counts one embedding cache miss. Nil-safe.
func (i *Instruments) RecordCacheMiss(ctx context.Context) {
	if i == nil {
		return
	}
	i.CacheMisses.Add(ctx, 1)
}

// RecordBreakerTransition counts one breaker state change. Nil-safe.
func (i *Instruments) RecordBreakerTransition(ctx context.Context, pipeline, from, to string) {
	if i == nil {
		return
	}
	i.BreakerTransitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("pipeline", pipeline),
		attribute.String("from", from),
		attribute.String("to", to),
	))
}

// RecordRateLimitRejection counts one rejected acquisition. Nil-safe.
func (i *Instruments) RecordRateLimitRejection(ctx context.Context, tool string) {
	if i == nil {
		return
	}
	i.RateLimitRejections.Add(ctx, 1, metric.WithAttributes(
		attribute.String("tool", tool),
	))
}

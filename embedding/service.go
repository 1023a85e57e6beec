package embedding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/docuverse/graphrag/resilience"
	"github.com/docuverse/graphrag/telemetry"
)

// Service wraps a raw embedding Provider with the "embedding-backend"
// resilience pipeline and a Cache. Every call either returns a vector or
// a well-typed unavailability error.
//
// When the backend's circuit is open, or a network-class failure occurs,
// the cache is consulted for the exact requested content before giving
// up; a stale-but-available vector beats no vector. Safe for concurrent
// use; concurrent requests for identical content share one backend call.
type Service struct {
	provider    Provider
	cache       Cache
	policies    *resilience.Policies
	logger      *slog.Logger
	instruments *telemetry.Instruments
	group       singleflight.Group

	mu        sync.RWMutex
	available bool
}

// NewService creates a Service. cache may be a disabled cache but must
// not be nil.
func NewService(provider Provider, cache Cache, policies *resilience.Policies, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		provider:  provider,
		cache:     cache,
		policies:  policies,
		logger:    logger,
		available: true,
	}
}

// SetInstruments attaches the metric instrument bundle. Must be called
// before the service is shared across goroutines; a nil bundle disables
// cache hit/miss counting.
func (s *Service) SetInstruments(instruments *telemetry.Instruments) {
	s.instruments = instruments
}

// IsAvailable reports whether the last backend interaction succeeded.
// It flips false on any network-class or circuit-open failure and back to
// true on the next successful call.
func (s *Service) IsAvailable() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.available
}

func (s *Service) setAvailable(v bool) {
	s.mu.Lock()
	s.available = v
	s.mu.Unlock()
}

// GenerateEmbedding returns the vector for content, from the backend or,
// when the backend is unavailable, from the cache. Empty or
// whitespace-only content is rejected before any network call. A
// caller's cancellation fails only that caller; the shared backend call
// continues for the rest of the group.
func (s *Service) GenerateEmbedding(ctx context.Context, content string) ([]float32, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// The shared call is detached from any one caller's context so a
	// cancelled caller cannot fail the whole group. The backend call
	// stays bounded by the pipeline timeout.
	ch := s.group.DoChan(content, func() (any, error) {
		return s.generate(context.WithoutCancel(ctx), content)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]float32), nil
	}
}

func (s *Service) generate(ctx context.Context, content string) ([]float32, error) {
	vector, err := resilience.Execute(ctx, s.policies, resilience.PipelineEmbeddingBackend,
		func(ctx context.Context) ([]float32, error) {
			return s.provider.GenerateEmbedding(ctx, content)
		})
	if err == nil {
		s.setAvailable(true)
		s.store(ctx, content, vector)
		return vector, nil
	}
	return s.degrade(ctx, content, err)
}

// GenerateEmbeddings is the batch variant. Already-cached contents are
// served from the cache; only the not-cached remainder is sent to the
// backend in a single call, and the combined result preserves input
// order. An empty input returns an empty result without a backend call.
func (s *Service) GenerateEmbeddings(ctx context.Context, contents []string) ([][]float32, error) {
	if len(contents) == 0 {
		return [][]float32{}, nil
	}
	for _, content := range contents {
		if strings.TrimSpace(content) == "" {
			return nil, ErrEmptyContent
		}
	}

	vectors := make([][]float32, len(contents))
	missing := make([]string, 0, len(contents))
	missingAt := make(map[string][]int)

	for i, content := range contents {
		if cached, found, err := s.cache.TryGet(ctx, content); err == nil && found {
			s.instruments.RecordCacheHit(ctx)
			vectors[i] = cached
			continue
		}
		s.instruments.RecordCacheMiss(ctx)
		if _, seen := missingAt[content]; !seen {
			missing = append(missing, content)
		}
		missingAt[content] = append(missingAt[content], i)
	}

	if len(missing) == 0 {
		return vectors, nil
	}

	fetched, err := resilience.Execute(ctx, s.policies, resilience.PipelineEmbeddingBackend,
		func(ctx context.Context) ([][]float32, error) {
			return s.provider.GenerateEmbeddings(ctx, missing)
		})
	if err != nil {
		// No cache fallback applies here: the missing subset is by
		// definition not cached.
		_, derr := s.degrade(ctx, "", err)
		return nil, derr
	}

	if len(fetched) != len(missing) {
		return nil, fmt.Errorf("embedding: backend returned %d vectors for %d contents", len(fetched), len(missing))
	}

	s.setAvailable(true)
	for i, content := range missing {
		s.store(ctx, content, fetched[i])
		for _, at := range missingAt[content] {
			vectors[at] = fetched[i]
		}
	}
	return vectors, nil
}

// store writes a freshly fetched vector to the cache. Cache write
// failures are logged, not surfaced; the vector is already in hand.
func (s *Service) store(ctx context.Context, content string, vector []float32) {
	if err := s.cache.Set(ctx, content, vector); err != nil {
		s.logger.Warn("failed to cache embedding", "error", err)
	}
}

// degrade classifies a backend failure. Circuit-open and network-class
// failures mark the service unavailable and, for single lookups, fall
// back to the cache before surfacing a typed unavailability error.
// Caller cancellation passes through unchanged.
func (s *Service) degrade(ctx context.Context, content string, err error) ([]float32, error) {
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return nil, err
	}

	open := errors.Is(err, resilience.ErrCircuitOpen)
	if !open && !errors.Is(err, resilience.ErrTimeout) && !resilience.IsTransient(err) {
		return nil, err
	}

	s.setAvailable(false)

	if content != "" {
		if cached, found, cerr := s.cache.TryGet(ctx, content); cerr == nil && found {
			s.instruments.RecordCacheHit(ctx)
			s.logger.Warn("embedding backend unavailable, serving cached vector",
				"circuit_open", open,
				"error", err)
			return cached, nil
		}
		s.instruments.RecordCacheMiss(ctx)
	}

	return nil, &UnavailableError{Reason: err.Error(), Err: err}
}

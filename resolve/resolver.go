// Package resolve provides cross-repository entity resolution: given a
// concept name, it finds the canonical concept in the graph store, its
// depth-1 neighborhood, and the repository its source chunks belong to.
package resolve

import (
	"context"
	"log/slog"
	"strings"

	"github.com/docuverse/graphrag/graph"
)

// ResolvedEntity is the on-demand result of resolving one concept name.
// It is never persisted; its lifetime is one resolution call.
type ResolvedEntity struct {
	// ConceptID is the canonical concept's ID.
	ConceptID string

	// Name is the canonical concept's name.
	Name string

	// Repository is the repository the concept's source chunks belong
	// to, or "" when it cannot be derived.
	Repository string

	// RelatedConceptIDs are the IDs of depth-1 related concepts. Empty,
	// never nil, when there are none.
	RelatedConceptIDs []string

	// RelatedConceptNames are the names of depth-1 related concepts.
	// Empty, never nil, when there are none.
	RelatedConceptNames []string
}

// Resolver resolves concept names against the graph store.
type Resolver struct {
	store  graph.GraphStore
	logger *slog.Logger
}

// NewResolver creates a Resolver backed by the given graph store.
func NewResolver(store graph.GraphStore, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{store: store, logger: logger}
}

// Resolve looks up a concept by name and builds its resolved entity.
// A name that matches no concept returns (nil, nil): not found is not an
// error. The caller's context is passed through to every store call.
func (r *Resolver) Resolve(ctx context.Context, name string) (*ResolvedEntity, error) {
	concepts, err := r.store.FindConceptsByName(ctx, normalizeName(name))
	if err != nil {
		return nil, err
	}
	if len(concepts) == 0 {
		return nil, nil
	}
	concept := concepts[0]

	related, err := r.store.GetRelatedConcepts(ctx, concept.ID, 1)
	if err != nil {
		return nil, err
	}

	chunks, err := r.store.GetChunksByConcept(ctx, concept.ID)
	if err != nil {
		return nil, err
	}

	entity := &ResolvedEntity{
		ConceptID:           concept.ID,
		Name:                concept.Name,
		Repository:          DeriveRepository(chunks),
		RelatedConceptIDs:   make([]string, 0, len(related)),
		RelatedConceptNames: make([]string, 0, len(related)),
	}
	for _, c := range related {
		entity.RelatedConceptIDs = append(entity.RelatedConceptIDs, c.ID)
		entity.RelatedConceptNames = append(entity.RelatedConceptNames, c.Name)
	}
	return entity, nil
}

// DeriveRepository returns the repository of the first chunk whose
// document ID carries a "<repository>:<path>" namespace, or "" when no
// chunk does.
func DeriveRepository(chunks []graph.ChunkNode) string {
	for _, chunk := range chunks {
		if i := strings.Index(chunk.DocumentID, ":"); i > 0 {
			return chunk.DocumentID[:i]
		}
	}
	return ""
}

// normalizeName lowercases and trims a concept name for lookup.
func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

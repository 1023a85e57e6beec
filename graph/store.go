package graph

import "context"

// VectorStore is the consumed contract of the dense vector index.
type VectorStore interface {
	// Search returns up to topK results ordered by descending score.
	// filters, when non-nil, is an equality filter over result metadata;
	// callers omit it (pass nil) rather than passing an empty map.
	Search(ctx context.Context, vector []float32, topK int, filters map[string]string) ([]VectorSearchResult, error)
}

// GraphStore is the consumed contract of the concept/document graph.
//
// Implementations must pass the caller's context through to the underlying
// engine unchanged so that cancellation propagates. Lookups that find
// nothing return empty slices, not errors.
type GraphStore interface {
	// GetChunksByIDs returns the chunk bodies for the given IDs. Unknown
	// IDs are skipped silently.
	GetChunksByIDs(ctx context.Context, ids []string) ([]ChunkNode, error)

	// GetConceptsByChunkIDs returns the concepts linked to any of the
	// given chunks, deduplicated.
	GetConceptsByChunkIDs(ctx context.Context, chunkIDs []string) ([]ConceptNode, error)

	// GetLinkedDocuments returns documents linked to the given document
	// through explicit cross-reference edges.
	GetLinkedDocuments(ctx context.Context, documentID string) ([]DocumentNode, error)

	// FindConceptsByName returns concepts whose normalized name matches
	// the given name.
	FindConceptsByName(ctx context.Context, name string) ([]ConceptNode, error)

	// GetRelatedConcepts returns concepts reachable from the given concept
	// within depth hops.
	GetRelatedConcepts(ctx context.Context, conceptID string, depth int) ([]ConceptNode, error)

	// GetChunksByConcept returns the chunks linked to the given concept.
	GetChunksByConcept(ctx context.Context, conceptID string) ([]ChunkNode, error)
}

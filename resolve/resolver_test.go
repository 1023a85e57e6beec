package resolve

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docuverse/graphrag/graph"
)

// mockGraphStore implements graph.GraphStore with replaceable funcs.
type mockGraphStore struct {
	findConceptsByName func(ctx context.Context, name string) ([]graph.ConceptNode, error)
	getRelatedConcepts func(ctx context.Context, conceptID string, depth int) ([]graph.ConceptNode, error)
	getChunksByConcept func(ctx context.Context, conceptID string) ([]graph.ChunkNode, error)
}

func (m *mockGraphStore) GetChunksByIDs(_ context.Context, _ []string) ([]graph.ChunkNode, error) {
	return nil, nil
}

func (m *mockGraphStore) GetConceptsByChunkIDs(_ context.Context, _ []string) ([]graph.ConceptNode, error) {
	return nil, nil
}

func (m *mockGraphStore) GetLinkedDocuments(_ context.Context, _ string) ([]graph.DocumentNode, error) {
	return nil, nil
}

func (m *mockGraphStore) FindConceptsByName(ctx context.Context, name string) ([]graph.ConceptNode, error) {
	return m.findConceptsByName(ctx, name)
}

func (m *mockGraphStore) GetRelatedConcepts(ctx context.Context, conceptID string, depth int) ([]graph.ConceptNode, error) {
	return m.getRelatedConcepts(ctx, conceptID, depth)
}

func (m *mockGraphStore) GetChunksByConcept(ctx context.Context, conceptID string) ([]graph.ChunkNode, error) {
	return m.getChunksByConcept(ctx, conceptID)
}

func TestResolve_BuildsEntityFromGraph(t *testing.T) {
	var gotName string
	var gotDepth int
	store := &mockGraphStore{
		findConceptsByName: func(_ context.Context, name string) ([]graph.ConceptNode, error) {
			gotName = name
			return []graph.ConceptNode{{ID: "c1", Name: "Circuit Breaker"}}, nil
		},
		getRelatedConcepts: func(_ context.Context, conceptID string, depth int) ([]graph.ConceptNode, error) {
			require.Equal(t, "c1", conceptID)
			gotDepth = depth
			return []graph.ConceptNode{
				{ID: "c2", Name: "Retry Policy"},
				{ID: "c3", Name: "Bulkhead"},
			}, nil
		},
		getChunksByConcept: func(_ context.Context, conceptID string) ([]graph.ChunkNode, error) {
			return []graph.ChunkNode{{ID: "ch1", DocumentID: "platform-docs:guides/resilience.md"}}, nil
		},
	}

	entity, err := NewResolver(store, nil).Resolve(context.Background(), "  Circuit Breaker ")
	require.NoError(t, err)
	require.NotNil(t, entity)

	assert.Equal(t, "circuit breaker", gotName, "lookup name is trimmed and lowercased")
	assert.Equal(t, 1, gotDepth)
	assert.Equal(t, "c1", entity.ConceptID)
	assert.Equal(t, "Circuit Breaker", entity.Name)
	assert.Equal(t, "platform-docs", entity.Repository)
	assert.Equal(t, []string{"c2", "c3"}, entity.RelatedConceptIDs)
	assert.Equal(t, []string{"Retry Policy", "Bulkhead"}, entity.RelatedConceptNames)
}

func TestResolve_UnknownNameIsNotAnError(t *testing.T) {
	store := &mockGraphStore{
		findConceptsByName: func(_ context.Context, _ string) ([]graph.ConceptNode, error) {
			return nil, nil
		},
	}

	entity, err := NewResolver(store, nil).Resolve(context.Background(), "nonexistent")
	require.NoError(t, err)
	assert.Nil(t, entity)
}

func TestResolve_FirstMatchWins(t *testing.T) {
	store := &mockGraphStore{
		findConceptsByName: func(_ context.Context, _ string) ([]graph.ConceptNode, error) {
			return []graph.ConceptNode{
				{ID: "c1", Name: "Cache"},
				{ID: "c2", Name: "Cache"},
			}, nil
		},
		getRelatedConcepts: func(_ context.Context, _ string, _ int) ([]graph.ConceptNode, error) {
			return nil, nil
		},
		getChunksByConcept: func(_ context.Context, _ string) ([]graph.ChunkNode, error) {
			return nil, nil
		},
	}

	entity, err := NewResolver(store, nil).Resolve(context.Background(), "cache")
	require.NoError(t, err)
	require.NotNil(t, entity)
	assert.Equal(t, "c1", entity.ConceptID)
}

func TestResolve_NoRelatedConceptsYieldsEmptySlices(t *testing.T) {
	store := &mockGraphStore{
		findConceptsByName: func(_ context.Context, _ string) ([]graph.ConceptNode, error) {
			return []graph.ConceptNode{{ID: "c1", Name: "Orphan"}}, nil
		},
		getRelatedConcepts: func(_ context.Context, _ string, _ int) ([]graph.ConceptNode, error) {
			return nil, nil
		},
		getChunksByConcept: func(_ context.Context, _ string) ([]graph.ChunkNode, error) {
			return nil, nil
		},
	}

	entity, err := NewResolver(store, nil).Resolve(context.Background(), "orphan")
	require.NoError(t, err)
	require.NotNil(t, entity)
	assert.NotNil(t, entity.RelatedConceptIDs)
	assert.Empty(t, entity.RelatedConceptIDs)
	assert.NotNil(t, entity.RelatedConceptNames)
	assert.Empty(t, entity.RelatedConceptNames)
	assert.Equal(t, "", entity.Repository)
}

func TestResolve_StoreErrorsPropagate(t *testing.T) {
	storeErr := errors.New("bolt: connection reset")

	tests := []struct {
		name  string
		store *mockGraphStore
	}{
		{
			name: "find concepts fails",
			store: &mockGraphStore{
				findConceptsByName: func(_ context.Context, _ string) ([]graph.ConceptNode, error) {
					return nil, storeErr
				},
			},
		},
		{
			name: "related concepts fails",
			store: &mockGraphStore{
				findConceptsByName: func(_ context.Context, _ string) ([]graph.ConceptNode, error) {
					return []graph.ConceptNode{{ID: "c1", Name: "X"}}, nil
				},
				getRelatedConcepts: func(_ context.Context, _ string, _ int) ([]graph.ConceptNode, error) {
					return nil, storeErr
				},
			},
		},
		{
			name: "chunks fails",
			store: &mockGraphStore{
				findConceptsByName: func(_ context.Context, _ string) ([]graph.ConceptNode, error) {
					return []graph.ConceptNode{{ID: "c1", Name: "X"}}, nil
				},
				getRelatedConcepts: func(_ context.Context, _ string, _ int) ([]graph.ConceptNode, error) {
					return nil, nil
				},
				getChunksByConcept: func(_ context.Context, _ string) ([]graph.ChunkNode, error) {
					return nil, storeErr
				},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entity, err := NewResolver(tt.store, nil).Resolve(context.Background(), "x")
			assert.ErrorIs(t, err, storeErr)
			assert.Nil(t, entity)
		})
	}
}

func TestDeriveRepository(t *testing.T) {
	tests := []struct {
		name   string
		chunks []graph.ChunkNode
		want   string
	}{
		{
			name:   "namespaced document ID",
			chunks: []graph.ChunkNode{{DocumentID: "platform-docs:guides/setup.md"}},
			want:   "platform-docs",
		},
		{
			name: "first namespaced chunk wins",
			chunks: []graph.ChunkNode{
				{DocumentID: "plain.md"},
				{DocumentID: "api-docs:reference.md"},
				{DocumentID: "other-docs:readme.md"},
			},
			want: "api-docs",
		},
		{
			name:   "no namespace",
			chunks: []graph.ChunkNode{{DocumentID: "guides/setup.md"}},
			want:   "",
		},
		{
			name:   "leading colon is not a namespace",
			chunks: []graph.ChunkNode{{DocumentID: ":weird.md"}},
			want:   "",
		},
		{
			name:   "no chunks",
			chunks: nil,
			want:   "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveRepository(tt.chunks))
		})
	}
}

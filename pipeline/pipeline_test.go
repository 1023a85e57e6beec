package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docuverse/graphrag/config"
	"github.com/docuverse/graphrag/embedding"
	"github.com/docuverse/graphrag/graph"
	"github.com/docuverse/graphrag/llm"
	"github.com/docuverse/graphrag/resilience"
	"github.com/docuverse/graphrag/resolve"
)

// ---- mocks ----

type mockEmbedProvider struct {
	calls int
	err   error
}

func (m *mockEmbedProvider) GenerateEmbedding(_ context.Context, _ string) ([]float32, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return []float32{0.1, 0.2}, nil
}

func (m *mockEmbedProvider) GenerateEmbeddings(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.1, 0.2}
	}
	return out, nil
}

type mockVectorStore struct {
	calls       int
	lastTopK    int
	lastFilters map[string]string
	results     []graph.VectorSearchResult
	err         error
}

func (m *mockVectorStore) Search(_ context.Context, _ []float32, topK int, filters map[string]string) ([]graph.VectorSearchResult, error) {
	m.calls++
	m.lastTopK = topK
	m.lastFilters = filters
	return m.results, m.err
}

// mockGraphStore defaults every lookup to an empty result; individual
// funcs override per test.
type mockGraphStore struct {
	chunksByIDs        func(ctx context.Context, ids []string) ([]graph.ChunkNode, error)
	conceptsByChunkIDs func(ctx context.Context, chunkIDs []string) ([]graph.ConceptNode, error)
	linkedDocuments    func(ctx context.Context, documentID string) ([]graph.DocumentNode, error)
	findConceptsByName func(ctx context.Context, name string) ([]graph.ConceptNode, error)
	relatedConcepts    func(ctx context.Context, conceptID string, depth int) ([]graph.ConceptNode, error)
	chunksByConcept    func(ctx context.Context, conceptID string) ([]graph.ChunkNode, error)

	linkedDocumentCalls int
}

func (m *mockGraphStore) GetChunksByIDs(ctx context.Context, ids []string) ([]graph.ChunkNode, error) {
	if m.chunksByIDs != nil {
		return m.chunksByIDs(ctx, ids)
	}
	return nil, nil
}

func (m *mockGraphStore) GetConceptsByChunkIDs(ctx context.Context, chunkIDs []string) ([]graph.ConceptNode, error) {
	if m.conceptsByChunkIDs != nil {
		return m.conceptsByChunkIDs(ctx, chunkIDs)
	}
	return nil, nil
}

func (m *mockGraphStore) GetLinkedDocuments(ctx context.Context, documentID string) ([]graph.DocumentNode, error) {
	m.linkedDocumentCalls++
	if m.linkedDocuments != nil {
		return m.linkedDocuments(ctx, documentID)
	}
	return nil, nil
}

func (m *mockGraphStore) FindConceptsByName(ctx context.Context, name string) ([]graph.ConceptNode, error) {
	if m.findConceptsByName != nil {
		return m.findConceptsByName(ctx, name)
	}
	return nil, nil
}

func (m *mockGraphStore) GetRelatedConcepts(ctx context.Context, conceptID string, depth int) ([]graph.ConceptNode, error) {
	if m.relatedConcepts != nil {
		return m.relatedConcepts(ctx, conceptID, depth)
	}
	return nil, nil
}

func (m *mockGraphStore) GetChunksByConcept(ctx context.Context, conceptID string) ([]graph.ChunkNode, error) {
	if m.chunksByConcept != nil {
		return m.chunksByConcept(ctx, conceptID)
	}
	return nil, nil
}

type mockLLM struct {
	calls      int
	lastSystem string
	lastUser   string
	lastTier   llm.Tier
	answer     string
	err        error
}

func (m *mockLLM) Generate(_ context.Context, systemPrompt string, messages []llm.Message, tier llm.Tier) (string, error) {
	m.calls++
	m.lastSystem = systemPrompt
	if len(messages) > 0 {
		m.lastUser = messages[0].Content
	}
	m.lastTier = tier
	if m.err != nil {
		return "", m.err
	}
	return m.answer, nil
}

// ---- fixtures ----

func testPolicies(t *testing.T) *resilience.Policies {
	t.Helper()
	base := config.PipelineConfig{
		Timeout:           "1s",
		MaxRetryAttempts:  -1,
		InitialDelay:      "1ms",
		MaxDelay:          "2ms",
		MinimumThroughput: 1000,
		BreakDuration:     "1m",
	}
	return resilience.NewPolicies(config.ResilienceConfig{
		EmbeddingBackend: base,
		RelationalStore:  base,
		Default:          base,
	}, nil)
}

type fixture struct {
	embedProvider *mockEmbedProvider
	vectors       *mockVectorStore
	store         *mockGraphStore
	llm           *mockLLM
	pipeline      *Pipeline
}

func newFixture(t *testing.T, queryCfg config.QueryConfig) *fixture {
	t.Helper()

	f := &fixture{
		embedProvider: &mockEmbedProvider{},
		vectors:       &mockVectorStore{},
		store:         &mockGraphStore{},
		llm:           &mockLLM{answer: "synthesized answer"},
	}

	policies := testPolicies(t)
	embedder := embedding.NewService(
		f.embedProvider,
		embedding.NewMemoryCache(embedding.MemoryCacheOptions{Disabled: true}),
		policies, nil)

	p, err := New(Deps{
		Embedder:    embedder,
		VectorStore: f.vectors,
		GraphStore:  f.store,
		LLM:         f.llm,
		Resolver:    resolve.NewResolver(f.store, nil),
		Policies:    policies,
	}, queryCfg)
	require.NoError(t, err)
	f.pipeline = p
	return f
}

func searchResult(chunkID string, score float64, repository, path string) graph.VectorSearchResult {
	return graph.VectorSearchResult{
		ChunkID: chunkID,
		Score:   score,
		Metadata: map[string]string{
			graph.MetadataDocumentID: repository + ":" + path,
			graph.MetadataRepository: repository,
			graph.MetadataFilePath:   path,
		},
	}
}

// ---- constructor ----

func TestNew_RequiresDependencies(t *testing.T) {
	f := newFixture(t, config.QueryConfig{})
	embedder := f.pipeline.embedder

	tests := []struct {
		name string
		deps Deps
	}{
		{"missing embedder", Deps{VectorStore: f.vectors, GraphStore: f.store, LLM: f.llm, Policies: f.pipeline.policies}},
		{"missing vector store", Deps{Embedder: embedder, GraphStore: f.store, LLM: f.llm, Policies: f.pipeline.policies}},
		{"missing graph store", Deps{Embedder: embedder, VectorStore: f.vectors, LLM: f.llm, Policies: f.pipeline.policies}},
		{"missing llm", Deps{Embedder: embedder, VectorStore: f.vectors, GraphStore: f.store, Policies: f.pipeline.policies}},
		{"missing policies", Deps{Embedder: embedder, VectorStore: f.vectors, GraphStore: f.store, LLM: f.llm}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.deps, config.QueryConfig{})
			assert.Error(t, err)
		})
	}
}

// ---- query flow ----

func TestQuery_HappyPath(t *testing.T) {
	f := newFixture(t, config.QueryConfig{})
	f.vectors.results = []graph.VectorSearchResult{
		searchResult("ch1", 0.9, "platform-docs", "guides/setup.md"),
		searchResult("ch2", 0.8, "platform-docs", "reference/api.md"),
	}
	f.store.chunksByIDs = func(_ context.Context, ids []string) ([]graph.ChunkNode, error) {
		assert.Equal(t, []string{"ch1", "ch2"}, ids)
		return []graph.ChunkNode{
			{ID: "ch1", DocumentID: "platform-docs:guides/setup.md", Content: "Run the installer."},
			{ID: "ch2", DocumentID: "platform-docs:reference/api.md", Content: "The API accepts JSON."},
		}, nil
	}
	f.store.conceptsByChunkIDs = func(_ context.Context, _ []string) ([]graph.ConceptNode, error) {
		return []graph.ConceptNode{{ID: "c1", Name: "Installation"}}, nil
	}
	f.store.linkedDocuments = func(_ context.Context, documentID string) ([]graph.DocumentNode, error) {
		assert.Equal(t, "platform-docs:guides/setup.md", documentID)
		return []graph.DocumentNode{{ID: "platform-docs:guides/upgrade.md"}}, nil
	}

	result, err := f.pipeline.Query(context.Background(), "how do I install?", nil)
	require.NoError(t, err)

	assert.Equal(t, "synthesized answer", result.Answer)
	require.Len(t, result.Sources, 2)
	assert.Equal(t, Source{
		DocumentID:     "platform-docs:guides/setup.md",
		ChunkID:        "ch1",
		Repository:     "platform-docs",
		FilePath:       "guides/setup.md",
		RelevanceScore: 0.9,
	}, result.Sources[0])

	assert.Equal(t, []string{"Installation"}, result.RelatedConcepts)
	assert.Equal(t, []string{"platform-docs:guides/upgrade.md"}, result.LinkedDocuments)
	assert.InDelta(t, 0.17, result.Confidence, 1e-9)
	assert.False(t, result.Enrichment.IsDegraded())

	// The model sees the chunk context followed by the question, at the
	// synthesis tier.
	assert.Equal(t, 1, f.llm.calls)
	assert.Equal(t, llm.TierSynthesis, f.llm.lastTier)
	assert.Equal(t, BuildSystemPrompt(), f.llm.lastSystem)
	assert.Contains(t, f.llm.lastUser, "### Source: guides/setup.md (relevance: 0.90)")
	assert.Contains(t, f.llm.lastUser, "Run the installer.")
	assert.True(t, strings.HasSuffix(f.llm.lastUser, "how do I install?"))
}

func TestQuery_NoResultsAboveThreshold(t *testing.T) {
	f := newFixture(t, config.QueryConfig{})
	f.vectors.results = []graph.VectorSearchResult{
		searchResult("ch1", 0.5, "platform-docs", "a.md"),
		searchResult("ch2", 0.3, "platform-docs", "b.md"),
	}

	result, err := f.pipeline.Query(context.Background(), "irrelevant question", nil)
	require.NoError(t, err)

	assert.Equal(t, NoRelevantDocumentsAnswer, result.Answer)
	assert.NotNil(t, result.Sources)
	assert.Empty(t, result.Sources)
	assert.NotNil(t, result.RelatedConcepts)
	assert.Empty(t, result.RelatedConcepts)
	assert.Zero(t, result.Confidence)
	assert.Equal(t, 0, f.llm.calls, "the model is never invoked without context")
}

func TestQuery_ThresholdIsInclusive(t *testing.T) {
	f := newFixture(t, config.QueryConfig{})
	f.vectors.results = []graph.VectorSearchResult{
		searchResult("ch1", 0.7, "platform-docs", "a.md"),
		searchResult("ch2", 0.6999, "platform-docs", "b.md"),
	}

	result, err := f.pipeline.Query(context.Background(), "question", nil)
	require.NoError(t, err)

	require.Len(t, result.Sources, 1)
	assert.Equal(t, "ch1", result.Sources[0].ChunkID)
}

func TestQuery_OptionsOverrideDefaults(t *testing.T) {
	f := newFixture(t, config.QueryConfig{})
	f.vectors.results = []graph.VectorSearchResult{
		searchResult("ch1", 0.55, "platform-docs", "a.md"),
	}

	opts := (&Options{
		MaxChunks:        3,
		RepositoryFilter: "platform-docs",
		DocTypeFilter:    "runbook",
	}).WithMinRelevanceScore(0.5)

	result, err := f.pipeline.Query(context.Background(), "question", &opts)
	require.NoError(t, err)

	assert.Equal(t, 3, f.vectors.lastTopK)
	assert.Equal(t, map[string]string{
		graph.MetadataRepository: "platform-docs",
		graph.MetadataDocType:    "runbook",
	}, f.vectors.lastFilters)
	require.Len(t, result.Sources, 1, "0.55 survives the overridden threshold")

	// Confidence uses the effective candidate count, not the default.
	assert.InDelta(t, 0.55/3.0, result.Confidence, 1e-9)
}

func TestQuery_NoFiltersPassesNilMap(t *testing.T) {
	f := newFixture(t, config.QueryConfig{})
	f.vectors.results = []graph.VectorSearchResult{
		searchResult("ch1", 0.9, "platform-docs", "a.md"),
	}

	_, err := f.pipeline.Query(context.Background(), "question", &Options{})
	require.NoError(t, err)
	assert.Nil(t, f.vectors.lastFilters)
}

func TestQuery_CrossRepoLinksDisabled(t *testing.T) {
	f := newFixture(t, config.QueryConfig{})
	f.vectors.results = []graph.VectorSearchResult{
		searchResult("ch1", 0.9, "platform-docs", "a.md"),
	}

	opts := (&Options{}).WithCrossRepoLinks(false)
	result, err := f.pipeline.Query(context.Background(), "question", &opts)
	require.NoError(t, err)

	assert.Equal(t, 0, f.store.linkedDocumentCalls)
	assert.Empty(t, result.LinkedDocuments)
}

func TestQuery_ConceptEnrichmentDegrades(t *testing.T) {
	f := newFixture(t, config.QueryConfig{})
	f.vectors.results = []graph.VectorSearchResult{
		searchResult("ch1", 0.9, "platform-docs", "a.md"),
	}
	f.store.conceptsByChunkIDs = func(_ context.Context, _ []string) ([]graph.ConceptNode, error) {
		return nil, errors.New("graph unavailable")
	}

	result, err := f.pipeline.Query(context.Background(), "question", nil)
	require.NoError(t, err, "enrichment failure never fails the query")

	assert.Equal(t, "synthesized answer", result.Answer)
	assert.Empty(t, result.RelatedConcepts)
	assert.True(t, result.Enrichment.Concepts.Degraded)
	assert.Contains(t, result.Enrichment.Concepts.Reason, "graph unavailable")
	assert.True(t, result.Enrichment.IsDegraded())
}

func TestQuery_LinkedDocumentEnrichmentDegrades(t *testing.T) {
	f := newFixture(t, config.QueryConfig{})
	f.vectors.results = []graph.VectorSearchResult{
		searchResult("ch1", 0.9, "platform-docs", "a.md"),
	}
	f.store.linkedDocuments = func(_ context.Context, _ string) ([]graph.DocumentNode, error) {
		return nil, errors.New("edge scan failed")
	}

	result, err := f.pipeline.Query(context.Background(), "question", nil)
	require.NoError(t, err)

	assert.Empty(t, result.LinkedDocuments)
	assert.True(t, result.Enrichment.LinkedDocuments.Degraded)
}

func TestQuery_CrossRepoResolutionContributesForeignConcepts(t *testing.T) {
	f := newFixture(t, config.QueryConfig{})
	f.vectors.results = []graph.VectorSearchResult{
		searchResult("ch1", 0.9, "platform-docs", "a.md"),
	}
	f.store.conceptsByChunkIDs = func(_ context.Context, _ []string) ([]graph.ConceptNode, error) {
		return []graph.ConceptNode{
			{ID: "c1", Name: "Deployment"},
			{ID: "c2", Name: "Rollback"},
		}, nil
	}
	f.store.findConceptsByName = func(_ context.Context, name string) ([]graph.ConceptNode, error) {
		switch name {
		case "deployment":
			return []graph.ConceptNode{{ID: "c1", Name: "Deployment"}}, nil
		case "rollback":
			return []graph.ConceptNode{{ID: "c2", Name: "Rollback"}}, nil
		}
		return nil, nil
	}
	f.store.relatedConcepts = func(_ context.Context, conceptID string, _ int) ([]graph.ConceptNode, error) {
		if conceptID == "c1" {
			return []graph.ConceptNode{
				{ID: "c9", Name: "Blue-Green"},
				{ID: "c2", Name: "Rollback"},
			}, nil
		}
		return nil, nil
	}
	f.store.chunksByConcept = func(_ context.Context, conceptID string) ([]graph.ChunkNode, error) {
		if conceptID == "c1" {
			// Deployment lives in a different repository.
			return []graph.ChunkNode{{ID: "x", DocumentID: "infra-docs:deploy.md"}}, nil
		}
		// Rollback lives in the result's own repository.
		return []graph.ChunkNode{{ID: "y", DocumentID: "platform-docs:rollback.md"}}, nil
	}

	result, err := f.pipeline.Query(context.Background(), "question", nil)
	require.NoError(t, err)

	// Direct concepts always appear; the foreign entity's neighborhood is
	// appended in place, deduplicated against what is already listed.
	assert.Equal(t, []string{"Deployment", "Blue-Green", "Rollback"}, result.RelatedConcepts)
	assert.False(t, result.Enrichment.CrossRepo.Degraded)
}

func TestQuery_ResolverFailureKeepsDirectConcepts(t *testing.T) {
	f := newFixture(t, config.QueryConfig{})
	f.vectors.results = []graph.VectorSearchResult{
		searchResult("ch1", 0.9, "platform-docs", "a.md"),
	}
	f.store.conceptsByChunkIDs = func(_ context.Context, _ []string) ([]graph.ConceptNode, error) {
		return []graph.ConceptNode{{ID: "c1", Name: "Deployment"}}, nil
	}
	f.store.findConceptsByName = func(_ context.Context, _ string) ([]graph.ConceptNode, error) {
		return nil, errors.New("lookup timed out")
	}

	result, err := f.pipeline.Query(context.Background(), "question", nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"Deployment"}, result.RelatedConcepts)
	assert.True(t, result.Enrichment.CrossRepo.Degraded)
	assert.Contains(t, result.Enrichment.CrossRepo.Reason, "lookup timed out")
}

func TestQuery_EmbeddingFailurePropagates(t *testing.T) {
	f := newFixture(t, config.QueryConfig{})
	f.embedProvider.err = errors.New("model not loaded")

	_, err := f.pipeline.Query(context.Background(), "question", nil)
	require.Error(t, err)
	assert.ErrorContains(t, err, "model not loaded")
	assert.Equal(t, 0, f.vectors.calls)
}

func TestQuery_SearchFailurePropagates(t *testing.T) {
	f := newFixture(t, config.QueryConfig{})
	f.vectors.err = errors.New("index offline")

	_, err := f.pipeline.Query(context.Background(), "question", nil)
	require.Error(t, err)
	assert.ErrorContains(t, err, "index offline")
	assert.Equal(t, 0, f.llm.calls)
}

func TestQuery_SynthesisFailurePropagates(t *testing.T) {
	f := newFixture(t, config.QueryConfig{})
	f.vectors.results = []graph.VectorSearchResult{
		searchResult("ch1", 0.9, "platform-docs", "a.md"),
	}
	f.llm.err = errors.New("completion refused")

	_, err := f.pipeline.Query(context.Background(), "question", nil)
	require.Error(t, err)
	assert.ErrorContains(t, err, "completion refused")
}

func TestQuery_CancelledContextFailsFast(t *testing.T) {
	f := newFixture(t, config.QueryConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.pipeline.Query(ctx, "question", nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, f.embedProvider.calls)
	assert.Equal(t, 0, f.vectors.calls)
}

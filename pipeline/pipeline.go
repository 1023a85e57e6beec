package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/docuverse/graphrag/config"
	"github.com/docuverse/graphrag/embedding"
	"github.com/docuverse/graphrag/graph"
	"github.com/docuverse/graphrag/llm"
	"github.com/docuverse/graphrag/resilience"
	"github.com/docuverse/graphrag/resolve"
	"github.com/docuverse/graphrag/telemetry"
)

// Deps are the collaborators a Pipeline is wired with. Embedder,
// VectorStore, GraphStore, LLM, and Policies are required.
type Deps struct {
	// Embedder generates query embeddings with cache/resilience backing.
	Embedder *embedding.Service

	// VectorStore serves dense similarity search.
	VectorStore graph.VectorStore

	// GraphStore serves chunk, concept, and document lookups.
	GraphStore graph.GraphStore

	// LLM synthesizes the final answer.
	LLM llm.Provider

	// Resolver resolves concept names across repositories. Optional;
	// when nil, cross-repository resolution is skipped.
	Resolver *resolve.Resolver

	// Policies are the shared resilience pipelines.
	Policies *resilience.Policies

	// Logger receives structured pipeline logs. Optional.
	Logger *slog.Logger

	// Tracer records per-stage spans. Optional.
	Tracer trace.Tracer

	// Instruments records pipeline metrics. Optional.
	Instruments *telemetry.Instruments
}

// Pipeline orchestrates one GraphRAG query end to end. Safe for
// concurrent use; all mutable state lives in the injected collaborators.
type Pipeline struct {
	embedder    *embedding.Service
	vectors     graph.VectorStore
	store       graph.GraphStore
	llm         llm.Provider
	resolver    *resolve.Resolver
	policies    *resilience.Policies
	query       config.QueryConfig
	logger      *slog.Logger
	tracer      trace.Tracer
	instruments *telemetry.Instruments
}

// New creates a Pipeline from its dependencies and query defaults.
func New(deps Deps, queryCfg config.QueryConfig) (*Pipeline, error) {
	if deps.Embedder == nil {
		return nil, fmt.Errorf("pipeline: embedder is required")
	}
	if deps.VectorStore == nil {
		return nil, fmt.Errorf("pipeline: vector store is required")
	}
	if deps.GraphStore == nil {
		return nil, fmt.Errorf("pipeline: graph store is required")
	}
	if deps.LLM == nil {
		return nil, fmt.Errorf("pipeline: llm provider is required")
	}
	if deps.Policies == nil {
		return nil, fmt.Errorf("pipeline: resilience policies are required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Tracer == nil {
		deps.Tracer = noop.NewTracerProvider().Tracer("")
	}
	return &Pipeline{
		embedder:    deps.Embedder,
		vectors:     deps.VectorStore,
		store:       deps.GraphStore,
		llm:         deps.LLM,
		resolver:    deps.Resolver,
		policies:    deps.Policies,
		query:       queryCfg,
		logger:      deps.Logger,
		tracer:      deps.Tracer,
		instruments: deps.Instruments,
	}, nil
}

// Query answers text over the document corpus. opts may be nil to use
// the configured defaults throughout. Cancellation of ctx before any work
// starts fails the whole call; cancellation during a best-effort
// enrichment step degrades only that step.
func (p *Pipeline) Query(ctx context.Context, text string, opts *Options) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	queryID := uuid.NewString()
	logger := p.logger.With("query_id", queryID)

	ctx, span := p.tracer.Start(ctx, "graphrag.query")
	defer span.End()
	span.SetAttributes(attribute.String("graphrag.query_id", queryID))

	maxChunks := p.query.GetMaxChunksPerQuery()
	minScore := p.query.GetMinRelevanceScore()
	useCrossRepo := p.query.GetUseCrossRepoLinks()
	var filters map[string]string
	if opts != nil {
		if opts.MaxChunks > 0 {
			maxChunks = opts.MaxChunks
		}
		if opts.MinRelevanceScore != nil {
			minScore = *opts.MinRelevanceScore
		}
		if opts.UseCrossRepoLinks != nil {
			useCrossRepo = *opts.UseCrossRepoLinks
		}
		if opts.RepositoryFilter != "" || opts.DocTypeFilter != "" {
			filters = make(map[string]string)
			if opts.RepositoryFilter != "" {
				filters[graph.MetadataRepository] = opts.RepositoryFilter
			}
			if opts.DocTypeFilter != "" {
				filters[graph.MetadataDocType] = opts.DocTypeFilter
			}
		}
	}

	vector, err := p.embedQuery(ctx, text)
	if err != nil {
		return nil, err
	}

	results, err := p.search(ctx, vector, maxChunks, filters)
	if err != nil {
		return nil, err
	}

	survivors := make([]graph.VectorSearchResult, 0, len(results))
	for _, r := range results {
		if r.Score >= minScore {
			survivors = append(survivors, r)
		}
	}
	if len(survivors) == 0 {
		logger.Info("no results above relevance threshold",
			"candidates", len(results),
			"min_score", minScore)
		return &Result{
			Answer:          NoRelevantDocumentsAnswer,
			Sources:         []Source{},
			RelatedConcepts: []string{},
			Confidence:      0,
		}, nil
	}

	chunks, err := p.fetchChunks(ctx, survivors)
	if err != nil {
		return nil, err
	}

	sources := make([]Source, 0, len(survivors))
	scores := make([]float64, 0, len(survivors))
	for _, r := range survivors {
		sources = append(sources, Source{
			DocumentID:     r.Meta(graph.MetadataDocumentID),
			ChunkID:        r.ChunkID,
			Repository:     r.Meta(graph.MetadataRepository),
			FilePath:       r.Meta(graph.MetadataFilePath),
			RelevanceScore: r.Score,
		})
		scores = append(scores, r.Score)
	}

	enrichment := Enrichment{}
	related := p.enrichConcepts(ctx, logger, survivors, sources[0].Repository, &enrichment)
	var linkedDocs []string
	if useCrossRepo {
		linkedDocs = p.enrichLinkedDocuments(ctx, logger, sources[0].DocumentID, &enrichment)
	}

	answer, err := p.synthesize(ctx, text, survivors, chunks)
	if err != nil {
		return nil, err
	}

	confidence := ComputeConfidence(scores, maxChunks)
	span.SetAttributes(
		attribute.Int("graphrag.sources", len(sources)),
		attribute.Float64("graphrag.confidence", confidence),
	)
	p.instruments.RecordQueryDuration(ctx, time.Since(start).Seconds())
	logger.Info("query answered",
		"sources", len(sources),
		"related_concepts", len(related),
		"confidence", confidence,
		"degraded", enrichment.IsDegraded(),
		"duration", time.Since(start))

	return &Result{
		Answer:          answer,
		Sources:         sources,
		RelatedConcepts: related,
		LinkedDocuments: linkedDocs,
		Confidence:      confidence,
		Enrichment:      enrichment,
	}, nil
}

// embedQuery obtains the query embedding through the resilient embedding
// service.
func (p *Pipeline) embedQuery(ctx context.Context, text string) ([]float32, error) {
	ctx, span := p.tracer.Start(ctx, "graphrag.embed")
	defer span.End()
	return p.embedder.GenerateEmbedding(ctx, text)
}

// search runs the vector search through the relational-store pipeline.
func (p *Pipeline) search(ctx context.Context, vector []float32, topK int, filters map[string]string) ([]graph.VectorSearchResult, error) {
	ctx, span := p.tracer.Start(ctx, "graphrag.vector_search")
	defer span.End()
	return resilience.Execute(ctx, p.policies, resilience.PipelineRelationalStore,
		func(ctx context.Context) ([]graph.VectorSearchResult, error) {
			return p.vectors.Search(ctx, vector, topK, filters)
		})
}

// fetchChunks loads the chunk bodies for the surviving results, keyed by
// chunk ID.
func (p *Pipeline) fetchChunks(ctx context.Context, survivors []graph.VectorSearchResult) (map[string]graph.ChunkNode, error) {
	ctx, span := p.tracer.Start(ctx, "graphrag.fetch_chunks")
	defer span.End()

	ids := make([]string, 0, len(survivors))
	for _, r := range survivors {
		ids = append(ids, r.ChunkID)
	}
	nodes, err := resilience.Execute(ctx, p.policies, resilience.PipelineRelationalStore,
		func(ctx context.Context) ([]graph.ChunkNode, error) {
			return p.store.GetChunksByIDs(ctx, ids)
		})
	if err != nil {
		return nil, err
	}

	chunks := make(map[string]graph.ChunkNode, len(nodes))
	for _, n := range nodes {
		chunks[n.ID] = n
	}
	return chunks, nil
}

// enrichConcepts fetches concepts linked to the surviving chunks and
// resolves each across repositories. Failures degrade the corresponding
// enrichment step instead of aborting the query. The returned list is
// deduplicated with insertion order preserved.
func (p *Pipeline) enrichConcepts(ctx context.Context, logger *slog.Logger, survivors []graph.VectorSearchResult, resultRepository string, enrichment *Enrichment) []string {
	ctx, span := p.tracer.Start(ctx, "graphrag.enrich_concepts")
	defer span.End()

	ids := make([]string, 0, len(survivors))
	for _, r := range survivors {
		ids = append(ids, r.ChunkID)
	}

	concepts, err := resilience.Execute(ctx, p.policies, resilience.PipelineRelationalStore,
		func(ctx context.Context) ([]graph.ConceptNode, error) {
			return p.store.GetConceptsByChunkIDs(ctx, ids)
		})
	if err != nil {
		logger.Warn("concept enrichment degraded", "error", err)
		enrichment.Concepts = StepStatus{Degraded: true, Reason: err.Error()}
		return []string{}
	}

	seen := make(map[string]bool)
	related := make([]string, 0, len(concepts))
	add := func(name string) {
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		related = append(related, name)
	}

	for _, concept := range concepts {
		add(concept.Name)
		if p.resolver == nil {
			continue
		}
		entity, err := p.resolver.Resolve(ctx, concept.Name)
		if err != nil {
			// Resolver failures are swallowed; the concept name above
			// already made it into the output.
			logger.Warn("cross-repo resolution degraded",
				"concept", concept.Name,
				"error", err)
			if !enrichment.CrossRepo.Degraded {
				enrichment.CrossRepo = StepStatus{Degraded: true, Reason: err.Error()}
			}
			continue
		}
		if entity == nil || entity.Repository == resultRepository {
			continue
		}
		for _, name := range entity.RelatedConceptNames {
			add(name)
		}
	}
	return related
}

// enrichLinkedDocuments fetches documents linked to the top result's
// document. Failures degrade the step instead of aborting the query.
func (p *Pipeline) enrichLinkedDocuments(ctx context.Context, logger *slog.Logger, documentID string, enrichment *Enrichment) []string {
	if documentID == "" {
		return nil
	}
	ctx, span := p.tracer.Start(ctx, "graphrag.linked_documents")
	defer span.End()

	docs, err := resilience.Execute(ctx, p.policies, resilience.PipelineRelationalStore,
		func(ctx context.Context) ([]graph.DocumentNode, error) {
			return p.store.GetLinkedDocuments(ctx, documentID)
		})
	if err != nil {
		logger.Warn("linked-document enrichment degraded", "error", err)
		enrichment.LinkedDocuments = StepStatus{Degraded: true, Reason: err.Error()}
		return nil
	}

	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID)
	}
	return ids
}

// synthesize builds the prompt from the surviving chunks and calls the
// LLM at the synthesis tier through the default pipeline.
func (p *Pipeline) synthesize(ctx context.Context, text string, survivors []graph.VectorSearchResult, chunks map[string]graph.ChunkNode) (string, error) {
	ctx, span := p.tracer.Start(ctx, "graphrag.synthesize")
	defer span.End()

	userMessage := FormatChunkContext(survivors, chunks) + text
	return resilience.Execute(ctx, p.policies, resilience.PipelineDefault,
		func(ctx context.Context) (string, error) {
			return p.llm.Generate(ctx, BuildSystemPrompt(), llm.UserMessage(userMessage), llm.TierSynthesis)
		})
}

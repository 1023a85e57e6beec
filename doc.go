// Package graphrag answers natural-language questions over a corpus of
// versioned documents by combining dense vector retrieval, a concept
// graph, and LLM synthesis, with every answer traceable to its source
// chunks.
//
// The library has two tightly coupled layers: the query pipeline
// (embedding, vector search, graph enrichment, cross-repository entity
// resolution, confidence scoring, synthesis) and the resilience/caching
// infrastructure that makes the pipeline's external calls safe under
// partial failure (circuit breakers, retries, rate limits, and an
// embedding cache that serves as a fallback when the embedding backend is
// down).
//
// # Packages
//
//   - graph: domain model and consumed store contracts
//   - llm: LLM provider contract and capability tiers
//   - embedding: embedding cache and resilient embedding service
//   - resilience: named timeout/retry/circuit-breaker pipelines
//   - ratelimit: per-tool, per-caller request limiter
//   - resolve: cross-repository entity resolution
//   - pipeline: the query orchestrator
//   - config: the consumed configuration block
//   - telemetry: OpenTelemetry tracer/meter plumbing
//
// # Getting Started
//
// The root package wires everything together. Provide the four external
// collaborators (embedding provider, vector store, graph store, LLM
// provider) and a configuration block:
//
//	system, err := graphrag.New(config.Default(), graphrag.Deps{
//		Embedder:    myEmbeddingProvider,
//		VectorStore: myVectorStore,
//		GraphStore:  myGraphStore,
//		LLM:         myLLMProvider,
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	result, err := system.Query(ctx, "How does service discovery work?", nil, "session-42")
//
// Persistence engines, document ingestion, and the protocol transport
// that invokes this library are external collaborators; only their
// consumed contracts are defined here.
package graphrag

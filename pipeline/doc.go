// Package pipeline implements the GraphRAG query orchestrator: it turns a
// natural-language query into embedding generation, vector search, graph
// enrichment, cross-repository entity resolution, confidence scoring, and
// LLM synthesis, producing an answer traceable to its source chunks.
//
// # Stages
//
//  1. Embed the query through the resilient embedding service.
//  2. Search the vector store for the top MaxChunks candidates, applying
//     repository/doc-type equality filters when set.
//  3. Drop candidates below MinRelevanceScore. With nothing left, short
//     circuit with NoRelevantDocumentsAnswer and zero confidence; the LLM
//     is never invoked.
//  4. Fetch chunk bodies, then enrich best-effort: linked concepts,
//     linked documents, and cross-repository resolution per concept. A
//     failed enrichment step degrades silently and is reported on
//     Result.Enrichment instead of aborting the query.
//  5. Synthesize the answer at the synthesis tier and score confidence
//     from relevance and coverage.
//
// Hard failures (embedding, vector search, chunk fetch, synthesis)
// propagate to the caller unchanged in kind; see the resilience package
// for the typed timeout/circuit-open errors they may carry.
package pipeline

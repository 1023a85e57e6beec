// Package graph defines the document/concept graph domain model and the
// storage contracts consumed by the query pipeline.
//
// The package contains only read-side types and interfaces: chunk, concept,
// and document nodes as they come back from the graph store, vector search
// results as they come back from the vector store, and the two store
// interfaces themselves. The write path (indexing, chunking, extraction) is
// owned by collaborating services and is intentionally absent here.
//
// # Store Contracts
//
// VectorStore and GraphStore are capability interfaces implemented by the
// persistence layer of the host application. All methods accept a context
// and are expected to honor cancellation:
//
//	results, err := vectors.Search(ctx, queryVector, 10, map[string]string{
//		graph.MetadataRepository: "platform-docs",
//	})
//
// # Metadata Keys
//
// Vector search results carry a flat string metadata map. The well-known
// keys written by the indexing pipeline are exported as Metadata* constants.
package graph

package graph

import "fmt"

// Well-known metadata keys attached to vector search results by the
// indexing pipeline.
const (
	// MetadataDocumentID is the owning document ID of the chunk.
	MetadataDocumentID = "document_id"

	// MetadataFilePath is the source file path of the chunk's document.
	MetadataFilePath = "file_path"

	// MetadataRepository is the source repository of the chunk's document.
	MetadataRepository = "repository"

	// MetadataDocType is the document type classification (e.g. "adr",
	// "runbook", "reference").
	MetadataDocType = "doc_type"
)

// VectorSearchResult is a single candidate returned by the vector store,
// ordered by descending Score within a result set.
type VectorSearchResult struct {
	// ChunkID identifies the matched chunk.
	ChunkID string `json:"chunk_id"`

	// Score is the cosine-style similarity in [0, 1].
	Score float64 `json:"score"`

	// Metadata carries the flat per-chunk metadata written at index time.
	// See the Metadata* constants for the well-known keys. May be nil.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Meta returns the metadata value for key, or the empty string when the
// key is absent or the metadata map is nil.
func (r VectorSearchResult) Meta(key string) string {
	if r.Metadata == nil {
		return ""
	}
	return r.Metadata[key]
}

// Validate checks that the result is internally consistent.
func (r VectorSearchResult) Validate() error {
	if r.ChunkID == "" {
		return fmt.Errorf("vector search result has empty chunk id")
	}
	if r.Score < 0 || r.Score > 1 {
		return fmt.Errorf("vector search result score %v outside [0, 1]", r.Score)
	}
	return nil
}

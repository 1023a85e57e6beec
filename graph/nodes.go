package graph

// ChunkNode is a content-bearing slice of a document, the unit of vector
// search and LLM context. Chunks are produced by the indexing pipeline and
// are read-only to this library.
type ChunkNode struct {
	// ID uniquely identifies the chunk.
	ID string `json:"id"`

	// SectionID identifies the document section the chunk was cut from.
	SectionID string `json:"section_id"`

	// DocumentID identifies the owning document. Document IDs are
	// namespaced by repository using a "<repository>:<path>" convention.
	DocumentID string `json:"document_id"`

	// Content is the chunk text as it will appear in LLM context.
	Content string `json:"content"`

	// Order is the zero-based position of the chunk within its section.
	Order int `json:"order"`

	// TokenCount is the approximate token length of Content.
	TokenCount int `json:"token_count"`
}

// ConceptNode is a graph entity representing a topic extracted from one or
// more chunks. Concepts relate to chunks many-to-many through graph edges.
type ConceptNode struct {
	// ID uniquely identifies the concept.
	ID string `json:"id"`

	// Name is the canonical concept name.
	Name string `json:"name"`

	// Description is an optional one-line summary of the concept.
	Description string `json:"description,omitempty"`

	// Category is an optional classification (e.g. "pattern", "tool").
	Category string `json:"category,omitempty"`
}

// DocumentNode is a versioned document known to the graph store. Only the
// fields needed by the query path are modeled.
type DocumentNode struct {
	// ID uniquely identifies the document ("<repository>:<path>").
	ID string `json:"id"`

	// Title is the document title from its frontmatter.
	Title string `json:"title,omitempty"`

	// FilePath is the source file path within its repository.
	FilePath string `json:"file_path,omitempty"`

	// Repository is the source repository name.
	Repository string `json:"repository,omitempty"`
}

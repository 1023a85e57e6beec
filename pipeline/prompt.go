package pipeline

import (
	"fmt"
	"strings"

	"github.com/docuverse/graphrag/graph"
)

// systemPrompt instructs the model to ground its answer in the provided
// context only.
const systemPrompt = `You are a documentation assistant answering questions about a corpus of versioned documents.

Answer using only the information in the provided context sections. Cite the source file paths you drew from. If the context does not contain enough information to answer the question, say so explicitly instead of guessing.`

// BuildSystemPrompt returns the fixed system prompt used for answer
// synthesis. Pure; exposed for direct testing.
func BuildSystemPrompt() string {
	return systemPrompt
}

// FormatChunkContext renders the surviving search results as LLM context:
// one "### Source:" header per result, followed by the chunk content,
// each section terminated by a blank line. Results are rendered in the
// order given. A result whose metadata lacks a file path renders an empty
// path rather than erroring. Pure; exposed for direct testing.
func FormatChunkContext(results []graph.VectorSearchResult, chunks map[string]graph.ChunkNode) string {
	var b strings.Builder
	for _, r := range results {
		fmt.Fprintf(&b, "### Source: %s (relevance: %.2f)\n", r.Meta(graph.MetadataFilePath), r.Score)
		b.WriteString(chunks[r.ChunkID].Content)
		b.WriteString("\n\n")
	}
	return b.String()
}

package embedding

import "context"

// Provider is the consumed contract of the raw embedding backend.
type Provider interface {
	// GenerateEmbedding returns the dense vector for one text.
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)

	// GenerateEmbeddings returns vectors for all texts, in input order.
	GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

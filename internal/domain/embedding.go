package domain

import "context"

// Embedder is the shared text vectorization contract between layers.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// BatchEmbedder vectorizes multiple texts in a single API call.
type BatchEmbedder interface {
	BatchEmbed(ctx context.Context, texts []string) (BatchEmbeddingResult, error)
}

// HealthChecker verifies embedding provider availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// EmbeddingResult carries the embedding vector and token usage through the decorator chain.
type EmbeddingResult struct {
	Embedding   []float32
	TotalTokens int
}

// BatchEmbeddingResult carries multiple embedding vectors and aggregate token usage.
// PerItemTokens is the upstream total divided evenly across the batch: the
// API reports only an aggregate, so per-item counts are an approximation.
type BatchEmbeddingResult struct {
	Embeddings    [][]float32
	PerItemTokens []int
	TotalTokens   int
}

package retrieval

import (
	"context"

	"github.com/civora/dokindex/internal/domain"
	"github.com/civora/dokindex/internal/domain/point"
)

// Embedder vectorizes the query text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// VectorSearcher runs organization-scoped KNN searches.
type VectorSearcher interface {
	Search(ctx context.Context, organizationID string, q point.Query) ([]point.Scored, error)
}

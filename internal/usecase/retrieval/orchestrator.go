package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/civora/dokindex/internal/domain"
	"github.com/civora/dokindex/internal/domain/document"
	"github.com/civora/dokindex/internal/domain/point"
	"github.com/civora/dokindex/internal/metrics"
)

// Request is one retrieval call on behalf of a user.
type Request struct {
	OrganizationID string
	UserID         string
	Query          string
	Limit          int
	Visibilities   []document.Visibility // empty means the default set
}

// Source is one retrieved chunk with its provenance.
type Source struct {
	DocumentID string  `json:"documentId"`
	FileName   string  `json:"fileName"`
	ChunkIndex int     `json:"chunkIndex"`
	Score      float64 `json:"score"`
	Content    string  `json:"content"`
}

// Result is the ranked retrieval outcome. An empty Sources slice is a
// valid answer, not an error. Degraded marks results produced while the
// vector index was unreachable.
type Result struct {
	Sources      []Source `json:"sources"`
	ContextBlock string   `json:"contextBlock"`
	QueryTokens  int      `json:"queryTokens"`
	Degraded     bool     `json:"degraded,omitempty"`
}

// Config holds retrieval limits.
type Config struct {
	MaxSources   int
	DefaultLimit int
}

// Orchestrator embeds the query, searches the tenant's chunks, and
// assembles a context block for the caller's LLM prompt.
type Orchestrator struct {
	embedder Embedder
	vectors  VectorSearcher
	cfg      Config
	logger   *zap.Logger
}

// New creates a retrieval orchestrator.
func New(embedder Embedder, vectors VectorSearcher, cfg Config, logger *zap.Logger) *Orchestrator {
	if cfg.MaxSources <= 0 {
		cfg.MaxSources = 5
	}
	if cfg.DefaultLimit <= 0 || cfg.DefaultLimit > cfg.MaxSources {
		cfg.DefaultLimit = cfg.MaxSources
	}
	return &Orchestrator{embedder: embedder, vectors: vectors, cfg: cfg, logger: logger}
}

// Retrieve answers a query with the most similar chunks the user may see.
// A search-layer outage degrades to an empty result instead of failing
// the caller's whole request.
func (o *Orchestrator) Retrieve(ctx context.Context, req Request) (Result, error) {
	if req.OrganizationID == "" {
		return Result{}, fmt.Errorf("organization id is required")
	}
	if strings.TrimSpace(req.Query) == "" {
		return Result{}, fmt.Errorf("query is required")
	}

	limit := req.Limit
	if limit <= 0 {
		limit = o.cfg.DefaultLimit
	}
	if limit > o.cfg.MaxSources {
		limit = o.cfg.MaxSources
	}

	visibilities := req.Visibilities
	if len(visibilities) == 0 {
		visibilities = document.DefaultVisibilitySet()
	}

	emb, err := o.embedder.Embed(ctx, req.Query)
	if err != nil {
		metrics.RetrievalRequestsTotal.WithLabelValues("error").Inc()
		return Result{}, fmt.Errorf("vectorize query: %w", err)
	}

	hits, err := o.vectors.Search(ctx, req.OrganizationID, point.Query{
		Vector:       emb.Embedding,
		K:            limit,
		Visibilities: visibilities,
		UploadedBy:   req.UserID,
	})
	if err != nil {
		if errors.Is(err, domain.ErrSearchFailure) || errors.Is(err, domain.ErrIndexUnavailable) {
			o.logger.Warn("vector search unavailable, returning empty result",
				zap.String("organization_id", req.OrganizationID),
				zap.Error(err),
			)
			metrics.RetrievalRequestsTotal.WithLabelValues("error").Inc()
			return Result{QueryTokens: emb.TotalTokens, Degraded: true}, nil
		}
		metrics.RetrievalRequestsTotal.WithLabelValues("error").Inc()
		return Result{}, fmt.Errorf("search chunks: %w", err)
	}

	if len(hits) > limit {
		hits = hits[:limit]
	}

	result := Result{
		Sources:      make([]Source, 0, len(hits)),
		QueryTokens:  emb.TotalTokens,
		ContextBlock: buildContextBlock(hits),
	}
	for _, h := range hits {
		result.Sources = append(result.Sources, Source{
			DocumentID: h.Payload.DocumentID,
			FileName:   h.Payload.FileName,
			ChunkIndex: h.Payload.ChunkIndex,
			Score:      h.Score,
			Content:    h.Payload.Content,
		})
	}

	if len(result.Sources) == 0 {
		metrics.RetrievalRequestsTotal.WithLabelValues("empty").Inc()
	} else {
		metrics.RetrievalRequestsTotal.WithLabelValues("ok").Inc()
	}

	o.logger.Debug("retrieval completed",
		zap.String("organization_id", req.OrganizationID),
		zap.Int("sources", len(result.Sources)),
		zap.Int("query_tokens", emb.TotalTokens),
	)

	return result, nil
}

// buildContextBlock renders hits as numbered, file-attributed blocks
// ready for prompt assembly.
func buildContextBlock(hits []point.Scored) string {
	if len(hits) == 0 {
		return ""
	}
	var sb strings.Builder
	for i, h := range hits {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "[Source %d: %s]\n%s", i+1, h.Payload.FileName, h.Payload.Content)
	}
	return sb.String()
}

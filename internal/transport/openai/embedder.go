package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/civora/dokindex/internal/domain"
	"github.com/civora/dokindex/internal/metrics"
)

// Embedder is an embedding provider using the OpenAI-compatible API.
type Embedder struct {
	client       *openai.Client
	model        openai.EmbeddingModel
	dimensions   int
	maxBatchSize int
	provider     string
	timeout      time.Duration
	logger       *zap.Logger
}

// Config holds the embedding provider settings. Timeout bounds each API
// call independently of the caller's context; zero disables it.
type Config struct {
	APIKey       string
	BaseURL      string
	Model        string
	Dimensions   int
	MaxBatchSize int
	Provider     string
	Timeout      time.Duration
	Logger       *zap.Logger
}

// NewEmbedder creates an OpenAI-compatible embedding provider.
func NewEmbedder(cfg *Config) *Embedder {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	maxBatch := cfg.MaxBatchSize
	if maxBatch <= 0 || maxBatch > 100 {
		maxBatch = 100
	}

	provider := cfg.Provider
	if provider == "" {
		provider = "openai"
	}

	return &Embedder{
		client:       openai.NewClientWithConfig(clientCfg),
		model:        openai.EmbeddingModel(cfg.Model),
		dimensions:   cfg.Dimensions,
		maxBatchSize: maxBatch,
		provider:     provider,
		timeout:      cfg.Timeout,
		logger:       cfg.Logger,
	}
}

// withTimeout bounds a single API call when a timeout is configured.
func (e *Embedder) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, e.timeout)
}

// Embed implements domain.Embedder. Returns the vector and usage with transport-level metrics.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	res, err := e.request(ctx, []string{text})
	if err != nil {
		return domain.EmbeddingResult{}, err
	}
	return domain.EmbeddingResult{
		Embedding:   res.Embeddings[0],
		TotalTokens: res.TotalTokens,
	}, nil
}

// BatchEmbed implements domain.BatchEmbedder. Inputs beyond the provider
// batch cap are sent as sequential sub-batches; any sub-batch failure
// fails the whole call so callers never index a partially embedded
// document.
func (e *Embedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}

	out := domain.BatchEmbeddingResult{
		Embeddings:    make([][]float32, 0, len(texts)),
		PerItemTokens: make([]int, 0, len(texts)),
	}

	for start := 0; start < len(texts); start += e.maxBatchSize {
		end := start + e.maxBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[start:end]

		res, err := e.request(ctx, batch)
		if err != nil {
			return domain.BatchEmbeddingResult{}, fmt.Errorf("batch %d-%d of %d: %w", start, end, len(texts), err)
		}

		// The API reports usage per request, not per input; spread it evenly.
		perItem := res.TotalTokens / len(batch)
		for _, emb := range res.Embeddings {
			out.Embeddings = append(out.Embeddings, emb)
			out.PerItemTokens = append(out.PerItemTokens, perItem)
		}
		out.TotalTokens += res.TotalTokens
	}

	return out, nil
}

type requestResult struct {
	Embeddings  [][]float32
	TotalTokens int
}

func (e *Embedder) request(ctx context.Context, input []string) (requestResult, error) {
	req := openai.EmbeddingRequest{
		Input:          input,
		Model:          e.model,
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
	}
	if e.dimensions > 0 {
		req.Dimensions = e.dimensions
	}

	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	start := time.Now()

	resp, err := e.client.CreateEmbeddings(ctx, req)

	duration := time.Since(start)

	if err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, string(e.model), "error").Inc()
		metrics.EmbeddingErrorsTotal.WithLabelValues(e.provider, string(e.model), "api_error").Inc()
		return requestResult{}, parseAPIError(err)
	}

	if len(resp.Data) != len(input) {
		metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, string(e.model), "error").Inc()
		metrics.EmbeddingErrorsTotal.WithLabelValues(e.provider, string(e.model), "incomplete_response").Inc()
		return requestResult{}, fmt.Errorf("expected %d embeddings, got %d: %w",
			len(input), len(resp.Data), domain.ErrEmbeddingProvider)
	}

	metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, string(e.model), "success").Inc()
	metrics.EmbeddingRequestDuration.WithLabelValues(e.provider, string(e.model)).Observe(duration.Seconds())

	totalTokens := resp.Usage.TotalTokens
	if totalTokens > 0 {
		metrics.EmbeddingTokensTotal.WithLabelValues(e.provider, string(e.model), "total").Add(float64(totalTokens))
	}

	// Responses can arrive out of order; the Index field is authoritative.
	embeddings := make([][]float32, len(input))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(embeddings) {
			return requestResult{}, fmt.Errorf("embedding index %d out of range: %w",
				d.Index, domain.ErrEmbeddingProvider)
		}
		embeddings[d.Index] = d.Embedding
	}

	return requestResult{Embeddings: embeddings, TotalTokens: totalTokens}, nil
}

// HealthCheck verifies API availability via ListModels (free endpoint).
func (e *Embedder) HealthCheck(ctx context.Context) error {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	if _, err := e.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// parseAPIError extracts a human-readable error from the API response.
// Rate limiting maps to domain.ErrRateLimited so retries can treat it as
// transient, other 4xx responses to domain.ErrEmbeddingRejected since
// resending the same request cannot succeed, and everything else wraps
// domain.ErrEmbeddingProvider.
func parseAPIError(err error) error {
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		wrap := wrapForStatus(reqErr.HTTPStatusCode)
		detail := extractDetail(reqErr.Body)
		if detail == "" {
			detail = string(reqErr.Body)
		}
		return fmt.Errorf("embedding API error %d: %s: %w", reqErr.HTTPStatusCode, detail, wrap)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		wrap := wrapForStatus(apiErr.HTTPStatusCode)
		return fmt.Errorf("embedding API error %d: %s: %w", apiErr.HTTPStatusCode, apiErr.Message, wrap)
	}

	return fmt.Errorf("embedding request failed: %w", domain.ErrEmbeddingProvider)
}

func wrapForStatus(status int) error {
	switch {
	case status == http.StatusTooManyRequests:
		return domain.ErrRateLimited
	case status >= 400 && status < 500:
		return domain.ErrEmbeddingRejected
	default:
		return domain.ErrEmbeddingProvider
	}
}

// extractDetail extracts the "detail" field from a JSON error body.
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}

package embedding

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/civora/dokindex/internal/domain"
	"github.com/civora/dokindex/internal/metrics"
)

// InstrumentedEmbedder wraps an embedder with logging and cost tracking.
// Transport metrics (requests, duration, tokens) are recorded in
// transport/openai; this layer owns spend accounting only.
type InstrumentedEmbedder struct {
	inner             batchEmbedder
	provider          string
	model             string
	costPerMillionTok float64
	logger            *zap.Logger
}

// NewInstrumentedEmbedder wraps an embedder with observability.
func NewInstrumentedEmbedder(
	inner batchEmbedder, provider, model string,
	costPerMillionTokens float64, logger *zap.Logger,
) *InstrumentedEmbedder {
	return &InstrumentedEmbedder{
		inner:             inner,
		provider:          provider,
		model:             model,
		costPerMillionTok: costPerMillionTokens,
		logger:            logger,
	}
}

// Cost converts a token count into estimated dollars.
func (p *InstrumentedEmbedder) Cost(tokens int) float64 {
	return float64(tokens) / 1_000_000 * p.costPerMillionTok
}

// Embed delegates to the inner embedder and records usage.
func (p *InstrumentedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	start := time.Now()

	result, err := p.inner.Embed(ctx, text)

	duration := time.Since(start)

	if err != nil {
		p.logger.Error("embedding request failed",
			zap.String("provider", p.provider),
			zap.String("model", p.model),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}

	p.recordCost(result.TotalTokens)

	p.logger.Debug("embedding request completed",
		zap.String("provider", p.provider),
		zap.String("model", p.model),
		zap.Duration("duration", duration),
		zap.Int("dimensions", len(result.Embedding)),
		zap.Int("total_tokens", result.TotalTokens),
	)

	return result, nil
}

// BatchEmbed delegates to the inner embedder and records usage.
func (p *InstrumentedEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}

	start := time.Now()

	result, err := p.inner.BatchEmbed(ctx, texts)

	duration := time.Since(start)

	if err != nil {
		p.logger.Error("batch embedding request failed",
			zap.String("provider", p.provider),
			zap.String("model", p.model),
			zap.Int("batch_size", len(texts)),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return domain.BatchEmbeddingResult{}, fmt.Errorf("batch embed: %w", err)
	}

	p.recordCost(result.TotalTokens)

	p.logger.Debug("batch embedding request completed",
		zap.String("provider", p.provider),
		zap.String("model", p.model),
		zap.Int("batch_size", len(texts)),
		zap.Duration("duration", duration),
		zap.Int("total_tokens", result.TotalTokens),
	)

	return result, nil
}

func (p *InstrumentedEmbedder) recordCost(tokens int) {
	if tokens <= 0 {
		return
	}
	metrics.EmbeddingCostTotal.WithLabelValues(p.provider, p.model).Add(p.Cost(tokens))
}

package embedding

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/civora/dokindex/internal/domain"
)

// RetryingEmbedder retries transient embedding failures (rate limits,
// provider hiccups) with exponential backoff. Non-transient errors fail
// immediately.
type RetryingEmbedder struct {
	inner       batchEmbedder
	maxAttempts int
	baseDelay   time.Duration
	logger      *zap.Logger
}

type batchEmbedder interface {
	domain.Embedder
	domain.BatchEmbedder
}

// NewRetryingEmbedder wraps an embedder with retry on transient errors.
func NewRetryingEmbedder(inner batchEmbedder, maxAttempts int, baseDelay time.Duration, logger *zap.Logger) *RetryingEmbedder {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if baseDelay <= 0 {
		baseDelay = 500 * time.Millisecond
	}
	return &RetryingEmbedder{
		inner:       inner,
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		logger:      logger,
	}
}

// Embed delegates to the inner embedder with retries.
func (r *RetryingEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	var result domain.EmbeddingResult
	err := r.retry(ctx, func() error {
		var err error
		result, err = r.inner.Embed(ctx, text)
		return err
	})
	return result, err
}

// BatchEmbed delegates to the inner embedder with retries.
func (r *RetryingEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	var result domain.BatchEmbeddingResult
	err := r.retry(ctx, func() error {
		var err error
		result, err = r.inner.BatchEmbed(ctx, texts)
		return err
	})
	return result, err
}

// retry runs operation up to maxAttempts times with exponential backoff:
// baseDelay * 2^(attempt-1). Stops early on context cancellation or a
// non-transient error.
func (r *RetryingEmbedder) retry(ctx context.Context, operation func() error) error {
	var lastErr error
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		lastErr = operation()
		if lastErr == nil {
			if attempt > 1 {
				r.logger.Debug("embedding succeeded after retry", zap.Int("attempt", attempt))
			}
			return nil
		}

		if !isTransient(lastErr) || attempt == r.maxAttempts {
			break
		}

		delay := r.baseDelay
		for i := 1; i < attempt; i++ {
			delay *= 2
		}

		r.logger.Warn("embedding attempt failed, retrying",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", r.maxAttempts),
			zap.Duration("delay", delay),
			zap.Error(lastErr),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return lastErr
}

func isTransient(err error) bool {
	return errors.Is(err, domain.ErrRateLimited) || errors.Is(err, domain.ErrEmbeddingProvider)
}

package embedding

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/civora/dokindex/internal/domain"
)

type fakeEmbedder struct {
	embedCalls int
	batchCalls int
	failures   int // fail this many calls before succeeding
	err        error
	result     domain.EmbeddingResult
	batch      domain.BatchEmbeddingResult
}

func (f *fakeEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	f.embedCalls++
	if f.embedCalls <= f.failures {
		return domain.EmbeddingResult{}, f.err
	}
	return f.result, nil
}

func (f *fakeEmbedder) BatchEmbed(_ context.Context, _ []string) (domain.BatchEmbeddingResult, error) {
	f.batchCalls++
	if f.batchCalls <= f.failures {
		return domain.BatchEmbeddingResult{}, f.err
	}
	return f.batch, nil
}

func TestRetryingEmbedder_SucceedsAfterTransientFailure(t *testing.T) {
	fake := &fakeEmbedder{
		failures: 2,
		err:      domain.ErrRateLimited,
		result:   domain.EmbeddingResult{Embedding: []float32{0.1}, TotalTokens: 3},
	}
	r := NewRetryingEmbedder(fake, 3, time.Millisecond, zap.NewNop())

	res, err := r.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if res.TotalTokens != 3 {
		t.Errorf("expected tokens 3, got %d", res.TotalTokens)
	}
	if fake.embedCalls != 3 {
		t.Errorf("expected 3 attempts, got %d", fake.embedCalls)
	}
}

func TestRetryingEmbedder_ExhaustsAttempts(t *testing.T) {
	fake := &fakeEmbedder{failures: 10, err: domain.ErrEmbeddingProvider}
	r := NewRetryingEmbedder(fake, 3, time.Millisecond, zap.NewNop())

	_, err := r.BatchEmbed(context.Background(), []string{"a", "b"})
	if !errors.Is(err, domain.ErrEmbeddingProvider) {
		t.Fatalf("expected provider error, got %v", err)
	}
	if fake.batchCalls != 3 {
		t.Errorf("expected 3 attempts, got %d", fake.batchCalls)
	}
}

func TestRetryingEmbedder_NonTransientFailsFast(t *testing.T) {
	permanent := errors.New("invalid input")
	fake := &fakeEmbedder{failures: 10, err: permanent}
	r := NewRetryingEmbedder(fake, 5, time.Millisecond, zap.NewNop())

	_, err := r.Embed(context.Background(), "x")
	if !errors.Is(err, permanent) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if fake.embedCalls != 1 {
		t.Errorf("expected exactly 1 attempt, got %d", fake.embedCalls)
	}
}

func TestRetryingEmbedder_RejectedRequestFailsFast(t *testing.T) {
	fake := &fakeEmbedder{failures: 10, err: domain.ErrEmbeddingRejected}
	r := NewRetryingEmbedder(fake, 5, time.Millisecond, zap.NewNop())

	_, err := r.BatchEmbed(context.Background(), []string{"a"})
	if !errors.Is(err, domain.ErrEmbeddingRejected) {
		t.Fatalf("expected rejected error, got %v", err)
	}
	if fake.batchCalls != 1 {
		t.Errorf("rejected requests must not be resent, got %d attempts", fake.batchCalls)
	}
}

func TestRetryingEmbedder_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fake := &fakeEmbedder{failures: 10, err: domain.ErrRateLimited}
	r := NewRetryingEmbedder(fake, 3, time.Millisecond, zap.NewNop())

	_, err := r.Embed(ctx, "x")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestInstrumentedEmbedder_Cost(t *testing.T) {
	p := NewInstrumentedEmbedder(&fakeEmbedder{}, "openai", "text-embedding-3-small", 0.02, zap.NewNop())

	got := p.Cost(1_000_000)
	if got != 0.02 {
		t.Errorf("expected cost 0.02 per million tokens, got %f", got)
	}
	if p.Cost(0) != 0 {
		t.Errorf("expected zero cost for zero tokens")
	}
}

func TestInstrumentedEmbedder_Delegates(t *testing.T) {
	fake := &fakeEmbedder{
		batch: domain.BatchEmbeddingResult{
			Embeddings:    [][]float32{{0.1}, {0.2}},
			PerItemTokens: []int{2, 2},
			TotalTokens:   4,
		},
	}
	p := NewInstrumentedEmbedder(fake, "openai", "text-embedding-3-small", 0.02, zap.NewNop())

	res, err := p.BatchEmbed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Embeddings) != 2 || res.TotalTokens != 4 {
		t.Errorf("unexpected result: %+v", res)
	}
	if fake.batchCalls != 1 {
		t.Errorf("expected 1 delegate call, got %d", fake.batchCalls)
	}
}

package openai

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/civora/dokindex/internal/domain"
)

func newTestEmbedder(t *testing.T, handler http.HandlerFunc, timeout time.Duration) *Embedder {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewEmbedder(&Config{
		APIKey:     "test-key",
		BaseURL:    srv.URL,
		Model:      "text-embedding-3-small",
		Dimensions: 2,
		Timeout:    timeout,
		Logger:     zap.NewNop(),
	})
}

func embeddingsResponse(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{
		"object": "list",
		"data": [{"object": "embedding", "index": 0, "embedding": [0.1, 0.2]}],
		"model": "text-embedding-3-small",
		"usage": {"prompt_tokens": 4, "total_tokens": 4}
	}`))
}

func TestEmbed_Success(t *testing.T) {
	e := newTestEmbedder(t, func(w http.ResponseWriter, _ *http.Request) {
		embeddingsResponse(w)
	}, 0)

	res, err := e.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Embedding) != 2 || res.TotalTokens != 4 {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestEmbed_TimeoutBoundsTheRequest(t *testing.T) {
	e := newTestEmbedder(t, func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(300 * time.Millisecond)
		embeddingsResponse(w)
	}, 20*time.Millisecond)

	start := time.Now()
	_, err := e.Embed(context.Background(), "hello")
	elapsed := time.Since(start)

	if err == nil {
		t.Fatal("expected a timeout error")
	}
	if !errors.Is(err, domain.ErrEmbeddingProvider) {
		t.Errorf("timeouts should map to a transient provider error, got %v", err)
	}
	if elapsed > 200*time.Millisecond {
		t.Errorf("request was not cut off by the configured timeout (took %v)", elapsed)
	}
}

func TestEmbed_ErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		status int
		want   error
	}{
		{"rate limit is transient", http.StatusTooManyRequests, domain.ErrRateLimited},
		{"bad request is permanent", http.StatusBadRequest, domain.ErrEmbeddingRejected},
		{"unauthorized is permanent", http.StatusUnauthorized, domain.ErrEmbeddingRejected},
		{"server error is transient", http.StatusInternalServerError, domain.ErrEmbeddingProvider},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := newTestEmbedder(t, func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(`{"error": {"message": "nope", "type": "invalid_request_error"}}`))
			}, 0)

			_, err := e.Embed(context.Background(), "hello")
			if !errors.Is(err, tc.want) {
				t.Fatalf("status %d: expected %v, got %v", tc.status, tc.want, err)
			}
		})
	}
}

func TestBatchEmbed_SplitsIntoSubBatches(t *testing.T) {
	requests := 0
	e := newTestEmbedder(t, func(w http.ResponseWriter, _ *http.Request) {
		requests++
		embeddingsResponse(w)
	}, 0)
	e.maxBatchSize = 1

	res, err := e.BatchEmbed(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if requests != 3 {
		t.Errorf("expected 3 sub-batch requests, got %d", requests)
	}
	if len(res.Embeddings) != 3 || res.TotalTokens != 12 {
		t.Errorf("unexpected result: %+v", res)
	}
}

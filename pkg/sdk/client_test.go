package dokindex

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestIngest_SendsAuthAndDecodesJob(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/documents/doc-1/ingest" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("unexpected auth header: %q", got)
		}
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(Job{ID: "job-1", DocumentID: "doc-1", State: JobPending})
	}))
	defer srv.Close()

	client, err := New(srv.URL, WithAPIKey("sk-test"))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	j, err := client.Ingest(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if j.ID != "job-1" || j.State != JobPending {
		t.Errorf("unexpected job: %+v", j)
	}
}

func TestWaitForJob_PollsUntilTerminal(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		state := JobRunning
		if calls.Add(1) >= 3 {
			state = JobDone
		}
		_ = json.NewEncoder(w).Encode(Job{ID: "job-1", State: state})
	}))
	defer srv.Close()

	client, err := New(srv.URL, WithPollInterval(5*time.Millisecond))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	j, err := client.WaitForJob(ctx, "job-1")
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if j.State != JobDone {
		t.Errorf("expected DONE, got %q", j.State)
	}
	if calls.Load() < 3 {
		t.Errorf("expected at least 3 polls, got %d", calls.Load())
	}
}

func TestRetrieve_RoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req RetrieveRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.OrganizationID != "org-1" || req.Query != "refund policy" {
			t.Errorf("unexpected request: %+v", req)
		}
		_ = json.NewEncoder(w).Encode(RetrieveResult{
			Sources:      []Source{{DocumentID: "doc-1", FileName: "policy.pdf", Score: 0.91, Content: "..."}},
			ContextBlock: "[Source 1: policy.pdf]\n...",
			QueryTokens:  4,
		})
	}))
	defer srv.Close()

	client, err := New(srv.URL)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	res, err := client.Retrieve(context.Background(), RetrieveRequest{
		OrganizationID: "org-1",
		Query:          "refund policy",
	})
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(res.Sources) != 1 || res.Sources[0].FileName != "policy.pdf" {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestDeleteDocument_NoContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("unexpected method %s", r.Method)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client, err := New(srv.URL)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if err := client.DeleteDocument(context.Background(), "doc-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
}

func TestAPIError_SentinelMapping(t *testing.T) {
	cases := []struct {
		status   int
		code     string
		sentinel error
	}{
		{http.StatusNotFound, "document_not_found", ErrNotFound},
		{http.StatusConflict, "invalid_status_transition", ErrConflict},
		{http.StatusUnauthorized, "bad_request", ErrUnauthorized},
		{http.StatusUnsupportedMediaType, "unsupported_format", ErrUnsupportedFormat},
		{http.StatusTooManyRequests, "rate_limited", ErrRateLimited},
		{http.StatusServiceUnavailable, "index_unavailable", ErrUnavailable},
	}

	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(tc.status)
			_ = json.NewEncoder(w).Encode(map[string]string{"code": tc.code, "message": "nope"})
		}))

		client, err := New(srv.URL)
		if err != nil {
			t.Fatalf("new client: %v", err)
		}
		_, err = client.Document(context.Background(), "doc-1")
		srv.Close()

		if !errors.Is(err, tc.sentinel) {
			t.Errorf("status %d: expected %v, got %v", tc.status, tc.sentinel, err)
		}
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.Code != tc.code {
			t.Errorf("status %d: expected APIError with code %s, got %v", tc.status, tc.code, err)
		}
	}
}

func TestNew_RequiresBaseURL(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatal("expected error for empty base url")
	}
}

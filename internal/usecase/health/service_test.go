package health

import (
	"context"
	"errors"
	"testing"
)

// --- Mocks ---

type mockDBPinger struct {
	err error
}

func (m *mockDBPinger) Ping(_ context.Context) error { return m.err }

type mockIndexChecker struct {
	exists bool
	err    error
}

func (m *mockIndexChecker) IndexExists(_ context.Context, _ string) (bool, error) {
	return m.exists, m.err
}

type mockEmbeddingChecker struct {
	err error
}

func (m *mockEmbeddingChecker) HealthCheck(_ context.Context) error { return m.err }

// --- Tests ---

func TestCheck_AllHealthy(t *testing.T) {
	svc := New(&mockDBPinger{}, &mockIndexChecker{exists: true}, "dokindex:chunks-idx", &mockEmbeddingChecker{})
	r := svc.Check(context.Background())

	if r.Status != Healthy {
		t.Errorf("expected %q, got %q", Healthy, r.Status)
	}
	for name, res := range r.Checks {
		if res != CheckOK {
			t.Errorf("expected %s check ok, got %q", name, res)
		}
	}
}

func TestCheck_DatabaseDown(t *testing.T) {
	svc := New(&mockDBPinger{err: errors.New("refused")}, &mockIndexChecker{exists: true}, "idx", &mockEmbeddingChecker{})
	r := svc.Check(context.Background())

	if r.Status != Degraded {
		t.Errorf("expected degraded, got %q", r.Status)
	}
	if r.Checks["database"] != CheckError {
		t.Errorf("expected database check error, got %q", r.Checks["database"])
	}
}

func TestCheck_MissingIndex(t *testing.T) {
	svc := New(&mockDBPinger{}, &mockIndexChecker{exists: false}, "idx", nil)
	r := svc.Check(context.Background())

	if r.Checks["index"] != CheckError {
		t.Errorf("expected index check error, got %q", r.Checks["index"])
	}
	if r.Status != Degraded {
		t.Errorf("expected degraded, got %q", r.Status)
	}
}

func TestCheck_EmbeddingProviderDown(t *testing.T) {
	svc := New(&mockDBPinger{}, &mockIndexChecker{exists: true}, "idx", &mockEmbeddingChecker{err: errors.New("401")})
	r := svc.Check(context.Background())

	if r.Checks["embedding"] != CheckError {
		t.Errorf("expected embedding check error, got %q", r.Checks["embedding"])
	}
}

func TestCheck_NilOptionalComponents(t *testing.T) {
	svc := New(&mockDBPinger{}, nil, "", nil)
	r := svc.Check(context.Background())

	if r.Status != Healthy {
		t.Errorf("expected healthy with only database, got %q", r.Status)
	}
	if _, ok := r.Checks["embedding"]; ok {
		t.Error("embedding check should be absent when not configured")
	}
}

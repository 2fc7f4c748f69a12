package objectstore

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/civora/dokindex/internal/domain"
)

func TestDownload_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("file content"))
	}))
	defer srv.Close()

	d := New(Config{})
	body, err := d.Download(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(body) != "file content" {
		t.Errorf("unexpected body %q", body)
	}
}

func TestDownload_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	d := New(Config{})
	_, err := d.Download(context.Background(), srv.URL)
	if !errors.Is(err, domain.ErrDownloadFailure) {
		t.Fatalf("expected download failure, got %v", err)
	}
}

func TestDownload_SizeLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(make([]byte, 2048))
	}))
	defer srv.Close()

	d := New(Config{MaxFileSize: 1024})
	_, err := d.Download(context.Background(), srv.URL)
	if !errors.Is(err, domain.ErrDownloadFailure) {
		t.Fatalf("expected download failure for oversized file, got %v", err)
	}
}

func TestDownload_UnreachableHost(t *testing.T) {
	d := New(Config{})
	_, err := d.Download(context.Background(), "http://127.0.0.1:1/nope")
	if !errors.Is(err, domain.ErrDownloadFailure) {
		t.Fatalf("expected download failure, got %v", err)
	}
}

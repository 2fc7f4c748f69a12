package objectstore

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/civora/dokindex/internal/domain"
)

// Downloader fetches file content from the platform's object storage by
// pre-signed URL. The pipeline never writes to object storage.
type Downloader struct {
	client      *http.Client
	maxBodySize int64
}

// Config holds downloader settings.
type Config struct {
	Timeout     time.Duration
	MaxFileSize int64 // bytes
}

// New creates a downloader.
func New(cfg Config) *Downloader {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	maxSize := cfg.MaxFileSize
	if maxSize <= 0 {
		maxSize = 50 << 20
	}
	return &Downloader{
		client:      &http.Client{Timeout: timeout},
		maxBodySize: maxSize,
	}
}

// Download fetches the file at url. All failures wrap
// domain.ErrDownloadFailure so the coordinator can mark the document
// without inspecting transport details.
func (d *Downloader) Download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %w", domain.ErrDownloadFailure, err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrDownloadFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %d", domain.ErrDownloadFailure, resp.StatusCode)
	}

	if resp.ContentLength > d.maxBodySize {
		return nil, fmt.Errorf("%w: file size %d exceeds limit %d",
			domain.ErrDownloadFailure, resp.ContentLength, d.maxBodySize)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, d.maxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", domain.ErrDownloadFailure, err)
	}
	if int64(len(body)) > d.maxBodySize {
		return nil, fmt.Errorf("%w: file exceeds limit %d bytes", domain.ErrDownloadFailure, d.maxBodySize)
	}

	return body, nil
}

package ingest

import (
	"context"

	"github.com/civora/dokindex/internal/chunk"
	"github.com/civora/dokindex/internal/domain"
	domdoc "github.com/civora/dokindex/internal/domain/document"
	domjob "github.com/civora/dokindex/internal/domain/job"
	"github.com/civora/dokindex/internal/domain/point"
	"github.com/civora/dokindex/internal/extract"
)

// DocumentStore persists document metadata records.
type DocumentStore interface {
	Get(ctx context.Context, id string) (domdoc.Document, error)
	UpdateStatus(ctx context.Context, id string, next domdoc.Status, processingError string) (domdoc.Document, error)
	SetResult(ctx context.Context, id string, stats domdoc.Stats, embeddingModel string) (domdoc.Document, error)
	Delete(ctx context.Context, id string) error
}

// VectorStore writes and removes chunk vectors.
type VectorStore interface {
	Upsert(ctx context.Context, points []point.Point) error
	DeleteByDocument(ctx context.Context, documentID string) (int, error)
}

// Downloader fetches file content from object storage.
type Downloader interface {
	Download(ctx context.Context, url string) ([]byte, error)
}

// Extractor turns raw file bytes into plain text.
type Extractor interface {
	Supports(mediaType string) bool
	Extract(ctx context.Context, mediaType string, content []byte) (extract.Result, error)
}

// Splitter cuts extracted text into chunks.
type Splitter interface {
	Split(text string) []chunk.Chunk
}

// Embedder vectorizes chunk batches and prices token usage.
type Embedder interface {
	BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error)
	Cost(tokens int) float64
}

// JobStore persists ingestion job state.
type JobStore interface {
	Put(ctx context.Context, j *domjob.Job) error
	Get(ctx context.Context, id string) (domjob.Job, error)
}

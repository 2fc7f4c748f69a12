package ingest

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/civora/dokindex/internal/chunk"
	"github.com/civora/dokindex/internal/domain"
	domdoc "github.com/civora/dokindex/internal/domain/document"
	"github.com/civora/dokindex/internal/domain/point"
	"github.com/civora/dokindex/internal/extract"
)

// --- fakes ---

type fakeDocs struct {
	docs    map[string]domdoc.Document
	history []string // status transitions, "STATUS:error"
}

func newFakeDocs(docs ...domdoc.Document) *fakeDocs {
	f := &fakeDocs{docs: make(map[string]domdoc.Document)}
	for _, d := range docs {
		f.docs[d.ID] = d
	}
	return f
}

func (f *fakeDocs) Get(_ context.Context, id string) (domdoc.Document, error) {
	d, ok := f.docs[id]
	if !ok {
		return domdoc.Document{}, domain.ErrDocumentNotFound
	}
	return d, nil
}

func (f *fakeDocs) UpdateStatus(_ context.Context, id string, next domdoc.Status, procErr string) (domdoc.Document, error) {
	d, ok := f.docs[id]
	if !ok {
		return domdoc.Document{}, domain.ErrDocumentNotFound
	}
	if d.Status != next && !d.Status.CanTransition(next) {
		return domdoc.Document{}, &domain.StatusTransitionError{From: string(d.Status), To: string(next)}
	}
	d.Status = next
	d.ProcessingError = procErr
	f.docs[id] = d
	f.history = append(f.history, string(next)+":"+procErr)
	return d, nil
}

func (f *fakeDocs) SetResult(_ context.Context, id string, stats domdoc.Stats, model string) (domdoc.Document, error) {
	d := f.docs[id]
	d.Status = domdoc.StatusReady
	d.Stats = stats
	d.EmbeddingModel = model
	d.ProcessingError = ""
	f.docs[id] = d
	f.history = append(f.history, "READY:")
	return d, nil
}

func (f *fakeDocs) Delete(_ context.Context, id string) error {
	delete(f.docs, id)
	return nil
}

type fakeVectors struct {
	deleted  []string
	upserted []point.Point
	ops      []string
}

func (f *fakeVectors) Upsert(_ context.Context, points []point.Point) error {
	f.upserted = append(f.upserted, points...)
	f.ops = append(f.ops, "upsert")
	return nil
}

func (f *fakeVectors) DeleteByDocument(_ context.Context, documentID string) (int, error) {
	f.deleted = append(f.deleted, documentID)
	f.ops = append(f.ops, "delete")
	return 0, nil
}

type fakeDownloader struct {
	content []byte
	err     error
	calls   int
}

func (f *fakeDownloader) Download(_ context.Context, _ string) ([]byte, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.content, nil
}

type fakeExtractor struct {
	supported bool
	text      string
	pageCount int
	err       error
}

func (f *fakeExtractor) Supports(_ string) bool { return f.supported }

func (f *fakeExtractor) Extract(_ context.Context, _ string, _ []byte) (extract.Result, error) {
	if f.err != nil {
		return extract.Result{}, f.err
	}
	return extract.Result{Text: f.text, PageCount: f.pageCount}, nil
}

type fakeSplitter struct{ chunks []chunk.Chunk }

func (f *fakeSplitter) Split(_ string) []chunk.Chunk { return f.chunks }

type fakeBatchEmbedder struct {
	err    error
	tokens int
	dim    int
}

func (f *fakeBatchEmbedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if f.err != nil {
		return domain.BatchEmbeddingResult{}, f.err
	}
	out := domain.BatchEmbeddingResult{TotalTokens: f.tokens}
	for range texts {
		v := make([]float32, f.dim)
		v[0] = 1
		out.Embeddings = append(out.Embeddings, v)
		out.PerItemTokens = append(out.PerItemTokens, f.tokens/len(texts))
	}
	return out, nil
}

func (f *fakeBatchEmbedder) Cost(tokens int) float64 {
	return float64(tokens) / 1_000_000 * 0.02
}

// --- helpers ---

func processingDoc() domdoc.Document {
	return domdoc.Document{
		ID:             "doc-1",
		OrganizationID: "org-1",
		UploadedBy:     "user-1",
		FileName:       "policy.pdf",
		MediaType:      "application/pdf",
		FileURL:        "https://files.example.com/doc-1",
		Visibility:     domdoc.VisibilityGlobal,
		Status:         domdoc.StatusProcessing,
	}
}

func newCoordinator(
	docs *fakeDocs, vectors *fakeVectors, dl *fakeDownloader,
	ex *fakeExtractor, sp *fakeSplitter, emb *fakeBatchEmbedder,
) *Coordinator {
	return NewCoordinator(docs, vectors, dl, ex, sp, emb, "text-embedding-3-small", zap.NewNop())
}

func twoChunks() []chunk.Chunk {
	return []chunk.Chunk{
		{Content: "first chunk", Index: 0, TokenEstimate: 3},
		{Content: "second chunk", Index: 1, TokenEstimate: 3},
	}
}

// --- tests ---

func TestIngest_HappyPath(t *testing.T) {
	docs := newFakeDocs(processingDoc())
	vectors := &fakeVectors{}
	coord := newCoordinator(
		docs, vectors,
		&fakeDownloader{content: []byte("raw")},
		&fakeExtractor{supported: true, text: "some extracted text", pageCount: 2},
		&fakeSplitter{chunks: twoChunks()},
		&fakeBatchEmbedder{tokens: 100, dim: 4},
	)

	got, err := coord.Ingest(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.Status != domdoc.StatusReady {
		t.Errorf("expected READY, got %s", got.Status)
	}
	if got.Stats.ChunkCount != 2 || got.Stats.VectorCount != 2 {
		t.Errorf("unexpected stats: %+v", got.Stats)
	}
	if got.Stats.EmbeddingTokens != 100 {
		t.Errorf("expected 100 tokens, got %d", got.Stats.EmbeddingTokens)
	}
	if got.Stats.EmbeddingCost == 0 {
		t.Error("expected non-zero embedding cost")
	}
	if got.Stats.PageCount != 2 {
		t.Errorf("expected page count 2, got %d", got.Stats.PageCount)
	}
	if got.EmbeddingModel != "text-embedding-3-small" {
		t.Errorf("unexpected model %q", got.EmbeddingModel)
	}

	if len(vectors.upserted) != 2 {
		t.Fatalf("expected 2 points upserted, got %d", len(vectors.upserted))
	}
	if vectors.upserted[0].ID != "doc-1:0" || vectors.upserted[1].ID != "doc-1:1" {
		t.Errorf("unexpected point ids: %s, %s", vectors.upserted[0].ID, vectors.upserted[1].ID)
	}
	if vectors.upserted[0].Payload.OrganizationID != "org-1" {
		t.Error("points must carry the organization id")
	}
}

func TestIngest_DeleteRunsBeforeUpsert(t *testing.T) {
	docs := newFakeDocs(processingDoc())
	vectors := &fakeVectors{}
	coord := newCoordinator(
		docs, vectors,
		&fakeDownloader{content: []byte("raw")},
		&fakeExtractor{supported: true, text: "text"},
		&fakeSplitter{chunks: twoChunks()},
		&fakeBatchEmbedder{tokens: 10, dim: 4},
	)

	if _, err := coord.Ingest(context.Background(), "doc-1"); err != nil {
		t.Fatal(err)
	}

	if len(vectors.ops) != 2 || vectors.ops[0] != "delete" || vectors.ops[1] != "upsert" {
		t.Errorf("expected delete before upsert, got %v", vectors.ops)
	}
}

func TestIngest_UnsupportedFormatFailsBeforeDownload(t *testing.T) {
	docs := newFakeDocs(processingDoc())
	dl := &fakeDownloader{content: []byte("raw")}
	coord := newCoordinator(
		docs, &fakeVectors{}, dl,
		&fakeExtractor{supported: false},
		&fakeSplitter{}, &fakeBatchEmbedder{},
	)

	_, err := coord.Ingest(context.Background(), "doc-1")
	if !errors.Is(err, domain.ErrUnsupportedFormat) {
		t.Fatalf("expected unsupported format, got %v", err)
	}
	if dl.calls != 0 {
		t.Error("download must not run for unsupported formats")
	}
	if docs.docs["doc-1"].Status != domdoc.StatusError {
		t.Errorf("expected ERROR status, got %s", docs.docs["doc-1"].Status)
	}
	if !strings.Contains(docs.docs["doc-1"].ProcessingError, "application/pdf") {
		t.Errorf("processing error should name the media type: %q", docs.docs["doc-1"].ProcessingError)
	}
}

func TestIngest_EmptyExtractionMarksError(t *testing.T) {
	docs := newFakeDocs(processingDoc())
	coord := newCoordinator(
		docs, &fakeVectors{},
		&fakeDownloader{content: []byte("raw")},
		&fakeExtractor{supported: true, text: "whatever"},
		&fakeSplitter{chunks: nil}, // nothing survives chunking
		&fakeBatchEmbedder{},
	)

	_, err := coord.Ingest(context.Background(), "doc-1")
	if !errors.Is(err, domain.ErrEmptyExtraction) {
		t.Fatalf("expected empty extraction, got %v", err)
	}
	if docs.docs["doc-1"].Status != domdoc.StatusError {
		t.Errorf("expected ERROR status, got %s", docs.docs["doc-1"].Status)
	}
}

func TestIngest_EmbeddingFailureMarksErrorAndWritesNothing(t *testing.T) {
	docs := newFakeDocs(processingDoc())
	vectors := &fakeVectors{}
	coord := newCoordinator(
		docs, vectors,
		&fakeDownloader{content: []byte("raw")},
		&fakeExtractor{supported: true, text: "text"},
		&fakeSplitter{chunks: twoChunks()},
		&fakeBatchEmbedder{err: domain.ErrEmbeddingProvider},
	)

	_, err := coord.Ingest(context.Background(), "doc-1")
	if !errors.Is(err, domain.ErrEmbeddingProvider) {
		t.Fatalf("expected embedding provider error, got %v", err)
	}
	if len(vectors.upserted) != 0 {
		t.Error("no vectors may be written when embedding fails")
	}
	if docs.docs["doc-1"].Status != domdoc.StatusError {
		t.Errorf("expected ERROR status, got %s", docs.docs["doc-1"].Status)
	}
}

func TestIngest_DownloadFailureMarksError(t *testing.T) {
	docs := newFakeDocs(processingDoc())
	coord := newCoordinator(
		docs, &fakeVectors{},
		&fakeDownloader{err: domain.ErrDownloadFailure},
		&fakeExtractor{supported: true},
		&fakeSplitter{}, &fakeBatchEmbedder{},
	)

	_, err := coord.Ingest(context.Background(), "doc-1")
	if !errors.Is(err, domain.ErrDownloadFailure) {
		t.Fatalf("expected download failure, got %v", err)
	}
	if docs.docs["doc-1"].Status != domdoc.StatusError {
		t.Errorf("expected ERROR status, got %s", docs.docs["doc-1"].Status)
	}
}

func TestIngest_RejectsNonProcessingDocument(t *testing.T) {
	doc := processingDoc()
	doc.Status = domdoc.StatusReady
	docs := newFakeDocs(doc)
	coord := newCoordinator(
		docs, &fakeVectors{}, &fakeDownloader{},
		&fakeExtractor{supported: true}, &fakeSplitter{}, &fakeBatchEmbedder{},
	)

	_, err := coord.Ingest(context.Background(), "doc-1")
	var transErr *domain.StatusTransitionError
	if !errors.As(err, &transErr) {
		t.Fatalf("expected transition error, got %v", err)
	}
}

func TestRetry_FromErrorState(t *testing.T) {
	doc := processingDoc()
	doc.Status = domdoc.StatusError
	doc.ProcessingError = "earlier failure"
	docs := newFakeDocs(doc)
	coord := newCoordinator(
		docs, &fakeVectors{},
		&fakeDownloader{content: []byte("raw")},
		&fakeExtractor{supported: true, text: "text"},
		&fakeSplitter{chunks: twoChunks()},
		&fakeBatchEmbedder{tokens: 10, dim: 4},
	)

	got, err := coord.Retry(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != domdoc.StatusReady {
		t.Errorf("expected READY after retry, got %s", got.Status)
	}
	if got.ProcessingError != "" {
		t.Errorf("expected cleared processing error, got %q", got.ProcessingError)
	}
}

func TestRetry_RejectsReadyDocument(t *testing.T) {
	doc := processingDoc()
	doc.Status = domdoc.StatusReady
	docs := newFakeDocs(doc)
	coord := newCoordinator(
		docs, &fakeVectors{}, &fakeDownloader{},
		&fakeExtractor{supported: true}, &fakeSplitter{}, &fakeBatchEmbedder{},
	)

	_, err := coord.Retry(context.Background(), "doc-1")
	var transErr *domain.StatusTransitionError
	if !errors.As(err, &transErr) {
		t.Fatalf("expected transition error, got %v", err)
	}
}

func TestRemove_DeletesVectorsAndRecord(t *testing.T) {
	docs := newFakeDocs(processingDoc())
	vectors := &fakeVectors{}
	coord := newCoordinator(
		docs, vectors, &fakeDownloader{},
		&fakeExtractor{supported: true}, &fakeSplitter{}, &fakeBatchEmbedder{},
	)

	if err := coord.Remove(context.Background(), "doc-1"); err != nil {
		t.Fatal(err)
	}
	if len(vectors.deleted) != 1 || vectors.deleted[0] != "doc-1" {
		t.Errorf("expected vector deletion for doc-1, got %v", vectors.deleted)
	}
	if _, ok := docs.docs["doc-1"]; ok {
		t.Error("expected document record removed")
	}
}

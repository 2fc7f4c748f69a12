package ingest

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/civora/dokindex/internal/domain"
	domdoc "github.com/civora/dokindex/internal/domain/document"
	"github.com/civora/dokindex/internal/domain/point"
	"github.com/civora/dokindex/internal/metrics"
)

// Coordinator drives a document through the full ingestion pipeline:
// download, extract, chunk, embed, index. Failures at any stage move the
// document to ERROR with the failure recorded; they never leave it stuck
// in PROCESSING.
type Coordinator struct {
	docs       DocumentStore
	vectors    VectorStore
	downloader Downloader
	extractor  Extractor
	splitter   Splitter
	embedder   Embedder
	model      string
	logger     *zap.Logger
}

// NewCoordinator creates an ingestion coordinator.
func NewCoordinator(
	docs DocumentStore, vectors VectorStore, downloader Downloader,
	extractor Extractor, splitter Splitter, embedder Embedder,
	model string, logger *zap.Logger,
) *Coordinator {
	return &Coordinator{
		docs:       docs,
		vectors:    vectors,
		downloader: downloader,
		extractor:  extractor,
		splitter:   splitter,
		embedder:   embedder,
		model:      model,
		logger:     logger,
	}
}

// Ingest processes a document that is in PROCESSING state.
func (c *Coordinator) Ingest(ctx context.Context, documentID string) (domdoc.Document, error) {
	doc, err := c.docs.Get(ctx, documentID)
	if err != nil {
		return domdoc.Document{}, err
	}
	if doc.Status != domdoc.StatusProcessing {
		return domdoc.Document{}, &domain.StatusTransitionError{
			From: string(doc.Status),
			To:   string(domdoc.StatusProcessing),
		}
	}
	return c.process(ctx, doc)
}

// Retry re-runs ingestion for a document in ERROR state. This is the only
// path back to PROCESSING.
func (c *Coordinator) Retry(ctx context.Context, documentID string) (domdoc.Document, error) {
	doc, err := c.docs.UpdateStatus(ctx, documentID, domdoc.StatusProcessing, "")
	if err != nil {
		return domdoc.Document{}, err
	}
	return c.process(ctx, doc)
}

// Remove deletes a document's vectors and its metadata record.
func (c *Coordinator) Remove(ctx context.Context, documentID string) error {
	n, err := c.vectors.DeleteByDocument(ctx, documentID)
	if err != nil {
		return fmt.Errorf("delete vectors of %s: %w", documentID, err)
	}
	if err := c.docs.Delete(ctx, documentID); err != nil {
		return fmt.Errorf("delete document %s: %w", documentID, err)
	}
	c.logger.Info("document removed",
		zap.String("document_id", documentID),
		zap.Int("vectors_deleted", n),
	)
	return nil
}

func (c *Coordinator) process(ctx context.Context, doc domdoc.Document) (domdoc.Document, error) {
	start := time.Now()

	result, err := c.run(ctx, doc)
	if err != nil {
		metrics.IngestDocumentsTotal.WithLabelValues(doc.MediaType, "error").Inc()
		c.logger.Error("ingestion failed",
			zap.String("document_id", doc.ID),
			zap.String("media_type", doc.MediaType),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		if _, ferr := c.docs.UpdateStatus(ctx, doc.ID, domdoc.StatusError, err.Error()); ferr != nil {
			c.logger.Error("failed to mark document as errored",
				zap.String("document_id", doc.ID),
				zap.Error(ferr),
			)
		}
		return domdoc.Document{}, err
	}

	metrics.IngestDocumentsTotal.WithLabelValues(doc.MediaType, "ready").Inc()
	metrics.IngestDuration.WithLabelValues(doc.MediaType).Observe(time.Since(start).Seconds())

	c.logger.Info("document ingested",
		zap.String("document_id", doc.ID),
		zap.String("media_type", doc.MediaType),
		zap.Int("chunks", result.Stats.ChunkCount),
		zap.Int("tokens", result.Stats.EmbeddingTokens),
		zap.Duration("duration", time.Since(start)),
	)
	return result, nil
}

// run executes the pipeline stages and records the result on success.
func (c *Coordinator) run(ctx context.Context, doc domdoc.Document) (domdoc.Document, error) {
	// Reject unsupported formats before paying for the download.
	if !c.extractor.Supports(doc.MediaType) {
		return domdoc.Document{}, fmt.Errorf("%w: %s", domain.ErrUnsupportedFormat, doc.MediaType)
	}

	content, err := c.downloader.Download(ctx, doc.FileURL)
	if err != nil {
		return domdoc.Document{}, err
	}

	extracted, err := c.extractor.Extract(ctx, doc.MediaType, content)
	if err != nil {
		return domdoc.Document{}, err
	}

	chunks := c.splitter.Split(extracted.Text)
	if len(chunks) == 0 {
		return domdoc.Document{}, fmt.Errorf("%w: no chunks produced", domain.ErrEmptyExtraction)
	}

	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Content
	}

	batch, err := c.embedder.BatchEmbed(ctx, texts)
	if err != nil {
		return domdoc.Document{}, err
	}
	if len(batch.Embeddings) != len(chunks) {
		return domdoc.Document{}, fmt.Errorf("%w: embedded %d of %d chunks",
			domain.ErrEmbeddingProvider, len(batch.Embeddings), len(chunks))
	}

	points := make([]point.Point, 0, len(chunks))
	for i, ch := range chunks {
		p, err := point.New(batch.Embeddings[i], point.Payload{
			DocumentID:     doc.ID,
			OrganizationID: doc.OrganizationID,
			Content:        ch.Content,
			ChunkIndex:     ch.Index,
			FileName:       doc.FileName,
			MediaType:      doc.MediaType,
			UploadedBy:     doc.UploadedBy,
			Visibility:     doc.Visibility,
		})
		if err != nil {
			return domdoc.Document{}, fmt.Errorf("build point for chunk %d: %w", ch.Index, err)
		}
		points = append(points, p)
	}

	// Remove any previous run's vectors before writing, so a re-ingested
	// document never accumulates stale chunks.
	if _, err := c.vectors.DeleteByDocument(ctx, doc.ID); err != nil {
		return domdoc.Document{}, err
	}
	if err := c.vectors.Upsert(ctx, points); err != nil {
		return domdoc.Document{}, err
	}

	metrics.IngestChunksTotal.Add(float64(len(points)))

	stats := domdoc.Stats{
		TextLength:      len(extracted.Text),
		PageCount:       extracted.PageCount,
		ChunkCount:      len(chunks),
		EmbeddingTokens: batch.TotalTokens,
		EmbeddingCost:   c.embedder.Cost(batch.TotalTokens),
		VectorCount:     len(points),
	}

	updated, err := c.docs.SetResult(ctx, doc.ID, stats, c.model)
	if err != nil {
		return domdoc.Document{}, fmt.Errorf("record result: %w", err)
	}
	return updated, nil
}

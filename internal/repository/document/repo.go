package document

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/civora/dokindex/internal/db"
	"github.com/civora/dokindex/internal/domain"
	domdoc "github.com/civora/dokindex/internal/domain/document"
)

// store is the consumer interface for document metadata (ISP).
type store interface {
	JSONSet(ctx context.Context, key, path string, data []byte) error
	JSONGet(ctx context.Context, key string, paths ...string) ([]byte, error)
	Del(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// Repo persists document metadata records as JSON values.
type Repo struct {
	store     store
	keyPrefix string
}

// New creates a document metadata repository.
func New(s store, keyPrefix string) *Repo {
	if keyPrefix == "" {
		keyPrefix = "dokindex:"
	}
	return &Repo{store: s, keyPrefix: keyPrefix}
}

func (r *Repo) docKey(id string) string {
	return r.keyPrefix + "documents:" + id
}

// Put creates or replaces a document record.
func (r *Repo) Put(ctx context.Context, doc *domdoc.Document) error {
	if err := doc.Validate(); err != nil {
		return fmt.Errorf("validate document: %w", err)
	}

	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	if err := r.store.JSONSet(ctx, r.docKey(doc.ID), "$", data); err != nil {
		return fmt.Errorf("json.set %s: %w", r.docKey(doc.ID), err)
	}
	return nil
}

// Get returns a document by id.
func (r *Repo) Get(ctx context.Context, id string) (domdoc.Document, error) {
	raw, err := r.store.JSONGet(ctx, r.docKey(id), "$")
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return domdoc.Document{}, fmt.Errorf("%w: %s", domain.ErrDocumentNotFound, id)
		}
		return domdoc.Document{}, fmt.Errorf("json.get %s: %w", r.docKey(id), err)
	}
	return parseDocument(raw)
}

// Exists reports whether a document record is present.
func (r *Repo) Exists(ctx context.Context, id string) (bool, error) {
	ok, err := r.store.Exists(ctx, r.docKey(id))
	if err != nil {
		return false, fmt.Errorf("exists %s: %w", r.docKey(id), err)
	}
	return ok, nil
}

// Delete removes a document record.
func (r *Repo) Delete(ctx context.Context, id string) error {
	if err := r.store.Del(ctx, r.docKey(id)); err != nil {
		return fmt.Errorf("del %s: %w", r.docKey(id), err)
	}
	return nil
}

// UpdateStatus moves a document through its lifecycle, enforcing the
// allowed transitions. processingError is recorded when next is ERROR
// and cleared otherwise.
func (r *Repo) UpdateStatus(ctx context.Context, id string, next domdoc.Status, processingError string) (domdoc.Document, error) {
	doc, err := r.Get(ctx, id)
	if err != nil {
		return domdoc.Document{}, err
	}

	if doc.Status != next && !doc.Status.CanTransition(next) {
		return domdoc.Document{}, &domain.StatusTransitionError{
			From: string(doc.Status),
			To:   string(next),
		}
	}

	doc.Status = next
	if next == domdoc.StatusError {
		doc.ProcessingError = processingError
	} else {
		doc.ProcessingError = ""
	}

	if err := r.Put(ctx, &doc); err != nil {
		return domdoc.Document{}, err
	}
	return doc, nil
}

// SetResult records a successful ingestion run: stats, the embedding
// model used, and the READY status in a single write.
func (r *Repo) SetResult(ctx context.Context, id string, stats domdoc.Stats, embeddingModel string) (domdoc.Document, error) {
	doc, err := r.Get(ctx, id)
	if err != nil {
		return domdoc.Document{}, err
	}

	if doc.Status != domdoc.StatusReady && !doc.Status.CanTransition(domdoc.StatusReady) {
		return domdoc.Document{}, &domain.StatusTransitionError{
			From: string(doc.Status),
			To:   string(domdoc.StatusReady),
		}
	}

	doc.Stats = stats
	doc.EmbeddingModel = embeddingModel
	doc.Status = domdoc.StatusReady
	doc.ProcessingError = ""

	if err := r.Put(ctx, &doc); err != nil {
		return domdoc.Document{}, err
	}
	return doc, nil
}

// parseDocument handles both plain objects and the JSONPath array wrapper
// that JSON.GET with "$" returns.
func parseDocument(raw []byte) (domdoc.Document, error) {
	var docs []domdoc.Document
	if err := json.Unmarshal(raw, &docs); err == nil {
		if len(docs) == 0 {
			return domdoc.Document{}, domain.ErrDocumentNotFound
		}
		return docs[0], nil
	}

	var doc domdoc.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return domdoc.Document{}, fmt.Errorf("unmarshal document: %w", err)
	}
	return doc, nil
}

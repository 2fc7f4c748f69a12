package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/civora/dokindex/internal/domain"
)

// Result is the outcome of text extraction from one file.
type Result struct {
	Text      string
	PageCount int // 0 when the format has no page concept
}

// Extractor converts a raw file of a specific media type into plain text.
type Extractor interface {
	// MediaTypes lists the media types this extractor handles.
	MediaTypes() []string
	// Extract pulls plain text out of the file content.
	Extract(ctx context.Context, content []byte) (Result, error)
}

// Registry dispatches extraction by normalized media type.
type Registry struct {
	extractors map[string]Extractor
}

// NewRegistry creates a registry with the given extractors.
// Later registrations win on media type collisions.
func NewRegistry(extractors ...Extractor) *Registry {
	r := &Registry{extractors: make(map[string]Extractor)}
	for _, e := range extractors {
		r.Register(e)
	}
	return r
}

// DefaultRegistry returns a registry covering pdf, docx, xlsx and plain text.
func DefaultRegistry() *Registry {
	return NewRegistry(
		NewPlainText(),
		NewPDF(),
		NewWordDocument(),
		NewSpreadsheet(),
	)
}

// Register adds an extractor for all its declared media types.
func (r *Registry) Register(e Extractor) {
	for _, mt := range e.MediaTypes() {
		r.extractors[NormalizeMediaType(mt)] = e
	}
}

// Supports reports whether a media type has a registered extractor.
func (r *Registry) Supports(mediaType string) bool {
	_, ok := r.extractors[NormalizeMediaType(mediaType)]
	return ok
}

// Extract dispatches to the extractor for the media type. Returns
// domain.ErrUnsupportedFormat for unknown types and domain.ErrEmptyExtraction
// when the file yields no usable text.
func (r *Registry) Extract(ctx context.Context, mediaType string, content []byte) (Result, error) {
	e, ok := r.extractors[NormalizeMediaType(mediaType)]
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", domain.ErrUnsupportedFormat, mediaType)
	}

	res, err := e.Extract(ctx, content)
	if err != nil {
		return Result{}, err
	}

	res.Text = strings.TrimSpace(res.Text)
	if res.Text == "" {
		return Result{}, fmt.Errorf("%w: media type %s", domain.ErrEmptyExtraction, mediaType)
	}
	return res, nil
}

// NormalizeMediaType lowercases a media type and strips parameters,
// so "text/plain; charset=utf-8" matches "text/plain".
func NormalizeMediaType(mt string) string {
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = mt[:i]
	}
	return strings.ToLower(strings.TrimSpace(mt))
}

package extract

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/civora/dokindex/internal/domain"
)

// PDF extracts text from PDF files page by page.
type PDF struct{}

// NewPDF creates a PDF extractor.
func NewPDF() *PDF {
	return &PDF{}
}

// MediaTypes returns the media types this extractor handles.
func (p *PDF) MediaTypes() []string {
	return []string{"application/pdf"}
}

// Extract pulls plain text from every page. Pages that fail text
// extraction (scanned images, exotic encodings) are skipped rather than
// failing the whole document.
func (p *PDF) Extract(_ context.Context, content []byte) (Result, error) {
	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return Result{}, fmt.Errorf("%w: open pdf: %v", domain.ErrUnsupportedFormat, err)
	}

	numPages := reader.NumPage()

	var sb strings.Builder
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(text)
	}

	return Result{Text: sb.String(), PageCount: numPages}, nil
}

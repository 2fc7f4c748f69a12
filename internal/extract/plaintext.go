package extract

import (
	"bytes"
	"context"
	"strings"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// PlainText extracts text-family files verbatim.
type PlainText struct{}

// NewPlainText creates a plain text extractor.
func NewPlainText() *PlainText {
	return &PlainText{}
}

// MediaTypes returns the media types this extractor handles.
func (p *PlainText) MediaTypes() []string {
	return []string{
		"text/plain",
		"text/markdown",
		"text/csv",
		"application/json",
	}
}

// Extract returns the content as-is, minus a leading UTF-8 BOM and
// normalized line endings.
func (p *PlainText) Extract(_ context.Context, content []byte) (Result, error) {
	content = bytes.TrimPrefix(content, utf8BOM)
	text := strings.ReplaceAll(string(content), "\r\n", "\n")
	return Result{Text: text}, nil
}

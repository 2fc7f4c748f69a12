package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/civora/dokindex/internal/domain"
)

// WordDocument extracts text from DOCX files by unzipping the package
// and walking word/document.xml.
type WordDocument struct{}

// NewWordDocument creates a DOCX extractor.
func NewWordDocument() *WordDocument {
	return &WordDocument{}
}

// MediaTypes returns the media types this extractor handles.
func (w *WordDocument) MediaTypes() []string {
	return []string{
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	}
}

// Extract converts the DOCX body to plain text, one line per paragraph.
func (w *WordDocument) Extract(_ context.Context, content []byte) (Result, error) {
	reader, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return Result{}, fmt.Errorf("%w: open docx: %v", domain.ErrUnsupportedFormat, err)
	}

	for _, file := range reader.File {
		if file.Name != "word/document.xml" {
			continue
		}

		rc, err := file.Open()
		if err != nil {
			return Result{}, fmt.Errorf("%w: read docx body: %v", domain.ErrUnsupportedFormat, err)
		}
		body, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return Result{}, fmt.Errorf("%w: read docx body: %v", domain.ErrUnsupportedFormat, err)
		}

		return Result{Text: parseDocumentXML(body)}, nil
	}

	return Result{}, fmt.Errorf("%w: docx has no word/document.xml", domain.ErrUnsupportedFormat)
}

// documentXML mirrors the structure of word/document.xml.
type documentXML struct {
	Body struct {
		Paragraphs []wordParagraph `xml:"p"`
	} `xml:"body"`
}

type wordParagraph struct {
	Runs []wordRun `xml:"r"`
}

type wordRun struct {
	Text []wordText `xml:"t"`
}

type wordText struct {
	Content string `xml:",chardata"`
}

func parseDocumentXML(content []byte) string {
	var doc documentXML
	if err := xml.Unmarshal(content, &doc); err != nil {
		return ""
	}

	var sb strings.Builder
	for i, para := range doc.Body.Paragraphs {
		if i > 0 {
			sb.WriteString("\n")
		}
		for _, run := range para.Runs {
			for _, text := range run.Text {
				sb.WriteString(text.Content)
			}
		}
	}

	return sb.String()
}

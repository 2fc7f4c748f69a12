package extract

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/civora/dokindex/internal/domain"
)

// Spreadsheet extracts text from XLSX workbooks sheet by sheet.
type Spreadsheet struct{}

// NewSpreadsheet creates an XLSX extractor.
func NewSpreadsheet() *Spreadsheet {
	return &Spreadsheet{}
}

// MediaTypes returns the media types this extractor handles.
func (s *Spreadsheet) MediaTypes() []string {
	return []string{
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	}
}

// Extract renders each sheet as a labeled block of tab-separated rows,
// so sheet boundaries survive chunking.
func (s *Spreadsheet) Extract(_ context.Context, content []byte) (Result, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return Result{}, fmt.Errorf("%w: open xlsx: %v", domain.ErrUnsupportedFormat, err)
	}
	defer f.Close()

	var sb strings.Builder
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			continue
		}

		var rowLines []string
		for _, row := range rows {
			line := strings.TrimSpace(strings.Join(row, "\t"))
			if line == "" {
				continue
			}
			rowLines = append(rowLines, line)
		}
		if len(rowLines) == 0 {
			continue
		}

		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(fmt.Sprintf("=== Sheet: %s ===\n", sheet))
		sb.WriteString(strings.Join(rowLines, "\n"))
	}

	return Result{Text: sb.String()}, nil
}

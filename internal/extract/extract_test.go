package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/civora/dokindex/internal/domain"
)

func TestNormalizeMediaType(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"text/plain", "text/plain"},
		{"TEXT/PLAIN", "text/plain"},
		{"text/plain; charset=utf-8", "text/plain"},
		{"  application/pdf  ", "application/pdf"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, NormalizeMediaType(tc.in))
	}
}

func TestRegistry_UnsupportedFormat(t *testing.T) {
	r := DefaultRegistry()

	_, err := r.Extract(context.Background(), "image/png", []byte{0x89, 0x50})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnsupportedFormat)
}

func TestRegistry_EmptyExtraction(t *testing.T) {
	r := DefaultRegistry()

	_, err := r.Extract(context.Background(), "text/plain", []byte("   \n\t  "))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrEmptyExtraction)
}

func TestRegistry_Supports(t *testing.T) {
	r := DefaultRegistry()

	assert.True(t, r.Supports("application/pdf"))
	assert.True(t, r.Supports("text/plain; charset=utf-8"))
	assert.False(t, r.Supports("video/mp4"))
}

func TestPlainText_StripsBOMAndNormalizesLineEndings(t *testing.T) {
	r := DefaultRegistry()

	content := append([]byte{0xEF, 0xBB, 0xBF}, []byte("first line\r\nsecond line")...)
	res, err := r.Extract(context.Background(), "text/plain", content)
	require.NoError(t, err)
	assert.Equal(t, "first line\nsecond line", res.Text)
	assert.Equal(t, 0, res.PageCount)
}

func TestWordDocument_ExtractsParagraphs(t *testing.T) {
	doc := buildDocx(t, `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>Data retention policy</w:t></w:r></w:p>
    <w:p><w:r><w:t>Personal data is kept </w:t></w:r><w:r><w:t>for 24 months.</w:t></w:r></w:p>
  </w:body>
</w:document>`)

	r := DefaultRegistry()
	res, err := r.Extract(
		context.Background(),
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		doc,
	)
	require.NoError(t, err)
	assert.Equal(t, "Data retention policy\nPersonal data is kept for 24 months.", res.Text)
}

func TestWordDocument_RejectsNonZipContent(t *testing.T) {
	r := DefaultRegistry()

	_, err := r.Extract(
		context.Background(),
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		[]byte("not a zip archive"),
	)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnsupportedFormat)
}

func TestSpreadsheet_LabelsSheets(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetCellValue("Sheet1", "A1", "Name"))
	require.NoError(t, f.SetCellValue("Sheet1", "B1", "Department"))
	require.NoError(t, f.SetCellValue("Sheet1", "A2", "Alice"))
	require.NoError(t, f.SetCellValue("Sheet1", "B2", "Legal"))

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	require.NoError(t, f.Close())

	r := DefaultRegistry()
	res, err := r.Extract(
		context.Background(),
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		buf.Bytes(),
	)
	require.NoError(t, err)
	assert.Contains(t, res.Text, "=== Sheet: Sheet1 ===")
	assert.Contains(t, res.Text, "Name\tDepartment")
	assert.Contains(t, res.Text, "Alice\tLegal")
}

func TestPDF_RejectsCorruptContent(t *testing.T) {
	r := DefaultRegistry()

	_, err := r.Extract(context.Background(), "application/pdf", []byte("definitely not a pdf"))
	require.Error(t, err)
}

// buildDocx assembles a minimal DOCX package with the given document.xml body.
func buildDocx(t *testing.T, documentXML string) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(documentXML))
	require.NoError(t, err)

	require.NoError(t, zw.Close())
	return buf.Bytes()
}

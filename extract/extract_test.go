package extract

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract_PlainText(t *testing.T) {
	e := New(nil)
	text, err := e.Extract(context.Background(), "text/plain; charset=utf-8", []byte("héllo world"))
	require.NoError(t, err)
	assert.Equal(t, "héllo world", text)

	text, err = e.Extract(context.Background(), MimeMarkdown, []byte("# Title"))
	require.NoError(t, err)
	assert.Equal(t, "# Title", text)
}

func TestExtract_InvalidUTF8(t *testing.T) {
	_, err := New(nil).Extract(context.Background(), MimeText, []byte{0xff, 0xfe, 0x00})
	assert.ErrorIs(t, err, ErrExtraction)
}

func TestExtract_Unsupported(t *testing.T) {
	e := New(nil)
	_, err := e.Extract(context.Background(), "image/png", []byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
	assert.False(t, e.Supports("image/png"))
	assert.True(t, e.Supports("Application/PDF"))
	assert.Len(t, e.SupportedTypes(), 6)
}

func TestExtract_CSV(t *testing.T) {
	data := "name,age\nAlice,30\nBob\nCarol,41\n"
	text, err := New(nil).Extract(context.Background(), MimeCSV, []byte(data))
	require.NoError(t, err)

	expected := "CSV Data:\nHeaders: name, age\n\nRows:\n" +
		"{'name': 'Alice', 'age': '30'}\n" +
		"{'name': 'Carol', 'age': '41'}"
	assert.Equal(t, expected, text)
}

func TestExtract_CSVEmpty(t *testing.T) {
	text, err := New(nil).Extract(context.Background(), MimeCSV, nil)
	require.NoError(t, err)
	assert.Equal(t, "CSV Data:\nHeaders: \n\nRows:\n", text)
}

func TestExtract_HTML(t *testing.T) {
	page := `<html><head><title>ignored</title><style>p{}</style></head>
<body><h1>Heading</h1>
<p>First   paragraph.</p><script>var x = 1;</script>
<p>Second</p></body></html>`

	text, err := New(nil).Extract(context.Background(), MimeHTML, []byte(page))
	require.NoError(t, err)
	assert.Contains(t, text, "Heading")
	assert.Contains(t, text, "First paragraph.")
	assert.Contains(t, text, "Second")
	assert.NotContains(t, text, "var x")
	assert.NotContains(t, text, "ignored")
}

func TestExtract_CorruptPDF(t *testing.T) {
	_, err := New(nil).Extract(context.Background(), MimePDF, []byte("not a pdf"))
	assert.ErrorIs(t, err, ErrExtraction)
}

func TestExtract_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(nil).Extract(ctx, MimeText, []byte("x"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMimeTypeForFilename(t *testing.T) {
	assert.Equal(t, MimePDF, MimeTypeForFilename("report.PDF"))
	assert.Equal(t, MimeDOCX, MimeTypeForFilename("/tmp/a.docx"))
	assert.Equal(t, MimeHTML, MimeTypeForFilename("index.htm"))
	assert.Equal(t, "", MimeTypeForFilename("archive.zip"))
	assert.Equal(t, "", MimeTypeForFilename("noext"))
}

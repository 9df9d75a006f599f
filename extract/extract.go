// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package extract turns uploaded files into plain text.
package extract

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"code.sajari.com/docconv/v2"
	"github.com/PuerkitoBio/goquery"
	"github.com/ledongthuc/pdf"
)

// Supported mime types.
const (
	MimePDF      = "application/pdf"
	MimeDOCX     = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MimeText     = "text/plain"
	MimeMarkdown = "text/markdown"
	MimeCSV      = "text/csv"
	MimeHTML     = "text/html"
)

var extensions = map[string]string{
	".pdf":  MimePDF,
	".docx": MimeDOCX,
	".txt":  MimeText,
	".md":   MimeMarkdown,
	".csv":  MimeCSV,
	".html": MimeHTML,
	".htm":  MimeHTML,
}

// MimeTypeForFilename returns the mime type implied by a file extension,
// or the empty string for unknown extensions.
func MimeTypeForFilename(name string) string {
	return extensions[strings.ToLower(filepath.Ext(name))]
}

// Extractor turns raw bytes of a declared mime type into text.
type Extractor interface {
	Extract(ctx context.Context, mimeType string, data []byte) (string, error)
}

type extractFunc func(data []byte) (string, error)

// DocumentExtractor dispatches on mime type to a format-specific reader.
type DocumentExtractor struct {
	formats map[string]extractFunc
	logger  *slog.Logger
}

var _ Extractor = (*DocumentExtractor)(nil)

// New creates an extractor for every supported format.
func New(logger *slog.Logger) *DocumentExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	e := &DocumentExtractor{logger: logger.With("component", "extractor")}
	e.formats = map[string]extractFunc{
		MimePDF:      e.pdf,
		MimeDOCX:     docx,
		MimeText:     plainText,
		MimeMarkdown: plainText,
		MimeCSV:      csvText,
		MimeHTML:     htmlText,
	}
	return e
}

// Supports reports whether mimeType can be extracted.
func (e *DocumentExtractor) Supports(mimeType string) bool {
	_, ok := e.formats[normalizeMime(mimeType)]
	return ok
}

// SupportedTypes lists the mime types Extract accepts.
func (e *DocumentExtractor) SupportedTypes() []string {
	types := make([]string, 0, len(e.formats))
	for t := range e.formats {
		types = append(types, t)
	}
	return types
}

// Extract returns the text of data.
// Errors wrap ErrUnsupportedFormat or ErrExtraction.
func (e *DocumentExtractor) Extract(ctx context.Context, mimeType string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	fn, ok := e.formats[normalizeMime(mimeType)]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, mimeType)
	}

	text, err := fn(data)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrExtraction, err)
	}
	e.logger.Debug("extracted text", "mime_type", mimeType, "bytes", len(data), "text_length", len(text))
	return text, nil
}

// normalizeMime drops parameters such as "; charset=utf-8".
func normalizeMime(mimeType string) string {
	base, _, _ := strings.Cut(mimeType, ";")
	return strings.ToLower(strings.TrimSpace(base))
}

func (e *DocumentExtractor) pdf(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to create PDF reader: %w", err)
	}

	var sb strings.Builder
	for pageIndex := 1; pageIndex <= reader.NumPage(); pageIndex++ {
		page := reader.Page(pageIndex)
		if page.V.IsNull() {
			e.logger.Warn("null page encountered", "page_number", pageIndex)
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("failed to extract text from page %d: %w", pageIndex, err)
		}
		sb.WriteString(text)
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("no text content extracted from PDF")
	}
	return sb.String(), nil
}

func docx(data []byte) (string, error) {
	result, err := docconv.Convert(bytes.NewReader(data), MimeDOCX, false)
	if err != nil {
		return "", fmt.Errorf("failed to convert Word document: %w", err)
	}
	return result.Body, nil
}

func plainText(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", fmt.Errorf("text is not valid UTF-8")
	}
	return string(data), nil
}

// csvText renders the header line and every well-formed row as a mapping
// from header to value. Rows whose width differs from the header are skipped.
func csvText(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", fmt.Errorf("csv is not valid UTF-8")
	}
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1

	headers, err := r.Read()
	if err == io.EOF {
		headers = nil
	} else if err != nil {
		return "", err
	}

	var rows []string
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		if len(record) != len(headers) {
			continue
		}
		pairs := make([]string, len(headers))
		for i, h := range headers {
			pairs[i] = fmt.Sprintf("'%s': '%s'", h, record[i])
		}
		rows = append(rows, "{"+strings.Join(pairs, ", ")+"}")
	}

	return "CSV Data:\nHeaders: " + strings.Join(headers, ", ") + "\n\nRows:\n" + strings.Join(rows, "\n"), nil
}

// htmlText returns the visible text of the body with whitespace collapsed per line.
func htmlText(data []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("error parsing HTML: %w", err)
	}
	doc.Find("script, style, noscript, head").Remove()

	var lines []string
	for line := range strings.SplitSeq(doc.Find("body").Text(), "\n") {
		if fields := strings.Fields(line); len(fields) > 0 {
			lines = append(lines, strings.Join(fields, " "))
		}
	}
	return strings.Join(lines, "\n"), nil
}

package extract

import "errors"

var (
	// ErrUnsupportedFormat indicates no extractor handles the mime type.
	ErrUnsupportedFormat = errors.New("unsupported file type")

	// ErrExtraction indicates the file could not be read as its declared type.
	ErrExtraction = errors.New("failed to extract text")
)

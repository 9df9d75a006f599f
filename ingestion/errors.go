package ingestion

import "errors"

var (
	// ErrRepositoryRequired is returned when the document repository is not provided.
	ErrRepositoryRequired = errors.New("document repository required")

	// ErrTaskQueueRequired is returned when a task queue is not provided.
	ErrTaskQueueRequired = errors.New("task queue required")

	// ErrEmbeddingChainRequired is returned when an embedding chain is not provided.
	ErrEmbeddingChainRequired = errors.New("embedding chain required")

	// ErrProcessorRequired is returned when a pipeline is built without a processor.
	ErrProcessorRequired = errors.New("document processor required")

	// ErrEmptyFile is returned when an upload carries no bytes.
	ErrEmptyFile = errors.New("uploaded file is empty")

	// ErrFileTooLarge is returned when an upload exceeds the size limit.
	ErrFileTooLarge = errors.New("uploaded file exceeds size limit")

	// ErrUnsupportedType is returned when no extractor handles an upload's mime type.
	ErrUnsupportedType = errors.New("unsupported file type")
)

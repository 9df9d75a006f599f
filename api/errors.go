package api

import "errors"

var (
	// ErrDocumentsRequired is returned when no document store is provided.
	ErrDocumentsRequired = errors.New("document store required")

	// ErrPipelineRequired is returned when no ingestion pipeline is provided.
	ErrPipelineRequired = errors.New("ingestion pipeline required")

	// ErrSearcherRequired is returned when no searcher is provided.
	ErrSearcherRequired = errors.New("searcher required")

	// ErrChatRequired is returned when no chat service is provided.
	ErrChatRequired = errors.New("chat service required")

	// ErrMissingUser is returned when a request carries no X-User-ID header.
	ErrMissingUser = errors.New("X-User-ID header is required")

	// ErrMissingFile is returned when an upload has no file part.
	ErrMissingFile = errors.New("multipart field \"file\" is required")

	// ErrMissingQuery is returned when a search has no q parameter.
	ErrMissingQuery = errors.New("query parameter q is required")

	// ErrReindexUnavailable is returned by full reindex requests when no
	// reindexer is configured.
	ErrReindexUnavailable = errors.New("full reindex is not available")
)

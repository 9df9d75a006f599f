package reindex

import "errors"

var (
	// ErrRepositoryRequired is returned when a repository is not provided.
	ErrRepositoryRequired = errors.New("repository required")

	// ErrEmbeddingChainRequired is returned when an embedding chain is not provided.
	ErrEmbeddingChainRequired = errors.New("embedding chain required")

	// ErrNoChunks is returned when a document has nothing to re-embed.
	ErrNoChunks = errors.New("document has no chunks")
)

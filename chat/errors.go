package chat

import "errors"

var (
	// ErrChatRepositoryRequired is returned when a chat repository is not provided.
	ErrChatRepositoryRequired = errors.New("chat repository required")

	// ErrSearcherRequired is returned when a searcher is not provided.
	ErrSearcherRequired = errors.New("searcher required")

	// ErrCompletionChainRequired is returned when a completion chain is not provided.
	ErrCompletionChainRequired = errors.New("completion chain required")

	// ErrEmptyMessage is returned when a request carries no message text.
	ErrEmptyMessage = errors.New("message is required")

	// ErrUserRequired is returned when a request carries no user id.
	ErrUserRequired = errors.New("user id is required")
)

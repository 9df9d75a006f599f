package core

import (
	"fmt"
	"strconv"
	"strings"
)

// DocumentStatus is the observable state of a document in the processing state machine.
type DocumentStatus string

const (
	StatusQueued               DocumentStatus = "queued"
	StatusProcessing           DocumentStatus = "processing"
	StatusReady                DocumentStatus = "ready"
	StatusPartial              DocumentStatus = "partial"
	StatusIndexingPendingQuota DocumentStatus = "indexing_pending_quota"
	StatusEmbeddingFailed      DocumentStatus = "embedding_failed"
	StatusFailed               DocumentStatus = "failed"

	processingRetryPrefix = "processing_retry_"
	indexingRetryPrefix   = "indexing_pending_retry_attempt_"
)

// ProcessingRetryStatus returns the status shown while retry attempt n is running.
func ProcessingRetryStatus(n int) DocumentStatus {
	return DocumentStatus(processingRetryPrefix + strconv.Itoa(n))
}

// IndexingRetryStatus returns the status shown while waiting for retry attempt n.
func IndexingRetryStatus(n int) DocumentStatus {
	return DocumentStatus(indexingRetryPrefix + strconv.Itoa(n))
}

// ParseStatus validates s and returns it as a DocumentStatus.
func ParseStatus(s string) (DocumentStatus, error) {
	status := DocumentStatus(s)
	switch status {
	case StatusQueued, StatusProcessing, StatusReady, StatusPartial,
		StatusIndexingPendingQuota, StatusEmbeddingFailed, StatusFailed:
		return status, nil
	}
	for _, prefix := range []string{processingRetryPrefix, indexingRetryPrefix} {
		if rest, ok := strings.CutPrefix(s, prefix); ok {
			if n, err := strconv.Atoi(rest); err == nil && n > 0 {
				return status, nil
			}
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
}

// Base collapses retry-numbered variants to their family.
// processing_retry_<n> becomes processing and indexing_pending_retry_attempt_<n>
// becomes indexing_pending_retry_attempt.
func (s DocumentStatus) Base() DocumentStatus {
	str := string(s)
	if strings.HasPrefix(str, processingRetryPrefix) {
		return StatusProcessing
	}
	if strings.HasPrefix(str, indexingRetryPrefix) {
		return DocumentStatus(strings.TrimSuffix(indexingRetryPrefix, "_"))
	}
	return s
}

// RetryNumber returns n for retry-numbered statuses and 0 otherwise.
func (s DocumentStatus) RetryNumber() int {
	str := string(s)
	for _, prefix := range []string{processingRetryPrefix, indexingRetryPrefix} {
		if rest, ok := strings.CutPrefix(str, prefix); ok {
			n, _ := strconv.Atoi(rest)
			return n
		}
	}
	return 0
}

// Searchable reports whether the document's chunks may appear in search results.
// A document is searchable once its chunks have been committed.
func (s DocumentStatus) Searchable() bool {
	switch s.Base() {
	case StatusReady, StatusPartial, StatusIndexingPendingQuota, StatusEmbeddingFailed:
		return true
	}
	return strings.HasPrefix(string(s), indexingRetryPrefix)
}

// Terminal reports whether no further automatic processing will happen.
func (s DocumentStatus) Terminal() bool {
	return s == StatusReady || s == StatusFailed || s == StatusEmbeddingFailed
}

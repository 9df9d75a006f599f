package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryStatuses(t *testing.T) {
	assert.Equal(t, DocumentStatus("processing_retry_2"), ProcessingRetryStatus(2))
	assert.Equal(t, DocumentStatus("indexing_pending_retry_attempt_3"), IndexingRetryStatus(3))
}

func TestParseStatus(t *testing.T) {
	valid := []string{
		"queued", "processing", "processing_retry_1", "ready", "partial",
		"indexing_pending_quota", "indexing_pending_retry_attempt_4", "embedding_failed", "failed",
	}
	for _, s := range valid {
		t.Run(s, func(t *testing.T) {
			status, err := ParseStatus(s)
			require.NoError(t, err)
			assert.Equal(t, DocumentStatus(s), status)
		})
	}

	invalid := []string{"", "done", "processing_retry_", "processing_retry_x", "processing_retry_0"}
	for _, s := range invalid {
		t.Run("invalid "+s, func(t *testing.T) {
			_, err := ParseStatus(s)
			assert.ErrorIs(t, err, ErrInvalidStatus)
		})
	}
}

func TestStatusBaseAndRetryNumber(t *testing.T) {
	assert.Equal(t, StatusProcessing, ProcessingRetryStatus(3).Base())
	assert.Equal(t, DocumentStatus("indexing_pending_retry_attempt"), IndexingRetryStatus(1).Base())
	assert.Equal(t, StatusReady, StatusReady.Base())

	assert.Equal(t, 3, ProcessingRetryStatus(3).RetryNumber())
	assert.Equal(t, 5, IndexingRetryStatus(5).RetryNumber())
	assert.Equal(t, 0, StatusPartial.RetryNumber())
}

func TestStatusSearchable(t *testing.T) {
	assert.True(t, StatusReady.Searchable())
	assert.True(t, StatusPartial.Searchable())
	assert.True(t, StatusIndexingPendingQuota.Searchable())
	assert.True(t, StatusEmbeddingFailed.Searchable())
	assert.True(t, IndexingRetryStatus(2).Searchable())

	assert.False(t, StatusQueued.Searchable())
	assert.False(t, StatusProcessing.Searchable())
	assert.False(t, ProcessingRetryStatus(1).Searchable())
	assert.False(t, StatusFailed.Searchable())
}

func TestStatusTerminal(t *testing.T) {
	assert.True(t, StatusReady.Terminal())
	assert.True(t, StatusFailed.Terminal())
	assert.True(t, StatusEmbeddingFailed.Terminal())
	assert.False(t, StatusPartial.Terminal())
	assert.False(t, StatusIndexingPendingQuota.Terminal())
}

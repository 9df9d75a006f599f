package ai

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"quota keyword", errors.New("You exceeded your current quota"), KindQuota},
		{"rate limit", errors.New("rate_limit_exceeded"), KindQuota},
		{"http 429", errors.New("API returned unexpected status code: 429"), KindQuota},
		{"insufficient funds", errors.New("Insufficient credit balance"), KindQuota},
		{"grpc exhausted", errors.New("rpc error: code = RESOURCE_EXHAUSTED"), KindQuota},
		{"unauthorized", errors.New("status code: 401 Unauthorized"), KindPermanent},
		{"bad key", errors.New("invalid_api_key"), KindPermanent},
		{"canceled", context.Canceled, KindPermanent},
		{"wrapped canceled", fmt.Errorf("call: %w", context.Canceled), KindPermanent},
		{"not configured", ErrNotConfigured, KindPermanent},
		{"deadline", context.DeadlineExceeded, KindTransient},
		{"connection reset", errors.New("read: connection reset by peer"), KindTransient},
		{"server error", errors.New("status code: 503"), KindTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestClassify_ProviderErrorKeepsKind(t *testing.T) {
	err := &ProviderError{Provider: "openai", Kind: KindQuota, Err: errors.New("boom")}
	assert.Equal(t, KindQuota, Classify(err))
	assert.Equal(t, KindQuota, Classify(fmt.Errorf("outer: %w", err)))
}

func TestNewProviderError(t *testing.T) {
	assert.NoError(t, NewProviderError("openai", nil))

	cause := errors.New("429 Too Many Requests")
	err := NewProviderError("openai", cause)

	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "openai", pe.Provider)
	assert.Equal(t, KindQuota, pe.Kind)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "openai (quota)")

	t.Run("does not double wrap", func(t *testing.T) {
		again := NewProviderError("gemini", err)
		assert.Same(t, err, again)
	})
}

func TestIsQuotaAndRetryable(t *testing.T) {
	assert.True(t, IsQuota(errors.New("quota exceeded")))
	assert.False(t, IsQuota(nil))
	assert.True(t, IsRetryable(errors.New("timeout")))
	assert.False(t, IsRetryable(errors.New("quota exceeded")))
	assert.False(t, IsRetryable(nil))
}

func TestErrorKindString(t *testing.T) {
	assert.Equal(t, "transient", KindTransient.String())
	assert.Equal(t, "quota", KindQuota.String())
	assert.Equal(t, "permanent", KindPermanent.String())
	assert.Equal(t, "ErrorKind(9)", ErrorKind(9).String())
}

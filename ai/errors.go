package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyResponse indicates a provider answered without content.
	ErrEmptyResponse = errors.New("provider returned an empty response")

	// ErrEmptyInput indicates there was nothing to send to a provider.
	ErrEmptyInput = errors.New("input text is empty")

	// ErrNotConfigured indicates a provider is missing its credentials.
	ErrNotConfigured = errors.New("provider is not configured")
)

// ErrorKind classifies provider failures for retry decisions.
type ErrorKind int

const (
	// KindTransient failures are retried within the provider's attempt budget.
	KindTransient ErrorKind = iota
	// KindQuota failures stop the provider for this call without further retries.
	KindQuota
	// KindPermanent failures are never retried.
	KindPermanent
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindQuota:
		return "quota"
	case KindPermanent:
		return "permanent"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// ProviderError carries the provider name and failure kind of a provider call.
type ProviderError struct {
	Provider string
	Kind     ErrorKind
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s (%s): %v", e.Provider, e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError wraps err with a kind derived from Classify.
// A nil err returns nil.
func NewProviderError(provider string, err error) error {
	if err == nil {
		return nil
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return err
	}
	return &ProviderError{Provider: provider, Kind: Classify(err), Err: err}
}

var (
	quotaMarkers = []string{"quota", "rate_limit", "rate limit", "429", "insufficient", "resource_exhausted"}

	permanentMarkers = []string{"401", "403", "invalid_api_key", "unauthorized", "permission_denied", "invalid_request"}
)

// Classify returns the kind of err.
// A *ProviderError keeps its declared kind. Otherwise the error text is
// matched against known quota and authorization markers.
func Classify(err error) ErrorKind {
	if err == nil {
		return KindTransient
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrNotConfigured) || errors.Is(err, ErrEmptyInput) {
		return KindPermanent
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTransient
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range quotaMarkers {
		if strings.Contains(msg, marker) {
			return KindQuota
		}
	}
	for _, marker := range permanentMarkers {
		if strings.Contains(msg, marker) {
			return KindPermanent
		}
	}
	return KindTransient
}

// IsQuota reports whether err is a capacity failure.
func IsQuota(err error) bool {
	return err != nil && Classify(err) == KindQuota
}

// IsRetryable reports whether err may succeed if the same provider is called again.
func IsRetryable(err error) bool {
	return err != nil && Classify(err) == KindTransient
}

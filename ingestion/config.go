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


package ingestion

import (
	"time"

	"github.com/poiesic/docinx/ai/local"
	"github.com/poiesic/docinx/fallback"
)

// TaskBreakerName names the breaker that guards embedding inside document tasks.
const TaskBreakerName = "embedding-pipeline"

// Config holds the processing and retry limits.
type Config struct {
	// PartialRetryDelay is the base delay of the retry scheduled for a
	// partially embedded document. The first retry runs immediately.
	PartialRetryDelay time.Duration

	// QuotaRetryDelay is when the first retry of an unembedded document runs.
	QuotaRetryDelay time.Duration

	// MaxEmbeddingRetries is the number of times a retry pass reschedules
	// itself. A negative value disables rescheduling.
	MaxEmbeddingRetries int

	// MaxRetryDelay caps the doubling retry delay.
	MaxRetryDelay time.Duration

	// MaxPendingDuration bounds how long after upload a document may stay
	// without all embeddings before it is marked embedding_failed.
	MaxPendingDuration time.Duration

	// MaxFileSize is the upload limit in bytes.
	MaxFileSize int64

	// DegradedProviders name embedding chain stages whose vectors are not
	// stored. Their chunks stay eligible for retry.
	DegradedProviders []string
}

// DefaultConfig returns the default limits.
func DefaultConfig() Config {
	return Config{
		PartialRetryDelay:   60 * time.Second,
		QuotaRetryDelay:     300 * time.Second,
		MaxEmbeddingRetries: 3,
		MaxRetryDelay:       3600 * time.Second,
		MaxPendingDuration:  6 * time.Hour,
		MaxFileSize:         50 << 20,
		DegradedProviders:   []string{local.HashName, fallback.ErrorFallbackProvider},
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.PartialRetryDelay <= 0 {
		c.PartialRetryDelay = d.PartialRetryDelay
	}
	if c.QuotaRetryDelay <= 0 {
		c.QuotaRetryDelay = d.QuotaRetryDelay
	}
	switch {
	case c.MaxEmbeddingRetries == 0:
		c.MaxEmbeddingRetries = d.MaxEmbeddingRetries
	case c.MaxEmbeddingRetries < 0:
		c.MaxEmbeddingRetries = 0
	}
	if c.MaxRetryDelay <= 0 {
		c.MaxRetryDelay = d.MaxRetryDelay
	}
	if c.MaxPendingDuration <= 0 {
		c.MaxPendingDuration = d.MaxPendingDuration
	}
	if c.MaxFileSize <= 0 {
		c.MaxFileSize = d.MaxFileSize
	}
	if c.DegradedProviders == nil {
		c.DegradedProviders = d.DegradedProviders
	}
	return c
}

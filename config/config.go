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


// Package config loads the pipeline settings.
//
// Values are layered, later sources overriding earlier ones:
//
//  1. built-in defaults (Default)
//  2. a TOML file
//  3. a .env file, for variables not already set in the environment
//  4. DOCINX_* and provider environment variables
//  5. explicit overrides, usually command line flags (Set)
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"github.com/poiesic/docinx/ai"
	"github.com/poiesic/docinx/breaker"
	"github.com/poiesic/docinx/chunking"
	"github.com/poiesic/docinx/ingestion"
	"github.com/poiesic/docinx/queue"
)

// Config holds every tunable of the pipeline.
type Config struct {
	// DataDir holds the badger database. Default: ./data
	DataDir string `toml:"data_dir"`
	// PostgresDSN selects the Postgres store for documents, chunks and chat.
	// The task queue and breaker state stay in badger.
	PostgresDSN string `toml:"postgres_dsn"`
	HTTPAddr    string `toml:"http_addr"`
	LogLevel    string `toml:"log_level"`

	ChunkSize    int `toml:"chunk_size"`
	ChunkOverlap int `toml:"chunk_overlap"`

	SimilarityThreshold float64  `toml:"similarity_threshold"`
	SearchCacheTTL      Duration `toml:"search_cache_ttl"`
	MaxChunksContext    int      `toml:"max_chunks_context"`
	MaxContextLength    int      `toml:"max_context_length"`

	EmbeddingFailureThreshold int      `toml:"embedding_failure_threshold"`
	EmbeddingRecoveryTimeout  Duration `toml:"embedding_recovery_timeout"`
	LLMFailureThreshold       int      `toml:"llm_failure_threshold"`
	LLMRecoveryTimeout        Duration `toml:"llm_recovery_timeout"`
	EmbeddingAttempts         int      `toml:"embedding_attempts"`
	CompletionAttempts        int      `toml:"completion_attempts"`
	// ProviderRequestsPerSecond throttles each remote provider. Zero disables throttling.
	ProviderRequestsPerSecond float64 `toml:"provider_requests_per_second"`
	// LocalEmbeddings adds the local term-weight embedder after the remote
	// embedding providers. Its vectors count as real embeddings.
	LocalEmbeddings bool `toml:"local_embeddings"`

	WorkerPoolSize int      `toml:"worker_pool_size"`
	MaxRetries     int      `toml:"max_retries"`
	TaskTimeLimit  Duration `toml:"task_time_limit"`
	TaskRetryBase  Duration `toml:"task_retry_base"`
	PollInterval   Duration `toml:"poll_interval"`

	PartialRetryDelay   Duration `toml:"partial_retry_delay"`
	QuotaRetryDelay     Duration `toml:"quota_retry_delay"`
	MaxEmbeddingRetries int      `toml:"max_embedding_retries"`
	MaxRetryDelay       Duration `toml:"max_retry_delay"`
	MaxPendingDuration  Duration `toml:"max_pending_duration"`
	MaxFileSize         int64    `toml:"max_file_size"`

	AI ai.Config `toml:"ai"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		DataDir:  "data",
		HTTPAddr: ":8080",
		LogLevel: "info",

		ChunkSize:    chunking.DefaultChunkSize,
		ChunkOverlap: chunking.DefaultChunkOverlap,

		SimilarityThreshold: 0.1,
		SearchCacheTTL:      Duration(60 * time.Second),
		MaxChunksContext:    5,
		MaxContextLength:    4000,

		EmbeddingFailureThreshold: 5,
		EmbeddingRecoveryTimeout:  Duration(300 * time.Second),
		LLMFailureThreshold:       3,
		LLMRecoveryTimeout:        Duration(180 * time.Second),
		EmbeddingAttempts:         3,
		CompletionAttempts:        2,

		WorkerPoolSize: max(runtime.NumCPU()/2, 1),
		MaxRetries:     5,
		TaskTimeLimit:  Duration(300 * time.Second),
		TaskRetryBase:  Duration(60 * time.Second),
		PollInterval:   Duration(time.Second),

		PartialRetryDelay:   Duration(60 * time.Second),
		QuotaRetryDelay:     Duration(300 * time.Second),
		MaxEmbeddingRetries: 3,
		MaxRetryDelay:       Duration(3600 * time.Second),
		MaxPendingDuration:  Duration(6 * time.Hour),
		MaxFileSize:         50 << 20,

		AI: *ai.DefaultConfig(),
	}
}

// Load builds the configuration from path (optional), ./.env and the
// environment, then validates it.
func Load(path string) (*Config, error) {
	return load(path, ".env", os.LookupEnv)
}

func load(path, dotenv string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}

	env, err := readDotenv(dotenv)
	if err != nil {
		return nil, err
	}
	if err := cfg.applyEnv(func(key string) (string, bool) {
		if v, ok := lookup(key); ok {
			return v, true
		}
		v, ok := env[key]
		return v, ok
	}); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile merges the TOML file at path into c. Keys absent from the file
// keep their current values.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := toml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: parse %s: %w", filepath.Base(path), err)
	}
	return nil
}

// readDotenv returns the variables of a .env file. A missing file is empty.
func readDotenv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	env, err := godotenv.Read(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return env, nil
}

// Validate checks ranges and relationships between settings.
func (c *Config) Validate() error {
	switch {
	case c.DataDir == "":
		return errors.New("config: data_dir must be set")
	case c.ChunkSize < 1:
		return errors.New("config: chunk_size must be positive")
	case c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize:
		return errors.New("config: chunk_overlap must be between 0 and chunk_size")
	case c.SimilarityThreshold < 0 || c.SimilarityThreshold > 1:
		return errors.New("config: similarity_threshold must be between 0 and 1")
	case c.MaxChunksContext < 1:
		return errors.New("config: max_chunks_context must be positive")
	case c.MaxContextLength < 1:
		return errors.New("config: max_context_length must be positive")
	case c.EmbeddingFailureThreshold < 1 || c.LLMFailureThreshold < 1:
		return errors.New("config: failure thresholds must be positive")
	case c.EmbeddingRecoveryTimeout <= 0 || c.LLMRecoveryTimeout <= 0:
		return errors.New("config: recovery timeouts must be positive")
	case c.EmbeddingAttempts < 1 || c.CompletionAttempts < 1:
		return errors.New("config: provider attempts must be positive")
	case c.ProviderRequestsPerSecond < 0:
		return errors.New("config: provider_requests_per_second must not be negative")
	case c.WorkerPoolSize < 1:
		return errors.New("config: worker_pool_size must be positive")
	case c.MaxRetries < 0 || c.MaxEmbeddingRetries < 0:
		return errors.New("config: retry limits must not be negative")
	case c.TaskTimeLimit <= 0:
		return errors.New("config: task_time_limit must be positive")
	case c.TaskRetryBase <= 0 || c.PartialRetryDelay <= 0 || c.QuotaRetryDelay <= 0:
		return errors.New("config: retry delays must be positive")
	case c.MaxRetryDelay < c.PartialRetryDelay:
		return errors.New("config: max_retry_delay must be at least partial_retry_delay")
	case c.MaxPendingDuration <= 0:
		return errors.New("config: max_pending_duration must be positive")
	case c.PollInterval <= 0:
		return errors.New("config: poll_interval must be positive")
	case c.MaxFileSize < 1:
		return errors.New("config: max_file_size must be positive")
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	return c.AI.Validate()
}

// EmbeddingBreaker returns the breaker settings of embedding providers.
func (c *Config) EmbeddingBreaker() breaker.Config {
	cfg := breaker.DefaultConfig()
	cfg.FailureThreshold = c.EmbeddingFailureThreshold
	cfg.RecoveryTimeout = c.EmbeddingRecoveryTimeout.Std()
	return cfg
}

// LLMBreaker returns the breaker settings of completion providers.
func (c *Config) LLMBreaker() breaker.Config {
	cfg := breaker.LLMConfig()
	cfg.FailureThreshold = c.LLMFailureThreshold
	cfg.RecoveryTimeout = c.LLMRecoveryTimeout.Std()
	return cfg
}

// Queue returns the worker settings.
func (c *Config) Queue() queue.Config {
	cfg := queue.Config{
		PoolSize:      c.WorkerPoolSize,
		TaskTimeLimit: c.TaskTimeLimit.Std(),
		RetryBase:     c.TaskRetryBase.Std(),
		MaxRetries:    c.MaxRetries,
		PollInterval:  c.PollInterval.Std(),
	}
	// queue.Config treats zero as "use the default".
	if c.MaxRetries == 0 {
		cfg.MaxRetries = -1
	}
	return cfg
}

// Ingestion returns the processing and retry scheduler settings.
func (c *Config) Ingestion() ingestion.Config {
	cfg := ingestion.DefaultConfig()
	cfg.PartialRetryDelay = c.PartialRetryDelay.Std()
	cfg.QuotaRetryDelay = c.QuotaRetryDelay.Std()
	cfg.MaxEmbeddingRetries = c.MaxEmbeddingRetries
	if c.MaxEmbeddingRetries == 0 {
		cfg.MaxEmbeddingRetries = -1
	}
	cfg.MaxRetryDelay = c.MaxRetryDelay.Std()
	cfg.MaxPendingDuration = c.MaxPendingDuration.Std()
	cfg.MaxFileSize = c.MaxFileSize
	return cfg
}

// Chunker returns a chunker with the configured size and overlap.
func (c *Config) Chunker() *chunking.Chunker {
	return chunking.New(chunking.WithChunkSize(c.ChunkSize), chunking.WithOverlap(c.ChunkOverlap))
}

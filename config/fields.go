package config

import (
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
)

// EnvPrefix prefixes the environment variable of every setting,
// e.g. DOCINX_CHUNK_SIZE for chunk_size.
const EnvPrefix = "DOCINX_"

// field parses one setting from text.
type field func(c *Config, value string) error

func stringField(get func(*Config) *string) field {
	return func(c *Config, v string) error {
		*get(c) = v
		return nil
	}
}

func intField(get func(*Config) *int) field {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return err
		}
		*get(c) = n
		return nil
	}
}

func int64Field(get func(*Config) *int64) field {
	return func(c *Config, v string) error {
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return err
		}
		*get(c) = n
		return nil
	}
}

func floatField(get func(*Config) *float64) field {
	return func(c *Config, v string) error {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return err
		}
		*get(c) = f
		return nil
	}
}

func boolField(get func(*Config) *bool) field {
	return func(c *Config, v string) error {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return err
		}
		*get(c) = b
		return nil
	}
}

func durationField(get func(*Config) *Duration) field {
	return func(c *Config, v string) error {
		return get(c).UnmarshalText([]byte(v))
	}
}

var fields = map[string]field{
	"data_dir":     stringField(func(c *Config) *string { return &c.DataDir }),
	"postgres_dsn": stringField(func(c *Config) *string { return &c.PostgresDSN }),
	"http_addr":    stringField(func(c *Config) *string { return &c.HTTPAddr }),
	"log_level":    stringField(func(c *Config) *string { return &c.LogLevel }),

	"chunk_size":    intField(func(c *Config) *int { return &c.ChunkSize }),
	"chunk_overlap": intField(func(c *Config) *int { return &c.ChunkOverlap }),

	"similarity_threshold": floatField(func(c *Config) *float64 { return &c.SimilarityThreshold }),
	"search_cache_ttl":     durationField(func(c *Config) *Duration { return &c.SearchCacheTTL }),
	"max_chunks_context":   intField(func(c *Config) *int { return &c.MaxChunksContext }),
	"max_context_length":   intField(func(c *Config) *int { return &c.MaxContextLength }),

	"embedding_failure_threshold":  intField(func(c *Config) *int { return &c.EmbeddingFailureThreshold }),
	"embedding_recovery_timeout":   durationField(func(c *Config) *Duration { return &c.EmbeddingRecoveryTimeout }),
	"llm_failure_threshold":        intField(func(c *Config) *int { return &c.LLMFailureThreshold }),
	"llm_recovery_timeout":         durationField(func(c *Config) *Duration { return &c.LLMRecoveryTimeout }),
	"embedding_attempts":           intField(func(c *Config) *int { return &c.EmbeddingAttempts }),
	"completion_attempts":          intField(func(c *Config) *int { return &c.CompletionAttempts }),
	"provider_requests_per_second": floatField(func(c *Config) *float64 { return &c.ProviderRequestsPerSecond }),
	"local_embeddings":             boolField(func(c *Config) *bool { return &c.LocalEmbeddings }),

	"worker_pool_size": intField(func(c *Config) *int { return &c.WorkerPoolSize }),
	"max_retries":      intField(func(c *Config) *int { return &c.MaxRetries }),
	"task_time_limit":  durationField(func(c *Config) *Duration { return &c.TaskTimeLimit }),
	"task_retry_base":  durationField(func(c *Config) *Duration { return &c.TaskRetryBase }),
	"poll_interval":    durationField(func(c *Config) *Duration { return &c.PollInterval }),

	"partial_retry_delay":   durationField(func(c *Config) *Duration { return &c.PartialRetryDelay }),
	"quota_retry_delay":     durationField(func(c *Config) *Duration { return &c.QuotaRetryDelay }),
	"max_embedding_retries": intField(func(c *Config) *int { return &c.MaxEmbeddingRetries }),
	"max_retry_delay":       durationField(func(c *Config) *Duration { return &c.MaxRetryDelay }),
	"max_pending_duration":  durationField(func(c *Config) *Duration { return &c.MaxPendingDuration }),
	"max_file_size":         int64Field(func(c *Config) *int64 { return &c.MaxFileSize }),

	"openai_host":             stringField(func(c *Config) *string { return &c.AI.OpenAIHost }),
	"openai_key":              stringField(func(c *Config) *string { return &c.AI.OpenAIKey }),
	"embedding_model":         stringField(func(c *Config) *string { return &c.AI.EmbeddingModel }),
	"completion_model":        stringField(func(c *Config) *string { return &c.AI.CompletionModel }),
	"anthropic_key":           stringField(func(c *Config) *string { return &c.AI.AnthropicKey }),
	"anthropic_model":         stringField(func(c *Config) *string { return &c.AI.AnthropicModel }),
	"gemini_key":              stringField(func(c *Config) *string { return &c.AI.GeminiKey }),
	"gemini_embedding_model":  stringField(func(c *Config) *string { return &c.AI.GeminiEmbeddingModel }),
	"gemini_completion_model": stringField(func(c *Config) *string { return &c.AI.GeminiCompletionModel }),
	"embedding_dimensions":    intField(func(c *Config) *int { return &c.AI.EmbeddingDimensions }),
}

// providerEnv maps the vendors' conventional variables onto settings.
// DOCINX_* variables win over them.
var providerEnv = []struct{ env, key string }{
	{"OPENAI_API_KEY", "openai_key"},
	{"OPENAI_BASE_URL", "openai_host"},
	{"ANTHROPIC_API_KEY", "anthropic_key"},
	{"GEMINI_API_KEY", "gemini_key"},
}

// Keys returns the names of every setting, sorted.
func Keys() []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Set assigns one setting by name.
func (c *Config) Set(key, value string) error {
	f, ok := fields[strings.ToLower(strings.TrimSpace(key))]
	if !ok {
		return fmt.Errorf("config: unknown setting %q", key)
	}
	if err := f(c, value); err != nil {
		return fmt.Errorf("config: %s: %w", key, err)
	}
	return nil
}

// SetPair assigns a "key=value" override.
func (c *Config) SetPair(pair string) error {
	key, value, ok := strings.Cut(pair, "=")
	if !ok {
		return fmt.Errorf("config: override %q must be key=value", pair)
	}
	return c.Set(key, value)
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	for _, p := range providerEnv {
		if v, ok := lookup(p.env); ok && v != "" {
			if err := c.Set(p.key, v); err != nil {
				return err
			}
		}
	}
	for _, key := range Keys() {
		if v, ok := lookup(EnvPrefix + strings.ToUpper(key)); ok {
			if err := c.Set(key, v); err != nil {
				return err
			}
		}
	}
	return nil
}

// ParseLogLevel maps debug, info, warn and error onto slog levels.
func ParseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("config: log_level must be debug, info, warn or error, got %q", s)
	}
	return level, nil
}

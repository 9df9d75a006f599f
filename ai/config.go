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


package ai

import (
	"errors"
	"strings"
)

// Config holds configuration for AI service providers.
// A provider whose key is empty is left unconfigured and skipped by the fallback chains.
type Config struct {
	// OpenAIHost is the base URL for the OpenAI-compatible API.
	// Example: "https://api.openai.com/v1", "http://localhost:11434/v1"
	OpenAIHost string `toml:"openai_host"`

	// OpenAIKey authenticates against OpenAIHost.
	OpenAIKey string `toml:"openai_key"`

	// EmbeddingModel is the OpenAI model identifier to use for text embeddings.
	// Example: "text-embedding-3-small"
	EmbeddingModel string `toml:"embedding_model"`

	// CompletionModel is the OpenAI model identifier to use for chat completions.
	// Example: "gpt-4", "gpt-4o-mini"
	CompletionModel string `toml:"completion_model"`

	// AnthropicKey authenticates against the Anthropic messages API.
	AnthropicKey string `toml:"anthropic_key"`

	// AnthropicModel is the Claude model identifier.
	AnthropicModel string `toml:"anthropic_model"`

	// GeminiKey authenticates against the Google Generative Language API.
	GeminiKey string `toml:"gemini_key"`

	// GeminiEmbeddingModel is the Gemini embedding model identifier.
	GeminiEmbeddingModel string `toml:"gemini_embedding_model"`

	// GeminiCompletionModel is the Gemini generative model identifier.
	GeminiCompletionModel string `toml:"gemini_completion_model"`

	// EmbeddingDimensions is the length of every vector the pipeline stores.
	// Provider outputs are conformed to it.
	// Default: 1536
	EmbeddingDimensions int `toml:"embedding_dimensions"`
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithOpenAIHost sets the OpenAI-compatible host URL.
func WithOpenAIHost(host string) ConfigOption {
	return func(c *Config) {
		c.OpenAIHost = host
	}
}

// WithOpenAIKey sets the OpenAI API key.
func WithOpenAIKey(key string) ConfigOption {
	return func(c *Config) {
		c.OpenAIKey = key
	}
}

// WithEmbeddingModel sets the OpenAI embedding model identifier.
func WithEmbeddingModel(model string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingModel = model
	}
}

// WithCompletionModel sets the OpenAI completion model identifier.
func WithCompletionModel(model string) ConfigOption {
	return func(c *Config) {
		c.CompletionModel = model
	}
}

// WithAnthropic sets the Anthropic key and, when non-empty, the model.
func WithAnthropic(key, model string) ConfigOption {
	return func(c *Config) {
		c.AnthropicKey = key
		if model != "" {
			c.AnthropicModel = model
		}
	}
}

// WithGeminiKey sets the Gemini API key.
func WithGeminiKey(key string) ConfigOption {
	return func(c *Config) {
		c.GeminiKey = key
	}
}

// WithEmbeddingDimensions sets the stored vector length.
func WithEmbeddingDimensions(dims int) ConfigOption {
	return func(c *Config) {
		c.EmbeddingDimensions = dims
	}
}

// DefaultConfig returns a Config with the public OpenAI endpoint and no credentials.
func DefaultConfig() *Config {
	return &Config{
		OpenAIHost:            "https://api.openai.com/v1",
		EmbeddingModel:        "text-embedding-3-small",
		CompletionModel:       "gpt-4",
		AnthropicModel:        "claude-3-sonnet-20240229",
		GeminiEmbeddingModel:  "text-embedding-004",
		GeminiCompletionModel: "gemini-1.5-flash",
		EmbeddingDimensions:   1536,
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
//
// Example:
//
//	cfg := NewConfig(
//	    WithOpenAIKey(os.Getenv("OPENAI_API_KEY")),
//	    WithAnthropic(os.Getenv("ANTHROPIC_API_KEY"), ""),
//	)
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// OpenAIConfigured reports whether the OpenAI provider can be used.
func (c *Config) OpenAIConfigured() bool {
	return c.OpenAIKey != "" && c.OpenAIHost != ""
}

// AnthropicConfigured reports whether the Anthropic provider can be used.
func (c *Config) AnthropicConfigured() bool {
	return c.AnthropicKey != ""
}

// GeminiConfigured reports whether the Gemini provider can be used.
func (c *Config) GeminiConfigured() bool {
	return c.GeminiKey != ""
}

// Normalize ensures the configuration is in a canonical form.
// It adds the /v1 suffix to the OpenAI host if missing, which is required
// by most OpenAI-compatible APIs (Ollama, LocalAI, vLLM, etc).
func (c *Config) Normalize() {
	c.OpenAIHost = strings.TrimSpace(c.OpenAIHost)
	if c.OpenAIHost != "" && !strings.HasSuffix(c.OpenAIHost, "/v1") {
		c.OpenAIHost = strings.TrimSuffix(c.OpenAIHost, "/") + "/v1"
	}
	c.OpenAIKey = strings.TrimSpace(c.OpenAIKey)
	c.AnthropicKey = strings.TrimSpace(c.AnthropicKey)
	c.GeminiKey = strings.TrimSpace(c.GeminiKey)
}

// Validate checks that the configuration is valid and complete.
// It normalizes the configuration before validation.
func (c *Config) Validate() error {
	c.Normalize()

	if c.EmbeddingModel == "" {
		return errors.New("ai config: EmbeddingModel is required")
	}
	if c.CompletionModel == "" {
		return errors.New("ai config: CompletionModel is required")
	}
	if c.AnthropicKey != "" && c.AnthropicModel == "" {
		return errors.New("ai config: AnthropicModel is required when AnthropicKey is set")
	}
	if c.GeminiKey != "" && (c.GeminiEmbeddingModel == "" || c.GeminiCompletionModel == "") {
		return errors.New("ai config: Gemini models are required when GeminiKey is set")
	}
	if c.EmbeddingDimensions < 1 || c.EmbeddingDimensions > 8192 {
		return errors.New("ai config: EmbeddingDimensions must be between 1 and 8192")
	}
	return nil
}

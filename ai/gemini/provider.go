// Package gemini provides embedding and completion providers backed by the
// Google Generative Language API.
package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/poiesic/docinx/ai"
	"github.com/poiesic/docinx/core"
	"google.golang.org/api/option"
)

// ProviderName identifies this provider in breakers, caches and responses.
const ProviderName = "gemini"

// Provider implements ai.AIProvider on one shared genai client.
type Provider struct {
	client    *genai.Client
	embedder  *Embedder
	completer *Completer
	logger    *slog.Logger
}

// NewProvider creates a Gemini provider.
// It returns ai.ErrNotConfigured when no API key is set.
func NewProvider(ctx context.Context, config *ai.Config, opts ...option.ClientOption) (ai.AIProvider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if !config.GeminiConfigured() {
		return nil, fmt.Errorf("%s: %w", ProviderName, ai.ErrNotConfigured)
	}

	opts = append([]option.ClientOption{option.WithAPIKey(config.GeminiKey)}, opts...)
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}

	logger := slog.Default().With("component", "gemini-provider")
	return &Provider{
		client: client,
		embedder: &Embedder{
			model:  client.EmbeddingModel(config.GeminiEmbeddingModel),
			logger: logger,
		},
		completer: &Completer{
			client: client,
			model:  config.GeminiCompletionModel,
			logger: logger,
		},
		logger: logger,
	}, nil
}

// Name returns "gemini".
func (p *Provider) Name() string { return ProviderName }

// Embedder returns the embedding service.
func (p *Provider) Embedder() ai.Embedder { return p.embedder }

// Completer returns the completion service.
func (p *Provider) Completer() ai.Completer { return p.completer }

// Close releases the underlying client.
func (p *Provider) Close() error {
	p.logger.Debug("closing Gemini provider")
	return p.client.Close()
}

// Embedder implements ai.Embedder.
type Embedder struct {
	model  *genai.EmbeddingModel
	logger *slog.Logger
}

// EmbedText generates a vector embedding for a single text string.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ai.NewProviderError(ProviderName, ai.ErrEmptyInput)
	}
	res, err := e.model.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		e.logger.Warn("embedding request failed", "err", err)
		return nil, ai.NewProviderError(ProviderName, err)
	}
	if res == nil || res.Embedding == nil || len(res.Embedding.Values) == 0 {
		return nil, &ai.ProviderError{Provider: ProviderName, Kind: ai.KindTransient, Err: ai.ErrEmptyResponse}
	}
	return res.Embedding.Values, nil
}

// Completer implements ai.Completer using a chat session per request.
type Completer struct {
	client *genai.Client
	model  string
	logger *slog.Logger
}

// Complete sends the prompt as a chat: the system message becomes the
// system instruction, earlier turns become history and the last user turn is sent.
func (c *Completer) Complete(ctx context.Context, req ai.CompletionRequest) (string, error) {
	system, history, last, err := splitConversation(req.Messages)
	if err != nil {
		return "", ai.NewProviderError(ProviderName, err)
	}

	model := c.client.GenerativeModel(c.model)
	if system != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}
	temp := float32(req.Temperature)
	model.GenerationConfig.Temperature = &temp
	if req.MaxTokens > 0 {
		maxTokens := int32(req.MaxTokens)
		model.GenerationConfig.MaxOutputTokens = &maxTokens
	}

	session := model.StartChat()
	session.History = history

	resp, err := session.SendMessage(ctx, genai.Text(last))
	if err != nil {
		c.logger.Warn("chat request failed", "err", err)
		return "", ai.NewProviderError(ProviderName, err)
	}

	reply := responseText(resp)
	if strings.TrimSpace(reply) == "" {
		return "", &ai.ProviderError{Provider: ProviderName, Kind: ai.KindTransient, Err: ai.ErrEmptyResponse}
	}
	return reply, nil
}

// splitConversation maps messages onto Gemini's chat shape.
// The final message must come from the user.
func splitConversation(msgs []ai.Message) (system string, history []*genai.Content, last string, err error) {
	var turns []ai.Message
	for _, m := range msgs {
		if m.Role == core.RoleSystem {
			if system == "" {
				system = m.Content
			}
			continue
		}
		turns = append(turns, m)
	}
	if len(turns) == 0 || turns[len(turns)-1].Role != core.RoleUser {
		return "", nil, "", fmt.Errorf("%w: last message must be from the user", ai.ErrEmptyInput)
	}

	for _, m := range turns[:len(turns)-1] {
		role := "user"
		if m.Role == core.RoleAssistant {
			role = "model"
		}
		history = append(history, &genai.Content{Role: role, Parts: []genai.Part{genai.Text(m.Content)}})
	}
	return system, history, turns[len(turns)-1].Content, nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var out strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			out.WriteString(string(txt))
		}
	}
	return out.String()
}

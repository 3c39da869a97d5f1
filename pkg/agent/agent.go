// Package agent provides the text-generation and embedding client used by the
// verification, escalation, and learning systems. It wraps an OpenAI-compatible
// API; the engine treats it as possibly unconfigured and degrades accordingly.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// Generator produces free-text or JSON-shaped completions from a
// system/user prompt pair.
type Generator interface {
	// Configured reports whether the generation service is available.
	Configured() bool
	// Generate returns the raw completion text for the prompt pair.
	// Returns ErrNotConfigured when no credentials are present.
	Generate(ctx context.Context, system, user string) (string, error)
}

// Embedder converts text into a vector for similarity search.
type Embedder interface {
	// Configured reports whether the embedding service is available.
	Configured() bool
	// Embed returns the embedding vector for text.
	// Returns ErrNotConfigured when no credentials are present.
	Embed(ctx context.Context, text string) ([]float32, error)
}

// System combines generation and embedding behind a single client.
type System interface {
	Generator
	Embedder
}

type client struct {
	api    *openai.Client
	cfg    Config
	logger *slog.Logger
}

// New creates an agent system from the given configuration. An unconfigured
// agent is valid: Generate and Embed return ErrNotConfigured and callers
// follow their degrade paths.
func New(cfg *Config, logger *slog.Logger) System {
	c := &client{
		cfg:    *cfg,
		logger: logger.With("system", "agent"),
	}

	if !cfg.Configured() {
		return c
	}

	apiCfg := openai.DefaultConfig(cfg.Token)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = cfg.BaseURL
	}
	c.api = openai.NewClientWithConfig(apiCfg)

	return c
}

func (c *client) Configured() bool {
	return c.api != nil
}

func (c *client) Generate(ctx context.Context, system, user string) (string, error) {
	if c.api == nil {
		return "", ErrNotConfigured
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeoutDuration())
	defer cancel()

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if system != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: user,
	})

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		Messages:    messages,
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: float32(c.cfg.Temperature),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices returned", ErrEmptyCompletion)
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (c *client) Embed(ctx context.Context, text string) ([]float32, error) {
	if c.api == nil {
		return nil, ErrNotConfigured
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeoutDuration())
	defer cancel()

	resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(c.cfg.EmbeddingModel),
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding: %w", err)
	}

	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("%w: no embedding returned", ErrEmptyCompletion)
	}

	return resp.Data[0].Embedding, nil
}

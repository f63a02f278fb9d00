package openai

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/poiesic/knowbot/ai"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// Completer implements ai.Completer using an OpenAI-compatible chat API.
type Completer struct {
	client  *openai.LLM
	timeout time.Duration
	logger  *slog.Logger
}

var _ ai.Completer = (*Completer)(nil)

// newCompleter is an internal constructor that returns the concrete type.
func newCompleter(config *ai.Config) (*Completer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := openai.New(
		openai.WithBaseURL(config.ChatHost),
		openai.WithToken(config.Token()),
		openai.WithModel(config.ChatModel),
	)
	if err != nil {
		return nil, err
	}

	return &Completer{
		client:  client,
		timeout: config.RequestTimeout,
		logger:  slog.Default().With("component", "openai-completer"),
	}, nil
}

// NewCompleter creates a new completer using the provided configuration.
//
// Returns ai.Completer interface to enforce abstraction.
func NewCompleter(config *ai.Config) (ai.Completer, error) {
	return newCompleter(config)
}

// Complete runs one bounded completion.
func (c *Completer) Complete(ctx context.Context, req ai.CompletionRequest) (string, error) {
	return c.generate(ctx, req, nil)
}

// CompleteStream runs a completion and forwards text to onChunk as it arrives.
func (c *Completer) CompleteStream(ctx context.Context, req ai.CompletionRequest, onChunk func(chunk string) error) (string, error) {
	return c.generate(ctx, req, onChunk)
}

func (c *Completer) generate(ctx context.Context, req ai.CompletionRequest, onChunk func(string) error) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	opts := []llms.CallOption{
		llms.WithTemperature(req.Temperature),
	}
	if req.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(req.MaxTokens))
	}
	if onChunk != nil {
		opts = append(opts, llms.WithStreamingFunc(func(_ context.Context, chunk []byte) error {
			return onChunk(string(chunk))
		}))
	}

	c.logger.Debug("generating completion",
		"messages", len(req.Messages),
		"max_tokens", req.MaxTokens,
		"stream", onChunk != nil)

	response, err := c.client.GenerateContent(ctx, toMessageContent(req), opts...)
	if err != nil {
		c.logger.Error("failed to generate completion", "err", err)
		return "", err
	}

	if len(response.Choices) < 1 {
		c.logger.Debug("no choices returned from model")
		return "", nil
	}
	return strings.TrimSpace(response.Choices[0].Content), nil
}

func toMessageContent(req ai.CompletionRequest) []llms.MessageContent {
	content := make([]llms.MessageContent, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		content = append(content, llms.TextParts(llms.ChatMessageTypeSystem, req.SystemPrompt))
	}
	for _, msg := range req.Messages {
		role := llms.ChatMessageTypeHuman
		if msg.Role == ai.RoleAssistant {
			role = llms.ChatMessageTypeAI
		}
		content = append(content, llms.TextParts(role, msg.Content))
	}
	return content
}

package llm

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"

	"github.com/Jumawebhub/qlex/internal/config"
	"github.com/Jumawebhub/qlex/internal/models"
)

// Client generates grounded answers through a chat completions API.
type Client struct {
	client openai.Client
	cfg    *config.LLMConfig
	logger *zap.Logger
}

// NewClient creates a chat client from config. BaseURL may point at any
// OpenAI-compatible provider.
func NewClient(cfg *config.LLMConfig, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("LLM API key is required: %w", models.ErrValidation)
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.APIBase != "" {
		opts = append(opts, option.WithBaseURL(cfg.APIBase))
	}
	return &Client{
		client: openai.NewClient(opts...),
		cfg:    cfg,
		logger: logger,
	}, nil
}

func (c *Client) params(query, context, customInstructions string, history []Message) openai.ChatCompletionNewParams {
	messages := BuildMessages(query, context, customInstructions, history, c.cfg.HistoryLimit)
	union := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			union = append(union, openai.SystemMessage(m.Content))
		case RoleAssistant:
			union = append(union, openai.AssistantMessage(m.Content))
		default:
			union = append(union, openai.UserMessage(m.Content))
		}
	}
	return openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.cfg.Model),
		Messages:    union,
		Temperature: openai.Float(c.cfg.Temperature),
	}
}

// GenerateWithRAG returns the complete answer for query grounded in context.
func (c *Client) GenerateWithRAG(ctx context.Context, query, context_, customInstructions string, history []Message) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, c.params(query, context_, customInstructions, history))
	if err != nil {
		c.logger.Error("chat completion failed", zap.Error(err))
		return "", fmt.Errorf("chat completion failed: %w", models.ErrBackendUnavailable)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices: %w", models.ErrBackendUnavailable)
	}
	return resp.Choices[0].Message.Content, nil
}

// StreamWithRAG streams answer fragments to emit as they arrive. A nil
// return means the stream completed; emit is never called again after
// StreamWithRAG returns, so the caller owns the end-of-stream signal.
func (c *Client) StreamWithRAG(ctx context.Context, query, context_, customInstructions string, history []Message, emit func(fragment string) error) error {
	stream := c.client.Chat.Completions.NewStreaming(ctx, c.params(query, context_, customInstructions, history))
	defer stream.Close()

	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		fragment := chunk.Choices[0].Delta.Content
		if fragment == "" {
			continue
		}
		if err := emit(fragment); err != nil {
			return err
		}
	}
	if err := stream.Err(); err != nil {
		c.logger.Error("chat stream failed", zap.Error(err))
		return fmt.Errorf("chat stream failed: %w", models.ErrBackendUnavailable)
	}
	return nil
}

// Close is a no-op; the underlying HTTP client needs no teardown.
func (c *Client) Close() error { return nil }

package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/autolumiku/dealership-ai-platform/internal/conversation"
	"github.com/autolumiku/dealership-ai-platform/pkg/logging"
)

const defaultMaxTokens = 512

// Config for the completion delegate. BaseURL may point at any
// OpenAI-compatible endpoint.
type Config struct {
	BaseURL   string
	APIKey    string
	Model     string
	MaxTokens int
}

type chatClient interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Client adapts an OpenAI-compatible chat endpoint to the engine's
// completion boundary.
type Client struct {
	chat      chatClient
	model     string
	maxTokens int
	logger    *logging.Logger
	tracer    trace.Tracer
}

var _ conversation.CompletionClient = (*Client)(nil)

func NewClient(cfg Config, logger *logging.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("ai: API key is required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, errors.New("ai: model id is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if strings.TrimSpace(cfg.BaseURL) != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	return &Client{
		chat:      openai.NewClientWithConfig(clientCfg),
		model:     cfg.Model,
		maxTokens: maxTokens,
		logger:    logger,
		tracer:    otel.Tracer("autolumiku/ai"),
	}, nil
}

// Complete sends the chat exchange to the delegate and returns the first
// choice.
func (c *Client) Complete(ctx context.Context, req conversation.CompletionRequest) (string, error) {
	ctx, span := c.tracer.Start(ctx, "ai.complete")
	defer span.End()

	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role: openai.ChatMessageRoleSystem, Content: req.System,
		})
	}
	for _, m := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}

	resp, err := c.chat.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     c.model,
		Messages:  messages,
		MaxTokens: maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("ai: completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("ai: completion returned no choices")
	}

	span.SetAttributes(
		attribute.Int("ai.prompt_tokens", resp.Usage.PromptTokens),
		attribute.Int("ai.completion_tokens", resp.Usage.CompletionTokens),
	)
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

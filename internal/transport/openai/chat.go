package openai

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/shopsearch/internal/domain"
	"github.com/kailas-cloud/shopsearch/internal/metrics"
)

// ChatOptions tune a chat completion client for one purpose (answer, classify, rewrite).
type ChatOptions struct {
	Purpose     string
	Temperature float32
	MaxTokens   int
}

// Chat generates text with the OpenAI-compatible chat completions API.
type Chat struct {
	client   *openai.Client
	model    string
	user     string
	provider string
	opts     ChatOptions
	logger   *zap.Logger
}

// NewChat creates a chat completion client.
func NewChat(cfg *Config, opts ChatOptions) *Chat {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Purpose == "" {
		opts.Purpose = "answer"
	}
	return &Chat{
		client:   newClient(cfg),
		model:    cfg.Model,
		user:     cfg.User,
		provider: cfg.Provider,
		opts:     opts,
		logger:   logger,
	}
}

// Complete sends a system and a user message and returns the trimmed first choice.
// Errors and empty completions wrap domain.ErrAnswerGenerationFailed.
func (c *Chat) Complete(ctx context.Context, system, user string) (string, error) {
	msgs := make([]openai.ChatCompletionMessage, 0, 2)
	if system != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: user})

	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    msgs,
		Temperature: c.opts.Temperature,
		User:        c.user,
	}
	if c.opts.MaxTokens > 0 {
		req.MaxTokens = c.opts.MaxTokens
	}

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, req)
	metrics.LLMRequestDuration.WithLabelValues(c.opts.Purpose, c.model).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.LLMRequestsTotal.WithLabelValues(c.opts.Purpose, c.model, "error").Inc()
		return "", parseAPIError("chat", err, domain.ErrAnswerGenerationFailed)
	}

	if len(resp.Choices) == 0 {
		metrics.LLMRequestsTotal.WithLabelValues(c.opts.Purpose, c.model, "empty").Inc()
		return "", fmt.Errorf("chat completion has no choices: %w", domain.ErrAnswerGenerationFailed)
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		metrics.LLMRequestsTotal.WithLabelValues(c.opts.Purpose, c.model, "empty").Inc()
		return "", fmt.Errorf("chat completion is empty: %w", domain.ErrAnswerGenerationFailed)
	}

	metrics.LLMRequestsTotal.WithLabelValues(c.opts.Purpose, c.model, "success").Inc()
	c.logger.Debug("Chat completion finished",
		zap.String("provider", c.provider),
		zap.String("purpose", c.opts.Purpose),
		zap.String("model", c.model),
		zap.String("finish_reason", string(resp.Choices[0].FinishReason)),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
	)
	return text, nil
}

// HealthCheck verifies API availability via ListModels.
func (c *Chat) HealthCheck(ctx context.Context) error {
	if _, err := c.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

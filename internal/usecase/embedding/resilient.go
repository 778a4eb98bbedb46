package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/shopsearch/internal/domain"
	"github.com/kailas-cloud/shopsearch/internal/metrics"
	"github.com/kailas-cloud/shopsearch/internal/retry"
)

// ResilientEmbedder wraps an Embedder with per-attempt timeouts, retries and logging.
// Transport metrics (requests, duration, tokens) are recorded in transport/openai.
// This layer owns retry accounting only.
type ResilientEmbedder struct {
	inner    domain.Embedder
	provider string
	model    string
	policy   retry.Policy
	logger   *zap.Logger
}

// NewResilientEmbedder wraps an embedder with the given retry policy.
func NewResilientEmbedder(
	inner domain.Embedder, provider, model string,
	policy retry.Policy, logger *zap.Logger,
) *ResilientEmbedder {
	return &ResilientEmbedder{
		inner:    inner,
		provider: provider,
		model:    model,
		policy:   policy,
		logger:   logger,
	}
}

// Embed delegates to the inner embedder, retrying transient failures.
// Any terminal failure is reported as domain.ErrEmbeddingUnavailable.
func (p *ResilientEmbedder) Embed(
	ctx context.Context, text string,
) (domain.EmbeddingResult, error) {
	start := time.Now()

	var result domain.EmbeddingResult
	err := retry.Do(ctx, p.policy, func(attemptCtx context.Context) error {
		res, err := p.inner.Embed(attemptCtx, text)
		if err != nil {
			return err
		}
		if len(res.Embedding) == 0 {
			return errors.New("empty embedding vector")
		}
		result = res
		return nil
	}, p.onRetry)

	duration := time.Since(start)

	if err != nil {
		p.logger.Error("Embedding request failed",
			zap.String("provider", p.provider),
			zap.String("model", p.model),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		if errors.Is(err, domain.ErrEmbeddingUnavailable) {
			return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
		}
		return domain.EmbeddingResult{}, fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err)
	}

	p.logger.Debug("Embedding request completed",
		zap.String("provider", p.provider),
		zap.String("model", p.model),
		zap.Duration("duration", duration),
		zap.Int("dimensions", len(result.Embedding)),
		zap.Int("prompt_tokens", result.PromptTokens),
		zap.Int("total_tokens", result.TotalTokens),
	)

	return result, nil
}

// HealthCheck delegates to the inner embedder when supported.
func (p *ResilientEmbedder) HealthCheck(ctx context.Context) error {
	if hc, ok := p.inner.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx) //nolint:wrapcheck // transparent decorator
	}
	return nil
}

func (p *ResilientEmbedder) onRetry(attempt int, err error) {
	metrics.EmbeddingRetriesTotal.WithLabelValues(p.provider).Inc()
	p.logger.Warn("Retrying embedding request",
		zap.String("provider", p.provider),
		zap.Int("attempt", attempt),
		zap.Error(err),
	)
}

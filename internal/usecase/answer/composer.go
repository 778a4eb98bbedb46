package answer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/shopsearch/internal/domain"
)

// Generator produces a completion for a system and user prompt.
type Generator interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Options bound prompt size and generation time.
type Options struct {
	SnippetChars   int
	MaxEvidence    int
	HistoryTurns   int
	MaxPromptChars int
	Timeout        time.Duration
}

// DefaultOptions returns the production defaults.
func DefaultOptions() Options {
	return Options{
		SnippetChars:   600,
		MaxEvidence:    8,
		HistoryTurns:   6,
		MaxPromptChars: 12000,
		Timeout:        20 * time.Second,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.SnippetChars <= 0 {
		o.SnippetChars = d.SnippetChars
	}
	if o.MaxEvidence <= 0 {
		o.MaxEvidence = d.MaxEvidence
	}
	if o.HistoryTurns <= 0 {
		o.HistoryTurns = d.HistoryTurns
	}
	if o.MaxPromptChars <= 0 {
		o.MaxPromptChars = d.MaxPromptChars
	}
	if o.Timeout <= 0 {
		o.Timeout = d.Timeout
	}
	return o
}

// Composer turns evidence into a grounded natural-language answer.
type Composer struct {
	gen    Generator
	opts   Options
	logger *zap.Logger
}

// New creates a composer.
func New(gen Generator, opts Options, logger *zap.Logger) *Composer {
	return &Composer{gen: gen, opts: opts.withDefaults(), logger: logger}
}

// Compose generates the answer. Any failure or empty output is domain.ErrAnswerGenerationFailed.
func (c *Composer) Compose(ctx context.Context, in Input) (string, error) {
	p := c.BuildPrompt(in)

	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	out, err := c.gen.Complete(ctx, p.System, p.User)
	if err != nil {
		if errors.Is(err, domain.ErrAnswerGenerationFailed) {
			return "", fmt.Errorf("compose: %w", err)
		}
		return "", fmt.Errorf("compose: %w: %w", domain.ErrAnswerGenerationFailed, err)
	}

	out = strings.TrimSpace(out)
	if out == "" {
		return "", fmt.Errorf("compose: empty completion: %w", domain.ErrAnswerGenerationFailed)
	}

	c.logger.Debug("Answer composed",
		zap.String("intent", string(in.Intent)),
		zap.Int("prompt_chars", p.Len()),
		zap.Int("evidence", len(in.Evidence)),
	)
	return out, nil
}

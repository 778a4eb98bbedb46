package retrieval

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/shopsearch/internal/domain/conversation"
)

// Completer is a single-shot text completion.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// DefaultRewriteTurns is how much history the rewriter sees.
const DefaultRewriteTurns = 6

// DefaultRewriteTimeout bounds a single rewrite call.
const DefaultRewriteTimeout = 10 * time.Second

const rewriteSystem = "You rephrase conversational follow-up questions into standalone, self-contained search queries. " +
	"Keep the main subject of the conversation, such as product names or categories. Reply with the query only."

// Rewriter turns a follow-up question into a standalone search query using recent history.
type Rewriter struct {
	completer Completer
	turns     int
	timeout   time.Duration
	logger    *zap.Logger
}

// NewRewriter creates a follow-up rewriter. Non-positive turns or timeout keep the defaults.
func NewRewriter(c Completer, turns int, timeout time.Duration, logger *zap.Logger) *Rewriter {
	if turns <= 0 {
		turns = DefaultRewriteTurns
	}
	if timeout <= 0 {
		timeout = DefaultRewriteTimeout
	}
	return &Rewriter{completer: c, turns: turns, timeout: timeout, logger: logger}
}

// Rewrite returns the standalone query, or text unchanged when there is no history or the call fails.
func (r *Rewriter) Rewrite(ctx context.Context, text string, history []conversation.Turn) string {
	recent := conversation.Last(history, r.turns)
	if len(recent) == 0 {
		return text
	}

	prompt := "Conversation history:\n" + conversation.Transcript(recent) +
		"\nFollow-up question: " + text + "\n\nStandalone search query:"

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	out, err := r.completer.Complete(ctx, rewriteSystem, prompt)
	if err != nil {
		r.logger.Warn("Query rewrite failed, using original text", zap.Error(err))
		return text
	}

	out = strings.Trim(strings.TrimSpace(out), `"'`)
	if out == "" {
		return text
	}
	r.logger.Debug("Rewrote follow-up query", zap.String("original", text), zap.String("rewritten", out))
	return out
}

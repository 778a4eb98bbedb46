package search

import (
	"context"

	"github.com/kailas-cloud/shopsearch/internal/domain/conversation"
	"github.com/kailas-cloud/shopsearch/internal/domain/intent"
	"github.com/kailas-cloud/shopsearch/internal/domain/search/request"
	"github.com/kailas-cloud/shopsearch/internal/usecase/answer"
	"github.com/kailas-cloud/shopsearch/internal/usecase/retrieval"
)

// Router classifies a query into one intent.
type Router interface {
	Classify(ctx context.Context, q request.Query, history []conversation.Turn) (intent.Intent, intent.Hints, error)
}

// Dispatcher resolves the agent for an intent.
type Dispatcher interface {
	For(it intent.Intent) (retrieval.Agent, bool)
}

// Composer generates a grounded answer.
type Composer interface {
	Compose(ctx context.Context, in answer.Input) (string, error)
}

// SessionStore persists conversation turns per session.
type SessionStore interface {
	History(ctx context.Context, sessionID string) ([]conversation.Turn, error)
	Append(ctx context.Context, sessionID string, turns ...conversation.Turn) error
}

package retrieval

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/shopsearch/internal/domain/evidence"
	"github.com/kailas-cloud/shopsearch/internal/domain/search/filter"
)

// ReviewAgent searches customer reviews, scoped to a product when one is known.
type ReviewAgent struct {
	deps Deps
}

// NewReviewAgent creates the review agent.
func NewReviewAgent(deps Deps) *ReviewAgent {
	return &ReviewAgent{deps: deps}
}

// Collection returns the searched collection.
func (a *ReviewAgent) Collection() evidence.Collection { return evidence.Reviews }

// Retrieve returns the nearest distinct reviews.
func (a *ReviewAgent) Retrieve(ctx context.Context, in Input) Result {
	text := a.deps.searchText(ctx, in)

	var filters filter.Expression
	if id := in.Hints.ProductID; id != "" {
		cond, err := filter.Tag("product_id", id)
		if err != nil {
			return Result{Items: []evidence.Item{}, SearchText: text, Degraded: degrade(fmt.Errorf("product filter: %w", err))}
		}
		filters = filters.With(cond)
	}

	items, err := a.deps.nearest(ctx, evidence.Reviews, text, in.Query.Limit(), filters)
	res := Result{Items: items, SearchText: text, Degraded: joinDegraded(err)}
	if res.Degraded != nil {
		a.deps.Logger.Warn("Review retrieval degraded", zap.Error(res.Degraded))
	}
	return res
}

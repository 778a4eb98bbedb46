package retrieval

import (
	"context"

	"go.uber.org/zap"

	"github.com/kailas-cloud/shopsearch/internal/domain/evidence"
	"github.com/kailas-cloud/shopsearch/internal/domain/search/filter"
)

// PolicyAgent searches store policies and FAQs.
type PolicyAgent struct {
	deps Deps
}

// NewPolicyAgent creates the policy agent.
func NewPolicyAgent(deps Deps) *PolicyAgent {
	return &PolicyAgent{deps: deps}
}

// Collection returns the searched collection.
func (a *PolicyAgent) Collection() evidence.Collection { return evidence.Policies }

// Retrieve returns the nearest policy chunks.
func (a *PolicyAgent) Retrieve(ctx context.Context, in Input) Result {
	text := a.deps.searchText(ctx, in)
	items, err := a.deps.nearest(ctx, evidence.Policies, text, in.Query.Limit(), filter.Expression{})
	res := Result{Items: items, SearchText: text, Degraded: joinDegraded(err)}
	if res.Degraded != nil {
		a.deps.Logger.Warn("Policy retrieval degraded", zap.Error(res.Degraded))
	}
	return res
}

package result

import (
	"github.com/kailas-cloud/shopsearch/internal/domain/evidence"
	"github.com/kailas-cloud/shopsearch/internal/domain/intent"
	"github.com/kailas-cloud/shopsearch/internal/domain/product"
)

// Response is the outcome of one search.
type Response struct {
	answer   *string
	direct   *product.Product
	results  []evidence.Item
	intent   intent.Intent
	degraded []string
}

// New creates a response. Results are copied so later caller edits do not leak in.
func New(
	answer *string, direct *product.Product,
	results []evidence.Item, in intent.Intent, degraded []string,
) Response {
	items := make([]evidence.Item, len(results))
	copy(items, results)
	return Response{answer: answer, direct: direct, results: items, intent: in, degraded: degraded}
}

// Answer returns the generated answer, nil when generation failed or was skipped.
func (r *Response) Answer() *string { return r.answer }

// Direct returns the exact catalog match, if any.
func (r *Response) Direct() *product.Product { return r.direct }

// Results returns evidence ordered by descending score. Never nil.
func (r *Response) Results() []evidence.Item { return r.results }

// Intent returns the routed query type.
func (r *Response) Intent() intent.Intent { return r.intent }

// Degraded returns the names of dependencies that failed during the search.
func (r *Response) Degraded() []string { return r.degraded }

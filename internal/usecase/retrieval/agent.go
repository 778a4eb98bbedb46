package retrieval

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/shopsearch/internal/domain"
	"github.com/kailas-cloud/shopsearch/internal/domain/conversation"
	"github.com/kailas-cloud/shopsearch/internal/domain/evidence"
	"github.com/kailas-cloud/shopsearch/internal/domain/intent"
	"github.com/kailas-cloud/shopsearch/internal/domain/product"
	"github.com/kailas-cloud/shopsearch/internal/domain/search/filter"
	"github.com/kailas-cloud/shopsearch/internal/domain/search/request"
	"github.com/kailas-cloud/shopsearch/internal/metrics"
)

// DefaultOverfetch multiplies the requested limit so de-duplication still fills it.
const DefaultOverfetch = 3

// VectorSearcher finds the nearest chunks of one collection.
type VectorSearcher interface {
	Search(ctx context.Context, c evidence.Collection, vec []float32, limit int, filters filter.Expression) ([]evidence.Item, error)
}

// CatalogReader resolves exact product references.
type CatalogReader interface {
	ByID(ctx context.Context, id string) (product.Product, error)
	ByName(ctx context.Context, name string) (product.Product, error)
}

// Input is everything an agent needs for one retrieval.
type Input struct {
	Query   request.Query
	Hints   intent.Hints
	History []conversation.Turn
}

// Result is the evidence gathered for one query.
// Degraded is non-nil when a dependency failed; the result is still usable.
type Result struct {
	Items      []evidence.Item
	Direct     *product.Product
	SearchText string
	Degraded   error
}

// Agent retrieves evidence for one intent.
type Agent interface {
	Collection() evidence.Collection
	Retrieve(ctx context.Context, in Input) Result
}

// Deps are shared by all agents.
type Deps struct {
	Embedder  domain.Embedder
	Vectors   VectorSearcher
	Rewriter  *Rewriter // optional
	Overfetch int
	Logger    *zap.Logger
}

func (d Deps) overfetch() int {
	if d.Overfetch <= 0 {
		return DefaultOverfetch
	}
	return d.Overfetch
}

// searchText returns the text to embed: the rewritten follow-up when a rewriter is configured.
func (d Deps) searchText(ctx context.Context, in Input) string {
	if d.Rewriter == nil {
		return in.Query.Text()
	}
	return d.Rewriter.Rewrite(ctx, in.Query.Text(), in.History)
}

// nearest embeds text once, over-fetches neighbours, de-duplicates by source record and caps at limit.
func (d Deps) nearest(
	ctx context.Context, c evidence.Collection, text string, limit int, filters filter.Expression,
) ([]evidence.Item, error) {
	emb, err := d.Embedder.Embed(ctx, text)
	if err != nil {
		return []evidence.Item{}, fmt.Errorf("embed query: %w", err)
	}

	hits, err := d.Vectors.Search(ctx, c, emb.Embedding, limit*d.overfetch(), filters)
	if err != nil {
		return []evidence.Item{}, fmt.Errorf("vector search: %w", err)
	}

	items := evidence.DedupBySource(hits, limit)
	metrics.RetrievalHitsTotal.WithLabelValues(string(c)).Observe(float64(len(items)))
	return items, nil
}

// degrade marks err as a partial failure, keeping the underlying cause inspectable.
func degrade(err error) error {
	if err == nil || errors.Is(err, domain.ErrRetrievalDegraded) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrRetrievalDegraded, err)
}

// joinDegraded combines partial failures into one error.
func joinDegraded(errs ...error) error {
	var out []error
	for _, e := range errs {
		if e != nil {
			out = append(out, degrade(e))
		}
	}
	switch len(out) {
	case 0:
		return nil
	case 1:
		return out[0]
	default:
		return errors.Join(out...)
	}
}

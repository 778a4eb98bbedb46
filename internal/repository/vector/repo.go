package vector

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/shopsearch/internal/db"
	"github.com/kailas-cloud/shopsearch/internal/domain"
	"github.com/kailas-cloud/shopsearch/internal/domain/evidence"
	"github.com/kailas-cloud/shopsearch/internal/domain/search/filter"
	"github.com/kailas-cloud/shopsearch/internal/metrics"
	"github.com/kailas-cloud/shopsearch/internal/retry"
)

// store is the consumer interface for vector search (ISP).
type store interface {
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
}

// DefaultFields lists the payload fields returned per collection.
var DefaultFields = map[evidence.Collection][]string{
	evidence.Products: {"product_id", "name", "brand", "category", "price", "rating", "stock", "content"},
	evidence.Reviews:  {"review_id", "product_id", "rating", "title", "content"},
	evidence.Policies: {"policy_id", "title", "section", "content"},
}

// Options configure index naming and resilience.
type Options struct {
	// KeyPrefix is prepended to collection keys and index names, e.g. "shop:".
	KeyPrefix string
	// Indexes overrides the index name per collection. Default: <prefix><collection>:idx.
	Indexes map[evidence.Collection]string
	// Fields overrides the returned payload fields per collection.
	Fields map[evidence.Collection][]string
	Policy retry.Policy
}

// Repo is the vector retriever over the FT index of each collection.
type Repo struct {
	store  store
	opts   Options
	logger *zap.Logger
}

// New creates a vector retriever.
func New(s store, opts Options, logger *zap.Logger) *Repo {
	return &Repo{store: s, opts: opts, logger: logger}
}

// IndexName returns the FT index backing a collection.
func (r *Repo) IndexName(c evidence.Collection) string {
	if name, ok := r.opts.Indexes[c]; ok && name != "" {
		return name
	}
	return fmt.Sprintf("%s%s:idx", r.opts.KeyPrefix, c)
}

// Search returns up to limit nearest chunks of a collection, most similar first.
// Transient store failures are retried; exhaustion yields domain.ErrRetrieverUnavailable.
func (r *Repo) Search(
	ctx context.Context, c evidence.Collection,
	vec []float32, limit int, filters filter.Expression,
) ([]evidence.Item, error) {
	if limit <= 0 {
		return []evidence.Item{}, nil
	}

	q := &db.KNNQuery{
		IndexName:    r.IndexName(c),
		Filters:      filters,
		Vector:       vec,
		K:            limit,
		ReturnFields: r.fields(c),
	}

	start := time.Now()
	var sr *db.SearchResult
	err := retry.Do(ctx, r.opts.Policy, func(attemptCtx context.Context) error {
		res, err := r.store.SearchKNN(attemptCtx, q)
		if err != nil {
			var dbErr *db.Error
			if !errors.As(err, &dbErr) {
				// Query construction errors never succeed on retry.
				return retry.Permanent(err)
			}
			return err
		}
		sr = res
		return nil
	}, func(attempt int, err error) {
		r.logger.Warn("Retrying vector search",
			zap.String("collection", string(c)),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	})

	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.VectorSearchDuration.WithLabelValues(string(c), status).Observe(time.Since(start).Seconds())

	if err != nil {
		return nil, fmt.Errorf("search %s: %w: %w", c, domain.ErrRetrieverUnavailable, err)
	}

	return r.toItems(sr, c), nil
}

func (r *Repo) fields(c evidence.Collection) []string {
	if f, ok := r.opts.Fields[c]; ok && len(f) > 0 {
		return f
	}
	return DefaultFields[c]
}

func (r *Repo) toItems(sr *db.SearchResult, c evidence.Collection) []evidence.Item {
	if sr == nil || len(sr.Entries) == 0 {
		return []evidence.Item{}
	}

	prefix := fmt.Sprintf("%s%s:", r.opts.KeyPrefix, c)
	items := make([]evidence.Item, 0, len(sr.Entries))
	for _, e := range sr.Entries {
		items = append(items, evidence.NewItem(strings.TrimPrefix(e.Key, prefix), c, e.Score, e.Fields))
	}
	evidence.SortByScore(items)
	return items
}

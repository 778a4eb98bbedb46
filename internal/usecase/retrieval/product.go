package retrieval

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/shopsearch/internal/domain"
	"github.com/kailas-cloud/shopsearch/internal/domain/evidence"
	"github.com/kailas-cloud/shopsearch/internal/domain/intent"
	"github.com/kailas-cloud/shopsearch/internal/domain/product"
)

// ProductAgent answers catalog questions: exact lookup first, then semantic neighbours.
type ProductAgent struct {
	deps    Deps
	catalog CatalogReader
}

// NewProductAgent creates the product agent. catalog may be nil to disable direct matches.
func NewProductAgent(deps Deps, catalog CatalogReader) *ProductAgent {
	return &ProductAgent{deps: deps, catalog: catalog}
}

// Collection returns the searched collection.
func (a *ProductAgent) Collection() evidence.Collection { return evidence.Products }

// Retrieve returns the direct match (if any) plus the nearest distinct products.
func (a *ProductAgent) Retrieve(ctx context.Context, in Input) Result {
	direct, lookupErr := a.lookup(ctx, in.Hints)

	text := a.deps.searchText(ctx, in)
	items, err := a.deps.nearest(ctx, evidence.Products, text, in.Query.Limit(), in.Query.Filters())
	if direct != nil {
		items = withoutSource(items, direct.ID)
	}

	res := Result{Items: items, Direct: direct, SearchText: text, Degraded: joinDegraded(lookupErr, err)}
	if res.Degraded != nil {
		a.deps.Logger.Warn("Product retrieval degraded", zap.Error(res.Degraded))
	}
	return res
}

// lookup resolves the hint against the catalog. A miss is not an error.
func (a *ProductAgent) lookup(ctx context.Context, hints intent.Hints) (*product.Product, error) {
	if a.catalog == nil || !hints.HasProduct() {
		return nil, nil
	}

	var (
		p   product.Product
		err error
	)
	if hints.ProductID != "" {
		p, err = a.catalog.ByID(ctx, hints.ProductID)
	}
	if hints.ProductID == "" || (errors.Is(err, domain.ErrNotFound) && hints.ProductName != "") {
		p, err = a.catalog.ByName(ctx, hints.ProductName)
	}

	switch {
	case err == nil:
		return &p, nil
	case errors.Is(err, domain.ErrNotFound):
		a.deps.Logger.Debug("No direct product match",
			zap.String("product_id", hints.ProductID),
			zap.String("product_name", hints.ProductName),
		)
		return nil, nil
	default:
		return nil, fmt.Errorf("catalog lookup: %w: %w", domain.ErrCatalogUnavailable, err)
	}
}

func withoutSource(items []evidence.Item, sourceID string) []evidence.Item {
	out := items[:0:0]
	for _, it := range items {
		if it.SourceID() != sourceID {
			out = append(out, it)
		}
	}
	return out
}

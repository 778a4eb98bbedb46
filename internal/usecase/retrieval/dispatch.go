package retrieval

import (
	"fmt"

	"github.com/kailas-cloud/shopsearch/internal/domain/intent"
)

// Ambiguous fallbacks.
const (
	FallbackProduct = "product"
	FallbackNone    = "none"
)

// Dispatch is the closed intent to agent table. A missing entry means no retrieval.
type Dispatch map[intent.Intent]Agent

// NewDispatch wires one agent per intent. AMBIGUOUS maps to the product agent or to nothing.
func NewDispatch(products, reviews, policies Agent, ambiguousFallback string) (Dispatch, error) {
	d := Dispatch{
		intent.Product: products,
		intent.Review:  reviews,
		intent.Policy:  policies,
	}
	switch ambiguousFallback {
	case "", FallbackProduct:
		d[intent.Ambiguous] = products
	case FallbackNone:
	default:
		return nil, fmt.Errorf("unknown ambiguous fallback %q", ambiguousFallback)
	}
	return d, nil
}

// For returns the agent handling it.
func (d Dispatch) For(it intent.Intent) (Agent, bool) {
	a, ok := d[it]
	return a, ok && a != nil
}

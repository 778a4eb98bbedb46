package intent

import "fmt"

// Intent is the routing category of a shopping question.
type Intent string

const (
	// Product asks about items in the catalog.
	Product Intent = "PRODUCT"
	// Review asks about opinions and experiences with products.
	Review Intent = "REVIEW"
	// Policy asks about store rules: returns, shipping, warranty, payment.
	Policy Intent = "POLICY"
	// Ambiguous carries no classifiable content.
	Ambiguous Intent = "AMBIGUOUS"
)

// All lists every intent in routing order.
var All = []Intent{Product, Review, Policy, Ambiguous}

// Parse converts a string into an Intent.
func Parse(s string) (Intent, error) {
	switch Intent(s) {
	case Product, Review, Policy, Ambiguous:
		return Intent(s), nil
	default:
		return "", fmt.Errorf("unknown intent %q", s)
	}
}

// Hints carries entities extracted from the query text.
type Hints struct {
	ProductID   string
	ProductName string
}

// HasProduct reports whether the query names a specific product.
func (h Hints) HasProduct() bool { return h.ProductID != "" || h.ProductName != "" }

package request

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/shopsearch/internal/domain"
	"github.com/kailas-cloud/shopsearch/internal/domain/search/filter"
)

// Query parameter limits.
const (
	// MaxQueryLength is the maximum allowed question length in bytes.
	MaxQueryLength = 4096
	// MaxSessionIDLength bounds the session key size.
	MaxSessionIDLength = 128
	DefaultLimit       = 5
	MaxLimit           = 50
)

// Query is one validated shopping question. Immutable once built.
type Query struct {
	text      string
	sessionID string
	limit     int
	filters   filter.Expression
	productID string
}

// New validates search parameters. A zero limit takes DefaultLimit; limits above MaxLimit are clamped.
// Blank text is accepted here and rejected by the router.
func New(text, sessionID string, limit int, filters filter.Expression) (Query, error) {
	if len(text) > MaxQueryLength {
		return Query{}, fmt.Errorf("query too long (max %d bytes): %w", MaxQueryLength, domain.ErrInvalidQuery)
	}
	if sessionID == "" {
		return Query{}, fmt.Errorf("session id is required: %w", domain.ErrInvalidQuery)
	}
	if len(sessionID) > MaxSessionIDLength {
		return Query{}, fmt.Errorf("session id too long (max %d): %w", MaxSessionIDLength, domain.ErrInvalidQuery)
	}
	if limit < 0 {
		return Query{}, fmt.Errorf("limit must be positive: %w", domain.ErrInvalidQuery)
	}
	if limit == 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return Query{text: text, sessionID: sessionID, limit: limit, filters: filters}, nil
}

// Text returns the raw question.
func (q Query) Text() string { return q.text }

// SessionID returns the conversation key.
func (q Query) SessionID() string { return q.sessionID }

// Limit returns the maximum number of evidence items.
func (q Query) Limit() int { return q.limit }

// Filters returns caller-supplied pre-filters.
func (q Query) Filters() filter.Expression { return q.filters }

// ProductID returns the product the caller scoped the question to, if any.
func (q Query) ProductID() string { return q.productID }

// WithProduct returns a copy scoped to a product chosen by the caller.
func (q Query) WithProduct(id string) Query {
	q.productID = strings.TrimSpace(id)
	return q
}

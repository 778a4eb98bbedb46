package router

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"

	"github.com/kailas-cloud/shopsearch/internal/domain"
	"github.com/kailas-cloud/shopsearch/internal/domain/conversation"
	"github.com/kailas-cloud/shopsearch/internal/domain/intent"
	"github.com/kailas-cloud/shopsearch/internal/domain/search/request"
)

var (
	productIDPattern = regexp.MustCompile(`(?i)\b[a-z]{2,5}-?\d{3,}\b`)
	quotedPattern    = regexp.MustCompile(`"([^"]{2,})"`)
)

// Vocabulary is matched against lower-cased query text on word boundaries.
var (
	reviewVocabulary = []string{
		"review", "reviews", "reviewed", "people say", "rating", "ratings", "rated",
		"opinion", "opinions", "feedback", "customers think", "worth it", "complaint", "complaints",
		"experience with", "recommend",
	}
	policyVocabulary = []string{
		"return", "returns", "shipping", "ship", "delivery", "refund", "refunds",
		"warranty", "exchange", "policy", "policies", "cancel", "cancellation",
		"payment", "privacy", "guarantee",
	}
)

// Classifier is an optional model-backed fallback used when no heuristic fires.
type Classifier interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// DefaultTimeout bounds a single classifier call.
const DefaultTimeout = 10 * time.Second

// Router maps a query to exactly one intent with extracted hints.
type Router struct {
	classifier Classifier
	timeout    time.Duration
	logger     *zap.Logger
	review     *regexp.Regexp
	policy     *regexp.Regexp
}

// Option configures a Router.
type Option func(*Router)

// WithTimeout sets the classifier call timeout. Non-positive values keep the default.
func WithTimeout(d time.Duration) Option {
	return func(r *Router) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// New creates a router. classifier may be nil.
func New(classifier Classifier, logger *zap.Logger, opts ...Option) *Router {
	r := &Router{
		classifier: classifier,
		timeout:    DefaultTimeout,
		logger:     logger,
		review:     vocabularyPattern(reviewVocabulary),
		policy:     vocabularyPattern(policyVocabulary),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Classify returns the intent of q. Empty or whitespace-only text yields domain.ErrInvalidQuery.
// A product identifier or a quoted product name in the text always routes to PRODUCT.
func (r *Router) Classify(
	ctx context.Context, q request.Query, history []conversation.Turn,
) (intent.Intent, intent.Hints, error) {
	text := strings.TrimSpace(q.Text())
	if text == "" {
		return "", intent.Hints{}, fmt.Errorf("empty query: %w", domain.ErrInvalidQuery)
	}

	hints := intent.Hints{ProductID: q.ProductID()}
	if !hasAlphanumeric(text) {
		return intent.Ambiguous, hints, nil
	}

	if id := productIDPattern.FindString(text); id != "" {
		hints.ProductID = strings.ToUpper(id)
		return intent.Product, hints, nil
	}
	if m := quotedPattern.FindStringSubmatch(text); m != nil {
		hints.ProductName = strings.TrimSpace(m[1])
		return intent.Product, hints, nil
	}

	lower := strings.ToLower(text)
	switch {
	case r.review.MatchString(lower):
		return intent.Review, hints, nil
	case r.policy.MatchString(lower):
		return intent.Policy, hints, nil
	}

	return r.fallback(ctx, text, history), hints, nil
}

// fallback consults the classifier; anything unusable keeps the broad PRODUCT default.
func (r *Router) fallback(ctx context.Context, text string, history []conversation.Turn) intent.Intent {
	if r.classifier == nil {
		return intent.Product
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	answer, err := r.classifier.Complete(ctx, classifierPrompt, classifierInput(text, history))
	if err != nil {
		r.logger.Warn("Intent classifier failed, defaulting to product", zap.Error(err))
		return intent.Product
	}

	if it, ok := parseLabel(answer); ok {
		r.logger.Debug("Intent classifier decided", zap.String("intent", string(it)))
		return it
	}
	r.logger.Warn("Intent classifier returned an unknown label", zap.String("answer", answer))
	return intent.Product
}

const classifierPrompt = `You route shopping questions to a search agent.
Answer with exactly one label:
- product_search: products, features, comparisons, availability, prices. Default for follow-ups about products.
- review_search: opinions, ratings, feedback or reviews about products.
- faq_policy: store policies (returns, shipping, privacy), FAQs, customer service.`

// classifierLabels are checked in order; the first contained label wins.
var classifierLabels = []struct {
	label  string
	intent intent.Intent
}{
	{"product_search", intent.Product},
	{"review_search", intent.Review},
	{"faq_policy", intent.Policy},
}

func parseLabel(answer string) (intent.Intent, bool) {
	answer = strings.ToLower(answer)
	for _, l := range classifierLabels {
		if strings.Contains(answer, l.label) {
			return l.intent, true
		}
	}
	return "", false
}

func classifierInput(text string, history []conversation.Turn) string {
	recent := conversation.Last(history, 6)
	if len(recent) == 0 {
		return "Latest user query: " + text
	}
	return "Conversation so far:\n" + conversation.Transcript(recent) + "\nLatest user query: " + text
}

func vocabularyPattern(words []string) *regexp.Regexp {
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}
	return regexp.MustCompile(`\b(?:` + strings.Join(quoted, "|") + `)\b`)
}

func hasAlphanumeric(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool {
		return unicode.IsLetter(r) || unicode.IsDigit(r)
	}) >= 0
}

package retrieval

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kailas-cloud/shopsearch/internal/domain"
	"github.com/kailas-cloud/shopsearch/internal/domain/conversation"
	"github.com/kailas-cloud/shopsearch/internal/domain/evidence"
	"github.com/kailas-cloud/shopsearch/internal/domain/intent"
	"github.com/kailas-cloud/shopsearch/internal/domain/product"
)

func TestProductAgent_DirectMatch(t *testing.T) {
	emb := &mockEmbedder{}
	vec := &mockVectors{searchFn: func(c evidence.Collection, _ int) ([]evidence.Item, error) {
		return chunks(c, "product_id", []string{"SKU-1234", "SKU-2000", "SKU-3000"}, 1), nil
	}}
	cat := &mockCatalog{byID: map[string]product.Product{
		"SKU-1234": {ID: "SKU-1234", Name: "Trail Runner 2", Price: 89.9},
	}}
	a := NewProductAgent(newDeps(emb, vec), cat)

	res := a.Retrieve(context.Background(), Input{
		Query: mustQuery(t, "show me product SKU-1234", 5),
		Hints: intent.Hints{ProductID: "SKU-1234"},
	})

	if res.Degraded != nil {
		t.Fatalf("unexpected degradation: %v", res.Degraded)
	}
	if res.Direct == nil || res.Direct.ID != "SKU-1234" {
		t.Fatalf("expected direct match SKU-1234, got %+v", res.Direct)
	}
	for _, it := range res.Items {
		if it.SourceID() == "SKU-1234" {
			t.Error("direct match must not repeat among supplementary items")
		}
	}
	if len(res.Items) != 2 {
		t.Errorf("expected 2 supplementary items, got %d", len(res.Items))
	}
}

func TestProductAgent_NameFallback(t *testing.T) {
	cat := &mockCatalog{byName: map[string]product.Product{
		"Trail Runner 2": {ID: "SKU-1234", Name: "Trail Runner 2"},
	}}
	a := NewProductAgent(newDeps(&mockEmbedder{}, &mockVectors{}), cat)

	res := a.Retrieve(context.Background(), Input{
		Query: mustQuery(t, `"Trail Runner 2"`, 5),
		Hints: intent.Hints{ProductName: "Trail Runner 2"},
	})
	if res.Direct == nil || res.Direct.ID != "SKU-1234" {
		t.Fatalf("expected name lookup hit, got %+v", res.Direct)
	}
}

func TestProductAgent_MissFallsBackToVectorSearch(t *testing.T) {
	vec := &mockVectors{searchFn: func(c evidence.Collection, _ int) ([]evidence.Item, error) {
		return chunks(c, "product_id", []string{"A", "B"}, 2), nil
	}}
	a := NewProductAgent(newDeps(&mockEmbedder{}, vec), &mockCatalog{})

	res := a.Retrieve(context.Background(), Input{
		Query: mustQuery(t, "SKU-9999", 5),
		Hints: intent.Hints{ProductID: "SKU-9999"},
	})
	if res.Direct != nil {
		t.Errorf("expected no direct match, got %+v", res.Direct)
	}
	if res.Degraded != nil {
		t.Errorf("a catalog miss is not a degradation: %v", res.Degraded)
	}
	if len(res.Items) != 2 {
		t.Errorf("expected 2 distinct products, got %d", len(res.Items))
	}
}

func TestProductAgent_CatalogFailureDegrades(t *testing.T) {
	cat := &mockCatalog{err: errors.New("connection refused")}
	vec := &mockVectors{searchFn: func(c evidence.Collection, _ int) ([]evidence.Item, error) {
		return chunks(c, "product_id", []string{"A"}, 1), nil
	}}
	a := NewProductAgent(newDeps(&mockEmbedder{}, vec), cat)

	res := a.Retrieve(context.Background(), Input{
		Query: mustQuery(t, "SKU-1234", 5),
		Hints: intent.Hints{ProductID: "SKU-1234"},
	})
	if !errors.Is(res.Degraded, domain.ErrRetrievalDegraded) || !errors.Is(res.Degraded, domain.ErrCatalogUnavailable) {
		t.Fatalf("expected degraded catalog result, got %v", res.Degraded)
	}
	if len(res.Items) != 1 {
		t.Errorf("vector results must survive a catalog failure, got %d", len(res.Items))
	}
}

func TestAgents_OverfetchDedupAndCap(t *testing.T) {
	vec := &mockVectors{searchFn: func(c evidence.Collection, _ int) ([]evidence.Item, error) {
		return chunks(c, "product_id", []string{"A", "B", "C", "D"}, 3), nil
	}}
	a := NewProductAgent(newDeps(&mockEmbedder{}, vec), nil)

	res := a.Retrieve(context.Background(), Input{Query: mustQuery(t, "kettles", 3)})

	if vec.calls[0].limit != 9 {
		t.Errorf("expected overfetch of 9, got %d", vec.calls[0].limit)
	}
	want := []string{"A", "B", "C"}
	if len(res.Items) != len(want) {
		t.Fatalf("expected %d items, got %d", len(want), len(res.Items))
	}
	for i, src := range want {
		if res.Items[i].SourceID() != src {
			t.Errorf("items[%d] source = %s, want %s", i, res.Items[i].SourceID(), src)
		}
	}
	for i := 1; i < len(res.Items); i++ {
		if res.Items[i].Score() > res.Items[i-1].Score() {
			t.Fatal("scores must be non-increasing")
		}
	}
}

func TestReviewAgent_ProductFilter(t *testing.T) {
	vec := &mockVectors{}
	a := NewReviewAgent(newDeps(&mockEmbedder{}, vec))

	a.Retrieve(context.Background(), Input{
		Query: mustQuery(t, "is it comfy?", 5),
		Hints: intent.Hints{ProductID: "SKU-1234"},
	})

	call := vec.calls[0]
	if call.collection != evidence.Reviews {
		t.Errorf("expected reviews collection, got %s", call.collection)
	}
	conds := call.filters.Conditions()
	if len(conds) != 1 || conds[0].Field() != "product_id" || conds[0].TagValue() != "SKU-1234" {
		t.Errorf("expected product_id tag filter, got %+v", conds)
	}
}

func TestReviewAgent_RetrieverUnavailable(t *testing.T) {
	vec := &mockVectors{searchFn: func(_ evidence.Collection, _ int) ([]evidence.Item, error) {
		return nil, domain.ErrRetrieverUnavailable
	}}
	a := NewReviewAgent(newDeps(&mockEmbedder{}, vec))

	res := a.Retrieve(context.Background(), Input{Query: mustQuery(t, "what do people say about headphones", 5)})
	if res.Items == nil || len(res.Items) != 0 {
		t.Errorf("expected empty non-nil items, got %v", res.Items)
	}
	if !errors.Is(res.Degraded, domain.ErrRetrievalDegraded) || !errors.Is(res.Degraded, domain.ErrRetrieverUnavailable) {
		t.Errorf("expected degraded retriever error, got %v", res.Degraded)
	}
}

func TestPolicyAgent_EmbeddingUnavailable(t *testing.T) {
	emb := &mockEmbedder{err: domain.ErrEmbeddingUnavailable}
	vec := &mockVectors{}
	a := NewPolicyAgent(newDeps(emb, vec))

	res := a.Retrieve(context.Background(), Input{Query: mustQuery(t, "return window?", 5)})
	if !errors.Is(res.Degraded, domain.ErrEmbeddingUnavailable) {
		t.Errorf("expected embedding cause, got %v", res.Degraded)
	}
	if len(vec.calls) != 0 {
		t.Error("vector search must be skipped without an embedding")
	}
}

func TestPolicyAgent_NoDedup(t *testing.T) {
	vec := &mockVectors{searchFn: func(c evidence.Collection, _ int) ([]evidence.Item, error) {
		return chunks(c, "policy_id", []string{"returns"}, 4), nil
	}}
	a := NewPolicyAgent(newDeps(&mockEmbedder{}, vec))

	res := a.Retrieve(context.Background(), Input{Query: mustQuery(t, "returns", 3)})
	if len(res.Items) != 3 {
		t.Errorf("policy chunks are capped, not de-duplicated: got %d", len(res.Items))
	}
}

func TestAgents_Idempotent(t *testing.T) {
	vec := &mockVectors{searchFn: func(c evidence.Collection, _ int) ([]evidence.Item, error) {
		return chunks(c, "review_id", []string{"r1", "r2", "r3"}, 2), nil
	}}
	a := NewReviewAgent(newDeps(&mockEmbedder{}, vec))
	in := Input{Query: mustQuery(t, "reviews of kettles", 2)}

	first := a.Retrieve(context.Background(), in)
	second := a.Retrieve(context.Background(), in)
	if len(first.Items) != len(second.Items) {
		t.Fatal("result sizes differ")
	}
	for i := range first.Items {
		if first.Items[i].ID() != second.Items[i].ID() {
			t.Fatalf("items differ at %d", i)
		}
	}
}

func TestAgents_RewriteFollowUp(t *testing.T) {
	emb := &mockEmbedder{}
	rw := &mockCompleter{out: ` "trail running shoes under $100" `}
	deps := newDeps(emb, &mockVectors{})
	deps.Rewriter = NewRewriter(rw, 0, 0, deps.Logger)
	a := NewProductAgent(deps, nil)

	answer := "Here are three trail shoes."
	history := conversation.Exchange("trail running shoes", &answer, nowForTest())

	res := a.Retrieve(context.Background(), Input{Query: mustQuery(t, "any under $100?", 5), History: history})
	if res.SearchText != "trail running shoes under $100" {
		t.Errorf("expected rewritten text, got %q", res.SearchText)
	}
	if emb.texts[0] != res.SearchText {
		t.Errorf("embedder must receive the rewritten text, got %q", emb.texts[0])
	}
}

func TestRewriter_FallsBack(t *testing.T) {
	deps := newDeps(&mockEmbedder{}, &mockVectors{})
	answer := "ok"
	history := conversation.Exchange("a", &answer, nowForTest())

	failing := NewRewriter(&mockCompleter{err: domain.ErrAnswerGenerationFailed}, 2, 0, deps.Logger)
	if got := failing.Rewrite(context.Background(), "b", history); got != "b" {
		t.Errorf("expected raw text on failure, got %q", got)
	}

	empty := NewRewriter(&mockCompleter{out: "  "}, 2, 0, deps.Logger)
	if got := empty.Rewrite(context.Background(), "b", history); got != "b" {
		t.Errorf("expected raw text on empty output, got %q", got)
	}

	mc := &mockCompleter{out: "x"}
	noHistory := NewRewriter(mc, 2, 0, deps.Logger)
	if got := noHistory.Rewrite(context.Background(), "b", nil); got != "b" || len(mc.seen) != 0 {
		t.Errorf("no history must skip the call, got %q after %d calls", got, len(mc.seen))
	}
}

func TestRewriter_CallHasDeadline(t *testing.T) {
	answer := "ok"
	history := conversation.Exchange("a", &answer, nowForTest())

	cases := map[string]struct {
		timeout time.Duration
		want    time.Duration
	}{
		"default":    {timeout: 0, want: DefaultRewriteTimeout},
		"configured": {timeout: 3 * time.Second, want: 3 * time.Second},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			mc := &mockCompleter{out: "standalone"}
			rw := NewRewriter(mc, 2, tc.timeout, newDeps(&mockEmbedder{}, &mockVectors{}).Logger)

			if got := rw.Rewrite(context.Background(), "b", history); got != "standalone" {
				t.Fatalf("unexpected rewrite %q", got)
			}
			if len(mc.deadlines) != 1 {
				t.Fatalf("rewrite call must carry a deadline, saw %d", len(mc.deadlines))
			}
			if left := time.Until(mc.deadlines[0]); left <= 0 || left > tc.want {
				t.Errorf("deadline %v outside (0, %v]", left, tc.want)
			}
		})
	}
}

func TestDispatch(t *testing.T) {
	deps := newDeps(&mockEmbedder{}, &mockVectors{})
	p, r, pol := NewProductAgent(deps, nil), NewReviewAgent(deps), NewPolicyAgent(deps)

	d, err := NewDispatch(p, r, pol, FallbackProduct)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, it := range intent.All {
		if _, ok := d.For(it); !ok {
			t.Errorf("no agent for %s", it)
		}
	}
	if a, _ := d.For(intent.Review); a.Collection() != evidence.Reviews {
		t.Error("REVIEW must dispatch to the review agent")
	}

	none, _ := NewDispatch(p, r, pol, FallbackNone)
	if _, ok := none.For(intent.Ambiguous); ok {
		t.Error("fallback none must leave AMBIGUOUS unmapped")
	}

	if _, err := NewDispatch(p, r, pol, "fanout"); err == nil {
		t.Error("expected error for unknown fallback")
	}
}

func nowForTest() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

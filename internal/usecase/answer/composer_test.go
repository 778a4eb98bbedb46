package answer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/kailas-cloud/shopsearch/internal/domain"
	"github.com/kailas-cloud/shopsearch/internal/domain/conversation"
	"github.com/kailas-cloud/shopsearch/internal/domain/evidence"
	"github.com/kailas-cloud/shopsearch/internal/domain/intent"
	"github.com/kailas-cloud/shopsearch/internal/domain/product"
)

type mockGenerator struct {
	completeFn func(ctx context.Context, system, user string) (string, error)
	system     string
	user       string
}

func (m *mockGenerator) Complete(ctx context.Context, system, user string) (string, error) {
	m.system, m.user = system, user
	return m.completeFn(ctx, system, user)
}

func reply(s string) *mockGenerator {
	return &mockGenerator{completeFn: func(_ context.Context, _, _ string) (string, error) { return s, nil }}
}

func reviewItems(n int) []evidence.Item {
	items := make([]evidence.Item, n)
	for i := range items {
		items[i] = evidence.NewItem(fmt.Sprintf("r%d", i), evidence.Reviews, 0.9-float64(i)*0.01, map[string]string{
			"review_id":  fmt.Sprintf("r%d", i),
			"product_id": "SKU-1234",
			"rating":     "4",
			"content":    strings.Repeat("great sound ", 100),
		})
	}
	return items
}

func TestCompose_GroundedAnswer(t *testing.T) {
	gen := reply("  Customers love the sound.  ")
	c := New(gen, Options{}, zap.NewNop())

	out, err := c.Compose(context.Background(), Input{
		Intent:   intent.Review,
		Question: "what do people say about wireless headphones",
		Evidence: reviewItems(2),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "Customers love the sound." {
		t.Errorf("expected trimmed answer, got %q", out)
	}
	if !strings.Contains(gen.user, "[1] Review of SKU-1234") || !strings.Contains(gen.user, "[2]") {
		t.Errorf("evidence missing from prompt: %q", gen.user)
	}
	if !strings.Contains(gen.system, "reviews") {
		t.Errorf("expected review instruction, got %q", gen.system)
	}
}

func TestCompose_NoEvidenceInstruction(t *testing.T) {
	gen := reply("Sorry, I could not find any reviews for that.")
	c := New(gen, Options{}, zap.NewNop())

	out, err := c.Compose(context.Background(), Input{Intent: intent.Review, Question: "reviews?"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out == "" {
		t.Fatal("expected non-empty answer")
	}
	if !strings.HasPrefix(gen.user, NoDataInstruction) {
		t.Errorf("expected no-data instruction, got %q", gen.user)
	}
}

func TestCompose_DirectMatchSuppressesNoData(t *testing.T) {
	c := New(reply("ok"), Options{}, zap.NewNop())
	p := c.BuildPrompt(Input{
		Intent:   intent.Product,
		Question: "show me SKU-1234",
		Direct:   &product.Product{ID: "SKU-1234", Name: "Trail Runner 2", Price: 89.9, Stock: 3},
	})
	if strings.Contains(p.User, NoDataInstruction) {
		t.Error("a direct match is grounding data")
	}
	if !strings.Contains(p.User, "Trail Runner 2 (SKU-1234)") || !strings.Contains(p.User, "3 in stock") {
		t.Errorf("direct match not rendered: %q", p.User)
	}
}

func TestCompose_Failures(t *testing.T) {
	cases := map[string]*mockGenerator{
		"error": {completeFn: func(_ context.Context, _, _ string) (string, error) {
			return "", errors.New("502 bad gateway")
		}},
		"empty": reply("   "),
	}
	for name, gen := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := New(gen, Options{}, zap.NewNop()).Compose(context.Background(), Input{Question: "q"})
			if !errors.Is(err, domain.ErrAnswerGenerationFailed) {
				t.Fatalf("expected ErrAnswerGenerationFailed, got %v", err)
			}
		})
	}
}

func TestCompose_Timeout(t *testing.T) {
	gen := &mockGenerator{completeFn: func(ctx context.Context, _, _ string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}}
	c := New(gen, Options{Timeout: 10 * time.Millisecond}, zap.NewNop())

	_, err := c.Compose(context.Background(), Input{Question: "q"})
	if !errors.Is(err, domain.ErrAnswerGenerationFailed) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected timeout as ErrAnswerGenerationFailed, got %v", err)
	}
}

func TestBuildPrompt_Deterministic(t *testing.T) {
	c := New(reply("x"), Options{}, zap.NewNop())
	in := Input{Intent: intent.Review, Question: "q", Evidence: reviewItems(3)}
	if c.BuildPrompt(in) != c.BuildPrompt(in) {
		t.Error("prompt must be deterministic")
	}
}

func TestBuildPrompt_Bounded(t *testing.T) {
	c := New(reply("x"), Options{SnippetChars: 200, MaxPromptChars: 1500, HistoryTurns: 10}, zap.NewNop())

	var history []conversation.Turn
	for i := range 5 {
		a := strings.Repeat("long answer ", 30)
		history = append(history, conversation.Exchange(fmt.Sprintf("question %d", i), &a, time.Now())...)
	}

	p := c.BuildPrompt(Input{
		Intent:   intent.Review,
		Question: "and the battery?",
		Evidence: reviewItems(20),
		History:  history,
	})

	if p.Len() > 1500 {
		t.Fatalf("prompt exceeds budget: %d", p.Len())
	}
	if !strings.HasSuffix(p.User, "Question: and the battery?") {
		t.Errorf("question must be kept last, got tail %q", p.User[max(len(p.User)-60, 0):])
	}
	if !strings.Contains(p.User, "[1] ") {
		t.Error("top evidence must survive trimming")
	}
}

func TestBuildPrompt_SnippetTruncation(t *testing.T) {
	c := New(reply("x"), Options{SnippetChars: 50}, zap.NewNop())
	p := c.BuildPrompt(Input{Intent: intent.Review, Question: "q", Evidence: reviewItems(1)})

	for _, line := range strings.Split(p.User, "\n") {
		if strings.HasPrefix(line, "[1] ") {
			if n := utf8.RuneCountInString(strings.TrimPrefix(line, "[1] ")); n > 50 {
				t.Errorf("snippet longer than 50 runes: %d", n)
			}
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("héllo wörld", 8); got != "héllo..." {
		t.Errorf("unexpected truncation: %q", got)
	}
	if got := truncate("short", 10); got != "short" {
		t.Errorf("unexpected truncation: %q", got)
	}
	if got := truncate("abc", 0); got != "" {
		t.Errorf("expected empty, got %q", got)
	}
}

package request

import (
	"errors"
	"strings"
	"testing"

	"github.com/kailas-cloud/shopsearch/internal/domain"
	"github.com/kailas-cloud/shopsearch/internal/domain/search/filter"
)

func TestNew_Defaults(t *testing.T) {
	q, err := New("running shoes", "s1", 0, filter.Expression{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Limit() != DefaultLimit {
		t.Errorf("expected default limit %d, got %d", DefaultLimit, q.Limit())
	}
	if q.Text() != "running shoes" || q.SessionID() != "s1" {
		t.Errorf("unexpected query: %+v", q)
	}
}

func TestNew_ClampsLimit(t *testing.T) {
	q, err := New("x", "s1", MaxLimit+10, filter.Expression{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Limit() != MaxLimit {
		t.Errorf("expected %d, got %d", MaxLimit, q.Limit())
	}
}

func TestNew_Invalid(t *testing.T) {
	tests := []struct {
		name      string
		text, sid string
		limit     int
	}{
		{"negative limit", "x", "s1", -1},
		{"missing session", "x", "", 5},
		{"long session", "x", strings.Repeat("s", MaxSessionIDLength+1), 5},
		{"long query", strings.Repeat("q", MaxQueryLength+1), "s1", 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.text, tt.sid, tt.limit, filter.Expression{})
			if !errors.Is(err, domain.ErrInvalidQuery) {
				t.Errorf("expected ErrInvalidQuery, got %v", err)
			}
		})
	}
}

func TestNew_BlankTextAccepted(t *testing.T) {
	if _, err := New("   ", "s1", 5, filter.Expression{}); err != nil {
		t.Errorf("blank text must be left to the router, got %v", err)
	}
}

func TestWithProduct(t *testing.T) {
	q, _ := New("is it comfy?", "s1", 0, filter.Expression{})
	scoped := q.WithProduct(" SKU-1234 ")
	if scoped.ProductID() != "SKU-1234" {
		t.Errorf("expected trimmed product id, got %q", scoped.ProductID())
	}
	if q.ProductID() != "" {
		t.Error("WithProduct must not mutate the original")
	}
}

package session

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/kailas-cloud/shopsearch/internal/db"
	"github.com/kailas-cloud/shopsearch/internal/domain"
	"github.com/kailas-cloud/shopsearch/internal/domain/conversation"
)

// mockListStore emulates a capped Redis list.
type mockListStore struct {
	lists     map[string][]string
	lastTTL   time.Duration
	appendErr error
	rangeErr  error
}

func newMockListStore() *mockListStore {
	return &mockListStore{lists: map[string][]string{}}
}

func (m *mockListStore) AppendCapped(_ context.Context, key string, values []string, maxLen int, ttl time.Duration) error {
	if m.appendErr != nil {
		return m.appendErr
	}
	l := append(m.lists[key], values...)
	if len(l) > maxLen {
		l = l[len(l)-maxLen:]
	}
	m.lists[key] = l
	m.lastTTL = ttl
	return nil
}

func (m *mockListStore) Range(_ context.Context, key string) ([]string, error) {
	if m.rangeErr != nil {
		return nil, m.rangeErr
	}
	return m.lists[key], nil
}

func TestRedisStore_AppendAndHistory(t *testing.T) {
	ms := newMockListStore()
	s := NewRedisStore(ms, "shop:", 20, time.Hour)
	ctx := context.Background()
	answer := "It runs true to size."

	if err := s.Append(ctx, "abc", conversation.Exchange("Is SKU-1234 comfy?", &answer, time.Now())...); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, ok := ms.lists["shop:session:abc"]; !ok {
		t.Fatalf("expected key shop:session:abc, got %v", ms.lists)
	}
	if ms.lastTTL != time.Hour {
		t.Errorf("expected ttl refresh of 1h, got %v", ms.lastTTL)
	}

	turns, err := s.History(ctx, "abc")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(turns) != 2 || turns[0].Role != conversation.RoleUser || turns[1].Text != answer {
		t.Errorf("unexpected turns: %+v", turns)
	}
}

func TestRedisStore_BoundedFIFO(t *testing.T) {
	ms := newMockListStore()
	s := NewRedisStore(ms, "shop:", 20, time.Hour)
	ctx := context.Background()

	for i := range 25 {
		turn, _ := conversation.NewTurn(conversation.RoleUser, string(rune('a'+i)), time.Now())
		if err := s.Append(ctx, "s", turn); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	turns, _ := s.History(ctx, "s")
	if len(turns) != 20 {
		t.Fatalf("expected 20 turns, got %d", len(turns))
	}
	if turns[0].Text != string(rune('a'+5)) || turns[19].Text != string(rune('a'+24)) {
		t.Errorf("expected oldest-first window f..y, got %s..%s", turns[0].Text, turns[19].Text)
	}
}

func TestRedisStore_MissingSessionIsEmpty(t *testing.T) {
	s := NewRedisStore(newMockListStore(), "shop:", 0, 0)
	turns, err := s.History(context.Background(), "nobody")
	if err != nil || len(turns) != 0 {
		t.Fatalf("expected empty history, got %v %v", turns, err)
	}
}

func TestRedisStore_Errors(t *testing.T) {
	ms := newMockListStore()
	ms.appendErr = &db.Error{Op: db.OpExec, Err: errors.New("aborted")}
	ms.rangeErr = &db.Error{Op: db.OpLRange, Err: errors.New("timeout")}
	s := NewRedisStore(ms, "shop:", 20, time.Hour)

	turn, _ := conversation.NewTurn(conversation.RoleUser, "x", time.Now())
	if err := s.Append(context.Background(), "s", turn); !errors.Is(err, domain.ErrSessionStore) {
		t.Errorf("expected ErrSessionStore on append, got %v", err)
	}
	if _, err := s.History(context.Background(), "s"); !errors.Is(err, domain.ErrSessionStore) {
		t.Errorf("expected ErrSessionStore on history, got %v", err)
	}
}

func TestRedisStore_CorruptEntry(t *testing.T) {
	good, _ := json.Marshal(conversation.Turn{Role: conversation.RoleUser, Text: "hi"})
	cases := map[string]string{
		"malformed json": "{not json",
		"unknown role":   `{"role":"system","text":"x","timestamp":"2026-01-02T03:04:05Z"}`,
	}
	for name, bad := range cases {
		t.Run(name, func(t *testing.T) {
			ms := newMockListStore()
			ms.lists["shop:session:s"] = []string{string(good), bad}
			s := NewRedisStore(ms, "shop:", 20, time.Hour)

			if _, err := s.History(context.Background(), "s"); !errors.Is(err, domain.ErrSessionStore) {
				t.Fatalf("expected ErrSessionStore, got %v", err)
			}
		})
	}
}

package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kailas-cloud/shopsearch/internal/domain"
	"github.com/kailas-cloud/shopsearch/internal/domain/conversation"
)

// Defaults for session retention.
const (
	DefaultMaxTurns = 20
	DefaultTTL      = 24 * time.Hour
)

// listStore is the consumer interface for list-backed sessions (ISP).
type listStore interface {
	AppendCapped(ctx context.Context, key string, values []string, maxLen int, ttl time.Duration) error
	Range(ctx context.Context, key string) ([]string, error)
}

// RedisStore keeps each session as a capped list of JSON-encoded turns.
type RedisStore struct {
	store     listStore
	keyPrefix string
	maxTurns  int
	ttl       time.Duration
}

// NewRedisStore creates a session store with keys <keyPrefix>session:<id>.
func NewRedisStore(s listStore, keyPrefix string, maxTurns int, ttl time.Duration) *RedisStore {
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	return &RedisStore{store: s, keyPrefix: keyPrefix, maxTurns: maxTurns, ttl: ttl}
}

// History returns the retained turns of a session, oldest first.
func (r *RedisStore) History(ctx context.Context, sessionID string) ([]conversation.Turn, error) {
	raw, err := r.store.Range(ctx, r.key(sessionID))
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w: %w", sessionID, domain.ErrSessionStore, err)
	}

	turns := make([]conversation.Turn, 0, len(raw))
	for _, s := range raw {
		var t conversation.Turn
		if err := json.Unmarshal([]byte(s), &t); err != nil {
			return nil, fmt.Errorf("decode session %s: %w: %w", sessionID, domain.ErrSessionStore, err)
		}
		turn, err := conversation.NewTurn(t.Role, t.Text, t.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("decode session %s: %w: %w", sessionID, domain.ErrSessionStore, err)
		}
		turns = append(turns, turn)
	}
	return turns, nil
}

// Append adds turns atomically, evicting the oldest beyond the cap and refreshing the TTL.
func (r *RedisStore) Append(ctx context.Context, sessionID string, turns ...conversation.Turn) error {
	if len(turns) == 0 {
		return nil
	}

	values := make([]string, 0, len(turns))
	for _, t := range turns {
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("encode turn: %w: %w", domain.ErrSessionStore, err)
		}
		values = append(values, string(b))
	}

	if err := r.store.AppendCapped(ctx, r.key(sessionID), values, r.maxTurns, r.ttl); err != nil {
		return fmt.Errorf("append session %s: %w: %w", sessionID, domain.ErrSessionStore, err)
	}
	return nil
}

func (r *RedisStore) key(sessionID string) string {
	return r.keyPrefix + "session:" + sessionID
}

package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/shopsearch/internal/db"
)

// AppendCapped runs MULTI; RPUSH; LTRIM; EXPIRE; EXEC in one DoMulti round-trip.
// The pushed values land contiguously and in order.
func (s *Store) AppendCapped(ctx context.Context, key string, values []string, maxLen int, ttl time.Duration) error {
	if len(values) == 0 {
		return nil
	}
	if maxLen <= 0 {
		return fmt.Errorf("maxLen must be positive")
	}

	cmds := make([]rueidis.Completed, 0, 5)
	ops := make([]string, 0, 3)
	cmds = append(cmds,
		s.b().Multi().Build(),
		s.b().Rpush().Key(key).Element(values...).Build(),
		s.b().Ltrim().Key(key).Start(int64(-maxLen)).Stop(-1).Build(),
	)
	ops = append(ops, db.OpRPush, db.OpLTrim)
	if ttl > 0 {
		cmds = append(cmds, s.b().Expire().Key(key).Seconds(int64(ttl.Seconds())).Build())
		ops = append(ops, db.OpExpire)
	}
	cmds = append(cmds, s.b().Exec().Build())

	results := s.client.DoMulti(ctx, cmds...)
	for i, res := range results {
		if err := res.Error(); err != nil {
			op := db.OpExec
			if i == 1 {
				op = db.OpRPush
			}
			return &db.Error{Op: op, Err: err}
		}
	}

	// EXEC replies with nil when the transaction was aborted.
	exec := results[len(results)-1]
	replies, err := exec.ToArray()
	if err != nil {
		return &db.Error{Op: db.OpExec, Err: err}
	}
	// Queued commands fail individually, e.g. WRONGTYPE on a non-list key.
	for i, reply := range replies {
		if err := reply.Error(); err != nil {
			op := db.OpExec
			if i < len(ops) {
				op = ops[i]
			}
			return &db.Error{Op: op, Err: err}
		}
	}
	return nil
}

// Range returns the whole list, oldest first. A missing key yields an empty slice.
func (s *Store) Range(ctx context.Context, key string) ([]string, error) {
	cmd := s.b().Lrange().Key(key).Start(0).Stop(-1).Build()
	vals, err := s.do(ctx, cmd).AsStrSlice()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return []string{}, nil
		}
		return nil, &db.Error{Op: db.OpLRange, Err: err}
	}
	return vals, nil
}

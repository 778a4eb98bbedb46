package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Policy holds retry configuration shared by every outbound dependency.
type Policy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
	// AttemptTimeout bounds each individual call; 0 leaves only the parent deadline.
	AttemptTimeout time.Duration
}

// DefaultPolicy returns three attempts with exponential backoff from 100ms.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    3,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     2 * time.Second,
		Multiplier:     2.0,
		AttemptTimeout: 5 * time.Second,
	}
}

// WithAttemptTimeout returns a copy with a different per-attempt timeout.
func (p Policy) WithAttemptTimeout(d time.Duration) Policy {
	p.AttemptTimeout = d
	return p
}

// permanentError marks an error that must not be retried.
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so Do returns it immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

// Do runs fn until it succeeds, returns a permanent error, attempts run out or ctx is done.
// Each attempt receives its own context bounded by AttemptTimeout.
// OnRetry, when set, is called before every backoff sleep.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error, onRetry ...func(attempt int, err error)) error {
	attempts := max(p.MaxAttempts, 1)
	delay := p.InitialBackoff

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return fmt.Errorf("retry aborted after %d attempts: %w", attempt-1, lastErr)
			}
			return fmt.Errorf("retry aborted: %w", err)
		}

		err := runAttempt(ctx, p.AttemptTimeout, fn)
		if err == nil {
			return nil
		}
		lastErr = err

		if IsPermanent(err) {
			return err
		}
		if attempt == attempts {
			break
		}

		for _, cb := range onRetry {
			cb(attempt, err)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("retry aborted after %d attempts: %w", attempt, lastErr)
		case <-time.After(delay):
		}

		delay = nextDelay(delay, p)
	}

	return fmt.Errorf("max retry attempts (%d) exceeded: %w", attempts, lastErr)
}

func runAttempt(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(attemptCtx)
}

func nextDelay(cur time.Duration, p Policy) time.Duration {
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}
	next := time.Duration(float64(cur) * mult)
	if p.MaxBackoff > 0 && next > p.MaxBackoff {
		next = p.MaxBackoff
	}
	return next
}

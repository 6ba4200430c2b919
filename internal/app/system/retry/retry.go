// internal/app/system/retry/retry.go

// Package retry provides a small reusable retry policy for lookups against
// backends that may still be initializing when we first ask. Only identity
// resolution uses it today; validation and submission failures are never
// retried automatically.
package retry

import (
	"context"
	"time"
)

// Policy describes how many times to attempt an operation and how long to
// wait between attempts. Backoff receives the 1-based number of the attempt
// that just failed.
type Policy struct {
	MaxAttempts int
	Backoff     func(attempt int) time.Duration
}

// LinearBackoff returns a backoff function that waits base*attempt, so the
// delay grows with each failure.
func LinearBackoff(base time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration {
		return base * time.Duration(attempt)
	}
}

// Do runs fn until it succeeds, the policy is exhausted, or ctx is done.
// It returns the last error from fn, or ctx.Err() if the context ended
// while waiting between attempts.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if attempt == attempts {
			break
		}

		var wait time.Duration
		if p.Backoff != nil {
			wait = p.Backoff(attempt)
		}
		if wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}
	return lastErr
}

// Package retry provides bounded retry with exponential backoff for
// short-lived operations against external collaborators (resync fetches,
// feed subscriptions). The connection manager has its own backoff state
// machine and does not use this package.
package retry

import (
	"context"
	"fmt"
	"time"
)

// Policy bounds a retried operation.
type Policy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	OnRetry        func(attempt int, err error, backoff time.Duration)
}

// Operation is a retryable operation returning a value.
type Operation[T any] func() (T, error)

// Do runs op until it succeeds, the attempt budget is spent, or ctx is
// cancelled. The backoff doubles between attempts.
func Do[T any](ctx context.Context, p Policy, op Operation[T]) (T, error) {
	backoff := p.InitialBackoff

	var zero T
	for attempt := 1; ; attempt++ {
		val, err := op()
		if err == nil {
			return val, nil
		}
		if attempt >= p.MaxAttempts {
			return zero, fmt.Errorf("failed after %d attempts: %w", attempt, err)
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, err, backoff)
		}
		select {
		case <-time.After(backoff):
			backoff *= 2
		case <-ctx.Done():
			return zero, fmt.Errorf("cancelled during retry: %w", ctx.Err())
		}
	}
}

// DoVoid is Do for operations without a result.
func DoVoid(ctx context.Context, p Policy, op func() error) error {
	_, err := Do(ctx, p, func() (struct{}, error) { return struct{}{}, op() })
	return err
}

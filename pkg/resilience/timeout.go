package resilience

import (
	"context"
	"fmt"
	"time"
)

// Call runs fn with a deadline of timeout and returns as soon as either fn
// finishes or the deadline passes. A late result is discarded; fn should
// honour its context so the goroutine ends promptly. A non-positive
// timeout runs fn inline.
func Call[T any](ctx context.Context, timeout time.Duration, name string, fn func(ctx context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return fn(ctx)
	}
	ctx2, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		v   T
		err error
	}
	ch := make(chan outcome, 1)
	go func() {
		v, err := fn(ctx2)
		ch <- outcome{v, err}
	}()

	select {
	case o := <-ch:
		return o.v, o.err
	case <-ctx2.Done():
		var zero T
		if err := ctx.Err(); err != nil {
			return zero, fmt.Errorf("%s: parent context cancelled: %w", name, err)
		}
		return zero, fmt.Errorf("%s: %w (limit: %v)", name, context.DeadlineExceeded, timeout)
	}
}

// WithTimeout is Call for functions without a result.
func WithTimeout(ctx context.Context, timeout time.Duration, name string, fn func(ctx context.Context) error) error {
	_, err := Call(ctx, timeout, name, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

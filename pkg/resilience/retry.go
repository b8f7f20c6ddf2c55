package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"
)

// RetryConfig controls the backoff schedule. Zero fields take defaults:
// 3 attempts starting at 100ms, doubling up to 10s with 10% jitter.
type RetryConfig struct {
	MaxAttempts    int
	InitialDelay   time.Duration
	MaxDelay       time.Duration
	Multiplier     float64
	JitterFraction float64
	// Retryable, when set, stops retrying on errors it rejects, as if they
	// were Permanent.
	Retryable func(err error) bool
}

func (cfg RetryConfig) withDefaults() RetryConfig {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = 100 * time.Millisecond
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 10 * time.Second
	}
	if cfg.Multiplier <= 0 {
		cfg.Multiplier = 2
	}
	if cfg.JitterFraction <= 0 {
		cfg.JitterFraction = 0.1
	}
	return cfg
}

// delay is the pause after the given failed attempt (1-based).
func (cfg RetryConfig) delay(attempt int) time.Duration {
	backoff := float64(cfg.InitialDelay) * math.Pow(cfg.Multiplier, float64(attempt-1))
	backoff += backoff * cfg.JitterFraction * (2*rand.Float64() - 1)
	switch {
	case backoff > float64(cfg.MaxDelay):
		return cfg.MaxDelay
	case backoff < 0:
		return cfg.InitialDelay
	}
	return time.Duration(backoff)
}

// PermanentError marks a failure that retrying cannot fix, such as a
// malformed catalog file.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }

func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err so Retry stops immediately. A nil err stays nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// Retry calls fn until it succeeds, fails permanently, or runs out of
// attempts, sleeping with jittered exponential backoff in between.
func Retry(ctx context.Context, name string, cfg RetryConfig, fn func() error) error {
	_, err := Do(ctx, name, cfg, func(context.Context) (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// Do is Retry for functions producing a value.
func Do[T any](ctx context.Context, name string, cfg RetryConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	cfg = cfg.withDefaults()
	var zero T
	var lastErr error
	for attempt := 1; ; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			if attempt > 1 {
				slog.Default().Info("succeeded after retry", "component", "retry", "operation", name, "attempt", attempt)
			}
			return v, nil
		}
		lastErr = err

		var permanent *PermanentError
		if errors.As(err, &permanent) {
			return zero, fmt.Errorf("%s: %w", name, permanent.Err)
		}
		if cfg.Retryable != nil && !cfg.Retryable(err) {
			return zero, fmt.Errorf("%s: %w", name, err)
		}
		if attempt >= cfg.MaxAttempts {
			break
		}
		if ctx.Err() != nil {
			return zero, fmt.Errorf("retry aborted: %w", ctx.Err())
		}

		wait := cfg.delay(attempt)
		slog.Default().Warn("operation failed, retrying",
			"component", "retry",
			"operation", name,
			"attempt", attempt,
			"max_attempts", cfg.MaxAttempts,
			"next_delay", wait,
			"error", err,
		)
		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return zero, fmt.Errorf("retry aborted during backoff: %w", ctx.Err())
		}
	}
	return zero, fmt.Errorf("all %d attempts failed for %s: %w", cfg.MaxAttempts, name, lastErr)
}

package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func TestRetrySucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), "flaky", RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond}, func() error {
		calls++
		if calls < 3 {
			return errBoom
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryGivesUp(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), "broken", RetryConfig{MaxAttempts: 2, InitialDelay: time.Millisecond}, func() error {
		calls++
		return errBoom
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, errBoom)
	assert.Contains(t, err.Error(), "all 2 attempts failed for broken")
	assert.Equal(t, 2, calls)
}

func TestRetryStopsOnPermanentError(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), "decode", RetryConfig{MaxAttempts: 5, InitialDelay: time.Millisecond}, func() error {
		calls++
		return Permanent(errBoom)
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, 1, calls)
	assert.Nil(t, Permanent(nil))
}

func TestRetryAbortsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Retry(ctx, "cancelled", RetryConfig{MaxAttempts: 5, InitialDelay: time.Hour}, func() error {
		calls++
		cancel()
		return errBoom
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestRetryableClassifier(t *testing.T) {
	calls := 0
	notFound := errors.New("no rows")
	err := Retry(context.Background(), "lookup", RetryConfig{
		MaxAttempts:  5,
		InitialDelay: time.Millisecond,
		Retryable:    func(err error) bool { return !errors.Is(err, notFound) },
	}, func() error {
		calls++
		return notFound
	})
	assert.ErrorIs(t, err, notFound)
	assert.Equal(t, 1, calls)
}

func TestDoReturnsValue(t *testing.T) {
	calls := 0
	v, err := Do(context.Background(), "load", RetryConfig{InitialDelay: time.Millisecond}, func(context.Context) ([]string, error) {
		calls++
		if calls == 1 {
			return nil, errBoom
		}
		return []string{"p1"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"p1"}, v)
}

func TestDelayIsCapped(t *testing.T) {
	cfg := RetryConfig{InitialDelay: time.Second, MaxDelay: 3 * time.Second, Multiplier: 10, JitterFraction: 0.1}
	assert.Equal(t, 3*time.Second, cfg.delay(5))
	assert.InDelta(t, float64(time.Second), float64(cfg.delay(1)), float64(100*time.Millisecond))
}

func TestCallReturnsValue(t *testing.T) {
	v, err := Call(context.Background(), time.Second, "fast", func(ctx context.Context) (int, error) {
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestCallTimesOut(t *testing.T) {
	v, err := Call(context.Background(), 10*time.Millisecond, "slow", func(ctx context.Context) (string, error) {
		<-ctx.Done()
		return "late", ctx.Err()
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Empty(t, v)
}

func TestCallWithoutTimeoutRunsInline(t *testing.T) {
	_, err := Call(context.Background(), 0, "inline", func(ctx context.Context) (int, error) {
		_, has := ctx.Deadline()
		assert.False(t, has)
		return 0, errBoom
	})
	assert.ErrorIs(t, err, errBoom)
}

func TestWithTimeout(t *testing.T) {
	err := WithTimeout(context.Background(), time.Second, "ok", func(ctx context.Context) error { return nil })
	assert.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = WithTimeout(ctx, time.Second, "parent", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

type transitions struct {
	mu  sync.Mutex
	got []string
}

func (tr *transitions) record(name string, from, to State) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.got = append(tr.got, name+":"+from.String()+"->"+to.String())
}

func TestCircuitBreakerLifecycle(t *testing.T) {
	tr := &transitions{}
	cb := NewCircuitBreaker("redis", CircuitBreakerConfig{
		FailureThreshold: 2,
		ResetTimeout:     20 * time.Millisecond,
		OnStateChange:    tr.record,
	})

	assert.ErrorIs(t, cb.Execute(func() error { return errBoom }), errBoom)
	assert.Equal(t, StateClosed, cb.GetState())
	assert.ErrorIs(t, cb.Execute(func() error { return errBoom }), errBoom)
	assert.Equal(t, StateOpen, cb.GetState())

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)

	time.Sleep(30 * time.Millisecond)
	require.NoError(t, cb.Execute(func() error { return nil }))
	assert.Equal(t, StateClosed, cb.GetState())

	tr.mu.Lock()
	defer tr.mu.Unlock()
	assert.Equal(t, []string{
		"redis:closed->open",
		"redis:open->half-open",
		"redis:half-open->closed",
	}, tr.got)
}

func TestCircuitBreakerFailedProbeReopens(t *testing.T) {
	cb := NewCircuitBreaker("redis", CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: 20 * time.Millisecond})

	_ = cb.Execute(func() error { return errBoom })
	require.Equal(t, StateOpen, cb.GetState())

	time.Sleep(30 * time.Millisecond)
	_ = cb.Execute(func() error { return errBoom })
	assert.Equal(t, StateOpen, cb.GetState())
	assert.ErrorIs(t, cb.Execute(func() error { return nil }), ErrCircuitOpen)
}

func TestCircuitBreakerSuccessResetsFailures(t *testing.T) {
	cb := NewCircuitBreaker("pg", CircuitBreakerConfig{FailureThreshold: 2})
	_ = cb.Execute(func() error { return errBoom })
	_ = cb.Execute(func() error { return nil })
	_ = cb.Execute(func() error { return errBoom })
	assert.Equal(t, StateClosed, cb.GetState())
	assert.Equal(t, uint32(1), cb.Counts().ConsecutiveFailures)
	assert.Equal(t, "pg", cb.Name())

	_ = cb.Execute(func() error { return errBoom })
	assert.Equal(t, StateOpen, cb.GetState())
	cb.Reset()
	assert.Equal(t, StateClosed, cb.GetState())
	assert.Zero(t, cb.Counts().Requests)
}

func TestCircuitBreakerIgnoresCancellation(t *testing.T) {
	cb := NewCircuitBreaker("redis", CircuitBreakerConfig{FailureThreshold: 1})
	err := cb.Execute(func() error { return fmt.Errorf("get: %w", context.Canceled) })
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateClosed, cb.GetState())

	miss := errors.New("miss")
	cb = NewCircuitBreaker("redis", CircuitBreakerConfig{
		FailureThreshold: 1,
		IsFailure:        func(err error) bool { return !errors.Is(err, miss) },
	})
	_ = cb.Execute(func() error { return miss })
	assert.Equal(t, StateClosed, cb.GetState())
}

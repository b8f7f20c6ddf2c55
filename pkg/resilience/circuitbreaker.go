// Package resilience provides fault-tolerance primitives: a circuit breaker,
// exponential-backoff retry and a context-based timeout wrapper.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// ErrCircuitOpen is returned, wrapped, while the breaker rejects calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State is exported as the circuit_breaker_state gauge value.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

func fromGobreaker(s gobreaker.State) State {
	switch s {
	case gobreaker.StateOpen:
		return StateOpen
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	default:
		return StateClosed
	}
}

// CircuitBreakerConfig controls tripping and recovery. Zero fields take
// defaults: 5 consecutive failures, 30s open, 1 half-open probe.
type CircuitBreakerConfig struct {
	FailureThreshold    int
	ResetTimeout        time.Duration
	HalfOpenMaxRequests int
	// IsFailure classifies errors. By default every error except a
	// cancelled context counts against the breaker.
	IsFailure func(err error) bool
	// OnStateChange must not call back into the breaker.
	OnStateChange func(name string, from, to State)
}

// Counts is a snapshot of the breaker's bookkeeping in the current state.
type Counts struct {
	Requests             uint32 `json:"requests"`
	TotalFailures        uint32 `json:"totalFailures"`
	ConsecutiveFailures  uint32 `json:"consecutiveFailures"`
	ConsecutiveSuccesses uint32 `json:"consecutiveSuccesses"`
}

// CircuitBreaker wraps a dependency that may fail in bursts, such as the
// Redis query cache, so that callers fail fast while it is down.
type CircuitBreaker struct {
	name     string
	cfg      CircuitBreakerConfig
	settings gobreaker.Settings
	logger   *slog.Logger

	mu sync.RWMutex
	cb *gobreaker.CircuitBreaker[struct{}]
}

func NewCircuitBreaker(name string, cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.HalfOpenMaxRequests <= 0 {
		cfg.HalfOpenMaxRequests = 1
	}
	if cfg.IsFailure == nil {
		cfg.IsFailure = func(err error) bool { return !errors.Is(err, context.Canceled) }
	}
	b := &CircuitBreaker{
		name:   name,
		cfg:    cfg,
		logger: slog.Default().With("component", "circuit-breaker", "name", name),
	}
	threshold := uint32(cfg.FailureThreshold)
	b.settings = gobreaker.Settings{
		Name:        name,
		MaxRequests: uint32(cfg.HalfOpenMaxRequests),
		Timeout:     cfg.ResetTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !cfg.IsFailure(err)
		},
		OnStateChange: func(_ string, from, to gobreaker.State) {
			b.transition(fromGobreaker(from), fromGobreaker(to))
		},
	}
	b.cb = gobreaker.NewCircuitBreaker[struct{}](b.settings)
	return b
}

func (b *CircuitBreaker) transition(from, to State) {
	switch to {
	case StateOpen:
		b.logger.Warn("circuit opened", "from", from, "threshold", b.cfg.FailureThreshold, "reset_after", b.cfg.ResetTimeout)
	case StateHalfOpen:
		b.logger.Info("circuit half-open, probing")
	case StateClosed:
		b.logger.Info("circuit closed", "from", from)
	}
	if b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(b.name, from, to)
	}
}

func (b *CircuitBreaker) current() *gobreaker.CircuitBreaker[struct{}] {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.cb
}

// Execute runs fn unless the circuit is open. Rejections wrap
// ErrCircuitOpen; otherwise fn's own error is returned unchanged.
func (b *CircuitBreaker) Execute(fn func() error) error {
	_, err := b.current().Execute(func() (struct{}, error) {
		return struct{}{}, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %s (%v)", ErrCircuitOpen, b.name, err)
	}
	return err
}

func (b *CircuitBreaker) GetState() State {
	return fromGobreaker(b.current().State())
}

func (b *CircuitBreaker) Counts() Counts {
	c := b.current().Counts()
	return Counts{
		Requests:             c.Requests,
		TotalFailures:        c.TotalFailures,
		ConsecutiveFailures:  c.ConsecutiveFailures,
		ConsecutiveSuccesses: c.ConsecutiveSuccesses,
	}
}

// Reset discards all state and closes the circuit.
func (b *CircuitBreaker) Reset() {
	b.mu.Lock()
	from := fromGobreaker(b.cb.State())
	b.cb = gobreaker.NewCircuitBreaker[struct{}](b.settings)
	b.mu.Unlock()
	if from != StateClosed {
		b.transition(from, StateClosed)
	}
	b.logger.Info("circuit manually reset")
}

func (b *CircuitBreaker) Name() string {
	return b.name
}

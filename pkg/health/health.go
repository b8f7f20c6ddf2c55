// Package health runs registered dependency checks in parallel and serves
// the aggregate as liveness and readiness probes.
package health

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/pkg/resilience"
	"github.com/goccy/go-json"
	"golang.org/x/sync/errgroup"
)

type Status string

const (
	StatusUp       Status = "up"
	StatusDown     Status = "down"
	StatusDegraded Status = "degraded"
)

// DefaultCheckTimeout bounds a single check when the Checker has none set.
const DefaultCheckTimeout = 2 * time.Second

// Check probes one dependency.
type Check func(ctx context.Context) ComponentHealth

type ComponentHealth struct {
	Status    Status  `json:"status"`
	Message   string  `json:"message,omitempty"`
	LatencyMs float64 `json:"latencyMs"`
	Optional  bool    `json:"optional,omitempty"`
}

type Report struct {
	Status     Status                     `json:"status"`
	Components map[string]ComponentHealth `json:"components"`
	Timestamp  time.Time                  `json:"timestamp"`
}

type registration struct {
	check    Check
	optional bool
}

// Checker holds named checks. Required components decide readiness;
// optional ones (a cache, say) can only degrade it.
type Checker struct {
	mu      sync.RWMutex
	checks  map[string]registration
	timeout time.Duration
	logger  *slog.Logger
}

func NewChecker() *Checker {
	return &Checker{
		checks:  make(map[string]registration),
		timeout: DefaultCheckTimeout,
		logger:  slog.Default().With("component", "health"),
	}
}

// SetTimeout changes the per-check deadline. Non-positive values disable it.
func (c *Checker) SetTimeout(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timeout = d
}

// Register adds a required check, replacing any check of the same name.
func (c *Checker) Register(name string, check Check) {
	c.register(name, registration{check: check})
}

// RegisterOptional adds a check whose failure degrades but never downs the
// aggregate.
func (c *Checker) RegisterOptional(name string, check Check) {
	c.register(name, registration{check: check, optional: true})
}

func (c *Checker) register(name string, reg registration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = reg
}

// Run executes every check concurrently. The aggregate is the worst
// component status after optional failures are capped at degraded.
func (c *Checker) Run(ctx context.Context) Report {
	c.mu.RLock()
	checks := make(map[string]registration, len(c.checks))
	for name, reg := range c.checks {
		checks[name] = reg
	}
	timeout := c.timeout
	c.mu.RUnlock()

	var mu sync.Mutex
	components := make(map[string]ComponentHealth, len(checks))
	var g errgroup.Group
	for name, reg := range checks {
		g.Go(func() error {
			result := c.runOne(ctx, name, reg, timeout)
			mu.Lock()
			components[name] = result
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return Report{
		Status:     aggregate(components),
		Components: components,
		Timestamp:  time.Now().UTC(),
	}
}

func (c *Checker) runOne(ctx context.Context, name string, reg registration, timeout time.Duration) ComponentHealth {
	start := time.Now()
	result, err := resilience.Call(ctx, timeout, "health check "+name, func(ctx context.Context) (ComponentHealth, error) {
		return reg.check(ctx), nil
	})
	if err != nil {
		result = ComponentHealth{Status: StatusDown, Message: err.Error()}
	}
	result.LatencyMs = float64(time.Since(start).Microseconds()) / 1000
	result.Optional = reg.optional
	if result.Status != StatusUp {
		c.logger.Warn("health check failing", "check", name, "status", result.Status, "message", result.Message)
	}
	return result
}

func aggregate(components map[string]ComponentHealth) Status {
	names := make([]string, 0, len(components))
	for name := range components {
		names = append(names, name)
	}
	sort.Strings(names)

	overall := StatusUp
	for _, name := range names {
		comp := components[name]
		switch {
		case comp.Status == StatusDown && !comp.Optional:
			return StatusDown
		case comp.Status != StatusUp:
			overall = StatusDegraded
		}
	}
	return overall
}

// PingCheck adapts a ping-style probe: any error marks the component down
// with the error as its message.
func PingCheck(ping func(ctx context.Context) error) Check {
	return func(ctx context.Context) ComponentHealth {
		if err := ping(ctx); err != nil {
			return ComponentHealth{Status: StatusDown, Message: err.Error()}
		}
		return ComponentHealth{Status: StatusUp}
	}
}

// StatusHandler answers a plain {"status":"ok"} without running checks.
func StatusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// LiveHandler reports that the process is serving; it runs no checks.
func (c *Checker) LiveHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
	}
}

// ReadyHandler runs every check. Only a down aggregate answers 503.
func (c *Checker) ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := c.Run(r.Context())
		status := http.StatusOK
		if report.Status == StatusDown {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, report)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Warn("failed to encode health response", "error", err)
	}
}

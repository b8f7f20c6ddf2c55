// Package tracing provides a lightweight span tree carried through contexts.
// Finished root spans are logged through slog at debug level, one record per
// span.
package tracing

import (
	"context"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/pkg/config"
)

type contextKey struct{}

// Span represents a timed operation within a trace. All methods are safe on
// a nil *Span, which is what unsampled requests carry.
type Span struct {
	Name      string
	TraceID   string
	StartTime time.Time
	Duration  time.Duration
	Children  []*Span
	Attrs     map[string]any
	mu        sync.Mutex
}

// Tracer decides which requests get a span tree.
type Tracer struct {
	enabled bool
	// threshold out of 10000 hashed trace IDs that are sampled
	threshold uint32
	logger    *slog.Logger
}

func NewTracer(cfg config.TracingConfig) *Tracer {
	rate := cfg.SampleRate
	if rate > 1 {
		rate = 1
	}
	if rate < 0 {
		rate = 0
	}
	return &Tracer{
		enabled:   cfg.Enabled,
		threshold: uint32(rate * 10000),
		logger:    slog.Default().With("component", "tracing"),
	}
}

// Sampled reports whether traceID is traced. The decision depends only on
// the ID so every span of a request agrees.
func (t *Tracer) Sampled(traceID string) bool {
	if t == nil || !t.enabled || t.threshold == 0 {
		return false
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(traceID))
	return h.Sum32()%10000 < t.threshold
}

// Start opens a root span when traceID is sampled. Otherwise ctx is
// returned unchanged with a nil span.
func (t *Tracer) Start(ctx context.Context, name, traceID string) (context.Context, *Span) {
	if !t.Sampled(traceID) {
		return ctx, nil
	}
	return StartSpan(ctx, name, traceID)
}

// Finish ends span and logs its tree.
func (t *Tracer) Finish(span *Span) {
	if span == nil {
		return
	}
	span.End()
	span.log(t.logger, 0)
}

// StartSpan creates a new root span and stores it in the returned context.
func StartSpan(ctx context.Context, name string, traceID string) (context.Context, *Span) {
	span := &Span{
		Name:      name,
		TraceID:   traceID,
		StartTime: time.Now(),
		Attrs:     make(map[string]any),
	}
	return context.WithValue(ctx, contextKey{}, span), span
}

// StartChildSpan creates a child of the span in ctx. Without a parent there
// is nothing to attach to and the returned span is nil.
func StartChildSpan(ctx context.Context, name string) (context.Context, *Span) {
	parent := SpanFromContext(ctx)
	if parent == nil {
		return ctx, nil
	}
	child := &Span{
		Name:      name,
		TraceID:   parent.TraceID,
		StartTime: time.Now(),
		Attrs:     make(map[string]any),
	}
	parent.mu.Lock()
	parent.Children = append(parent.Children, child)
	parent.mu.Unlock()
	return context.WithValue(ctx, contextKey{}, child), child
}

func (s *Span) End() {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.Duration = time.Since(s.StartTime)
	s.mu.Unlock()
}

func (s *Span) SetAttr(key string, value any) {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.Attrs[key] = value
	s.mu.Unlock()
}

// SpanFromContext extracts the current Span from ctx, or nil if none.
func SpanFromContext(ctx context.Context) *Span {
	span, _ := ctx.Value(contextKey{}).(*Span)
	return span
}

func (s *Span) log(logger *slog.Logger, depth int) {
	s.mu.Lock()
	attrs := []any{
		"trace_id", s.TraceID,
		"span", s.Name,
		"duration_ms", float64(s.Duration.Microseconds()) / 1000,
		"depth", depth,
	}
	for k, v := range s.Attrs {
		attrs = append(attrs, k, v)
	}
	children := append([]*Span(nil), s.Children...)
	s.mu.Unlock()

	logger.Debug("span", attrs...)
	for _, child := range children {
		child.log(logger, depth+1)
	}
}

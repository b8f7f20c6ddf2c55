// Package cache memoises engine results in Redis, keyed by snapshot
// generation so a reload can never serve results computed from an older
// catalog, even one loaded by another instance.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/catalog-query-engine/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/pkg/resilience"
	"github.com/goccy/go-json"
	"golang.org/x/sync/singleflight"
)

const DefaultPrefix = "catalog:"

// ErrMiss is returned by a Backend when the key is absent.
var ErrMiss = errors.New("cache miss")

// Backend stores opaque values with a TTL.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// RedisBackend adapts pkg/redis to Backend.
type RedisBackend struct {
	Client *pkgredis.Client
}

func (b RedisBackend) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := b.Client.Get(ctx, key)
	if pkgredis.IsNilError(err) {
		return nil, ErrMiss
	}
	return data, err
}

func (b RedisBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return b.Client.Set(ctx, key, value, ttl)
}

func (b RedisBackend) FlushByPattern(ctx context.Context, pattern string) (int64, error) {
	return b.Client.FlushByPattern(ctx, pattern)
}

type Options struct {
	Prefix  string
	TTL     time.Duration
	Breaker resilience.CircuitBreakerConfig
	Metrics *metrics.Metrics
}

// QueryCache is safe for concurrent use. A nil *QueryCache is a valid,
// disabled cache: GetOrCompute just computes.
type QueryCache struct {
	backend Backend
	prefix  string
	ttl     time.Duration
	breaker *resilience.CircuitBreaker
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
	errors  atomic.Int64
}

func New(backend Backend, opts Options) *QueryCache {
	if opts.Prefix == "" {
		opts.Prefix = DefaultPrefix
	}
	if opts.TTL <= 0 {
		opts.TTL = 5 * time.Minute
	}
	m := opts.Metrics
	if m != nil {
		m.CircuitBreakerState.WithLabelValues("query-cache").Set(float64(resilience.StateClosed))
		onChange := opts.Breaker.OnStateChange
		opts.Breaker.OnStateChange = func(name string, from, to resilience.State) {
			m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			if onChange != nil {
				onChange(name, from, to)
			}
		}
	}
	return &QueryCache{
		backend: backend,
		prefix:  opts.Prefix,
		ttl:     opts.TTL,
		breaker: resilience.NewCircuitBreaker("query-cache", opts.Breaker),
		metrics: m,
		logger:  slog.Default().With("component", "query-cache"),
	}
}

// Key builds the cache key for one operation on one snapshot. generation
// must be unique across every instance sharing the backend; fingerprint
// identifies the request parameters.
func (c *QueryCache) Key(generation, operation, fingerprint string) string {
	if c == nil {
		return ""
	}
	return c.prefix + generation + ":" + operation + ":" + fingerprint
}

// Get decodes the value at key into dst. Backend failures are logged and
// reported as a miss.
func (c *QueryCache) Get(ctx context.Context, key string, dst any) bool {
	var data []byte
	err := c.breaker.Execute(func() error {
		v, err := c.backend.Get(ctx, key)
		if errors.Is(err, ErrMiss) {
			return nil
		}
		data = v
		return err
	})
	if err != nil {
		c.errors.Add(1)
		c.logger.Warn("cache get failed", "key", key, "error", err)
		c.miss()
		return false
	}
	if data == nil {
		c.miss()
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		c.errors.Add(1)
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.miss()
		return false
	}
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
	c.logger.Debug("cache hit", "key", key)
	return true
}

func (c *QueryCache) miss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

// Set encodes v and stores it under key. Failures are logged only.
func (c *QueryCache) Set(ctx context.Context, key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	err = c.breaker.Execute(func() error {
		return c.backend.Set(ctx, key, data, c.ttl)
	})
	if err != nil {
		c.errors.Add(1)
		c.logger.Warn("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached value at key or computes, stores and
// returns it. Concurrent misses on one key share a single compute. The
// boolean reports a cache hit.
func GetOrCompute[T any](ctx context.Context, c *QueryCache, key string, compute func() (T, error)) (T, bool, error) {
	if c == nil {
		v, err := compute()
		return v, false, err
	}
	var cached T
	if c.Get(ctx, key, &cached) {
		return cached, true, nil
	}
	val, err, _ := c.group.Do(key, func() (any, error) {
		v, err := compute()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, key, v)
		return v, nil
	})
	if err != nil {
		var zero T
		return zero, false, err
	}
	return val.(T), false, nil
}

// Invalidate removes every key under the cache prefix.
func (c *QueryCache) Invalidate(ctx context.Context) (int64, error) {
	if c == nil {
		return 0, nil
	}
	deleted, err := c.backend.FlushByPattern(ctx, c.prefix+"*")
	if err != nil {
		return deleted, fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return deleted, nil
}

type Stats struct {
	Enabled bool    `json:"enabled"`
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	Errors  int64   `json:"errors"`
	HitRate float64 `json:"hitRate"`
	Breaker string  `json:"breaker,omitempty"`
}

func (c *QueryCache) Stats() Stats {
	if c == nil {
		return Stats{}
	}
	s := Stats{
		Enabled: true,
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Errors:  c.errors.Load(),
		Breaker: c.breaker.GetState().String(),
	}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	return s
}

package analytics

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/pkg/metrics"
)

// CollectorOptions configures buffering. Zero values take defaults.
type CollectorOptions struct {
	BufferSize    int
	BatchSize     int
	FlushInterval time.Duration
	// Local, when set, receives every tracked event synchronously so the
	// serving process can report its own statistics.
	Local   *Aggregator
	Metrics *metrics.Metrics
}

// Collector accepts events without blocking the request path and publishes
// them to Kafka in batches, either when BatchSize events are pending or
// every FlushInterval. A nil publisher disables publishing.
type Collector struct {
	publisher     kafka.Publisher
	eventCh       chan any
	batchSize     int
	flushInterval time.Duration
	local         *Aggregator
	metrics       *metrics.Metrics
	logger        *slog.Logger
	done          chan struct{}
	stop          chan struct{}
	started       atomic.Bool
	// mu orders Track against Close. eventCh is never closed; once closed is
	// set no further send can happen, so the final drain sees every event.
	mu     sync.RWMutex
	closed bool
}

func NewCollector(publisher kafka.Publisher, opts CollectorOptions) *Collector {
	if opts.BufferSize <= 0 {
		opts.BufferSize = 10000
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = time.Second
	}
	return &Collector{
		publisher:     publisher,
		eventCh:       make(chan any, opts.BufferSize),
		batchSize:     opts.BatchSize,
		flushInterval: opts.FlushInterval,
		local:         opts.Local,
		metrics:       opts.Metrics,
		logger:        slog.Default().With("component", "analytics-collector"),
		done:          make(chan struct{}),
		stop:          make(chan struct{}),
	}
}

// Start launches the publish loop. When ctx is cancelled the buffered
// events are flushed with a short deadline and the loop exits.
func (c *Collector) Start(ctx context.Context) {
	if !c.started.CompareAndSwap(false, true) {
		return
	}
	go c.run(ctx)
	c.logger.Info("analytics collector started",
		"buffer_size", cap(c.eventCh),
		"batch_size", c.batchSize,
		"flush_interval", c.flushInterval,
		"publishing", c.publisher != nil,
	)
}

func (c *Collector) run(ctx context.Context) {
	defer close(c.done)
	ticker := time.NewTicker(c.flushInterval)
	defer ticker.Stop()

	batch := make([]kafka.Event, 0, c.batchSize)
	flush := func(ctx context.Context) {
		if len(batch) == 0 {
			return
		}
		c.publish(ctx, batch)
		batch = batch[:0]
	}
	final := func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		for {
			select {
			case event := <-c.eventCh:
				batch = append(batch, toKafkaEvent(event))
				if len(batch) >= c.batchSize {
					flush(flushCtx)
				}
			default:
				flush(flushCtx)
				return
			}
		}
	}

	for {
		select {
		case event := <-c.eventCh:
			batch = append(batch, toKafkaEvent(event))
			if len(batch) >= c.batchSize {
				flush(ctx)
			}
		case <-ticker.C:
			flush(ctx)
		case <-c.stop:
			final()
			return
		case <-ctx.Done():
			final()
			return
		}
	}
}

func (c *Collector) publish(ctx context.Context, batch []kafka.Event) {
	if c.publisher == nil {
		return
	}
	if err := c.publisher.PublishBatch(ctx, batch); err != nil {
		c.logger.Error("failed to publish analytics batch", "events", len(batch), "error", err)
		c.count("failed", len(batch))
		return
	}
	c.count("published", len(batch))
}

// Track queues a QueryEvent or ReloadEvent. It never blocks: when the
// buffer is full, or the collector is closed, the event is dropped for Kafka
// but still counted locally. Track is safe to call concurrently with Close.
func (c *Collector) Track(event any) {
	if c == nil {
		return
	}
	if c.local != nil {
		c.local.Record(event)
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		c.count("dropped", 1)
		return
	}
	select {
	case c.eventCh <- event:
	default:
		c.count("dropped", 1)
		c.logger.Warn("analytics event dropped (buffer full)")
	}
}

// Close stops accepting events and waits for the final flush. Later calls
// to Track only reach the local aggregator.
func (c *Collector) Close() {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.stop)
	}
	c.mu.Unlock()
	if c.started.Load() {
		<-c.done
	}
}

func (c *Collector) count(status string, n int) {
	if c.metrics != nil {
		c.metrics.AnalyticsEventsTotal.WithLabelValues(status).Add(float64(n))
	}
}

// toKafkaEvent keys query events by operation so each operation's events
// stay ordered within a partition.
func toKafkaEvent(event any) kafka.Event {
	switch e := event.(type) {
	case QueryEvent:
		return kafka.Event{Key: "query:" + e.Operation, Type: string(EventQuery), RequestID: e.RequestID, Value: e}
	case ReloadEvent:
		return kafka.Event{Key: "reload", Type: string(EventReload), Value: e}
	default:
		return kafka.Event{Key: "analytics", Value: event}
	}
}

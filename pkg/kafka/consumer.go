package kafka

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/pkg/resilience"
	"github.com/segmentio/kafka-go"
)

// MessageHandler processes one record. Returning a resilience.Permanent
// error skips the record without retrying it.
type MessageHandler func(ctx context.Context, msg Message) error

type reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// ConsumerOptions overrides per-consumer settings. Zero fields keep the
// configured or default values.
type ConsumerOptions struct {
	// GroupID replaces the configured consumer group. Catalog instances use
	// a per-instance group so every instance sees every reload event.
	GroupID string
	// HandlerAttempts bounds retries of a failing handler before the record
	// is skipped.
	HandlerAttempts int
	// MaxFetchBackoff caps the pause between failed fetches.
	MaxFetchBackoff time.Duration
}

// ConsumerStats counts what the consume loop has done so far.
type ConsumerStats struct {
	Processed   int64 `json:"processed"`
	Skipped     int64 `json:"skipped"`
	FetchErrors int64 `json:"fetch_errors"`
}

// Consumer fetches records from one topic, hands each to a MessageHandler
// and commits it once handled or skipped.
type Consumer struct {
	reader          reader
	handler         MessageHandler
	handlerAttempts int
	maxBackoff      time.Duration
	logger          *slog.Logger

	processed   atomic.Int64
	skipped     atomic.Int64
	fetchErrors atomic.Int64
}

func NewConsumer(cfg config.KafkaConfig, topic string, handler MessageHandler, opts ...ConsumerOptions) *Consumer {
	var o ConsumerOptions
	if len(opts) > 0 {
		o = opts[0]
	}
	if o.GroupID == "" {
		o.GroupID = cfg.ConsumerGroup
	}
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       topic,
		GroupID:     o.GroupID,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafka.LastOffset,
	})
	c := newConsumer(r, handler, o)
	c.logger = c.logger.With("topic", topic, "group", o.GroupID)
	return c
}

func newConsumer(r reader, handler MessageHandler, o ConsumerOptions) *Consumer {
	if o.HandlerAttempts <= 0 {
		o.HandlerAttempts = 3
	}
	if o.MaxFetchBackoff <= 0 {
		o.MaxFetchBackoff = 5 * time.Second
	}
	return &Consumer{
		reader:          r,
		handler:         handler,
		handlerAttempts: o.HandlerAttempts,
		maxBackoff:      o.MaxFetchBackoff,
		logger:          slog.Default().With("component", "kafka-consumer"),
	}
}

// Start runs the consume loop until ctx is cancelled, then closes the
// reader.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("consumer started")
	backoff := time.Duration(0)
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("consumer stopping", "reason", ctx.Err())
				return c.reader.Close()
			}
			c.fetchErrors.Add(1)
			backoff = nextBackoff(backoff, c.maxBackoff)
			c.logger.Error("failed to fetch message", "error", err, "backoff", backoff)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return c.reader.Close()
			}
			continue
		}
		backoff = 0
		c.dispatch(ctx, msg)
	}
}

func (c *Consumer) dispatch(ctx context.Context, raw kafka.Message) {
	msg := decode(raw)
	if msg.RequestID != "" {
		ctx = logger.WithRequestID(ctx, msg.RequestID)
	}
	log := c.logger.With("partition", msg.Partition, "offset", msg.Offset)
	log.Debug("message received", "key", string(msg.Key), "type", msg.Type, "value_size", len(msg.Value))

	permanent := false
	err := resilience.Retry(ctx, "kafka-handler", resilience.RetryConfig{
		MaxAttempts:  c.handlerAttempts,
		InitialDelay: 50 * time.Millisecond,
		MaxDelay:     time.Second,
	}, func() error {
		herr := c.handler(ctx, msg)
		permanent = permanent || errors.As(herr, new(*resilience.PermanentError))
		return herr
	})
	switch {
	case err == nil:
		c.processed.Add(1)
	case ctx.Err() != nil:
		// Left uncommitted; the group redelivers it after a restart.
		return
	default:
		if permanent {
			log.Warn("skipping unprocessable message", "error", err)
		} else {
			log.Error("giving up on message", "attempts", c.handlerAttempts, "error", err)
		}
		c.skipped.Add(1)
	}
	if err := c.reader.CommitMessages(ctx, raw); err != nil {
		log.Error("failed to commit message", "error", err)
	}
}

func (c *Consumer) Stats() ConsumerStats {
	return ConsumerStats{
		Processed:   c.processed.Load(),
		Skipped:     c.skipped.Load(),
		FetchErrors: c.fetchErrors.Load(),
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}

func nextBackoff(current, limit time.Duration) time.Duration {
	if current <= 0 {
		return 100 * time.Millisecond
	}
	current *= 2
	if current > limit {
		return limit
	}
	return current
}

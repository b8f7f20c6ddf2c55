package store

import (
	"context"
	"fmt"
	"time"

	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/pkg/resilience"
	"github.com/google/uuid"
)

// ReloadEvent asks every catalog instance to reload its snapshot. It is
// published by catalogctl after an import and consumed by ReloadConsumer.
type ReloadEvent struct {
	ID          string    `json:"id"`
	Reason      string    `json:"reason"`
	RequestedBy string    `json:"requestedBy,omitempty"`
	RequestedAt time.Time `json:"requestedAt"`
}

// NewReloadEvent stamps a reload request with a fresh ID.
func NewReloadEvent(reason, requestedBy string) ReloadEvent {
	return ReloadEvent{
		ID:          uuid.NewString(),
		Reason:      reason,
		RequestedBy: requestedBy,
		RequestedAt: time.Now().UTC(),
	}
}

// HandleReloadMessage returns a Kafka MessageHandler that reloads the store
// for every reload event. Undecodable records are skipped as permanent
// failures so a bad record cannot block the partition.
func (s *Store) HandleReloadMessage() kafka.MessageHandler {
	return func(ctx context.Context, msg kafka.Message) error {
		log := logger.FromContext(ctx).With("component", "reload-consumer")
		event, err := kafka.DecodeJSON[ReloadEvent](msg.Value)
		if err != nil {
			return resilience.Permanent(fmt.Errorf("reload event at offset %d: %w", msg.Offset, err))
		}
		log.Info("reload requested",
			"event_id", event.ID,
			"reason", event.Reason,
			"requested_by", event.RequestedBy,
		)
		// Detached so consumer shutdown cannot abandon a reload that is
		// already loading.
		report := s.Reload(context.WithoutCancel(ctx))
		if report.Degraded() {
			log.Warn("reload finished degraded",
				"event_id", event.ID,
				"version", report.Version,
				"products_error", report.ProductsError,
				"orders_error", report.OrdersError,
			)
		}
		return nil
	}
}

// RunPeriodic reloads the store every interval until ctx is cancelled.
// A non-positive interval returns immediately. A reload already running when
// ctx is cancelled completes rather than publishing a half-loaded catalog.
func (s *Store) RunPeriodic(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	s.logger.Info("periodic reload enabled", "interval", interval)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Reload(context.WithoutCancel(ctx))
		}
	}
}

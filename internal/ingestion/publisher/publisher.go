// Package publisher imports catalog files into the PostgreSQL source and
// publishes a reload event so running catalog instances pick up the result.
package publisher

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/internal/ingestion/validator"
	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/internal/store"
	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/pkg/logger"
)

// ReloadKey is the partition key of every reload event so they stay ordered.
const ReloadKey = "catalog-reload"

// Importer replaces the stored catalog atomically.
type Importer interface {
	Import(ctx context.Context, products []catalog.Product, orders []catalog.Order) error
}

// Publisher coordinates the import and the reload announcement.
type Publisher struct {
	target Importer
	events kafka.Publisher
	logger *slog.Logger
}

// New creates a Publisher. events may be nil, in which case reload requests
// are logged and skipped.
func New(target Importer, events kafka.Publisher) *Publisher {
	return &Publisher{
		target: target,
		events: events,
		logger: slog.Default().With("component", "catalog-import"),
	}
}

// Import loads and validates the files, writes them in one transaction and,
// when requested, publishes a reload event. A failed publish does not undo
// the import; the error is returned alongside the result.
func (p *Publisher) Import(ctx context.Context, req *ingestion.ImportRequest) (*ingestion.ImportResult, error) {
	if err := validator.ValidateImportRequest(req); err != nil {
		return nil, err
	}

	src := catalog.NewFileSource(req.ProductsPath, req.OrdersPath)
	products, err := src.LoadProducts(ctx)
	if err != nil {
		return nil, err
	}
	var orders []catalog.Order
	if req.OrdersPath != "" {
		if orders, err = src.LoadOrders(ctx); err != nil {
			return nil, err
		}
	}

	dangling, err := validator.ValidateCatalog(products, orders)
	if err != nil {
		return nil, err
	}
	result := &ingestion.ImportResult{
		Products:      len(products),
		Orders:        len(orders),
		DanglingLines: dangling,
		DryRun:        req.DryRun,
	}
	if dangling > 0 {
		p.logger.Warn("order lines reference products outside the catalog", "lines", dangling)
	}
	if req.DryRun {
		p.logger.Info("dry run, nothing written", "products", result.Products, "orders", result.Orders)
		return result, nil
	}

	if err := p.target.Import(ctx, products, orders); err != nil {
		return nil, fmt.Errorf("importing catalog: %w", err)
	}

	if !req.Reload {
		return result, nil
	}
	eventID, err := p.RequestReload(ctx, "import", req.RequestedBy)
	result.ReloadEventID = eventID
	return result, err
}

// RequestReload publishes a reload event and returns its ID.
func (p *Publisher) RequestReload(ctx context.Context, reason, requestedBy string) (string, error) {
	if p.events == nil {
		p.logger.Warn("no event publisher configured, reload not requested", "reason", reason)
		return "", nil
	}
	event := store.NewReloadEvent(reason, requestedBy)
	if err := p.events.Publish(ctx, kafka.Event{Key: ReloadKey, Type: ReloadKey, RequestID: logger.RequestID(ctx), Value: event}); err != nil {
		p.logger.Error("failed to publish reload event",
			"event_id", event.ID,
			"error", err,
		)
		return "", fmt.Errorf("publishing reload event: %w", err)
	}
	p.logger.Info("reload requested",
		"event_id", event.ID,
		"reason", reason,
		"requested_by", requestedBy,
	)
	return event.ID, nil
}

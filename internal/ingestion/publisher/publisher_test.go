package publisher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/internal/ingestion/validator"
	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/internal/store"
	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/pkg/kafka"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	productsFile = "../../../data/products.json"
	ordersFile   = "../../../data/orders.json"
)

type fakeImporter struct {
	products []catalog.Product
	orders   []catalog.Order
	calls    int
	err      error
}

func (f *fakeImporter) Import(_ context.Context, products []catalog.Product, orders []catalog.Order) error {
	f.calls++
	f.products, f.orders = products, orders
	return f.err
}

type fakeEvents struct {
	events []kafka.Event
	err    error
}

func (f *fakeEvents) Publish(_ context.Context, event kafka.Event) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}

func (f *fakeEvents) PublishBatch(ctx context.Context, events []kafka.Event) error {
	for _, e := range events {
		if err := f.Publish(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func TestImport(t *testing.T) {
	target := &fakeImporter{}
	events := &fakeEvents{}
	p := New(target, events)

	result, err := p.Import(context.Background(), &ingestion.ImportRequest{
		ProductsPath: productsFile,
		OrdersPath:   ordersFile,
		RequestedBy:  "ops",
		Reload:       true,
	})
	require.NoError(t, err)
	assert.Equal(t, 5, result.Products)
	assert.Equal(t, 4, result.Orders)
	assert.Equal(t, 0, result.DanglingLines)
	assert.Equal(t, 1, target.calls)
	assert.Equal(t, "p1", target.products[0].ID)

	require.Len(t, events.events, 1)
	assert.Equal(t, ReloadKey, events.events[0].Key)
	event, ok := events.events[0].Value.(store.ReloadEvent)
	require.True(t, ok)
	assert.Equal(t, "import", event.Reason)
	assert.Equal(t, "ops", event.RequestedBy)
	assert.Equal(t, event.ID, result.ReloadEventID)
}

func TestImportDryRunWritesNothing(t *testing.T) {
	target := &fakeImporter{}
	events := &fakeEvents{}
	result, err := New(target, events).Import(context.Background(), &ingestion.ImportRequest{
		ProductsPath: productsFile,
		OrdersPath:   ordersFile,
		Reload:       true,
		DryRun:       true,
	})
	require.NoError(t, err)
	assert.True(t, result.DryRun)
	assert.Zero(t, target.calls)
	assert.Empty(t, events.events)
}

func TestImportWithoutOrders(t *testing.T) {
	target := &fakeImporter{}
	result, err := New(target, nil).Import(context.Background(), &ingestion.ImportRequest{
		ProductsPath: productsFile,
		Reload:       true,
	})
	require.NoError(t, err)
	assert.Zero(t, result.Orders)
	assert.Empty(t, target.orders)
	assert.Empty(t, result.ReloadEventID)
}

func TestImportRejectsInvalidCatalog(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "products.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"id":"x","price":-3}]`), 0o644))

	target := &fakeImporter{}
	_, err := New(target, nil).Import(context.Background(), &ingestion.ImportRequest{ProductsPath: path})
	var verr *validator.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Zero(t, target.calls)
}

func TestImportMissingFile(t *testing.T) {
	_, err := New(&fakeImporter{}, nil).Import(context.Background(), &ingestion.ImportRequest{
		ProductsPath: filepath.Join(t.TempDir(), "missing.json"),
	})
	require.Error(t, err)
}

func TestImportFailureSkipsReload(t *testing.T) {
	target := &fakeImporter{err: errors.New("tx aborted")}
	events := &fakeEvents{}
	_, err := New(target, events).Import(context.Background(), &ingestion.ImportRequest{
		ProductsPath: productsFile,
		Reload:       true,
	})
	require.ErrorContains(t, err, "tx aborted")
	assert.Empty(t, events.events)
}

func TestRequestReloadPublishFailure(t *testing.T) {
	p := New(&fakeImporter{}, &fakeEvents{err: errors.New("broker down")})
	id, err := p.RequestReload(context.Background(), "manual", "")
	require.ErrorContains(t, err, "broker down")
	assert.Empty(t, id)
}

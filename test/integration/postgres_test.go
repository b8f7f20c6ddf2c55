package integration

import (
	"context"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/internal/analytics/aggregator"
	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/internal/ingestion/publisher"
	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/internal/searcher/criteria"
	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/internal/store"
	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/pkg/resilience"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresSourceRoundTrip(t *testing.T) {
	db := skipIfNoPostgres(t)
	ctx := context.Background()

	pg := catalog.NewPostgresSource(db)
	require.NoError(t, pg.EnsureSchema(ctx))

	result, err := publisher.New(pg, nil).Import(ctx, &ingestion.ImportRequest{
		ProductsPath: productsFile,
		OrdersPath:   ordersFile,
	})
	require.NoError(t, err)
	assert.Equal(t, 5, result.Products)

	products, err := pg.LoadProducts(ctx)
	require.NoError(t, err)
	require.Len(t, products, 5)
	ids := make([]string, len(products))
	for i, p := range products {
		ids[i] = p.ID
	}
	assert.Equal(t, []string{"p1", "p2", "p3", "p4", "p5"}, ids)
	assert.Equal(t, []string{"running", "shoes"}, products[0].Tags)

	orders, err := pg.LoadOrders(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 4)
	assert.Equal(t, "o1", orders[0].OrderID)
	assert.Equal(t, []string{"p1", "p5"}, orders[0].ProductIDs())
}

func TestStoreOverPostgres(t *testing.T) {
	db := skipIfNoPostgres(t)
	ctx := context.Background()

	pg := catalog.NewPostgresSource(db)
	require.NoError(t, pg.EnsureSchema(ctx))
	_, err := publisher.New(pg, nil).Import(ctx, &ingestion.ImportRequest{
		ProductsPath: productsFile,
		OrdersPath:   ordersFile,
	})
	require.NoError(t, err)

	s := store.New(pg, store.Options{Retry: resilience.RetryConfig{MaxAttempts: 1}})
	report := s.Reload(ctx)
	require.False(t, report.Degraded(), "%+v", report)
	assert.Equal(t, 5, report.Products)

	page := s.SearchAndFilter(criteria.Criteria{Search: "running shoe", Sort: criteria.SortRating})
	require.Len(t, page.Items, 2)
	assert.Equal(t, "p2", page.Items[0].ID)
	assert.Equal(t, "p1", page.Items[1].ID)

	recs := s.Recommendations("p1", 3)
	require.Len(t, recs, 2)
	assert.Equal(t, "p5", recs[0].ID)
	assert.Equal(t, "p4", recs[1].ID)
}

func TestAnalyticsSnapshotStore(t *testing.T) {
	db := skipIfNoPostgres(t)
	ctx := context.Background()

	st := aggregator.NewStore(db)
	require.NoError(t, st.EnsureSchema(ctx))

	agg := analytics.NewAggregator()
	agg.Record(analytics.QueryEvent{Operation: analytics.OpSearch, Query: "integration probe", TotalHits: 0})
	agg.Record(analytics.QueryEvent{Operation: analytics.OpSearch, Query: "integration probe", TotalHits: 0})
	require.NoError(t, st.SaveSnapshot(ctx, agg.Stats()))

	latest, err := st.LatestSnapshot(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, int64(2), latest.TotalQueries)
	require.NotEmpty(t, latest.ZeroResultQueries)
	assert.Equal(t, "integration probe", latest.ZeroResultQueries[0].Query)

	list, err := st.ListSnapshots(ctx, 1)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, latest.TotalQueries, list[0].TotalQueries)

	restored := analytics.NewAggregator()
	restored.Restore(*latest)
	assert.Equal(t, int64(2), restored.Stats().TotalQueries)
}

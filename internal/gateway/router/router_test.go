package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/internal/store"
	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/pkg/health"
	pkgmw "github.com/Adithya-Monish-Kumar-K/catalog-query-engine/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/pkg/resilience"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(t *testing.T) http.Handler {
	t.Helper()
	src := catalog.NewFileSource("../../../data/products.json", "../../../data/orders.json")
	s := store.New(src, store.Options{Retry: resilience.RetryConfig{MaxAttempts: 1}})
	s.Reload(context.Background())

	agg := analytics.NewAggregator()
	collector := analytics.NewCollector(nil, analytics.CollectorOptions{Local: agg})
	t.Cleanup(collector.Close)

	return New(Deps{
		Handler:    handler.New(s, handler.Options{Tracker: collector}),
		Health:     health.NewChecker(),
		Analytics:  analytics.NewHandler(agg, nil),
		AdminToken: "letmein",
	})
}

func get(h http.Handler, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestRoutes(t *testing.T) {
	h := newRouter(t)
	for _, target := range []string{
		"/health",
		"/health/live",
		"/health/ready",
		"/api/v1/products",
		"/api/v1/products/metadata",
		"/api/v1/metadata",
		"/api/v1/products/p1",
		"/api/v1/products/p1/recommendations",
		"/api/v1/catalog/stats",
		"/api/v1/cache/stats",
		"/api/v1/analytics",
	} {
		rec := get(h, target)
		assert.Equal(t, http.StatusOK, rec.Code, target)
		assert.NotEmpty(t, rec.Header().Get(pkgmw.RequestIDHeader), target)
	}
}

func TestMetadataAliasMatches(t *testing.T) {
	h := newRouter(t)
	assert.JSONEq(t,
		get(h, "/api/v1/products/metadata?category=footwear").Body.String(),
		get(h, "/api/v1/metadata?category=footwear").Body.String(),
	)
}

func TestAdminRoutesRequireToken(t *testing.T) {
	h := newRouter(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/admin/reload", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/reload", nil)
	req.Header.Set("X-Admin-Token", "letmein")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"version":2`)
}

func TestAnalyticsSeesServedQueries(t *testing.T) {
	h := newRouter(t)
	get(h, "/api/v1/products?q=running")
	get(h, "/api/v1/products?q=running")
	rec := get(h, "/api/v1/analytics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"query":"running","count":2`)
}

func TestUnknownRouteAndMethod(t *testing.T) {
	h := newRouter(t)
	assert.Equal(t, http.StatusNotFound, get(h, "/api/v1/nowhere").Code)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/products", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

// Package router wires the catalog API routes and applies the middleware
// chain.
package router

import (
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/internal/auth/ratelimit"
	gwmw "github.com/Adithya-Monish-Kumar-K/catalog-query-engine/internal/gateway/middleware"
	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/pkg/metrics"
	pkgmw "github.com/Adithya-Monish-Kumar-K/catalog-query-engine/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/pkg/tracing"
)

// Deps are the components behind the routes. Everything except Handler
// and Health may be nil.
type Deps struct {
	Handler        *handler.Handler
	Health         *health.Checker
	Analytics      *analytics.Handler
	Limiter        *ratelimit.Limiter
	Metrics        *metrics.Metrics
	Tracer         *tracing.Tracer
	AdminToken     string
	AllowedOrigins []string
	RequestTimeout time.Duration
}

// New builds the full HTTP handler.
//
// Route table:
//
//	GET    /api/v1/products                       → listing with search, filters, sort, paging
//	GET    /api/v1/products/metadata              → facets
//	GET    /api/v1/metadata                       → facets (alias)
//	GET    /api/v1/products/{id}                  → product detail
//	GET    /api/v1/products/{id}/recommendations  → frequently bought together
//	GET    /api/v1/catalog/stats                  → snapshot summary
//	GET    /api/v1/cache/stats                    → query cache counters
//	POST   /api/v1/cache/invalidate               → drop cached results   (admin)
//	POST   /api/v1/admin/reload                   → rebuild the snapshot  (admin)
//	GET    /api/v1/analytics                      → in-process query stats
//	GET    /health, /health/live, /health/ready
//
// Middleware chain (outermost first):
//
//	RequestID → Trace → CORS → RateLimit → Metrics → Timeout → mux
func New(d Deps) http.Handler {
	h := d.Handler
	admin := gwmw.AdminToken(d.AdminToken)
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", health.StatusHandler())
	mux.HandleFunc("GET /health/live", d.Health.LiveHandler())
	mux.HandleFunc("GET /health/ready", d.Health.ReadyHandler())

	mux.HandleFunc("GET /api/v1/products", h.Products)
	mux.HandleFunc("GET /api/v1/products/metadata", h.Metadata)
	mux.HandleFunc("GET /api/v1/metadata", h.Metadata)
	mux.HandleFunc("GET /api/v1/products/{id}", h.Product)
	mux.HandleFunc("GET /api/v1/products/{id}/recommendations", h.Recommendations)

	mux.HandleFunc("GET /api/v1/catalog/stats", h.CatalogStats)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.Handle("POST /api/v1/cache/invalidate", admin(http.HandlerFunc(h.CacheInvalidate)))
	mux.Handle("POST /api/v1/admin/reload", admin(http.HandlerFunc(h.Reload)))

	if d.Analytics != nil {
		mux.HandleFunc("GET /api/v1/analytics", d.Analytics.Stats)
	}

	// applied inside-out
	var chain http.Handler = mux
	chain = pkgmw.Timeout(d.RequestTimeout)(chain)
	if d.Metrics != nil {
		chain = pkgmw.Metrics(d.Metrics)(chain)
	}
	if d.Limiter != nil {
		chain = gwmw.RateLimit(d.Limiter, d.Metrics)(chain)
	}
	chain = gwmw.CORS(gwmw.DefaultCORSConfig(d.AllowedOrigins))(chain)
	if d.Tracer != nil {
		chain = pkgmw.Trace(d.Tracer)(chain)
	}
	chain = pkgmw.RequestID(chain)
	return chain
}

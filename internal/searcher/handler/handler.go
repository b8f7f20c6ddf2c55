// Package handler serves the catalog query API over HTTP.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/internal/searcher/criteria"
	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/internal/store"
	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/catalog-query-engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/pkg/tracing"
	"github.com/goccy/go-json"
)

// Tracker receives one analytics event per engine call.
type Tracker interface {
	Track(event any)
}

type Options struct {
	Cache   *cache.QueryCache
	Tracker Tracker
	Metrics *metrics.Metrics
	Search  config.SearchConfig
}

type Handler struct {
	store   *store.Store
	cache   *cache.QueryCache
	tracker Tracker
	metrics *metrics.Metrics
	limits  criteria.Limits
	search  config.SearchConfig
	logger  *slog.Logger
}

func New(s *store.Store, opts Options) *Handler {
	if opts.Search.DefaultLimit <= 0 {
		opts.Search.DefaultLimit = criteria.DefaultLimit
	}
	if opts.Search.DefaultRecommendations <= 0 {
		opts.Search.DefaultRecommendations = 3
	}
	if opts.Search.MaxRecommendations <= 0 {
		opts.Search.MaxRecommendations = 20
	}
	return &Handler{
		store:   s,
		cache:   opts.Cache,
		tracker: opts.Tracker,
		metrics: opts.Metrics,
		limits:  criteria.Limits{DefaultLimit: opts.Search.DefaultLimit, MaxLimit: opts.Search.MaxLimit},
		search:  opts.Search,
		logger:  slog.Default().With("component", "catalog-handler"),
	}
}

// RecommendationsResponse is the body of the recommendations endpoint.
type RecommendationsResponse struct {
	ProductID string            `json:"productId"`
	Items     []catalog.Product `json:"items"`
}

// call carries the bookkeeping shared by every engine endpoint.
type call struct {
	operation string
	start     time.Time
	version   uint64
	span      *tracing.Span
	ctx       context.Context
}

func (h *Handler) begin(ctx context.Context, operation string, snap *store.Snapshot) *call {
	ctx, span := tracing.StartChildSpan(ctx, operation)
	span.SetAttr("snapshot_version", snap.Version())
	return &call{operation: operation, start: time.Now(), version: snap.Version(), span: span, ctx: ctx}
}

func (h *Handler) finish(c *call, event analytics.QueryEvent, cacheHit bool) {
	elapsed := time.Since(c.start)
	c.span.SetAttr("cache_hit", cacheHit)
	c.span.SetAttr("total", event.TotalHits)
	c.span.End()

	if h.metrics != nil {
		cacheStatus := "miss"
		if cacheHit {
			cacheStatus = "hit"
		}
		result := "ok"
		if event.TotalHits == 0 {
			result = "empty"
		}
		h.metrics.CatalogQueriesTotal.WithLabelValues(c.operation, result).Inc()
		h.metrics.QueryLatency.WithLabelValues(c.operation, cacheStatus).Observe(elapsed.Seconds())
		h.metrics.QueryResultsCount.WithLabelValues(c.operation).Observe(float64(event.TotalHits))
	}

	event.Type = analytics.EventQuery
	event.Operation = c.operation
	event.LatencyMs = float64(elapsed.Microseconds()) / 1000
	event.CacheHit = cacheHit
	event.SnapshotVersion = c.version
	event.Timestamp = time.Now().UTC()
	event.RequestID = logger.RequestID(c.ctx)

	logger.FromContext(c.ctx).Debug("catalog query served",
		"operation", c.operation,
		"query", event.Query,
		"product_id", event.ProductID,
		"total", event.TotalHits,
		"returned", event.Returned,
		"cache_hit", cacheHit,
		"latency_ms", event.LatencyMs,
	)
	if h.tracker != nil {
		h.tracker.Track(event)
	}
}

// Products serves GET /api/v1/products.
func (h *Handler) Products(w http.ResponseWriter, r *http.Request) {
	c, err := criteria.Parse(r.URL.Query(), h.limits)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	snap := h.store.Snapshot()
	call := h.begin(r.Context(), analytics.OpSearch, snap)
	key := h.cache.Key(snap.Generation(), analytics.OpSearch, c.Fingerprint())
	page, hit, err := cache.GetOrCompute(call.ctx, h.cache, key, func() (executor.Page, error) {
		return executor.SearchAndFilter(snap, c), nil
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.finish(call, analytics.QueryEvent{
		Query:     c.Search,
		Filters:   filters(c),
		TotalHits: page.Total,
		Returned:  len(page.Items),
	}, hit)
	h.writeJSON(w, http.StatusOK, page)
}

// Metadata serves the facet endpoint. Sort and paging parameters are
// validated but do not affect the result.
func (h *Handler) Metadata(w http.ResponseWriter, r *http.Request) {
	c, err := criteria.Parse(r.URL.Query(), h.limits)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	c = c.WithoutPaging()
	snap := h.store.Snapshot()
	call := h.begin(r.Context(), analytics.OpFacets, snap)
	key := h.cache.Key(snap.Generation(), analytics.OpFacets, c.Fingerprint())
	facets, hit, err := cache.GetOrCompute(call.ctx, h.cache, key, func() (executor.Facets, error) {
		return executor.FacetedMetadata(snap, c), nil
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.finish(call, analytics.QueryEvent{
		Query:     c.Search,
		Filters:   filters(c),
		TotalHits: len(facets.Categories) + len(facets.Brands),
	}, hit)
	h.writeJSON(w, http.StatusOK, facets)
}

// Product serves GET /api/v1/products/{id}.
func (h *Handler) Product(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	snap := h.store.Snapshot()
	call := h.begin(r.Context(), analytics.OpProduct, snap)
	product, ok := snap.Product(id)
	found := 0
	if ok {
		found = 1
	}
	h.finish(call, analytics.QueryEvent{ProductID: id, TotalHits: found, Returned: found}, false)
	if !ok {
		h.writeError(w, r, apperrors.Newf(apperrors.ErrProductNotFound, http.StatusNotFound, "product %q not found", id))
		return
	}
	h.writeJSON(w, http.StatusOK, product)
}

// Recommendations serves GET /api/v1/products/{id}/recommendations. An
// unknown product yields an empty list rather than an error.
func (h *Handler) Recommendations(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	limit := h.search.DefaultRecommendations
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > h.search.MaxRecommendations {
			h.writeError(w, r, apperrors.Invalid("invalid query parameters").WithDetails(map[string]string{
				"limit": "must be an integer between 1 and " + strconv.Itoa(h.search.MaxRecommendations),
			}))
			return
		}
		limit = n
	}

	snap := h.store.Snapshot()
	call := h.begin(r.Context(), analytics.OpRecommendations, snap)
	key := h.cache.Key(snap.Generation(), analytics.OpRecommendations, id+"\x00"+strconv.Itoa(limit))
	items, hit, err := cache.GetOrCompute(call.ctx, h.cache, key, func() ([]catalog.Product, error) {
		return store.Recommend(snap, id, limit), nil
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.finish(call, analytics.QueryEvent{ProductID: id, TotalHits: len(items), Returned: len(items)}, hit)
	h.writeJSON(w, http.StatusOK, RecommendationsResponse{ProductID: id, Items: items})
}

// Reload serves POST /api/v1/admin/reload. The reload outlives the request:
// a client disconnect or the request timeout does not abandon it.
func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	report := h.store.Reload(context.WithoutCancel(r.Context()))
	logger.FromContext(r.Context()).Info("reload requested over http",
		"version", report.Version,
		"degraded", report.Degraded(),
	)
	h.writeJSON(w, http.StatusOK, report)
}

// CatalogStats serves GET /api/v1/catalog/stats.
func (h *Handler) CatalogStats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.store.Snapshot().Stats())
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.cache.Stats())
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, r, apperrors.New(apperrors.ErrCatalogUnavailable, http.StatusServiceUnavailable, "caching is disabled"))
		return
	}
	deleted, err := h.cache.Invalidate(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keysDeleted": deleted})
}

// filters summarises the active filters for analytics.
func filters(c criteria.Criteria) map[string]string {
	out := make(map[string]string)
	if cats := c.NormalizedCategories(); len(cats) > 0 {
		out["category"] = strings.Join(cats, ",")
	}
	if brands := c.NormalizedBrands(); len(brands) > 0 {
		out["brand"] = strings.Join(brands, ",")
	}
	if c.MinPrice != nil {
		out["minPrice"] = strconv.FormatFloat(*c.MinPrice, 'f', -1, 64)
	}
	if c.MaxPrice != nil {
		out["maxPrice"] = strconv.FormatFloat(*c.MaxPrice, 'f', -1, 64)
	}
	if c.Availability != criteria.AvailabilityAny {
		out["availability"] = string(c.Availability)
	}
	if c.Sort != criteria.SortNone {
		out["sort"] = string(c.Sort)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *criteria.ValidationError
	if errors.As(err, &verr) {
		err = apperrors.Invalid("invalid query parameters").WithDetails(verr.Fields)
	}
	if status := apperrors.Write(w, err, logger.RequestID(r.Context())); status >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error("request failed", "path", r.URL.Path, "error", err)
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/pkg/metrics"
)

// unmatchedRoute labels requests that no route served, so scanners probing
// random paths cannot grow the label set.
const unmatchedRoute = "unmatched"

// Metrics records request count, latency and in-flight requests per route.
func Metrics(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m.HTTPRequestsInFlight.Inc()
			defer m.HTTPRequestsInFlight.Dec()

			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)

			route := routeLabel(r.URL.Path, sw.status)
			m.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(sw.status)).Inc()
			m.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}

// statusWriter remembers the status code written by the wrapped handler.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (sw *statusWriter) WriteHeader(code int) {
	if !sw.wroteHeader {
		sw.status = code
		sw.wroteHeader = true
	}
	sw.ResponseWriter.WriteHeader(code)
}

func (sw *statusWriter) Write(b []byte) (int, error) {
	sw.wroteHeader = true
	return sw.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (sw *statusWriter) Unwrap() http.ResponseWriter {
	return sw.ResponseWriter
}

func routeLabel(path string, status int) string {
	label := normalizePath(path)
	if status == http.StatusNotFound || status == http.StatusMethodNotAllowed {
		if !strings.HasPrefix(label, "/api/") && !strings.HasPrefix(label, "/health") {
			return unmatchedRoute
		}
	}
	return label
}

// productRoutes are the fixed segments under /api/v1/products; anything
// else in that position is a product ID.
var productRoutes = map[string]bool{"metadata": true}

// normalizePath collapses product IDs:
// /api/v1/products/p42/recommendations becomes
// /api/v1/products/{id}/recommendations.
func normalizePath(path string) string {
	const prefix = "/api/v1/products/"
	rest, ok := strings.CutPrefix(path, prefix)
	if !ok || rest == "" {
		return path
	}
	id, tail, _ := strings.Cut(rest, "/")
	if productRoutes[id] {
		return path
	}
	if tail == "" {
		return prefix + "{id}"
	}
	return prefix + "{id}/" + tail
}

package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Server exposes /metrics on its own port so scrapes bypass the API
// middleware (rate limiting, timeouts, CORS).
type Server struct {
	srv    *http.Server
	logger *slog.Logger
}

// NewServer builds a metrics server for g. A nil g serves the default
// registry.
func NewServer(port int, g prometheus.Gatherer) *Server {
	scrape := Handler()
	if g != nil {
		scrape = HandlerFor(g)
	}
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", scrape)
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body><h1>Catalog Query Engine</h1><p><a href="/metrics">/metrics</a></p></body></html>`)
	})
	return &Server{
		srv: &http.Server{
			Addr:         fmt.Sprintf(":%d", port),
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		logger: slog.Default().With("component", "metrics-server"),
	}
}

// Handler returns the server's mux, for tests.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Start serves in the background. Listen failures are logged; the API keeps
// running without metrics.
func (s *Server) Start() {
	go func() {
		s.logger.Info("metrics server listening", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("metrics server error", "error", err)
		}
	}()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

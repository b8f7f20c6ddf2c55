package analytics

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	apperrors "github.com/Adithya-Monish-Kumar-K/catalog-query-engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/pkg/logger"
	"github.com/goccy/go-json"
)

// SnapshotLister reads persisted statistics, newest first.
type SnapshotLister interface {
	ListSnapshots(ctx context.Context, limit int) ([]AggregatedStats, error)
}

// Handler serves aggregated statistics and, when a lister is configured,
// their persisted history.
type Handler struct {
	aggregator *Aggregator
	snapshots  SnapshotLister
	logger     *slog.Logger
}

// NewHandler creates a Handler. snapshots may be nil.
func NewHandler(aggregator *Aggregator, snapshots SnapshotLister) *Handler {
	return &Handler{
		aggregator: aggregator,
		snapshots:  snapshots,
		logger:     slog.Default().With("component", "analytics-handler"),
	}
}

// Register mounts the analytics routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/analytics", h.Stats)
	mux.HandleFunc("GET /api/v1/analytics/snapshots", h.Snapshots)
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.aggregator.Stats())
}

// Snapshots lists up to ?limit= (default 10, max 100) persisted snapshots.
func (h *Handler) Snapshots(w http.ResponseWriter, r *http.Request) {
	if h.snapshots == nil {
		apperrors.Write(w, apperrors.New(apperrors.ErrCatalogUnavailable, http.StatusServiceUnavailable, "snapshot storage is disabled"), logger.RequestID(r.Context()))
		return
	}
	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 100 {
			apperrors.Write(w, apperrors.Invalid("limit must be between 1 and 100"), logger.RequestID(r.Context()))
			return
		}
		limit = n
	}
	snaps, err := h.snapshots.ListSnapshots(r.Context(), limit)
	if err != nil {
		logger.FromContext(r.Context()).Error("failed to list analytics snapshots", "error", err)
		apperrors.Write(w, apperrors.New(apperrors.ErrInternal, http.StatusInternalServerError, "failed to list snapshots"), logger.RequestID(r.Context()))
		return
	}
	if snaps == nil {
		snaps = []AggregatedStats{}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"snapshots": snaps})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to write analytics response", "error", err)
	}
}

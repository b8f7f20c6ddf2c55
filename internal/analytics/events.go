// Package analytics records what the catalog is asked and how it answers:
// query events are buffered and published to Kafka, then aggregated into
// rolling statistics by the analytics service.
package analytics

import "time"

type EventType string

const (
	EventQuery  EventType = "query"
	EventReload EventType = "reload"
)

// Operations reported in QueryEvent.Operation.
const (
	OpSearch          = "search"
	OpFacets          = "facets"
	OpProduct         = "product"
	OpRecommendations = "recommendations"
)

// QueryEvent describes one engine call.
type QueryEvent struct {
	Type            EventType         `json:"type"`
	Operation       string            `json:"operation"`
	Query           string            `json:"query,omitempty"`
	Filters         map[string]string `json:"filters,omitempty"`
	ProductID       string            `json:"product_id,omitempty"`
	TotalHits       int               `json:"total_hits"`
	Returned        int               `json:"returned"`
	LatencyMs       float64           `json:"latency_ms"`
	CacheHit        bool              `json:"cache_hit"`
	SnapshotVersion uint64            `json:"snapshot_version"`
	Timestamp       time.Time         `json:"timestamp"`
	RequestID       string            `json:"request_id,omitempty"`
}

// ReloadEvent reports a published catalog snapshot.
type ReloadEvent struct {
	Type       EventType `json:"type"`
	Version    uint64    `json:"version"`
	Products   int       `json:"products"`
	Orders     int       `json:"orders"`
	Degraded   bool      `json:"degraded"`
	DurationMs int64     `json:"duration_ms"`
	Timestamp  time.Time `json:"timestamp"`
}

// envelope reads just the discriminator of an encoded event.
type envelope struct {
	Type EventType `json:"type"`
}

package analytics

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/pkg/resilience"
)

// latencyWindow bounds the samples kept for percentiles.
const latencyWindow = 10000

type AggregatedStats struct {
	TotalQueries      int64            `json:"total_queries"`
	ByOperation       map[string]int64 `json:"by_operation"`
	CacheHits         int64            `json:"cache_hits"`
	CacheMisses       int64            `json:"cache_misses"`
	ZeroResultCount   int64            `json:"zero_result_count"`
	AvgLatencyMs      float64          `json:"avg_latency_ms"`
	P50LatencyMs      float64          `json:"p50_latency_ms"`
	P95LatencyMs      float64          `json:"p95_latency_ms"`
	P99LatencyMs      float64          `json:"p99_latency_ms"`
	TopQueries        []QueryCount     `json:"top_queries"`
	ZeroResultQueries []QueryCount     `json:"zero_result_queries"`
	TopRecommendedFor []QueryCount     `json:"top_recommended_for"`
	Reloads           int64            `json:"reloads"`
	DegradedReloads   int64            `json:"degraded_reloads"`
	SnapshotVersion   uint64           `json:"snapshot_version"`
	QueriesPerMinute  float64          `json:"queries_per_minute"`
}

type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// Aggregator folds events into rolling statistics. It is safe for
// concurrent use.
type Aggregator struct {
	mu                sync.Mutex
	totalQueries      int64
	byOperation       map[string]int64
	cacheHits         int64
	cacheMisses       int64
	zeroResults       int64
	latencies         []float64
	next              int
	queryCounts       map[string]int64
	zeroResultQueries map[string]int64
	recommendedFor    map[string]int64
	reloads           int64
	degradedReloads   int64
	snapshotVersion   uint64
	startTime         time.Time
	now               func() time.Time

	logger *slog.Logger
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		byOperation:       make(map[string]int64),
		latencies:         make([]float64, 0, 1024),
		queryCounts:       make(map[string]int64),
		zeroResultQueries: make(map[string]int64),
		recommendedFor:    make(map[string]int64),
		startTime:         time.Now(),
		now:               time.Now,
		logger:            slog.Default().With("component", "analytics-aggregator"),
	}
}

// HandleEvent decodes Kafka messages produced by Collector. The event-type
// header selects the decoder; records published without it fall back to the
// type field in the body. Undecodable records are skipped.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, msg kafka.Message) error {
		eventType := EventType(msg.Type)
		if eventType == "" {
			env, err := kafka.DecodeJSON[envelope](msg.Value)
			if err != nil {
				return resilience.Permanent(err)
			}
			eventType = env.Type
		}
		switch eventType {
		case EventQuery:
			event, err := kafka.DecodeJSON[QueryEvent](msg.Value)
			if err != nil {
				return resilience.Permanent(err)
			}
			agg.Record(event)
		case EventReload:
			event, err := kafka.DecodeJSON[ReloadEvent](msg.Value)
			if err != nil {
				return resilience.Permanent(err)
			}
			agg.Record(event)
		default:
			agg.logger.Warn("ignoring analytics event of unknown type", "type", eventType, "key", string(msg.Key))
		}
		return nil
	}
}

// Record folds one QueryEvent or ReloadEvent. Other values are ignored.
func (a *Aggregator) Record(event any) {
	switch e := event.(type) {
	case QueryEvent:
		a.recordQuery(e)
	case *QueryEvent:
		a.recordQuery(*e)
	case ReloadEvent:
		a.recordReload(e)
	case *ReloadEvent:
		a.recordReload(*e)
	}
}

func (a *Aggregator) recordQuery(event QueryEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.totalQueries++
	a.byOperation[event.Operation]++
	if event.CacheHit {
		a.cacheHits++
	} else {
		a.cacheMisses++
	}
	if len(a.latencies) < latencyWindow {
		a.latencies = append(a.latencies, event.LatencyMs)
	} else {
		a.latencies[a.next] = event.LatencyMs
		a.next = (a.next + 1) % latencyWindow
	}
	if event.SnapshotVersion > a.snapshotVersion {
		a.snapshotVersion = event.SnapshotVersion
	}

	switch event.Operation {
	case OpSearch:
		query := strings.ToLower(strings.TrimSpace(event.Query))
		if query == "" {
			return
		}
		a.queryCounts[query]++
		if event.TotalHits == 0 {
			a.zeroResults++
			a.zeroResultQueries[query]++
		}
	case OpRecommendations:
		if event.ProductID != "" {
			a.recommendedFor[event.ProductID]++
		}
	}
}

func (a *Aggregator) recordReload(event ReloadEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reloads++
	if event.Degraded {
		a.degradedReloads++
	}
	if event.Version > a.snapshotVersion {
		a.snapshotVersion = event.Version
	}
}

func (a *Aggregator) Stats() AggregatedStats {
	a.mu.Lock()
	defer a.mu.Unlock()

	stats := AggregatedStats{
		TotalQueries:      a.totalQueries,
		ByOperation:       make(map[string]int64, len(a.byOperation)),
		CacheHits:         a.cacheHits,
		CacheMisses:       a.cacheMisses,
		ZeroResultCount:   a.zeroResults,
		TopQueries:        topN(a.queryCounts, 10),
		ZeroResultQueries: topN(a.zeroResultQueries, 10),
		TopRecommendedFor: topN(a.recommendedFor, 10),
		Reloads:           a.reloads,
		DegradedReloads:   a.degradedReloads,
		SnapshotVersion:   a.snapshotVersion,
	}
	for op, n := range a.byOperation {
		stats.ByOperation[op] = n
	}
	if len(a.latencies) > 0 {
		sorted := slices.Clone(a.latencies)
		slices.Sort(sorted)
		var sum float64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = sum / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	if elapsed := a.now().Sub(a.startTime).Minutes(); elapsed > 0 {
		stats.QueriesPerMinute = float64(stats.TotalQueries) / elapsed
	}
	return stats
}

// Restore seeds the counters from a persisted snapshot so totals survive a
// restart. Latency samples and rates start afresh.
func (a *Aggregator) Restore(stats AggregatedStats) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.totalQueries = stats.TotalQueries
	for op, n := range stats.ByOperation {
		a.byOperation[op] = n
	}
	a.cacheHits = stats.CacheHits
	a.cacheMisses = stats.CacheMisses
	a.zeroResults = stats.ZeroResultCount
	for _, qc := range stats.TopQueries {
		a.queryCounts[qc.Query] = qc.Count
	}
	for _, qc := range stats.ZeroResultQueries {
		a.zeroResultQueries[qc.Query] = qc.Count
	}
	for _, qc := range stats.TopRecommendedFor {
		a.recommendedFor[qc.Query] = qc.Count
	}
	a.reloads = stats.Reloads
	a.degradedReloads = stats.DegradedReloads
	a.snapshotVersion = stats.SnapshotVersion
}

func percentile(sorted []float64, pct int) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// topN returns the n largest counts, ties broken by key so output is
// stable.
func topN(counts map[string]int64, n int) []QueryCount {
	result := make([]QueryCount, 0, len(counts))
	for query, count := range counts {
		result = append(result, QueryCount{Query: query, Count: count})
	}
	slices.SortFunc(result, func(a, b QueryCount) int {
		if a.Count != b.Count {
			if a.Count > b.Count {
				return -1
			}
			return 1
		}
		return strings.Compare(a.Query, b.Query)
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}

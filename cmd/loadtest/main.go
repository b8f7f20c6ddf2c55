// Command loadtest drives concurrent catalog queries against a running
// catalog service and reports per-endpoint latency and status codes.
//
// Usage:
//
//	go run ./cmd/loadtest -url http://localhost:8080 -concurrency 20 -duration 30s -rps 500
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"slices"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

type Config struct {
	BaseURL     string
	Concurrency int
	Duration    time.Duration
	RPS         float64
	ProductIDs  []string
}

// request is one entry of the traffic mix.
type request struct {
	endpoint string
	path     string
}

// mix builds the request rotation: mostly listings with a spread of
// searches, filters and sorts, plus facet and recommendation lookups.
func mix(productIDs []string) []request {
	listings := []url.Values{
		{},
		{"q": {"running shoes"}},
		{"q": {"watch"}},
		{"q": {"shoe running"}, "sort": {"rating"}},
		{"category": {"footwear"}, "sort": {"price_asc"}},
		{"brand": {"nike,adidas"}, "availability": {"in-stock"}},
		{"minPrice": {"20"}, "maxPrice": {"150"}, "sort": {"popular"}},
		{"q": {"!!!"}},
		{"page": {"2"}, "limit": {"2"}},
	}
	var out []request
	for _, params := range listings {
		out = append(out, request{endpoint: "products", path: "/api/v1/products?" + params.Encode()})
	}
	for _, params := range []url.Values{{}, {"category": {"footwear"}}, {"q": {"running"}, "brand": {"nike"}}} {
		out = append(out, request{endpoint: "metadata", path: "/api/v1/products/metadata?" + params.Encode()})
	}
	for _, id := range productIDs {
		out = append(out,
			request{endpoint: "product", path: "/api/v1/products/" + url.PathEscape(id)},
			request{endpoint: "recommendations", path: "/api/v1/products/" + url.PathEscape(id) + "/recommendations?limit=3"},
		)
	}
	return out
}

type endpointStats struct {
	mu        sync.Mutex
	latencies []time.Duration
	codes     map[int]int64
	errors    int64
}

type Stats struct {
	total     atomic.Int64
	mu        sync.Mutex
	endpoints map[string]*endpointStats
}

func NewStats() *Stats {
	return &Stats{endpoints: make(map[string]*endpointStats)}
}

func (s *Stats) endpoint(name string) *endpointStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.endpoints[name]
	if !ok {
		e = &endpointStats{codes: make(map[int]int64)}
		s.endpoints[name] = e
	}
	return e
}

func (s *Stats) Record(endpoint string, took time.Duration, status int, err error) {
	s.total.Add(1)
	e := s.endpoint(endpoint)
	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		e.errors++
		return
	}
	e.latencies = append(e.latencies, took)
	e.codes[status]++
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of the catalog service")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	rps := flag.Float64("rps", 0, "overall request rate limit (0 = unlimited)")
	flag.Parse()

	cfg := Config{
		BaseURL:     *baseURL,
		Concurrency: *concurrency,
		Duration:    *duration,
		RPS:         *rps,
		ProductIDs:  []string{"p1", "p2", "p3", "p4", "p5", "missing"},
	}
	requests := mix(cfg.ProductIDs)

	fmt.Println("=== Catalog Load Test ===")
	fmt.Printf("Target:      %s\n", cfg.BaseURL)
	fmt.Printf("Concurrency: %d\n", cfg.Concurrency)
	fmt.Printf("Duration:    %s\n", cfg.Duration)
	if cfg.RPS > 0 {
		fmt.Printf("Rate limit:  %.0f req/s\n", cfg.RPS)
	}
	fmt.Printf("Requests:    %d distinct\n", len(requests))
	fmt.Println()

	stats := run(cfg, requests)
	if !report(stats, cfg.Duration) {
		os.Exit(1)
	}
}

func run(cfg Config, requests []request) *Stats {
	stats := NewStats()
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        cfg.Concurrency * 2,
			MaxIdleConnsPerHost: cfg.Concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RPS), max(1, int(cfg.RPS/10)))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < cfg.Concurrency; w++ {
		g.Go(func() error {
			for i := w; ctx.Err() == nil; i++ {
				if err := limiter.Wait(ctx); err != nil {
					return nil
				}
				r := requests[i%len(requests)]
				start := time.Now()
				status, err := get(ctx, client, cfg.BaseURL+r.path)
				if ctx.Err() != nil {
					return nil
				}
				stats.Record(r.endpoint, time.Since(start), status, err)
			}
			return nil
		})
	}
	_ = g.Wait()
	return stats
}

func get(ctx context.Context, client *http.Client, target string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return 0, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

// report prints the results and reports whether any request completed.
func report(stats *Stats, duration time.Duration) bool {
	total := stats.total.Load()
	fmt.Println("=== Results ===")
	fmt.Printf("Total Requests:  %d\n", total)
	if total > 0 {
		fmt.Printf("Requests/sec:    %.2f\n", float64(total)/duration.Seconds())
	}

	names := make([]string, 0, len(stats.endpoints))
	for name := range stats.endpoints {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		e := stats.endpoints[name]
		latencies := slices.Clone(e.latencies)
		slices.Sort(latencies)

		fmt.Println()
		fmt.Printf("--- %s ---\n", name)
		fmt.Printf("Completed: %d  Transport errors: %d\n", len(latencies), e.errors)
		if len(latencies) > 0 {
			fmt.Printf("Min %s  P50 %s  P95 %s  P99 %s  Max %s  StdDev %s\n",
				latencies[0],
				percentile(latencies, 50),
				percentile(latencies, 95),
				percentile(latencies, 99),
				latencies[len(latencies)-1],
				stddev(latencies),
			)
		}
		codes := make([]int, 0, len(e.codes))
		for code := range e.codes {
			codes = append(codes, code)
		}
		sort.Ints(codes)
		for _, code := range codes {
			fmt.Printf("  %d: %d\n", code, e.codes[code])
		}
	}

	if total == 0 {
		fmt.Println()
		fmt.Println("WARNING: No requests completed. Is the service running?")
		return false
	}
	return true
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	idx = max(0, min(idx, len(sorted)-1))
	return sorted[idx]
}

func stddev(latencies []time.Duration) time.Duration {
	var sum float64
	for _, l := range latencies {
		sum += float64(l)
	}
	mean := sum / float64(len(latencies))
	var sq float64
	for _, l := range latencies {
		d := float64(l) - mean
		sq += d * d
	}
	return time.Duration(math.Sqrt(sq / float64(len(latencies))))
}

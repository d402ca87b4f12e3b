// Command loadtest drives search and browse traffic through the gateway and
// reports throughput, latency percentiles, cache hit ratio and status codes.
//
// Usage:
//
//	go run ./cmd/loadtest -key dl_... [-url http://localhost:8082] [-concurrency 10] [-duration 30s] [-scoring tfidf] [-browse 0.1]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

type Config struct {
	BaseURL     string
	APIKey      string
	Concurrency int
	Duration    time.Duration
	Scoring     string
	BrowseRatio float64
	Queries     []string
}

type Stats struct {
	totalRequests atomic.Int64
	successCount  atomic.Int64
	errorCount    atomic.Int64
	cacheHits     atomic.Int64
	zeroResults   atomic.Int64
	searches      atomic.Int64
	latencies     []time.Duration
	latenciesMu   sync.Mutex
	statusCodes   map[int]*atomic.Int64
	statusCodesMu sync.Mutex
}

func NewStats() *Stats {
	return &Stats{
		latencies:   make([]time.Duration, 0, 100000),
		statusCodes: make(map[int]*atomic.Int64),
	}
}

func (s *Stats) RecordRequest(duration time.Duration, statusCode int, err error) {
	s.totalRequests.Add(1)

	if err != nil {
		s.errorCount.Add(1)
		return
	}

	if statusCode >= 200 && statusCode < 300 {
		s.successCount.Add(1)
	} else {
		s.errorCount.Add(1)
	}

	s.latenciesMu.Lock()
	s.latencies = append(s.latencies, duration)
	s.latenciesMu.Unlock()

	s.statusCodesMu.Lock()
	if _, ok := s.statusCodes[statusCode]; !ok {
		s.statusCodes[statusCode] = &atomic.Int64{}
	}
	s.statusCodes[statusCode].Add(1)
	s.statusCodesMu.Unlock()
}

func main() {
	baseURL := flag.String("url", "http://localhost:8082", "base URL of the gateway")
	apiKey := flag.String("key", os.Getenv("DL_API_KEY"), "API key sent as X-API-Key")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	scoring := flag.String("scoring", "", "scoring strategy to request (frequency or tfidf)")
	browse := flag.Float64("browse", 0.1, "fraction of requests that browse instead of search")
	flag.Parse()

	if *apiKey == "" {
		fmt.Fprintln(os.Stderr, "error: -key or DL_API_KEY is required")
		os.Exit(1)
	}

	cfg := Config{
		BaseURL:     *baseURL,
		APIKey:      *apiKey,
		Concurrency: *concurrency,
		Duration:    *duration,
		Scoring:     *scoring,
		BrowseRatio: *browse,
		Queries: []string{
			"quantum entanglement",
			"protein folding",
			"climate model",
			"neural network training",
			"archive preservation",
			"thermodynamics lecture notes",
			"clinical trial results",
			"graph theory",
			"reactor safety",
			"library cataloguing",
			"the and of",
			"gene expression",
			"orbital mechanics",
			"statistical inference",
			"medieval manuscripts",
		},
	}

	fmt.Println("=== Document Library Load Test ===")
	fmt.Printf("Target:      %s\n", cfg.BaseURL)
	fmt.Printf("Concurrency: %d\n", cfg.Concurrency)
	fmt.Printf("Duration:    %s\n", cfg.Duration)
	fmt.Printf("Queries:     %d unique\n", len(cfg.Queries))
	if cfg.Scoring != "" {
		fmt.Printf("Scoring:     %s\n", cfg.Scoring)
	}
	fmt.Println()

	stats := runLoadTest(cfg)
	printReport(stats, cfg.Duration)
}

func runLoadTest(cfg Config) *Stats {
	stats := NewStats()
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        cfg.Concurrency * 2,
			MaxIdleConnsPerHost: cfg.Concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	fmt.Print("Running")
	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < cfg.Concurrency; w++ {
		workerID := w
		g.Go(func() error {
			rng := rand.New(rand.NewSource(int64(workerID) + time.Now().UnixNano()))
			queryIdx := workerID
			for gctx.Err() == nil {
				if rng.Float64() < cfg.BrowseRatio {
					browseOnce(gctx, client, cfg, stats, rng.Intn(5)*20)
					continue
				}
				query := cfg.Queries[queryIdx%len(cfg.Queries)]
				queryIdx++
				searchOnce(gctx, client, cfg, stats, query)
			}
			return nil
		})
	}

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fmt.Print(".")
			}
		}
	}()

	g.Wait()
	fmt.Println(" done!")
	fmt.Println()
	return stats
}

func searchOnce(ctx context.Context, client *http.Client, cfg Config, stats *Stats, query string) {
	params := url.Values{"q": {query}, "limit": {"10"}}
	if cfg.Scoring != "" {
		params.Set("scoring", cfg.Scoring)
	}
	resp, duration, err := do(ctx, client, cfg, "/api/v1/search?"+params.Encode())
	if err != nil {
		if ctx.Err() == nil {
			stats.RecordRequest(duration, 0, err)
		}
		return
	}
	defer resp.Body.Close()

	stats.searches.Add(1)
	if resp.Header.Get("X-Cache") == "HIT" {
		stats.cacheHits.Add(1)
	}
	if resp.StatusCode == http.StatusOK {
		var body struct {
			TotalHits int `json:"total_hits"`
		}
		if json.NewDecoder(resp.Body).Decode(&body) == nil && body.TotalHits == 0 {
			stats.zeroResults.Add(1)
		}
	}
	io.Copy(io.Discard, resp.Body)
	stats.RecordRequest(duration, resp.StatusCode, nil)
}

func browseOnce(ctx context.Context, client *http.Client, cfg Config, stats *Stats, offset int) {
	resp, duration, err := do(ctx, client, cfg, fmt.Sprintf("/api/v1/documents?limit=20&offset=%d", offset))
	if err != nil {
		if ctx.Err() == nil {
			stats.RecordRequest(duration, 0, err)
		}
		return
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	stats.RecordRequest(duration, resp.StatusCode, nil)
}

func do(ctx context.Context, client *http.Client, cfg Config, path string) (*http.Response, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.BaseURL+path, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("X-API-Key", cfg.APIKey)
	start := time.Now()
	resp, err := client.Do(req)
	return resp, time.Since(start), err
}

func printReport(stats *Stats, duration time.Duration) {
	total := stats.totalRequests.Load()
	success := stats.successCount.Load()
	errors := stats.errorCount.Load()

	fmt.Println("=== Results ===")
	fmt.Printf("Total Requests:  %d\n", total)
	fmt.Printf("Successful:      %d\n", success)
	fmt.Printf("Errors:          %d\n", errors)

	if total > 0 {
		errorRate := float64(errors) / float64(total) * 100
		fmt.Printf("Error Rate:      %.2f%%\n", errorRate)
		rps := float64(total) / duration.Seconds()
		fmt.Printf("Requests/sec:    %.2f\n", rps)
	}
	if searches := stats.searches.Load(); searches > 0 {
		fmt.Printf("Cache Hit Rate:  %.2f%%\n", float64(stats.cacheHits.Load())/float64(searches)*100)
		fmt.Printf("Zero Results:    %d\n", stats.zeroResults.Load())
	}

	stats.latenciesMu.Lock()
	latencies := make([]time.Duration, len(stats.latencies))
	copy(latencies, stats.latencies)
	stats.latenciesMu.Unlock()

	if len(latencies) > 0 {
		sort.Slice(latencies, func(i, j int) bool {
			return latencies[i] < latencies[j]
		})

		var sum time.Duration
		for _, l := range latencies {
			sum += l
		}
		avg := sum / time.Duration(len(latencies))

		fmt.Println()
		fmt.Println("=== Latency ===")
		fmt.Printf("Min:    %s\n", latencies[0])
		fmt.Printf("Avg:    %s\n", avg)
		fmt.Printf("P50:    %s\n", percentile(latencies, 50))
		fmt.Printf("P95:    %s\n", percentile(latencies, 95))
		fmt.Printf("P99:    %s\n", percentile(latencies, 99))
		fmt.Printf("Max:    %s\n", latencies[len(latencies)-1])
	}

	fmt.Println()
	fmt.Println("=== Status Codes ===")
	stats.statusCodesMu.Lock()
	codes := make([]int, 0, len(stats.statusCodes))
	for code := range stats.statusCodes {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	for _, code := range codes {
		fmt.Printf("  %d: %d\n", code, stats.statusCodes[code].Load())
	}
	stats.statusCodesMu.Unlock()

	if total == 0 {
		fmt.Println()
		fmt.Println("WARNING: No requests completed. Is the gateway running?")
		os.Exit(1)
	}
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	idx = max(0, min(idx, len(sorted)-1))
	return sorted[idx]
}

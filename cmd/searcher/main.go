// Command searcher serves search, browse and document lookup.
//
// Queries are normalized with the indexing tokenizer, postings are fetched
// concurrently per term, ranked by frequency or TF-IDF, resolved against the
// catalog and filtered by the caller's classification set. Results are cached
// in Redis and search events are published to the analytics topic.
//
// Usage:
//
//	go run ./cmd/searcher [-config configs/development.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/doclibrary/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/doclibrary/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/doclibrary/internal/indexer/backend"
	"github.com/Adithya-Monish-Kumar-K/doclibrary/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/doclibrary/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/doclibrary/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/doclibrary/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/doclibrary/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/doclibrary/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/doclibrary/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/doclibrary/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/doclibrary/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/doclibrary/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/doclibrary/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/doclibrary/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/doclibrary/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/doclibrary/pkg/resilience"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	_ = godotenv.Load(".env")
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting search service",
		"port", cfg.Server.Port,
		"store", cfg.Indexer.Store,
		"scoring", cfg.Search.Scoring,
	)

	m := metrics.New(prometheus.DefaultRegisterer)
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer("searcher", cfg.Metrics.Port)
		defer shutdownMetrics(context.Background())
	}

	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("connected to postgres")

	store, err := backend.Open(cfg.Indexer, backend.Options{
		ReadOnly: true,
		DB:       db,
		Metrics:  m,
		Breaker: resilience.CircuitBreakerConfig{
			FailureThreshold:    5,
			ResetTimeout:        15 * time.Second,
			HalfOpenMaxRequests: 1,
		},
	})
	if err != nil {
		slog.Error("failed to open posting store", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var queryCache *cache.QueryCache
	redisClient, err := pkgredis.NewClient(cfg.Redis)
	if err != nil {
		slog.Warn("redis unavailable, search caching disabled", "error", err)
	} else {
		defer redisClient.Close()
		queryCache = cache.New(redisClient, cfg.Redis.CacheTTL, m)
		slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
	}

	// A segment searcher sees index changes only when it reloads, so cached
	// results are dropped then as well.
	store.Start(ctx, cfg.Indexer, true, func() {
		if queryCache == nil {
			return
		}
		if err := queryCache.InvalidateAll(context.Background()); err != nil {
			slog.Warn("cache invalidation after reload failed", "error", err)
		}
	})

	analyticsProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents)
	defer analyticsProducer.Close()
	collector := analytics.NewCollector(analyticsProducer, cfg.Analytics.BufferSize)
	collector.Start(ctx)
	defer collector.Close()
	slog.Info("analytics collector started", "topic", cfg.Kafka.Topics.AnalyticsEvents)

	docs := catalog.New(db)
	normalizer := tokenizer.New(tokenizer.Config{MinLength: cfg.Indexer.MinTermLength})
	exec := executor.New(store.Store, docs, parser.New(normalizer), cfg.Search, m)
	h := handler.New(exec, docs, handler.Options{
		Cache:   queryCache,
		Tracker: collector,
		Metrics: m,
		Tracing: cfg.Tracing.Enabled,
	})

	checker := health.NewChecker()
	checker.Register("postgres", health.PingCheck(db.Ping, time.Second))
	checker.Register("posting_store", func(ctx context.Context) health.ComponentHealth {
		if state := store.Store.State(); state != resilience.StateClosed {
			return health.ComponentHealth{Status: health.StatusDown, Message: "circuit " + state.String()}
		}
		return health.ComponentHealth{Status: health.StatusUp, Message: store.Kind()}
	})
	checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
		if redisClient == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		}
		return health.PingCheck(redisClient.Ping, 500*time.Millisecond)(ctx)
	})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/documents", h.Browse)
	mux.HandleFunc("GET /api/v1/documents/{id}", h.GetDocument)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
	checker.Mount(mux)

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("search service stopped")
}

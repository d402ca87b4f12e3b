// Command indexer consumes document events and maintains the posting store.
//
// Index events are tokenized per page and written with a replace-document
// transaction; deindex events purge a document's postings. After each change
// the Redis search cache is invalidated and an index event is emitted to the
// analytics topic.
//
// Usage:
//
//	go run ./cmd/indexer [-config configs/development.yaml]
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

	"github.com/Adithya-Monish-Kumar-K/doclibrary/internal/analytics/collector"
	"github.com/Adithya-Monish-Kumar-K/doclibrary/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/doclibrary/internal/indexer/backend"
	"github.com/Adithya-Monish-Kumar-K/doclibrary/internal/indexer/consumer"
	"github.com/Adithya-Monish-Kumar-K/doclibrary/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/doclibrary/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/doclibrary/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/doclibrary/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/doclibrary/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/doclibrary/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/doclibrary/pkg/metrics"
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
	slog.Info("starting indexer service", "store", cfg.Indexer.Store)

	m := metrics.New(prometheus.DefaultRegisterer)
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer("indexer", cfg.Metrics.Port)
		defer shutdownMetrics(context.Background())
	}

	checker := health.NewChecker()

	var db *postgres.Client
	if cfg.Indexer.Store == config.StorePostgres {
		db, err = postgres.New(cfg.Postgres)
		if err != nil {
			slog.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		checker.Register("postgres", health.PingCheck(db.Ping, time.Second))
		slog.Info("connected to postgres")
	}

	store, err := backend.Open(cfg.Indexer, backend.Options{
		DB:      db,
		Metrics: m,
		Breaker: resilience.CircuitBreakerConfig{
			FailureThreshold:    5,
			ResetTimeout:        30 * time.Second,
			HalfOpenMaxRequests: 1,
		},
	})
	if err != nil {
		slog.Error("failed to open posting store", "error", err)
		os.Exit(1)
	}
	defer func() {
		slog.Info("flushing posting store before shutdown")
		if err := store.Close(); err != nil {
			slog.Error("final flush failed", "error", err)
		}
	}()
	checker.Register("posting_store", func(ctx context.Context) health.ComponentHealth {
		if state := store.Store.State(); state != resilience.StateClosed {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "circuit " + state.String()}
		}
		return health.ComponentHealth{Status: health.StatusUp, Message: store.Kind()}
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	store.Start(ctx, cfg.Indexer, false, nil)

	normalizer := tokenizer.New(tokenizer.Config{
		MinLength: cfg.Indexer.MinTermLength,
		MaxTokens: cfg.Indexer.MaxWordsPerPage,
	})
	builder := indexer.NewBuilder(store.Store, normalizer, m.TermsIndexedTotal)

	opts := consumer.Options{
		Metrics: m,
		Retry: resilience.RetryConfig{
			MaxAttempts:    5,
			InitialDelay:   200 * time.Millisecond,
			MaxDelay:       5 * time.Second,
			Multiplier:     2.0,
			JitterFraction: 0.1,
		},
	}

	redisClient, err := pkgredis.NewClient(cfg.Redis)
	if err != nil {
		slog.Warn("redis unavailable, search cache will not be invalidated", "error", err)
	} else {
		defer redisClient.Close()
		opts.Cache = cache.New(redisClient, cfg.Redis.CacheTTL, nil)
		checker.Register("redis", health.PingCheck(redisClient.Ping, 500*time.Millisecond))
	}

	analyticsProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents)
	defer analyticsProducer.Close()
	events := collector.NewIndexEvents(analyticsProducer, 100, 5*time.Second)
	events.Start(ctx)
	defer events.Close()
	opts.Tracker = events

	handler := consumer.NewHandler(builder, opts)
	kafkaConsumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.DocumentEvents, cfg.Kafka.ConsumerGroup, handler.Handle)
	indexConsumer := consumer.New(kafkaConsumer)

	mux := http.NewServeMux()
	checker.Mount(mux)
	server := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:     mux,
		ReadTimeout: cfg.Server.ReadTimeout,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("health server error", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	slog.Info("indexer service ready, consuming from kafka",
		"topic", cfg.Kafka.Topics.DocumentEvents,
		"group", cfg.Kafka.ConsumerGroup,
		"health_addr", server.Addr,
	)

	if err := indexConsumer.Start(ctx); err != nil && ctx.Err() == nil {
		slog.Error("consumer error", "error", err)
	}
	stop()

	slog.Info("indexer service stopped", "indexed_words", builder.IndexedWords())
}

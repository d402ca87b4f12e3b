// Command ingestion starts the document ingestion HTTP service.
//
// POST /api/v1/documents accepts a multipart PDF or text upload, extracts
// its page text, records the document in the catalog and publishes an index
// event. DELETE /api/v1/documents/{id} soft-deletes a document and publishes
// a deindex event.
//
// Usage:
//
//	go run ./cmd/ingestion [-config configs/development.yaml]
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

	"github.com/Adithya-Monish-Kumar-K/doclibrary/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/doclibrary/internal/ingestion/handler"
	"github.com/Adithya-Monish-Kumar-K/doclibrary/internal/ingestion/publisher"
	"github.com/Adithya-Monish-Kumar-K/doclibrary/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/doclibrary/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/doclibrary/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/doclibrary/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/doclibrary/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/doclibrary/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/doclibrary/pkg/postgres"
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
	slog.Info("starting ingestion service",
		"port", cfg.Server.Port,
		"max_upload_bytes", cfg.Ingestion.MaxUploadBytes,
	)

	m := metrics.New(prometheus.DefaultRegisterer)
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer("ingestion", cfg.Metrics.Port)
		defer shutdownMetrics(context.Background())
	}

	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("connected to postgres")

	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.DocumentEvents)
	defer producer.Close()
	slog.Info("kafka producer initialized", "topic", cfg.Kafka.Topics.DocumentEvents)

	pub := publisher.New(catalog.New(db), producer, resilience.RetryConfig{
		MaxAttempts:    3,
		InitialDelay:   100 * time.Millisecond,
		MaxDelay:       2 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
	})
	h := handler.New(pub, cfg.Ingestion.MaxUploadBytes)

	checker := health.NewChecker()
	checker.Register("postgres", health.PingCheck(db.Ping, time.Second))

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/documents", h.Upload)
	mux.HandleFunc("DELETE /api/v1/documents/{id}", h.Delete)
	checker.Mount(mux)

	var chain http.Handler = mux
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()
	slog.Info("ingestion service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("ingestion service stopped")
}

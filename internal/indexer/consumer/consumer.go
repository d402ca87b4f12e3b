// Package consumer applies document events from Kafka to the index: index
// events rebuild a document's postings, deindex events purge them. After
// each change the search cache is invalidated and an analytics event is
// tracked.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/doclibrary/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/doclibrary/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/doclibrary/internal/library"
	apperrors "github.com/Adithya-Monish-Kumar-K/doclibrary/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/doclibrary/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/doclibrary/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/doclibrary/pkg/resilience"
)

// Indexer is satisfied by *indexer.Builder.
type Indexer interface {
	IndexDocument(ctx context.Context, documentID string, pages library.PageText) (int, error)
	DeindexDocument(ctx context.Context, documentID string) error
}

// CacheInvalidator drops cached search results.
type CacheInvalidator interface {
	InvalidateAll(ctx context.Context) error
}

// Tracker queues analytics events; *collector.IndexEvents satisfies it.
type Tracker interface {
	Track(event analytics.IndexEvent)
}

// Options carries the optional collaborators; nil fields are skipped.
type Options struct {
	Cache   CacheInvalidator
	Tracker Tracker
	Metrics *metrics.Metrics
	Retry   resilience.RetryConfig
}

// Handler processes one document event at a time.
type Handler struct {
	indexer Indexer
	opts    Options
	logger  *slog.Logger
}

func NewHandler(idx Indexer, opts Options) *Handler {
	opts.Retry.Retryable = func(err error) bool {
		return errors.Is(err, apperrors.ErrStoreUnavailable)
	}
	return &Handler{
		indexer: idx,
		opts:    opts,
		logger:  slog.Default().With("component", "index-consumer"),
	}
}

// Handle is a kafka.MessageHandler. It returns an error only when the store
// stays unavailable, so the consumer redelivers the event; every other
// outcome is acknowledged.
func (h *Handler) Handle(ctx context.Context, key []byte, value []byte) error {
	event, err := kafka.DecodeJSON[ingestion.DocumentEvent](value)
	if err != nil {
		h.logger.Error("failed to decode document event", "error", err, "key", string(key))
		return nil
	}
	if event.DocumentID == "" {
		h.logger.Error("document event without document id", "key", string(key))
		return nil
	}
	switch event.Action {
	case ingestion.ActionIndex:
		return h.index(ctx, event)
	case ingestion.ActionDeindex:
		return h.deindex(ctx, event)
	default:
		h.logger.Warn("unknown document event action", "action", event.Action, "document_id", event.DocumentID)
		return nil
	}
}

func (h *Handler) index(ctx context.Context, event ingestion.DocumentEvent) error {
	start := time.Now()
	var terms int
	err := resilience.Retry(ctx, "index document", h.opts.Retry, func() error {
		var err error
		terms, err = h.indexer.IndexDocument(ctx, event.DocumentID, event.Pages)
		return err
	})
	switch {
	case errors.Is(err, apperrors.ErrNoExtractableText):
		h.logger.Warn("document rejected: no extractable text", "document_id", event.DocumentID)
		if h.opts.Metrics != nil {
			h.opts.Metrics.DocsRejectedTotal.Inc()
		}
		return nil
	case errors.Is(err, apperrors.ErrInvalidInput):
		h.logger.Error("document rejected: invalid event", "document_id", event.DocumentID, "error", err)
		return nil
	case err != nil:
		return fmt.Errorf("indexing document %s: %w", event.DocumentID, err)
	}

	if h.opts.Metrics != nil {
		h.opts.Metrics.DocsIndexedTotal.Inc()
	}
	h.afterChange(ctx, event.DocumentID)
	latency := time.Since(start)
	h.track(analytics.IndexEvent{
		Type:         analytics.EventIndexDoc,
		DocumentID:   event.DocumentID,
		Pages:        len(event.Pages),
		TermsIndexed: terms,
		LatencyMs:    float64(latency.Microseconds()) / 1000,
		Timestamp:    time.Now().UTC(),
	})
	h.logger.Info("document indexed",
		"document_id", event.DocumentID,
		"pages", len(event.Pages),
		"terms", terms,
		"latency", latency,
	)
	return nil
}

func (h *Handler) deindex(ctx context.Context, event ingestion.DocumentEvent) error {
	start := time.Now()
	err := resilience.Retry(ctx, "deindex document", h.opts.Retry, func() error {
		return h.indexer.DeindexDocument(ctx, event.DocumentID)
	})
	if err != nil {
		return fmt.Errorf("deindexing document %s: %w", event.DocumentID, err)
	}
	if h.opts.Metrics != nil {
		h.opts.Metrics.DocsDeindexedTotal.Inc()
	}
	h.afterChange(ctx, event.DocumentID)
	h.track(analytics.IndexEvent{
		Type:       analytics.EventDeindexDoc,
		DocumentID: event.DocumentID,
		LatencyMs:  float64(time.Since(start).Microseconds()) / 1000,
		Timestamp:  time.Now().UTC(),
	})
	h.logger.Info("document deindexed", "document_id", event.DocumentID)
	return nil
}

// afterChange invalidates cached results. A failed invalidation is logged;
// entries still expire with the cache TTL.
func (h *Handler) afterChange(ctx context.Context, documentID string) {
	if h.opts.Cache == nil {
		return
	}
	if err := h.opts.Cache.InvalidateAll(ctx); err != nil {
		h.logger.Warn("search cache invalidation failed", "document_id", documentID, "error", err)
	}
}

func (h *Handler) track(event analytics.IndexEvent) {
	if h.opts.Tracker != nil {
		h.opts.Tracker.Track(event)
	}
}

// IndexConsumer runs a Kafka consumer wired to a Handler.
type IndexConsumer struct {
	consumer *kafka.Consumer
	logger   *slog.Logger
}

func New(kafkaConsumer *kafka.Consumer) *IndexConsumer {
	return &IndexConsumer{
		consumer: kafkaConsumer,
		logger:   slog.Default().With("component", "index-consumer"),
	}
}

// Start blocks until ctx is cancelled.
func (ic *IndexConsumer) Start(ctx context.Context) error {
	ic.logger.Info("index consumer starting")
	return ic.consumer.Start(ctx)
}

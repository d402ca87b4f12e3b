// Package collector buffers the indexer's document events and ships them to
// the analytics topic in bulk. Messages are keyed by document id, so the
// index and deindex events of one document keep their order on a partition.
package collector

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/doclibrary/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/doclibrary/pkg/kafka"
)

const (
	defaultBatchSize     = 100
	defaultFlushInterval = 5 * time.Second
	shutdownFlushTimeout = 5 * time.Second
	// backlogBatches bounds how many batches a dead broker can leave behind.
	backlogBatches = 3
)

// IndexEvents queues analytics.IndexEvent values. A batch goes out when it
// reaches the batch size or when the flush interval elapses.
type IndexEvents struct {
	producer      kafka.Publisher
	batchSize     int
	flushInterval time.Duration
	logger        *slog.Logger
	done          chan struct{}

	mu      sync.Mutex
	pending []analytics.IndexEvent
	dropped int
}

// NewIndexEvents falls back to 100 events and 5s for non-positive settings.
func NewIndexEvents(producer kafka.Publisher, batchSize int, flushInterval time.Duration) *IndexEvents {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	if flushInterval <= 0 {
		flushInterval = defaultFlushInterval
	}
	return &IndexEvents{
		producer:      producer,
		batchSize:     batchSize,
		flushInterval: flushInterval,
		pending:       make([]analytics.IndexEvent, 0, batchSize),
		logger:        slog.Default().With("component", "index-events"),
		done:          make(chan struct{}),
	}
}

// Start runs the flush loop until ctx is cancelled, then flushes what is
// left under a short deadline.
func (c *IndexEvents) Start(ctx context.Context) {
	go func() {
		defer close(c.done)
		ticker := time.NewTicker(c.flushInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.flush(ctx)
			case <-ctx.Done():
				flushCtx, cancel := context.WithTimeout(context.Background(), shutdownFlushTimeout)
				c.flush(flushCtx)
				cancel()
				return
			}
		}
	}()
	c.logger.Info("index event collector started",
		"batch_size", c.batchSize,
		"flush_interval", c.flushInterval,
	)
}

// Track queues event. Events without a document id are ignored.
func (c *IndexEvents) Track(event analytics.IndexEvent) {
	if event.DocumentID == "" {
		c.logger.Warn("index event without document id ignored", "type", event.Type)
		return
	}
	c.mu.Lock()
	c.pending = append(c.pending, event)
	full := len(c.pending) >= c.batchSize
	c.mu.Unlock()

	if full {
		go c.flush(context.Background())
	}
}

// Close blocks until the flush loop has exited; cancel the Start context
// first.
func (c *IndexEvents) Close() {
	<-c.done
}

// Pending returns the number of queued events.
func (c *IndexEvents) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Dropped returns how many events were discarded because the broker kept
// rejecting batches.
func (c *IndexEvents) Dropped() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped
}

func (c *IndexEvents) flush(ctx context.Context) {
	c.mu.Lock()
	if len(c.pending) == 0 {
		c.mu.Unlock()
		return
	}
	batch := c.pending
	c.pending = make([]analytics.IndexEvent, 0, c.batchSize)
	c.mu.Unlock()

	messages := make([]kafka.Event, len(batch))
	for i, event := range batch {
		messages[i] = kafka.Event{Key: event.DocumentID, Value: event}
	}
	if err := c.producer.PublishBatch(ctx, messages); err != nil {
		c.logger.Error("index event flush failed", "events", len(batch), "error", err)
		c.requeue(batch)
		return
	}
	c.logger.Debug("index events flushed", "events", len(batch))
}

// requeue puts a failed batch back ahead of newer events. Past the backlog
// bound the oldest events go first, since the newest event of a document
// describes its current state.
func (c *IndexEvents) requeue(batch []analytics.IndexEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = append(batch, c.pending...)
	if limit := c.batchSize * backlogBatches; len(c.pending) > limit {
		over := len(c.pending) - limit
		c.pending = append([]analytics.IndexEvent(nil), c.pending[over:]...)
		c.dropped += over
		c.logger.Warn("index event backlog full, oldest events dropped", "dropped", over)
	}
}

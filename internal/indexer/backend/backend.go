// Package backend opens the configured posting store and wraps it in the
// circuit breaker shared by the indexer and the searcher.
package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Adithya-Monish-Kumar-K/doclibrary/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/doclibrary/internal/indexer/pgstore"
	"github.com/Adithya-Monish-Kumar-K/doclibrary/internal/indexer/segstore"
	"github.com/Adithya-Monish-Kumar-K/doclibrary/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/doclibrary/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/doclibrary/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/doclibrary/pkg/resilience"
)

// Backend is an opened posting store.
type Backend struct {
	Store *index.Guarded
	// Segments is set for the segment store only.
	Segments *segstore.Store
	kind     string
}

// Options selects the role of the opening process.
type Options struct {
	// ReadOnly opens segment stores for searching: no flushes are written.
	ReadOnly bool
	// DB is required for the postgres store.
	DB      *postgres.Client
	Metrics *metrics.Metrics
	Breaker resilience.CircuitBreakerConfig
}

// Open builds the store named by cfg.Store.
func Open(cfg config.IndexerConfig, opts Options) (*Backend, error) {
	b := &Backend{kind: cfg.Store}
	var store index.Store
	switch cfg.Store {
	case config.StorePostgres:
		if opts.DB == nil {
			return nil, errors.New("postgres posting store needs a database client")
		}
		store = pgstore.New(opts.DB)
	case config.StoreSegment:
		scfg := segstore.Config{DataDir: cfg.DataDir, ReadOnly: opts.ReadOnly}
		if opts.Metrics != nil {
			scfg.Flushes = opts.Metrics.SegmentFlushesTotal
		}
		seg, err := segstore.Open(scfg)
		if err != nil {
			return nil, fmt.Errorf("opening segment store: %w", err)
		}
		b.Segments = seg
		store = seg
	default:
		return nil, fmt.Errorf("unknown posting store %q", cfg.Store)
	}

	breaker := opts.Breaker
	if opts.Metrics != nil {
		gauge := opts.Metrics.CircuitBreakerState
		breaker.OnStateChange = func(name string, _, to resilience.State) {
			gauge.WithLabelValues(name).Set(float64(to))
		}
	}
	b.Store = index.NewGuarded(store, breaker)
	return b, nil
}

// Kind is the configured store name.
func (b *Backend) Kind() string {
	return b.kind
}

// Start runs the segment flush loop (writers) or reload loop (readers) until
// ctx ends. onReload runs after a newer snapshot was loaded.
func (b *Backend) Start(ctx context.Context, cfg config.IndexerConfig, readOnly bool, onReload func()) {
	if b.Segments == nil {
		return
	}
	if readOnly {
		b.Segments.StartReloadLoop(ctx, interval(cfg.ReloadInterval), onReload)
		return
	}
	b.Segments.StartFlushLoop(ctx, interval(cfg.FlushInterval))
}

// Close flushes the segment store. The postgres store has nothing to release
// beyond its client, which the caller owns.
func (b *Backend) Close() error {
	if b.Segments == nil {
		return nil
	}
	return b.Segments.Close()
}

func interval(d time.Duration) time.Duration {
	if d <= 0 {
		return 10 * time.Second
	}
	return d
}

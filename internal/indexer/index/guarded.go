package index

import (
	"context"
	"errors"
	"fmt"

	apperrors "github.com/Adithya-Monish-Kumar-K/doclibrary/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/doclibrary/pkg/resilience"
)

// Guarded runs every Store call through a circuit breaker. Backend failures
// and an open circuit both surface as ErrStoreUnavailable, so callers see
// one degraded-mode signal instead of stale or empty results.
type Guarded struct {
	store Store
	cb    *resilience.CircuitBreaker
}

// NewGuarded wraps store. Invalid input and calls the caller abandoned
// (cancelled, or past its own deadline such as a search time budget) do not
// count towards tripping the breaker.
func NewGuarded(store Store, cfg resilience.CircuitBreakerConfig) *Guarded {
	cfg.IsFailure = func(err error) bool {
		return !abandoned(err) && !errors.Is(err, apperrors.ErrInvalidInput)
	}
	return &Guarded{
		store: store,
		cb:    resilience.NewCircuitBreaker("posting-store", cfg),
	}
}

// State exposes the breaker state for health checks.
func (g *Guarded) State() resilience.State {
	return g.cb.GetState()
}

func (g *Guarded) do(ctx context.Context, op string, fn func() error) error {
	err := g.cb.Execute(func() error {
		err := fn()
		if err != nil && ctx.Err() != nil && !errors.Is(err, ctx.Err()) {
			// drivers report an abandoned call in their own words
			err = fmt.Errorf("%w: %w", ctx.Err(), err)
		}
		return err
	})
	if err == nil || abandoned(err) || errors.Is(err, apperrors.ErrInvalidInput) {
		return err
	}
	return apperrors.Unavailable(op, err)
}

func abandoned(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func (g *Guarded) ReplaceDocument(ctx context.Context, doc DocumentIndex) error {
	return g.do(ctx, "replace document", func() error {
		return g.store.ReplaceDocument(ctx, doc)
	})
}

func (g *Guarded) UpsertPosting(ctx context.Context, term, documentID string, page, position int) error {
	return g.do(ctx, "upsert posting", func() error {
		return g.store.UpsertPosting(ctx, term, documentID, page, position)
	})
}

func (g *Guarded) DeleteDocumentPostings(ctx context.Context, documentID string) error {
	return g.do(ctx, "delete postings", func() error {
		return g.store.DeleteDocumentPostings(ctx, documentID)
	})
}

func (g *Guarded) PostingsForTerm(ctx context.Context, term string, limit int) (PostingList, error) {
	var out PostingList
	err := g.do(ctx, "postings for term", func() error {
		var err error
		out, err = g.store.PostingsForTerm(ctx, term, limit)
		return err
	})
	return out, err
}

func (g *Guarded) StatsForDocument(ctx context.Context, documentID string) (DocumentStats, bool, error) {
	var (
		st DocumentStats
		ok bool
	)
	err := g.do(ctx, "document stats", func() error {
		var err error
		st, ok, err = g.store.StatsForDocument(ctx, documentID)
		return err
	})
	return st, ok, err
}

func (g *Guarded) StatsForDocuments(ctx context.Context, ids []string) (map[string]DocumentStats, error) {
	var out map[string]DocumentStats
	err := g.do(ctx, "document stats", func() error {
		var err error
		out, err = g.store.StatsForDocuments(ctx, ids)
		return err
	})
	return out, err
}

func (g *Guarded) DocumentFrequency(ctx context.Context, term string) (int, error) {
	var n int
	err := g.do(ctx, "document frequency", func() error {
		var err error
		n, err = g.store.DocumentFrequency(ctx, term)
		return err
	})
	return n, err
}

func (g *Guarded) TotalDocumentCount(ctx context.Context) (int, error) {
	var n int
	err := g.do(ctx, "document count", func() error {
		var err error
		n, err = g.store.TotalDocumentCount(ctx)
		return err
	})
	return n, err
}

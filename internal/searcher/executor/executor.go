// Package executor runs a parsed query against the posting store: it fans
// out one fetch per term, merges and ranks the candidates, resolves them
// against the catalog and applies the caller's classification filter to
// the full ranked list before cutting it to the requested limit.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/doclibrary/internal/access"
	"github.com/Adithya-Monish-Kumar-K/doclibrary/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/doclibrary/internal/library"
	"github.com/Adithya-Monish-Kumar-K/doclibrary/internal/searcher/merger"
	"github.com/Adithya-Monish-Kumar-K/doclibrary/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/doclibrary/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/doclibrary/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/doclibrary/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/doclibrary/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/doclibrary/pkg/tracing"
	"golang.org/x/sync/errgroup"
)

// Response statuses.
const (
	StatusOK           = "ok"
	StatusNoValidTerms = "no valid search terms"
)

// DocumentResolver loads catalog records for candidate ids. Ids it cannot
// find are left out of the map.
type DocumentResolver interface {
	Resolve(ctx context.Context, ids []string) (map[string]library.Document, error)
}

// Request is one search. A zero Limit means the configured default; an
// empty Scoring means the configured strategy.
type Request struct {
	Query   string
	Allowed access.Set
	Limit   int
	Scoring string
}

// Result is one ranked, visible document.
type Result struct {
	DocumentID     string                 `json:"document_id"`
	Title          string                 `json:"title"`
	Author         string                 `json:"author,omitempty"`
	Subject        string                 `json:"subject,omitempty"`
	Classification library.Classification `json:"classification"`
	Pages          []int                  `json:"pages"`
	TotalMatches   int                    `json:"total_matches"`
	MatchedTerms   []string               `json:"matched_terms"`
	Score          float64                `json:"score"`
}

// Visibility satisfies access.Classified.
func (r Result) Visibility() library.Classification {
	return r.Classification
}

// SearchResult is the response body of a search. TotalHits counts every
// visible match, not just the returned page. Truncated is set when a term
// hit the posting budget, so hits past the budget were never scanned.
type SearchResult struct {
	Query     string   `json:"query"`
	Terms     []string `json:"terms"`
	Scoring   string   `json:"scoring"`
	Status    string   `json:"status"`
	TotalHits int      `json:"total_hits"`
	Truncated bool     `json:"truncated,omitempty"`
	Results   []Result `json:"results"`
}

type Executor struct {
	store    index.Store
	resolver DocumentResolver
	parser   *parser.Parser
	cfg      config.SearchConfig
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func New(store index.Store, resolver DocumentResolver, p *parser.Parser, cfg config.SearchConfig, m *metrics.Metrics) *Executor {
	return &Executor{
		store:    store,
		resolver: resolver,
		parser:   p,
		cfg:      cfg,
		metrics:  m,
		logger:   slog.Default().With("component", "query-executor"),
	}
}

// Plan normalizes a raw query; callers use it to build cache keys.
func (e *Executor) Plan(query string) parser.QueryPlan {
	return e.parser.Parse(query)
}

// Limit clamps a requested limit into [1, MaxLimit], substituting the
// default for non-positive values.
func (e *Executor) Limit(requested int) int {
	if requested <= 0 {
		return e.cfg.DefaultLimit
	}
	return min(requested, e.cfg.MaxLimit)
}

// Scorer resolves a requested strategy, falling back to the configured one.
func (e *Executor) Scorer(name string) (ranker.Scorer, error) {
	if name == "" {
		name = e.cfg.Scoring
	}
	return ranker.ScorerFor(name)
}

// Execute runs req. Store and catalog failures surface as
// ErrStoreUnavailable; exceeding the time budget yields ErrTimeout.
func (e *Executor) Execute(ctx context.Context, req Request) (*SearchResult, error) {
	plan := e.parser.Parse(req.Query)
	return e.ExecutePlan(ctx, plan, req)
}

// ExecutePlan is Execute for an already parsed query.
func (e *Executor) ExecutePlan(ctx context.Context, plan parser.QueryPlan, req Request) (*SearchResult, error) {
	scorer, err := e.Scorer(req.Scoring)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrInvalidInput, 400, err.Error())
	}
	limit := e.Limit(req.Limit)
	result := &SearchResult{
		Query:   plan.RawQuery,
		Terms:   plan.Terms,
		Scoring: scorer.Name(),
		Status:  StatusOK,
		Results: []Result{},
	}
	if plan.Empty() {
		result.Status = StatusNoValidTerms
		return result, nil
	}

	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}

	acc, truncated, err := e.fetch(ctx, plan.Terms)
	if err != nil {
		return nil, e.budgetError(ctx, err)
	}
	result.Truncated = truncated
	matches := acc.Matches()

	var corpus ranker.Corpus
	if scorer.NeedsCorpus() && len(matches) > 0 {
		corpus, err = e.corpus(ctx, plan.Terms, acc.DocumentIDs())
		if err != nil {
			return nil, e.budgetError(ctx, err)
		}
	}

	_, rankSpan := tracing.StartChildSpan(ctx, "rank")
	ranked := ranker.Rank(matches, scorer, corpus)
	rankSpan.SetAttr("candidates", len(ranked))
	rankSpan.End()

	resolved, err := e.resolve(ctx, ranked)
	if err != nil {
		return nil, e.budgetError(ctx, err)
	}

	visible := access.Filter(resolved, req.Allowed)
	result.TotalHits = len(visible)
	if len(visible) > limit {
		visible = visible[:limit]
	}
	result.Results = visible

	e.logger.Debug("query executed",
		"query", plan.RawQuery,
		"terms", plan.Terms,
		"scoring", scorer.Name(),
		"candidates", len(ranked),
		"visible", result.TotalHits,
		"returned", len(result.Results),
		"truncated", truncated,
	)
	return result, nil
}

// Current reports whether every document in a previously computed result is
// still active in the catalog. A cached response that fails this check must
// be recomputed rather than trimmed, or the page would come back short.
func (e *Executor) Current(ctx context.Context, result *SearchResult) (bool, error) {
	if len(result.Results) == 0 {
		return true, nil
	}
	ids := make([]string, len(result.Results))
	for i, r := range result.Results {
		ids[i] = r.DocumentID
	}
	docs, err := e.resolver.Resolve(ctx, ids)
	if err != nil {
		return false, fmt.Errorf("rechecking cached result: %w", err)
	}
	for _, id := range ids {
		if doc, ok := docs[id]; !ok || !doc.Active() {
			return false, nil
		}
	}
	return true, nil
}

// fetch loads each term's postings concurrently, bounded by
// MaxConcurrentFetches and MaxPostingsPerTerm.
func (e *Executor) fetch(ctx context.Context, terms []string) (*merger.Accumulator, bool, error) {
	ctx, span := tracing.StartChildSpan(ctx, "fetch")
	defer span.End()

	lists := make([]index.PostingList, len(terms))
	g, gctx := errgroup.WithContext(ctx)
	if e.cfg.MaxConcurrentFetches > 0 {
		g.SetLimit(e.cfg.MaxConcurrentFetches)
	}
	for i, term := range terms {
		g.Go(func() error {
			list, err := e.store.PostingsForTerm(gctx, term, e.cfg.MaxPostingsPerTerm)
			if err != nil {
				return fmt.Errorf("fetching postings for %q: %w", term, err)
			}
			lists[i] = list
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, false, err
	}

	acc := merger.NewAccumulator()
	truncated := false
	postings := 0
	for i, term := range terms {
		acc.Add(term, lists[i])
		postings += len(lists[i])
		if e.cfg.MaxPostingsPerTerm > 0 && len(lists[i]) >= e.cfg.MaxPostingsPerTerm {
			truncated = true
		}
	}
	span.SetAttr("terms", len(terms))
	span.SetAttr("postings", postings)
	return acc, truncated, nil
}

func (e *Executor) corpus(ctx context.Context, terms []string, ids []string) (ranker.Corpus, error) {
	ctx, span := tracing.StartChildSpan(ctx, "corpus")
	defer span.End()

	corpus := ranker.Corpus{
		DocumentFrequency: make(map[string]int, len(terms)),
		DocumentTerms:     make(map[string]int, len(ids)),
	}
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	if e.cfg.MaxConcurrentFetches > 0 {
		g.SetLimit(e.cfg.MaxConcurrentFetches)
	}
	g.Go(func() error {
		n, err := e.store.TotalDocumentCount(gctx)
		if err != nil {
			return fmt.Errorf("counting documents: %w", err)
		}
		mu.Lock()
		corpus.TotalDocuments = n
		mu.Unlock()
		return nil
	})
	g.Go(func() error {
		stats, err := e.store.StatsForDocuments(gctx, ids)
		if err != nil {
			return fmt.Errorf("loading document stats: %w", err)
		}
		mu.Lock()
		for id, s := range stats {
			corpus.DocumentTerms[id] = s.TotalTerms
		}
		mu.Unlock()
		return nil
	})
	for _, term := range terms {
		g.Go(func() error {
			df, err := e.store.DocumentFrequency(gctx, term)
			if err != nil {
				return fmt.Errorf("document frequency for %q: %w", term, err)
			}
			mu.Lock()
			corpus.DocumentFrequency[term] = df
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return ranker.Corpus{}, err
	}
	return corpus, nil
}

// resolve attaches catalog metadata in ranked order, dropping candidates
// that are missing or no longer active.
func (e *Executor) resolve(ctx context.Context, ranked []ranker.ScoredDoc) ([]Result, error) {
	ctx, span := tracing.StartChildSpan(ctx, "resolve")
	defer span.End()

	out := make([]Result, 0, len(ranked))
	if len(ranked) == 0 {
		return out, nil
	}
	ids := make([]string, len(ranked))
	for i, sd := range ranked {
		ids[i] = sd.DocumentID
	}
	docs, err := e.resolver.Resolve(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolving candidates: %w", err)
	}
	unresolved := 0
	for _, sd := range ranked {
		doc, ok := docs[sd.DocumentID]
		if !ok || !doc.Active() {
			unresolved++
			e.logger.Warn("dropping candidate",
				"document_id", sd.DocumentID,
				"error", apperrors.ErrUnresolvedDocument,
				"found", ok,
			)
			continue
		}
		out = append(out, Result{
			DocumentID:     doc.ID,
			Title:          doc.Title,
			Author:         doc.Author,
			Subject:        doc.Subject,
			Classification: doc.Classification,
			Pages:          sd.Pages,
			TotalMatches:   sd.TotalMatches,
			MatchedTerms:   sd.MatchedTerms,
			Score:          sd.Score,
		})
	}
	if unresolved > 0 && e.metrics != nil {
		e.metrics.UnresolvedDocsTotal.Add(float64(unresolved))
	}
	span.SetAttr("unresolved", unresolved)
	return out, nil
}

// budgetError reports a blown time budget as ErrTimeout and leaves every
// other failure as is.
func (e *Executor) budgetError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("search exceeded %s: %w", e.cfg.Timeout, apperrors.ErrTimeout)
	}
	return err
}

// Since is a small helper for latency reporting in milliseconds.
func Since(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000
}

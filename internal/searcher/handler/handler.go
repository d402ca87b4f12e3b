package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/doclibrary/internal/access"
	"github.com/Adithya-Monish-Kumar-K/doclibrary/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/doclibrary/internal/library"
	"github.com/Adithya-Monish-Kumar-K/doclibrary/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/doclibrary/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/doclibrary/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/doclibrary/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/doclibrary/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/doclibrary/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/doclibrary/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/doclibrary/pkg/tracing"
)

// Catalog serves browse and lookup.
type Catalog interface {
	Get(ctx context.Context, id string) (library.Document, error)
	ListActive(ctx context.Context, allowed access.Set, limit, offset int) ([]library.Document, error)
}

// Tracker receives analytics events; *analytics.Collector satisfies it.
type Tracker interface {
	Track(event any)
}

// Options carries optional collaborators. Nil fields disable the feature.
type Options struct {
	Cache   *cache.QueryCache
	Tracker Tracker
	Metrics *metrics.Metrics
	Tracing bool
}

type Handler struct {
	executor *executor.Executor
	catalog  Catalog
	opts     Options
	logger   *slog.Logger
}

func New(exec *executor.Executor, catalog Catalog, opts Options) *Handler {
	return &Handler{
		executor: exec,
		catalog:  catalog,
		opts:     opts,
		logger:   slog.Default().With("component", "search-handler"),
	}
}

// Search handles GET /api/v1/search?q=&limit=&scoring=. A query with no
// usable terms is answered with an empty result and status
// "no valid search terms".
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)
	caller := access.FromRequest(r)

	query := r.URL.Query().Get("q")
	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}
	limit = h.executor.Limit(limit)

	scoring := r.URL.Query().Get("scoring")
	if scoring == ranker.TFIDF && !caller.Advanced {
		h.writeError(w, http.StatusForbidden, "advanced search is not available for this role")
		return
	}
	scorer, err := h.executor.Scorer(scoring)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "scoring must be frequency or tfidf")
		return
	}

	if h.opts.Tracing {
		var root *tracing.Span
		ctx, root = tracing.StartSpan(ctx, "search", middleware.GetRequestID(ctx))
		defer func() {
			root.End()
			root.Log(log)
		}()
	}

	_, parseSpan := tracing.StartChildSpan(ctx, "parse")
	plan := h.executor.Plan(query)
	parseSpan.SetAttr("terms", len(plan.Terms))
	parseSpan.End()

	req := executor.Request{Query: query, Allowed: caller.Allowed, Limit: limit, Scoring: scorer.Name()}
	if plan.Empty() {
		result, _ := h.executor.ExecutePlan(ctx, plan, req)
		h.countQuery("empty_query")
		h.writeJSON(w, http.StatusOK, result)
		return
	}

	var result *executor.SearchResult
	cacheHit := false
	compute := func(ctx context.Context) (*executor.SearchResult, error) {
		return h.executor.ExecutePlan(ctx, plan, req)
	}
	if h.opts.Cache != nil {
		key := cache.Key{Terms: plan.Terms, Allowed: caller.Allowed, Scoring: scorer.Name(), Limit: limit}
		result, cacheHit, err = h.opts.Cache.GetOrCompute(ctx, key, compute)
		if err == nil && cacheHit {
			result, cacheHit, err = h.revalidate(ctx, key, result, compute)
		}
	} else {
		result, err = compute(ctx)
	}
	if err != nil {
		log.Error("search execution failed", "query", query, "error", err)
		h.countQuery("error")
		h.writeFailure(w, err)
		return
	}
	if cacheHit {
		// the entry may have been stored by an equivalent query
		result.Query = plan.RawQuery
		result.Terms = plan.Terms
	}

	latency := time.Since(start)
	h.observe(result, cacheHit, latency)
	log.Info("search completed",
		"query", query,
		"role", caller.Role,
		"scoring", result.Scoring,
		"total_hits", result.TotalHits,
		"returned", len(result.Results),
		"cache_hit", cacheHit,
		"latency_ms", latency.Milliseconds(),
	)
	if h.opts.Tracker != nil {
		eventType := analytics.EventCacheMiss
		if cacheHit {
			eventType = analytics.EventCacheHit
		}
		h.opts.Tracker.Track(analytics.SearchEvent{
			Type:      eventType,
			Query:     query,
			Terms:     plan.Terms,
			Scoring:   result.Scoring,
			TotalHits: result.TotalHits,
			Returned:  len(result.Results),
			LatencyMs: executor.Since(start),
			CacheHit:  cacheHit,
			Timestamp: time.Now().UTC(),
			RequestID: middleware.GetRequestID(ctx),
		})
	}
	if cacheHit {
		w.Header().Set("X-Cache", "HIT")
	} else {
		w.Header().Set("X-Cache", "MISS")
	}
	h.writeJSON(w, http.StatusOK, result)
}

// revalidate drops a cached response that names a document deleted since it
// was stored and replaces it with a fresh computation.
func (h *Handler) revalidate(
	ctx context.Context,
	key cache.Key,
	cached *executor.SearchResult,
	compute func(context.Context) (*executor.SearchResult, error),
) (*executor.SearchResult, bool, error) {
	current, err := h.executor.Current(ctx, cached)
	if err != nil {
		return nil, false, err
	}
	if current {
		return cached, true, nil
	}
	logger.FromContext(ctx).Info("cached search names a deleted document, recomputing", "terms", key.Terms)
	result, err := compute(ctx)
	if err != nil {
		return nil, false, err
	}
	h.opts.Cache.Set(ctx, key, result)
	return result, false, nil
}

func (h *Handler) observe(result *executor.SearchResult, cacheHit bool, latency time.Duration) {
	if h.opts.Metrics == nil {
		return
	}
	resultType := "hit"
	if result.TotalHits == 0 {
		resultType = "zero_result"
	}
	cacheStatus := "miss"
	if cacheHit {
		cacheStatus = "hit"
	}
	h.opts.Metrics.SearchQueriesTotal.WithLabelValues(resultType).Inc()
	h.opts.Metrics.SearchLatency.WithLabelValues(cacheStatus).Observe(latency.Seconds())
	h.opts.Metrics.SearchResultsCount.Observe(float64(len(result.Results)))
}

func (h *Handler) countQuery(resultType string) {
	if h.opts.Metrics != nil {
		h.opts.Metrics.SearchQueriesTotal.WithLabelValues(resultType).Inc()
	}
}

type browseResponse struct {
	Documents []library.Document `json:"documents"`
	Limit     int                `json:"limit"`
	Offset    int                `json:"offset"`
}

// Browse handles GET /api/v1/documents?limit=&offset=.
func (h *Handler) Browse(w http.ResponseWriter, r *http.Request) {
	caller := access.FromRequest(r)
	limit, offset := 0, 0
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			h.writeError(w, http.StatusBadRequest, "offset must be a non-negative integer")
			return
		}
		offset = parsed
	}
	limit = h.executor.Limit(limit)

	docs, err := h.catalog.ListActive(r.Context(), caller.Allowed, limit, offset)
	if err != nil {
		logger.FromContext(r.Context()).Error("browse failed", "error", err)
		h.writeFailure(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, browseResponse{Documents: docs, Limit: limit, Offset: offset})
}

// GetDocument handles GET /api/v1/documents/{id}. Deleted documents and
// documents outside the caller's classifications are reported as not found.
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	caller := access.FromRequest(r)
	id := r.PathValue("id")
	doc, err := h.catalog.Get(r.Context(), id)
	if err == nil && (!doc.Active() || !caller.Allowed.Contains(doc.Classification)) {
		err = apperrors.ErrDocumentNotFound
	}
	if err != nil {
		if !errors.Is(err, apperrors.ErrDocumentNotFound) {
			logger.FromContext(r.Context()).Error("document lookup failed", "document_id", id, "error", err)
		}
		h.writeFailure(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, doc)
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.opts.Cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	hits, misses := h.opts.Cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": strconv.FormatFloat(hitRate, 'f', 1, 64) + "%",
	})
}

// CacheInvalidate is restricted to roles that can manage the library.
func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if !access.FromRequest(r).Role.CanManage() {
		h.writeError(w, http.StatusForbidden, apperrors.Reason(apperrors.ErrForbidden))
		return
	}
	if h.opts.Cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}

	if err := h.opts.Cache.InvalidateAll(r.Context()); err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

// writeFailure maps err onto a status and a fixed reason string.
func (h *Handler) writeFailure(w http.ResponseWriter, err error) {
	h.writeError(w, apperrors.HTTPStatusCode(err), apperrors.Reason(err))
}

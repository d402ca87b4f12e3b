package analytics

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/doclibrary/pkg/kafka"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encode(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func TestRecordDispatchesByType(t *testing.T) {
	agg := NewAggregator()
	handle := HandleEvent(agg)
	ctx := context.Background()

	require.NoError(t, handle(ctx, nil, encode(t, SearchEvent{Type: EventSearch, Query: "orbit", TotalHits: 3, LatencyMs: 12})))
	require.NoError(t, handle(ctx, nil, encode(t, SearchEvent{Type: EventCacheHit, Query: "orbit", TotalHits: 3, CacheHit: true, LatencyMs: 1})))
	require.NoError(t, handle(ctx, nil, encode(t, SearchEvent{Type: EventSearch, Query: "quasar", TotalHits: 0, LatencyMs: 30})))
	require.NoError(t, handle(ctx, nil, encode(t, IndexEvent{Type: EventIndexDoc, DocumentID: "d1", TermsIndexed: 120})))
	require.NoError(t, handle(ctx, nil, encode(t, IndexEvent{Type: EventIndexDoc, DocumentID: "d2", TermsIndexed: 30})))
	require.NoError(t, handle(ctx, nil, encode(t, IndexEvent{Type: EventDeindexDoc, DocumentID: "d1"})))
	require.NoError(t, handle(ctx, nil, []byte("not json")))
	require.NoError(t, handle(ctx, nil, []byte(`{"type":"mystery"}`)))

	stats := agg.Stats()
	assert.Equal(t, int64(3), stats.TotalSearches)
	assert.Equal(t, int64(1), stats.CacheHits)
	assert.Equal(t, int64(2), stats.CacheMisses)
	assert.Equal(t, int64(1), stats.ZeroResultCount)
	assert.Equal(t, int64(2), stats.TotalDocsIndexed)
	assert.Equal(t, int64(1), stats.TotalDocsDeindexed)
	assert.Equal(t, int64(150), stats.TotalTermsIndexed)
	require.NotEmpty(t, stats.TopQueries)
	assert.Equal(t, QueryCount{Query: "orbit", Count: 2}, stats.TopQueries[0])
	assert.Equal(t, []QueryCount{{Query: "quasar", Count: 1}}, stats.ZeroResultQueries)
	assert.InDelta(t, 43.0/3.0, stats.AvgLatencyMs, 0.001)
	assert.Equal(t, 30.0, stats.P99LatencyMs)
}

func TestLatencyWindowIsBounded(t *testing.T) {
	agg := NewAggregator()
	for i := 0; i < latencyWindow+50; i++ {
		agg.recordSearchEvent(SearchEvent{Type: EventSearch, LatencyMs: float64(i), TotalHits: 1})
	}
	assert.Len(t, agg.latencies, latencyWindow)
	assert.Equal(t, int64(latencyWindow+50), agg.Stats().TotalSearches)
}

func TestSeed(t *testing.T) {
	agg := NewAggregator()
	agg.Seed(AggregatedStats{TotalSearches: 10, TopQueries: []QueryCount{{Query: "orbit", Count: 4}}})
	agg.recordSearchEvent(SearchEvent{Type: EventSearch, Query: "orbit", TotalHits: 1})
	stats := agg.Stats()
	assert.Equal(t, int64(11), stats.TotalSearches)
	assert.Equal(t, int64(5), stats.TopQueries[0].Count)
}

type fakeSnapshots struct{ snaps []AggregatedStats }

func (f fakeSnapshots) ListSnapshots(_ context.Context, limit int) ([]AggregatedStats, error) {
	if len(f.snaps) > limit {
		return f.snaps[:limit], nil
	}
	return f.snaps, nil
}

func TestHandler(t *testing.T) {
	agg := NewAggregator()
	agg.recordSearchEvent(SearchEvent{Type: EventSearch, Query: "orbit", TotalHits: 1})
	h := NewHandler(agg, fakeSnapshots{snaps: []AggregatedStats{{TotalSearches: 1}, {TotalSearches: 0}}})

	rec := httptest.NewRecorder()
	h.Stats(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var stats AggregatedStats
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&stats))
	assert.Equal(t, int64(1), stats.TotalSearches)

	rec = httptest.NewRecorder()
	h.History(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/history?limit=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Snapshots []AggregatedStats `json:"snapshots"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Len(t, body.Snapshots, 1)

	rec = httptest.NewRecorder()
	h.History(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/history?limit=0", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	NewHandler(agg, nil).History(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/history", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []kafka.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e kafka.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) PublishBatch(ctx context.Context, events []kafka.Event) error {
	for _, e := range events {
		_ = p.Publish(ctx, e)
	}
	return nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

func TestCollectorPublishesAndDrains(t *testing.T) {
	pub := &recordingPublisher{}
	c := NewCollector(pub, 10)
	c.Start(context.Background())
	for i := 0; i < 5; i++ {
		c.Track(SearchEvent{Type: EventSearch, Timestamp: time.Now()})
	}
	c.Close()
	assert.Equal(t, 5, pub.count())
	c.Close()
}

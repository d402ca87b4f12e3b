package analytics

import "time"

// EventType discriminates payloads on the analytics topic.
type EventType string

const (
	EventSearch     EventType = "search"
	EventCacheHit   EventType = "cache_hit"
	EventCacheMiss  EventType = "cache_miss"
	EventIndexDoc   EventType = "index_document"
	EventDeindexDoc EventType = "deindex_document"
)

// Envelope is decoded first to pick the concrete event type.
type Envelope struct {
	Type EventType `json:"type"`
}

type SearchEvent struct {
	Type      EventType `json:"type"`
	Query     string    `json:"query"`
	Terms     []string  `json:"terms"`
	Scoring   string    `json:"scoring"`
	TotalHits int       `json:"total_hits"`
	Returned  int       `json:"returned"`
	LatencyMs float64   `json:"latency_ms"`
	CacheHit  bool      `json:"cache_hit"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}

type IndexEvent struct {
	Type         EventType `json:"type"`
	DocumentID   string    `json:"document_id"`
	Pages        int       `json:"pages"`
	TermsIndexed int       `json:"terms_indexed"`
	LatencyMs    float64   `json:"latency_ms"`
	Timestamp    time.Time `json:"timestamp"`
}

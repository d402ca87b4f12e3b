// Package ingestion defines the upload request/response types and the
// document event schema published on the document-events topic.
package ingestion

import (
	"time"

	"github.com/Adithya-Monish-Kumar-K/doclibrary/internal/library"
)

// Action is the operation a DocumentEvent asks the indexer to perform.
type Action string

const (
	ActionIndex   Action = "index"
	ActionDeindex Action = "deindex"
)

// UploadResponse is returned after a document is accepted.
type UploadResponse struct {
	DocumentID     string                 `json:"document_id"`
	Title          string                 `json:"title"`
	Classification library.Classification `json:"classification"`
	TotalPages     int                    `json:"total_pages"`
	PagesWithText  int                    `json:"pages_with_text"`
	Status         string                 `json:"status"`
}

// DeleteResponse is returned after a soft delete.
type DeleteResponse struct {
	DocumentID string `json:"document_id"`
	Status     string `json:"status"`
}

// DocumentEvent is keyed by document id so every event of one document lands
// on the same partition in publish order.
type DocumentEvent struct {
	Action      Action           `json:"action"`
	DocumentID  string           `json:"document_id"`
	Pages       library.PageText `json:"pages,omitempty"`
	PublishedAt time.Time        `json:"published_at"`
}

package library

import (
	"sort"
	"strings"
	"time"
)

// Status is a document's lifecycle state.
type Status string

const (
	StatusActive  Status = "active"
	StatusDeleted Status = "deleted"
)

// Document is the catalog record for one uploaded file.
type Document struct {
	ID             string         `json:"id"`
	Title          string         `json:"title"`
	Author         string         `json:"author,omitempty"`
	Subject        string         `json:"subject,omitempty"`
	Classification Classification `json:"classification"`
	TotalPages     int            `json:"total_pages"`
	Status         Status         `json:"status"`
	UploadedBy     string         `json:"uploaded_by,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// Active reports whether the document may appear in search or browse.
func (d Document) Active() bool {
	return d.Status == StatusActive
}

// Visibility satisfies access.Classified.
func (d Document) Visibility() Classification {
	return d.Classification
}

// PageText maps 1-based page numbers to extracted text.
type PageText map[int]string

// Pages returns the page numbers in ascending order.
func (p PageText) Pages() []int {
	pages := make([]int, 0, len(p))
	for n := range p {
		pages = append(pages, n)
	}
	sort.Ints(pages)
	return pages
}

// HasText reports whether at least one page has non-blank text.
func (p PageText) HasText() bool {
	for _, text := range p {
		if strings.TrimSpace(text) != "" {
			return true
		}
	}
	return false
}

// Package index defines the posting model and the Store contract shared by
// the indexer (write path) and the searcher (read path).
package index

import (
	"context"
	"sort"
)

// Posting records the occurrences of one term on one page of one document.
// Frequency always equals len(Positions) and is at least 1.
type Posting struct {
	Term       string `json:"t"`
	DocumentID string `json:"d"`
	Page       int    `json:"p"`
	Frequency  int    `json:"f"`
	Positions  []int  `json:"x"`
}

type PostingList []Posting

// Sort orders postings by document id then page, the order every store
// returns them in.
func (l PostingList) Sort() {
	sort.Slice(l, func(i, j int) bool {
		if l[i].DocumentID != l[j].DocumentID {
			return l[i].DocumentID < l[j].DocumentID
		}
		return l[i].Page < l[j].Page
	})
}

// TermEntry groups the postings of one term; segments are written as a
// sorted slice of these.
type TermEntry struct {
	Term     string      `json:"term"`
	Postings PostingList `json:"postings"`
}

// DocumentStats are per-document totals used as the TF denominator.
type DocumentStats struct {
	DocumentID  string `json:"document_id"`
	TotalTerms  int    `json:"total_terms"`
	UniqueTerms int    `json:"unique_terms"`
}

// DocumentIndex is the complete index of one document. ReplaceDocument
// installs it in place of whatever was indexed before.
type DocumentIndex struct {
	DocumentID string
	Postings   PostingList
	Stats      DocumentStats
}

// Store is the inverted index. Implementations must make ReplaceDocument
// atomic for readers and isolate concurrent UpsertPosting calls per
// (term, document, page).
type Store interface {
	// ReplaceDocument removes all postings and stats of doc.DocumentID and
	// writes doc in their place.
	ReplaceDocument(ctx context.Context, doc DocumentIndex) error
	// UpsertPosting records one occurrence of term at position on page,
	// creating the posting with frequency 1 or incrementing it.
	UpsertPosting(ctx context.Context, term, documentID string, page, position int) error
	// DeleteDocumentPostings removes a document's postings and stats. It is
	// a no-op for unknown documents.
	DeleteDocumentPostings(ctx context.Context, documentID string) error
	// PostingsForTerm returns at most limit postings (limit <= 0 means all),
	// sorted by document id then page. Unknown terms yield an empty list.
	PostingsForTerm(ctx context.Context, term string, limit int) (PostingList, error)
	// StatsForDocument reports ok=false when the document is not indexed.
	StatsForDocument(ctx context.Context, documentID string) (stats DocumentStats, ok bool, err error)
	// StatsForDocuments returns stats for the indexed subset of ids.
	StatsForDocuments(ctx context.Context, ids []string) (map[string]DocumentStats, error)
	// DocumentFrequency counts distinct documents containing term.
	DocumentFrequency(ctx context.Context, term string) (int, error)
	// TotalDocumentCount counts indexed documents.
	TotalDocumentCount(ctx context.Context) (int, error)
}

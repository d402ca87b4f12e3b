// Package indexer turns a document's page text into postings and installs
// them in the posting store.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/Adithya-Monish-Kumar-K/doclibrary/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/doclibrary/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/doclibrary/internal/library"
	apperrors "github.com/Adithya-Monish-Kumar-K/doclibrary/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// Builder indexes documents into a Store. It is safe for concurrent use;
// concurrent calls for the same document are serialised by the store.
type Builder struct {
	store      index.Store
	normalizer *tokenizer.Normalizer
	logger     *slog.Logger

	indexedWords atomic.Int64
	termsTotal   prometheus.Counter
}

// NewBuilder creates a Builder. termsTotal may be nil.
func NewBuilder(store index.Store, normalizer *tokenizer.Normalizer, termsTotal prometheus.Counter) *Builder {
	return &Builder{
		store:      store,
		normalizer: normalizer,
		logger:     slog.Default().With("component", "index-builder"),
		termsTotal: termsTotal,
	}
}

// IndexDocument replaces the index of documentID with one built from pages
// and returns the number of term occurrences written. When no page has any
// text the prior index is left untouched and ErrNoExtractableText returned.
func (b *Builder) IndexDocument(ctx context.Context, documentID string, pages library.PageText) (int, error) {
	if documentID == "" {
		return 0, fmt.Errorf("index document: %w: empty document id", apperrors.ErrInvalidInput)
	}
	if !pages.HasText() {
		return 0, fmt.Errorf("index document %s: %w", documentID, apperrors.ErrNoExtractableText)
	}
	doc, err := BuildDocumentIndex(documentID, pages, b.normalizer)
	if err != nil {
		return 0, err
	}
	if err := b.store.ReplaceDocument(ctx, doc); err != nil {
		return 0, fmt.Errorf("index document %s: %w", documentID, err)
	}

	terms := doc.Stats.TotalTerms
	b.indexedWords.Add(int64(terms))
	if b.termsTotal != nil {
		b.termsTotal.Add(float64(terms))
	}
	b.logger.Debug("document indexed",
		"document_id", documentID,
		"pages", len(pages),
		"postings", len(doc.Postings),
		"terms", terms,
		"unique_terms", doc.Stats.UniqueTerms,
	)
	return terms, nil
}

// DeindexDocument removes every posting of documentID. Unknown documents are
// a no-op.
func (b *Builder) DeindexDocument(ctx context.Context, documentID string) error {
	if err := b.store.DeleteDocumentPostings(ctx, documentID); err != nil {
		return fmt.Errorf("deindex document %s: %w", documentID, err)
	}
	b.logger.Debug("document deindexed", "document_id", documentID)
	return nil
}

// IndexedWords is the running total of term occurrences indexed by this
// process. It is for reporting only.
func (b *Builder) IndexedWords() int64 {
	return b.indexedWords.Load()
}

// BuildDocumentIndex normalises pages in ascending page order and groups
// term occurrences into one posting per (term, page). Positions are 0-based
// within each page's term sequence.
func BuildDocumentIndex(documentID string, pages library.PageText, n *tokenizer.Normalizer) (index.DocumentIndex, error) {
	doc := index.DocumentIndex{
		DocumentID: documentID,
		Stats:      index.DocumentStats{DocumentID: documentID},
	}
	unique := make(map[string]struct{})
	for _, page := range pages.Pages() {
		if page < 1 {
			return index.DocumentIndex{}, fmt.Errorf("index document %s: %w: page number %d", documentID, apperrors.ErrInvalidInput, page)
		}
		tokens := n.Tokenize(pages[page])
		if len(tokens) == 0 {
			continue
		}
		byTerm := make(map[string]int, len(tokens))
		for _, tok := range tokens {
			i, ok := byTerm[tok.Term]
			if !ok {
				i = len(doc.Postings)
				byTerm[tok.Term] = i
				doc.Postings = append(doc.Postings, index.Posting{
					Term:       tok.Term,
					DocumentID: documentID,
					Page:       page,
				})
			}
			doc.Postings[i].Frequency++
			doc.Postings[i].Positions = append(doc.Postings[i].Positions, tok.Position)
			unique[tok.Term] = struct{}{}
		}
		doc.Stats.TotalTerms += len(tokens)
	}
	doc.Stats.UniqueTerms = len(unique)
	return doc, nil
}

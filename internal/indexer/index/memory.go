package index

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	apperrors "github.com/Adithya-Monish-Kumar-K/doclibrary/pkg/errors"
)

type pageKey struct {
	doc  string
	page int
}

// MemoryStore is an in-process Store. A single RWMutex makes every mutation
// atomic for readers; the segment store persists it with Snapshot/Restore.
type MemoryStore struct {
	mu       sync.RWMutex
	postings map[string]map[pageKey]*Posting
	docTerms map[string]map[string]struct{}
	stats    map[string]DocumentStats
	version  atomic.Uint64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		postings: make(map[string]map[pageKey]*Posting),
		docTerms: make(map[string]map[string]struct{}),
		stats:    make(map[string]DocumentStats),
	}
}

// Version increases on every mutation; the flush loop compares it to skip
// writing unchanged snapshots.
func (m *MemoryStore) Version() uint64 {
	return m.version.Load()
}

func (m *MemoryStore) ReplaceDocument(ctx context.Context, doc DocumentIndex) error {
	if doc.DocumentID == "" {
		return fmt.Errorf("replace document: %w: empty document id", apperrors.ErrInvalidInput)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteLocked(doc.DocumentID)
	for _, p := range doc.Postings {
		if p.DocumentID != doc.DocumentID || p.Frequency < 1 {
			continue
		}
		cp := p
		cp.Positions = append([]int(nil), p.Positions...)
		m.insertLocked(&cp)
	}
	if doc.Stats.TotalTerms > 0 {
		st := doc.Stats
		st.DocumentID = doc.DocumentID
		m.stats[doc.DocumentID] = st
	}
	m.version.Add(1)
	return nil
}

func (m *MemoryStore) UpsertPosting(ctx context.Context, term, documentID string, page, position int) error {
	if term == "" || documentID == "" || page < 1 {
		return fmt.Errorf("upsert posting: %w", apperrors.ErrInvalidInput)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.stats[documentID]
	st.DocumentID = documentID
	if _, seen := m.docTerms[documentID][term]; !seen {
		st.UniqueTerms++
	}
	key := pageKey{doc: documentID, page: page}
	if p, ok := m.postings[term][key]; ok {
		p.Frequency++
		p.Positions = append(p.Positions, position)
	} else {
		m.insertLocked(&Posting{
			Term:       term,
			DocumentID: documentID,
			Page:       page,
			Frequency:  1,
			Positions:  []int{position},
		})
	}
	st.TotalTerms++
	m.stats[documentID] = st
	m.version.Add(1)
	return nil
}

func (m *MemoryStore) DeleteDocumentPostings(ctx context.Context, documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteLocked(documentID) {
		m.version.Add(1)
	}
	return nil
}

func (m *MemoryStore) PostingsForTerm(ctx context.Context, term string, limit int) (PostingList, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	byPage := m.postings[term]
	result := make(PostingList, 0, len(byPage))
	for _, p := range byPage {
		cp := *p
		cp.Positions = append([]int(nil), p.Positions...)
		result = append(result, cp)
	}
	m.mu.RUnlock()

	result.Sort()
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *MemoryStore) StatsForDocument(ctx context.Context, documentID string) (DocumentStats, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.stats[documentID]
	return st, ok, nil
}

func (m *MemoryStore) StatsForDocuments(ctx context.Context, ids []string) (map[string]DocumentStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]DocumentStats, len(ids))
	for _, id := range ids {
		if st, ok := m.stats[id]; ok {
			out[id] = st
		}
	}
	return out, nil
}

func (m *MemoryStore) DocumentFrequency(ctx context.Context, term string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	docs := make(map[string]struct{})
	for key := range m.postings[term] {
		docs[key.doc] = struct{}{}
	}
	return len(docs), nil
}

func (m *MemoryStore) TotalDocumentCount(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.stats), nil
}

// Snapshot returns every term's postings sorted by term, plus all document
// stats sorted by id.
func (m *MemoryStore) Snapshot() ([]TermEntry, []DocumentStats) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entries := make([]TermEntry, 0, len(m.postings))
	for term, byPage := range m.postings {
		list := make(PostingList, 0, len(byPage))
		for _, p := range byPage {
			cp := *p
			cp.Positions = append([]int(nil), p.Positions...)
			list = append(list, cp)
		}
		list.Sort()
		entries = append(entries, TermEntry{Term: term, Postings: list})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Term < entries[j].Term
	})
	stats := make([]DocumentStats, 0, len(m.stats))
	for _, st := range m.stats {
		stats = append(stats, st)
	}
	sort.Slice(stats, func(i, j int) bool {
		return stats[i].DocumentID < stats[j].DocumentID
	})
	return entries, stats
}

// Restore replaces the whole store with a snapshot.
func (m *MemoryStore) Restore(entries []TermEntry, stats []DocumentStats) {
	postings := make(map[string]map[pageKey]*Posting, len(entries))
	docTerms := make(map[string]map[string]struct{})
	for _, entry := range entries {
		for _, p := range entry.Postings {
			cp := p
			cp.Term = entry.Term
			if postings[cp.Term] == nil {
				postings[cp.Term] = make(map[pageKey]*Posting)
			}
			postings[cp.Term][pageKey{doc: cp.DocumentID, page: cp.Page}] = &cp
			if docTerms[cp.DocumentID] == nil {
				docTerms[cp.DocumentID] = make(map[string]struct{})
			}
			docTerms[cp.DocumentID][cp.Term] = struct{}{}
		}
	}
	statMap := make(map[string]DocumentStats, len(stats))
	for _, st := range stats {
		statMap[st.DocumentID] = st
	}
	m.mu.Lock()
	m.postings = postings
	m.docTerms = docTerms
	m.stats = statMap
	m.mu.Unlock()
	m.version.Add(1)
}

func (m *MemoryStore) insertLocked(p *Posting) {
	if m.postings[p.Term] == nil {
		m.postings[p.Term] = make(map[pageKey]*Posting)
	}
	m.postings[p.Term][pageKey{doc: p.DocumentID, page: p.Page}] = p
	if m.docTerms[p.DocumentID] == nil {
		m.docTerms[p.DocumentID] = make(map[string]struct{})
	}
	m.docTerms[p.DocumentID][p.Term] = struct{}{}
}

func (m *MemoryStore) deleteLocked(documentID string) bool {
	terms, indexed := m.docTerms[documentID]
	_, hasStats := m.stats[documentID]
	for term := range terms {
		byPage := m.postings[term]
		for key := range byPage {
			if key.doc == documentID {
				delete(byPage, key)
			}
		}
		if len(byPage) == 0 {
			delete(m.postings, term)
		}
	}
	delete(m.docTerms, documentID)
	delete(m.stats, documentID)
	return indexed || hasStats
}

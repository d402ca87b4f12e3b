// Package merger folds per-term posting lists into one match per document.
package merger

import (
	"sort"

	"github.com/Adithya-Monish-Kumar-K/doclibrary/internal/indexer/index"
)

// Match is everything a query term set hit in one document.
type Match struct {
	DocumentID   string
	Pages        []int
	TotalMatches int
	MatchedTerms []string
	// TermFrequencies holds the document-level frequency of each matched term.
	TermFrequencies map[string]int
}

type candidate struct {
	pages map[int]struct{}
	freqs map[string]int
	total int
}

// Accumulator collects postings term by term. It is not safe for concurrent
// use; callers fetch in parallel and add sequentially.
type Accumulator struct {
	terms      []string
	candidates map[string]*candidate
}

func NewAccumulator() *Accumulator {
	return &Accumulator{candidates: make(map[string]*candidate)}
}

// Add records the postings of one query term. Each term should be added
// once; its position fixes its place in Match.MatchedTerms.
func (a *Accumulator) Add(term string, postings index.PostingList) {
	if len(postings) == 0 {
		return
	}
	a.terms = append(a.terms, term)
	for _, p := range postings {
		c, ok := a.candidates[p.DocumentID]
		if !ok {
			c = &candidate{pages: make(map[int]struct{}), freqs: make(map[string]int)}
			a.candidates[p.DocumentID] = c
		}
		c.pages[p.Page] = struct{}{}
		c.freqs[term] += p.Frequency
		c.total += p.Frequency
	}
}

// Len is the number of candidate documents so far.
func (a *Accumulator) Len() int {
	return len(a.candidates)
}

// Matches returns one Match per candidate document, ordered by document id.
// Pages are ascending and unique; matched terms follow the order of Add.
func (a *Accumulator) Matches() []Match {
	out := make([]Match, 0, len(a.candidates))
	for id, c := range a.candidates {
		m := Match{
			DocumentID:      id,
			Pages:           make([]int, 0, len(c.pages)),
			TotalMatches:    c.total,
			MatchedTerms:    make([]string, 0, len(c.freqs)),
			TermFrequencies: c.freqs,
		}
		for page := range c.pages {
			m.Pages = append(m.Pages, page)
		}
		sort.Ints(m.Pages)
		for _, term := range a.terms {
			if _, ok := c.freqs[term]; ok {
				m.MatchedTerms = append(m.MatchedTerms, term)
			}
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DocumentID < out[j].DocumentID })
	return out
}

// DocumentIDs lists the candidates in no particular order.
func (a *Accumulator) DocumentIDs() []string {
	ids := make([]string, 0, len(a.candidates))
	for id := range a.candidates {
		ids = append(ids, id)
	}
	return ids
}

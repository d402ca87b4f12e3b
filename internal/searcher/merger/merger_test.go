package merger

import (
	"testing"

	"github.com/Adithya-Monish-Kumar-K/doclibrary/internal/indexer/index"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func posting(term, doc string, page, freq int) index.Posting {
	return index.Posting{Term: term, DocumentID: doc, Page: page, Frequency: freq}
}

func TestAccumulatorUnionsTerms(t *testing.T) {
	acc := NewAccumulator()
	acc.Add("beta", index.PostingList{posting("beta", "d1", 3, 2), posting("beta", "d1", 1, 1), posting("beta", "d2", 1, 4)})
	acc.Add("alpha", index.PostingList{posting("alpha", "d1", 1, 1), posting("alpha", "d3", 2, 1)})
	acc.Add("none", nil)

	matches := acc.Matches()
	require.Len(t, matches, 3)
	assert.Equal(t, 3, acc.Len())

	d1 := matches[0]
	assert.Equal(t, "d1", d1.DocumentID)
	assert.Equal(t, []int{1, 3}, d1.Pages)
	assert.Equal(t, 4, d1.TotalMatches)
	assert.Equal(t, []string{"beta", "alpha"}, d1.MatchedTerms)
	assert.Equal(t, map[string]int{"beta": 3, "alpha": 1}, d1.TermFrequencies)

	assert.Equal(t, "d2", matches[1].DocumentID)
	assert.Equal(t, []string{"beta"}, matches[1].MatchedTerms)
	assert.Equal(t, "d3", matches[2].DocumentID)
	assert.Equal(t, []string{"alpha"}, matches[2].MatchedTerms)
}

func TestAccumulatorEmpty(t *testing.T) {
	acc := NewAccumulator()
	assert.Empty(t, acc.Matches())
	assert.Empty(t, acc.DocumentIDs())
}

package ranker

import (
	"math"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/doclibrary/internal/searcher/merger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func match(id string, freqs map[string]int, terms ...string) merger.Match {
	total := 0
	for _, f := range freqs {
		total += f
	}
	return merger.Match{DocumentID: id, TotalMatches: total, MatchedTerms: terms, TermFrequencies: freqs}
}

func TestFrequencyRanking(t *testing.T) {
	matches := []merger.Match{
		match("d2", map[string]int{"alpha": 2}, "alpha"),
		match("d1", map[string]int{"alpha": 5}, "alpha"),
		match("d0", map[string]int{"alpha": 2}, "alpha"),
	}
	ranked := Rank(matches, FrequencyScorer{}, Corpus{})
	require.Len(t, ranked, 3)
	assert.Equal(t, "d1", ranked[0].DocumentID)
	assert.Equal(t, 5.0, ranked[0].Score)
	assert.Equal(t, "d0", ranked[1].DocumentID, "ties break by id ascending")
	assert.Equal(t, "d2", ranked[2].DocumentID)
}

func TestTFIDFScore(t *testing.T) {
	corpus := Corpus{
		TotalDocuments:    10,
		DocumentFrequency: map[string]int{"alpha": 1, "beta": 4},
		DocumentTerms:     map[string]int{"d1": 20},
	}
	m := match("d1", map[string]int{"alpha": 2, "beta": 5}, "alpha", "beta")
	want := 2.0/20*math.Log(10.0/2) + 5.0/20*math.Log(10.0/5)
	assert.InDelta(t, want, TFIDFScorer{}.Score(m, corpus), 0.0001)
}

func TestTFIDFWithoutStatsScoresZero(t *testing.T) {
	m := match("d9", map[string]int{"alpha": 2}, "alpha")
	assert.Zero(t, TFIDFScorer{}.Score(m, Corpus{TotalDocuments: 3}))
}

func TestTFIDFPrefersRareTerms(t *testing.T) {
	corpus := Corpus{
		TotalDocuments:    100,
		DocumentFrequency: map[string]int{"rare": 1, "common": 80},
		DocumentTerms:     map[string]int{"a": 10, "b": 10},
	}
	ranked := Rank([]merger.Match{
		match("a", map[string]int{"common": 3}, "common"),
		match("b", map[string]int{"rare": 1}, "rare"),
	}, TFIDFScorer{}, corpus)
	assert.Equal(t, "b", ranked[0].DocumentID)
}

func TestScorerFor(t *testing.T) {
	s, err := ScorerFor("")
	require.NoError(t, err)
	assert.Equal(t, Frequency, s.Name())
	s, err = ScorerFor(TFIDF)
	require.NoError(t, err)
	assert.True(t, s.NeedsCorpus())
	_, err = ScorerFor("bm25")
	assert.Error(t, err)
}

// Package ranker scores merged matches and orders them. Scoring strategies
// are pluggable and share one output shape.
package ranker

import (
	"fmt"
	"math"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/doclibrary/internal/searcher/merger"
)

// Scoring strategy names.
const (
	Frequency = "frequency"
	TFIDF     = "tfidf"
)

// Corpus carries the index-wide figures TF-IDF needs. Frequency scoring
// ignores it.
type Corpus struct {
	TotalDocuments    int
	DocumentFrequency map[string]int
	// DocumentTerms is each candidate's total term count.
	DocumentTerms map[string]int
}

// Scorer computes one document's relevance.
type Scorer interface {
	Name() string
	// NeedsCorpus reports whether Score reads the Corpus, so callers can
	// skip gathering it.
	NeedsCorpus() bool
	Score(m merger.Match, corpus Corpus) float64
}

// ScorerFor resolves a strategy name.
func ScorerFor(name string) (Scorer, error) {
	switch name {
	case Frequency, "":
		return FrequencyScorer{}, nil
	case TFIDF:
		return TFIDFScorer{}, nil
	default:
		return nil, fmt.Errorf("unknown scoring strategy %q", name)
	}
}

// FrequencyScorer scores a document by its summed matched-term frequency.
type FrequencyScorer struct{}

func (FrequencyScorer) Name() string      { return Frequency }
func (FrequencyScorer) NeedsCorpus() bool { return false }

func (FrequencyScorer) Score(m merger.Match, _ Corpus) float64 {
	return float64(m.TotalMatches)
}

// TFIDFScorer sums, over matched terms, tf = frequency / document total
// terms times idf = ln(total documents / (documents containing term + 1)).
type TFIDFScorer struct{}

func (TFIDFScorer) Name() string      { return TFIDF }
func (TFIDFScorer) NeedsCorpus() bool { return true }

func (TFIDFScorer) Score(m merger.Match, corpus Corpus) float64 {
	docTerms := corpus.DocumentTerms[m.DocumentID]
	if docTerms <= 0 || corpus.TotalDocuments <= 0 {
		return 0
	}
	var score float64
	for _, term := range m.MatchedTerms {
		tf := float64(m.TermFrequencies[term]) / float64(docTerms)
		idf := math.Log(float64(corpus.TotalDocuments) / float64(corpus.DocumentFrequency[term]+1))
		score += tf * idf
	}
	return round(score)
}

func round(v float64) float64 {
	return math.Round(v*10000) / 10000
}

// ScoredDoc is a match with its score.
type ScoredDoc struct {
	merger.Match
	Score float64
}

// Rank scores every match and sorts by score descending, breaking ties by
// document id ascending. Nothing is dropped: truncation is the caller's job
// once access filtering has run.
func Rank(matches []merger.Match, scorer Scorer, corpus Corpus) []ScoredDoc {
	out := make([]ScoredDoc, 0, len(matches))
	for _, m := range matches {
		out = append(out, ScoredDoc{Match: m, Score: scorer.Score(m, corpus)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].DocumentID < out[j].DocumentID
	})
	return out
}

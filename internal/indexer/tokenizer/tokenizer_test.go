package tokenizer

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeStemsAndFilters(t *testing.T) {
	n := Default()
	assert.Equal(t, []string{"quick", "fox", "search"}, n.Normalize("The Quick Foxes Searching"))
	assert.Equal(t, n.Normalize("searching"), n.Normalize("searched"))
}

func TestNormalizeDeterministic(t *testing.T) {
	n := Default()
	first := n.Normalize("Libraries catalogue manuscripts, maps and periodicals.")
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, n.Normalize("Libraries catalogue manuscripts, maps and periodicals."))
	}
}

func TestNormalizeEmptyInputs(t *testing.T) {
	n := Default()
	for _, in := range []string{"", "   \n\t", "1234 56.78 -- !!", "the a an", "ab xy"} {
		assert.Empty(t, n.Normalize(in), "input %q", in)
	}
}

func TestNormalizeSplitsOnNonLetters(t *testing.T) {
	n := Default()
	assert.Equal(t,
		[]string{"covid", "vaccin", "trial", "python", "abc", "def"},
		n.Normalize("covid19 vaccine trials h2o python3 abc123def"))
	// accented letters are boundaries too; fragments shorter than three go
	assert.Equal(t, []string{"caf", "librari"}, n.Normalize("café library naïve"))
}

func TestTokenizePositions(t *testing.T) {
	tokens := Default().Tokenize("alpha the beta, beta! gamma")
	require.Len(t, tokens, 4)
	for i, tok := range tokens {
		assert.Equal(t, i, tok.Position)
	}
	assert.Equal(t, "beta", tokens[1].Term)
	assert.Equal(t, "beta", tokens[2].Term)
}

func TestMinLength(t *testing.T) {
	n := New(Config{MinLength: 5})
	assert.Equal(t, []string{"gamma"}, n.Normalize("alp beta gamma"))
	assert.Equal(t, DefaultMinLength, New(Config{}).MinLength())
}

func TestMaxTokensCapsCandidates(t *testing.T) {
	n := New(Config{MinLength: 3, MaxTokens: 3})
	assert.Equal(t, []string{"alpha", "beta"}, n.Normalize("alpha the beta gamma delta"))

	unbounded := New(Config{MinLength: 3})
	assert.Len(t, unbounded.Normalize(strings.Repeat("archive ", 20000)), 20000)
}

func TestStopWords(t *testing.T) {
	assert.True(t, IsStopWord("the"))
	assert.True(t, IsStopWord("themselves"))
	assert.False(t, IsStopWord("library"))
}

func TestNormalizeConcurrent(t *testing.T) {
	n := Default()
	want := n.Normalize("indexing documents concurrently")
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, want, n.Normalize("indexing documents concurrently"))
		}()
	}
	wg.Wait()
}

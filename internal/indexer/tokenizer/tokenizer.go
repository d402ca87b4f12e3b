// Package tokenizer turns page text into index terms. It lower-cases input,
// splits it into runs of ASCII letters, drops short words and English
// stop-words, and applies the Snowball English stemmer.
package tokenizer

import (
	"strings"

	"github.com/kljensen/snowball/english"
)

const (
	DefaultMinLength = 3
	DefaultMaxTokens = 10000
)

// Token represents a single normalised term and its position in the
// page's term sequence.
type Token struct {
	Term     string
	Position int
}

// Config controls filtering. MaxTokens caps the candidate words examined
// per call; zero or negative means no cap.
type Config struct {
	MinLength int
	MaxTokens int
}

// Normalizer is immutable after construction and safe for concurrent use.
type Normalizer struct {
	minLength int
	maxTokens int
}

// New returns a Normalizer, filling zero values with the defaults.
func New(cfg Config) *Normalizer {
	if cfg.MinLength <= 0 {
		cfg.MinLength = DefaultMinLength
	}
	return &Normalizer{minLength: cfg.MinLength, maxTokens: cfg.MaxTokens}
}

// Default returns a Normalizer with MinLength 3 and MaxTokens 10000.
func Default() *Normalizer {
	return New(Config{MinLength: DefaultMinLength, MaxTokens: DefaultMaxTokens})
}

// MinLength returns the configured minimum term length.
func (n *Normalizer) MinLength() int {
	return n.minLength
}

// Normalize returns the terms of text in input order.
func (n *Normalizer) Normalize(text string) []string {
	tokens := n.Tokenize(text)
	terms := make([]string, len(tokens))
	for i, t := range tokens {
		terms[i] = t.Term
	}
	return terms
}

// Tokenize returns the terms of text with 0-based positions. Positions count
// only kept terms, so they index into the Normalize output.
func (n *Normalizer) Tokenize(text string) []Token {
	words := strings.FieldsFunc(strings.ToLower(text), isBoundary)
	if n.maxTokens > 0 && len(words) > n.maxTokens {
		words = words[:n.maxTokens]
	}
	tokens := make([]Token, 0, len(words)/2)
	for _, word := range words {
		term, ok := n.term(word)
		if !ok {
			continue
		}
		tokens = append(tokens, Token{Term: term, Position: len(tokens)})
	}
	return tokens
}

func (n *Normalizer) term(word string) (string, bool) {
	if len(word) < n.minLength {
		return "", false
	}
	if IsStopWord(word) {
		return "", false
	}
	stemmed := english.Stem(word, false)
	if len(stemmed) < n.minLength {
		return "", false
	}
	return stemmed, true
}

// isBoundary splits on every rune outside a-z, so "covid19" yields "covid"
// and "abc123def" yields "abc" and "def".
func isBoundary(r rune) bool {
	return r < 'a' || r > 'z'
}

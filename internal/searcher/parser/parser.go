// Package parser turns a raw query string into the ordered, de-duplicated
// list of index terms it will be matched against.
package parser

import (
	"strings"

	"github.com/Adithya-Monish-Kumar-K/doclibrary/internal/indexer/tokenizer"
)

// QueryPlan is a normalized query. Terms keep the order of their first
// occurrence in the raw query.
type QueryPlan struct {
	RawQuery string
	Terms    []string
}

// Empty reports whether nothing in the query survived normalization.
func (p QueryPlan) Empty() bool {
	return len(p.Terms) == 0
}

// Parser normalizes queries with the same rules the indexer used, so query
// terms and index keys compare byte for byte.
type Parser struct {
	normalizer *tokenizer.Normalizer
}

func New(normalizer *tokenizer.Normalizer) *Parser {
	return &Parser{normalizer: normalizer}
}

func (p *Parser) Parse(query string) QueryPlan {
	plan := QueryPlan{RawQuery: strings.TrimSpace(query), Terms: []string{}}
	if plan.RawQuery == "" {
		return plan
	}
	seen := make(map[string]struct{})
	for _, term := range p.normalizer.Normalize(plan.RawQuery) {
		if _, dup := seen[term]; dup {
			continue
		}
		seen[term] = struct{}{}
		plan.Terms = append(plan.Terms, term)
	}
	return plan
}

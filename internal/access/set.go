// Package access decides which documents a caller may see. Roles map to a
// classification Set, and Filter keeps only results inside that Set.
package access

import (
	"fmt"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/doclibrary/internal/library"
)

// Set is a bitmask of allowed classifications.
type Set uint8

// NewSet builds a Set from individual classifications.
func NewSet(cs ...library.Classification) Set {
	var s Set
	for _, c := range cs {
		if c.Valid() {
			s |= 1 << c
		}
	}
	return s
}

// PublicOnly is the fallback for callers with no known role.
var PublicOnly = NewSet(library.Public)

// All allows every classification.
var All = NewSet(library.Classifications...)

func (s Set) Contains(c library.Classification) bool {
	return c.Valid() && s&(1<<c) != 0
}

func (s Set) Empty() bool {
	return s == 0
}

// Classifications returns the members in ascending order.
func (s Set) Classifications() []library.Classification {
	out := make([]library.Classification, 0, len(library.Classifications))
	for _, c := range library.Classifications {
		if s.Contains(c) {
			out = append(out, c)
		}
	}
	return out
}

// Strings returns member names in ascending order; used for SQL ANY($1)
// parameters and cache keys.
func (s Set) Strings() []string {
	cs := s.Classifications()
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.String()
	}
	return out
}

// String renders the header form, e.g. "public,internal".
func (s Set) String() string {
	return strings.Join(s.Strings(), ",")
}

// ParseSet parses a comma-separated header value. Unknown names are an
// error so a malformed gateway header never widens access.
func ParseSet(v string) (Set, error) {
	var s Set
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		c, err := library.ParseClassification(part)
		if err != nil {
			return 0, fmt.Errorf("parsing classification set: %w", err)
		}
		s |= NewSet(c)
	}
	return s, nil
}

// Classified is anything carrying a document classification.
type Classified interface {
	Visibility() library.Classification
}

// Filter keeps the items whose classification is in allowed, preserving
// order. It must run on the full ranked list, before any limit is applied.
func Filter[T Classified](items []T, allowed Set) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		if allowed.Contains(item.Visibility()) {
			out = append(out, item)
		}
	}
	return out
}

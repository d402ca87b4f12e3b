// Package library holds the document records shared by ingestion, the
// indexer and the searcher.
package library

import (
	"fmt"
	"strings"
)

// Classification is a document's visibility tier. Tiers are ordered from
// least to most sensitive.
type Classification uint8

const (
	Public Classification = iota
	Internal
	Confidential
	Restricted
)

// Classifications lists every tier in ascending order.
var Classifications = []Classification{Public, Internal, Confidential, Restricted}

var classificationNames = [...]string{"public", "internal", "confidential", "restricted"}

func (c Classification) String() string {
	if int(c) < len(classificationNames) {
		return classificationNames[c]
	}
	return fmt.Sprintf("classification(%d)", uint8(c))
}

// Valid reports whether c is one of the four known tiers.
func (c Classification) Valid() bool {
	return int(c) < len(classificationNames)
}

// ParseClassification accepts a tier name in any case.
func ParseClassification(s string) (Classification, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range classificationNames {
		if n == name {
			return Classification(i), nil
		}
	}
	return 0, fmt.Errorf("unknown classification %q", s)
}

func (c Classification) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("invalid classification %d", uint8(c))
	}
	return []byte(c.String()), nil
}

func (c *Classification) UnmarshalText(b []byte) error {
	parsed, err := ParseClassification(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

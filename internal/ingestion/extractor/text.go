package extractor

import (
	"strings"
	"unicode/utf8"

	"github.com/Adithya-Monish-Kumar-K/doclibrary/internal/library"
)

// Text extracts plain text files. Form feeds separate pages.
type Text struct{}

func (Text) Extract(data []byte) (Result, error) {
	if !utf8.Valid(data) {
		data = []byte(strings.ToValidUTF8(string(data), " "))
	}
	raw := strings.TrimSuffix(string(data), "\f")
	parts := strings.Split(raw, "\f")
	res := Result{Pages: make(library.PageText), TotalPages: len(parts)}
	for i, part := range parts {
		addPage(res.Pages, i+1, part)
	}
	return res, nil
}

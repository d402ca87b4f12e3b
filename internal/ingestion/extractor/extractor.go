// Package extractor turns uploaded files into per-page text. A page that
// fails to extract contributes empty text; only a file that cannot be
// opened at all is an error.
package extractor

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/doclibrary/internal/library"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrUnreadable        = errors.New("file could not be read")
)

// Result is the extracted content of one file. Pages only holds pages that
// have text; TotalPages counts every page of the source.
type Result struct {
	Pages      library.PageText
	TotalPages int
	Title      string
	Author     string
	Subject    string
}

type Extractor interface {
	Extract(data []byte) (Result, error)
}

// Extensions lists the accepted upload extensions.
var Extensions = []string{".pdf", ".txt"}

// ForFilename picks an extractor by file extension.
func ForFilename(name string) (Extractor, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return PDF{}, nil
	case ".txt":
		return Text{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(name))
	}
}

// Sanitize strips NUL bytes and control characters other than common
// whitespace, then trims.
func Sanitize(s string) string {
	if s == "" {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, ch := range s {
		if ch == '\n' || ch == '\r' || ch == '\t' {
			b.WriteRune(ch)
			continue
		}
		if ch < 0x20 || ch == 0x7f {
			continue
		}
		b.WriteRune(ch)
	}
	return strings.TrimSpace(b.String())
}

// addPage stores text for page when anything survives sanitizing.
func addPage(pages library.PageText, page int, text string) {
	if clean := Sanitize(text); clean != "" {
		pages[page] = clean
	}
}

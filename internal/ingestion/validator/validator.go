// Package validator checks upload form fields and reports every failing
// field at once.
package validator

import (
	"fmt"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/doclibrary/internal/ingestion/extractor"
	"github.com/Adithya-Monish-Kumar-K/doclibrary/internal/library"
)

const (
	maxTitleLength  = 1024
	maxAuthorLength = 512
	maxFieldLength  = 512
)

// ValidationError holds per-field validation failure messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, msg))
	}
	sort.Strings(parts)
	return strings.Join(parts, "; ")
}

// Upload is the form of one upload before extraction.
type Upload struct {
	Title          string
	Author         string
	Subject        string
	Classification string
	Filename       string
	Size           int64
}

// ValidateUpload checks everything that can be checked before the file is
// read. Title may be blank here because PDF metadata can supply it; use
// ValidateTitle once extraction has run.
func ValidateUpload(u Upload, maxBytes int64) (library.Classification, error) {
	errs := make(map[string]string)

	classification, err := library.ParseClassification(strings.TrimSpace(u.Classification))
	if u.Classification == "" {
		classification, err = library.Public, nil
	}
	if err != nil {
		errs["classification"] = "classification must be one of public, internal, confidential, restricted"
	}
	ext := strings.ToLower(filepath.Ext(u.Filename))
	switch {
	case u.Filename == "":
		errs["file"] = "file is required"
	case !slices.Contains(extractor.Extensions, ext):
		errs["file"] = "only .pdf and .txt files are accepted"
	case u.Size <= 0:
		errs["file"] = "file is empty"
	case maxBytes > 0 && u.Size > maxBytes:
		errs["file"] = fmt.Sprintf("file must be at most %d bytes", maxBytes)
	}
	if len(strings.TrimSpace(u.Title)) > maxTitleLength {
		errs["title"] = fmt.Sprintf("title must be at most %d characters", maxTitleLength)
	}
	if len(u.Author) > maxAuthorLength {
		errs["author"] = fmt.Sprintf("author must be at most %d characters", maxAuthorLength)
	}
	if len(u.Subject) > maxFieldLength {
		errs["subject"] = fmt.Sprintf("subject must be at most %d characters", maxFieldLength)
	}
	if len(errs) > 0 {
		return 0, &ValidationError{Fields: errs}
	}
	return classification, nil
}

// ValidateTitle requires a non-blank title.
func ValidateTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return &ValidationError{Fields: map[string]string{"title": "title is required"}}
	}
	return nil
}

package extractor

import (
	"bytes"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/doclibrary/internal/library"
	"github.com/ledongthuc/pdf"
)

// PDF extracts text page by page with ledongthuc/pdf and reads Title,
// Author and Subject from the document Info dictionary.
type PDF struct{}

func (PDF) Extract(data []byte) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: malformed pdf: %v", ErrUnreadable, r)
		}
	}()
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}

	res = Result{Pages: make(library.PageText), TotalPages: r.NumPage()}
	info := r.Trailer().Key("Info")
	res.Title = Sanitize(info.Key("Title").Text())
	res.Author = Sanitize(info.Key("Author").Text())
	res.Subject = Sanitize(info.Key("Subject").Text())

	for i := 1; i <= res.TotalPages; i++ {
		text, err := pageText(r.Page(i))
		if err != nil {
			slog.Default().Warn("pdf page extraction failed", "component", "extractor", "page", i, "error", err)
			continue
		}
		addPage(res.Pages, i, text)
	}
	return res, nil
}

// pageText isolates per-page panics from the PDF parser so one broken page
// does not lose the rest of the document.
func pageText(p pdf.Page) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("page parser panic: %v", r)
		}
	}()
	if p.V.IsNull() {
		return "", nil
	}
	fonts := make(map[string]*pdf.Font)
	for _, name := range p.Fonts() {
		f := p.Font(name)
		fonts[name] = &f
	}
	return p.GetPlainText(fonts)
}

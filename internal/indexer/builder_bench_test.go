package indexer

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/doclibrary/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/doclibrary/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/doclibrary/internal/library"
)

func benchPages(n int) library.PageText {
	pages := make(library.PageText, n)
	for i := 1; i <= n; i++ {
		pages[i] = strings.Repeat(fmt.Sprintf("Survey of stellar spectra volume %d, with plates and observations. ", i), 40)
	}
	return pages
}

func BenchmarkBuildDocumentIndex(b *testing.B) {
	pages := benchPages(20)
	n := tokenizer.Default()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := BuildDocumentIndex("bench", pages, n); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkIndexDocumentMemoryStore(b *testing.B) {
	builder := NewBuilder(index.NewMemoryStore(), tokenizer.Default(), nil)
	pages := benchPages(20)
	ctx := context.Background()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := builder.IndexDocument(ctx, fmt.Sprintf("doc-%d", i%100), pages); err != nil {
			b.Fatal(err)
		}
	}
}

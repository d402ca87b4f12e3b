package executor

import (
	"context"
	"fmt"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/doclibrary/internal/access"
	"github.com/Adithya-Monish-Kumar-K/doclibrary/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/doclibrary/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/doclibrary/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/doclibrary/internal/library"
	"github.com/Adithya-Monish-Kumar-K/doclibrary/internal/searcher/parser"
)

var benchWords = []string{"orbit", "planet", "comet", "nebula", "galaxy", "quasar", "signal", "telescope"}

func setupBench(b *testing.B, docs int) *Executor {
	b.Helper()
	store := index.NewMemoryStore()
	normalizer := tokenizer.Default()
	builder := indexer.NewBuilder(store, normalizer, nil)
	catalog := fakeCatalog{}
	for i := range docs {
		id := fmt.Sprintf("doc-%05d", i)
		text := ""
		for j := range 50 {
			text += benchWords[(i+j)%len(benchWords)] + " "
		}
		if _, err := builder.IndexDocument(context.Background(), id, library.PageText{1: text, 2: text}); err != nil {
			b.Fatal(err)
		}
		catalog[id] = library.Document{ID: id, Classification: library.Classifications[i%4], Status: library.StatusActive}
	}
	return New(store, catalog, parser.New(normalizer), testConfig(), nil)
}

func BenchmarkExecute(b *testing.B) {
	for _, docs := range []int{100, 1000} {
		exec := setupBench(b, docs)
		b.Run(fmt.Sprintf("docs=%d/frequency", docs), func(b *testing.B) {
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				exec.Execute(context.Background(), Request{Query: "orbit planet", Allowed: access.PublicOnly})
			}
		})
		b.Run(fmt.Sprintf("docs=%d/tfidf", docs), func(b *testing.B) {
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				exec.Execute(context.Background(), Request{Query: "orbit planet", Allowed: access.All, Scoring: "tfidf"})
			}
		})
	}
}

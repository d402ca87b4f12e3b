package tokenizer

import (
	"strings"
	"testing"
)

var benchPage = strings.Repeat("The committee reviewed archival records of the observatory, "+
	"cataloguing spectrographic plates and correspondence between astronomers. ", 50)

func BenchmarkNormalize(b *testing.B) {
	n := Default()
	b.ReportAllocs()
	b.SetBytes(int64(len(benchPage)))
	for i := 0; i < b.N; i++ {
		n.Normalize(benchPage)
	}
}

func BenchmarkNormalizeParallel(b *testing.B) {
	n := Default()
	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			n.Tokenize(benchPage)
		}
	})
}

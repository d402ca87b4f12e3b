package segstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/doclibrary/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/doclibrary/internal/indexer/segment"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlushAndReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	flushes := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "flushes"}, []string{"status"})

	s, err := Open(Config{DataDir: dir, Flushes: flushes})
	require.NoError(t, err)
	require.NoError(t, s.UpsertPosting(ctx, "alpha", "d1", 1, 0))
	require.NoError(t, s.Flush())
	require.NoError(t, s.Flush())
	assert.Equal(t, 1.0, testutil.ToFloat64(flushes.WithLabelValues("ok")))

	reopened, err := Open(Config{DataDir: dir})
	require.NoError(t, err)
	list, err := reopened.PostingsForTerm(ctx, "alpha", 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "d1", list[0].DocumentID)
	st, ok, _ := reopened.StatsForDocument(ctx, "d1")
	assert.True(t, ok)
	assert.Equal(t, 1, st.TotalTerms)
}

func TestReaderPicksUpNewSegments(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	writer, err := Open(Config{DataDir: dir})
	require.NoError(t, err)
	reader, err := Open(Config{DataDir: dir, ReadOnly: true})
	require.NoError(t, err)

	require.NoError(t, writer.ReplaceDocument(ctx, index.DocumentIndex{
		DocumentID: "d1",
		Postings:   index.PostingList{{Term: "beta", DocumentID: "d1", Page: 2, Frequency: 1, Positions: []int{0}}},
		Stats:      index.DocumentStats{DocumentID: "d1", TotalTerms: 1, UniqueTerms: 1},
	}))
	require.NoError(t, writer.Flush())

	changed, err := reader.Reload()
	require.NoError(t, err)
	assert.True(t, changed)
	n, _ := reader.TotalDocumentCount(ctx)
	assert.Equal(t, 1, n)

	changed, err = reader.Reload()
	require.NoError(t, err)
	assert.False(t, changed)

	require.NoError(t, writer.DeleteDocumentPostings(ctx, "d1"))
	require.NoError(t, writer.Flush())
	_, err = reader.Reload()
	require.NoError(t, err)
	n, _ = reader.TotalDocumentCount(ctx)
	assert.Equal(t, 0, n)

	require.NoError(t, reader.UpsertPosting(ctx, "gamma", "d9", 1, 0))
	require.NoError(t, reader.Flush())
	names, _ := filepath.Glob(filepath.Join(dir, "*"+segment.Extension))
	assert.Len(t, names, 2)
}

func TestCorruptNewestFallsBack(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := Open(Config{DataDir: dir})
	require.NoError(t, err)
	require.NoError(t, s.UpsertPosting(ctx, "alpha", "d1", 1, 0))
	require.NoError(t, s.Flush())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "seg_99999999999999999999"+segment.Extension), []byte("garbage"), 0644))

	reopened, err := Open(Config{DataDir: dir})
	require.NoError(t, err)
	n, _ := reopened.TotalDocumentCount(ctx)
	assert.Equal(t, 1, n)
}

func TestPruneKeepsRecentSegments(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := Open(Config{DataDir: dir})
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		require.NoError(t, s.UpsertPosting(ctx, "alpha", "d1", 1, i))
		require.NoError(t, s.Flush())
	}
	names, _ := filepath.Glob(filepath.Join(dir, "*"+segment.Extension))
	assert.Len(t, names, retainSegments)
}

func TestOpenRequiresDir(t *testing.T) {
	_, err := Open(Config{})
	assert.Error(t, err)
}

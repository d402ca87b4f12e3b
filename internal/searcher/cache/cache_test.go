package cache

import (
	"context"
	"errors"
	"path"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/doclibrary/internal/access"
	"github.com/Adithya-Monish-Kumar-K/doclibrary/internal/library"
	"github.com/Adithya-Monish-Kumar-K/doclibrary/internal/searcher/executor"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memBackend struct {
	mu   sync.Mutex
	data map[string]string
	fail bool
}

func newMemBackend() *memBackend {
	return &memBackend{data: make(map[string]string)}
}

func (m *memBackend) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return "", errors.New("connection refused")
	}
	v, ok := m.data[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (m *memBackend) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = string(value.([]byte))
	return nil
}

func (m *memBackend) FlushByPattern(_ context.Context, pattern string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k := range m.data {
		if ok, _ := path.Match(pattern, k); ok {
			delete(m.data, k)
			n++
		}
	}
	return n, nil
}

func TestKeyIgnoresTermOrder(t *testing.T) {
	a := Key{Terms: []string{"planet", "orbit"}, Allowed: access.PublicOnly, Scoring: "frequency", Limit: 10}
	b := Key{Terms: []string{"orbit", "planet"}, Allowed: access.PublicOnly, Scoring: "frequency", Limit: 10}
	assert.Equal(t, a.String(), b.String())
	assert.Contains(t, a.String(), keyPrefix)

	other := b
	other.Allowed = access.All
	assert.NotEqual(t, a.String(), other.String(), "classification set is part of the key")
	other = b
	other.Scoring = "tfidf"
	assert.NotEqual(t, a.String(), other.String())
	other = b
	other.Limit = 5
	assert.NotEqual(t, a.String(), other.String())
}

func TestGetOrCompute(t *testing.T) {
	ctx := context.Background()
	c := New(newMemBackend(), time.Hour, nil)
	key := Key{Terms: []string{"orbit"}, Allowed: access.PublicOnly, Limit: 10}
	want := &executor.SearchResult{Query: "orbit", Status: executor.StatusOK, TotalHits: 1,
		Results: []executor.Result{{DocumentID: "d1", Classification: library.Public, Pages: []int{1}}}}

	calls := 0
	compute := func(context.Context) (*executor.SearchResult, error) {
		calls++
		return want, nil
	}
	got, hit, err := c.GetOrCompute(ctx, key, compute)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, want, got)

	got, hit, err = c.GetOrCompute(ctx, key, compute)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "d1", got.Results[0].DocumentID)
	assert.Equal(t, library.Public, got.Results[0].Classification)
	assert.Equal(t, 1, calls)

	hits, misses := c.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
}

func TestErrorsAreNotCached(t *testing.T) {
	ctx := context.Background()
	c := New(newMemBackend(), time.Hour, nil)
	key := Key{Terms: []string{"orbit"}}
	_, _, err := c.GetOrCompute(ctx, key, func(context.Context) (*executor.SearchResult, error) {
		return nil, errors.New("store down")
	})
	require.Error(t, err)
	_, ok := c.Get(ctx, key)
	assert.False(t, ok)
}

func TestBackendFailureIsAMiss(t *testing.T) {
	backend := newMemBackend()
	backend.fail = true
	c := New(backend, time.Hour, nil)
	_, ok := c.Get(context.Background(), Key{Terms: []string{"orbit"}})
	assert.False(t, ok)
}

func TestConcurrentMissesComputeOnce(t *testing.T) {
	c := New(newMemBackend(), time.Hour, nil)
	key := Key{Terms: []string{"orbit"}}
	var calls atomic.Int32
	release := make(chan struct{})
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := c.GetOrCompute(context.Background(), key, func(context.Context) (*executor.SearchResult, error) {
				calls.Add(1)
				<-release
				return &executor.SearchResult{}, nil
			})
			assert.NoError(t, err)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	assert.LessOrEqual(t, calls.Load(), int32(2))
}

func TestLeaderCancellationDoesNotFailFollowers(t *testing.T) {
	c := New(newMemBackend(), time.Hour, nil)
	key := Key{Terms: []string{"orbit"}}
	started := make(chan struct{})
	release := make(chan struct{})
	compute := func(ctx context.Context) (*executor.SearchResult, error) {
		close(started)
		<-release
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return &executor.SearchResult{Query: "orbit"}, nil
	}

	leaderCtx, cancel := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, _, err := c.GetOrCompute(leaderCtx, key, compute)
		leaderErr <- err
	}()
	<-started

	followerDone := make(chan error, 1)
	var got *executor.SearchResult
	go func() {
		var err error
		got, _, err = c.GetOrCompute(context.Background(), key, func(context.Context) (*executor.SearchResult, error) {
			return nil, errors.New("follower must join the leader's call")
		})
		followerDone <- err
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-leaderErr, context.Canceled)
	close(release)

	require.NoError(t, <-followerDone)
	assert.Equal(t, "orbit", got.Query)
	_, ok := c.Get(context.Background(), key)
	assert.True(t, ok, "the shared result is still cached")
}

func TestInvalidateAll(t *testing.T) {
	ctx := context.Background()
	backend := newMemBackend()
	backend.data["unrelated"] = "x"
	c := New(backend, time.Hour, nil)
	key := Key{Terms: []string{"orbit"}}
	c.Set(ctx, key, &executor.SearchResult{})
	require.NoError(t, c.InvalidateAll(ctx))
	_, ok := c.Get(ctx, key)
	assert.False(t, ok)
	assert.Contains(t, backend.data, "unrelated")
}

package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/vecta/internal/schema"
	"github.com/Adithya-Monish-Kumar-K/vecta/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/vecta/internal/searcher/parser"
)

func mustParse(t *testing.T, query string) *parser.Query {
	t.Helper()
	q, err := parser.Parse(query, schema.Default())
	require.NoError(t, err)
	return q
}

func sampleResult() *executor.SearchResult {
	return &executor.SearchResult{
		Query:     "notes",
		TotalHits: 1,
		Hits: []executor.Hit{
			{DocID: 3, Score: 1.25, Fields: map[string]string{"title": "/n/notes.txt"}},
		},
		Generation: 4,
	}
}

func TestQueryCache_KeyedByGeneration(t *testing.T) {
	ctx := context.Background()
	c := New(NewLocal(16, time.Minute), "/idx", time.Minute)
	q := mustParse(t, "notes")

	_, ok := c.Get(ctx, 4, q, 10)
	assert.False(t, ok)

	c.Set(ctx, 4, q, 10, sampleResult())
	got, ok := c.Get(ctx, 4, q, 10)
	require.True(t, ok)
	assert.Equal(t, sampleResult().Hits, got.Hits)

	_, ok = c.Get(ctx, 5, q, 10)
	assert.False(t, ok, "a new generation must not see old entries")
	_, ok = c.Get(ctx, 4, q, 20)
	assert.False(t, ok, "limit is part of the key")

	// equivalent spellings share an entry
	_, ok = c.Get(ctx, 4, mustParse(t, "NOTES"), 10)
	assert.True(t, ok)

	hits, misses := c.Stats()
	assert.Equal(t, int64(2), hits)
	assert.Equal(t, int64(3), misses)
}

func TestQueryCache_NamespacesAreIsolated(t *testing.T) {
	ctx := context.Background()
	backend := NewLocal(16, time.Minute)
	a := New(backend, "/idx/a", time.Minute)
	b := New(backend, "/idx/b", time.Minute)
	q := mustParse(t, "notes")

	a.Set(ctx, 1, q, 10, sampleResult())
	b.Set(ctx, 1, q, 10, sampleResult())
	require.Equal(t, 2, backend.Len())

	require.NoError(t, a.Invalidate(ctx))
	assert.Equal(t, 1, backend.Len())
	_, ok := b.Get(ctx, 1, q, 10)
	assert.True(t, ok)
}

func TestQueryCache_GetOrComputeOnce(t *testing.T) {
	ctx := context.Background()
	c := New(NewLocal(16, time.Minute), "/idx", time.Minute)
	q := mustParse(t, "notes")

	var calls atomic.Int32
	release := make(chan struct{})
	compute := func() (*executor.SearchResult, error) {
		calls.Add(1)
		<-release
		return sampleResult(), nil
	}

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, _, err := c.GetOrCompute(ctx, 1, q, 10, compute)
			assert.NoError(t, err)
			assert.Equal(t, 1, result.TotalHits)
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	assert.LessOrEqual(t, calls.Load(), int32(5))
	assert.GreaterOrEqual(t, calls.Load(), int32(1))

	result, hit, err := c.GetOrCompute(ctx, 1, q, 10, compute)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 1, result.TotalHits)
}

func TestLocal(t *testing.T) {
	ctx := context.Background()
	l := NewLocal(0, time.Minute)

	require.NoError(t, l.Set(ctx, "vecta:search:a:1", "x", 0))
	require.NoError(t, l.Set(ctx, "vecta:search:b:1", []byte("y"), 0))
	assert.Error(t, l.Set(ctx, "k", 42, 0))

	v, ok, err := l.Lookup(ctx, "vecta:search:b:1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "y", v)

	n, err := l.FlushByPattern(ctx, "vecta:search:a:*")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, 1, l.Len())
}

package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/vecta/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/vecta/pkg/resilience"
)

type flakyBackend struct {
	*Local
	down  bool
	calls int
}

var errUnreachable = errors.New("dial tcp: connection refused")

func (f *flakyBackend) Lookup(ctx context.Context, key string) (string, bool, error) {
	f.calls++
	if f.down {
		return "", false, errUnreachable
	}
	return f.Local.Lookup(ctx, key)
}

func (f *flakyBackend) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	f.calls++
	if f.down {
		return errUnreachable
	}
	return f.Local.Set(ctx, key, value, ttl)
}

func TestGuardedStopsCallingDeadBackend(t *testing.T) {
	ctx := context.Background()
	backend := &flakyBackend{Local: NewLocal(8, 0), down: true}
	breaker := resilience.NewBreaker("redis", resilience.BreakerConfig{Failures: 2, Cooldown: time.Hour})
	g := Guarded(backend, breaker)

	_, _, err := g.Lookup(ctx, "k")
	require.ErrorIs(t, err, errUnreachable)
	require.ErrorIs(t, g.Set(ctx, "k", "v", 0), errUnreachable)
	require.Equal(t, resilience.Open, breaker.State())

	calls := backend.calls
	_, found, err := g.Lookup(ctx, "k")
	require.NoError(t, err, "open breaker reads as a miss")
	assert.False(t, found)
	require.NoError(t, g.Set(ctx, "k", "v", 0))
	assert.Equal(t, calls, backend.calls)
}

func TestGuardedQueryCacheFallsThrough(t *testing.T) {
	ctx := context.Background()
	backend := &flakyBackend{Local: NewLocal(8, 0), down: true}
	c := New(Guarded(backend, resilience.NewBreaker("redis", resilience.BreakerConfig{Failures: 1})), "/idx", 0)
	q := mustParse(t, "hello")

	for range 3 {
		res, hit, err := c.GetOrCompute(ctx, 1, q, 10, func() (*executor.SearchResult, error) {
			return sampleResult(), nil
		})
		require.NoError(t, err)
		assert.False(t, hit)
		assert.Equal(t, sampleResult().TotalHits, res.TotalHits)
	}
}

package cache

import (
	"context"
	"errors"
	"time"

	"github.com/Adithya-Monish-Kumar-K/vecta/pkg/resilience"
)

// Guarded wraps a remote backend in a circuit breaker. While the breaker is
// open lookups are plain misses and writes are dropped, so searches fall
// through to the index without waiting on the backend.
func Guarded(backend Backend, breaker *resilience.Breaker) Backend {
	return &guarded{backend: backend, breaker: breaker}
}

type guarded struct {
	backend Backend
	breaker *resilience.Breaker
}

func (g *guarded) Lookup(ctx context.Context, key string) (string, bool, error) {
	var (
		value string
		found bool
	)
	err := g.breaker.Do(func() error {
		var err error
		value, found, err = g.backend.Lookup(ctx, key)
		return err
	})
	if errors.Is(err, resilience.ErrOpen) {
		return "", false, nil
	}
	return value, found, err
}

func (g *guarded) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	err := g.breaker.Do(func() error {
		return g.backend.Set(ctx, key, value, ttl)
	})
	if errors.Is(err, resilience.ErrOpen) {
		return nil
	}
	return err
}

// FlushByPattern bypasses the breaker; an explicit invalidation should
// report the backend's error.
func (g *guarded) FlushByPattern(ctx context.Context, pattern string) (int64, error) {
	return g.backend.FlushByPattern(ctx, pattern)
}

package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/vecta/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/vecta/internal/searcher/parser"
)

const keyPrefix = "vecta:search:"

// Backend stores serialised results. pkg/redis.Client and Local implement
// it.
type Backend interface {
	Lookup(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// QueryCache memoises search results. Keys include the index generation,
// so a commit or merge makes earlier entries unreachable without explicit
// invalidation.
type QueryCache struct {
	backend   Backend
	namespace string
	ttl       time.Duration
	group     singleflight.Group
	logger    *slog.Logger
	hits      atomic.Int64
	misses    atomic.Int64
}

// New creates a cache over backend. namespace separates indexes sharing one
// backend; the index path is a good choice.
func New(backend Backend, namespace string, ttl time.Duration) *QueryCache {
	return &QueryCache{
		backend:   backend,
		namespace: namespace,
		ttl:       ttl,
		logger:    slog.Default().With("component", "query-cache"),
	}
}

func (c *QueryCache) Get(ctx context.Context, generation uint64, q *parser.Query, limit int) (*executor.SearchResult, bool) {
	key := c.buildKey(generation, q, limit)
	data, ok, err := c.backend.Lookup(ctx, key)
	if err != nil {
		c.logger.Error("cache get failed", "key", key, "error", err)
		c.misses.Add(1)
		return nil, false
	}
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	var result executor.SearchResult
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	c.logger.Debug("cache hit", "query", q.Raw, "key", key)
	return &result, true
}

func (c *QueryCache) Set(ctx context.Context, generation uint64, q *parser.Query, limit int, result *executor.SearchResult) {
	key := c.buildKey(generation, q, limit)
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.backend.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached result or computes it once for all
// concurrent callers asking for the same key. The bool reports a cache hit.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	generation uint64,
	q *parser.Query,
	limit int,
	computeFn func() (*executor.SearchResult, error),
) (*executor.SearchResult, bool, error) {
	if result, ok := c.Get(ctx, generation, q, limit); ok {
		return result, true, nil
	}
	key := c.buildKey(generation, q, limit)
	val, err, _ := c.group.Do(key, func() (any, error) {
		result, err := computeFn()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, generation, q, limit, result)
		return result, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(*executor.SearchResult), false, nil
}

// Invalidate drops every entry of this cache's namespace.
func (c *QueryCache) Invalidate(ctx context.Context) error {
	deleted, err := c.backend.FlushByPattern(ctx, c.namespacePrefix()+"*")
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidate", "keys_deleted", deleted)
	return nil
}

func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *QueryCache) namespacePrefix() string {
	ns := sha256.Sum256([]byte(c.namespace))
	return fmt.Sprintf("%s%x:", keyPrefix, ns[:6])
}

func (c *QueryCache) buildKey(generation uint64, q *parser.Query, limit int) string {
	raw := fmt.Sprintf("gen=%d|%s|limit=%d", generation, q.String(), limit)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", c.namespacePrefix(), hash[:16])
}

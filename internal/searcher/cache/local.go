package cache

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const DefaultLocalSize = 256

// Local is an in-process Backend for when no Redis is configured. Entries
// expire after the ttl given to NewLocal.
type Local struct {
	entries *expirable.LRU[string, string]
}

func NewLocal(size int, ttl time.Duration) *Local {
	if size <= 0 {
		size = DefaultLocalSize
	}
	return &Local{entries: expirable.NewLRU[string, string](size, nil, ttl)}
}

func (l *Local) Lookup(_ context.Context, key string) (string, bool, error) {
	v, ok := l.entries.Get(key)
	return v, ok, nil
}

func (l *Local) Set(_ context.Context, key string, value any, _ time.Duration) error {
	switch v := value.(type) {
	case string:
		l.entries.Add(key, v)
	case []byte:
		l.entries.Add(key, string(v))
	default:
		return fmt.Errorf("unsupported cache value %T", value)
	}
	return nil
}

func (l *Local) FlushByPattern(_ context.Context, pattern string) (int64, error) {
	var deleted int64
	for _, key := range l.entries.Keys() {
		ok, err := path.Match(pattern, key)
		if err != nil {
			return deleted, fmt.Errorf("matching pattern %s: %w", pattern, err)
		}
		if ok && l.entries.Remove(key) {
			deleted++
		}
	}
	return deleted, nil
}

func (l *Local) Len() int {
	return l.entries.Len()
}

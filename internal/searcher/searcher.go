// Package searcher answers ranked full-text queries against committed index
// state. Every search reloads the manifest, so it sees the latest commit
// without waiting on or coordinating with a writer.
package searcher

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/vecta/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/vecta/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/vecta/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/vecta/internal/searcher/merger"
	"github.com/Adithya-Monish-Kumar-K/vecta/internal/searcher/parser"
	apperrors "github.com/Adithya-Monish-Kumar-K/vecta/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/vecta/pkg/metrics"
)

type Result = executor.SearchResult

type Hit = executor.Hit

type Options struct {
	// ReaderCacheSize bounds the open segment files kept between searches.
	ReaderCacheSize int
	DefaultLimit    int
	// MaxResults caps the limit a caller may ask for. Zero means no cap.
	MaxResults int
	Cache      *cache.QueryCache
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
}

// IndexStats describes the committed generation a searcher currently sees.
type IndexStats struct {
	Path       string             `json:"path"`
	Generation uint64             `json:"generation"`
	Segments   int                `json:"segments"`
	Docs       int                `json:"docs"`
	SizeBytes  int64              `json:"size_bytes"`
	Roots      []indexer.RootMeta `json:"roots"`
	Fields     []string           `json:"fields"`
}

type Searcher struct {
	path         string
	reader       *indexer.Reader
	exec         *executor.Executor
	cache        *cache.QueryCache
	metrics      *metrics.Metrics
	defaultLimit int
	maxResults   int
	logger       *slog.Logger
}

func Open(path string, opts Options) (*Searcher, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	reader, err := indexer.OpenReader(path, indexer.ReaderOptions{
		CacheSize: opts.ReaderCacheSize,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}
	defaultLimit := opts.DefaultLimit
	if defaultLimit <= 0 {
		defaultLimit = merger.DefaultLimit
	}
	return &Searcher{
		path:         path,
		reader:       reader,
		exec:         executor.New(),
		cache:        opts.Cache,
		metrics:      opts.Metrics,
		defaultLimit: defaultLimit,
		maxResults:   opts.MaxResults,
		logger:       logger.With("component", "searcher"),
	}, nil
}

func (s *Searcher) Path() string { return s.path }

// Search parses query against the index schema and returns at most limit
// hits. A non-positive limit means the default limit.
func (s *Searcher) Search(ctx context.Context, query string, limit int) (*Result, error) {
	start := time.Now()
	result, cacheHit, err := s.search(ctx, query, s.clamp(limit))
	s.observe(start, result, cacheHit, err)
	if err != nil {
		return nil, err
	}
	result.Elapsed = time.Since(start)
	return result, nil
}

func (s *Searcher) search(ctx context.Context, query string, limit int) (*Result, bool, error) {
	snap, err := s.reader.Reload(ctx)
	if err != nil {
		return nil, false, err
	}
	defer snap.Close()

	q, err := parser.Parse(query, snap.Schema())
	if err != nil {
		return nil, false, err
	}
	if q.Empty() {
		return &Result{Query: query, Hits: []Hit{}, Generation: snap.Generation()}, false, nil
	}

	compute := func() (*Result, error) {
		r, err := s.exec.Execute(ctx, q, snap, limit)
		if err != nil {
			return nil, err
		}
		r.Generation = snap.Generation()
		return r, nil
	}
	if s.cache == nil {
		r, err := compute()
		return r, false, err
	}
	shared, hit, err := s.cache.GetOrCompute(ctx, snap.Generation(), q, limit, compute)
	if err != nil {
		return nil, false, err
	}
	// concurrent callers share the computed result
	r := *shared
	r.Query = query
	r.Cached = hit
	return &r, hit, nil
}

func (s *Searcher) clamp(limit int) int {
	if limit <= 0 {
		limit = s.defaultLimit
	}
	if s.maxResults > 0 && limit > s.maxResults {
		limit = s.maxResults
	}
	return limit
}

func (s *Searcher) observe(start time.Time, result *Result, cacheHit bool, err error) {
	if s.metrics == nil {
		return
	}
	cacheStatus := "miss"
	if cacheHit {
		cacheStatus = "hit"
		s.metrics.CacheHitsTotal.Inc()
	} else if s.cache != nil && err == nil {
		s.metrics.CacheMissesTotal.Inc()
	}
	s.metrics.SearchLatency.WithLabelValues(cacheStatus).Observe(time.Since(start).Seconds())
	switch {
	case errors.Is(err, apperrors.ErrQueryParse):
		s.metrics.SearchQueriesTotal.WithLabelValues("parse_error").Inc()
	case err != nil:
		s.metrics.SearchQueriesTotal.WithLabelValues("error").Inc()
	case len(result.Hits) == 0:
		s.metrics.SearchQueriesTotal.WithLabelValues("zero_result").Inc()
		s.metrics.SearchResultsCount.Observe(0)
	default:
		s.metrics.SearchQueriesTotal.WithLabelValues("hit").Inc()
		s.metrics.SearchResultsCount.Observe(float64(len(result.Hits)))
	}
}

// Stats reports on the latest committed generation.
func (s *Searcher) Stats(ctx context.Context) (*IndexStats, error) {
	snap, err := s.reader.Reload(ctx)
	if err != nil {
		return nil, err
	}
	defer snap.Close()
	segs := snap.Segments()
	st := &IndexStats{
		Path:       s.path,
		Generation: snap.Generation(),
		Segments:   len(segs),
		Docs:       snap.DocCount(),
		Roots:      snap.Roots(),
		Fields:     snap.Schema().IndexedFields(),
	}
	for _, seg := range segs {
		st.SizeBytes += seg.Size
	}
	if s.metrics != nil {
		s.metrics.SegmentCount.Set(float64(st.Segments))
		s.metrics.LiveDocs.Set(float64(st.Docs))
	}
	return st, nil
}

// CacheStats returns hit and miss counts, or zeros without a cache.
func (s *Searcher) CacheStats() (hits, misses int64) {
	if s.cache == nil {
		return 0, 0
	}
	return s.cache.Stats()
}

// InvalidateCache drops every cached result of this index.
func (s *Searcher) InvalidateCache(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Invalidate(ctx)
}

func (s *Searcher) Close() error {
	return s.reader.Close()
}

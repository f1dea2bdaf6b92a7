// Package service exposes vecta's operations (index, merge, search, remove,
// list, stats) over one index directory. Every operation receives the index
// location and configuration through an explicit Context; nothing is read
// from the working directory.
package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/vecta/internal/document"
	"github.com/Adithya-Monish-Kumar-K/vecta/internal/events"
	"github.com/Adithya-Monish-Kumar-K/vecta/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/vecta/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/vecta/internal/ingestion/validator"
	"github.com/Adithya-Monish-Kumar-K/vecta/internal/ledger"
	"github.com/Adithya-Monish-Kumar-K/vecta/internal/schema"
	"github.com/Adithya-Monish-Kumar-K/vecta/internal/searcher"
	"github.com/Adithya-Monish-Kumar-K/vecta/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/vecta/internal/walker"
	apperrors "github.com/Adithya-Monish-Kumar-K/vecta/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/vecta/pkg/metrics"
)

// Context locates an index and carries the settings every operation on it
// uses.
type Context struct {
	IndexPath string
	// Schema is used when the index is created and checked against the
	// stored schema otherwise. Nil means schema.Default().
	Schema           *schema.Schema
	Rules            walker.FilterRules
	WriteBudget      int64
	MaxFileSize      int64
	IndexBinaryNames bool
	// MergePolicy runs after every index run. Nil means indexer.MergeAll.
	MergePolicy     indexer.MergePolicy
	ReaderCacheSize int
	DefaultLimit    int
	MaxResults      int
}

// Options wires optional collaborators. Every field may be nil.
type Options struct {
	Cache   *cache.QueryCache
	Events  *events.Collector
	Ledger  *ledger.Store
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// MergeSummary reports an explicit merge.
type MergeSummary struct {
	Merged     int           `json:"merged"`
	Docs       int           `json:"docs"`
	Dropped    int           `json:"dropped"`
	Generation uint64        `json:"generation"`
	Elapsed    time.Duration `json:"elapsed_ns"`
}

// RemoveSummary reports a removed directory.
type RemoveSummary struct {
	Root       string        `json:"root"`
	Removed    int           `json:"removed"`
	Generation uint64        `json:"generation"`
	Elapsed    time.Duration `json:"elapsed_ns"`
}

type Service struct {
	ictx   Context
	opts   Options
	logger *slog.Logger

	mu       sync.Mutex
	searcher *searcher.Searcher
}

func New(ictx Context, opts Options) (*Service, error) {
	if ictx.IndexPath == "" {
		return nil, apperrors.New(apperrors.ErrInvalidInput, "open", "", "index path is required")
	}
	abs, err := filepath.Abs(ictx.IndexPath)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "open", ictx.IndexPath, err)
	}
	ictx.IndexPath = abs
	if ictx.Schema == nil {
		ictx.Schema = schema.Default()
	}
	if ictx.MergePolicy == nil {
		ictx.MergePolicy = indexer.MergeAll{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	opts.Logger = logger
	return &Service{
		ictx:   ictx,
		opts:   opts,
		logger: logger.With("component", "service"),
	}, nil
}

func (s *Service) IndexPath() string { return s.ictx.IndexPath }

func (s *Service) openWriter(ctx context.Context) (*indexer.Writer, error) {
	return indexer.OpenOrCreate(ctx, s.ictx.IndexPath, s.ictx.Schema, indexer.Options{
		WriteBudget: s.ictx.WriteBudget,
		Logger:      s.opts.Logger,
	})
}

// Index walks every dir, adds its text files, prunes documents of files that
// no longer exist under it, commits, and applies the merge policy.
func (s *Service) Index(ctx context.Context, dirs ...string) (*ingestion.RunSummary, error) {
	started := time.Now()
	w, err := s.openWriter(ctx)
	if err != nil {
		return nil, err
	}
	defer w.Close()

	identity, _ := w.Schema().IdentityField()
	run := ingestion.New(w, identity, ingestion.Options{
		Rules: s.ictx.Rules,
		Builder: document.NewBuilder(w.Schema(),
			document.WithMaxFileSize(s.ictx.MaxFileSize),
			document.WithBinaryNames(s.ictx.IndexBinaryNames),
			document.WithLogger(s.opts.Logger),
		),
		Validator: validator.New(identity, 0),
		Policy:    s.ictx.MergePolicy,
		Metrics:   s.opts.Metrics,
		Logger:    s.opts.Logger,
	})
	summary, err := run.Run(ctx, dirs...)
	s.record(ctx, started, "index", summary, err)
	if err != nil {
		return nil, err
	}

	segments := len(w.Segments())
	for _, root := range summary.Roots {
		s.opts.Events.TrackIndex(events.IndexEvent{
			Type:       events.TypeIndexRun,
			IndexPath:  s.ictx.IndexPath,
			Root:       root,
			Seen:       summary.Seen,
			Indexed:    summary.Indexed,
			Skipped:    summary.Skipped,
			Pruned:     summary.Pruned,
			Segments:   segments,
			Generation: summary.Generation,
			LatencyMs:  summary.Elapsed.Milliseconds(),
		})
	}
	return summary, nil
}

// Merge folds every committed segment into one.
func (s *Service) Merge(ctx context.Context) (*MergeSummary, error) {
	start := time.Now()
	w, err := s.openWriter(ctx)
	if err != nil {
		return nil, err
	}
	defer w.Close()

	result, err := w.MergeWith(ctx, indexer.MergeAll{})
	if m := s.opts.Metrics; m != nil && (err != nil || len(result.Merged) > 0) {
		m.MergesTotal.WithLabelValues(metrics.Status(err)).Inc()
		if err == nil {
			m.MergeDuration.Observe(result.Duration.Seconds())
		}
	}
	if err != nil {
		s.record(ctx, start, "merge", nil, err)
		return nil, err
	}
	summary := &MergeSummary{
		Merged:     len(result.Merged),
		Docs:       result.Docs,
		Dropped:    result.Dropped,
		Generation: result.Generation,
		Elapsed:    time.Since(start),
	}
	s.record(ctx, start, "merge", &ingestion.RunSummary{Generation: summary.Generation}, nil)
	s.opts.Events.TrackIndex(events.IndexEvent{
		Type:       events.TypeMerge,
		IndexPath:  s.ictx.IndexPath,
		Indexed:    summary.Docs,
		Segments:   len(w.Segments()),
		Generation: summary.Generation,
		LatencyMs:  summary.Elapsed.Milliseconds(),
	})
	s.logger.Info("merge complete", "merged", summary.Merged, "docs", summary.Docs, "dropped", summary.Dropped)
	return summary, nil
}

// Remove deletes every document under dir and forgets dir as an indexed
// root. dir need not exist any more.
func (s *Service) Remove(ctx context.Context, dir string) (*RemoveSummary, error) {
	start := time.Now()
	root, err := ingestion.CanonicalRoot(dir)
	if err != nil {
		if dir == "" {
			return nil, err
		}
		abs, absErr := filepath.Abs(dir)
		if absErr != nil {
			return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "remove", dir, absErr)
		}
		root = filepath.Clean(abs)
	}

	w, err := s.openWriter(ctx)
	if err != nil {
		return nil, err
	}
	defer w.Close()

	removed, err := w.DeletePrefix(root)
	if err != nil {
		return nil, err
	}
	known := false
	for _, r := range w.Roots() {
		if r.Path == root {
			known = true
			break
		}
	}
	if removed == 0 && !known {
		return nil, apperrors.New(apperrors.ErrInvalidInput, "remove", root, "directory is not indexed")
	}
	w.ForgetRoot(root)
	if err := w.Commit(ctx); err != nil {
		return nil, err
	}
	summary := &RemoveSummary{
		Root:       root,
		Removed:    removed,
		Generation: w.Generation(),
		Elapsed:    time.Since(start),
	}
	s.record(ctx, start, "remove", &ingestion.RunSummary{Roots: []string{root}, Pruned: removed, Generation: summary.Generation}, nil)
	s.opts.Events.TrackIndex(events.IndexEvent{
		Type:       events.TypeRemove,
		IndexPath:  s.ictx.IndexPath,
		Root:       root,
		Pruned:     removed,
		Segments:   len(w.Segments()),
		Generation: summary.Generation,
		LatencyMs:  summary.Elapsed.Milliseconds(),
	})
	return summary, nil
}

func (s *Service) reader() (*searcher.Searcher, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.searcher != nil {
		return s.searcher, nil
	}
	sr, err := searcher.Open(s.ictx.IndexPath, searcher.Options{
		ReaderCacheSize: s.ictx.ReaderCacheSize,
		DefaultLimit:    s.ictx.DefaultLimit,
		MaxResults:      s.ictx.MaxResults,
		Cache:           s.opts.Cache,
		Metrics:         s.opts.Metrics,
		Logger:          s.opts.Logger,
	})
	if err != nil {
		return nil, err
	}
	s.searcher = sr
	return sr, nil
}

// Searcher returns the searcher over the index, opening it on first use.
func (s *Service) Searcher() (*searcher.Searcher, error) {
	return s.reader()
}

// Search returns the top limit documents for query from the latest commit.
func (s *Service) Search(ctx context.Context, query string, limit int) (*searcher.Result, error) {
	sr, err := s.reader()
	if err != nil {
		return nil, err
	}
	result, err := sr.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	s.opts.Events.TrackSearch(events.SearchEvent{
		IndexPath:  s.ictx.IndexPath,
		Query:      query,
		TotalHits:  result.TotalHits,
		Returned:   len(result.Hits),
		Generation: result.Generation,
		CacheHit:   result.Cached,
		LatencyMs:  result.Elapsed.Milliseconds(),
	})
	return result, nil
}

// Roots lists the directories recorded in the manifest. An index that was
// never created has none.
func (s *Service) Roots(ctx context.Context) ([]indexer.RootMeta, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m, err := indexer.ReadManifest(s.ictx.IndexPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrIndexOpen, "list", s.ictx.IndexPath, err)
	}
	return m.Roots, nil
}

func (s *Service) Stats(ctx context.Context) (*searcher.IndexStats, error) {
	sr, err := s.reader()
	if err != nil {
		return nil, err
	}
	return sr.Stats(ctx)
}

func (s *Service) record(ctx context.Context, started time.Time, kind string, summary *ingestion.RunSummary, runErr error) {
	if s.opts.Ledger == nil {
		return
	}
	run := ledger.Run{
		ID:        uuid.NewString(),
		IndexPath: s.ictx.IndexPath,
		Kind:      kind,
		StartedAt: started,
		Elapsed:   time.Since(started),
	}
	if summary != nil {
		run.Roots = summary.Roots
		run.Seen = summary.Seen
		run.Indexed = summary.Indexed
		run.Skipped = summary.Skipped
		run.Pruned = summary.Pruned
		run.Generation = summary.Generation
	}
	if runErr != nil {
		run.Error = runErr.Error()
	}
	if err := s.opts.Ledger.Record(ctx, run); err != nil {
		s.logger.Warn("failed to record run", "kind", kind, "error", err)
	}
}

func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.searcher == nil {
		return nil
	}
	err := s.searcher.Close()
	s.searcher = nil
	return err
}

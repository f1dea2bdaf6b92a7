package indexer

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"slices"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Adithya-Monish-Kumar-K/vecta/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/vecta/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/vecta/internal/schema"
	apperrors "github.com/Adithya-Monish-Kumar-K/vecta/pkg/errors"
)

const (
	DefaultReaderCacheSize = 64
	maxReloadAttempts      = 3
)

type ReaderOptions struct {
	// CacheSize bounds how many segment files stay open between reloads.
	CacheSize int
	Logger    *slog.Logger
}

// Reader loads snapshots of committed index state. It takes no lock and
// never waits for a writer.
type Reader struct {
	path   string
	segDir string
	logger *slog.Logger

	mu    sync.Mutex
	cache *lru.Cache[string, *segment.Reader]
}

func OpenReader(path string, opts ReaderOptions) (*Reader, error) {
	if path == "" {
		return nil, apperrors.New(apperrors.ErrInvalidInput, "open reader", path, "index path is empty")
	}
	size := opts.CacheSize
	if size <= 0 {
		size = DefaultReaderCacheSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cache, err := lru.NewWithEvict(size, func(_ string, r *segment.Reader) {
		r.Release()
	})
	if err != nil {
		return nil, fmt.Errorf("creating segment cache: %w", err)
	}
	return &Reader{
		path:   path,
		segDir: filepath.Join(path, SegmentsDir),
		logger: logger.With("component", "index-reader", "index", path),
		cache:  cache,
	}, nil
}

// Reload reads the current manifest and returns a snapshot of it. The
// caller must Close the snapshot. A segment removed by a concurrent merge
// between reading the manifest and opening the file triggers a fresh read.
func (r *Reader) Reload(ctx context.Context) (*Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var lastErr error
	for attempt := range maxReloadAttempts {
		if err := ctx.Err(); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrSearchExecution, "reload", r.path, err)
		}
		m, err := ReadManifest(r.path)
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperrors.New(apperrors.ErrSearchExecution, "reload", r.path, "no index found")
		}
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrSearchExecution, "reload", r.path, err)
		}
		segs, err := r.acquireAll(m)
		if err == nil {
			r.evictStale(m)
			return newSnapshot(m, segs), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, apperrors.Wrap(apperrors.ErrSearchExecution, "reload", r.path, err)
		}
		r.logger.Debug("segment vanished during reload, retrying", "attempt", attempt+1, "error", err)
		lastErr = err
	}
	return nil, apperrors.Wrap(apperrors.ErrSearchExecution, "reload", r.path, lastErr)
}

func (r *Reader) acquireAll(m *Manifest) ([]*segment.Reader, error) {
	segs := make([]*segment.Reader, 0, len(m.Segments))
	for _, meta := range m.Segments {
		seg, err := r.acquire(meta.ID)
		if err != nil {
			for _, s := range segs {
				s.Release()
			}
			return nil, fmt.Errorf("segment %s: %w", meta.ID, err)
		}
		segs = append(segs, seg)
	}
	return segs, nil
}

// acquire returns segment id with a reference held for the caller. The
// cache keeps its own reference until eviction.
func (r *Reader) acquire(id string) (*segment.Reader, error) {
	if seg, ok := r.cache.Get(id); ok {
		if seg.Retain() {
			return seg, nil
		}
		r.cache.Remove(id)
	}
	seg, err := segment.Open(r.segDir, id)
	if err != nil {
		return nil, err
	}
	seg.Retain()
	r.cache.Add(id, seg)
	return seg, nil
}

// evictStale drops cached segments the manifest no longer lists, which
// closes files removed by a merge once no snapshot uses them.
func (r *Reader) evictStale(m *Manifest) {
	current := make(map[string]struct{}, len(m.Segments))
	for _, seg := range m.Segments {
		current[seg.ID] = struct{}{}
	}
	for _, id := range r.cache.Keys() {
		if _, ok := current[id]; !ok {
			r.cache.Remove(id)
		}
	}
}

// Close releases the cached segment files. Open snapshots stay usable
// until they are closed.
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache.Purge()
	return nil
}

// Snapshot is an immutable view of one committed generation. It is safe for
// concurrent use.
type Snapshot struct {
	manifest  *Manifest
	segments  []*segment.Reader
	docs      map[uint64]index.StoredDoc
	lengths   map[string]int64
	closeOnce sync.Once
}

func newSnapshot(m *Manifest, segs []*segment.Reader) *Snapshot {
	live := buildLiveSet(segs, m.Tombstones)
	s := &Snapshot{
		manifest: m,
		segments: segs,
		docs:     make(map[uint64]index.StoredDoc),
		lengths:  make(map[string]int64),
	}
	for _, seg := range segs {
		for _, d := range seg.Docs() {
			if !live.isLive(d) {
				continue
			}
			s.docs[d.ID] = d
			for field, n := range d.Lengths {
				s.lengths[field] += int64(n)
			}
		}
	}
	return s
}

func (s *Snapshot) Generation() uint64 { return s.manifest.Generation }

func (s *Snapshot) Schema() *schema.Schema { return s.manifest.Schema }

func (s *Snapshot) Segments() []SegmentMeta { return slices.Clone(s.manifest.Segments) }

func (s *Snapshot) Roots() []RootMeta { return slices.Clone(s.manifest.Roots) }

// DocCount is the number of live documents.
func (s *Snapshot) DocCount() int { return len(s.docs) }

// Document returns the stored record of a live document.
func (s *Snapshot) Document(id uint64) (index.StoredDoc, bool) {
	d, ok := s.docs[id]
	return d, ok
}

// FieldLength is the token count of field in document id.
func (s *Snapshot) FieldLength(id uint64, field string) int {
	return s.docs[id].Lengths[field]
}

// AvgFieldLength is the mean token count of field over live documents.
func (s *Snapshot) AvgFieldLength(field string) float64 {
	if len(s.docs) == 0 {
		return 0
	}
	return float64(s.lengths[field]) / float64(len(s.docs))
}

// Postings returns the live postings of (field, term) across all segments,
// sorted by doc id.
func (s *Snapshot) Postings(field, term string) (index.PostingList, error) {
	var out index.PostingList
	for _, seg := range s.segments {
		postings, err := seg.Postings(field, term)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrSearchExecution, "read postings", seg.ID(), err)
		}
		for _, p := range postings {
			if _, ok := s.docs[p.DocID]; ok {
				out = append(out, p)
			}
		}
	}
	slices.SortFunc(out, func(a, b index.Posting) int { return cmp.Compare(a.DocID, b.DocID) })
	return out, nil
}

// Close releases the snapshot's segment references.
func (s *Snapshot) Close() error {
	s.closeOnce.Do(func() {
		for _, seg := range s.segments {
			seg.Release()
		}
	})
	return nil
}

// Package indexer is the durable index store: a single writer that buffers
// documents and publishes immutable segments through an atomically replaced
// manifest, and lock-free readers that load point-in-time snapshots.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/vecta/internal/analysis"
	"github.com/Adithya-Monish-Kumar-K/vecta/internal/document"
	"github.com/Adithya-Monish-Kumar-K/vecta/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/vecta/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/vecta/internal/schema"
	apperrors "github.com/Adithya-Monish-Kumar-K/vecta/pkg/errors"
)

// DefaultWriteBudget is the buffer size at which documents are flushed to a
// staged segment.
const DefaultWriteBudget int64 = 64 << 20

type Options struct {
	// WriteBudget bounds the write buffer in bytes. Zero means
	// DefaultWriteBudget.
	WriteBudget int64
	Logger      *slog.Logger
}

// Stats summarises the committed state of an index.
type Stats struct {
	Path       string
	Generation uint64
	Segments   int
	Docs       int
	Deleted    int
	SizeBytes  int64
	Roots      int
}

// Writer is the only component allowed to modify an index directory. It
// holds an exclusive file lock for its lifetime.
type Writer struct {
	mu        sync.Mutex
	path      string
	segDir    string
	schema    *schema.Schema
	identity  string
	analyzers map[string]*analysis.Analyzer
	budget    int64
	lock      *flock.Flock
	logger    *slog.Logger
	segWriter *segment.Writer

	committed *Manifest
	readers   map[string]*segment.Reader

	buffer       *index.MemoryIndex
	staged       []SegmentMeta
	pending      map[string]uint64
	pendingRoots []RootMeta
	droppedRoots []string
	nextDocID    uint64
	known        map[string]struct{}
	closed       bool
}

// OpenOrCreate opens the index at path for writing, creating it with s when
// it does not exist. An existing index must have been created with a schema
// identical to s; a nil s adopts whatever schema the index has.
func OpenOrCreate(ctx context.Context, path string, s *schema.Schema, opts Options) (*Writer, error) {
	if path == "" {
		return nil, apperrors.New(apperrors.ErrInvalidInput, "open", path, "index path is empty")
	}
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrIndexOpen, "open", path, err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	budget := opts.WriteBudget
	if budget <= 0 {
		budget = DefaultWriteBudget
	}

	segDir := filepath.Join(path, SegmentsDir)
	if err := os.MkdirAll(segDir, 0755); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrIndexOpen, "open", path, err)
	}
	lock := flock.New(filepath.Join(path, LockFile))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrIndexOpen, "open", path, fmt.Errorf("acquiring writer lock: %w", err))
	}
	if !locked {
		return nil, apperrors.New(apperrors.ErrLockContention, "open", path, "")
	}

	w := &Writer{
		path:      path,
		segDir:    segDir,
		budget:    budget,
		lock:      lock,
		logger:    logger.With("component", "index-writer", "index", path),
		segWriter: segment.NewWriter(segDir),
		readers:   make(map[string]*segment.Reader),
		buffer:    index.NewMemoryIndex(),
		pending:   make(map[string]uint64),
		known:     make(map[string]struct{}),
	}
	if err := w.load(s); err != nil {
		w.closeReaders()
		lock.Unlock()
		return nil, err
	}
	return w, nil
}

func (w *Writer) load(s *schema.Schema) error {
	m, err := ReadManifest(w.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if s == nil {
			s = schema.Default()
		}
		m = newManifest(s)
		if err := writeManifest(w.path, m); err != nil {
			return apperrors.Wrap(apperrors.ErrIndexOpen, "create", w.path, err)
		}
		w.logger.Info("index created", "schema", s.String())
	case err != nil:
		return apperrors.Wrap(apperrors.ErrIndexOpen, "open", w.path, err)
	case s != nil:
		if err := m.Schema.Validate(s); err != nil {
			return apperrors.Wrap(apperrors.ErrIndexOpen, "open", w.path, err)
		}
	}

	w.committed = m
	w.schema = m.Schema
	w.nextDocID = m.NextDocID
	w.identity, _ = m.Schema.IdentityField()
	w.analyzers = make(map[string]*analysis.Analyzer)
	for _, field := range m.Schema.IndexedFields() {
		a, err := m.Schema.Analyzer(field)
		if err != nil {
			return apperrors.Wrap(apperrors.ErrIndexOpen, "open", w.path, err)
		}
		w.analyzers[field] = a
	}

	for _, seg := range m.Segments {
		r, err := segment.Open(w.segDir, seg.ID)
		if err != nil {
			return apperrors.Wrap(apperrors.ErrIndexOpen, "open", w.path, fmt.Errorf("segment %s: %w", seg.ID, err))
		}
		w.readers[seg.ID] = r
	}
	live := buildLiveSet(w.committedReaders(), m.Tombstones)
	for _, r := range w.committedReaders() {
		for _, d := range r.Docs() {
			if d.Identity != "" && live.isLive(d) {
				w.known[d.Identity] = struct{}{}
			}
		}
	}

	removed := w.collectGarbage()
	w.logger.Info("index opened",
		"generation", m.Generation,
		"segments", len(m.Segments),
		"orphans_removed", removed,
	)
	return nil
}

// collectGarbage deletes segment files the manifest does not reference.
// These are left behind by a commit or merge that did not finish.
func (w *Writer) collectGarbage() int {
	entries, err := os.ReadDir(w.segDir)
	if err != nil {
		w.logger.Warn("listing segments for cleanup", "error", err)
		return 0
	}
	referenced := make(map[string]struct{}, len(w.committed.Segments)+len(w.staged))
	for _, seg := range w.committed.Segments {
		referenced[seg.ID+segment.Extension] = struct{}{}
	}
	for _, seg := range w.staged {
		referenced[seg.ID+segment.Extension] = struct{}{}
	}
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if _, ok := referenced[entry.Name()]; ok {
			continue
		}
		if err := os.Remove(filepath.Join(w.segDir, entry.Name())); err != nil {
			w.logger.Warn("removing orphan segment", "file", entry.Name(), "error", err)
			continue
		}
		w.logger.Info("removed orphan segment", "file", entry.Name())
		removed++
	}
	return removed
}

// Add analyses doc into the write buffer. The document becomes visible to
// readers only after the next successful Commit.
func (w *Writer) Add(doc document.Document) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return apperrors.New(apperrors.ErrIngest, "add", w.path, "writer is closed")
	}
	if err := doc.Conform(w.schema); err != nil {
		return err
	}

	fields := make(map[string][]analysis.Token, len(w.analyzers))
	for field, a := range w.analyzers {
		fields[field] = a.Analyze(doc[field])
	}
	stored := make(map[string]string)
	for _, field := range w.schema.StoredFields() {
		if v, ok := doc[field]; ok {
			stored[field] = v
		}
	}
	identity := ""
	if w.identity != "" {
		identity = doc[w.identity]
	}

	id := w.nextDocID
	w.nextDocID++
	w.buffer.AddDocument(index.StoredDoc{ID: id, Identity: identity, Stored: stored}, fields)
	if identity != "" {
		w.known[identity] = struct{}{}
	}
	w.logger.Debug("document buffered", "doc_id", id, "identity", identity, "buffer_size", w.buffer.Size())

	if w.buffer.Size() >= w.budget {
		w.logger.Info("write buffer reached budget, staging segment",
			"size", w.buffer.Size(),
			"budget", w.budget,
		)
		if err := w.stage(); err != nil {
			return apperrors.Wrap(apperrors.ErrIngest, "add", identity, err)
		}
	}
	return nil
}

// stage flushes the buffer into a segment file that no manifest references
// yet.
func (w *Writer) stage() error {
	docs, entries := w.buffer.Snapshot()
	if len(docs) == 0 {
		return nil
	}
	info, err := w.segWriter.Write(uuid.NewString(), docs, entries)
	if err != nil {
		return fmt.Errorf("writing segment: %w", err)
	}
	w.staged = append(w.staged, metaFromInfo(info))
	w.buffer.Reset()
	w.logger.Info("segment staged",
		"segment", info.ID,
		"docs", info.DocCount,
		"terms", info.TermCount,
	)
	return nil
}

func metaFromInfo(info segment.Info) SegmentMeta {
	return SegmentMeta{
		ID:        info.ID,
		Docs:      info.DocCount,
		Terms:     info.TermCount,
		Size:      info.Size,
		MinDocID:  info.MinDocID,
		MaxDocID:  info.MaxDocID,
		CreatedAt: info.CreatedAt,
	}
}

// Delete hides every document carrying identity, including ones still in
// the buffer, once committed.
func (w *Writer) Delete(identity string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return apperrors.New(apperrors.ErrIngest, "delete", identity, "writer is closed")
	}
	w.pending[identity] = w.nextDocID
	delete(w.known, identity)
	return nil
}

// DeletePrefix deletes every known identity equal to prefix or below it as a
// path and returns how many were deleted.
func (w *Writer) DeletePrefix(prefix string) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return 0, apperrors.New(apperrors.ErrIngest, "delete", prefix, "writer is closed")
	}
	n := 0
	for identity := range w.known {
		if underPrefix(identity, prefix) {
			w.pending[identity] = w.nextDocID
			delete(w.known, identity)
			n++
		}
	}
	return n, nil
}

// Identities lists the identities currently visible to this writer that
// lie under prefix, sorted.
func (w *Writer) Identities(prefix string) []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []string
	for identity := range w.known {
		if underPrefix(identity, prefix) {
			out = append(out, identity)
		}
	}
	slices.Sort(out)
	return out
}

// RecordRoot notes that root was indexed with the given number of files.
func (w *Writer) RecordRoot(root string, files int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.droppedRoots = slices.DeleteFunc(w.droppedRoots, func(p string) bool { return p == root })
	w.pendingRoots = append(w.pendingRoots, RootMeta{Path: root, IndexedAt: time.Now().UTC(), Files: files})
}

// ForgetRoot removes root from the recorded roots at the next commit.
func (w *Writer) ForgetRoot(root string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pendingRoots = slices.DeleteFunc(w.pendingRoots, func(r RootMeta) bool { return r.Path == root })
	w.droppedRoots = append(w.droppedRoots, root)
}

func (w *Writer) dirty() bool {
	return w.buffer.DocCount() > 0 || len(w.staged) > 0 || len(w.pending) > 0 ||
		len(w.pendingRoots) > 0 || len(w.droppedRoots) > 0 || w.nextDocID != w.committed.NextDocID
}

// Commit publishes everything added or deleted since the last commit in a
// single manifest replacement. On failure the previous committed state stays
// in effect and the pending changes are kept for another attempt.
func (w *Writer) Commit(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return apperrors.New(apperrors.ErrCommit, "commit", w.path, "writer is closed")
	}
	if !w.dirty() {
		return nil
	}
	start := time.Now()
	if err := w.stage(); err != nil {
		return apperrors.Wrap(apperrors.ErrCommit, "commit", w.path, err)
	}
	if err := ctx.Err(); err != nil {
		return apperrors.Wrap(apperrors.ErrCommit, "commit", w.path, err)
	}

	opened := make(map[string]*segment.Reader, len(w.staged))
	release := func() {
		for _, r := range opened {
			r.Close()
		}
	}
	for _, seg := range w.staged {
		r, err := segment.Open(w.segDir, seg.ID)
		if err != nil {
			release()
			return apperrors.Wrap(apperrors.ErrCommit, "commit", w.path, fmt.Errorf("reopening staged segment %s: %w", seg.ID, err))
		}
		opened[seg.ID] = r
	}

	next := w.committed.clone()
	next.Segments = append(next.Segments, w.staged...)
	for identity, threshold := range w.pending {
		if threshold > next.Tombstones[identity] {
			next.Tombstones[identity] = threshold
		}
	}
	for _, root := range w.droppedRoots {
		next.removeRoot(root)
	}
	for _, root := range w.pendingRoots {
		next.upsertRoot(root)
	}
	next.NextDocID = w.nextDocID
	next.Generation++

	if err := writeManifest(w.path, next); err != nil {
		release()
		return apperrors.Wrap(apperrors.ErrCommit, "commit", w.path, err)
	}

	for id, r := range opened {
		w.readers[id] = r
	}
	published := len(w.staged)
	w.committed = next
	w.staged = nil
	w.pending = make(map[string]uint64)
	w.pendingRoots = nil
	w.droppedRoots = nil
	w.logger.Info("commit complete",
		"generation", next.Generation,
		"segments_published", published,
		"segments", len(next.Segments),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// Segments returns the committed segment list in manifest order.
func (w *Writer) Segments() []SegmentMeta {
	w.mu.Lock()
	defer w.mu.Unlock()
	return slices.Clone(w.committed.Segments)
}

// Roots returns the committed list of indexed roots.
func (w *Writer) Roots() []RootMeta {
	w.mu.Lock()
	defer w.mu.Unlock()
	return slices.Clone(w.committed.Roots)
}

func (w *Writer) Generation() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.committed.Generation
}

func (w *Writer) Schema() *schema.Schema { return w.schema }

func (w *Writer) Path() string { return w.path }

// Stats reports on committed state only.
func (w *Writer) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	readers := w.committedReaders()
	live := buildLiveSet(readers, w.committed.Tombstones)
	st := Stats{
		Path:       w.path,
		Generation: w.committed.Generation,
		Segments:   len(w.committed.Segments),
		Roots:      len(w.committed.Roots),
	}
	for _, seg := range w.committed.Segments {
		st.SizeBytes += seg.Size
	}
	for _, r := range readers {
		for _, d := range r.Docs() {
			if live.isLive(d) {
				st.Docs++
			} else {
				st.Deleted++
			}
		}
	}
	return st
}

func (w *Writer) committedReaders() []*segment.Reader {
	out := make([]*segment.Reader, 0, len(w.committed.Segments))
	for _, seg := range w.committed.Segments {
		if r, ok := w.readers[seg.ID]; ok {
			out = append(out, r)
		}
	}
	return out
}

func (w *Writer) closeReaders() {
	for id, r := range w.readers {
		if err := r.Close(); err != nil {
			w.logger.Error("closing segment reader", "segment", id, "error", err)
		}
	}
	w.readers = make(map[string]*segment.Reader)
}

// Close discards uncommitted changes, closes segment files and releases the
// writer lock.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	if n := w.buffer.DocCount(); n > 0 || len(w.staged) > 0 {
		w.logger.Warn("discarding uncommitted documents", "buffered", n, "staged_segments", len(w.staged))
	}
	for _, seg := range w.staged {
		os.Remove(segment.Path(w.segDir, seg.ID))
	}
	w.staged = nil
	w.buffer.Reset()
	w.closeReaders()
	if err := w.lock.Unlock(); err != nil {
		return fmt.Errorf("releasing writer lock: %w", err)
	}
	return nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

package indexer

import (
	"cmp"
	"context"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/vecta/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/vecta/internal/indexer/segment"
	apperrors "github.com/Adithya-Monish-Kumar-K/vecta/pkg/errors"
)

// MergeResult describes the outcome of a merge. Merged is empty when the
// merge had nothing to do.
type MergeResult struct {
	Merged     []string
	Segment    string
	Docs       int
	Dropped    int
	Generation uint64
	Duration   time.Duration
}

// Merge folds the committed segments named by ids into a single segment.
// Superseded and deleted documents are dropped, surviving documents keep
// their ids. Naming fewer than two live segments is a no-op, so repeating a
// merge that already happened is harmless.
func (w *Writer) Merge(ctx context.Context, ids []string) (*MergeResult, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil, apperrors.New(apperrors.ErrMerge, "merge", w.path, "writer is closed")
	}
	start := time.Now()
	ids = dedupe(ids)

	position := make(map[string]int, len(w.committed.Segments))
	for i, seg := range w.committed.Segments {
		position[seg.ID] = i
	}
	var live []string
	for _, id := range ids {
		if _, ok := position[id]; ok {
			live = append(live, id)
		}
	}
	if len(live) < 2 {
		w.logger.Debug("merge skipped", "requested", len(ids), "live", len(live))
		return &MergeResult{Generation: w.committed.Generation}, nil
	}
	if len(live) != len(ids) {
		var unknown []string
		for _, id := range ids {
			if _, ok := position[id]; !ok {
				unknown = append(unknown, id)
			}
		}
		return nil, apperrors.New(apperrors.ErrMerge, "merge", w.path,
			fmt.Sprintf("unknown segment(s) %s", strings.Join(unknown, ", ")))
	}
	slices.SortFunc(live, func(a, b string) int { return position[a] - position[b] })

	liveness := buildLiveSet(w.committedReaders(), w.committed.Tombstones)
	docs, entries, dropped, err := w.collect(ctx, live, liveness)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrMerge, "merge", w.path, err)
	}

	result := &MergeResult{Merged: live, Docs: len(docs), Dropped: dropped}
	var (
		merged    *SegmentMeta
		newReader *segment.Reader
	)
	if len(docs) > 0 {
		info, err := w.segWriter.Write(uuid.NewString(), docs, entries)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrMerge, "merge", w.path, err)
		}
		newReader, err = segment.Open(w.segDir, info.ID)
		if err != nil {
			os.Remove(segment.Path(w.segDir, info.ID))
			return nil, apperrors.Wrap(apperrors.ErrMerge, "merge", w.path, err)
		}
		meta := metaFromInfo(info)
		merged = &meta
		result.Segment = info.ID
	}

	inMerge := make(map[string]struct{}, len(live))
	for _, id := range live {
		inMerge[id] = struct{}{}
	}
	next := w.committed.clone()
	next.Segments = next.Segments[:0]
	placed := false
	for _, seg := range w.committed.Segments {
		if _, ok := inMerge[seg.ID]; !ok {
			next.Segments = append(next.Segments, seg)
			continue
		}
		if !placed && merged != nil {
			next.Segments = append(next.Segments, *merged)
		}
		placed = true
	}
	w.pruneTombstones(next, inMerge)
	next.Generation++

	if err := writeManifest(w.path, next); err != nil {
		if newReader != nil {
			newReader.Close()
			os.Remove(segment.Path(w.segDir, newReader.ID()))
		}
		return nil, apperrors.Wrap(apperrors.ErrMerge, "merge", w.path, err)
	}

	w.committed = next
	for _, id := range live {
		if r, ok := w.readers[id]; ok {
			r.Close()
			delete(w.readers, id)
		}
		if err := os.Remove(segment.Path(w.segDir, id)); err != nil && !os.IsNotExist(err) {
			w.logger.Warn("removing merged segment", "segment", id, "error", err)
		}
	}
	if newReader != nil {
		w.readers[newReader.ID()] = newReader
	}

	result.Generation = next.Generation
	result.Duration = time.Since(start)
	w.logger.Info("merge complete",
		"merged_segments", len(live),
		"segment", result.Segment,
		"docs", result.Docs,
		"dropped", result.Dropped,
		"generation", next.Generation,
		"duration_ms", result.Duration.Milliseconds(),
	)
	return result, nil
}

// MergeWith merges whatever policy selects from the committed segments.
func (w *Writer) MergeWith(ctx context.Context, policy MergePolicy) (*MergeResult, error) {
	return w.Merge(ctx, policy.Select(w.Segments()))
}

// collect gathers the live documents and their postings from the segments
// being merged.
func (w *Writer) collect(ctx context.Context, ids []string, liveness liveSet) ([]index.StoredDoc, []index.TermEntry, int, error) {
	var (
		docs    []index.StoredDoc
		dropped int
		keep    = make(map[uint64]struct{})
		terms   = make(map[[2]string]index.PostingList)
	)
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, nil, 0, err
		}
		r := w.readers[id]
		if r == nil {
			return nil, nil, 0, fmt.Errorf("segment %s is not open", id)
		}
		for _, d := range r.Docs() {
			if liveness.isLive(d) {
				docs = append(docs, d)
				keep[d.ID] = struct{}{}
			} else {
				dropped++
			}
		}
		for _, entry := range r.Dict() {
			postings, err := r.PostingsAt(entry)
			if err != nil {
				return nil, nil, 0, err
			}
			key := [2]string{entry.Field, entry.Term}
			for _, p := range postings {
				if _, ok := keep[p.DocID]; ok {
					terms[key] = append(terms[key], p)
				}
			}
		}
	}

	slices.SortFunc(docs, func(a, b index.StoredDoc) int { return cmp.Compare(a.ID, b.ID) })
	entries := make([]index.TermEntry, 0, len(terms))
	for key, postings := range terms {
		slices.SortFunc(postings, func(a, b index.Posting) int { return cmp.Compare(a.DocID, b.DocID) })
		entries = append(entries, index.TermEntry{Field: key[0], Term: key[1], Postings: postings})
	}
	slices.SortFunc(entries, func(a, b index.TermEntry) int {
		return index.CompareKey(a.Field, a.Term, b.Field, b.Term)
	})
	return docs, entries, dropped, nil
}

// pruneTombstones drops tombstones that no longer hide any document outside
// the merged segments. Documents inside them were filtered during the merge.
func (w *Writer) pruneTombstones(next *Manifest, merged map[string]struct{}) {
	if len(next.Tombstones) == 0 {
		return
	}
	oldest := make(map[string]uint64)
	for _, seg := range w.committed.Segments {
		if _, ok := merged[seg.ID]; ok {
			continue
		}
		r := w.readers[seg.ID]
		if r == nil {
			continue
		}
		for _, d := range r.Docs() {
			if d.Identity == "" {
				continue
			}
			if cur, ok := oldest[d.Identity]; !ok || d.ID < cur {
				oldest[d.Identity] = d.ID
			}
		}
	}
	for identity, threshold := range next.Tombstones {
		if first, ok := oldest[identity]; !ok || first >= threshold {
			delete(next.Tombstones, identity)
		}
	}
}

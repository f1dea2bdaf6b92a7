package indexer

import (
	"cmp"
	"slices"
)

// MergePolicy picks which committed segments to merge. Returning fewer than
// two ids means no merge.
type MergePolicy interface {
	Select(segments []SegmentMeta) []string
}

// MergeAll merges every committed segment into one.
type MergeAll struct{}

func (MergeAll) Select(segments []SegmentMeta) []string {
	if len(segments) < 2 {
		return nil
	}
	ids := make([]string, len(segments))
	for i, seg := range segments {
		ids[i] = seg.ID
	}
	return ids
}

// ThresholdPolicy lets up to MaxSegments segments accumulate. Past that, it
// merges the smallest segments so that MaxSegments remain.
type ThresholdPolicy struct {
	MaxSegments int
}

func (p ThresholdPolicy) Select(segments []SegmentMeta) []string {
	limit := max(p.MaxSegments, 1)
	if len(segments) <= limit {
		return nil
	}
	bySize := slices.Clone(segments)
	slices.SortStableFunc(bySize, func(a, b SegmentMeta) int {
		return cmp.Compare(a.Docs, b.Docs)
	})
	n := len(segments) - limit + 1
	ids := make([]string, n)
	for i := range n {
		ids[i] = bySize[i].ID
	}
	return ids
}

// PolicyFor maps a configured policy name to a MergePolicy. Unknown names
// fall back to MergeAll.
func PolicyFor(name string, maxSegments int) MergePolicy {
	if name == "threshold" && maxSegments > 0 {
		return ThresholdPolicy{MaxSegments: maxSegments}
	}
	return MergeAll{}
}

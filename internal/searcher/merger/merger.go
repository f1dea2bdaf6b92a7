// Package merger selects the top ranked documents from a score table.
package merger

import (
	"container/heap"
	"slices"

	"github.com/Adithya-Monish-Kumar-K/vecta/internal/searcher/ranker"
)

const DefaultLimit = 10

// TopK returns the best limit documents in ranker.Compare order. A
// non-positive limit means DefaultLimit.
func TopK(scores map[uint64]float64, limit int) []ranker.ScoredDoc {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if len(scores) <= limit {
		all := make([]ranker.ScoredDoc, 0, len(scores))
		for id, score := range scores {
			all = append(all, ranker.ScoredDoc{DocID: id, Score: score})
		}
		slices.SortFunc(all, ranker.Compare)
		return all
	}

	// worst keeps the current top limit with the weakest at the root.
	worst := make(bounded, 0, limit)
	for id, score := range scores {
		doc := ranker.ScoredDoc{DocID: id, Score: score}
		if len(worst) < limit {
			heap.Push(&worst, doc)
			continue
		}
		if ranker.Compare(doc, worst[0]) < 0 {
			worst[0] = doc
			heap.Fix(&worst, 0)
		}
	}
	slices.SortFunc(worst, ranker.Compare)
	return worst
}

type bounded []ranker.ScoredDoc

func (h bounded) Len() int           { return len(h) }
func (h bounded) Less(i, j int) bool { return ranker.Compare(h[i], h[j]) > 0 }
func (h bounded) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *bounded) Push(x any)        { *h = append(*h, x.(ranker.ScoredDoc)) }
func (h *bounded) Pop() any {
	old := *h
	doc := old[len(old)-1]
	*h = old[:len(old)-1]
	return doc
}

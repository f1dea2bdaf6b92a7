package executor

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"github.com/Adithya-Monish-Kumar-K/vecta/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/vecta/internal/searcher/merger"
	"github.com/Adithya-Monish-Kumar-K/vecta/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/vecta/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/vecta/pkg/errors"
)

// Index is the read view a query runs against. *indexer.Snapshot
// implements it.
type Index interface {
	DocCount() int
	AvgFieldLength(field string) float64
	FieldLength(id uint64, field string) int
	Postings(field, term string) (index.PostingList, error)
	Document(id uint64) (index.StoredDoc, bool)
}

type Hit struct {
	DocID  uint64            `json:"doc_id"`
	Score  float64           `json:"score"`
	Fields map[string]string `json:"fields"`
}

type SearchResult struct {
	Query      string         `json:"query"`
	TotalHits  int            `json:"total_hits"`
	Hits       []Hit          `json:"hits"`
	Generation uint64         `json:"generation"`
	TermStats  map[string]int `json:"term_stats,omitempty"`
	Cached     bool           `json:"cached,omitempty"`
	Elapsed    time.Duration  `json:"elapsed_ns"`
}

type Executor struct {
	logger *slog.Logger
}

func New() *Executor {
	return &Executor{
		logger: slog.Default().With("component", "query-executor"),
	}
}

// Execute evaluates q over idx and returns at most limit hits.
func (e *Executor) Execute(ctx context.Context, q *parser.Query, idx Index, limit int) (*SearchResult, error) {
	start := time.Now()
	result := &SearchResult{Query: q.Raw, Hits: []Hit{}}
	if q.Empty() {
		result.Elapsed = time.Since(start)
		return result, nil
	}

	ev := &evaluator{ctx: ctx, idx: idx, termStats: make(map[string]int)}
	matched, err := ev.eval(q.Root)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrSearchExecution, "search", "", err)
	}
	for docID, score := range matched {
		matched[docID] = ranker.Round(score)
	}
	for _, doc := range merger.TopK(matched, limit) {
		stored, _ := idx.Document(doc.DocID)
		result.Hits = append(result.Hits, Hit{
			DocID:  doc.DocID,
			Score:  doc.Score,
			Fields: maps.Clone(stored.Stored),
		})
	}
	result.TotalHits = len(matched)
	result.TermStats = ev.termStats
	result.Elapsed = time.Since(start)

	e.logger.Debug("query executed",
		"query", q.String(),
		"candidates", len(matched),
		"results", len(result.Hits),
	)
	return result, nil
}

type matches map[uint64]float64

type evaluator struct {
	ctx       context.Context
	idx       Index
	termStats map[string]int
}

func (ev *evaluator) eval(node parser.Node) (matches, error) {
	if err := ev.ctx.Err(); err != nil {
		return nil, err
	}
	switch n := node.(type) {
	case *parser.Term:
		return ev.term(n)
	case *parser.Phrase:
		return ev.phrase(n)
	case *parser.Boolean:
		return ev.boolean(n)
	default:
		return nil, fmt.Errorf("unsupported query node %T", node)
	}
}

func (ev *evaluator) term(t *parser.Term) (matches, error) {
	postings, err := ev.idx.Postings(t.Field, t.Text)
	if err != nil {
		return nil, err
	}
	ev.termStats[t.String()] = len(postings)
	out := make(matches, len(postings))
	if len(postings) == 0 {
		return out, nil
	}
	idf := ranker.IDF(ev.idx.DocCount(), len(postings))
	avg := ev.idx.AvgFieldLength(t.Field)
	for _, p := range postings {
		out[p.DocID] = ranker.Score(idf, float64(p.Frequency), ev.idx.FieldLength(p.DocID, t.Field), avg)
	}
	return out, nil
}

// phrase matches documents where every term sits at its offset from some
// occurrence of the first term. The number of such occurrences is the
// phrase frequency; the weight is the sum of the terms' idf.
func (ev *evaluator) phrase(ph *parser.Phrase) (matches, error) {
	out := make(matches)
	lists := make([]map[uint64]index.Posting, len(ph.Terms))
	var idf float64
	for i, pt := range ph.Terms {
		postings, err := ev.idx.Postings(ph.Field, pt.Text)
		if err != nil {
			return nil, err
		}
		if len(postings) == 0 {
			ev.termStats[ph.String()] = 0
			return out, nil
		}
		byDoc := make(map[uint64]index.Posting, len(postings))
		for _, p := range postings {
			byDoc[p.DocID] = p
		}
		lists[i] = byDoc
		idf += ranker.IDF(ev.idx.DocCount(), len(postings))
	}

	avg := ev.idx.AvgFieldLength(ph.Field)
	for docID, first := range lists[0] {
		positions := make([]map[int]struct{}, len(ph.Terms))
		present := true
		for i := 1; i < len(ph.Terms); i++ {
			p, ok := lists[i][docID]
			if !ok {
				present = false
				break
			}
			set := make(map[int]struct{}, len(p.Positions))
			for _, pos := range p.Positions {
				set[pos] = struct{}{}
			}
			positions[i] = set
		}
		if !present {
			continue
		}
		freq := 0
		for _, start := range first.Positions {
			matched := true
			for i := 1; i < len(ph.Terms); i++ {
				if _, ok := positions[i][start+ph.Terms[i].Offset]; !ok {
					matched = false
					break
				}
			}
			if matched {
				freq++
			}
		}
		if freq > 0 {
			out[docID] = ranker.Score(idf, float64(freq), ev.idx.FieldLength(docID, ph.Field), avg)
		}
	}
	ev.termStats[ph.String()] = len(out)
	return out, nil
}

func (ev *evaluator) boolean(b *parser.Boolean) (matches, error) {
	var must, should, mustNot []matches
	for _, c := range b.Clauses {
		m, err := ev.eval(c.Node)
		if err != nil {
			return nil, err
		}
		switch c.Occur {
		case parser.Must:
			must = append(must, m)
		case parser.MustNot:
			mustNot = append(mustNot, m)
		default:
			should = append(should, m)
		}
	}

	out := make(matches)
	switch {
	case len(must) > 0:
		for docID, score := range must[0] {
			out[docID] = score
		}
		for _, m := range must[1:] {
			for docID := range out {
				score, ok := m[docID]
				if !ok {
					delete(out, docID)
					continue
				}
				out[docID] += score
			}
		}
		for _, m := range should {
			for docID := range out {
				out[docID] += m[docID]
			}
		}
	case len(should) > 0:
		for _, m := range should {
			for docID, score := range m {
				out[docID] += score
			}
		}
	}
	for _, m := range mustNot {
		for docID := range m {
			delete(out, docID)
		}
	}
	return out, nil
}

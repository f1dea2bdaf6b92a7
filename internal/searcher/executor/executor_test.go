package executor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/vecta/internal/analysis"
	"github.com/Adithya-Monish-Kumar-K/vecta/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/vecta/internal/schema"
	"github.com/Adithya-Monish-Kumar-K/vecta/internal/searcher/parser"
	apperrors "github.com/Adithya-Monish-Kumar-K/vecta/pkg/errors"
)

// memIndex serves a buffered MemoryIndex through the Index interface.
type memIndex struct {
	docs     map[uint64]index.StoredDoc
	postings map[[2]string]index.PostingList
	err      error
}

func newMemIndex(t *testing.T, bodies ...string) *memIndex {
	t.Helper()
	a, err := analysis.Get(analysis.Default)
	require.NoError(t, err)

	mem := index.NewMemoryIndex()
	for i, body := range bodies {
		title := string(rune('a'+i)) + ".txt"
		mem.AddDocument(index.StoredDoc{
			ID:       uint64(i),
			Identity: title,
			Stored:   map[string]string{schema.TitleField: title},
		}, map[string][]analysis.Token{
			schema.TitleField: a.Analyze(title),
			schema.BodyField:  a.Analyze(body),
		})
	}
	docs, entries := mem.Snapshot()
	idx := &memIndex{
		docs:     make(map[uint64]index.StoredDoc, len(docs)),
		postings: make(map[[2]string]index.PostingList, len(entries)),
	}
	for _, d := range docs {
		idx.docs[d.ID] = d
	}
	for _, e := range entries {
		idx.postings[[2]string{e.Field, e.Term}] = e.Postings
	}
	return idx
}

func (m *memIndex) DocCount() int { return len(m.docs) }

func (m *memIndex) AvgFieldLength(field string) float64 {
	var total int
	for _, d := range m.docs {
		total += d.Lengths[field]
	}
	return float64(total) / float64(len(m.docs))
}

func (m *memIndex) FieldLength(id uint64, field string) int { return m.docs[id].Lengths[field] }

func (m *memIndex) Postings(field, term string) (index.PostingList, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.postings[[2]string{field, term}], nil
}

func (m *memIndex) Document(id uint64) (index.StoredDoc, bool) {
	d, ok := m.docs[id]
	return d, ok
}

func run(t *testing.T, idx Index, query string, limit int) *SearchResult {
	t.Helper()
	q, err := parser.Parse(query, schema.Default())
	require.NoError(t, err)
	result, err := New().Execute(context.Background(), q, idx, limit)
	require.NoError(t, err)
	return result
}

func hitIDs(r *SearchResult) []uint64 {
	ids := make([]uint64, len(r.Hits))
	for i, h := range r.Hits {
		ids[i] = h.DocID
	}
	return ids
}

func TestExecute_TermRanking(t *testing.T) {
	idx := newMemIndex(t, "apple apple banana", "apple", "cherry")

	result := run(t, idx, "body:apple", 10)
	// the short document wins on length normalisation
	assert.Equal(t, []uint64{1, 0}, hitIDs(result))
	assert.Equal(t, 2, result.TotalHits)
	assert.Greater(t, result.Hits[0].Score, result.Hits[1].Score)
	assert.Equal(t, "b.txt", result.Hits[0].Fields[schema.TitleField])
	assert.Equal(t, 2, result.TermStats["body:apple"])
}

func TestExecute_TiesOrderedByDocID(t *testing.T) {
	idx := newMemIndex(t, "same words", "same words", "same words")

	result := run(t, idx, "same", 10)
	assert.Equal(t, []uint64{0, 1, 2}, hitIDs(result))
	assert.Equal(t, result.Hits[0].Score, result.Hits[2].Score)
}

func TestExecute_Phrase(t *testing.T) {
	idx := newMemIndex(t, "the quick brown fox", "brown quick fox", "quick and brown")

	result := run(t, idx, `body:"quick brown"`, 10)
	assert.Equal(t, []uint64{0}, hitIDs(result))
}

func TestExecute_TitlePhraseMatchesPath(t *testing.T) {
	idx := newMemIndex(t, "one", "two")

	result := run(t, idx, `title:"b.txt"`, 10)
	assert.Equal(t, []uint64{1}, hitIDs(result))
}

func TestExecute_Boolean(t *testing.T) {
	idx := newMemIndex(t, "apple banana", "apple", "cherry")

	tests := []struct {
		query string
		want  []uint64
	}{
		{"+apple -banana", []uint64{1}},
		{"apple NOT banana", []uint64{1}},
		{"apple AND cherry", []uint64{}},
		{"apple AND banana", []uint64{0}},
		{"-apple", []uint64{}},
		{"NOT apple NOT cherry", []uint64{}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, hitIDs(run(t, idx, tt.query, 10)))
		})
	}

	union := run(t, idx, "apple OR cherry", 10)
	assert.ElementsMatch(t, []uint64{0, 1, 2}, hitIDs(union))
}

func TestExecute_Limit(t *testing.T) {
	idx := newMemIndex(t, "x", "x y", "x y z")

	result := run(t, idx, "x", 2)
	assert.Len(t, result.Hits, 2)
	assert.Equal(t, 3, result.TotalHits)
}

func TestExecute_EmptyQuery(t *testing.T) {
	idx := newMemIndex(t, "anything")

	result := run(t, idx, "   ", 10)
	assert.Empty(t, result.Hits)
	assert.Zero(t, result.TotalHits)
}

func TestExecute_Errors(t *testing.T) {
	idx := newMemIndex(t, "anything")
	q, err := parser.Parse("anything", schema.Default())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = New().Execute(ctx, q, idx, 10)
	assert.ErrorIs(t, err, apperrors.ErrSearchExecution)
	assert.ErrorIs(t, err, context.Canceled)

	idx.err = errors.New("checksum mismatch")
	_, err = New().Execute(context.Background(), q, idx, 10)
	assert.ErrorIs(t, err, apperrors.ErrSearchExecution)
}

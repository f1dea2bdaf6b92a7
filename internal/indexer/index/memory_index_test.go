package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/vecta/internal/analysis"
)

func tokens(terms ...string) []analysis.Token {
	out := make([]analysis.Token, len(terms))
	for i, t := range terms {
		out[i] = analysis.Token{Term: t, Position: i}
	}
	return out
}

func TestMemoryIndex_SnapshotOrdering(t *testing.T) {
	m := NewMemoryIndex()
	m.AddDocument(StoredDoc{ID: 7, Identity: "/b"}, map[string][]analysis.Token{
		"body":  tokens("zeta", "alpha", "alpha"),
		"title": tokens("b"),
	})
	m.AddDocument(StoredDoc{ID: 3, Identity: "/a"}, map[string][]analysis.Token{
		"body": tokens("alpha"),
	})

	docs, entries := m.Snapshot()

	require.Len(t, docs, 2)
	assert.Equal(t, uint64(7), docs[0].ID, "documents keep add order")
	assert.Equal(t, map[string]int{"body": 3, "title": 1}, docs[0].Lengths)

	keys := make([]string, len(entries))
	for i, e := range entries {
		keys[i] = e.Field + ":" + e.Term
	}
	assert.Equal(t, []string{"body:alpha", "body:zeta", "title:b"}, keys)

	alpha := entries[0].Postings
	require.Len(t, alpha, 2)
	assert.Equal(t, uint64(3), alpha[0].DocID)
	assert.Equal(t, uint64(7), alpha[1].DocID)
	assert.Equal(t, 2, alpha[1].Frequency)
	assert.Equal(t, []int{1, 2}, alpha[1].Positions)
}

func TestMemoryIndex_SizeAndReset(t *testing.T) {
	m := NewMemoryIndex()
	assert.Zero(t, m.Size())

	m.AddDocument(StoredDoc{ID: 1, Stored: map[string]string{"title": "/x"}}, map[string][]analysis.Token{
		"body": tokens("one", "two"),
	})
	assert.Positive(t, m.Size())
	assert.Equal(t, 1, m.DocCount())

	m.Reset()
	assert.Zero(t, m.Size())
	assert.Zero(t, m.DocCount())
	docs, entries := m.Snapshot()
	assert.Empty(t, docs)
	assert.Empty(t, entries)
}

func TestMemoryIndex_EmptyFieldStillCounted(t *testing.T) {
	m := NewMemoryIndex()
	m.AddDocument(StoredDoc{ID: 1}, map[string][]analysis.Token{"body": nil})

	docs, entries := m.Snapshot()
	require.Len(t, docs, 1)
	assert.Equal(t, 0, docs[0].Lengths["body"])
	assert.Empty(t, entries)
}

func TestCompareKey(t *testing.T) {
	assert.Equal(t, -1, CompareKey("body", "z", "title", "a"))
	assert.Equal(t, 1, CompareKey("body", "b", "body", "a"))
	assert.Equal(t, 0, CompareKey("body", "a", "body", "a"))
}

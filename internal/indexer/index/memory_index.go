package index

import (
	"sort"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/vecta/internal/analysis"
)

// postingOverhead approximates the bookkeeping bytes of one posting in the
// maps below.
const postingOverhead = 64

// MemoryIndex is the write buffer: an inverted index of documents that have
// been added but not yet written to a segment.
type MemoryIndex struct {
	mu    sync.RWMutex
	index map[string]map[string]map[uint64]*Posting
	docs  []StoredDoc
	size  int64
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		index: make(map[string]map[string]map[uint64]*Posting),
	}
}

// AddDocument buffers doc. fields holds the analysed tokens of every
// indexed field; the token counts become the document's field lengths.
func (m *MemoryIndex) AddDocument(doc StoredDoc, fields map[string][]analysis.Token) {
	termData := make(map[string]map[string]*Posting, len(fields))
	lengths := make(map[string]int, len(fields))
	for field, tokens := range fields {
		lengths[field] = len(tokens)
		perTerm := make(map[string]*Posting)
		for _, token := range tokens {
			p, exists := perTerm[token.Term]
			if !exists {
				p = &Posting{
					DocID:     doc.ID,
					Positions: make([]int, 0, 4),
				}
				perTerm[token.Term] = p
			}
			p.Frequency++
			p.Positions = append(p.Positions, token.Position)
		}
		termData[field] = perTerm
	}
	doc.Lengths = lengths

	m.mu.Lock()
	defer m.mu.Unlock()

	for field, perTerm := range termData {
		terms, ok := m.index[field]
		if !ok {
			terms = make(map[string]map[uint64]*Posting)
			m.index[field] = terms
		}
		for term, posting := range perTerm {
			if _, exists := terms[term]; !exists {
				terms[term] = make(map[uint64]*Posting)
			}
			terms[term][doc.ID] = posting
			m.size += int64(len(field) + len(term) + len(posting.Positions)*8 + postingOverhead)
		}
	}
	m.docs = append(m.docs, doc)
	m.size += int64(len(doc.Identity) + postingOverhead)
	for k, v := range doc.Stored {
		m.size += int64(len(k) + len(v))
	}
}

// Snapshot returns the buffered documents in add order and the term
// entries sorted by field and term, each posting list sorted by doc id.
func (m *MemoryIndex) Snapshot() ([]StoredDoc, []TermEntry) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	docs := make([]StoredDoc, len(m.docs))
	copy(docs, m.docs)

	entries := make([]TermEntry, 0)
	for field, terms := range m.index {
		for term, byDoc := range terms {
			postings := make(PostingList, 0, len(byDoc))
			for _, posting := range byDoc {
				postings = append(postings, *posting)
			}
			sort.Slice(postings, func(i, j int) bool {
				return postings[i].DocID < postings[j].DocID
			})
			entries = append(entries, TermEntry{
				Field:    field,
				Term:     term,
				Postings: postings,
			})
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Less(entries[j])
	})
	return docs, entries
}

// Size is the estimated memory held by the buffer in bytes.
func (m *MemoryIndex) Size() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.size
}

func (m *MemoryIndex) DocCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}

func (m *MemoryIndex) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.index = make(map[string]map[string]map[uint64]*Posting)
	m.docs = nil
	m.size = 0
}

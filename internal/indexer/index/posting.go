package index

// Posting records one document's occurrences of a term within a field.
type Posting struct {
	DocID     uint64 `json:"d"`
	Frequency int    `json:"f"`
	Positions []int  `json:"p,omitempty"`
}

// PostingList is sorted by ascending DocID.
type PostingList []Posting

// TermEntry is the posting list of one (field, term) pair.
type TermEntry struct {
	Field    string
	Term     string
	Postings PostingList
}

// Less orders entries by field, then term. Segment dictionaries use this
// order for binary search.
func (e TermEntry) Less(other TermEntry) bool {
	return CompareKey(e.Field, e.Term, other.Field, other.Term) < 0
}

// CompareKey compares two (field, term) keys.
func CompareKey(fieldA, termA, fieldB, termB string) int {
	switch {
	case fieldA < fieldB:
		return -1
	case fieldA > fieldB:
		return 1
	case termA < termB:
		return -1
	case termA > termB:
		return 1
	default:
		return 0
	}
}

// StoredDoc is the per-document record kept alongside postings: the
// identity used to supersede older versions, the stored field values and
// the token count of every indexed field.
type StoredDoc struct {
	ID       uint64            `json:"id"`
	Identity string            `json:"key,omitempty"`
	Stored   map[string]string `json:"stored,omitempty"`
	Lengths  map[string]int    `json:"len,omitempty"`
}

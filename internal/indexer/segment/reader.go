package segment

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/vecta/internal/indexer/index"
)

// Reader gives read access to one segment file. The dictionary and stored
// documents are loaded eagerly; postings are read on demand.
type Reader struct {
	id     string
	file   *os.File
	header Header
	dict   []DictEntry
	docs   []index.StoredDoc

	mu     sync.Mutex
	refs   int
	closed bool
}

// Open opens segment id in dir and verifies its header and footer.
func Open(dir, id string) (*Reader, error) {
	f, err := os.Open(Path(dir, id))
	if err != nil {
		return nil, err
	}
	r, err := load(id, f)
	if err != nil {
		f.Close()
		return nil, err
	}
	r.refs = 1
	return r, nil
}

func load(id string, f *os.File) (*Reader, error) {
	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat segment %s: %w", id, err)
	}
	if stat.Size() < int64(HeaderSize+FooterSize) {
		return nil, fmt.Errorf("segment %s is truncated", id)
	}

	headerBuf := make([]byte, HeaderSize)
	if _, err := f.ReadAt(headerBuf, 0); err != nil {
		return nil, fmt.Errorf("reading header of %s: %w", id, err)
	}
	header := decodeHeader(headerBuf)
	if header.Magic != MagicBytes {
		return nil, fmt.Errorf("segment %s: invalid magic %x", id, header.Magic)
	}
	if header.Version != FormatVersion {
		return nil, fmt.Errorf("segment %s: unsupported version %d", id, header.Version)
	}
	if header.DictOffset+header.DictSize+int64(FooterSize) != stat.Size() {
		return nil, fmt.Errorf("segment %s: section sizes do not match file size", id)
	}

	footer := make([]byte, FooterSize)
	if _, err := f.ReadAt(footer, stat.Size()-int64(FooterSize)); err != nil {
		return nil, fmt.Errorf("reading footer of %s: %w", id, err)
	}
	if binary.LittleEndian.Uint32(footer[8:12]) != MagicBytes {
		return nil, fmt.Errorf("segment %s: invalid footer", id)
	}

	docsData := make([]byte, header.DocsSize)
	if _, err := f.ReadAt(docsData, header.DocsOffset); err != nil {
		return nil, fmt.Errorf("reading documents of %s: %w", id, err)
	}
	if crc32.ChecksumIEEE(docsData) != binary.LittleEndian.Uint32(footer[0:4]) {
		return nil, fmt.Errorf("segment %s: document checksum mismatch", id)
	}
	dictData := make([]byte, header.DictSize)
	if _, err := f.ReadAt(dictData, header.DictOffset); err != nil {
		return nil, fmt.Errorf("reading dictionary of %s: %w", id, err)
	}
	if crc32.ChecksumIEEE(dictData) != binary.LittleEndian.Uint32(footer[4:8]) {
		return nil, fmt.Errorf("segment %s: dictionary checksum mismatch", id)
	}

	var docs []index.StoredDoc
	if err := json.Unmarshal(docsData, &docs); err != nil {
		return nil, fmt.Errorf("decoding documents of %s: %w", id, err)
	}
	var dict []DictEntry
	if err := json.Unmarshal(dictData, &dict); err != nil {
		return nil, fmt.Errorf("decoding dictionary of %s: %w", id, err)
	}

	return &Reader{
		id:     id,
		file:   f,
		header: header,
		dict:   dict,
		docs:   docs,
	}, nil
}

func (r *Reader) ID() string { return r.id }
func (r *Reader) DocCount() int { return int(r.header.DocCount) }
func (r *Reader) TermCount() int { return int(r.header.TermCount) }
func (r *Reader) MinDocID() uint64 { return r.header.MinDocID }
func (r *Reader) MaxDocID() uint64 { return r.header.MaxDocID }
func (r *Reader) CreatedAt() time.Time { return time.Unix(r.header.CreatedAt, 0).UTC() }
func (r *Reader) Docs() []index.StoredDoc { return r.docs }
func (r *Reader) Dict() []DictEntry { return r.dict }

// Lookup finds the dictionary entry of (field, term).
func (r *Reader) Lookup(field, term string) (DictEntry, bool) {
	i := sort.Search(len(r.dict), func(i int) bool {
		return index.CompareKey(r.dict[i].Field, r.dict[i].Term, field, term) >= 0
	})
	if i < len(r.dict) && r.dict[i].Field == field && r.dict[i].Term == term {
		return r.dict[i], true
	}
	return DictEntry{}, false
}

// Postings returns the posting list of (field, term), or nil if the term
// does not occur in this segment.
func (r *Reader) Postings(field, term string) (index.PostingList, error) {
	entry, ok := r.Lookup(field, term)
	if !ok {
		return nil, nil
	}
	return r.PostingsAt(entry)
}

// PostingsAt reads and verifies the postings block referenced by entry.
func (r *Reader) PostingsAt(entry DictEntry) (index.PostingList, error) {
	data := make([]byte, entry.PostLen)
	if _, err := r.file.ReadAt(data, r.header.PostOffset+entry.PostOffset); err != nil {
		return nil, fmt.Errorf("reading postings for %s:%q: %w", entry.Field, entry.Term, err)
	}
	if crc32.ChecksumIEEE(data) != entry.Checksum {
		return nil, fmt.Errorf("segment %s: checksum mismatch for %s:%q", r.id, entry.Field, entry.Term)
	}
	var postings index.PostingList
	if err := json.Unmarshal(data, &postings); err != nil {
		return nil, fmt.Errorf("decoding postings for %s:%q: %w", entry.Field, entry.Term, err)
	}
	return postings, nil
}

// Retain adds a reference. It reports false if the reader is already closed.
func (r *Reader) Retain() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	r.refs++
	return true
}

// Release drops a reference and closes the file when none remain.
func (r *Reader) Release() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.refs--
	if r.refs > 0 {
		return nil
	}
	r.closed = true
	return r.file.Close()
}

// Close drops the reference taken by Open.
func (r *Reader) Close() error {
	return r.Release()
}

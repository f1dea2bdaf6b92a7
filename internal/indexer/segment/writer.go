package segment

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/Adithya-Monish-Kumar-K/vecta/internal/indexer/index"
)

// MagicBytes identifies a valid .seg segment file ("VSEG").
const (
	MagicBytes    uint32 = 0x56534547
	FormatVersion uint32 = 1
	HeaderSize    int    = 96
	FooterSize    int    = 16
	Extension            = ".seg"
)

// Header is the fixed-size header written at the start of every segment.
// Offsets are absolute file offsets.
type Header struct {
	Magic      uint32
	Version    uint32
	TermCount  uint32
	DocCount   uint32
	CreatedAt  int64
	PostOffset int64
	PostSize   int64
	DocsOffset int64
	DocsSize   int64
	DictOffset int64
	DictSize   int64
	MinDocID   uint64
	MaxDocID   uint64
}

// DictEntry locates the postings of one (field, term) pair relative to the
// start of the postings section.
type DictEntry struct {
	Field      string `json:"f"`
	Term       string `json:"t"`
	PostOffset int64  `json:"o"`
	PostLen    int    `json:"l"`
	DocFreq    int    `json:"d"`
	Checksum   uint32 `json:"c"`
}

// Info describes a written segment.
type Info struct {
	ID        string
	DocCount  int
	TermCount int
	Size      int64
	MinDocID  uint64
	MaxDocID  uint64
	CreatedAt time.Time
}

// Writer serialises buffered documents into immutable segment files.
type Writer struct {
	dir string
}

// NewWriter creates a Writer that writes segments into dir.
func NewWriter(dir string) *Writer {
	return &Writer{dir: dir}
}

// Path returns the file path of segment id.
func Path(dir, id string) string {
	return filepath.Join(dir, id+Extension)
}

// Write creates segment id from docs and entries. Entries must be sorted by
// field and term. The file is written under a .tmp name, synced and then
// renamed, so a visible segment file is always complete.
func (w *Writer) Write(id string, docs []index.StoredDoc, entries []index.TermEntry) (Info, error) {
	if len(docs) == 0 {
		return Info{}, fmt.Errorf("cannot write empty segment")
	}
	finalPath := Path(w.dir, id)
	tmpPath := finalPath + ".tmp"

	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return Info{}, fmt.Errorf("creating segment directory: %w", err)
	}
	f, err := os.Create(tmpPath)
	if err != nil {
		return Info{}, fmt.Errorf("creating temp segment file: %w", err)
	}
	committed := false
	defer func() {
		f.Close()
		if !committed {
			os.Remove(tmpPath)
		}
	}()

	createdAt := time.Now().UTC()
	header := Header{
		Magic:     MagicBytes,
		Version:   FormatVersion,
		TermCount: uint32(len(entries)),
		DocCount:  uint32(len(docs)),
		CreatedAt: createdAt.Unix(),
		MinDocID:  docs[0].ID,
		MaxDocID:  docs[0].ID,
	}
	for _, d := range docs {
		header.MinDocID = min(header.MinDocID, d.ID)
		header.MaxDocID = max(header.MaxDocID, d.ID)
	}
	if _, err := f.Write(make([]byte, HeaderSize)); err != nil {
		return Info{}, fmt.Errorf("writing header placeholder: %w", err)
	}

	header.PostOffset = int64(HeaderSize)
	dict := make([]DictEntry, 0, len(entries))
	var offset int64
	for i, entry := range entries {
		if i > 0 && !entries[i-1].Less(entry) {
			return Info{}, fmt.Errorf("term entries not sorted at %s:%q", entry.Field, entry.Term)
		}
		postingsData, err := json.Marshal(entry.Postings)
		if err != nil {
			return Info{}, fmt.Errorf("marshaling postings for %s:%q: %w", entry.Field, entry.Term, err)
		}
		if _, err := f.Write(postingsData); err != nil {
			return Info{}, fmt.Errorf("writing postings for %s:%q: %w", entry.Field, entry.Term, err)
		}
		dict = append(dict, DictEntry{
			Field:      entry.Field,
			Term:       entry.Term,
			PostOffset: offset,
			PostLen:    len(postingsData),
			DocFreq:    len(entry.Postings),
			Checksum:   crc32.ChecksumIEEE(postingsData),
		})
		offset += int64(len(postingsData))
	}
	header.PostSize = offset

	docsData, err := json.Marshal(docs)
	if err != nil {
		return Info{}, fmt.Errorf("marshaling stored documents: %w", err)
	}
	header.DocsOffset = header.PostOffset + header.PostSize
	header.DocsSize = int64(len(docsData))
	if _, err := f.Write(docsData); err != nil {
		return Info{}, fmt.Errorf("writing stored documents: %w", err)
	}

	dictData, err := json.Marshal(dict)
	if err != nil {
		return Info{}, fmt.Errorf("marshaling dictionary: %w", err)
	}
	header.DictOffset = header.DocsOffset + header.DocsSize
	header.DictSize = int64(len(dictData))
	if _, err := f.Write(dictData); err != nil {
		return Info{}, fmt.Errorf("writing dictionary: %w", err)
	}

	footer := make([]byte, FooterSize)
	binary.LittleEndian.PutUint32(footer[0:4], crc32.ChecksumIEEE(docsData))
	binary.LittleEndian.PutUint32(footer[4:8], crc32.ChecksumIEEE(dictData))
	binary.LittleEndian.PutUint32(footer[8:12], MagicBytes)
	if _, err := f.Write(footer); err != nil {
		return Info{}, fmt.Errorf("writing footer: %w", err)
	}
	if _, err := f.WriteAt(encodeHeader(header), 0); err != nil {
		return Info{}, fmt.Errorf("updating header: %w", err)
	}
	if err := f.Sync(); err != nil {
		return Info{}, fmt.Errorf("syncing segment file: %w", err)
	}
	size, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return Info{}, fmt.Errorf("sizing segment file: %w", err)
	}
	if err := f.Close(); err != nil {
		return Info{}, fmt.Errorf("closing segment file: %w", err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return Info{}, fmt.Errorf("renaming segment file: %w", err)
	}
	committed = true
	if err := syncDir(w.dir); err != nil {
		return Info{}, fmt.Errorf("syncing segment directory: %w", err)
	}
	return Info{
		ID:        id,
		DocCount:  len(docs),
		TermCount: len(entries),
		Size:      size,
		MinDocID:  header.MinDocID,
		MaxDocID:  header.MaxDocID,
		CreatedAt: createdAt,
	}, nil
}

func encodeHeader(h Header) []byte {
	b := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(b[0:4], h.Magic)
	binary.LittleEndian.PutUint32(b[4:8], h.Version)
	binary.LittleEndian.PutUint32(b[8:12], h.TermCount)
	binary.LittleEndian.PutUint32(b[12:16], h.DocCount)
	binary.LittleEndian.PutUint64(b[16:24], uint64(h.CreatedAt))
	binary.LittleEndian.PutUint64(b[24:32], uint64(h.PostOffset))
	binary.LittleEndian.PutUint64(b[32:40], uint64(h.PostSize))
	binary.LittleEndian.PutUint64(b[40:48], uint64(h.DocsOffset))
	binary.LittleEndian.PutUint64(b[48:56], uint64(h.DocsSize))
	binary.LittleEndian.PutUint64(b[56:64], uint64(h.DictOffset))
	binary.LittleEndian.PutUint64(b[64:72], uint64(h.DictSize))
	binary.LittleEndian.PutUint64(b[72:80], h.MinDocID)
	binary.LittleEndian.PutUint64(b[80:88], h.MaxDocID)
	return b
}

func decodeHeader(b []byte) Header {
	return Header{
		Magic:      binary.LittleEndian.Uint32(b[0:4]),
		Version:    binary.LittleEndian.Uint32(b[4:8]),
		TermCount:  binary.LittleEndian.Uint32(b[8:12]),
		DocCount:   binary.LittleEndian.Uint32(b[12:16]),
		CreatedAt:  int64(binary.LittleEndian.Uint64(b[16:24])),
		PostOffset: int64(binary.LittleEndian.Uint64(b[24:32])),
		PostSize:   int64(binary.LittleEndian.Uint64(b[32:40])),
		DocsOffset: int64(binary.LittleEndian.Uint64(b[40:48])),
		DocsSize:   int64(binary.LittleEndian.Uint64(b[48:56])),
		DictOffset: int64(binary.LittleEndian.Uint64(b[56:64])),
		DictSize:   int64(binary.LittleEndian.Uint64(b[64:72])),
		MinDocID:   binary.LittleEndian.Uint64(b[72:80]),
		MaxDocID:   binary.LittleEndian.Uint64(b[80:88]),
	}
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}

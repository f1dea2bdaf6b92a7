package indexer

import (
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/renameio"

	"github.com/Adithya-Monish-Kumar-K/vecta/internal/schema"
)

const (
	ManifestFile    = "meta.json"
	SegmentsDir     = "segments"
	LockFile        = ".writer.lock"
	manifestVersion = 1
)

// SegmentMeta describes one committed segment.
type SegmentMeta struct {
	ID        string    `json:"id"`
	Docs      int       `json:"docs"`
	Terms     int       `json:"terms"`
	Size      int64     `json:"size"`
	MinDocID  uint64    `json:"min_doc_id"`
	MaxDocID  uint64    `json:"max_doc_id"`
	CreatedAt time.Time `json:"created_at"`
}

// RootMeta records a directory that has been indexed.
type RootMeta struct {
	Path      string    `json:"path"`
	IndexedAt time.Time `json:"indexed_at"`
	Files     int       `json:"files"`
}

// Manifest is the committed state of an index. It is replaced as a whole on
// every commit and merge, never edited in place.
type Manifest struct {
	FormatVersion int               `json:"format_version"`
	Schema        *schema.Schema    `json:"schema"`
	Generation    uint64            `json:"generation"`
	NextDocID     uint64            `json:"next_doc_id"`
	Segments      []SegmentMeta     `json:"segments"`
	Tombstones    map[string]uint64 `json:"tombstones,omitempty"`
	Roots         []RootMeta        `json:"roots,omitempty"`
}

func newManifest(s *schema.Schema) *Manifest {
	return &Manifest{
		FormatVersion: manifestVersion,
		Schema:        s,
		Segments:      []SegmentMeta{},
		Tombstones:    map[string]uint64{},
	}
}

func (m *Manifest) clone() *Manifest {
	c := *m
	c.Segments = slices.Clone(m.Segments)
	c.Tombstones = maps.Clone(m.Tombstones)
	if c.Tombstones == nil {
		c.Tombstones = map[string]uint64{}
	}
	c.Roots = slices.Clone(m.Roots)
	return &c
}

// SegmentIDs lists the live segment ids in manifest order.
func (m *Manifest) SegmentIDs() []string {
	ids := make([]string, len(m.Segments))
	for i, seg := range m.Segments {
		ids[i] = seg.ID
	}
	return ids
}

func (m *Manifest) upsertRoot(root RootMeta) {
	for i, r := range m.Roots {
		if r.Path == root.Path {
			m.Roots[i] = root
			return
		}
	}
	m.Roots = append(m.Roots, root)
	slices.SortFunc(m.Roots, func(a, b RootMeta) int { return strings.Compare(a.Path, b.Path) })
}

func (m *Manifest) removeRoot(path string) bool {
	before := len(m.Roots)
	m.Roots = slices.DeleteFunc(m.Roots, func(r RootMeta) bool { return r.Path == path })
	return len(m.Roots) != before
}

// ReadManifest loads the manifest of the index at dir. A missing manifest
// is reported with an error matching os.ErrNotExist.
func ReadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decoding manifest: %w", err)
	}
	if m.FormatVersion != manifestVersion {
		return nil, fmt.Errorf("unsupported manifest version %d", m.FormatVersion)
	}
	if m.Schema == nil {
		return nil, fmt.Errorf("manifest has no schema")
	}
	if m.Tombstones == nil {
		m.Tombstones = map[string]uint64{}
	}
	return &m, nil
}

func writeManifest(dir string, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	if err := renameio.WriteFile(filepath.Join(dir, ManifestFile), data, 0644); err != nil {
		return fmt.Errorf("replacing manifest: %w", err)
	}
	return nil
}

package indexer

import (
	"os"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/vecta/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/vecta/internal/indexer/segment"
)

// liveSet decides which committed documents are visible. A document is live
// when it is the newest document carrying its identity and no tombstone
// recorded after it names that identity.
type liveSet struct {
	latest     map[string]uint64
	tombstones map[string]uint64
}

func buildLiveSet(readers []*segment.Reader, tombstones map[string]uint64) liveSet {
	latest := make(map[string]uint64)
	for _, r := range readers {
		for _, d := range r.Docs() {
			if d.Identity == "" {
				continue
			}
			if cur, ok := latest[d.Identity]; !ok || d.ID > cur {
				latest[d.Identity] = d.ID
			}
		}
	}
	return liveSet{latest: latest, tombstones: tombstones}
}

func (l liveSet) isLive(d index.StoredDoc) bool {
	if d.Identity == "" {
		return true
	}
	if l.latest[d.Identity] != d.ID {
		return false
	}
	return l.tombstones[d.Identity] <= d.ID
}

// underPrefix reports whether identity is prefix itself or a path below it.
func underPrefix(identity, prefix string) bool {
	if identity == prefix {
		return true
	}
	sep := string(os.PathSeparator)
	return strings.HasPrefix(identity, strings.TrimSuffix(prefix, sep)+sep)
}

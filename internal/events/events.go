// Package events publishes what vecta does (index runs, merges, searches) to
// Kafka for downstream analytics. Publishing is best effort and never fails
// the operation that produced the event.
package events

import "time"

type Type string

const (
	TypeIndexRun   Type = "index_run"
	TypeMerge      Type = "merge"
	TypeRemove     Type = "remove"
	TypeSearch     Type = "search"
	TypeZeroResult Type = "zero_result"
)

type IndexEvent struct {
	Type       Type      `json:"type"`
	IndexPath  string    `json:"index_path"`
	Root       string    `json:"root,omitempty"`
	Seen       int       `json:"seen"`
	Indexed    int       `json:"indexed"`
	Skipped    int       `json:"skipped"`
	Pruned     int       `json:"pruned"`
	Segments   int       `json:"segments"`
	Generation uint64    `json:"generation"`
	LatencyMs  int64     `json:"latency_ms"`
	Timestamp  time.Time `json:"timestamp"`
}

type SearchEvent struct {
	Type       Type      `json:"type"`
	IndexPath  string    `json:"index_path"`
	Query      string    `json:"query"`
	TotalHits  int       `json:"total_hits"`
	Returned   int       `json:"returned"`
	Generation uint64    `json:"generation"`
	CacheHit   bool      `json:"cache_hit"`
	LatencyMs  int64     `json:"latency_ms"`
	RequestID  string    `json:"request_id,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

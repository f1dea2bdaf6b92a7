// Package ingestion runs the indexing path: walk a root, build a document per
// eligible file, validate and add it, prune documents whose files vanished,
// then commit and apply the merge policy.
package ingestion

import (
	"time"

	"github.com/Adithya-Monish-Kumar-K/vecta/internal/indexer"
)

// RunSummary reports what one ingestion run did.
type RunSummary struct {
	Roots []string `json:"roots"`
	// Seen counts files the walker yielded.
	Seen    int `json:"seen"`
	Indexed int `json:"indexed"`
	// Skipped counts binary, unreadable and rejected files.
	Skipped int `json:"skipped"`
	// Warnings counts entries the walker could not read.
	Warnings int64 `json:"warnings"`
	// Pruned counts previously indexed documents whose files are gone.
	Pruned     int                  `json:"pruned"`
	Generation uint64               `json:"generation"`
	Merge      *indexer.MergeResult `json:"merge,omitempty"`
	Elapsed    time.Duration        `json:"elapsed_ns"`
}

// SkipReason labels why a file did not become a document.
type SkipReason string

const (
	SkipBinary     SkipReason = "binary"
	SkipUnreadable SkipReason = "unreadable"
	SkipRejected   SkipReason = "rejected"
)

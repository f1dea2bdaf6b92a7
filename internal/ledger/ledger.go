// Package ledger keeps a history of index runs in PostgreSQL so operators can
// see when a root was last indexed and what the run did.
package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS vecta_index_runs (
    id          UUID PRIMARY KEY,
    index_path  TEXT NOT NULL,
    kind        TEXT NOT NULL,
    data        JSONB NOT NULL,
    started_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS vecta_index_runs_started_idx ON vecta_index_runs (index_path, started_at DESC);
`

// Run is one recorded operation against an index.
type Run struct {
	ID         string        `json:"id"`
	IndexPath  string        `json:"index_path"`
	Kind       string        `json:"kind"`
	Roots      []string      `json:"roots,omitempty"`
	Seen       int           `json:"seen"`
	Indexed    int           `json:"indexed"`
	Skipped    int           `json:"skipped"`
	Pruned     int           `json:"pruned"`
	Generation uint64        `json:"generation"`
	StartedAt  time.Time     `json:"started_at"`
	Elapsed    time.Duration `json:"elapsed_ns"`
	Error      string        `json:"error,omitempty"`
}

// DB is satisfied by *sql.DB and *sql.Tx.
type DB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type Store struct {
	db     DB
	logger *slog.Logger
}

func NewStore(db DB) *Store {
	return &Store{
		db:     db,
		logger: slog.Default().With("component", "run-ledger"),
	}
}

// Migrate creates the runs table when it is missing.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("migrating run ledger: %w", err)
	}
	return nil
}

// Record persists run.
func (s *Store) Record(ctx context.Context, run Run) error {
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("marshaling run: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO vecta_index_runs (id, index_path, kind, data, started_at) VALUES ($1, $2, $3, $4, $5)`,
		run.ID, run.IndexPath, run.Kind, data, run.StartedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("saving run %s: %w", run.ID, err)
	}
	s.logger.Debug("run recorded", "id", run.ID, "kind", run.Kind, "indexed", run.Indexed)
	return nil
}

// Recent returns the last limit runs against indexPath, newest first.
func (s *Store) Recent(ctx context.Context, indexPath string, limit int) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT data FROM vecta_index_runs WHERE index_path = $1 ORDER BY started_at DESC LIMIT $2`,
		indexPath, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scanning run row: %w", err)
		}
		var run Run
		if err := json.Unmarshal(data, &run); err != nil {
			s.logger.Warn("skipping corrupt run", "error", err)
			continue
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

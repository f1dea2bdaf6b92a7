package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/vecta/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/vecta/pkg/postgres"
)

type execCall struct {
	query string
	args  []any
}

type fakeDB struct {
	execs []execCall
	err   error
}

func (f *fakeDB) ExecContext(_ context.Context, query string, args ...any) (sql.Result, error) {
	f.execs = append(f.execs, execCall{query: query, args: args})
	return nil, f.err
}

func (f *fakeDB) QueryContext(context.Context, string, ...any) (*sql.Rows, error) {
	return nil, errors.New("not supported")
}

func TestRecord_InsertsJSON(t *testing.T) {
	db := &fakeDB{}
	store := NewStore(db)
	run := Run{
		ID:        uuid.NewString(),
		IndexPath: "/data/index",
		Kind:      "index",
		Roots:     []string{"/notes"},
		Indexed:   3,
		StartedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	require.NoError(t, store.Record(context.Background(), run))
	require.Len(t, db.execs, 1)
	args := db.execs[0].args
	assert.Equal(t, run.ID, args[0])
	assert.Equal(t, "/data/index", args[1])
	assert.Equal(t, "index", args[2])

	var decoded Run
	require.NoError(t, json.Unmarshal(args[3].([]byte), &decoded))
	assert.Equal(t, 3, decoded.Indexed)
	assert.Equal(t, []string{"/notes"}, decoded.Roots)
}

func TestRecord_WrapsError(t *testing.T) {
	store := NewStore(&fakeDB{err: errors.New("connection reset")})
	err := store.Record(context.Background(), Run{ID: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "saving run x")
}

func TestMigrate(t *testing.T) {
	db := &fakeDB{}
	require.NoError(t, NewStore(db).Migrate(context.Background()))
	require.Len(t, db.execs, 1)
	assert.Contains(t, db.execs[0].query, "CREATE TABLE IF NOT EXISTS vecta_index_runs")
}

// TestStore_Postgres runs against a real database when VECTA_TEST_POSTGRES_HOST
// is set.
func TestStore_Postgres(t *testing.T) {
	host := os.Getenv("VECTA_TEST_POSTGRES_HOST")
	if host == "" {
		t.Skip("VECTA_TEST_POSTGRES_HOST not set")
	}
	cfg := config.Default().Postgres
	cfg.Host = host
	cfg.Password = os.Getenv("VECTA_TEST_POSTGRES_PASSWORD")

	ctx := context.Background()
	client, err := postgres.New(ctx, cfg)
	require.NoError(t, err)
	defer client.Close()

	store := NewStore(client.DB)
	require.NoError(t, store.Migrate(ctx))

	indexPath := "/test/" + uuid.NewString()
	for i := range 3 {
		require.NoError(t, store.Record(ctx, Run{
			ID:        uuid.NewString(),
			IndexPath: indexPath,
			Kind:      "index",
			Indexed:   i,
			StartedAt: time.Now().Add(time.Duration(i) * time.Second),
		}))
	}
	runs, err := store.Recent(ctx, indexPath, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, 2, runs[0].Indexed)
}

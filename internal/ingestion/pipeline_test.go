package ingestion

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/vecta/internal/document"
	"github.com/Adithya-Monish-Kumar-K/vecta/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/vecta/internal/ingestion/validator"
	"github.com/Adithya-Monish-Kumar-K/vecta/internal/schema"
	"github.com/Adithya-Monish-Kumar-K/vecta/internal/walker"
	apperrors "github.com/Adithya-Monish-Kumar-K/vecta/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/vecta/pkg/metrics"
)

func writeCorpus(t *testing.T, files map[string][]byte) string {
	t.Helper()
	root := t.TempDir()
	for name, data := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, data, 0644))
	}
	return root
}

type fixture struct {
	writer  *indexer.Writer
	metrics *metrics.Metrics
	run     *Pipeline
}

func newFixture(t *testing.T, policy indexer.MergePolicy) *fixture {
	t.Helper()
	s := schema.Default()
	w, err := indexer.OpenOrCreate(context.Background(), filepath.Join(t.TempDir(), "index"), s, indexer.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })

	identity, _ := s.IdentityField()
	m := metrics.New()
	return &fixture{
		writer:  w,
		metrics: m,
		run: New(w, identity, Options{
			Rules:     walker.FilterRules{ExcludedExtensions: []string{".bin"}},
			Builder:   document.NewBuilder(s),
			Validator: validator.New(identity, 0),
			Policy:    policy,
			Metrics:   m,
		}),
	}
}

func TestRun_IndexesTextFiles(t *testing.T) {
	root := writeCorpus(t, map[string][]byte{
		"notes.txt":      []byte("remember the milk"),
		"sub/travel.txt": []byte("passport"),
		"blob.bin":       {0x00, 0x01, 0x02},
		"image.dat":      {0x80, 0x81, 0xfe, 0xff, 0x00},
	})
	f := newFixture(t, nil)

	summary, err := f.run.Run(context.Background(), root)
	require.NoError(t, err)

	canonical, err := CanonicalRoot(root)
	require.NoError(t, err)
	assert.Equal(t, []string{canonical}, summary.Roots)
	assert.Equal(t, 3, summary.Seen, ".bin files are excluded by the walker")
	assert.Equal(t, 2, summary.Indexed)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, uint64(1), summary.Generation)
	assert.Nil(t, summary.Merge)

	assert.Equal(t, []string{
		filepath.Join(canonical, "notes.txt"),
		filepath.Join(canonical, "sub", "travel.txt"),
	}, f.writer.Identities(canonical))
	require.Len(t, f.writer.Roots(), 1)
	assert.Equal(t, 2, f.writer.Roots()[0].Files)

	assert.Equal(t, 3.0, testutil.ToFloat64(f.metrics.FilesSeenTotal))
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.DocsIndexedTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.FilesSkippedTotal.WithLabelValues("binary")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.CommitsTotal.WithLabelValues("ok")))
}

func TestRun_PrunesVanishedFiles(t *testing.T) {
	root := writeCorpus(t, map[string][]byte{
		"keep.txt": []byte("stays"),
		"gone.txt": []byte("goes away"),
	})
	f := newFixture(t, nil)
	_, err := f.run.Run(context.Background(), root)
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(root, "gone.txt")))
	summary, err := f.run.Run(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Pruned)

	canonical, _ := CanonicalRoot(root)
	assert.Equal(t, []string{filepath.Join(canonical, "keep.txt")}, f.writer.Identities(canonical))
	assert.Equal(t, 1, f.writer.Stats().Docs)
}

func TestRun_MergesAfterCommit(t *testing.T) {
	root := writeCorpus(t, map[string][]byte{"a.txt": []byte("alpha")})
	f := newFixture(t, indexer.MergeAll{})

	first, err := f.run.Run(context.Background(), root)
	require.NoError(t, err)
	assert.Nil(t, first.Merge, "a single segment is not merged")

	second, err := f.run.Run(context.Background(), root)
	require.NoError(t, err)
	require.NotNil(t, second.Merge)
	assert.Len(t, second.Merge.Merged, 2)
	assert.Equal(t, 1, second.Merge.Docs)
	assert.Len(t, f.writer.Segments(), 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.MergesTotal.WithLabelValues("ok")))
}

func TestRun_InvalidRoots(t *testing.T) {
	file := filepath.Join(writeCorpus(t, map[string][]byte{"a.txt": []byte("x")}), "a.txt")
	tests := []struct {
		name  string
		roots []string
	}{
		{"no roots", nil},
		{"empty root", []string{""}},
		{"missing directory", []string{filepath.Join(t.TempDir(), "missing")}},
		{"regular file", []string{file}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			_, err := f.run.Run(context.Background(), tt.roots...)
			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
			assert.Zero(t, f.writer.Generation())
		})
	}
}

func TestRun_CancelledCommitsNothing(t *testing.T) {
	root := writeCorpus(t, map[string][]byte{"a.txt": []byte("alpha")})
	f := newFixture(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.run.Run(ctx, root)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, f.writer.Generation())
}

func TestCanonicalRoot_ResolvesSymlinks(t *testing.T) {
	real := writeCorpus(t, map[string][]byte{"a.txt": []byte("x")})
	link := filepath.Join(t.TempDir(), "link")
	require.NoError(t, os.Symlink(real, link))

	got, err := CanonicalRoot(link)
	require.NoError(t, err)
	want, err := filepath.EvalSymlinks(real)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

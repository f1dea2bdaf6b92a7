package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/vecta/internal/searcher"
	"github.com/Adithya-Monish-Kumar-K/vecta/internal/workspace"
	"github.com/Adithya-Monish-Kumar-K/vecta/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/vecta/pkg/errors"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetErr(&bytes.Buffer{})
	root.SetIn(strings.NewReader(""))
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

// newWorkspace initialises a workspace and returns its root plus a corpus
// directory holding files.
func newWorkspace(t *testing.T, files map[string]string) (string, string) {
	t.Helper()
	wsDir := t.TempDir()
	_, err := run(t, "init", wsDir)
	require.NoError(t, err)

	corpus := t.TempDir()
	for name, body := range files {
		path := filepath.Join(corpus, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	}
	corpus, err = filepath.EvalSymlinks(corpus)
	require.NoError(t, err)
	return wsDir, corpus
}

func TestInitCmd(t *testing.T) {
	dir := t.TempDir()
	out, err := run(t, "init", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Initialized vecta workspace")

	ws := &workspace.Workspace{Root: dir}
	assert.True(t, ws.Exists())
	assert.FileExists(t, ws.ConfigPath())

	out, err = run(t, "init", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "already initialized")
}

func TestIndexThenSearch(t *testing.T) {
	wsDir, corpus := newWorkspace(t, map[string]string{
		"notes.txt":  "hello world",
		"other.txt":  "goodbye",
		"binary.bin": "hello",
	})

	out, err := run(t, "-w", wsDir, "index", corpus)
	require.NoError(t, err)
	assert.Contains(t, out, "Indexed "+corpus)
	assert.Contains(t, out, "2 indexed")
	assert.Contains(t, out, "Indexing took:")

	out, err = run(t, "-w", wsDir, "search", "hello")
	require.NoError(t, err)
	assert.Contains(t, out, filepath.Join(corpus, "notes.txt"))
	assert.Contains(t, out, "1 of 1 results")
	assert.Contains(t, out, "Search took:")

	out, err = run(t, "-w", wsDir, "search", "--json", "hello")
	require.NoError(t, err)
	var result searcher.Result
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	require.Len(t, result.Hits, 1)
	assert.Equal(t, filepath.Join(corpus, "notes.txt"), result.Hits[0].Fields["title"])
}

func TestSearchNoResults(t *testing.T) {
	wsDir, corpus := newWorkspace(t, map[string]string{"a.txt": "alpha"})
	_, err := run(t, "-w", wsDir, "index", corpus)
	require.NoError(t, err)

	out, err := run(t, "-w", wsDir, "search", "zeta")
	require.NoError(t, err)
	assert.Contains(t, out, `No results for "zeta"`)
}

func TestSearchParseErrorExitCode(t *testing.T) {
	wsDir, corpus := newWorkspace(t, map[string]string{"a.txt": "alpha"})
	_, err := run(t, "-w", wsDir, "index", corpus)
	require.NoError(t, err)

	_, err = run(t, "-w", wsDir, "search", `"unclosed`)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrQueryParse)
	assert.Equal(t, 2, apperrors.ExitCode(err))
}

func TestIndexUsesConfiguredDirectories(t *testing.T) {
	wsDir, corpus := newWorkspace(t, map[string]string{"a.txt": "alpha"})
	ws := &workspace.Workspace{Root: wsDir}
	cfg := config.Default()
	cfg.Indexing.Directories = []string{corpus}
	require.NoError(t, config.Write(ws.ConfigPath(), cfg))

	out, err := run(t, "-w", wsDir, "index")
	require.NoError(t, err)
	assert.Contains(t, out, "Indexed "+corpus)
}

func TestIndexWithoutDirectories(t *testing.T) {
	wsDir, _ := newWorkspace(t, nil)
	_, err := run(t, "-w", wsDir, "index")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestListAndRemove(t *testing.T) {
	wsDir, corpus := newWorkspace(t, map[string]string{"a.txt": "alpha", "b.txt": "alpha"})

	out, err := run(t, "-w", wsDir, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No directories indexed")

	_, err = run(t, "-w", wsDir, "index", corpus)
	require.NoError(t, err)
	out, err = run(t, "-w", wsDir, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "DIRECTORY")
	assert.Contains(t, out, corpus)

	out, err = run(t, "-w", wsDir, "remove", corpus)
	require.NoError(t, err)
	assert.Contains(t, out, "Removed 2 documents")

	out, err = run(t, "-w", wsDir, "search", "alpha")
	require.NoError(t, err)
	assert.Contains(t, out, "No results")
}

func TestMergeCmd(t *testing.T) {
	wsDir, corpus := newWorkspace(t, map[string]string{"a.txt": "alpha"})
	_, err := run(t, "-w", wsDir, "index", corpus)
	require.NoError(t, err)

	out, err := run(t, "-w", wsDir, "merge")
	require.NoError(t, err)
	assert.Contains(t, out, "Nothing to merge")
	assert.Contains(t, out, "Merging took:")
}

func TestStatsCmd(t *testing.T) {
	wsDir, corpus := newWorkspace(t, map[string]string{"a.txt": "alpha", "b.txt": "beta"})
	_, err := run(t, "-w", wsDir, "index", corpus)
	require.NoError(t, err)

	out, err := run(t, "-w", wsDir, "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Documents:   2")
	assert.Contains(t, out, "Segments:    1")
	assert.Contains(t, out, "Fields:      title, body")
}

func TestDestroyCmd(t *testing.T) {
	wsDir, _ := newWorkspace(t, nil)

	_, err := run(t, "-w", wsDir, "destroy")
	require.Error(t, err, "refuses without a terminal or --yes")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	out, err := run(t, "-w", wsDir, "destroy", "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "Removed")
	assert.False(t, (&workspace.Workspace{Root: wsDir}).Exists())

	_, err = run(t, "-w", wsDir, "destroy", "--yes")
	assert.ErrorIs(t, err, workspace.ErrNotFound)
}

func TestVersionCmd(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "vecta "+Version))
}

func TestServeRouter(t *testing.T) {
	wsDir, corpus := newWorkspace(t, map[string]string{"notes.txt": "hello world"})
	_, err := run(t, "-w", wsDir, "index", corpus)
	require.NoError(t, err)

	opts := &rootOptions{workspaceDir: wsDir}
	env, err := opts.load()
	require.NoError(t, err)
	defer env.close()
	svc, err := env.service(context.Background(), true)
	require.NoError(t, err)
	routes, err := newRouter(env, svc)
	require.NoError(t, err)
	srv := httptest.NewServer(routes)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/search?q=hello")
	require.NoError(t, err)
	var result searcher.Result
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
	require.Len(t, result.Hits, 1)

	for _, path := range []string{"/health/live", "/health/ready", "/metrics", "/api/v1/stats"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}

	resp, err = http.Get(srv.URL + "/api/v1/search?q=%22unclosed")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_IndependentRegistries(t *testing.T) {
	a := New()
	b := New()
	a.DocsIndexedTotal.Add(3)

	assert.Equal(t, 3.0, testutil.ToFloat64(a.DocsIndexedTotal))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.DocsIndexedTotal))
}

func TestHandler_ExposesNamespacedMetrics(t *testing.T) {
	m := New()
	m.CommitsTotal.WithLabelValues(Status(nil)).Inc()
	m.SegmentCount.Set(2)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `vecta_commits_total{status="ok"} 1`)
	assert.Contains(t, body, "vecta_segments 2")
}

func TestPush(t *testing.T) {
	var path string
	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer gateway.Close()

	m := New()
	m.DocsIndexedTotal.Inc()
	require.NoError(t, m.Push(context.Background(), gateway.URL, "vecta-index"))
	assert.Equal(t, "/metrics/job/vecta-index", path)
}

func TestStatus(t *testing.T) {
	assert.Equal(t, "ok", Status(nil))
	assert.Equal(t, "error", Status(errors.New("boom")))
}

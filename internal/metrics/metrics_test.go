package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorders(t *testing.T) {
	m := New()
	m.AddImported(3, 2, 1)
	m.CacheResult(true)
	m.CacheResult(false)
	m.CacheResult(false)
	m.ObserveBuild(50*time.Millisecond, 42)
	m.IncQuery("search")

	assert.Equal(t, 3.0, testutil.ToFloat64(m.RowsImported.WithLabelValues("inserted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RowsImported.WithLabelValues("skipped")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.SnapshotCache.WithLabelValues("miss")))
	assert.Equal(t, 42.0, testutil.ToFloat64(m.Persons))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Queries.WithLabelValues("search")))
}

func TestNilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.AddImported(1, 1, 1)
		m.CacheResult(true)
		m.ObserveBuild(time.Second, 1)
		m.IncQuery("x")
	})
}

func TestHandler(t *testing.T) {
	m := New()
	m.IncQuery("list")
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `staytrack_queries_total{operation="list"} 1`)
}

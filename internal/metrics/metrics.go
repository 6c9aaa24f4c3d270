package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the application's Prometheus collectors. A nil *Metrics is a
// valid no-op recorder.
type Metrics struct {
	registry *prometheus.Registry

	// Imported rows by result: inserted, updated, skipped
	RowsImported *prometheus.CounterVec

	// Snapshot cache lookups by result: hit, miss
	SnapshotCache *prometheus.CounterVec

	// Time to materialise person summaries from the store
	SnapshotBuild prometheus.Histogram

	// Persons in the latest snapshot
	Persons prometheus.Gauge

	// Query operations by name
	Queries *prometheus.CounterVec
}

// New creates a private registry with all collectors registered.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		RowsImported: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "staytrack_rows_imported_total",
			Help: "Imported immigration-log rows by result",
		}, []string{"result"}),

		SnapshotCache: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "staytrack_snapshot_cache_total",
			Help: "Snapshot cache lookups by result",
		}, []string{"result"}),

		SnapshotBuild: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "staytrack_snapshot_build_duration_seconds",
			Help:    "Duration of building person summaries from stored rows",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),

		Persons: factory.NewGauge(prometheus.GaugeOpts{
			Name: "staytrack_persons",
			Help: "Persons in the latest snapshot",
		}),

		Queries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "staytrack_queries_total",
			Help: "Query operations served, by operation",
		}, []string{"operation"}),
	}
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) AddImported(inserted, updated, skipped int) {
	if m != nil {
		m.RowsImported.WithLabelValues("inserted").Add(float64(inserted))
		m.RowsImported.WithLabelValues("updated").Add(float64(updated))
		m.RowsImported.WithLabelValues("skipped").Add(float64(skipped))
	}
}

func (m *Metrics) CacheResult(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.SnapshotCache.WithLabelValues("hit").Inc()
	} else {
		m.SnapshotCache.WithLabelValues("miss").Inc()
	}
}

// ObserveBuild records a snapshot build and its size.
func (m *Metrics) ObserveBuild(d time.Duration, persons int) {
	if m != nil {
		m.SnapshotBuild.Observe(d.Seconds())
		m.Persons.Set(float64(persons))
	}
}

func (m *Metrics) IncQuery(operation string) {
	if m != nil {
		m.Queries.WithLabelValues(operation).Inc()
	}
}

// Package metrics exposes reindex, queue and search metrics to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Aman-CERP/courseindex/internal/index"
)

const namespace = "courseindex"

// Metrics holds all collectors. Each Metrics has its own registry so tests
// and multiple instances do not collide.
type Metrics struct {
	registry *prometheus.Registry

	// Reindex metrics
	ReindexRunsTotal      *prometheus.CounterVec
	DocumentsIndexedTotal *prometheus.CounterVec
	DocumentsRemovedTotal *prometheus.CounterVec
	ReindexDuration       *prometheus.HistogramVec

	// Queue metrics
	QueueDepth prometheus.Gauge

	// Search metrics
	SearchQueriesTotal     *prometheus.CounterVec
	SearchZeroResultsTotal *prometheus.CounterVec
	SearchDuration         *prometheus.HistogramVec

	StartTime time.Time
}

var _ index.Recorder = (*Metrics)(nil)

// New creates and registers all metrics, plus the Go runtime and process
// collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	m := &Metrics{registry: reg, StartTime: time.Now()}

	m.ReindexRunsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reindex_runs_total",
			Help:      "Total number of reindex passes",
		},
		[]string{"index", "mode", "outcome"},
	)
	m.DocumentsIndexedTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_indexed_total",
			Help:      "Total number of documents written",
		},
		[]string{"index"},
	)
	m.DocumentsRemovedTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_removed_total",
			Help:      "Total number of stale documents removed",
		},
		[]string{"index"},
	)
	m.ReindexDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reindex_duration_seconds",
			Help:      "Duration of reindex passes in seconds",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"index", "mode"},
	)
	m.QueueDepth = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Number of reindex tasks pending or running",
		},
	)
	m.SearchQueriesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_queries_total",
			Help:      "Total number of search queries",
		},
		[]string{"index", "status"},
	)
	m.SearchZeroResultsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_zero_results_total",
			Help:      "Total number of search queries that matched nothing",
		},
		[]string{"index"},
	)
	m.SearchDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Duration of search queries in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"index"},
	)
	return m
}

// ObserveReindex implements index.Recorder.
func (m *Metrics) ObserveReindex(indexName string, mode index.Mode, outcome string, indexed, removed int, elapsed time.Duration) {
	m.ReindexRunsTotal.WithLabelValues(indexName, string(mode), outcome).Inc()
	if outcome != index.OutcomeSuccess {
		return
	}
	m.DocumentsIndexedTotal.WithLabelValues(indexName).Add(float64(indexed))
	m.DocumentsRemovedTotal.WithLabelValues(indexName).Add(float64(removed))
	m.ReindexDuration.WithLabelValues(indexName, string(mode)).Observe(elapsed.Seconds())
}

// SetQueueDepth implements async.DepthObserver.
func (m *Metrics) SetQueueDepth(depth int) {
	m.QueueDepth.Set(float64(depth))
}

// ObserveSearch records one query against indexName.
func (m *Metrics) ObserveSearch(indexName string, results int, err error, elapsed time.Duration) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.SearchQueriesTotal.WithLabelValues(indexName, status).Inc()
	if err != nil {
		return
	}
	if results == 0 {
		m.SearchZeroResultsTotal.WithLabelValues(indexName).Inc()
	}
	m.SearchDuration.WithLabelValues(indexName).Observe(elapsed.Seconds())
}

// Registry returns the registry the collectors live in.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

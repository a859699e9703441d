// Package metrics exposes the ambient Prometheus metrics for indexing,
// embedding, and retrieval, grounded on the `vjache-cie` example's use of
// `prometheus/client_golang/prometheus/promhttp` for a standalone metrics
// endpoint.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/edombelayneh/Qlippy/pkg/logging"
)

// Registry bundles every metric the runtime emits so callers hold one
// handle instead of wiring globals throughout the codebase.
type Registry struct {
	registry *prometheus.Registry

	IndexDuration      *prometheus.HistogramVec
	IndexedFilesTotal  *prometheus.CounterVec
	IndexErrorsTotal   *prometheus.CounterVec
	EmbeddingBatchLatency prometheus.Histogram
	EmbeddingBatchSize    prometheus.Histogram
	RetrievalHits      *prometheus.CounterVec
	RetrievalLatency   prometheus.Histogram
	ToolExecutionsTotal *prometheus.CounterVec
}

// New creates a Registry with every metric registered.
func New() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		registry: reg,
		IndexDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "qlippy_index_duration_seconds",
			Help:    "Duration of a full index(directory_id) run.",
			Buckets: prometheus.DefBuckets,
		}, []string{"directory_id"}),
		IndexedFilesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "qlippy_indexed_files_total",
			Help: "Number of files successfully indexed.",
		}, []string{"directory_id"}),
		IndexErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "qlippy_index_errors_total",
			Help: "Number of file-level errors encountered during indexing.",
		}, []string{"directory_id"}),
		EmbeddingBatchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "qlippy_embedding_batch_latency_seconds",
			Help:    "Latency of a single embedding batch call.",
			Buckets: prometheus.DefBuckets,
		}),
		EmbeddingBatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "qlippy_embedding_batch_size",
			Help:    "Number of texts submitted per embedding batch.",
			Buckets: []float64{1, 2, 4, 8, 16, 32},
		}),
		RetrievalHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "qlippy_retrieval_hits_total",
			Help: "Number of chunks returned by retrieval, after min-score filtering.",
		}, []string{"conversation_id"}),
		RetrievalLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "qlippy_retrieval_latency_seconds",
			Help:    "End-to-end latency of a retrieval call (embed + vector query).",
			Buckets: prometheus.DefBuckets,
		}),
		ToolExecutionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "qlippy_tool_executions_total",
			Help: "Number of tool executions, labeled by tool name and outcome.",
		}, []string{"tool", "outcome"}),
	}

	reg.MustRegister(
		r.IndexDuration,
		r.IndexedFilesTotal,
		r.IndexErrorsTotal,
		r.EmbeddingBatchLatency,
		r.EmbeddingBatchSize,
		r.RetrievalHits,
		r.RetrievalLatency,
		r.ToolExecutionsTotal,
	)

	return r
}

// Handler returns the `/metrics` HTTP handler for this registry.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// RegisterLogFile exposes rf's size and rotation count as gauges, sampled
// from rf.Stats() on every scrape. cmd/qlippy's runtime setup calls this for
// any subcommand run with --log-file.
func (r *Registry) RegisterLogFile(rf *logging.RotatingFile) {
	r.registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "qlippy_log_file_size_bytes",
			Help: "Current size of the rotating log file.",
		}, func() float64 { return float64(rf.Stats().Size) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "qlippy_log_file_rotations_total",
			Help: "Number of times the log file has rotated since process start.",
		}, func() float64 { return float64(rf.Stats().Rotations) }),
	)
}

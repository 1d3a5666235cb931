// Package metrics exposes Prometheus counters and gauges for the
// worker pool and pipeline manager, grounded on module/metrics.go's
// MetricsCollector shape, with the `modular` service-registration
// machinery dropped (SPEC_FULL.md §B: this daemon has no module
// framework of its own) in favor of a plain constructor and an
// http.Handler the caller wires in directly.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds every metric the daemon records.
type Collector struct {
	registry *prometheus.Registry

	MessagesProcessed *prometheus.CounterVec
	MessagesDropped   *prometheus.CounterVec
	ActionErrors      *prometheus.CounterVec
	PipelineDuration  *prometheus.HistogramVec
	PipelinesLoaded   prometheus.Gauge
	WorkerQueueDepth  prometheus.Gauge
	WorkerActive      prometheus.Gauge
}

// New creates a Collector with its own registry.
func New() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		registry: reg,
		MessagesProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "logshipper_messages_processed_total",
			Help: "Total number of messages that completed a pipeline traversal.",
		}, []string{"pipeline"}),
		MessagesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "logshipper_messages_dropped_total",
			Help: "Total number of traversals ended early by a DropMessage verdict (drop, jump) or an action-runtime-error.",
		}, []string{"pipeline"}),
		ActionErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "logshipper_action_errors_total",
			Help: "Total number of action-runtime-errors, by pipeline and action.",
		}, []string{"pipeline", "action"}),
		PipelineDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "logshipper_pipeline_duration_seconds",
			Help:    "Time spent running one pipeline traversal.",
			Buckets: prometheus.DefBuckets,
		}, []string{"pipeline"}),
		PipelinesLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "logshipper_pipelines_loaded",
			Help: "Number of currently loaded pipelines.",
		}),
		WorkerQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "logshipper_worker_queue_depth",
			Help: "Number of tasks currently queued in the worker pool.",
		}),
		WorkerActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "logshipper_worker_active",
			Help: "Number of currently active worker goroutines.",
		}),
	}

	reg.MustRegister(
		c.MessagesProcessed,
		c.MessagesDropped,
		c.ActionErrors,
		c.PipelineDuration,
		c.PipelinesLoaded,
		c.WorkerQueueDepth,
		c.WorkerActive,
	)
	return c
}

// Handler serves the collector's metrics in the Prometheus exposition
// format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// RecordTraversal records one completed pipeline run.
func (c *Collector) RecordTraversal(pipelineName string, dropped bool, dur time.Duration) {
	c.MessagesProcessed.WithLabelValues(pipelineName).Inc()
	if dropped {
		c.MessagesDropped.WithLabelValues(pipelineName).Inc()
	}
	c.PipelineDuration.WithLabelValues(pipelineName).Observe(dur.Seconds())
}

// RecordActionError records one action-runtime-error.
func (c *Collector) RecordActionError(pipelineName, actionName string) {
	c.ActionErrors.WithLabelValues(pipelineName, actionName).Inc()
}

// SetPipelinesLoaded updates the currently-loaded pipeline count.
func (c *Collector) SetPipelinesLoaded(n int) {
	c.PipelinesLoaded.Set(float64(n))
}

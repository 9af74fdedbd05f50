// Package metrics provides pipeline metrics for observability
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics contains Prometheus metrics for request pipeline operations
type PipelineMetrics struct {
	registry *prometheus.Registry

	// Request lifecycle metrics
	requestsTotal       *prometheus.CounterVec
	requestDuration     *prometheus.HistogramVec
	activeRequestsGauge prometheus.Gauge

	// Stage metrics
	stageDuration    *prometheus.HistogramVec
	stageErrorsTotal *prometheus.CounterVec

	// Artifact metrics
	artifactOperationsTotal *prometheus.CounterVec
	stagedCleanupTotal      *prometheus.CounterVec

	// collectors is a slice of all collectors for easier iteration
	collectors []prometheus.Collector
}

// NewPipelineMetrics creates and registers new pipeline metrics
func NewPipelineMetrics(registry *prometheus.Registry) (*PipelineMetrics, error) {
	m := &PipelineMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, err
	}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// initMetrics initializes all Prometheus metrics
func (m *PipelineMetrics) initMetrics() error {
	m.requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_requests_total",
			Help: "Total number of processed requests",
		},
		[]string{"source", "state"}, // source: upload, url, file; state: completed, rejected, failed
	)

	m.requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pipeline_request_duration_seconds",
			Help:    "End to end time taken for a request",
			Buckets: prometheus.ExponentialBuckets(BucketStart10ms, BucketFactor2, BucketCount12),
		},
		[]string{"source"},
	)

	m.activeRequestsGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pipeline_active_requests",
			Help: "Number of requests currently in flight",
		},
	)

	m.stageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pipeline_stage_duration_seconds",
			Help:    "Time taken for individual pipeline stages",
			Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount15),
		},
		[]string{"stage"}, // stage: stage, validate, decode, detect, annotate, persist
	)

	m.stageErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_stage_errors_total",
			Help: "Total number of pipeline stage errors",
		},
		[]string{"stage", "category"},
	)

	m.artifactOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_artifact_operations_total",
			Help: "Total number of annotated artifact operations",
		},
		[]string{"operation", "status"}, // operation: render, write; status: success, error
	)

	m.stagedCleanupTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_staged_cleanup_total",
			Help: "Total number of staged file cleanup outcomes",
		},
		[]string{"outcome"}, // outcome: removed, kept, released, error
	)

	m.collectors = []prometheus.Collector{
		m.requestsTotal,
		m.requestDuration,
		m.activeRequestsGauge,
		m.stageDuration,
		m.stageErrorsTotal,
		m.artifactOperationsTotal,
		m.stagedCleanupTotal,
	}

	return nil
}

// Describe implements the Collector interface
func (m *PipelineMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.collectors {
		collector.Describe(ch)
	}
}

// Collect implements the Collector interface
func (m *PipelineMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.collectors {
		collector.Collect(ch)
	}
}

// RecordRequest records a request reaching a terminal state
func (m *PipelineMetrics) RecordRequest(source, state string) {
	m.requestsTotal.WithLabelValues(source, state).Inc()
}

// RecordRequestDuration records the end to end duration of a request
func (m *PipelineMetrics) RecordRequestDuration(source string, duration float64) {
	m.requestDuration.WithLabelValues(source).Observe(duration)
}

// SetActiveRequests sets the number of requests currently in flight
func (m *PipelineMetrics) SetActiveRequests(count float64) {
	m.activeRequestsGauge.Set(count)
}

// RecordStageDuration records the duration of a pipeline stage
func (m *PipelineMetrics) RecordStageDuration(stage string, duration float64) {
	m.stageDuration.WithLabelValues(stage).Observe(duration)
}

// RecordStageError records a pipeline stage error
func (m *PipelineMetrics) RecordStageError(stage, category string) {
	m.stageErrorsTotal.WithLabelValues(stage, category).Inc()
}

// RecordArtifactOperation records an annotated artifact operation
func (m *PipelineMetrics) RecordArtifactOperation(operation, status string) {
	m.artifactOperationsTotal.WithLabelValues(operation, status).Inc()
}

// RecordStagedCleanup records the outcome of a staged file cleanup
func (m *PipelineMetrics) RecordStagedCleanup(outcome string) {
	m.stagedCleanupTotal.WithLabelValues(outcome).Inc()
}

// Package metrics provides custom Prometheus metrics for various components of the FruitCount application.
package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// DetectorMetrics contains all Prometheus metrics related to fruit detection.
type DetectorMetrics struct {
	DetectionCounter *prometheus.CounterVec
	ProcessTimeGauge prometheus.Gauge

	// Performance metrics
	InferenceDuration *prometheus.HistogramVec
	DecodeDuration    *prometheus.HistogramVec

	// Operation counters
	InferenceTotal  *prometheus.CounterVec
	InferenceErrors *prometheus.CounterVec
	ModelLoadTotal  *prometheus.CounterVec
	ModelLoadErrors *prometheus.CounterVec

	// State gauges
	ActiveInferenceGauge prometheus.Gauge
	ModelLoadedGauge     prometheus.Gauge

	registry *prometheus.Registry
}

// NewDetectorMetrics creates a new instance of DetectorMetrics.
// It requires a Prometheus registry to register the metrics.
// It returns an error if metric registration fails.
func NewDetectorMetrics(registry *prometheus.Registry) (*DetectorMetrics, error) {
	m := &DetectorMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, err
	}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// initMetrics initializes all Prometheus metrics
func (m *DetectorMetrics) initMetrics() error {
	m.DetectionCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "detector_detections_total",
			Help: "Total number of fruit instances detected, partitioned by class",
		},
		[]string{"class"},
	)

	m.ProcessTimeGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "detector_process_time_milliseconds",
			Help: "Most recent inference time for a single image in milliseconds",
		},
	)

	// Performance metrics
	m.InferenceDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "detector_inference_duration_seconds",
			Help:    "Time taken for a complete model invocation",
			Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount10),
		},
		[]string{"model"},
	)

	m.DecodeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "detector_decode_duration_seconds",
			Help:    "Time taken to decode raw model output into detections",
			Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount10),
		},
		[]string{"model"},
	)

	// Operation counters
	m.InferenceTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "detector_inference_total",
			Help: "Total number of inference operations",
		},
		[]string{"model", "status"},
	)

	m.InferenceErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "detector_inference_errors_total",
			Help: "Total number of inference errors",
		},
		[]string{"model", "error_type"},
	)

	m.ModelLoadTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "detector_model_load_total",
			Help: "Total number of model load attempts",
		},
		[]string{"model", "status"},
	)

	m.ModelLoadErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "detector_model_load_errors_total",
			Help: "Total number of model load errors",
		},
		[]string{"model", "error_type"},
	)

	// State gauges
	m.ActiveInferenceGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "detector_active_inference",
			Help: "Number of currently active inference operations",
		},
	)

	m.ModelLoadedGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "detector_model_loaded",
			Help: "Whether the detection model is currently loaded (1) or not (0)",
		},
	)

	return nil
}

// AddDetections adds the number of instances counted for a class.
// It should be called once per analyzed image for each non-zero class.
func (m *DetectorMetrics) AddDetections(class string, count float64) {
	m.DetectionCounter.WithLabelValues(class).Add(count)
}

// SetProcessTime sets the most recent processing time for a detection request.
func (m *DetectorMetrics) SetProcessTime(milliseconds float64) {
	m.ProcessTimeGauge.Set(milliseconds)
}

// RecordInference records metrics for an inference operation
func (m *DetectorMetrics) RecordInference(model string, durationSeconds float64, err error) {
	if err != nil {
		m.InferenceTotal.WithLabelValues(model, "error").Inc()
		m.InferenceErrors.WithLabelValues(model, categorizeError(err)).Inc()
	} else {
		m.InferenceTotal.WithLabelValues(model, "success").Inc()
		m.InferenceDuration.WithLabelValues(model).Observe(durationSeconds)
	}
}

// RecordDecode records metrics for decoding model output
func (m *DetectorMetrics) RecordDecode(model string, durationSeconds float64) {
	m.DecodeDuration.WithLabelValues(model).Observe(durationSeconds)
}

// RecordModelLoad records metrics for model loading operations
func (m *DetectorMetrics) RecordModelLoad(model string, err error) {
	if err != nil {
		m.ModelLoadTotal.WithLabelValues(model, "error").Inc()
		m.ModelLoadErrors.WithLabelValues(model, categorizeError(err)).Inc()
		m.ModelLoadedGauge.Set(0)
	} else {
		m.ModelLoadTotal.WithLabelValues(model, "success").Inc()
		m.ModelLoadedGauge.Set(1)
	}
}

// SetActiveInference sets the number of active inference operations
func (m *DetectorMetrics) SetActiveInference(count float64) {
	m.ActiveInferenceGauge.Set(count)
}

// categorizeError returns a category string for the error type
func categorizeError(err error) string {
	if err == nil {
		return "none"
	}
	// Simple categorization based on error message
	errStr := err.Error()
	switch {
	case strings.Contains(errStr, "tensor"):
		return "tensor_error"
	case strings.Contains(errStr, "invoke"):
		return "invoke_error"
	case strings.Contains(errStr, "label"):
		return "label_error"
	case strings.Contains(errStr, "file"):
		return "file_error"
	case strings.Contains(errStr, "model"):
		return "model_error"
	default:
		return "unknown"
	}
}

// Describe implements the prometheus.Collector interface.
func (m *DetectorMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.DetectionCounter.Describe(ch)
	ch <- m.ProcessTimeGauge.Desc()

	// Performance metrics
	m.InferenceDuration.Describe(ch)
	m.DecodeDuration.Describe(ch)

	// Operation counters
	m.InferenceTotal.Describe(ch)
	m.InferenceErrors.Describe(ch)
	m.ModelLoadTotal.Describe(ch)
	m.ModelLoadErrors.Describe(ch)

	// State gauges
	ch <- m.ActiveInferenceGauge.Desc()
	ch <- m.ModelLoadedGauge.Desc()
}

// Collect implements the prometheus.Collector interface.
func (m *DetectorMetrics) Collect(ch chan<- prometheus.Metric) {
	m.DetectionCounter.Collect(ch)
	ch <- m.ProcessTimeGauge

	// Performance metrics
	m.InferenceDuration.Collect(ch)
	m.DecodeDuration.Collect(ch)

	// Operation counters
	m.InferenceTotal.Collect(ch)
	m.InferenceErrors.Collect(ch)
	m.ModelLoadTotal.Collect(ch)
	m.ModelLoadErrors.Collect(ch)

	// State gauges
	ch <- m.ActiveInferenceGauge
	ch <- m.ModelLoadedGauge
}

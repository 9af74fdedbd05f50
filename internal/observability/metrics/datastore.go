// Package metrics provides datastore metrics for observability
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// DatastoreMetrics contains Prometheus metrics for datastore operations
type DatastoreMetrics struct {
	registry *prometheus.Registry

	// Database operation metrics
	dbOperationsTotal      *prometheus.CounterVec
	dbOperationDuration    *prometheus.HistogramVec
	dbOperationErrorsTotal *prometheus.CounterVec

	// Request record metrics
	requestOperationsTotal   *prometheus.CounterVec
	requestOperationDuration *prometheus.HistogramVec

	// Analytics metrics
	analyticsOperationsTotal   *prometheus.CounterVec
	analyticsOperationDuration *prometheus.HistogramVec
	malformedCountsTotal       prometheus.Counter

	// Query result metrics
	queryResultSizeHist *prometheus.HistogramVec

	// collectors is a slice of all collectors for easier iteration
	collectors []prometheus.Collector
}

// NewDatastoreMetrics creates and registers new datastore metrics
func NewDatastoreMetrics(registry *prometheus.Registry) (*DatastoreMetrics, error) {
	m := &DatastoreMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, err
	}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// initMetrics initializes all Prometheus metrics
func (m *DatastoreMetrics) initMetrics() error {
	// Database operation metrics
	m.dbOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datastore_db_operations_total",
			Help: "Total number of database operations",
		},
		[]string{"operation", "table", "status"}, // operation: save, get, search; status: success, error
	)

	m.dbOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "datastore_db_operation_duration_seconds",
			Help:    "Time taken for database operations",
			Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount15), // 1ms to ~32s
		},
		[]string{"operation", "table"},
	)

	m.dbOperationErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datastore_db_operation_errors_total",
			Help: "Total number of database operation errors",
		},
		[]string{"operation", "table", "error_type"},
	)

	// Request record metrics
	m.requestOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datastore_request_operations_total",
			Help: "Total number of request record operations",
		},
		[]string{"operation", "status"}, // operation: save, get, recent, all
	)

	m.requestOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "datastore_request_operation_duration_seconds",
			Help:    "Time taken for request record operations",
			Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount10),
		},
		[]string{"operation"},
	)

	// Analytics metrics
	m.analyticsOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datastore_analytics_operations_total",
			Help: "Total number of analytics operations",
		},
		[]string{"analytics_type", "status"}, // analytics_type: summary, class_totals
	)

	m.analyticsOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "datastore_analytics_operation_duration_seconds",
			Help:    "Time taken for analytics operations",
			Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount12),
		},
		[]string{"analytics_type"},
	)

	m.malformedCountsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "datastore_malformed_counts_total",
			Help: "Total number of stored rows skipped during aggregation due to malformed counts",
		},
	)

	// Query result metrics
	m.queryResultSizeHist = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "datastore_query_result_size",
			Help:    "Number of rows returned by query operations",
			Buckets: prometheus.ExponentialBuckets(1, BucketFactor4, BucketCount10),
		},
		[]string{"operation", "table"},
	)

	m.collectors = []prometheus.Collector{
		m.dbOperationsTotal,
		m.dbOperationDuration,
		m.dbOperationErrorsTotal,
		m.requestOperationsTotal,
		m.requestOperationDuration,
		m.analyticsOperationsTotal,
		m.analyticsOperationDuration,
		m.malformedCountsTotal,
		m.queryResultSizeHist,
	}

	return nil
}

// Describe implements the Collector interface
func (m *DatastoreMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.collectors {
		collector.Describe(ch)
	}
}

// Collect implements the Collector interface
func (m *DatastoreMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.collectors {
		collector.Collect(ch)
	}
}

// RecordDbOperation records a database operation
func (m *DatastoreMetrics) RecordDbOperation(operation, table, status string) {
	m.dbOperationsTotal.WithLabelValues(operation, table, status).Inc()
}

// RecordDbOperationDuration records the duration of a database operation
func (m *DatastoreMetrics) RecordDbOperationDuration(operation, table string, duration float64) {
	m.dbOperationDuration.WithLabelValues(operation, table).Observe(duration)
}

// RecordDbOperationError records a database operation error
func (m *DatastoreMetrics) RecordDbOperationError(operation, table, errorType string) {
	m.dbOperationErrorsTotal.WithLabelValues(operation, table, errorType).Inc()
}

// RecordRequestOperation records a request record operation
func (m *DatastoreMetrics) RecordRequestOperation(operation, status string) {
	m.requestOperationsTotal.WithLabelValues(operation, status).Inc()
}

// RecordRequestOperationDuration records the duration of a request record operation
func (m *DatastoreMetrics) RecordRequestOperationDuration(operation string, duration float64) {
	m.requestOperationDuration.WithLabelValues(operation).Observe(duration)
}

// RecordAnalyticsOperation records an analytics operation
func (m *DatastoreMetrics) RecordAnalyticsOperation(analyticsType, status string) {
	m.analyticsOperationsTotal.WithLabelValues(analyticsType, status).Inc()
}

// RecordAnalyticsDuration records the duration of an analytics operation
func (m *DatastoreMetrics) RecordAnalyticsDuration(analyticsType string, duration float64) {
	m.analyticsOperationDuration.WithLabelValues(analyticsType).Observe(duration)
}

// IncrementMalformedCounts increments the counter of rows skipped during aggregation
func (m *DatastoreMetrics) IncrementMalformedCounts() {
	m.malformedCountsTotal.Inc()
}

// RecordQueryResultSize records the number of rows returned by a query
func (m *DatastoreMetrics) RecordQueryResultSize(operation, table string, resultSize int) {
	m.queryResultSizeHist.WithLabelValues(operation, table).Observe(float64(resultSize))
}

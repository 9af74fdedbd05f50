// Package metrics provides constants used across metric definitions.
package metrics

import "time"

// Operation type constants used in metric labels across components.
const (
	// OpInference represents model inference operations.
	OpInference = "inference"
	// OpModelLoad represents model loading operations.
	OpModelLoad = "model_load"
	// OpDecode represents raw output decoding operations.
	OpDecode = "decode"
	// OpStage represents upload staging operations.
	OpStage = "stage"
	// OpValidate represents image validation operations.
	OpValidate = "validate"
	// OpAnnotate represents annotated artifact rendering operations.
	OpAnnotate = "annotate"
	// OpFetch represents remote image fetch operations.
	OpFetch = "fetch"
	// OpDbInsert represents database insert operations.
	OpDbInsert = "db_insert"
	// OpDbQuery represents database query operations.
	OpDbQuery = "db_query"
	// OpSearch represents search operations.
	OpSearch = "search"
	// OpAnalytics represents analytics query operations.
	OpAnalytics = "analytics"
)

// Label value constants used for metric labels.
const (
	// LabelSuccess is the status label for successful operations.
	LabelSuccess = "success"
	// LabelError is the status label for failed operations.
	LabelError = "error"
	// LabelSkipped is the status label for skipped items.
	LabelSkipped = "skipped"
	// LabelUpload is the source label for multipart uploads.
	LabelUpload = "upload"
	// LabelURL is the source label for remote fetches.
	LabelURL = "url"
	// LabelFile is the source label for local file analysis.
	LabelFile = "file"
)

// Histogram bucket configuration constants.
// These define the base values and factors for exponential bucket generation.
const (
	// BucketStart1ms is the starting bucket for 1ms histograms (1ms to ~1s range).
	BucketStart1ms = 0.001
	// BucketStart10ms is the starting bucket for 10ms histograms (10ms to ~40s range).
	BucketStart10ms = 0.01
	// BucketStart1KB is the starting bucket for 1KB histograms (1KB to ~1GB range).
	BucketStart1KB = 1024.0

	// BucketFactor2 is the common exponential growth factor of 2 for histogram buckets.
	BucketFactor2 = 2
	// BucketFactor4 is the exponential growth factor of 4 for byte-size ranges.
	BucketFactor4 = 4

	// BucketCount10 defines 10 exponential buckets.
	BucketCount10 = 10
	// BucketCount12 defines 12 exponential buckets.
	BucketCount12 = 12
	// BucketCount15 defines 15 exponential buckets.
	BucketCount15 = 15
)

// Time and conversion constants.
const (
	// ShutdownTimeout is the timeout for graceful shutdown operations.
	ShutdownTimeout = 5 * time.Second
	// MillisecondsPerSecond is the conversion factor from seconds to milliseconds.
	MillisecondsPerSecond = 1000.0
)

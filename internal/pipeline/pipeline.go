// Package pipeline sequences one counting request from staged upload to
// persisted record.
//
// Each request walks the states received, validated, detected, persisted and
// completed. Validation failures exit to rejected, detection and store
// failures to failed. There is no retry; a failed request terminates with a
// classified error and the staged file is cleaned up unless the retention
// policy keeps it.
package pipeline

import (
	"context"
	"image"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tphakala/fruitcount-go/internal/conf"
	"github.com/tphakala/fruitcount-go/internal/datastore"
	"github.com/tphakala/fruitcount-go/internal/detector"
	"github.com/tphakala/fruitcount-go/internal/errors"
	"github.com/tphakala/fruitcount-go/internal/imagefile"
	"github.com/tphakala/fruitcount-go/internal/logging"
	"github.com/tphakala/fruitcount-go/internal/observability/metrics"
)

// Request lifecycle states, reported as metric labels and log fields.
const (
	StateReceived  = "received"
	StateValidated = "validated"
	StateDetected  = "detected"
	StatePersisted = "persisted"
	StateCompleted = "completed"
	StateRejected  = "rejected"
	StateFailed    = "failed"
)

// Upload sources, reported as metric labels.
const (
	SourceUpload = "upload"
	SourceURL    = "url"
	SourceFile   = "file"
)

// deliveryTimeout bounds each asynchronous sink delivery.
const deliveryTimeout = 30 * time.Second

// getLoggerSafe returns a logger for the service, falling back to default if logging not initialized
func getLoggerSafe(service string) *slog.Logger {
	logger := logging.ForService(service)
	if logger == nil {
		logger = slog.Default().With("service", service)
	}
	return logger
}

// Upload is one image submitted for counting. Reader supplies the raw bytes,
// Filename is the client-provided name used for extension checks and stored
// with the record, Source labels where the upload came from.
type Upload struct {
	Reader   io.Reader
	Filename string
	Source   string
}

// Result describes one completed counting request.
type Result struct {
	RecordID        uint           `json:"id"`
	Filename        string         `json:"filename"`
	Counts          map[string]int `json:"counts"`
	TotalCount      int            `json:"total_count"`
	OutputReference string         `json:"output_reference"`
	ModelName       string         `json:"model_name"`
	ProcessingMs    int64          `json:"processing_ms"`
	ElapsedMs       int64          `json:"elapsed_ms"`
	CreatedAt       time.Time      `json:"created_at"`
	Source          string         `json:"source"`
}

// Detector produces per-class counts from a decoded image.
type Detector interface {
	Detect(ctx context.Context, img image.Image) (*detector.Result, error)
}

// Sink receives completed results after the record is persisted. Deliveries
// run asynchronously and are best effort; a sink error never fails the
// request.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, result *Result) error
}

// Pipeline orchestrates staging, validation, detection, artifact rendering
// and persistence for counting requests.
type Pipeline struct {
	Settings *conf.Settings
	Ds       datastore.Interface
	Detector Detector
	Files    *imagefile.Manager

	sinks []Sink

	active  atomic.Int64
	wg      sync.WaitGroup
	metrics *metrics.PipelineMetrics
	log     *slog.Logger
}

// New creates a Pipeline. Sinks for completed results are added separately
// with AddSink. pipelineMetrics may be nil.
func New(settings *conf.Settings, ds datastore.Interface, det Detector, files *imagefile.Manager, pipelineMetrics *metrics.PipelineMetrics) *Pipeline {
	return &Pipeline{
		Settings: settings,
		Ds:       ds,
		Detector: det,
		Files:    files,
		metrics:  pipelineMetrics,
		log:      getLoggerSafe("pipeline"),
	}
}

// AddSink registers a delivery target for completed results. Not safe for
// concurrent use with Process; register sinks before serving requests.
func (p *Pipeline) AddSink(s Sink) {
	p.sinks = append(p.sinks, s)
}

// Wait blocks until all in-flight sink deliveries have finished. Called on
// shutdown so asynchronous deliveries are not cut off mid-flight.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

// fanOut delivers the result to every registered sink in its own goroutine.
func (p *Pipeline) fanOut(result *Result) {
	for _, sink := range p.sinks {
		p.wg.Add(1)
		go func(s Sink) {
			defer p.wg.Done()

			ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
			defer cancel()

			if err := s.Deliver(ctx, result); err != nil {
				p.log.Warn("Sink delivery failed",
					"sink", s.Name(),
					"record_id", result.RecordID,
					"error", err)
			}
		}(sink)
	}
}

// recordRequest reports a request reaching a terminal state.
func (p *Pipeline) recordRequest(source, state string, elapsed time.Duration) {
	if p.metrics == nil {
		return
	}
	p.metrics.RecordRequest(source, state)
	p.metrics.RecordRequestDuration(source, elapsed.Seconds())
}

// recordStage reports the duration of one completed pipeline stage.
func (p *Pipeline) recordStage(stage string, start time.Time) {
	if p.metrics == nil {
		return
	}
	p.metrics.RecordStageDuration(stage, time.Since(start).Seconds())
}

// recordStageError reports a stage failure with its error category.
func (p *Pipeline) recordStageError(stage string, err error) {
	if p.metrics == nil {
		return
	}
	p.metrics.RecordStageError(stage, categoryLabel(err))
}

// recordArtifact reports an artifact operation outcome.
func (p *Pipeline) recordArtifact(operation, status string) {
	if p.metrics == nil {
		return
	}
	p.metrics.RecordArtifactOperation(operation, status)
}

// recordCleanup reports a staged file cleanup outcome.
func (p *Pipeline) recordCleanup(outcome string) {
	if p.metrics == nil {
		return
	}
	p.metrics.RecordStagedCleanup(outcome)
}

// setActive publishes the in-flight request count.
func (p *Pipeline) setActive(n int64) {
	if p.metrics == nil {
		return
	}
	p.metrics.SetActiveRequests(float64(n))
}

// categoryLabel extracts the error category for metric labels.
func categoryLabel(err error) string {
	var ee *errors.EnhancedError
	if errors.As(err, &ee) {
		return ee.GetCategory()
	}
	return "unknown"
}

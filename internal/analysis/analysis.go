// Package analysis implements the run modes behind the CLI commands:
// one-shot file counting, directory batches, report rendering and the
// HTTP server.
package analysis

import (
	"fmt"
	"log"

	"github.com/tphakala/fruitcount-go/internal/conf"
	"github.com/tphakala/fruitcount-go/internal/datastore"
	"github.com/tphakala/fruitcount-go/internal/detector"
	"github.com/tphakala/fruitcount-go/internal/imagefile"
	"github.com/tphakala/fruitcount-go/internal/observability"
	"github.com/tphakala/fruitcount-go/internal/pipeline"
)

// det is the detector shared across a run. The interpreter loads once and
// is reused by every request in the process.
var det *detector.Detector

// initializeDetector loads the TFLite interpreter if not already loaded.
func initializeDetector(settings *conf.Settings, m *observability.Metrics) error {
	if det != nil {
		return nil
	}

	var err error
	if m != nil {
		det, err = detector.New(settings, m.Detector)
	} else {
		det, err = detector.New(settings, nil)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize detector: %w", err)
	}
	return nil
}

// releaseDetector frees the interpreter. Safe to call when nothing was
// loaded.
func releaseDetector() {
	if det != nil {
		det.Close()
		det = nil
	}
}

// openDataStore opens the configured database and returns it.
func openDataStore(settings *conf.Settings, m *observability.Metrics) (datastore.Interface, error) {
	var ds datastore.Interface
	if m != nil {
		ds = datastore.New(settings, m.Datastore)
	} else {
		ds = datastore.New(settings, nil)
	}

	if err := ds.Open(); err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return ds, nil
}

// closeDataStore closes the database, logging any error.
func closeDataStore(ds datastore.Interface) {
	if err := ds.Close(); err != nil {
		log.Printf("Failed to close database: %v", err)
	}
}

// buildPipeline assembles the counting pipeline on top of an open store.
func buildPipeline(settings *conf.Settings, ds datastore.Interface, m *observability.Metrics) (*pipeline.Pipeline, error) {
	files, err := imagefile.NewManager(settings)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize upload staging: %w", err)
	}

	if m != nil {
		return pipeline.New(settings, ds, det, files, m.Pipeline), nil
	}
	return pipeline.New(settings, ds, det, files, nil), nil
}

// clampInt limits value to the inclusive range [minVal, maxVal].
func clampInt(value, minVal, maxVal int) int {
	if value < minVal {
		return minVal
	}
	if value > maxVal {
		return maxVal
	}
	return value
}

package pipeline

import (
	"context"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/datatypes"

	"github.com/tphakala/fruitcount-go/internal/datastore"
	"github.com/tphakala/fruitcount-go/internal/detector"
	"github.com/tphakala/fruitcount-go/internal/errors"
	"github.com/tphakala/fruitcount-go/internal/imagefile"
)

// Process runs one upload through the full pipeline and returns its result
// descriptor. Validation failures reject the upload without persisting
// anything; detection and store failures terminate the request with the
// underlying classified error. Errors pass through unwrapped so callers can
// map their categories to responses.
func (p *Pipeline) Process(ctx context.Context, upload *Upload) (*Result, error) {
	if upload == nil || upload.Reader == nil {
		return nil, errors.Newf("upload has no content").
			Component("pipeline").
			Category(errors.CategoryValidation).
			Build()
	}

	source := upload.Source
	if source == "" {
		source = SourceUpload
	}

	return p.run(ctx, source, upload.Filename, func() (*imagefile.StagedFile, error) {
		return p.Files.Stage(upload.Reader, upload.Filename)
	})
}

// ProcessURL downloads a remote image into staging and runs it through the
// pipeline. The record filename derives from the URL path.
func (p *Pipeline) ProcessURL(ctx context.Context, rawURL string) (*Result, error) {
	return p.run(ctx, SourceURL, rawURL, func() (*imagefile.StagedFile, error) {
		return p.Files.Fetch(ctx, rawURL)
	})
}

// run walks a staged request through validate, detect, persist and fan-out.
// input names the original upload or URL for stage-failure logs.
func (p *Pipeline) run(ctx context.Context, source, input string, stage func() (*imagefile.StagedFile, error)) (*Result, error) {
	start := time.Now()
	state := StateReceived

	p.setActive(p.active.Add(1))
	defer func() {
		p.setActive(p.active.Add(-1))
		p.recordRequest(source, state, time.Since(start))
	}()

	stageStart := time.Now()
	sf, err := stage()
	if err != nil {
		if errors.IsCategory(err, errors.CategoryValidation) {
			state = StateRejected
		} else {
			state = StateFailed
		}
		p.recordStageError("stage", err)
		p.log.Error("Failed to stage request",
			"input", input,
			"source", source,
			"error", err)
		return nil, err
	}
	p.recordStage("stage", stageStart)

	filename := sf.OriginalName
	requestID := strings.TrimSuffix(filepath.Base(sf.Path), filepath.Ext(sf.Path))
	log := p.log.With("request_id", requestID, "filename", filename, "source", source)

	// Every exit path removes the staged file unless ownership was released
	// to the persisted record or retained for diagnostics.
	defer func() {
		if sf.Released() {
			return
		}
		if cleanupErr := sf.Cleanup(); cleanupErr != nil {
			log.Warn("Failed to remove staged file", "path", sf.Path, "error", cleanupErr)
			p.recordCleanup("error")
			return
		}
		p.recordCleanup("removed")
	}()

	validateStart := time.Now()
	if err := p.Files.Validate(sf); err != nil {
		state = StateRejected
		p.recordStageError("validate", err)
		log.Warn("Upload rejected", "size", sf.Size, "error", err)
		return nil, err
	}
	p.recordStage("validate", validateStart)
	state = StateValidated

	decodeStart := time.Now()
	img, err := imagefile.DecodeImage(sf.Path)
	if err != nil {
		state = StateFailed
		p.recordStageError("decode", err)
		p.retainForDiagnostics(sf, log)
		log.Error("Failed to decode staged image", "error", err)
		return nil, err
	}
	p.recordStage("decode", decodeStart)

	detectStart := time.Now()
	res, err := p.Detector.Detect(ctx, img)
	if err != nil {
		state = StateFailed
		p.recordStageError("detect", err)
		p.retainForDiagnostics(sf, log)
		log.Error("Detection failed",
			"model", p.Settings.Detector.ModelName,
			"error", err)
		return nil, err
	}
	p.recordStage("detect", detectStart)
	state = StateDetected

	outputRef := p.renderArtifact(img, res.Detections, filepath.Base(sf.Path), log)

	persistStart := time.Now()
	record := buildRecord(filename, outputRef, res)
	if err := p.Ds.Save(ctx, record); err != nil {
		state = StateFailed
		p.recordStageError("persist", err)
		log.Error("Failed to save request record", "error", err)
		return nil, err
	}
	p.recordStage("persist", persistStart)
	state = StatePersisted

	// The staged file is now the stored upload for this record.
	sf.Release()
	p.recordCleanup("released")
	state = StateCompleted

	counts := res.Counts
	if counts == nil {
		counts = map[string]int{}
	}

	result := &Result{
		RecordID:        record.ID,
		Filename:        record.Filename,
		Counts:          counts,
		TotalCount:      res.TotalCount,
		OutputReference: outputRef,
		ModelName:       record.ModelName,
		ProcessingMs:    record.ProcessingMs,
		ElapsedMs:       time.Since(start).Milliseconds(),
		CreatedAt:       record.CreatedAt,
		Source:          source,
	}

	log.Info("Request completed",
		"record_id", result.RecordID,
		"total_count", result.TotalCount,
		"counts", result.Counts,
		"elapsed_ms", result.ElapsedMs)

	p.fanOut(result)
	return result, nil
}

// ProcessFile runs a file already on disk through the pipeline. Used by the
// file and directory analysis commands; the file is staged like any other
// upload so the record and artifact reference the staged copy.
func (p *Pipeline) ProcessFile(ctx context.Context, path string) (*Result, error) {
	f, err := os.Open(path) //nolint:gosec // G304: path is the operator-provided analysis target
	if err != nil {
		return nil, errors.New(err).
			Component("pipeline").
			Category(errors.CategoryFileIO).
			Context("operation", "open_input").
			Context("path", path).
			Build()
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			p.log.Warn("Failed to close input file", "path", path, "error", closeErr)
		}
	}()

	return p.Process(ctx, &Upload{
		Reader:   f,
		Filename: filepath.Base(path),
		Source:   SourceFile,
	})
}

// retainForDiagnostics keeps the staged file on disk after a decode or
// detection failure when the retention policy asks for it.
func (p *Pipeline) retainForDiagnostics(sf *imagefile.StagedFile, log *slog.Logger) {
	if !p.Settings.Artifacts.KeepFailedUploads {
		return
	}
	sf.Release()
	p.recordCleanup("kept")
	log.Info("Retaining staged file for diagnostics", "path", sf.Path)
}

// renderArtifact draws detection boxes and writes the annotated image. It
// returns the artifact name, or an empty reference when rendering is
// disabled or fails.
func (p *Pipeline) renderArtifact(img image.Image, dets []detector.Detection, baseName string, log *slog.Logger) string {
	if !p.Settings.Artifacts.Enabled {
		return ""
	}

	annotateStart := time.Now()
	name, err := p.Files.SaveAnnotated(img, boxesFromDetections(dets), baseName)
	if err != nil {
		p.recordArtifact("render", "error")
		p.recordStageError("annotate", err)
		log.Warn("Artifact rendering failed, storing record without output reference", "error", err)
		return ""
	}
	p.recordStage("annotate", annotateStart)
	p.recordArtifact("render", "success")
	return name
}

// boxesFromDetections converts detector output to annotation boxes.
func boxesFromDetections(dets []detector.Detection) []imagefile.Box {
	boxes := make([]imagefile.Box, 0, len(dets))
	for i := range dets {
		d := &dets[i]
		boxes = append(boxes, imagefile.Box{
			MinX:       d.MinX,
			MinY:       d.MinY,
			MaxX:       d.MaxX,
			MaxY:       d.MaxY,
			Class:      d.Class,
			Confidence: d.Confidence,
		})
	}
	return boxes
}

// buildRecord maps a detection result onto a request record. Counts is
// always a non-nil map so empty results persist as an empty JSON object
// rather than NULL.
func buildRecord(filename, outputRef string, res *detector.Result) *datastore.Request {
	counts := datatypes.JSONMap{}
	for class, n := range res.Counts {
		counts[class] = n
	}
	return &datastore.Request{
		Filename:        filename,
		OutputReference: outputRef,
		Counts:          counts,
		TotalCount:      res.TotalCount,
		ModelName:       res.ModelName,
		CreatedAt:       time.Now(),
		ProcessingMs:    res.ProcessingMs,
	}
}

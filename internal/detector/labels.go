package detector

import (
	"bufio"
	"bytes"
	_ "embed" // Embedding data directly into the binary.
	"io"
	"os"
	"strings"

	"github.com/tphakala/fruitcount-go/internal/errors"
)

// Embedded COCO class table matching the default yolov8n model output order.
//
//go:embed data/labels/coco.txt
var embeddedLabelData []byte

// loadLabels populates the detector's class label table from either the
// embedded COCO labels or an external label file.
func (d *Detector) loadLabels() error {
	d.labels = d.labels[:0]

	if d.Settings.Detector.LabelPath == "" {
		return d.loadEmbeddedLabels()
	}
	return d.loadExternalLabels()
}

// loadEmbeddedLabels loads labels from the embedded label table
func (d *Detector) loadEmbeddedLabels() error {
	labels, err := parseLabels(bytes.NewReader(embeddedLabelData))
	if err != nil {
		return errors.New(err).
			Category(errors.CategoryLabelLoad).
			Context("operation", "scan_labels").
			Context("label_source", "embedded").
			Build()
	}
	d.labels = labels
	return nil
}

// loadExternalLabels loads labels from the configured external label file
func (d *Detector) loadExternalLabels() error {
	path := d.Settings.Detector.LabelPath

	file, err := os.Open(path) //nolint:gosec // G304: label path is from application settings
	if err != nil {
		return errors.New(err).
			Category(errors.CategoryFileIO).
			Context("label_path", path).
			Context("operation", "open").
			Build()
	}
	defer func() {
		if err := file.Close(); err != nil {
			d.log.Warn("Failed to close label file", "path", path, "error", err)
		}
	}()

	labels, err := parseLabels(file)
	if err != nil {
		return errors.New(err).
			Category(errors.CategoryLabelLoad).
			Context("label_path", path).
			Context("operation", "parse").
			Build()
	}
	d.labels = labels
	return nil
}

// parseLabels reads one class name per line, skipping blank lines.
func parseLabels(r io.Reader) ([]string, error) {
	var labels []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			labels = append(labels, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return labels, nil
}

// Labels returns a copy of the loaded class label table.
func (d *Detector) Labels() []string {
	out := make([]string, len(d.labels))
	copy(out, d.labels)
	return out
}

package imagefile

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/tphakala/fruitcount-go/internal/errors"
)

// Validate checks a staged file against the configured upload limits and
// verifies that the bytes are a structurally valid image. It rejects with
// CategoryValidation errors and never removes the file; cleanup stays with
// whoever owns the StagedFile handle.
func (m *Manager) Validate(sf *StagedFile) error {
	ext := strings.ToLower(filepath.Ext(sf.OriginalName))
	if !m.extensionAllowed(ext) {
		return errors.Newf("unsupported file type %q, allowed types: %s",
			ext, strings.Join(m.settings.Upload.AllowedExtensions, ", ")).
			Category(errors.CategoryValidation).
			Context("filename", sf.OriginalName).
			Build()
	}

	if sf.Size > m.settings.Upload.MaxFileSize {
		return errors.Newf("file too large: limit is %d bytes", m.settings.Upload.MaxFileSize).
			Category(errors.CategoryValidation).
			FileContext(sf.Path, sf.Size).
			Build()
	}

	if err := checkImageHeader(sf.Path); err != nil {
		return err
	}

	return nil
}

// extensionAllowed reports whether ext is in the configured allow-list.
// Comparison is case-insensitive; the configured list is expected to carry
// leading dots.
func (m *Manager) extensionAllowed(ext string) bool {
	for _, allowed := range m.settings.Upload.AllowedExtensions {
		if strings.EqualFold(ext, allowed) {
			return true
		}
	}
	return false
}

// checkImageHeader verifies the file decodes as an image header without
// rasterizing the full frame.
func checkImageHeader(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.New(err).
			Category(errors.CategoryFileIO).
			Context("operation", "validate_open").
			Context("path", path).
			Build()
	}
	defer func() {
		if err := f.Close(); err != nil {
			getLoggerSafe("imagefile").Warn("Failed to close staged file", "path", path, "error", err)
		}
	}()

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return errors.New(fmt.Errorf("invalid or corrupted image: %w", err)).
			Category(errors.CategoryValidation).
			Context("operation", "validate_header").
			Context("path", path).
			Build()
	}

	if cfg.Width <= 0 || cfg.Height <= 0 {
		return errors.Newf("invalid image dimensions %dx%d", cfg.Width, cfg.Height).
			Category(errors.CategoryValidation).
			Context("format", format).
			Build()
	}

	return nil
}

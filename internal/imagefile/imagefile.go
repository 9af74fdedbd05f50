// Package imagefile handles staged image uploads, validation, remote
// fetching and annotated artifact rendering.
//
// Uploaded bytes are written to the upload directory under a UUID-derived
// name and wrapped in a StagedFile handle. The handle owns the on-disk path
// until Release is called; deferring Cleanup makes every exit path remove
// the staged file unless ownership was transferred to a persisted record.
package imagefile

import (
	"fmt"
	"image"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	// Register JPEG and PNG decoders for image.Decode and image.DecodeConfig.
	_ "image/jpeg"
	_ "image/png"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/tphakala/fruitcount-go/internal/conf"
	"github.com/tphakala/fruitcount-go/internal/errors"
	"github.com/tphakala/fruitcount-go/internal/logging"
)

// getLoggerSafe returns a logger for the service, falling back to default if logging not initialized
func getLoggerSafe(service string) *slog.Logger {
	logger := logging.ForService(service)
	if logger == nil {
		logger = slog.Default().With("service", service)
	}
	return logger
}

// Manager stages, validates and fetches image files according to the
// configured upload limits.
type Manager struct {
	settings *conf.Settings
	client   *http.Client
	limiter  *rate.Limiter
	log      *slog.Logger
}

// NewManager creates a Manager and ensures the upload and artifact
// directories exist.
func NewManager(settings *conf.Settings) (*Manager, error) {
	if err := os.MkdirAll(settings.Upload.Path, 0o755); err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryFileIO).
			Context("operation", "create_upload_dir").
			Context("path", settings.Upload.Path).
			Build()
	}

	if settings.Artifacts.Enabled {
		if err := os.MkdirAll(settings.Artifacts.Path, 0o755); err != nil {
			return nil, errors.New(err).
				Category(errors.CategoryFileIO).
				Context("operation", "create_artifacts_dir").
				Context("path", settings.Artifacts.Path).
				Build()
		}
	}

	return &Manager{
		settings: settings,
		client:   &http.Client{Timeout: time.Duration(settings.Fetch.Timeout) * time.Second},
		limiter:  rate.NewLimiter(rate.Limit(settings.Fetch.RequestsPerSecond), settings.Fetch.Burst),
		log:      getLoggerSafe("imagefile"),
	}, nil
}

// StagedFile is a scoped handle for an uploaded image on disk. The creator
// owns the file until Release transfers ownership; Cleanup removes the file
// unless it was released.
type StagedFile struct {
	Path         string
	OriginalName string
	Size         int64

	mu       sync.Mutex
	released bool
	removed  bool
}

// Release transfers ownership of the staged path to the caller. Subsequent
// Cleanup calls become no-ops.
func (sf *StagedFile) Release() {
	sf.mu.Lock()
	defer sf.mu.Unlock()
	sf.released = true
}

// Cleanup removes the staged file from disk unless Release has been called.
// It is safe to call multiple times.
func (sf *StagedFile) Cleanup() error {
	sf.mu.Lock()
	defer sf.mu.Unlock()

	if sf.released || sf.removed {
		return nil
	}
	sf.removed = true

	if err := os.Remove(sf.Path); err != nil && !os.IsNotExist(err) {
		return errors.New(err).
			Category(errors.CategoryFileIO).
			Context("operation", "staged_cleanup").
			Context("path", sf.Path).
			Build()
	}
	return nil
}

// Released reports whether ownership of the staged path has been transferred.
func (sf *StagedFile) Released() bool {
	sf.mu.Lock()
	defer sf.mu.Unlock()
	return sf.released
}

// Stage writes the reader's bytes to the upload directory under a
// UUID-derived name that preserves the original extension. At most
// MaxFileSize+1 bytes are written so oversized uploads are truncated at the
// limit and rejected later by Validate instead of filling the disk.
func (m *Manager) Stage(r io.Reader, filename string) (*StagedFile, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	stagedName := fmt.Sprintf("%s%s", uuid.New().String(), ext)
	stagedPath := filepath.Join(m.settings.Upload.Path, stagedName)

	out, err := os.OpenFile(stagedPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryFileIO).
			Context("operation", "stage_create").
			Context("path", stagedPath).
			Build()
	}

	limit := m.settings.Upload.MaxFileSize + 1
	written, err := io.Copy(out, io.LimitReader(r, limit))
	closeErr := out.Close()

	if err == nil {
		err = closeErr
	}
	if err != nil {
		// Incomplete staging, remove the partial file before returning.
		if rmErr := os.Remove(stagedPath); rmErr != nil && !os.IsNotExist(rmErr) {
			m.log.Warn("Failed to remove partial staged file", "path", stagedPath, "error", rmErr)
		}
		return nil, errors.New(err).
			Category(errors.CategoryFileIO).
			Context("operation", "stage_write").
			FileContext(stagedPath, written).
			Build()
	}

	m.log.Debug("Staged upload",
		"original", filename,
		"staged", stagedName,
		"size", written)

	return &StagedFile{
		Path:         stagedPath,
		OriginalName: filename,
		Size:         written,
	}, nil
}

// DecodeImage fully decodes the staged image for detection and annotation.
func DecodeImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryFileIO).
			Context("operation", "decode_open").
			Context("path", path).
			Build()
	}
	defer func() {
		if err := f.Close(); err != nil {
			getLoggerSafe("imagefile").Warn("Failed to close image file", "path", path, "error", err)
		}
	}()

	img, format, err := image.Decode(f)
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryImageDecode).
			Context("operation", "decode_image").
			Context("path", path).
			Build()
	}

	getLoggerSafe("imagefile").Debug("Decoded image", "path", path, "format", format,
		"width", img.Bounds().Dx(), "height", img.Bounds().Dy())
	return img, nil
}

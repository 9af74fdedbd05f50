// Package export uploads rendered artifacts to a remote server over FTP
// or SFTP.
//
// Uploads write to a temporary name first and rename into place, so a
// partially transferred artifact is never visible under its final name.
package export

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/tphakala/fruitcount-go/internal/conf"
	"github.com/tphakala/fruitcount-go/internal/errors"
	"github.com/tphakala/fruitcount-go/internal/logging"
)

// tempFilePrefix marks in-flight uploads on the remote side.
const tempFilePrefix = "tmp-"

// DefaultTimeout bounds dial and transfer operations when the settings do
// not specify one.
const DefaultTimeout = 30 * time.Second

const (
	defaultMaxRetries   = 3
	defaultRetryBackoff = time.Second
)

// transientErrorPatterns contains substrings that indicate a retriable
// transfer error.
var transientErrorPatterns = []string{
	"connection reset",
	"connection refused",
	"connection closed",
	"timeout",
	"temporary",
	"broken pipe",
	"no route to host",
	"EOF",
	"ssh: handshake failed",
	"resource temporarily unavailable",
}

// getLoggerSafe returns a logger for the service, falling back to default if logging not initialized
func getLoggerSafe(service string) *slog.Logger {
	logger := logging.ForService(service)
	if logger == nil {
		logger = slog.Default().With("service", service)
	}
	return logger
}

// Uploader transfers a local artifact to the configured remote directory.
type Uploader interface {
	Name() string
	Upload(ctx context.Context, localPath string) error
}

// Config holds the connection settings shared by the FTP and SFTP
// uploaders.
type Config struct {
	Host         string
	Port         string
	Username     string
	Password     string
	KeyFile      string
	BasePath     string
	Timeout      time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
}

// New creates an Uploader for the configured export type.
func New(settings *conf.Settings) (Uploader, error) {
	config := Config{
		Host:     settings.Export.Host,
		Port:     settings.Export.Port,
		Username: settings.Export.Username,
		Password: settings.Export.Password,
		KeyFile:  settings.Export.KeyFile,
		BasePath: strings.TrimRight(settings.Export.Path, "/"),
		Timeout:  time.Duration(settings.Export.Timeout) * time.Second,
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	config.MaxRetries = defaultMaxRetries
	config.RetryBackoff = defaultRetryBackoff
	if config.Host == "" {
		return nil, errors.Newf("export host is required").
			Component("export").
			Category(errors.CategoryConfiguration).
			Build()
	}

	switch strings.ToLower(settings.Export.Type) {
	case "ftp":
		if config.Port == "" {
			config.Port = "21"
		}
		return &ftpUploader{config: config, log: getLoggerSafe("export")}, nil
	case "sftp":
		if config.Port == "" {
			config.Port = "22"
		}
		return &sftpUploader{config: config, log: getLoggerSafe("export")}, nil
	default:
		return nil, errors.Newf("unsupported export type %q", settings.Export.Type).
			Component("export").
			Category(errors.CategoryConfiguration).
			Context("supported", "ftp, sftp").
			Build()
	}
}

// isTransientError checks if an error is likely temporary
func isTransientError(err error) bool {
	if err == nil {
		return false
	}
	if os.IsTimeout(err) {
		return true
	}
	errStr := err.Error()
	for _, pattern := range transientErrorPatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}

// withRetry runs op until it succeeds, fails permanently, or exhausts the
// configured attempts. Each attempt dials a fresh connection, so a dead
// one is never reused. The last error is returned as is.
func withRetry(ctx context.Context, config *Config, log *slog.Logger, op func(context.Context) error) error {
	var lastErr error
	for attempt := range config.MaxRetries {
		if err := ctx.Err(); err != nil {
			return errors.New(err).
				Component("export").
				Category(errors.CategoryCancellation).
				Context("operation", "upload").
				Build()
		}

		err := op(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if !isTransientError(err) {
			return err
		}

		log.Warn("Retrying artifact upload",
			"attempt", attempt+1,
			"max_attempts", config.MaxRetries,
			"error", err)
		select {
		case <-ctx.Done():
			return errors.New(ctx.Err()).
				Component("export").
				Category(errors.CategoryCancellation).
				Context("operation", "upload").
				Build()
		case <-time.After(config.RetryBackoff * time.Duration(attempt+1)):
		}
	}
	return lastErr
}

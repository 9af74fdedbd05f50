package export

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"

	"github.com/tphakala/fruitcount-go/internal/errors"
)

// ftpUploader transfers artifacts over plain FTP. Each upload dials a
// fresh connection and quits when done; artifact volume is low enough
// that pooling would buy nothing.
type ftpUploader struct {
	config Config
	log    *slog.Logger
}

func (u *ftpUploader) Name() string {
	return "ftp"
}

// Upload copies the local file into the configured remote directory,
// retrying transient failures.
func (u *ftpUploader) Upload(ctx context.Context, localPath string) error {
	return withRetry(ctx, &u.config, u.log, func(ctx context.Context) error {
		return u.upload(ctx, localPath)
	})
}

func (u *ftpUploader) upload(ctx context.Context, localPath string) error {
	conn, err := u.connect(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := conn.Quit(); err != nil {
			u.log.Warn("Failed to quit FTP connection", "host", u.config.Host, "error", err)
		}
	}()

	if err := u.createDirectory(conn, u.config.BasePath); err != nil {
		return err
	}

	remotePath := path.Join(u.config.BasePath, filepath.Base(localPath))
	if err := u.atomicUpload(ctx, conn, localPath, remotePath); err != nil {
		return err
	}

	u.log.Info("Artifact exported",
		"target", u.Name(),
		"host", u.config.Host,
		"remote_path", remotePath)
	return nil
}

// connect dials and authenticates in a goroutine so the attempt can be
// abandoned when the context expires.
func (u *ftpUploader) connect(ctx context.Context) (*ftp.ServerConn, error) {
	connChan := make(chan *ftp.ServerConn, 1)
	errChan := make(chan error, 1)

	go func() {
		addr := net.JoinHostPort(u.config.Host, u.config.Port)
		conn, err := ftp.Dial(addr, ftp.DialWithTimeout(u.config.Timeout))
		if err != nil {
			errChan <- errors.New(err).
				Component("export").
				Category(errors.CategoryNetwork).
				Context("operation", "ftp_dial").
				Context("host", u.config.Host).
				Build()
			return
		}

		if u.config.Username != "" {
			if err := conn.Login(u.config.Username, u.config.Password); err != nil {
				if quitErr := conn.Quit(); quitErr != nil {
					u.log.Warn("Failed to quit FTP connection after login error", "error", quitErr)
				}
				errChan <- errors.New(err).
					Component("export").
					Category(errors.CategoryExport).
					Context("operation", "ftp_login").
					Context("host", u.config.Host).
					Build()
				return
			}
		}

		connChan <- conn
	}()

	select {
	case <-ctx.Done():
		return nil, errors.New(ctx.Err()).
			Component("export").
			Category(errors.CategoryCancellation).
			Context("operation", "ftp_connect").
			Build()
	case err := <-errChan:
		return nil, err
	case conn := <-connChan:
		return conn, nil
	}
}

// atomicUpload stores the file under a temporary name and renames it into
// place once the transfer is complete.
func (u *ftpUploader) atomicUpload(ctx context.Context, conn *ftp.ServerConn, localPath, remotePath string) error {
	tempName := path.Join(path.Dir(remotePath),
		fmt.Sprintf("%s%d-%s", tempFilePrefix, time.Now().UnixNano(), path.Base(remotePath)))

	if err := u.uploadFile(ctx, conn, localPath, tempName); err != nil {
		_ = conn.Delete(tempName)
		return err
	}

	if err := conn.Rename(tempName, remotePath); err != nil {
		_ = conn.Delete(tempName)
		return errors.New(err).
			Component("export").
			Category(errors.CategoryExport).
			Context("operation", "ftp_rename").
			Context("remote_path", remotePath).
			Build()
	}

	return nil
}

func (u *ftpUploader) uploadFile(ctx context.Context, conn *ftp.ServerConn, localPath, remotePath string) error {
	file, err := os.Open(localPath) //nolint:gosec // G304: localPath comes from the artifact directory managed by this process
	if err != nil {
		return errors.New(err).
			Component("export").
			Category(errors.CategoryFileIO).
			Context("operation", "ftp_open_local").
			Build()
	}
	defer func() {
		if err := file.Close(); err != nil {
			u.log.Warn("Failed to close local file", "path", localPath, "error", err)
		}
	}()

	// Stream through a pipe so a context cancellation can abandon the copy.
	pr, pw := io.Pipe()
	copyErr := make(chan error, 1)

	go func() {
		defer func() {
			if err := pw.Close(); err != nil {
				u.log.Warn("Failed to close pipe writer", "error", err)
			}
		}()
		if _, err := io.Copy(pw, file); err != nil {
			copyErr <- errors.New(err).
				Component("export").
				Category(errors.CategoryFileIO).
				Context("operation", "ftp_copy").
				Build()
			return
		}
		copyErr <- nil
	}()

	if err := conn.Stor(remotePath, pr); err != nil {
		return errors.New(err).
			Component("export").
			Category(errors.CategoryExport).
			Context("operation", "ftp_store").
			Context("remote_path", remotePath).
			Build()
	}

	select {
	case <-ctx.Done():
		return errors.New(ctx.Err()).
			Component("export").
			Category(errors.CategoryCancellation).
			Context("operation", "ftp_upload").
			Build()
	case err := <-copyErr:
		return err
	}
}

// createDirectory makes the remote base directory, tolerating servers
// that report it already exists.
func (u *ftpUploader) createDirectory(conn *ftp.ServerConn, dirPath string) error {
	if dirPath == "" {
		return nil
	}

	// Probe first, most uploads land in a directory that already exists.
	currentDir, err := conn.CurrentDir()
	if err == nil {
		if err := conn.ChangeDir(dirPath); err == nil {
			_ = conn.ChangeDir(currentDir)
			return nil
		}
	}

	if err := conn.MakeDir(dirPath); err != nil {
		errStr := strings.ToLower(err.Error())
		if strings.Contains(errStr, "file exists") ||
			strings.Contains(errStr, "already exists") ||
			strings.Contains(errStr, "directory exists") ||
			strings.Contains(errStr, "550") {
			return nil
		}
		return errors.New(err).
			Component("export").
			Category(errors.CategoryExport).
			Context("operation", "ftp_mkdir").
			Context("remote_path", dirPath).
			Build()
	}

	return nil
}

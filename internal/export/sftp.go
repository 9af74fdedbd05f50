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
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"github.com/tphakala/fruitcount-go/internal/errors"
)

// sftpUploader transfers artifacts over SSH. Like the FTP uploader it
// dials per upload and closes the session when done.
type sftpUploader struct {
	config Config
	log    *slog.Logger
}

func (u *sftpUploader) Name() string {
	return "sftp"
}

// sftpSession bundles the SSH connection with the SFTP client built on
// top of it so both get closed.
type sftpSession struct {
	ssh    *ssh.Client
	client *sftp.Client
}

func (s *sftpSession) Close() {
	_ = s.client.Close()
	_ = s.ssh.Close()
}

// Upload copies the local file into the configured remote directory,
// retrying transient failures.
func (u *sftpUploader) Upload(ctx context.Context, localPath string) error {
	return withRetry(ctx, &u.config, u.log, func(ctx context.Context) error {
		return u.upload(ctx, localPath)
	})
}

func (u *sftpUploader) upload(ctx context.Context, localPath string) error {
	session, err := u.connect(ctx)
	if err != nil {
		return err
	}
	defer session.Close()

	client := session.client
	if u.config.BasePath != "" {
		if err := client.MkdirAll(u.config.BasePath); err != nil {
			return errors.New(err).
				Component("export").
				Category(errors.CategoryExport).
				Context("operation", "sftp_mkdir").
				Context("remote_path", u.config.BasePath).
				Build()
		}
	}

	remotePath := path.Join(u.config.BasePath, filepath.Base(localPath))
	if err := u.atomicUpload(ctx, client, localPath, remotePath); err != nil {
		return err
	}

	u.log.Info("Artifact exported",
		"target", u.Name(),
		"host", u.config.Host,
		"remote_path", remotePath)
	return nil
}

// connect dials SSH and opens an SFTP session in a goroutine so the
// attempt can be abandoned when the context expires.
func (u *sftpUploader) connect(ctx context.Context) (*sftpSession, error) {
	type connResult struct {
		session *sftpSession
		err     error
	}
	resultChan := make(chan connResult, 1)

	go func() {
		config := &ssh.ClientConfig{
			User:            u.config.Username,
			HostKeyCallback: ssh.InsecureIgnoreHostKey(), // Note: In production, use ssh.FixedHostKey() or ssh.KnownHosts()
			Timeout:         u.config.Timeout,
		}

		switch {
		case u.config.KeyFile != "":
			key, err := os.ReadFile(u.config.KeyFile) //nolint:gosec // G304: key path comes from operator configuration
			if err != nil {
				resultChan <- connResult{nil, errors.New(err).
					Component("export").
					Category(errors.CategoryFileIO).
					Context("operation", "sftp_read_key").
					Build()}
				return
			}
			signer, err := ssh.ParsePrivateKey(key)
			if err != nil {
				resultChan <- connResult{nil, errors.New(err).
					Component("export").
					Category(errors.CategoryConfiguration).
					Context("operation", "sftp_parse_key").
					Build()}
				return
			}
			config.Auth = []ssh.AuthMethod{ssh.PublicKeys(signer)}
		case u.config.Password != "":
			config.Auth = []ssh.AuthMethod{ssh.Password(u.config.Password)}
		default:
			resultChan <- connResult{nil, errors.Newf("sftp export requires a password or key file").
				Component("export").
				Category(errors.CategoryConfiguration).
				Build()}
			return
		}

		addr := net.JoinHostPort(u.config.Host, u.config.Port)
		sshConn, err := ssh.Dial("tcp", addr, config)
		if err != nil {
			resultChan <- connResult{nil, errors.New(err).
				Component("export").
				Category(errors.CategoryNetwork).
				Context("operation", "sftp_dial").
				Context("host", u.config.Host).
				Build()}
			return
		}

		client, err := sftp.NewClient(sshConn)
		if err != nil {
			_ = sshConn.Close()
			resultChan <- connResult{nil, errors.New(err).
				Component("export").
				Category(errors.CategoryExport).
				Context("operation", "sftp_session").
				Build()}
			return
		}

		resultChan <- connResult{&sftpSession{ssh: sshConn, client: client}, nil}
	}()

	select {
	case <-ctx.Done():
		return nil, errors.New(ctx.Err()).
			Component("export").
			Category(errors.CategoryCancellation).
			Context("operation", "sftp_connect").
			Build()
	case result := <-resultChan:
		return result.session, result.err
	}
}

// atomicUpload writes the file under a temporary name and renames it into
// place once the transfer is complete.
func (u *sftpUploader) atomicUpload(ctx context.Context, client *sftp.Client, localPath, remotePath string) error {
	file, err := os.Open(localPath) //nolint:gosec // G304: localPath comes from the artifact directory managed by this process
	if err != nil {
		return errors.New(err).
			Component("export").
			Category(errors.CategoryFileIO).
			Context("operation", "sftp_open_local").
			Build()
	}
	defer func() {
		if err := file.Close(); err != nil {
			u.log.Warn("Failed to close local file", "path", localPath, "error", err)
		}
	}()

	tempName := path.Join(path.Dir(remotePath),
		fmt.Sprintf("%s%d-%s", tempFilePrefix, time.Now().UnixNano(), path.Base(remotePath)))

	dstFile, err := client.Create(tempName)
	if err != nil {
		return errors.New(err).
			Component("export").
			Category(errors.CategoryExport).
			Context("operation", "sftp_create").
			Context("remote_path", tempName).
			Build()
	}

	if _, err := io.Copy(dstFile, file); err != nil {
		_ = dstFile.Close()
		_ = client.Remove(tempName)
		return errors.New(err).
			Component("export").
			Category(errors.CategoryExport).
			Context("operation", "sftp_write").
			Context("remote_path", tempName).
			Build()
	}
	if err := dstFile.Close(); err != nil {
		_ = client.Remove(tempName)
		return errors.New(err).
			Component("export").
			Category(errors.CategoryExport).
			Context("operation", "sftp_close").
			Context("remote_path", tempName).
			Build()
	}

	if err := ctx.Err(); err != nil {
		_ = client.Remove(tempName)
		return errors.New(err).
			Component("export").
			Category(errors.CategoryCancellation).
			Context("operation", "sftp_upload").
			Build()
	}

	if err := client.Rename(tempName, remotePath); err != nil {
		_ = client.Remove(tempName)
		return errors.New(err).
			Component("export").
			Category(errors.CategoryExport).
			Context("operation", "sftp_rename").
			Context("remote_path", remotePath).
			Build()
	}

	return nil
}

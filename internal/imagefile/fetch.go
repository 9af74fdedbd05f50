package imagefile

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/tphakala/fruitcount-go/internal/errors"
)

// contentTypeExtensions maps image content types to staged file extensions
// for URLs whose path carries no usable extension.
var contentTypeExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/jpg":  ".jpg",
	"image/png":  ".png",
}

// Fetch downloads a remote image into a staged file. Downloads share the
// manager's rate limiter and are capped at the configured maximum response
// size. The returned StagedFile still has to pass Validate.
func (m *Manager) Fetch(ctx context.Context, rawURL string) (*StagedFile, error) {
	if !m.settings.Fetch.Enabled {
		return nil, errors.Newf("remote image fetch is disabled").
			Category(errors.CategoryImageFetch).
			Build()
	}

	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return nil, errors.Newf("invalid image URL %q", rawURL).
			Category(errors.CategoryImageFetch).
			Context("operation", "parse_url").
			Build()
	}

	if err := m.limiter.Wait(ctx); err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryImageFetch).
			Context("operation", "rate_limiter_wait").
			Build()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryImageFetch).
			Context("operation", "build_request").
			Build()
	}
	req.Header.Set("User-Agent", buildUserAgent(m.settings.Version))

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryImageFetch).
			Context("operation", "http_get").
			Context("url", rawURL).
			Build()
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			m.log.Warn("Failed to close fetch response body", "url", rawURL, "error", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf("remote server returned status %d", resp.StatusCode).
			Category(errors.CategoryImageFetch).
			Context("url", rawURL).
			Context("status_code", resp.StatusCode).
			Build()
	}

	maxBytes := m.settings.Fetch.MaxBytes
	if resp.ContentLength > maxBytes {
		return nil, errors.Newf("remote image too large: %d bytes, limit is %d", resp.ContentLength, maxBytes).
			Category(errors.CategoryImageFetch).
			Context("url", rawURL).
			Build()
	}

	name := remoteFilename(parsed, resp.Header.Get("Content-Type"))
	sf, err := m.Stage(io.LimitReader(resp.Body, maxBytes+1), name)
	if err != nil {
		return nil, err
	}

	if sf.Size > maxBytes {
		if cleanupErr := sf.Cleanup(); cleanupErr != nil {
			m.log.Warn("Failed to clean up oversized fetch", "path", sf.Path, "error", cleanupErr)
		}
		return nil, errors.Newf("remote image too large: limit is %d bytes", maxBytes).
			Category(errors.CategoryImageFetch).
			Context("url", rawURL).
			Build()
	}

	m.log.Debug("Fetched remote image", "url", rawURL, "staged", sf.Path, "size", sf.Size)
	return sf, nil
}

// remoteFilename derives a staging filename from the URL path, falling back
// to the response content type when the path has no usable extension.
func remoteFilename(parsed *url.URL, contentType string) string {
	base := path.Base(parsed.Path)
	if base == "." || base == "/" || base == "" {
		base = "remote"
	}

	if ext := path.Ext(base); ext != "" {
		return base
	}

	mediaType := contentType
	if idx := strings.Index(mediaType, ";"); idx >= 0 {
		mediaType = mediaType[:idx]
	}
	if ext, ok := contentTypeExtensions[strings.ToLower(strings.TrimSpace(mediaType))]; ok {
		return base + ext
	}
	return base
}

// buildUserAgent returns the User-Agent header for outgoing fetches.
func buildUserAgent(version string) string {
	if version == "" {
		version = "dev"
	}
	return fmt.Sprintf("FruitCount-Go/%s (+https://github.com/tphakala/fruitcount-go)", version)
}

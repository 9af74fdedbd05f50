// internal/api/v2/artifacts.go
package api

import (
	"os"
	"path/filepath"
	"regexp"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/fruitcount-go/internal/errors"
)

// safeFilenamePattern restricts artifact names to a conservative character
// set. Artifact references are always bare file names rendered by this
// process, anything else is a traversal attempt.
var safeFilenamePattern = regexp.MustCompile(`^[a-zA-Z0-9_\-.]+$`)

// initArtifactRoutes registers the annotated image endpoint.
func (c *Controller) initArtifactRoutes() {
	c.Group.GET("/artifacts/:filename", c.ServeArtifact)
}

// ServeArtifact handles GET /api/v2/artifacts/:filename, serving the
// annotated image a stored output_reference points at.
func (c *Controller) ServeArtifact(ctx echo.Context) error {
	filename := ctx.Param("filename")
	if err := validateArtifactName(filename); err != nil {
		return c.HandleError(ctx, err, "Invalid artifact name")
	}

	fullPath := filepath.Join(c.Settings.Artifacts.Path, filename)
	if _, err := os.Stat(fullPath); err != nil {
		if os.IsNotExist(err) {
			enhanced := errors.Newf("artifact %s not found", filename).
				Component("api").
				Category(errors.CategoryNotFound).
				Context("operation", "serve_artifact").
				Build()
			return c.HandleError(ctx, enhanced, "Artifact not found")
		}
		enhanced := errors.New(err).
			Component("api").
			Category(errors.CategoryFileIO).
			Context("operation", "serve_artifact").
			Build()
		return c.HandleError(ctx, enhanced, "Failed to read artifact")
	}

	return ctx.File(fullPath)
}

// validateArtifactName rejects empty, path-qualified and unsafe names.
func validateArtifactName(filename string) error {
	if filename == "" {
		return errors.Newf("artifact name is required").
			Component("api").
			Category(errors.CategoryValidation).
			Build()
	}
	if filename != filepath.Base(filename) || !safeFilenamePattern.MatchString(filename) {
		return errors.Newf("invalid artifact name").
			Component("api").
			Category(errors.CategoryValidation).
			Context("filename", filename).
			Build()
	}
	return nil
}

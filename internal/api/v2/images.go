// internal/api/v2/images.go
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/fruitcount-go/internal/errors"
	"github.com/tphakala/fruitcount-go/internal/pipeline"
)

// uploadFieldName is the multipart form field carrying the image bytes.
const uploadFieldName = "image"

// initImageRoutes registers the image analysis endpoints.
func (c *Controller) initImageRoutes() {
	c.Group.POST("/images", c.UploadImage)
	c.Group.POST("/images/url", c.AnalyzeURL)
}

// urlAnalysisRequest is the POST /images/url body.
type urlAnalysisRequest struct {
	URL string `json:"url"`
}

// UploadImage handles POST /api/v2/images. The image arrives as a
// multipart upload in the "image" field and the completed result
// descriptor is returned as JSON.
func (c *Controller) UploadImage(ctx echo.Context) error {
	if c.Pipeline == nil {
		return c.HandleError(ctx, processingUnavailableError(), "Image processing is not available")
	}

	file, err := ctx.FormFile(uploadFieldName)
	if err != nil {
		enhanced := errors.New(err).
			Component("api").
			Category(errors.CategoryValidation).
			Context("operation", "upload_image").
			Context("field", uploadFieldName).
			Build()
		return c.HandleError(ctx, enhanced, "Request is missing an image upload")
	}

	src, err := file.Open()
	if err != nil {
		enhanced := errors.New(err).
			Component("api").
			Category(errors.CategoryValidation).
			Context("operation", "upload_image").
			Build()
		return c.HandleError(ctx, enhanced, "Failed to read image upload")
	}
	defer func() {
		if err := src.Close(); err != nil {
			c.Debug("Failed to close upload stream: %v", err)
		}
	}()

	result, err := c.Pipeline.Process(ctx.Request().Context(), &pipeline.Upload{
		Reader:   src,
		Filename: file.Filename,
		Source:   pipeline.SourceUpload,
	})
	c.recordUploadOutcome(err, file.Size)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to process image")
	}

	c.invalidateDashboard()

	return ctx.JSON(http.StatusOK, result)
}

// AnalyzeURL handles POST /api/v2/images/url. The remote image is fetched,
// analyzed and persisted exactly like a direct upload.
func (c *Controller) AnalyzeURL(ctx echo.Context) error {
	if c.Pipeline == nil {
		return c.HandleError(ctx, processingUnavailableError(), "Image processing is not available")
	}

	var req urlAnalysisRequest
	if err := ctx.Bind(&req); err != nil {
		enhanced := errors.New(err).
			Component("api").
			Category(errors.CategoryValidation).
			Context("operation", "analyze_url").
			Build()
		return c.HandleError(ctx, enhanced, "Invalid request body")
	}
	if req.URL == "" {
		enhanced := errors.Newf("url is required").
			Component("api").
			Category(errors.CategoryValidation).
			Context("operation", "analyze_url").
			Build()
		return c.HandleError(ctx, enhanced, "Request is missing the image URL")
	}

	result, err := c.Pipeline.ProcessURL(ctx.Request().Context(), req.URL)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to analyze image URL")
	}

	c.invalidateDashboard()

	return ctx.JSON(http.StatusOK, result)
}

// recordUploadOutcome feeds the upload size metric with the request
// outcome, mirroring the state labels the pipeline reports.
func (c *Controller) recordUploadOutcome(err error, size int64) {
	if c.metrics == nil || c.metrics.HTTP == nil {
		return
	}

	status := pipeline.StateCompleted
	switch {
	case err == nil:
	case errors.IsCategory(err, errors.CategoryValidation),
		errors.IsCategory(err, errors.CategoryImageDecode):
		status = pipeline.StateRejected
	default:
		status = pipeline.StateFailed
	}

	c.metrics.HTTP.RecordUploadSize(status, size)
}

func processingUnavailableError() error {
	return errors.Newf("processing pipeline is not initialized").
		Component("api").
		Category(errors.CategorySystem).
		Build()
}

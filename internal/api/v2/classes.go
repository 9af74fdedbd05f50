// internal/api/v2/classes.go
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/fruitcount-go/internal/detector"
	"github.com/tphakala/fruitcount-go/internal/errors"
)

// classesResponse describes the configured class allow-list and how it
// resolved against the loaded label table.
type classesResponse struct {
	Model      string               `json:"model"`
	LabelCount int                  `json:"label_count"`
	Classes    []detector.ClassInfo `json:"classes"`
}

// initClassRoutes registers the class inspection endpoint.
func (c *Controller) initClassRoutes() {
	c.Group.GET("/classes", c.GetClasses)
}

// GetClasses handles GET /api/v2/classes. Classes that did not match any
// label are reported with a -1 index so operators can spot configuration
// typos without reading detector logs.
func (c *Controller) GetClasses(ctx echo.Context) error {
	if c.Classes == nil {
		err := errors.Newf("detector is not initialized").
			Component("api").
			Category(errors.CategorySystem).
			Build()
		return c.HandleError(ctx, err, "Class resolution is not available")
	}

	return ctx.JSON(http.StatusOK, classesResponse{
		Model:      c.Settings.Detector.ModelName,
		LabelCount: len(c.Classes.Labels()),
		Classes:    c.Classes.ResolveClasses(),
	})
}

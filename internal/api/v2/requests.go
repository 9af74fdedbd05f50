// internal/api/v2/requests.go
package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/fruitcount-go/internal/datastore"
	"github.com/tphakala/fruitcount-go/internal/errors"
)

// PaginatedResponse wraps list results with pagination metadata.
type PaginatedResponse struct {
	Data        any   `json:"data"`
	Total       int64 `json:"total"`
	Limit       int   `json:"limit"`
	Offset      int   `json:"offset"`
	CurrentPage int   `json:"current_page"`
	TotalPages  int   `json:"total_pages"`
}

// initRequestRoutes registers the request history endpoints.
func (c *Controller) initRequestRoutes() {
	c.Group.GET("/requests", c.GetRequests)
	c.Group.GET("/requests/recent", c.GetRecentRequests)
	c.Group.GET("/requests/:id", c.GetRequest)
}

// GetRequests handles GET /api/v2/requests. History is returned newest
// first, one page per call, optionally filtered by model name.
func (c *Controller) GetRequests(ctx echo.Context) error {
	limit := queryInt(ctx, "limit", datastore.DefaultSearchLimit)
	if limit <= 0 {
		limit = datastore.DefaultSearchLimit
	}
	if limit > datastore.MaxSearchLimit {
		limit = datastore.MaxSearchLimit
	}

	offset := queryInt(ctx, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	filters := &datastore.SearchFilters{
		ModelName: ctx.QueryParam("model"),
		Limit:     limit,
		Offset:    offset,
	}

	reqCtx := ctx.Request().Context()

	requests, err := c.DS.SearchRequests(reqCtx, filters)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to search request history")
	}

	total, err := c.DS.CountRequests(reqCtx, filters)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to count request history")
	}

	currentPage := (offset / limit) + 1
	totalPages := int((total + int64(limit) - 1) / int64(limit))

	return ctx.JSON(http.StatusOK, PaginatedResponse{
		Data:        requests,
		Total:       total,
		Limit:       limit,
		Offset:      offset,
		CurrentPage: currentPage,
		TotalPages:  totalPages,
	})
}

// GetRecentRequests handles GET /api/v2/requests/recent
func (c *Controller) GetRecentRequests(ctx echo.Context) error {
	limit := queryInt(ctx, "limit", datastore.DefaultRecentLimit)
	if limit > datastore.MaxSearchLimit {
		limit = datastore.MaxSearchLimit
	}

	requests, err := c.DS.GetRecent(ctx.Request().Context(), limit)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to get recent requests")
	}

	return ctx.JSON(http.StatusOK, requests)
}

// GetRequest handles GET /api/v2/requests/:id
func (c *Controller) GetRequest(ctx echo.Context) error {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil {
		enhanced := errors.New(err).
			Component("api").
			Category(errors.CategoryValidation).
			Context("operation", "get_request").
			Context("id", ctx.Param("id")).
			Build()
		return c.HandleError(ctx, enhanced, "Invalid request ID")
	}

	request, err := c.DS.GetRequest(ctx.Request().Context(), uint(id))
	if err != nil {
		return c.HandleError(ctx, err, "Failed to get request")
	}

	return ctx.JSON(http.StatusOK, request)
}

// queryInt reads an integer query parameter, returning fallback when the
// parameter is absent or malformed.
func queryInt(ctx echo.Context, name string, fallback int) int {
	raw := ctx.QueryParam(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

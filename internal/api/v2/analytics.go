// internal/api/v2/analytics.go
package api

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/patrickmn/go-cache"

	"github.com/tphakala/fruitcount-go/internal/analytics"
)

// initAnalyticsRoutes registers the analytics endpoints.
func (c *Controller) initAnalyticsRoutes() {
	c.Group.GET("/analytics/summary", c.GetAnalyticsSummary)
	c.Group.GET("/analytics/classes", c.GetClassTotals)
	c.Group.GET("/analytics/dashboard", c.GetDashboard)
}

// GetAnalyticsSummary handles GET /api/v2/analytics/summary
func (c *Controller) GetAnalyticsSummary(ctx echo.Context) error {
	summary, err := c.DS.Summary(ctx.Request().Context())
	if err != nil {
		return c.HandleError(ctx, err, "Failed to compute summary statistics")
	}

	return ctx.JSON(http.StatusOK, summary)
}

// GetClassTotals handles GET /api/v2/analytics/classes
func (c *Controller) GetClassTotals(ctx echo.Context) error {
	totals, err := c.DS.ClassTotals(ctx.Request().Context())
	if err != nil {
		return c.HandleError(ctx, err, "Failed to compute per-class totals")
	}

	return ctx.JSON(http.StatusOK, totals)
}

// GetDashboard handles GET /api/v2/analytics/dashboard. Snapshots are
// cached briefly and invalidated when an upload completes, so dashboard
// polling does not turn into three aggregate queries per refresh.
func (c *Controller) GetDashboard(ctx echo.Context) error {
	limit := queryInt(ctx, "recent", analytics.DefaultRecentLimit)

	cacheKey := fmt.Sprintf("dashboard:%d", limit)
	if cached, found := c.dashboardCache.Get(cacheKey); found {
		if dash, ok := cached.(*analytics.Dashboard); ok {
			return ctx.JSON(http.StatusOK, dash)
		}
	}

	dash, err := analytics.Snapshot(ctx.Request().Context(), c.DS, limit)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to build dashboard snapshot")
	}

	c.dashboardCache.Set(cacheKey, dash, cache.DefaultExpiration)

	return ctx.JSON(http.StatusOK, dash)
}

// invalidateDashboard drops every cached dashboard snapshot. Called after
// a request completes so the next poll reflects it.
func (c *Controller) invalidateDashboard() {
	if c.dashboardCache != nil {
		c.dashboardCache.Flush()
	}
}

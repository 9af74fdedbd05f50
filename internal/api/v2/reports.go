// internal/api/v2/reports.go
package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/fruitcount-go/internal/analytics"
	"github.com/tphakala/fruitcount-go/internal/report"
)

// initReportRoutes registers the report export endpoint.
func (c *Controller) initReportRoutes() {
	c.Group.GET("/reports/export", c.ExportReport)
}

// ExportReport handles GET /api/v2/reports/export. The report is rendered
// from one dashboard snapshot and offered as a download in the requested
// format, text by default.
func (c *Controller) ExportReport(ctx echo.Context) error {
	format := strings.ToLower(ctx.QueryParam("format"))
	if format == "" {
		format = report.FormatText
	}
	limit := queryInt(ctx, "recent", analytics.DefaultRecentLimit)

	dash, err := analytics.Snapshot(ctx.Request().Context(), c.DS, limit)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to build report data")
	}

	var buf bytes.Buffer
	if err := report.Write(&buf, format, dash); err != nil {
		return c.HandleError(ctx, err, "Failed to render report")
	}

	contentType := "text/plain; charset=utf-8"
	filename := "fruitcount-report.txt"
	if format == report.FormatCSV {
		contentType = "text/csv; charset=utf-8"
		filename = "fruitcount-report.csv"
	}

	ctx.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=%q", filename))

	return ctx.Blob(http.StatusOK, contentType, buf.Bytes())
}

package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportReportCSV(t *testing.T) {
	t.Parallel()

	settings := testSettings(t)
	c, ds := newTestController(t, settings, &stubDetector{result: countingResult(nil)})

	seedRequest(t, ds, "a.jpg", "yolov8n", map[string]int{"apple": 2})
	seedRequest(t, ds, "b.jpg", "yolov8n", map[string]int{"banana": 1})

	req := httptest.NewRequest(http.MethodGet, "/api/v2/reports/export?format=csv", nil)
	rec := invoke(t, c, req, c.ExportReport)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Contains(t, rec.Header().Get(echo.HeaderContentType), "text/csv")
	assert.Equal(t, `attachment; filename="fruitcount-report.csv"`,
		rec.Header().Get(echo.HeaderContentDisposition))

	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.NotEmpty(t, lines)
	assert.Equal(t, "Total Requests,Total Fruits,Avg Per Request", strings.TrimSpace(lines[0]))
}

func TestExportReportTextIsDefault(t *testing.T) {
	t.Parallel()

	settings := testSettings(t)
	c, ds := newTestController(t, settings, &stubDetector{result: countingResult(nil)})

	seedRequest(t, ds, "a.jpg", "yolov8n", map[string]int{"apple": 2})

	req := httptest.NewRequest(http.MethodGet, "/api/v2/reports/export", nil)
	rec := invoke(t, c, req, c.ExportReport)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Contains(t, rec.Header().Get(echo.HeaderContentType), "text/plain")
	assert.Equal(t, `attachment; filename="fruitcount-report.txt"`,
		rec.Header().Get(echo.HeaderContentDisposition))
	assert.Contains(t, rec.Body.String(), "Fruit Counting Report")
}

func TestExportReportUnknownFormat(t *testing.T) {
	t.Parallel()

	settings := testSettings(t)
	c, _ := newTestController(t, settings, &stubDetector{result: countingResult(nil)})

	req := httptest.NewRequest(http.MethodGet, "/api/v2/reports/export?format=xml", nil)
	rec := invoke(t, c, req, c.ExportReport)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var errResp ErrorResponse
	require.NoError(t, jsonDecode(rec, &errResp))
	assert.Equal(t, http.StatusBadRequest, errResp.Code)
}

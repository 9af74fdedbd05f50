package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/fruitcount-go/internal/analytics"
	"github.com/tphakala/fruitcount-go/internal/datastore"
)

func TestGetAnalyticsSummary(t *testing.T) {
	t.Parallel()

	settings := testSettings(t)
	c, ds := newTestController(t, settings, &stubDetector{result: countingResult(nil)})

	seedRequest(t, ds, "a.jpg", "yolov8n", map[string]int{"apple": 2})
	seedRequest(t, ds, "b.jpg", "yolov8n", map[string]int{"banana": 4})

	req := httptest.NewRequest(http.MethodGet, "/api/v2/analytics/summary", nil)
	rec := invoke(t, c, req, c.GetAnalyticsSummary)
	require.Equal(t, http.StatusOK, rec.Code)

	var summary datastore.Summary
	require.NoError(t, jsonDecode(rec, &summary))
	assert.Equal(t, int64(2), summary.TotalRequests)
	assert.Equal(t, int64(6), summary.TotalFruits)
	assert.InDelta(t, 3.0, summary.AvgPerRequest, 0.001)
}

func TestGetClassTotals(t *testing.T) {
	t.Parallel()

	settings := testSettings(t)
	c, ds := newTestController(t, settings, &stubDetector{result: countingResult(nil)})

	seedRequest(t, ds, "a.jpg", "yolov8n", map[string]int{"apple": 2, "banana": 1})
	seedRequest(t, ds, "b.jpg", "yolov8n", map[string]int{"apple": 3})

	req := httptest.NewRequest(http.MethodGet, "/api/v2/analytics/classes", nil)
	rec := invoke(t, c, req, c.GetClassTotals)
	require.Equal(t, http.StatusOK, rec.Code)

	var totals map[string]int
	require.NoError(t, jsonDecode(rec, &totals))
	assert.Equal(t, map[string]int{"apple": 5, "banana": 1}, totals)
}

func TestGetDashboard(t *testing.T) {
	t.Parallel()

	settings := testSettings(t)
	c, ds := newTestController(t, settings, &stubDetector{result: countingResult(nil)})

	seedRequest(t, ds, "a.jpg", "yolov8n", map[string]int{"apple": 2})

	req := httptest.NewRequest(http.MethodGet, "/api/v2/analytics/dashboard", nil)
	rec := invoke(t, c, req, c.GetDashboard)
	require.Equal(t, http.StatusOK, rec.Code)

	var dash analytics.Dashboard
	require.NoError(t, jsonDecode(rec, &dash))
	assert.Equal(t, int64(1), dash.Summary.TotalRequests)
	assert.Equal(t, map[string]int{"apple": 2}, dash.CountsByClass)
	require.Len(t, dash.Recent, 1)
	assert.Equal(t, "a.jpg", dash.Recent[0].Filename)
}

func TestGetDashboardServesCachedSnapshot(t *testing.T) {
	t.Parallel()

	settings := testSettings(t)
	c, ds := newTestController(t, settings, &stubDetector{result: countingResult(nil)})

	seedRequest(t, ds, "a.jpg", "yolov8n", map[string]int{"apple": 2})

	req := httptest.NewRequest(http.MethodGet, "/api/v2/analytics/dashboard", nil)
	rec := invoke(t, c, req, c.GetDashboard)
	require.Equal(t, http.StatusOK, rec.Code)

	// A record written behind the cache must not show up yet.
	seedRequest(t, ds, "b.jpg", "yolov8n", map[string]int{"apple": 1})

	rec = invoke(t, c, req, c.GetDashboard)
	var dash analytics.Dashboard
	require.NoError(t, jsonDecode(rec, &dash))
	assert.Equal(t, int64(1), dash.Summary.TotalRequests, "snapshot should come from the cache")

	// Invalidation is what the upload path runs after persisting.
	c.invalidateDashboard()

	rec = invoke(t, c, req, c.GetDashboard)
	require.NoError(t, jsonDecode(rec, &dash))
	assert.Equal(t, int64(2), dash.Summary.TotalRequests, "invalidation should expose the new record")
}

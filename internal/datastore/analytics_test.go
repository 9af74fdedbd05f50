package datastore

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tphakala/fruitcount-go/internal/observability/metrics"
)

func TestSummaryAndClassTotals(t *testing.T) {
	t.Parallel()

	settings := createTestSettings(t)
	ds := createDatabase(t, settings)
	ctx := context.Background()

	// Three processed images: two apples, then a mixed basket, then an
	// image with nothing detected.
	saveRequest(t, ds, "apples.jpg", "yolov8n", map[string]int{"apple": 2})
	saveRequest(t, ds, "mixed.jpg", "yolov8n", map[string]int{"banana": 1, "apple": 1})
	saveRequest(t, ds, "empty.jpg", "yolov8n", map[string]int{})

	summary, err := ds.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), summary.TotalRequests)
	assert.Equal(t, int64(3), summary.TotalFruits)
	assert.InDelta(t, 1.0, summary.AvgPerRequest, 1e-9)

	totals, err := ds.ClassTotals(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"apple": 3, "banana": 1}, totals)
}

func TestSummaryEmptyHistory(t *testing.T) {
	t.Parallel()

	settings := createTestSettings(t)
	ds := createDatabase(t, settings)

	summary, err := ds.Summary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), summary.TotalRequests)
	assert.Equal(t, int64(0), summary.TotalFruits)
	assert.Equal(t, 0.0, summary.AvgPerRequest, "empty history must yield exactly zero")
}

func TestClassTotalsEmptyHistory(t *testing.T) {
	t.Parallel()

	settings := createTestSettings(t)
	ds := createDatabase(t, settings)

	totals, err := ds.ClassTotals(context.Background())
	require.NoError(t, err)
	require.NotNil(t, totals)
	assert.Empty(t, totals)
}

// insertRawCounts writes a row directly, bypassing Save validation, so
// tests can plant malformed or NULL counts values.
func insertRawCounts(t *testing.T, ds Interface, filename string, counts any) {
	t.Helper()

	sqliteStore, ok := ds.(*SQLiteStore)
	require.True(t, ok, "Interface must be *SQLiteStore for this test")

	err := sqliteStore.DB.Exec(
		"INSERT INTO requests (filename, output_reference, counts, total_count, model_name, created_at, processing_ms) VALUES (?, ?, ?, ?, ?, ?, ?)",
		filename, "", counts, 0, "yolov8n", time.Now(), 5,
	).Error
	require.NoError(t, err, "Failed to insert raw row")
}

func TestClassTotalsSkipsMalformedCounts(t *testing.T) {
	t.Parallel()

	settings := createTestSettings(t)

	registry := prometheus.NewRegistry()
	dbMetrics, err := metrics.NewDatastoreMetrics(registry)
	require.NoError(t, err)

	tempDir := t.TempDir()
	settings.Output.SQLite.Enabled = true
	settings.Output.SQLite.Path = tempDir + "/test.db"
	ds := New(settings, dbMetrics)
	require.NoError(t, ds.Open())
	t.Cleanup(func() { assert.NoError(t, ds.Close()) })

	saveRequest(t, ds, "good.jpg", "yolov8n", map[string]int{"apple": 2})
	insertRawCounts(t, ds, "corrupt.jpg", "{not json")
	saveRequest(t, ds, "more.jpg", "yolov8n", map[string]int{"apple": 1, "orange": 4})

	totals, err := ds.ClassTotals(context.Background())
	require.NoError(t, err, "one bad record must not abort aggregation")
	assert.Equal(t, map[string]int{"apple": 3, "orange": 4}, totals)

	assert.Equal(t, 1.0, gatherCounterValue(t, registry, "datastore_malformed_counts_total"))
}

func TestClassTotalsToleratesNullCounts(t *testing.T) {
	t.Parallel()

	settings := createTestSettings(t)
	ds := createDatabase(t, settings)

	saveRequest(t, ds, "good.jpg", "yolov8n", map[string]int{"banana": 2})
	insertRawCounts(t, ds, "legacy.jpg", nil)

	totals, err := ds.ClassTotals(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"banana": 2}, totals)
}

// gatherCounterValue sums a counter family across all label combinations.
func gatherCounterValue(t *testing.T, registry *prometheus.Registry, name string) float64 {
	t.Helper()

	families, err := registry.Gather()
	require.NoError(t, err)

	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		var total float64
		for _, metric := range family.GetMetric() {
			total += metric.GetCounter().GetValue()
		}
		return total
	}
	return 0
}

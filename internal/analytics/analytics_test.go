package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tphakala/fruitcount-go/internal/conf"
	"github.com/tphakala/fruitcount-go/internal/datastore"
	"github.com/tphakala/fruitcount-go/internal/errors"
	"gorm.io/datatypes"
)

func openTestStore(t *testing.T) datastore.Interface {
	t.Helper()

	settings := &conf.Settings{}
	settings.Output.SQLite.Enabled = true
	settings.Output.SQLite.Path = t.TempDir() + "/test.db"

	ds := datastore.New(settings, nil)
	require.NotNil(t, ds)
	require.NoError(t, ds.Open())
	t.Cleanup(func() { assert.NoError(t, ds.Close()) })
	return ds
}

func saveCounts(t *testing.T, ds datastore.Interface, filename string, counts map[string]int) {
	t.Helper()

	jsonCounts := datatypes.JSONMap{}
	total := 0
	for class, count := range counts {
		jsonCounts[class] = count
		total += count
	}
	require.NoError(t, ds.Save(context.Background(), &datastore.Request{
		Filename:   filename,
		Counts:     jsonCounts,
		TotalCount: total,
		ModelName:  "yolov8n",
		CreatedAt:  time.Now(),
	}))
}

func TestSnapshotComposesAggregates(t *testing.T) {
	t.Parallel()

	ds := openTestStore(t)
	saveCounts(t, ds, "apples.jpg", map[string]int{"apple": 2})
	saveCounts(t, ds, "mixed.jpg", map[string]int{"apple": 1, "banana": 1})
	saveCounts(t, ds, "empty.jpg", map[string]int{})

	dashboard, err := Snapshot(context.Background(), ds, 2)
	require.NoError(t, err)

	assert.Equal(t, int64(3), dashboard.Summary.TotalRequests)
	assert.Equal(t, int64(3), dashboard.Summary.TotalFruits)
	assert.InDelta(t, 1.0, dashboard.Summary.AvgPerRequest, 1e-9)
	assert.Equal(t, map[string]int{"apple": 3, "banana": 1}, dashboard.CountsByClass)

	require.Len(t, dashboard.Recent, 2, "recent window must honor the limit")
	assert.Equal(t, "empty.jpg", dashboard.Recent[0].Filename)
	assert.Equal(t, "mixed.jpg", dashboard.Recent[1].Filename)
}

func TestSnapshotDefaultLimit(t *testing.T) {
	t.Parallel()

	ds := openTestStore(t)
	for range DefaultRecentLimit + 3 {
		saveCounts(t, ds, "basket.jpg", map[string]int{"orange": 1})
	}

	dashboard, err := Snapshot(context.Background(), ds, 0)
	require.NoError(t, err)
	assert.Len(t, dashboard.Recent, DefaultRecentLimit)
}

func TestSnapshotEmptyHistory(t *testing.T) {
	t.Parallel()

	ds := openTestStore(t)

	dashboard, err := Snapshot(context.Background(), ds, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(0), dashboard.Summary.TotalRequests)
	assert.Equal(t, 0.0, dashboard.Summary.AvgPerRequest)
	assert.Empty(t, dashboard.CountsByClass)
	assert.Empty(t, dashboard.Recent)
}

// failingStore returns a store error from a chosen aggregate.
type failingStore struct {
	datastore.Interface
	failSummary bool
}

func (f *failingStore) Summary(ctx context.Context) (datastore.Summary, error) {
	if f.failSummary {
		return datastore.Summary{}, errors.Newf("summary unavailable").
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}
	return f.Interface.Summary(ctx)
}

func TestSnapshotWrapsStoreErrors(t *testing.T) {
	t.Parallel()

	ds := openTestStore(t)
	broken := &failingStore{Interface: ds, failSummary: true}

	_, err := Snapshot(context.Background(), broken, 10)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryAggregation),
		"expected aggregation category, got: %v", err)
}

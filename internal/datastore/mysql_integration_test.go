// mysql_integration_test.go: integration tests against a real MySQL server.
//
// These tests start a disposable MySQL container and are skipped unless
// FRUITCOUNT_TEST_MYSQL is set, so the default test run needs no Docker.
package datastore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tphakala/fruitcount-go/internal/conf"
	tcmysql "github.com/testcontainers/testcontainers-go/modules/mysql"
	"gorm.io/datatypes"
)

func TestMySQLStoreIntegration(t *testing.T) {
	if os.Getenv("FRUITCOUNT_TEST_MYSQL") == "" {
		t.Skip("set FRUITCOUNT_TEST_MYSQL=1 to run MySQL integration tests")
	}

	ctx := context.Background()

	container, err := tcmysql.Run(ctx, "mysql:8.0",
		tcmysql.WithDatabase("fruitcount"),
		tcmysql.WithUsername("fruitcount"),
		tcmysql.WithPassword("fruitcount"),
	)
	require.NoError(t, err, "Failed to start MySQL container")
	t.Cleanup(func() {
		assert.NoError(t, container.Terminate(ctx), "Failed to terminate MySQL container")
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "3306")
	require.NoError(t, err)

	settings := createTestSettings(t)
	settings.Output.MySQL.Enabled = true
	settings.Output.MySQL.Host = host
	settings.Output.MySQL.Port = port.Port()
	settings.Output.MySQL.Database = "fruitcount"
	settings.Output.MySQL.Username = "fruitcount"
	settings.Output.MySQL.Password = "fruitcount"

	ds := New(settings, nil)
	require.NotNil(t, ds)
	_, ok := ds.(*MySQLStore)
	require.True(t, ok, "expected MySQL store")

	require.NoError(t, ds.Open(), "Failed to open MySQL database")
	t.Cleanup(func() {
		assert.NoError(t, ds.Close(), "Failed to close MySQL store")
	})

	t.Run("save and read back", func(t *testing.T) {
		request := &Request{
			Filename:     "basket.jpg",
			Counts:       datatypes.JSONMap{"apple": 2, "orange": 1},
			TotalCount:   3,
			ModelName:    "yolov8n",
			CreatedAt:    time.Now(),
			ProcessingMs: 37,
		}
		require.NoError(t, ds.Save(ctx, request))
		require.NotZero(t, request.ID)

		stored, err := ds.GetRequest(ctx, request.ID)
		require.NoError(t, err)
		assert.Equal(t, "basket.jpg", stored.Filename)

		counts, err := stored.CountsAsInts()
		require.NoError(t, err)
		assert.Equal(t, map[string]int{"apple": 2, "orange": 1}, counts)
	})

	t.Run("aggregates", func(t *testing.T) {
		saveRequest(t, ds, "more.jpg", "yolov8n", map[string]int{"banana": 2})

		summary, err := ds.Summary(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), summary.TotalRequests)
		assert.Equal(t, int64(5), summary.TotalFruits)

		totals, err := ds.ClassTotals(ctx)
		require.NoError(t, err)
		assert.Equal(t, map[string]int{"apple": 2, "orange": 1, "banana": 2}, totals)
	})

	t.Run("recency ordering", func(t *testing.T) {
		recent, err := ds.GetRecent(ctx, 2)
		require.NoError(t, err)
		require.Len(t, recent, 2)
		assert.Greater(t, recent[0].ID, recent[1].ID)
	})
}

package datastore

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

// TestConcurrentSavesAssignDistinctIDs verifies that parallel inserts each
// receive their own strictly increasing id with no insert lost.
func TestConcurrentSavesAssignDistinctIDs(t *testing.T) {
	t.Parallel()

	settings := createTestSettings(t)
	ds := createDatabase(t, settings)

	const numGoroutines = 8
	const savesPerGoroutine = 10

	var (
		mu  sync.Mutex
		ids []uint
	)

	var wg sync.WaitGroup
	for worker := range numGoroutines {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for i := range savesPerGoroutine {
				request := &Request{
					Filename:     fmt.Sprintf("basket-%d-%d.jpg", worker, i),
					Counts:       datatypes.JSONMap{"apple": 1},
					TotalCount:   1,
					ModelName:    "yolov8n",
					CreatedAt:    time.Now(),
					ProcessingMs: 1,
				}
				if err := ds.Save(context.Background(), request); err != nil {
					t.Errorf("worker %d save %d failed: %v", worker, i, err)
					return
				}
				mu.Lock()
				ids = append(ids, request.ID)
				mu.Unlock()
			}
		}(worker)
	}
	wg.Wait()

	const expected = numGoroutines * savesPerGoroutine
	require.Len(t, ids, expected)

	seen := make(map[uint]struct{}, len(ids))
	for _, id := range ids {
		_, duplicate := seen[id]
		assert.False(t, duplicate, "id %d assigned twice", id)
		seen[id] = struct{}{}
	}

	summary, err := ds.Summary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(expected), summary.TotalRequests, "no insert may be lost")
}

// TestReadsDuringWrites verifies that history reads are safe while inserts
// are in flight and always observe a consistent prefix.
func TestReadsDuringWrites(t *testing.T) {
	t.Parallel()

	settings := createTestSettings(t)
	ds := createDatabase(t, settings)

	const writes = 30
	done := make(chan struct{})

	go func() {
		defer close(done)
		for i := range writes {
			request := &Request{
				Filename:     fmt.Sprintf("basket-%d.jpg", i),
				Counts:       datatypes.JSONMap{"orange": 1},
				TotalCount:   1,
				ModelName:    "yolov8n",
				CreatedAt:    time.Now(),
				ProcessingMs: 1,
			}
			if err := ds.Save(context.Background(), request); err != nil {
				t.Errorf("save %d failed: %v", i, err)
				return
			}
		}
	}()

	for {
		recent, err := ds.GetRecent(context.Background(), 5)
		require.NoError(t, err, "reads must stay safe concurrent with inserts")
		for i := 1; i < len(recent); i++ {
			assert.Greater(t, recent[i-1].ID, recent[i].ID, "ordering must hold mid-write")
		}

		select {
		case <-done:
			all, err := ds.GetAllRequests(context.Background())
			require.NoError(t, err)
			assert.Len(t, all, writes)
			return
		default:
			time.Sleep(time.Millisecond)
		}
	}
}

package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// TestNewMetricsConcurrency verifies that NewMetrics can be called concurrently
// without causing race conditions
func TestNewMetricsConcurrency(t *testing.T) {
	// Number of concurrent goroutines to test with
	const numGoroutines = 50

	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	// Start multiple goroutines that all try to create metrics concurrently
	for range numGoroutines {
		go func() {
			defer wg.Done()

			// Call NewMetrics - this should not cause a race condition
			m, err := NewMetrics()
			if err != nil {
				t.Errorf("NewMetrics failed: %v", err)
				return
			}

			// Verify metrics is not nil
			if m == nil {
				t.Error("NewMetrics returned nil")
				return
			}

			// Verify all metric fields are initialized
			if m.registry == nil {
				t.Error("metrics.registry is nil")
			}
			if m.Detector == nil {
				t.Error("metrics.Detector is nil")
			}
			if m.Pipeline == nil {
				t.Error("metrics.Pipeline is nil")
			}
			if m.Datastore == nil {
				t.Error("metrics.Datastore is nil")
			}
			if m.HTTP == nil {
				t.Error("metrics.HTTP is nil")
			}
			if m.MQTT == nil {
				t.Error("metrics.MQTT is nil")
			}
		}()
	}

	wg.Wait()
}

// TestMetricsHandler verifies that the /metrics endpoint serves the registry
// and exposes metrics recorded through the typed helpers.
func TestMetricsHandler(t *testing.T) {
	m, err := NewMetrics()
	if err != nil {
		t.Fatalf("NewMetrics failed: %v", err)
	}

	m.Detector.AddDetections("apple", 3)
	m.Detector.SetProcessTime(42.5)
	m.Pipeline.RecordRequest("upload", "completed")

	mux := http.NewServeMux()
	m.RegisterHandlers(mux)

	req := httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	body := rec.Body.String()
	for _, want := range []string{
		`detector_detections_total{class="apple"} 3`,
		"detector_process_time_milliseconds 42.5",
		`pipeline_requests_total{source="upload",state="completed"} 1`,
		"mqtt_connection_status",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

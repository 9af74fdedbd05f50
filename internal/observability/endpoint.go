package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/tphakala/fruitcount-go/internal/conf"
	"github.com/tphakala/fruitcount-go/internal/logging"
	metricspkg "github.com/tphakala/fruitcount-go/internal/observability/metrics"
)

// Endpoint serves Prometheus metrics on a dedicated listener, separate
// from the public API server.
type Endpoint struct {
	server        *http.Server
	listenAddress string
	metrics       *Metrics
	log           *slog.Logger
}

// NewEndpoint creates a new telemetry Endpoint from the provided settings
// and metrics. It returns an error if the telemetry listener is not enabled
// in the settings. The Metrics instance must be initialized before calling
// this function.
func NewEndpoint(settings *conf.Settings, m *Metrics) (*Endpoint, error) {
	if !settings.Observability.Enabled {
		return nil, fmt.Errorf("telemetry listener not enabled in settings")
	}

	return &Endpoint{
		listenAddress: settings.Observability.Listen,
		metrics:       m,
		log:           logging.ForService("telemetry"),
	}, nil
}

// Start initializes and runs the HTTP server for the telemetry endpoint.
// The server runs in its own goroutine registered on wg and shuts down
// gracefully when quitChan closes.
func (e *Endpoint) Start(wg *sync.WaitGroup, quitChan <-chan struct{}) {
	mux := http.NewServeMux()
	e.metrics.RegisterHandlers(mux)

	e.server = &http.Server{
		Addr:    e.listenAddress,
		Handler: mux,
	}

	wg.Go(func() {
		e.log.Info("Telemetry endpoint starting", "address", e.listenAddress)
		if err := e.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.log.Error("Telemetry HTTP server error", "error", err)
		}
	})

	go e.gracefulShutdown(quitChan)
}

// gracefulShutdown waits for the quit signal and shuts down the server gracefully.
func (e *Endpoint) gracefulShutdown(quitChan <-chan struct{}) {
	<-quitChan
	e.log.Info("Stopping telemetry server")
	ctx, cancel := context.WithTimeout(context.Background(), metricspkg.ShutdownTimeout)
	defer cancel()
	if err := e.server.Shutdown(ctx); err != nil {
		e.log.Error("Telemetry server shutdown error", "error", err)
	}
}

// GetMetrics returns the Metrics instance associated with this Endpoint.
func (e *Endpoint) GetMetrics() *Metrics {
	return e.metrics
}

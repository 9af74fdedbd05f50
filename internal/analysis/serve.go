package analysis

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/tphakala/fruitcount-go/internal/api"
	"github.com/tphakala/fruitcount-go/internal/conf"
	"github.com/tphakala/fruitcount-go/internal/export"
	"github.com/tphakala/fruitcount-go/internal/mqtt"
	"github.com/tphakala/fruitcount-go/internal/observability"
	"github.com/tphakala/fruitcount-go/internal/pipeline"
)

// mqttConnectTimeout bounds the initial broker handshake at startup.
const mqttConnectTimeout = 30 * time.Second

// Serve runs the counting service: HTTP API, result sinks and the optional
// metrics endpoint. It blocks until the server is interrupted.
func Serve(settings *conf.Settings) error {
	metrics, err := observability.NewMetrics()
	if err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}

	if err := initializeDetector(settings, metrics); err != nil {
		return err
	}
	defer releaseDetector()

	ds, err := openDataStore(settings, metrics)
	if err != nil {
		return err
	}
	defer closeDataStore(ds)

	pipe, err := buildPipeline(settings, ds, metrics)
	if err != nil {
		return err
	}

	mqttClient := attachSinks(settings, pipe, metrics)
	if mqttClient != nil {
		defer mqttClient.Disconnect()
	}

	server, err := api.New(settings,
		api.WithDataStore(ds),
		api.WithPipeline(pipe),
		api.WithClassResolver(det),
		api.WithMetrics(metrics),
	)
	if err != nil {
		return fmt.Errorf("failed to initialize web server: %w", err)
	}

	var wg sync.WaitGroup
	quitChan := make(chan struct{})
	if settings.Observability.Enabled {
		endpoint, err := observability.NewEndpoint(settings, metrics)
		if err != nil {
			return fmt.Errorf("failed to initialize metrics endpoint: %w", err)
		}
		endpoint.Start(&wg, quitChan)
	}

	fmt.Printf("%s %s ready, detector %s\n", settings.Main.Name, settings.Version, settings.Detector.ModelName)
	err = server.StartWithGracefulShutdown()

	close(quitChan)
	wg.Wait()
	return err
}

// attachSinks wires the optional result outputs onto the pipeline. The
// returned MQTT client is non-nil when MQTT output is active and must be
// disconnected by the caller.
func attachSinks(settings *conf.Settings, pipe *pipeline.Pipeline, metrics *observability.Metrics) mqtt.Client {
	var client mqtt.Client

	if settings.MQTT.Enabled {
		c, err := mqtt.NewClient(settings, metrics.MQTT)
		if err != nil {
			log.Printf("⚠️ MQTT output disabled: %v", err)
		} else {
			ctx, cancel := context.WithTimeout(context.Background(), mqttConnectTimeout)
			if err := c.Connect(ctx); err != nil {
				// Keep the sink attached, the client reconnects on publish.
				log.Printf("⚠️ MQTT broker not reachable: %v", err)
			}
			cancel()
			pipe.AddSink(pipeline.NewMQTTSink(c))
			client = c
		}
	}

	if settings.Export.Enabled {
		uploader, err := export.New(settings)
		if err != nil {
			log.Printf("⚠️ Export output disabled: %v", err)
		} else {
			pipe.AddSink(pipeline.NewExportSink(uploader, settings.Artifacts.Path))
		}
	}

	return client
}

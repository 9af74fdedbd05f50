// sinks.go: delivery adapters that fan completed results out to
// optional integrations.

package pipeline

import (
	"context"
	"encoding/json"
	"path/filepath"

	"github.com/tphakala/fruitcount-go/internal/errors"
	"github.com/tphakala/fruitcount-go/internal/export"
	"github.com/tphakala/fruitcount-go/internal/mqtt"
)

// MQTTSink publishes completed results as JSON to the topic configured
// on the client.
type MQTTSink struct {
	client mqtt.Client
}

// NewMQTTSink wraps an MQTT client as a result sink.
func NewMQTTSink(client mqtt.Client) *MQTTSink {
	return &MQTTSink{client: client}
}

func (s *MQTTSink) Name() string {
	return "mqtt"
}

func (s *MQTTSink) Deliver(ctx context.Context, result *Result) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return errors.New(err).
			Component("pipeline").
			Category(errors.CategoryProcessing).
			Context("operation", "marshal_result").
			Build()
	}
	return s.client.Publish(ctx, "", string(payload))
}

// ExportSink uploads the rendered artifact of each completed result.
// Results without an artifact are skipped.
type ExportSink struct {
	uploader     export.Uploader
	artifactsDir string
}

// NewExportSink wraps an artifact uploader as a result sink. artifactsDir
// is the local directory artifact references resolve against.
func NewExportSink(uploader export.Uploader, artifactsDir string) *ExportSink {
	return &ExportSink{uploader: uploader, artifactsDir: artifactsDir}
}

func (s *ExportSink) Name() string {
	return s.uploader.Name()
}

func (s *ExportSink) Deliver(ctx context.Context, result *Result) error {
	if result.OutputReference == "" {
		return nil
	}
	return s.uploader.Upload(ctx, filepath.Join(s.artifactsDir, result.OutputReference))
}

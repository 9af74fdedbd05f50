package conf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// validSettings returns a settings tree that passes validation.
func validSettings() *Settings {
	s := &Settings{}
	s.Main.Name = "FruitCount-Go"
	s.Detector = DetectorConfig{
		ModelPath:  "model/yolov8n_float32.tflite",
		ModelName:  "yolov8n",
		Classes:    []string{"apple", "banana", "orange"},
		Confidence: 0.15,
		IoU:        0.5,
		ImageSize:  760,
		UseXNNPACK: true,
	}
	s.Upload = UploadConfig{
		Path:              "uploads/",
		MaxFileSize:       20 * 1024 * 1024,
		AllowedExtensions: []string{".jpg", ".jpeg", ".png"},
	}
	s.Artifacts = ArtifactsConfig{
		Enabled: true,
		Path:    "outputs/",
		Quality: 90,
	}
	s.WebServer.Enabled = true
	s.WebServer.Port = "8000"
	s.Output.SQLite.Enabled = true
	s.Output.SQLite.Path = "fruitcount.db"
	return s
}

func TestValidateSettingsValid(t *testing.T) {
	t.Parallel()

	require.NoError(t, ValidateSettings(validSettings()))
}

func TestValidateSettingsErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Settings)
		wantErr string
	}{
		{
			name:    "missing model path",
			mutate:  func(s *Settings) { s.Detector.ModelPath = "" },
			wantErr: "model path is required",
		},
		{
			name:    "confidence out of range",
			mutate:  func(s *Settings) { s.Detector.Confidence = 1.5 },
			wantErr: "confidence must be between 0 and 1",
		},
		{
			name:    "iou out of range",
			mutate:  func(s *Settings) { s.Detector.IoU = 0 },
			wantErr: "IoU threshold must be between 0 and 1",
		},
		{
			name:    "image size too small",
			mutate:  func(s *Settings) { s.Detector.ImageSize = 16 },
			wantErr: "image size must be between 32 and 4096",
		},
		{
			name:    "empty allow-list",
			mutate:  func(s *Settings) { s.Detector.Classes = nil },
			wantErr: "class allow-list cannot be empty",
		},
		{
			name:    "upload size zero",
			mutate:  func(s *Settings) { s.Upload.MaxFileSize = 0 },
			wantErr: "max file size must be positive",
		},
		{
			name:    "extension without dot",
			mutate:  func(s *Settings) { s.Upload.AllowedExtensions = []string{"jpg"} },
			wantErr: "must start with a dot",
		},
		{
			name:    "artifact quality out of range",
			mutate:  func(s *Settings) { s.Artifacts.Quality = 0 },
			wantErr: "quality must be between 1 and 100",
		},
		{
			name:    "bad web server port",
			mutate:  func(s *Settings) { s.WebServer.Port = "http" },
			wantErr: "port must be a number",
		},
		{
			name: "no database output",
			mutate: func(s *Settings) {
				s.Output.SQLite.Enabled = false
				s.Output.MySQL.Enabled = false
			},
			wantErr: "at least one database output",
		},
		{
			name: "mysql missing fields",
			mutate: func(s *Settings) {
				s.Output.MySQL.Enabled = true
				s.Output.MySQL.Host = ""
				s.Output.MySQL.Username = ""
			},
			wantErr: "missing required settings",
		},
		{
			name: "mqtt without broker",
			mutate: func(s *Settings) {
				s.MQTT.Enabled = true
				s.MQTT.Topic = "fruitcount"
			},
			wantErr: "broker URL is required",
		},
		{
			name: "export with bad type",
			mutate: func(s *Settings) {
				s.Export.Enabled = true
				s.Export.Type = "scp"
				s.Export.Host = "example.com"
			},
			wantErr: "export type must be ftp or sftp",
		},
		{
			name: "telemetry without listen address",
			mutate: func(s *Settings) {
				s.Observability.Enabled = true
				s.Observability.Listen = ""
			},
			wantErr: "telemetry listen address is required",
		},
		{
			name: "autotls without host",
			mutate: func(s *Settings) {
				s.Security.AutoTLS = true
				s.Security.Host = ""
			},
			wantErr: "security.host must be set",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := validSettings()
			tt.mutate(s)

			err := ValidateSettings(s)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)

			var ve ValidationError
			require.ErrorAs(t, err, &ve)
			assert.NotEmpty(t, ve.Errors)
		})
	}
}

func TestSaveYAMLConfigRoundTrip(t *testing.T) {
	t.Parallel()

	s := validSettings()
	s.MQTT.Broker = "tcp://broker.local:1883"
	s.MQTT.Topic = "fruitcount/results"

	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("placeholder"), 0o644))

	require.NoError(t, SaveYAMLConfig(configPath, s))

	data, err := os.ReadFile(configPath)
	require.NoError(t, err)

	var loaded Settings
	require.NoError(t, yaml.Unmarshal(data, &loaded))

	assert.Equal(t, s.Detector.ModelName, loaded.Detector.ModelName)
	assert.Equal(t, s.Detector.Classes, loaded.Detector.Classes)
	assert.Equal(t, s.Upload.MaxFileSize, loaded.Upload.MaxFileSize)
	assert.Equal(t, s.MQTT.Broker, loaded.MQTT.Broker)
	assert.Equal(t, s.Output.SQLite.Path, loaded.Output.SQLite.Path)
}

func TestEmbeddedDefaultConfigParses(t *testing.T) {
	t.Parallel()

	var loaded Settings
	require.NoError(t, yaml.Unmarshal([]byte(getDefaultConfig()), &loaded))

	assert.Equal(t, "yolov8n", loaded.Detector.ModelName)
	assert.Equal(t, []string{"apple", "banana", "orange"}, loaded.Detector.Classes)
	assert.Equal(t, int64(20971520), loaded.Upload.MaxFileSize)
	assert.True(t, loaded.Output.SQLite.Enabled)
}

// config.go: settings struct and functions to load and save the fruitcount configuration.
package conf

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

//go:embed config.yaml
var configFiles embed.FS

// DetectorConfig holds the TFLite detector configuration.
type DetectorConfig struct {
	ModelPath  string   // path to the TFLite model file
	LabelPath  string   // optional external label file, embedded COCO labels used when empty
	ModelName  string   // detector identifier stored with every request
	Classes    []string // target class allow-list, lower-cased at load
	Confidence float64  // minimum confidence for a detection to count
	IoU        float64  // IoU threshold for non-maximum suppression
	ImageSize  int      // square model input size in pixels
	Threads    int      // tensor op threads, 0 selects automatically
	UseXNNPACK bool     // try the XNNPACK delegate, fall back to CPU
	Debug      bool     // verbose detector logging
}

// UploadConfig controls staged upload handling.
type UploadConfig struct {
	Path              string   // directory for staged uploads
	MaxFileSize       int64    // maximum upload size in bytes
	AllowedExtensions []string // accepted file extensions, with leading dot
}

// ArtifactsConfig controls annotated image output.
type ArtifactsConfig struct {
	Enabled           bool   // render annotated images
	Path              string // directory for annotated images
	Quality           int    // JPEG quality, 1-100
	KeepFailedUploads bool   // retain staged files after detection failures
}

// FetchConfig controls analysis of images referenced by URL.
type FetchConfig struct {
	Enabled           bool    // allow fetching remote images
	Timeout           int     // per-request timeout in seconds
	MaxBytes          int64   // maximum response body size
	RequestsPerSecond float64 // shared rate limit for outbound fetches
	Burst             int     // rate limiter burst
}

// MQTTConfig controls publishing of completed requests.
type MQTTConfig struct {
	Enabled  bool   // true to enable mqtt output
	Broker   string // broker URL, e.g. tcp://localhost:1883
	Topic    string // topic to publish results to
	Username string // broker username
	Password string // broker password
	Retain   bool   // publish with the retain flag
}

// ExportConfig controls remote upload of rendered artifacts.
type ExportConfig struct {
	Enabled  bool   // true to enable artifact export
	Type     string // "ftp" or "sftp"
	Host     string // remote host
	Port     string // remote port
	Username string // remote username
	Password string // remote password
	KeyFile  string // path to SSH private key, sftp only
	Path     string // remote base directory
	Timeout  int    // dial timeout in seconds
}

// InputConfig holds runtime values for file and directory analysis runs.
type InputConfig struct {
	Path      string `yaml:"-"` // path to input file or directory
	Recursive bool   `yaml:"-"` // true for recursive directory analysis
}

// Settings is the root configuration tree.
type Settings struct {
	Debug bool // true to enable debug mode

	// Runtime values, not stored in config file
	Version   string `yaml:"-"` // Version from build
	BuildDate string `yaml:"-"` // Build date from build

	Main struct {
		Name string    // name of this fruitcount node, used to identify the source of requests
		Log  LogConfig // logging configuration
	}

	Detector DetectorConfig // detector configuration

	Input InputConfig `yaml:"-"` // input configuration for file and directory analysis

	Upload    UploadConfig    // staged upload configuration
	Artifacts ArtifactsConfig // annotated image output configuration
	Fetch     FetchConfig     // remote image fetch configuration

	WebServer struct {
		Debug   bool      // true to enable web server debug mode
		Enabled bool      // true to enable web server
		Port    string    // port for web server
		Log     LogConfig // logging configuration for web server
	}

	Security struct {
		Host    string // fully qualified domain name for AutoTLS
		AutoTLS bool   // true to enable automatic TLS certificates
	}

	Output struct {
		File struct {
			Enabled bool   `yaml:"-"` // true to enable file output
			Path    string `yaml:"-"` // directory to output results
			Type    string `yaml:"-"` // table, csv, json
		}

		SQLite struct {
			Enabled bool   // true to enable sqlite output
			Path    string // path to sqlite database
		}

		MySQL struct {
			Enabled  bool   // true to enable mysql output
			Username string // username for mysql database
			Password string // password for mysql database
			Database string // database name for mysql database
			Host     string // host for mysql database
			Port     string // port for mysql database
		}
	}

	MQTT   MQTTConfig   // mqtt output configuration
	Export ExportConfig // artifact export configuration

	Observability ObservabilityConfig // dedicated telemetry listener configuration
}

// ObservabilityConfig holds settings for the dedicated Prometheus listener.
// Metrics are always served on the web server at /metrics; this listener is
// for deployments that keep telemetry off the public interface.
type ObservabilityConfig struct {
	Enabled bool   // true to enable the dedicated telemetry listener
	Listen  string // listen address for telemetry endpoint, e.g. "localhost:9090"
}

// LogConfig defines the configuration for a log file
type LogConfig struct {
	Enabled     bool         // true to enable this log
	Path        string       // Path to the log file
	Rotation    RotationType // Type of log rotation
	MaxSize     int64        // Max size in bytes for RotationSize
	RotationDay string       // Day of the week for RotationWeekly
}

// RotationType defines different types of log rotations.
type RotationType string

const (
	RotationDaily  RotationType = "daily"
	RotationWeekly RotationType = "weekly"
	RotationSize   RotationType = "size"
)

var (
	settingsInstance *Settings
	once             sync.Once
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment variables into a new
// Settings instance and stores it as the package instance.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper initializes viper with default values and reads the configuration file.
func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}

	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	// Set default values for each configuration parameter
	// function defined in defaults.go
	setDefaultConfig()

	err = viper.ReadInConfig()
	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			// Config file not found, create config with defaults
			return createDefaultConfig()
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// createDefaultConfig creates a default config file and writes it to the default config path
func createDefaultConfig() error {
	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	configPath := filepath.Join(configPaths[0], "config.yaml")
	defaultConfig := getDefaultConfig()

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(defaultConfig), 0o644); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}

	fmt.Println("Created default config file at:", configPath)
	return viper.ReadInConfig()
}

// getDefaultConfig reads the default configuration from the embedded config.yaml file.
func getDefaultConfig() string {
	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		log.Fatalf("Error reading config file: %v", err)
	}
	return string(data)
}

// GetSettings returns the current settings instance
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// SaveSettings saves the current settings to the configuration file.
// It uses SaveYAMLConfig to handle the atomic write process.
func SaveSettings() error {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()

	// Copy so the marshal works on a stable snapshot
	settingsCopy := *settingsInstance
	settingsCopy.Detector.Classes = make([]string, len(settingsInstance.Detector.Classes))
	copy(settingsCopy.Detector.Classes, settingsInstance.Detector.Classes)

	configPath, err := FindConfigFile()
	if err != nil {
		return fmt.Errorf("error finding config file: %w", err)
	}

	if err := SaveYAMLConfig(configPath, &settingsCopy); err != nil {
		return fmt.Errorf("error saving config: %w", err)
	}

	log.Printf("Settings saved successfully to %s", configPath)
	return nil
}

// Setting returns the current settings instance, initializing it if necessary
func Setting() *Settings {
	once.Do(func() {
		if settingsInstance == nil {
			_, err := Load()
			if err != nil {
				log.Fatalf("Error loading settings: %v", err)
			}
		}
	})
	return GetSettings()
}

// SaveYAMLConfig updates the YAML configuration file with new settings.
// It overwrites the existing file, not preserving comments or structure.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	// Write to a temporary file first so the replace is atomic
	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	tempFileName := tempFile.Name()
	defer os.Remove(tempFileName)

	if _, err := tempFile.Write(yamlData); err != nil {
		tempFile.Close()
		return fmt.Errorf("error writing to temporary file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("error closing temporary file: %w", err)
	}

	if err := os.Rename(tempFileName, configPath); err != nil {
		// Rename can fail across filesystems, fall back to copy & delete
		if err := moveFile(tempFileName, configPath); err != nil {
			return fmt.Errorf("error copying config file: %w", err)
		}
	}

	return nil
}

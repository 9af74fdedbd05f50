// conf/validate.go

package conf

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	if err := validateDetectorSettings(&settings.Detector); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateUploadSettings(&settings.Upload); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateArtifactsSettings(&settings.Artifacts); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateWebServerSettings(settings); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateOutputSettings(settings); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateMQTTSettings(&settings.MQTT); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateExportSettings(&settings.Export); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateObservabilitySettings(&settings.Observability); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

// validateDetectorSettings validates the detector-specific settings
func validateDetectorSettings(settings *DetectorConfig) error {
	var errs []string

	if settings.ModelPath == "" {
		errs = append(errs, "detector model path is required")
	}

	if settings.Confidence < 0 || settings.Confidence > 1 {
		errs = append(errs, fmt.Sprintf("detector confidence must be between 0 and 1, got %.2f", settings.Confidence))
	}

	if settings.IoU <= 0 || settings.IoU > 1 {
		errs = append(errs, fmt.Sprintf("detector IoU threshold must be between 0 and 1, got %.2f", settings.IoU))
	}

	if settings.ImageSize < 32 || settings.ImageSize > 4096 {
		errs = append(errs, fmt.Sprintf("detector image size must be between 32 and 4096, got %d", settings.ImageSize))
	}

	if settings.Threads < 0 {
		errs = append(errs, fmt.Sprintf("detector thread count cannot be negative, got %d", settings.Threads))
	}

	if len(settings.Classes) == 0 {
		errs = append(errs, "detector class allow-list cannot be empty")
	}
	for _, class := range settings.Classes {
		if strings.TrimSpace(class) == "" {
			errs = append(errs, "detector class allow-list contains an empty entry")
			break
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("detector settings errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// validateUploadSettings validates the staged upload settings
func validateUploadSettings(settings *UploadConfig) error {
	var errs []string

	if settings.Path == "" {
		errs = append(errs, "upload path is required")
	}

	if settings.MaxFileSize <= 0 {
		errs = append(errs, fmt.Sprintf("upload max file size must be positive, got %d", settings.MaxFileSize))
	}

	if len(settings.AllowedExtensions) == 0 {
		errs = append(errs, "upload allowed extensions cannot be empty")
	}
	for _, ext := range settings.AllowedExtensions {
		if !strings.HasPrefix(ext, ".") {
			errs = append(errs, fmt.Sprintf("upload extension %q must start with a dot", ext))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("upload settings errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// validateArtifactsSettings validates the annotated image output settings
func validateArtifactsSettings(settings *ArtifactsConfig) error {
	if !settings.Enabled {
		return nil
	}

	if settings.Path == "" {
		return errors.New("artifacts path is required when artifacts are enabled")
	}

	if settings.Quality < 1 || settings.Quality > 100 {
		return fmt.Errorf("artifacts JPEG quality must be between 1 and 100, got %d", settings.Quality)
	}

	return nil
}

// validateWebServerSettings validates the web server settings
func validateWebServerSettings(settings *Settings) error {
	if settings.WebServer.Enabled {
		if settings.WebServer.Port == "" {
			return errors.New("WebServer port is required when enabled")
		}
		port, err := strconv.Atoi(settings.WebServer.Port)
		if err != nil || port < 1 || port > 65535 {
			return fmt.Errorf("WebServer port must be a number between 1 and 65535, got %q", settings.WebServer.Port)
		}
	}

	if settings.Security.AutoTLS && settings.Security.Host == "" {
		return errors.New("security.host must be set when AutoTLS is enabled")
	}

	return nil
}

// validateOutputSettings validates the database output settings
func validateOutputSettings(settings *Settings) error {
	if !settings.Output.SQLite.Enabled && !settings.Output.MySQL.Enabled {
		return errors.New("at least one database output must be enabled")
	}

	if settings.Output.SQLite.Enabled && settings.Output.SQLite.Path == "" {
		return errors.New("SQLite database path is required when SQLite output is enabled")
	}

	if settings.Output.MySQL.Enabled {
		var missing []string
		if settings.Output.MySQL.Username == "" {
			missing = append(missing, "username")
		}
		if settings.Output.MySQL.Database == "" {
			missing = append(missing, "database")
		}
		if settings.Output.MySQL.Host == "" {
			missing = append(missing, "host")
		}
		if settings.Output.MySQL.Port == "" {
			missing = append(missing, "port")
		}
		if len(missing) > 0 {
			return fmt.Errorf("MySQL output is missing required settings: %s", strings.Join(missing, ", "))
		}
	}

	return nil
}

// validateMQTTSettings validates the mqtt output settings
func validateMQTTSettings(settings *MQTTConfig) error {
	if !settings.Enabled {
		return nil
	}

	if settings.Broker == "" {
		return errors.New("MQTT broker URL is required when MQTT output is enabled")
	}

	if settings.Topic == "" {
		return errors.New("MQTT topic is required when MQTT output is enabled")
	}

	return nil
}

// validateExportSettings validates the artifact export settings
func validateExportSettings(settings *ExportConfig) error {
	if !settings.Enabled {
		return nil
	}

	if settings.Type != "ftp" && settings.Type != "sftp" {
		return fmt.Errorf("export type must be ftp or sftp, got %q", settings.Type)
	}

	if settings.Host == "" {
		return errors.New("export host is required when export is enabled")
	}

	return nil
}

// validateObservabilitySettings validates the telemetry listener settings
func validateObservabilitySettings(settings *ObservabilityConfig) error {
	if !settings.Enabled {
		return nil
	}

	if settings.Listen == "" {
		return errors.New("telemetry listen address is required when the telemetry listener is enabled")
	}

	return nil
}

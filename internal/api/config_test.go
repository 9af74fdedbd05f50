package api

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/fruitcount-go/internal/conf"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "21M", cfg.BodyLimit)
	assert.False(t, cfg.AutoTLS)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Positive(t, cfg.ReadTimeout)
	assert.Positive(t, cfg.WriteTimeout)
	assert.Positive(t, cfg.ShutdownTimeout)
}

func TestConfigFromSettings(t *testing.T) {
	t.Parallel()

	settings := &conf.Settings{}
	settings.WebServer.Port = "9090"
	settings.WebServer.Debug = true
	settings.Security.AutoTLS = true
	settings.Security.Host = "fruit.example.com"
	settings.Upload.MaxFileSize = 5 * 1024 * 1024

	cfg := ConfigFromSettings(settings)
	assert.Equal(t, "9090", cfg.Port)
	assert.True(t, cfg.AutoTLS)
	assert.Equal(t, "fruit.example.com", cfg.TLSDomain)
	assert.Equal(t, "6M", cfg.BodyLimit, "body limit should leave multipart headroom above the upload cap")
	assert.True(t, cfg.Debug)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
}

func TestConfigFromSettingsDefaults(t *testing.T) {
	t.Parallel()

	cfg := ConfigFromSettings(&conf.Settings{})
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "21M", cfg.BodyLimit)
	assert.False(t, cfg.Debug)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults pass", mutate: func(c *Config) {}},
		{
			name:    "missing port",
			mutate:  func(c *Config) { c.Port = "" },
			wantErr: "port is required",
		},
		{
			name:    "autotls without domain",
			mutate:  func(c *Config) { c.AutoTLS = true },
			wantErr: "autotls requires a domain name",
		},
		{
			name:    "zero read timeout",
			mutate:  func(c *Config) { c.ReadTimeout = 0 },
			wantErr: "read timeout must be positive",
		},
		{
			name:    "zero write timeout",
			mutate:  func(c *Config) { c.WriteTimeout = 0 },
			wantErr: "write timeout must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfigAddress(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	assert.Equal(t, ":8080", cfg.Address())

	cfg.Host = "127.0.0.1"
	cfg.Port = "9090"
	assert.Equal(t, "127.0.0.1:9090", cfg.Address())
}

func TestConfigString(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	assert.Contains(t, cfg.String(), "tls=disabled")

	cfg.AutoTLS = true
	assert.Contains(t, cfg.String(), "auto (Let's Encrypt)")
}

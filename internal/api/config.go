// Package api provides the HTTP server infrastructure for fruitcount.
// This package contains the server implementation while the JSON API
// endpoints are organized in the v2 subpackage.
package api

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/tphakala/fruitcount-go/internal/conf"
)

// Default constants for the HTTP server.
const (
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 60 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 10 * time.Second

	// DefaultLogPath is the default path for the server log file.
	DefaultLogPath = "logs/web.log"
)

// Config holds the HTTP server configuration, consolidated from the
// settings tree for server initialization.
type Config struct {
	// Server binding
	Host string // host to bind to, empty for all interfaces
	Port string // port to listen on

	// TLS configuration
	AutoTLS   bool   // obtain certificates from Let's Encrypt
	TLSDomain string // domain name certificates are issued for

	// CORS
	AllowedOrigins []string

	// Timeouts
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Limits
	BodyLimit string // maximum request body size, e.g. "21M"

	// Logging
	Debug    bool
	LogLevel slog.Level
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Host:            "",
		Port:            "8080",
		AutoTLS:         false,
		AllowedOrigins:  []string{"*"},
		ReadTimeout:     DefaultReadTimeout,
		WriteTimeout:    DefaultWriteTimeout,
		IdleTimeout:     DefaultIdleTimeout,
		ShutdownTimeout: DefaultShutdownTimeout,
		BodyLimit:       "21M",
		Debug:           false,
		LogLevel:        slog.LevelInfo,
	}
}

// ConfigFromSettings creates a Config from the application settings.
func ConfigFromSettings(settings *conf.Settings) *Config {
	cfg := DefaultConfig()

	if settings.WebServer.Port != "" {
		cfg.Port = settings.WebServer.Port
	}

	cfg.AutoTLS = settings.Security.AutoTLS
	cfg.TLSDomain = settings.Security.Host

	// Request bodies are dominated by image uploads; size the cap from the
	// upload limit with a megabyte of headroom for multipart framing.
	if settings.Upload.MaxFileSize > 0 {
		cfg.BodyLimit = fmt.Sprintf("%dM", settings.Upload.MaxFileSize/(1024*1024)+1)
	}

	cfg.Debug = settings.WebServer.Debug || settings.Debug
	if cfg.Debug {
		cfg.LogLevel = slog.LevelDebug
	}

	return cfg
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("port is required")
	}

	if c.AutoTLS && c.TLSDomain == "" {
		return fmt.Errorf("autotls requires a domain name")
	}

	if c.ReadTimeout <= 0 {
		return fmt.Errorf("read timeout must be positive")
	}
	if c.WriteTimeout <= 0 {
		return fmt.Errorf("write timeout must be positive")
	}

	return nil
}

// Address returns the full address string for the server to listen on.
func (c *Config) Address() string {
	if c.Host == "" {
		return ":" + c.Port
	}
	return c.Host + ":" + c.Port
}

// String returns a human-readable representation of the config.
func (c *Config) String() string {
	tlsStatus := "disabled"
	if c.AutoTLS {
		tlsStatus = "auto (Let's Encrypt)"
	}

	return fmt.Sprintf("Server Config: address=%s, tls=%s, debug=%v",
		c.Address(), tlsStatus, c.Debug)
}

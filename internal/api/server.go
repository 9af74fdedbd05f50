package api

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"golang.org/x/crypto/acme/autocert"

	"github.com/tphakala/fruitcount-go/internal/api/middleware"
	v2 "github.com/tphakala/fruitcount-go/internal/api/v2"
	"github.com/tphakala/fruitcount-go/internal/conf"
	"github.com/tphakala/fruitcount-go/internal/datastore"
	"github.com/tphakala/fruitcount-go/internal/errors"
	"github.com/tphakala/fruitcount-go/internal/logging"
	"github.com/tphakala/fruitcount-go/internal/observability"
	"github.com/tphakala/fruitcount-go/internal/pipeline"
)

// Server is the fruitcount HTTP server. It owns the Echo instance, the
// middleware stack and the v2 API controller, and coordinates graceful
// shutdown of all of them.
type Server struct {
	echo     *echo.Echo
	config   *Config
	settings *conf.Settings
	logger   *log.Logger
	slogger  *slog.Logger

	dataStore datastore.Interface
	pipeline  *pipeline.Pipeline
	classes   v2.ClassResolver
	metrics   *observability.Metrics

	apiController *v2.Controller

	ctx       context.Context
	cancel    context.CancelFunc
	startTime time.Time

	logCloser      func() error
	injectedLogger bool
}

// ServerOption is a functional option for configuring the Server.
type ServerOption func(*Server)

// WithLogger sets the standard logger for the server.
func WithLogger(logger *log.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithDataStore sets the request store for the server.
func WithDataStore(ds datastore.Interface) ServerOption {
	return func(s *Server) {
		s.dataStore = ds
	}
}

// WithPipeline sets the processing pipeline uploads are dispatched to.
func WithPipeline(p *pipeline.Pipeline) ServerOption {
	return func(s *Server) {
		s.pipeline = p
	}
}

// WithClassResolver sets the detector class resolver exposed on the API.
func WithClassResolver(cr v2.ClassResolver) ServerOption {
	return func(s *Server) {
		s.classes = cr
	}
}

// WithMetrics sets the observability metrics for the server.
func WithMetrics(m *observability.Metrics) ServerOption {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithStructuredLogger injects the structured logger directly, bypassing
// log file setup for both the server and the API access log. Used by
// tests.
func WithStructuredLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.slogger = logger
		s.logCloser = func() error { return nil }
		s.injectedLogger = true
	}
}

// New creates a new HTTP server with the given settings and options.
func New(settings *conf.Settings, opts ...ServerOption) (*Server, error) {
	if settings == nil {
		return nil, errors.Newf("server: settings are required").
			Component("api").
			Category(errors.CategoryConfiguration).
			Build()
	}

	config := ConfigFromSettings(settings)
	if err := config.Validate(); err != nil {
		return nil, errors.New(err).
			Component("api").
			Category(errors.CategoryConfiguration).
			Context("operation", "validate_server_config").
			Build()
	}

	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		config:    config,
		settings:  settings,
		ctx:       ctx,
		cancel:    cancel,
		startTime: time.Now(),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = log.Default()
	}
	if s.slogger == nil {
		s.initLogger()
	}

	s.echo = echo.New()
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Logger = logging.NewEchoLogger(s.slogger, config.LogLevel)

	s.echo.Server.ReadTimeout = config.ReadTimeout
	s.echo.Server.WriteTimeout = config.WriteTimeout
	s.echo.Server.IdleTimeout = config.IdleTimeout

	s.setupMiddleware()

	if err := s.setupRoutes(); err != nil {
		cancel()
		return nil, err
	}

	s.slogger.Info("HTTP server initialized",
		"address", config.Address(),
		"autotls", config.AutoTLS,
		"debug", config.Debug,
	)

	return s, nil
}

// initLogger initializes the structured logger for the server, falling
// back to a discard logger when the log file cannot be opened.
func (s *Server) initLogger() {
	logger, closer, err := logging.NewFileLogger(DefaultLogPath, "web", s.config.LogLevel)
	if err != nil {
		s.logger.Printf("Warning: Failed to initialize server logger: %v", err)
		handler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: s.config.LogLevel})
		s.slogger = slog.New(handler).With("service", "web")
		s.logCloser = func() error { return nil }
		return
	}

	s.slogger = logger
	s.logCloser = closer
	s.logger.Printf("Server logging initialized to %s", DefaultLogPath)
}

// setupMiddleware configures the Echo middleware stack.
func (s *Server) setupMiddleware() {
	// Recover first so panics in later middleware are still caught
	s.echo.Use(echomw.Recover())

	// Keep scrape and artifact traffic out of the access log
	s.echo.Use(middleware.NewRequestLoggerWithSkipper(s.slogger,
		middleware.SkipPaths("/metrics", "/outputs")))

	securityConfig := middleware.DefaultSecurityConfig()

	s.echo.Use(middleware.NewCORS(securityConfig))
	s.echo.Use(middleware.NewBodyLimit(s.config.BodyLimit))
	s.echo.Use(middleware.NewGzip())
	s.echo.Use(middleware.NewSecureHeaders(securityConfig))
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() error {
	s.echo.GET("/health", s.healthCheck)

	if s.metrics != nil {
		s.echo.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))
	}

	// Annotated images are additionally served as plain static files so
	// stored output references resolve as direct URLs.
	if s.settings.Artifacts.Enabled && s.settings.Artifacts.Path != "" {
		s.echo.Static("/outputs", s.settings.Artifacts.Path)
	}

	if s.config.AutoTLS {
		if err := s.configureAutoTLS(); err != nil {
			return err
		}
	}

	var controllerOpts []v2.Option
	if s.metrics != nil {
		controllerOpts = append(controllerOpts, v2.WithMetrics(s.metrics))
	}
	controllerOpts = append(controllerOpts, s.accessLoggerOption())

	apiController, err := v2.New(
		s.echo,
		s.dataStore,
		s.settings,
		s.pipeline,
		s.classes,
		s.logger,
		controllerOpts...,
	)
	if err != nil {
		return errors.New(err).
			Component("api").
			Category(errors.CategoryConfiguration).
			Context("operation", "init_api_controller").
			Build()
	}
	s.apiController = apiController

	s.slogger.Info("Routes initialized", "api_version", "v2")

	return nil
}

// accessLoggerOption builds the API access logger. The controller owns the
// returned close function and calls it from its Shutdown.
func (s *Server) accessLoggerOption() v2.Option {
	if s.injectedLogger {
		return v2.WithAccessLogger(s.slogger.With("service", "api"), nil)
	}

	accessLogger, closer, err := logging.NewFileLogger("logs/api.log", "api", s.config.LogLevel)
	if err != nil {
		s.logger.Printf("Warning: Failed to initialize API access logger: %v", err)
		return v2.WithAccessLogger(s.slogger.With("service", "api"), nil)
	}
	return v2.WithAccessLogger(accessLogger, closer)
}

// configureAutoTLS prepares the Let's Encrypt certificate manager.
func (s *Server) configureAutoTLS() error {
	configPaths, err := conf.GetDefaultConfigPaths()
	if err != nil {
		return errors.New(err).
			Component("api").
			Category(errors.CategoryConfiguration).
			Context("operation", "configure_autotls").
			Build()
	}

	s.echo.AutoTLSManager.Prompt = autocert.AcceptTOS
	s.echo.AutoTLSManager.Cache = autocert.DirCache(configPaths[0])
	s.echo.AutoTLSManager.HostPolicy = autocert.HostWhitelist(s.config.TLSDomain)

	return nil
}

// healthCheck handles the root-level health endpoint used by load
// balancers; the richer probe lives at /api/v2/health.
func (s *Server) healthCheck(c echo.Context) error {
	uptime := time.Since(s.startTime)

	return c.JSON(http.StatusOK, map[string]any{
		"status":         "healthy",
		"version":        s.settings.Version,
		"build_date":     s.settings.BuildDate,
		"uptime":         uptime.String(),
		"uptime_seconds": uptime.Seconds(),
		"timestamp":      time.Now().Format(time.RFC3339),
	})
}

// Start begins serving HTTP requests in a background goroutine. Use
// Shutdown to stop the server.
func (s *Server) Start() {
	go func() {
		if err := s.startBlocking(); err != nil {
			s.slogger.Error("Server error", "error", err)
		}
	}()

	addr := s.config.Address()
	if s.config.AutoTLS {
		s.logger.Printf("HTTPS server starting with AutoTLS on %s", addr)
	} else {
		s.logger.Printf("HTTP server starting on %s", addr)
	}
}

// startBlocking begins serving HTTP requests and blocks until the server
// is shut down.
func (s *Server) startBlocking() error {
	addr := s.config.Address()

	s.slogger.Info("Starting HTTP server", "address", addr)

	var err error
	if s.config.AutoTLS {
		err = s.echo.StartAutoTLS(addr)
	} else {
		err = s.echo.Start(addr)
	}

	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.New(err).
			Component("api").
			Category(errors.CategoryNetwork).
			Context("operation", "serve").
			Context("address", addr).
			Build()
	}

	return nil
}

// StartWithGracefulShutdown starts the server and blocks until SIGINT or
// SIGTERM triggers a graceful shutdown.
func (s *Server) StartWithGracefulShutdown() error {
	s.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	s.slogger.Info("Shutdown signal received, initiating graceful shutdown")
	s.logger.Println("Shutdown signal received")

	return s.Shutdown()
}

// Shutdown gracefully stops the server. The HTTP listener drains first,
// then in-flight sink deliveries, so nothing accepted is cut off.
func (s *Server) Shutdown() error {
	s.cancel()

	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	if s.apiController != nil {
		s.apiController.Shutdown()
	}

	if err := s.echo.Shutdown(ctx); err != nil {
		s.slogger.Error("Error during server shutdown", "error", err)
		return fmt.Errorf("shutdown error: %w", err)
	}

	if s.pipeline != nil {
		s.pipeline.Wait()
	}

	if s.logCloser != nil {
		if err := s.logCloser(); err != nil {
			s.logger.Printf("Error closing log file: %v", err)
		}
	}

	s.slogger.Info("Server shutdown complete")
	s.logger.Println("Server shutdown complete")

	return nil
}

// APIController returns the v2 API controller.
func (s *Server) APIController() *v2.Controller {
	return s.apiController
}

// Echo returns the underlying Echo instance, useful for tests.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

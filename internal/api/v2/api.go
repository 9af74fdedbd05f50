// internal/api/v2/api.go
package api

import (
	"crypto/rand"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/patrickmn/go-cache"

	"github.com/tphakala/fruitcount-go/internal/conf"
	"github.com/tphakala/fruitcount-go/internal/datastore"
	"github.com/tphakala/fruitcount-go/internal/detector"
	"github.com/tphakala/fruitcount-go/internal/errors"
	"github.com/tphakala/fruitcount-go/internal/logging"
	"github.com/tphakala/fruitcount-go/internal/observability"
	"github.com/tphakala/fruitcount-go/internal/pipeline"
)

// dashboardCacheTTL bounds how stale the dashboard snapshot may get between
// uploads. Completed uploads invalidate the entry early.
const dashboardCacheTTL = 30 * time.Second

// ClassResolver reports the configured detection classes and their label
// resolution status. Satisfied by *detector.Detector.
type ClassResolver interface {
	ResolveClasses() []detector.ClassInfo
	Labels() []string
}

// Controller manages the API routes and handlers
type Controller struct {
	Echo     *echo.Echo
	Group    *echo.Group
	DS       datastore.Interface
	Settings *conf.Settings
	Pipeline *pipeline.Pipeline
	Classes  ClassResolver

	logger         *log.Logger
	apiLogger      *slog.Logger
	apiLoggerClose func() error
	dashboardCache *cache.Cache
	startTime      *time.Time
	metrics        *observability.Metrics
}

// Option configures optional Controller dependencies.
type Option func(*Controller)

// WithAccessLogger routes structured request logs to the given logger.
// closeFn is called on Shutdown; pass nil when the logger needs no cleanup.
func WithAccessLogger(logger *slog.Logger, closeFn func() error) Option {
	return func(c *Controller) {
		c.apiLogger = logger
		c.apiLoggerClose = closeFn
	}
}

// WithMetrics registers the metrics collectors used by the request
// middleware and the upload handlers.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Controller) {
		c.metrics = m
	}
}

// Custom IP Extractor prioritizing CF-Connecting-IP
func ipExtractorFromCloudflareHeader(req *http.Request) string {
	// 1. Check CF-Connecting-IP
	cfIP := req.Header.Get("CF-Connecting-IP")
	if cfIP != "" {
		if ip := net.ParseIP(cfIP); ip != nil {
			return ip.String()
		}
	}

	// 2. Check X-Forwarded-For (taking the first valid IP)
	xff := req.Header.Get(echo.HeaderXForwardedFor)
	if xff != "" {
		for part := range strings.SplitSeq(xff, ",") {
			ipStr := strings.TrimSpace(part)
			if ip := net.ParseIP(ipStr); ip != nil {
				return ip.String()
			}
		}
	}

	// 3. Check X-Real-IP
	xri := req.Header.Get(echo.HeaderXRealIP)
	if xri != "" {
		if ip := net.ParseIP(xri); ip != nil {
			return ip.String()
		}
	}

	// 4. Fallback to Remote Address (might be proxy)
	remoteAddr, _, _ := net.SplitHostPort(req.RemoteAddr)
	if ip := net.ParseIP(remoteAddr); ip != nil {
		return ip.String()
	}
	return remoteAddr
}

// New creates a new API controller, returning an error if initialization fails.
func New(e *echo.Echo, ds datastore.Interface, settings *conf.Settings,
	pipe *pipeline.Pipeline, classes ClassResolver, logger *log.Logger,
	opts ...Option) (*Controller, error) {
	return NewWithOptions(e, ds, settings, pipe, classes, logger, true, opts...)
}

// NewWithOptions creates a new API controller with optional route
// initialization. Tests that exercise handlers directly pass
// initializeRoutes=false to stay off the route table.
func NewWithOptions(e *echo.Echo, ds datastore.Interface, settings *conf.Settings,
	pipe *pipeline.Pipeline, classes ClassResolver, logger *log.Logger,
	initializeRoutes bool, opts ...Option) (*Controller, error) {

	if e == nil {
		return nil, errors.Newf("api: echo instance is required").
			Component("api").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if settings == nil {
		return nil, errors.Newf("api: settings are required").
			Component("api").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if logger == nil {
		logger = log.Default()
	}

	e.IPExtractor = ipExtractorFromCloudflareHeader

	c := &Controller{
		Echo:           e,
		DS:             ds,
		Settings:       settings,
		Pipeline:       pipe,
		Classes:        classes,
		logger:         logger,
		dashboardCache: cache.New(dashboardCacheTTL, 2*dashboardCacheTTL),
	}

	for _, opt := range opts {
		opt(c)
	}
	if c.apiLogger == nil {
		c.apiLogger = getLoggerSafe("api")
	}

	c.Group = e.Group("/api/v2")

	c.Group.Use(middleware.Recover())
	c.Group.Use(middleware.CORS())
	c.Group.Use(middleware.BodyLimit(uploadBodyLimit(settings)))
	c.Group.Use(c.LoggingMiddleware())
	c.Group.Use(c.MetricsMiddleware())

	now := time.Now()
	c.startTime = &now

	if initializeRoutes {
		c.initRoutes()
	}

	return c, nil
}

// getLoggerSafe returns a logger for the service, falling back to default if logging not initialized
func getLoggerSafe(service string) *slog.Logger {
	logger := logging.ForService(service)
	if logger == nil {
		logger = slog.Default().With("service", service)
	}
	return logger
}

// uploadBodyLimit sizes the request body cap from the configured upload
// limit, rounded up a megabyte to leave room for multipart framing.
func uploadBodyLimit(settings *conf.Settings) string {
	limit := settings.Upload.MaxFileSize
	if limit <= 0 {
		limit = 20 * 1024 * 1024
	}
	return fmt.Sprintf("%dM", limit/(1024*1024)+1)
}

// LoggingMiddleware creates a middleware function that logs API requests
func (c *Controller) LoggingMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			start := time.Now()

			err := next(ctx)

			if c.apiLogger == nil {
				return err
			}

			req := ctx.Request()
			res := ctx.Response()

			attrs := []slog.Attr{
				slog.String("method", req.Method),
				slog.String("path", req.URL.Path),
				slog.String("query", req.URL.RawQuery),
				slog.Int("status", res.Status),
				slog.String("ip", ctx.RealIP()),
				slog.String("user_agent", req.UserAgent()),
				slog.Int64("latency_ms", time.Since(start).Milliseconds()),
			}
			if err != nil {
				attrs = append(attrs, slog.Any("error", err))
			}

			c.apiLogger.LogAttrs(req.Context(), slog.LevelInfo, "API Request", attrs...)

			return err
		}
	}
}

// MetricsMiddleware records request counts, durations and response sizes.
// Metrics are keyed by route template so parameterized paths stay bounded.
func (c *Controller) MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if c.metrics == nil || c.metrics.HTTP == nil {
				return next(ctx)
			}

			start := time.Now()
			err := next(ctx)

			req := ctx.Request()
			res := ctx.Response()
			route := ctx.Path()
			if route == "" {
				route = req.URL.Path
			}

			c.metrics.HTTP.RecordHTTPRequest(req.Method, route, res.Status, time.Since(start).Seconds())
			c.metrics.HTTP.RecordHTTPResponseSize(req.Method, route, res.Size)
			if err != nil {
				c.metrics.HTTP.RecordHTTPRequestError(req.Method, route, categoryLabel(err))
			}

			return err
		}
	}
}

// initRoutes registers all API endpoints
func (c *Controller) initRoutes() {
	c.Group.GET("/health", c.HealthCheck)

	routeInitializers := []struct {
		name string
		fn   func()
	}{
		{"image routes", c.initImageRoutes},
		{"request routes", c.initRequestRoutes},
		{"analytics routes", c.initAnalyticsRoutes},
		{"report routes", c.initReportRoutes},
		{"class routes", c.initClassRoutes},
		{"artifact routes", c.initArtifactRoutes},
		{"system routes", c.initSystemRoutes},
	}

	for _, initializer := range routeInitializers {
		c.Debug("Initializing %s...", initializer.name)
		initializer.fn()
	}
}

// HealthCheck handles GET /api/v2/health
func (c *Controller) HealthCheck(ctx echo.Context) error {
	response := map[string]any{
		"status":    "healthy",
		"version":   c.Settings.Version,
		"timestamp": time.Now().Format(time.RFC3339),
		"model":     c.Settings.Detector.ModelName,
	}

	dbStatus := "connected"
	if c.DS == nil {
		dbStatus = "disconnected"
		response["status"] = "degraded"
	} else if _, err := c.DS.GetRecent(ctx.Request().Context(), 1); err != nil {
		dbStatus = "disconnected"
		response["status"] = "degraded"
		response["database_error"] = err.Error()
	}
	response["database_status"] = dbStatus
	response["model_loaded"] = c.Classes != nil

	if c.startTime != nil {
		uptime := time.Since(*c.startTime)
		response["uptime"] = uptime.String()
		response["uptime_seconds"] = uptime.Seconds()
	}

	return ctx.JSON(http.StatusOK, response)
}

// Shutdown releases resources held by the API controller.
func (c *Controller) Shutdown() {
	if c.apiLoggerClose != nil {
		if err := c.apiLoggerClose(); err != nil {
			c.logger.Printf("Error closing API log file: %v", err)
		}
	}

	if c.dashboardCache != nil {
		c.dashboardCache.Flush()
	}

	c.Debug("API controller shut down")
}

// ErrorResponse is the JSON error envelope returned by every handler.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Code          int    `json:"code"`
	CorrelationID string `json:"correlation_id"`
}

// NewErrorResponse creates a new API error response
func NewErrorResponse(err error, message string, code int) *ErrorResponse {
	errorStr := message
	if err != nil {
		errorStr = err.Error()
	}

	return &ErrorResponse{
		Error:         errorStr,
		Message:       message,
		Code:          code,
		CorrelationID: generateCorrelationID(),
	}
}

// generateCorrelationID creates a unique identifier for error tracking
func generateCorrelationID() string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	const length = 8

	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "ERR-RAND"
	}
	for i := range b {
		b[i] = charset[int(b[i])%len(charset)]
	}
	return string(b)
}

// HandleError maps the error's category to an HTTP status and writes the
// JSON error envelope. Categories outside the mapping respond with 500.
func (c *Controller) HandleError(ctx echo.Context, err error, message string) error {
	code := statusFromError(err)
	errorResp := NewErrorResponse(err, message, code)

	if c.apiLogger != nil {
		errorStr := message
		if err != nil {
			errorStr = err.Error()
		}

		c.apiLogger.Error("API Error",
			"correlation_id", errorResp.CorrelationID,
			"message", message,
			"error", errorStr,
			"code", code,
			"path", ctx.Request().URL.Path,
			"method", ctx.Request().Method,
			"ip", ctx.RealIP(),
		)
	}

	return ctx.JSON(code, errorResp)
}

// statusFromError picks the response status for a classified error.
// Matching is on the outermost category so handler-level wrapping can
// override what lower layers report.
func statusFromError(err error) int {
	switch {
	case err == nil:
		return http.StatusInternalServerError
	case errors.IsCategory(err, errors.CategoryValidation),
		errors.IsCategory(err, errors.CategoryImageDecode):
		return http.StatusBadRequest
	case errors.IsCategory(err, errors.CategoryNotFound):
		return http.StatusNotFound
	case errors.IsCategory(err, errors.CategoryImageFetch):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// categoryLabel names the error category for the HTTP error metric.
func categoryLabel(err error) string {
	var ee *errors.EnhancedError
	if errors.As(err, &ee) {
		return ee.GetCategory()
	}
	return "unknown"
}

// Debug logs debug messages when debug mode is enabled
func (c *Controller) Debug(format string, v ...any) {
	if c.Settings.WebServer.Debug {
		msg := fmt.Sprintf(format, v...)
		c.logger.Printf("[DEBUG] %s", msg)

		if c.apiLogger != nil {
			c.apiLogger.Debug(msg)
		}
	}
}

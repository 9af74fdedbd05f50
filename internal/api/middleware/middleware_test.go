package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func TestSkipPaths(t *testing.T) {
	t.Parallel()

	e := echo.New()
	skipper := SkipPaths("/metrics", "/outputs")

	tests := []struct {
		path string
		skip bool
	}{
		{"/metrics", true},
		{"/outputs/basket_boxed.jpg", true},
		{"/api/v2/health", false},
		{"/", false},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, tt.path, nil)
		ctx := e.NewContext(req, httptest.NewRecorder())
		assert.Equal(t, tt.skip, skipper(ctx), "path %s", tt.path)
	}
}

func TestRequestLoggerWritesAccessLine(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	e := echo.New()
	e.Use(NewRequestLoggerWithSkipper(logger, SkipPaths("/quiet")))
	e.GET("/fruit", okHandler)
	e.GET("/quiet", okHandler)

	req := httptest.NewRequest(http.MethodGet, "/fruit", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, buf.String(), `"uri":"/fruit"`)
	assert.Contains(t, buf.String(), `"status":200`)

	buf.Reset()
	req = httptest.NewRequest(http.MethodGet, "/quiet", nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, buf.String(), "skipped paths should not be logged")
}

func TestSecureHeaders(t *testing.T) {
	t.Parallel()

	e := echo.New()
	e.Use(NewSecureHeaders(DefaultSecurityConfig()))
	e.GET("/", okHandler)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "SAMEORIGIN", rec.Header().Get("X-Frame-Options"))
}

func TestBodyLimitRejectsOversizedUploads(t *testing.T) {
	t.Parallel()

	e := echo.New()
	e.Use(NewBodyLimit("1K"))
	e.POST("/upload", okHandler)

	body := bytes.Repeat([]byte("x"), 2048)
	req := httptest.NewRequest(http.MethodPost, "/upload", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

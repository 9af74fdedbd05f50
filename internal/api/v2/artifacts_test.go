package api

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServeArtifact(t *testing.T) {
	t.Parallel()

	settings := testSettings(t)
	c, _ := newTestController(t, settings, &stubDetector{result: countingResult(nil)})

	payload := pngBytes(t)
	require.NoError(t, os.MkdirAll(settings.Artifacts.Path, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(settings.Artifacts.Path, "basket_boxed.png"), payload, 0o644))

	req := httptest.NewRequest(http.MethodGet, "/api/v2/artifacts/basket_boxed.png", nil)
	rec := httptest.NewRecorder()
	ctx := c.Echo.NewContext(req, rec)
	ctx.SetParamNames("filename")
	ctx.SetParamValues("basket_boxed.png")

	require.NoError(t, c.ServeArtifact(ctx))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, payload, rec.Body.Bytes())
}

func TestServeArtifactRejectsTraversal(t *testing.T) {
	t.Parallel()

	settings := testSettings(t)
	c, _ := newTestController(t, settings, &stubDetector{result: countingResult(nil)})

	req := httptest.NewRequest(http.MethodGet, "/api/v2/artifacts/x", nil)
	rec := httptest.NewRecorder()
	ctx := c.Echo.NewContext(req, rec)
	ctx.SetParamNames("filename")
	ctx.SetParamValues("../secrets.yaml")

	require.NoError(t, c.ServeArtifact(ctx))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServeArtifactMissing(t *testing.T) {
	t.Parallel()

	settings := testSettings(t)
	c, _ := newTestController(t, settings, &stubDetector{result: countingResult(nil)})
	require.NoError(t, os.MkdirAll(settings.Artifacts.Path, 0o755))

	req := httptest.NewRequest(http.MethodGet, "/api/v2/artifacts/nope.png", nil)
	rec := httptest.NewRecorder()
	ctx := c.Echo.NewContext(req, rec)
	ctx.SetParamNames("filename")
	ctx.SetParamValues("nope.png")

	require.NoError(t, c.ServeArtifact(ctx))
	require.Equal(t, http.StatusNotFound, rec.Code)

	var errResp ErrorResponse
	require.NoError(t, jsonDecode(rec, &errResp))
	assert.Equal(t, http.StatusNotFound, errResp.Code)
}

func TestValidateArtifactName(t *testing.T) {
	t.Parallel()

	valid := []string{"a.png", "basket_boxed.jpg", "img-07.jpeg", "UPPER.PNG"}
	for _, name := range valid {
		assert.NoError(t, validateArtifactName(name), "expected %q to be accepted", name)
	}

	invalid := []string{"", "../a.png", "a/b.png", "sp ace.png", "semi;colon.png"}
	for _, name := range invalid {
		assert.Error(t, validateArtifactName(name), "expected %q to be rejected", name)
	}
}

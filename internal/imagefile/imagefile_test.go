package imagefile

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/fruitcount-go/internal/conf"
	"github.com/tphakala/fruitcount-go/internal/errors"
)

// testSettings returns settings with temp directories for staging and artifacts.
func testSettings(t *testing.T) *conf.Settings {
	t.Helper()

	settings := &conf.Settings{}
	settings.Upload.Path = t.TempDir()
	settings.Upload.MaxFileSize = 20971520
	settings.Upload.AllowedExtensions = []string{".jpg", ".jpeg", ".png"}
	settings.Artifacts.Enabled = true
	settings.Artifacts.Path = t.TempDir()
	settings.Artifacts.Quality = 90
	settings.Fetch.Enabled = true
	settings.Fetch.Timeout = 5
	settings.Fetch.MaxBytes = 20971520
	settings.Fetch.RequestsPerSecond = 100
	settings.Fetch.Burst = 10
	return settings
}

// pngBytes encodes a small solid image as PNG.
func pngBytes(t *testing.T, width, height int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := range height {
		for x := range width {
			img.SetRGBA(x, y, color.RGBA{R: 200, G: 200, B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestStageWritesUUIDNamedFile(t *testing.T) {
	t.Parallel()

	m, err := NewManager(testSettings(t))
	require.NoError(t, err)

	data := pngBytes(t, 8, 8)
	sf, err := m.Stage(bytes.NewReader(data), "Basket.PNG")
	require.NoError(t, err)

	assert.Equal(t, "Basket.PNG", sf.OriginalName)
	assert.Equal(t, int64(len(data)), sf.Size)
	assert.True(t, strings.HasSuffix(sf.Path, ".png"), "staged name should carry the lower-cased extension")

	onDisk, err := os.ReadFile(sf.Path)
	require.NoError(t, err)
	assert.Equal(t, data, onDisk)
}

func TestStagedFileCleanupRemovesFile(t *testing.T) {
	t.Parallel()

	m, err := NewManager(testSettings(t))
	require.NoError(t, err)

	sf, err := m.Stage(bytes.NewReader(pngBytes(t, 4, 4)), "a.png")
	require.NoError(t, err)

	require.NoError(t, sf.Cleanup())
	_, statErr := os.Stat(sf.Path)
	assert.True(t, os.IsNotExist(statErr), "staged file should be removed")

	// Second cleanup is a no-op.
	require.NoError(t, sf.Cleanup())
}

func TestStagedFileReleaseTransfersOwnership(t *testing.T) {
	t.Parallel()

	m, err := NewManager(testSettings(t))
	require.NoError(t, err)

	sf, err := m.Stage(bytes.NewReader(pngBytes(t, 4, 4)), "a.png")
	require.NoError(t, err)

	sf.Release()
	require.NoError(t, sf.Cleanup())

	_, statErr := os.Stat(sf.Path)
	assert.NoError(t, statErr, "released file must survive cleanup")
	assert.True(t, sf.Released())
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		filename string
		data     []byte
		maxSize  int64
		wantErr  string
	}{
		{
			name:     "valid png",
			filename: "fruit.png",
			data:     nil, // filled with real png below
		},
		{
			name:     "uppercase extension accepted",
			filename: "FRUIT.JPG",
			data:     nil,
		},
		{
			name:     "extension not allowed",
			filename: "fruit.gif",
			wantErr:  "unsupported file type",
		},
		{
			name:     "file too large",
			filename: "fruit.png",
			maxSize:  10,
			wantErr:  "file too large",
		},
		{
			name:     "corrupt image bytes",
			filename: "fruit.jpg",
			data:     []byte("this is not an image"),
			wantErr:  "invalid or corrupted image",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			settings := testSettings(t)
			if tt.maxSize > 0 {
				settings.Upload.MaxFileSize = tt.maxSize
			}
			m, err := NewManager(settings)
			require.NoError(t, err)

			data := tt.data
			if data == nil {
				data = pngBytes(t, 16, 16)
			}
			// The large-file case needs content that exceeds the limit.
			if tt.maxSize > 0 {
				data = pngBytes(t, 64, 64)
			}

			sf, err := m.Stage(bytes.NewReader(data), tt.filename)
			require.NoError(t, err)
			t.Cleanup(func() { _ = sf.Cleanup() })

			err = m.Validate(sf)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.True(t, errors.IsCategory(err, errors.CategoryValidation),
				"rejections must be validation errors, got %v", errors.CategoryOf(err))

			// The validator never deletes the staged file.
			_, statErr := os.Stat(sf.Path)
			assert.NoError(t, statErr)
		})
	}
}

func TestStageCapsOversizedUpload(t *testing.T) {
	t.Parallel()

	settings := testSettings(t)
	settings.Upload.MaxFileSize = 100
	m, err := NewManager(settings)
	require.NoError(t, err)

	sf, err := m.Stage(bytes.NewReader(bytes.Repeat([]byte{0xAB}, 1000)), "big.jpg")
	require.NoError(t, err)
	t.Cleanup(func() { _ = sf.Cleanup() })

	// At most limit+1 bytes hit the disk, enough for Validate to reject.
	assert.Equal(t, int64(101), sf.Size)
	require.Error(t, m.Validate(sf))
}

func TestDecodeImage(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	good := filepath.Join(dir, "good.png")
	require.NoError(t, os.WriteFile(good, pngBytes(t, 12, 9), 0o644))

	img, err := DecodeImage(good)
	require.NoError(t, err)
	assert.Equal(t, 12, img.Bounds().Dx())
	assert.Equal(t, 9, img.Bounds().Dy())

	bad := filepath.Join(dir, "bad.png")
	require.NoError(t, os.WriteFile(bad, []byte("garbage"), 0o644))

	_, err = DecodeImage(bad)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryImageDecode))
}

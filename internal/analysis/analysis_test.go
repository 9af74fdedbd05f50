package analysis

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/fruitcount-go/internal/conf"
	"github.com/tphakala/fruitcount-go/internal/pipeline"
)

func writeTestFile(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

func sampleResult() *pipeline.Result {
	return &pipeline.Result{
		RecordID:        7,
		Filename:        "basket.jpg",
		Counts:          map[string]int{"apple": 2, "banana": 1},
		TotalCount:      3,
		OutputReference: "basket_boxed.jpg",
		ModelName:       "yolov8n",
		ProcessingMs:    42,
	}
}

func TestCollectImages(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeTestFile(t, filepath.Join(root, "b.jpg"))
	writeTestFile(t, filepath.Join(root, "a.PNG"))
	writeTestFile(t, filepath.Join(root, "notes.txt"))
	writeTestFile(t, filepath.Join(root, "sub", "c.jpeg"))

	exts := []string{".jpg", ".jpeg", ".png"}

	files, err := collectImages(root, false, exts)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, "a.PNG"),
		filepath.Join(root, "b.jpg"),
	}, files, "non-recursive walk should skip subdirectories")

	files, err = collectImages(root, true, exts)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, "a.PNG"),
		filepath.Join(root, "b.jpg"),
		filepath.Join(root, "sub", "c.jpeg"),
	}, files)
}

func TestCollectImagesMissingRoot(t *testing.T) {
	t.Parallel()

	_, err := collectImages(filepath.Join(t.TempDir(), "nope"), true, []string{".jpg"})
	require.Error(t, err)
}

func TestRenderResultTable(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, renderResult(&buf, "table", sampleResult()))

	out := buf.String()
	assert.Contains(t, out, "basket.jpg")
	assert.Contains(t, out, "yolov8n")
	assert.Contains(t, out, "Total fruits:")
	assert.Contains(t, out, "Annotated image:")
	assert.Less(t, strings.Index(out, "apple"), strings.Index(out, "banana"),
		"classes should be ordered by count")
}

func TestRenderResultTableIsDefault(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, renderResult(&buf, "", sampleResult()))
	assert.Contains(t, buf.String(), "Total fruits:")
}

func TestRenderResultTableNoFruit(t *testing.T) {
	t.Parallel()

	result := sampleResult()
	result.Counts = nil
	result.TotalCount = 0

	var buf bytes.Buffer
	require.NoError(t, renderResult(&buf, "table", result))
	assert.Contains(t, buf.String(), "No fruit detected")
}

func TestRenderResultCSV(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, renderResult(&buf, "csv", sampleResult()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Filename,Class,Count", lines[0])
	assert.Equal(t, "basket.jpg,apple,2", lines[1])
	assert.Equal(t, "basket.jpg,banana,1", lines[2])
}

func TestRenderResultJSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, renderResult(&buf, "json", sampleResult()))

	var decoded pipeline.Result
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "basket.jpg", decoded.Filename)
	assert.Equal(t, 3, decoded.TotalCount)
	assert.Equal(t, "basket_boxed.jpg", decoded.OutputReference)
}

func TestRenderResultUnknownFormat(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	err := renderResult(&buf, "yaml", sampleResult())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported output format")
}

func TestSaveResultFile(t *testing.T) {
	t.Parallel()

	settings := &conf.Settings{}
	settings.Output.File.Path = t.TempDir()
	settings.Output.File.Type = "csv"

	path, err := saveResultFile(settings, filepath.Join("some", "dir", "basket.jpg"), sampleResult())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(settings.Output.File.Path, "basket.jpg.csv"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "basket.jpg,apple,2")
}

func TestResultExtension(t *testing.T) {
	t.Parallel()

	assert.Equal(t, ".csv", resultExtension("csv"))
	assert.Equal(t, ".json", resultExtension("json"))
	assert.Equal(t, ".txt", resultExtension("table"))
	assert.Equal(t, ".txt", resultExtension(""))
}

func TestSortedCounts(t *testing.T) {
	t.Parallel()

	counts := map[string]int{"banana": 2, "apple": 2, "cherry": 5}
	got := sortedCounts(counts)

	require.Len(t, got, 3)
	assert.Equal(t, classCount{"cherry", 5}, got[0])
	assert.Equal(t, classCount{"apple", 2}, got[1], "ties should break by name")
	assert.Equal(t, classCount{"banana", 2}, got[2])
}

func TestFormatCountsLine(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "no fruit", formatCountsLine(nil))
	assert.Equal(t, "banana=5 apple=2", formatCountsLine(map[string]int{"apple": 2, "banana": 5}))
}

func TestClampInt(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 5, clampInt(5, 1, 8))
	assert.Equal(t, 1, clampInt(0, 1, 8))
	assert.Equal(t, 8, clampInt(12, 1, 8))
}

package errors

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorBuilder(t *testing.T) {
	t.Parallel()

	base := NewStd("model file missing")
	err := New(base).
		Component("detector").
		Category(CategoryModelLoad).
		Priority(PriorityHigh).
		Context("model_path", "model/yolov8n_float32.tflite").
		Build()

	assert.Equal(t, "model file missing", err.Error())
	assert.Equal(t, "detector", err.GetComponent())
	assert.Equal(t, string(CategoryModelLoad), err.GetCategory())
	assert.Equal(t, PriorityHigh, err.GetPriority())
	assert.Equal(t, "model/yolov8n_float32.tflite", err.GetContext()["model_path"])
	assert.WithinDuration(t, time.Now(), err.GetTimestamp(), time.Minute)
}

func TestErrorBuilderDefaults(t *testing.T) {
	t.Parallel()

	err := Newf("boom %d", 42).Build()

	assert.Equal(t, "boom 42", err.Error())
	assert.Equal(t, CategoryGeneric, err.Category)
	assert.Empty(t, err.GetPriority())
}

func TestInvalidPriorityFallsBackToMedium(t *testing.T) {
	t.Parallel()

	err := Newf("x").Priority("urgent!!").Build()
	assert.Equal(t, PriorityMedium, err.GetPriority())
}

func TestUnwrapPreservesChain(t *testing.T) {
	t.Parallel()

	sentinel := NewStd("sentinel")
	wrapped := fmt.Errorf("outer: %w", sentinel)
	err := New(wrapped).Category(CategoryDatabase).Build()

	require.ErrorIs(t, err, sentinel)
	assert.Equal(t, wrapped, Unwrap(err))
}

func TestIsMatchesByCategory(t *testing.T) {
	t.Parallel()

	a := Newf("first").Category(CategoryValidation).Build()
	b := Newf("second").Category(CategoryValidation).Build()
	c := Newf("third").Category(CategoryDatabase).Build()

	assert.ErrorIs(t, a, b)
	assert.NotErrorIs(t, a, c)
}

func TestIsCategory(t *testing.T) {
	t.Parallel()

	err := Newf("bad extension").Category(CategoryValidation).Build()
	wrapped := fmt.Errorf("processing failed: %w", err)

	assert.True(t, IsCategory(err, CategoryValidation))
	assert.True(t, IsCategory(wrapped, CategoryValidation))
	assert.False(t, IsCategory(wrapped, CategoryDatabase))
	assert.False(t, IsCategory(NewStd("plain"), CategoryValidation))
}

func TestCategoryOf(t *testing.T) {
	t.Parallel()

	err := Newf("no rows").Category(CategoryNotFound).Build()

	assert.Equal(t, CategoryNotFound, CategoryOf(err))
	assert.Equal(t, CategoryNotFound, CategoryOf(fmt.Errorf("lookup: %w", err)))
	assert.Equal(t, CategoryGeneric, CategoryOf(NewStd("plain")))
}

func TestValidationErrorHelper(t *testing.T) {
	t.Parallel()

	err := ValidationError("file extension .gif not allowed")

	assert.Equal(t, CategoryValidation, err.Category)
	assert.Equal(t, "file extension .gif not allowed", err.GetMessage())
}

func TestFileContext(t *testing.T) {
	t.Parallel()

	err := Newf("cannot stage upload").
		Category(CategoryFileIO).
		FileContext("/data/uploads/abc123.JPG", 2048).
		Build()

	ctx := err.GetContext()
	assert.Equal(t, "abc123.JPG", ctx["file_name"])
	assert.Equal(t, ".jpg", ctx["file_extension"])
	assert.Equal(t, int64(2048), ctx["file_size_bytes"])
}

func TestGetContextReturnsCopy(t *testing.T) {
	t.Parallel()

	err := Newf("x").Context("k", "v").Build()

	ctx := err.GetContext()
	ctx["k"] = "mutated"

	assert.Equal(t, "v", err.GetContext()["k"])
}

func TestComponentDetectionUnknownByDefault(t *testing.T) {
	t.Parallel()

	// Built from a test function, so no registered component pattern matches.
	err := Newf("x").Build()
	assert.NotEmpty(t, err.GetComponent())
}

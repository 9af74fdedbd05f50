package detector

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rawOutput builds a transposed [attrs, candidates] tensor from per-candidate
// columns, matching the YOLO detection head layout.
func rawOutput(attrs int, columns ...[]float32) []float32 {
	candidates := len(columns)
	raw := make([]float32, attrs*candidates)
	for i, col := range columns {
		for a, v := range col {
			raw[a*candidates+i] = v
		}
	}
	return raw
}

// identityLetterbox maps model coordinates straight to image coordinates.
func identityLetterbox(size int) letterbox {
	return letterbox{scale: 1, origW: size, origH: size}
}

func TestPreprocessLetterboxGeometry(t *testing.T) {
	t.Parallel()

	img := image.NewRGBA(image.Rect(0, 0, 200, 100))
	for y := range 100 {
		for x := range 200 {
			img.SetRGBA(x, y, color.RGBA{R: 255, A: 255})
		}
	}

	input, lb := preprocess(img, 64)
	require.Len(t, input, 64*64*3)

	assert.InDelta(t, 0.32, lb.scale, 1e-9)
	assert.Equal(t, 0, lb.padX)
	assert.Equal(t, 16, lb.padY)
	assert.Equal(t, 200, lb.origW)
	assert.Equal(t, 100, lb.origH)

	// Padding rows carry the letterbox fill value.
	topLeft := (0*64 + 0) * 3
	assert.InDelta(t, float64(letterboxFill), float64(input[topLeft]), 1e-6)

	// The image region is pure red scaled to [0, 1].
	center := ((32)*64 + 32) * 3
	assert.InDelta(t, 1.0, float64(input[center]), 0.01)
	assert.InDelta(t, 0.0, float64(input[center+1]), 0.01)
	assert.InDelta(t, 0.0, float64(input[center+2]), 0.01)
}

func TestPreprocessSquareImageFillsInput(t *testing.T) {
	t.Parallel()

	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	input, lb := preprocess(img, 32)

	require.Len(t, input, 32*32*3)
	assert.Equal(t, 0, lb.padX)
	assert.Equal(t, 0, lb.padY)
	assert.InDelta(t, 1.0, lb.scale, 1e-9)
}

func TestDecodeDetections(t *testing.T) {
	t.Parallel()

	labels := []string{"apple", "banana", "orange"}
	attrs := boxAttributes + len(labels)
	lb := identityLetterbox(640)

	// Columns: cx, cy, w, h, then one score per class.
	raw := rawOutput(attrs,
		[]float32{100, 100, 40, 40, 0.9, 0, 0},  // apple
		[]float32{300, 300, 60, 60, 0, 0.7, 0},  // banana
		[]float32{500, 500, 40, 40, 0, 0, 0.05}, // below threshold
	)

	dets := decodeDetections(raw, attrs, 3, labels, &lb, 0.15, nil)
	require.Len(t, dets, 2)

	assert.Equal(t, "apple", dets[0].Class)
	assert.InDelta(t, 0.9, float64(dets[0].Confidence), 1e-6)
	assert.Equal(t, 80, dets[0].MinX)
	assert.Equal(t, 80, dets[0].MinY)
	assert.Equal(t, 120, dets[0].MaxX)
	assert.Equal(t, 120, dets[0].MaxY)

	assert.Equal(t, "banana", dets[1].Class)
}

func TestDecodeDetectionsRestrictedFilter(t *testing.T) {
	t.Parallel()

	labels := []string{"apple", "banana", "orange"}
	attrs := boxAttributes + len(labels)
	lb := identityLetterbox(640)

	// The banana column would win unrestricted; a filter limited to apple
	// must score only the apple row.
	raw := rawOutput(attrs,
		[]float32{100, 100, 40, 40, 0.3, 0.9, 0},
	)

	filter := resolveClassFilter(labels, []string{"apple"})
	require.True(t, filter.restricted)

	dets := decodeDetections(raw, attrs, 1, labels, &lb, 0.15, filter)
	require.Len(t, dets, 1)
	assert.Equal(t, "apple", dets[0].Class)
	assert.InDelta(t, 0.3, float64(dets[0].Confidence), 1e-6)
}

func TestDecodeDetectionsMapsLetterboxedBoxes(t *testing.T) {
	t.Parallel()

	labels := []string{"apple"}
	attrs := boxAttributes + 1

	// 200x100 source letterboxed into 64: scale 0.32, padY 16.
	lb := letterbox{scale: 0.32, padX: 0, padY: 16, origW: 200, origH: 100}

	// Box centered in the model space at (32, 32) with size 16x16 maps back
	// to a box centered at (100, 50) in the original image.
	raw := rawOutput(attrs, []float32{32, 32, 16, 16, 0.8})

	dets := decodeDetections(raw, attrs, 1, labels, &lb, 0.15, nil)
	require.Len(t, dets, 1)

	assert.Equal(t, 75, dets[0].MinX)
	assert.Equal(t, 25, dets[0].MinY)
	assert.Equal(t, 125, dets[0].MaxX)
	assert.Equal(t, 75, dets[0].MaxY)
}

func TestNonMaxSuppression(t *testing.T) {
	t.Parallel()

	dets := []Detection{
		{Class: "apple", Confidence: 0.9, MinX: 80, MinY: 80, MaxX: 120, MaxY: 120},
		{Class: "apple", Confidence: 0.8, MinX: 85, MinY: 85, MaxX: 125, MaxY: 125},
		{Class: "banana", Confidence: 0.7, MinX: 80, MinY: 80, MaxX: 120, MaxY: 120},
		{Class: "apple", Confidence: 0.6, MinX: 300, MinY: 300, MaxX: 340, MaxY: 340},
	}

	kept := nonMaxSuppression(dets, 0.5)
	require.Len(t, kept, 3)

	// The lower-confidence overlapping apple is suppressed; the overlapping
	// banana survives because suppression is class-aware.
	assert.Equal(t, "apple", kept[0].Class)
	assert.InDelta(t, 0.9, float64(kept[0].Confidence), 1e-6)
	assert.Equal(t, "banana", kept[1].Class)
	assert.Equal(t, "apple", kept[2].Class)
	assert.Equal(t, 300, kept[2].MinX)
}

func TestIntersectionOverUnion(t *testing.T) {
	t.Parallel()

	a := Detection{MinX: 0, MinY: 0, MaxX: 100, MaxY: 100}
	b := Detection{MinX: 50, MinY: 0, MaxX: 150, MaxY: 100}
	// Intersection 50*100, union 100*100*2 - 5000.
	assert.InDelta(t, 5000.0/15000.0, intersectionOverUnion(&a, &b), 1e-9)

	c := Detection{MinX: 200, MinY: 200, MaxX: 300, MaxY: 300}
	assert.Zero(t, intersectionOverUnion(&a, &c))

	assert.InDelta(t, 1.0, intersectionOverUnion(&a, &a), 1e-9)
}

func TestCountDetections(t *testing.T) {
	t.Parallel()

	counts, total := countDetections([]Detection{
		{Class: "apple"},
		{Class: "apple"},
		{Class: "banana"},
	})

	assert.Equal(t, map[string]int{"apple": 2, "banana": 1}, counts)
	assert.Equal(t, 3, total)

	counts, total = countDetections(nil)
	assert.Empty(t, counts)
	assert.Zero(t, total)
	assert.NotNil(t, counts, "empty counts still serialize as an object")
}

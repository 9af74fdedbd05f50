package detector

import (
	"context"
	"fmt"
	"image"
	"sort"
	"strings"
	"time"

	tflite "github.com/tphakala/go-tflite"

	"github.com/tphakala/fruitcount-go/internal/errors"
)

const (
	// boxAttributes is the number of geometry values ahead of the class
	// scores in each output column: cx, cy, w, h.
	boxAttributes = 4

	// letterboxFill is the gray padding value used around the resized image.
	letterboxFill = 114.0 / 255.0
)

// Detection is a single counted instance in original image coordinates.
type Detection struct {
	Class      string
	Confidence float32
	MinX, MinY int
	MaxX, MaxY int
}

// Result is the outcome of analyzing one image.
type Result struct {
	Counts       map[string]int
	TotalCount   int
	Detections   []Detection
	ModelName    string
	ProcessingMs int64
}

// letterbox records how an image was scaled and padded into the square
// model input, so detections can be mapped back.
type letterbox struct {
	scale        float64
	padX, padY   int
	origW, origH int
}

// Detect runs the model on a decoded image and returns per-class counts for
// the configured allow-list. Inference is serialized on the interpreter
// mutex; cancellation is honored before the critical section is entered.
func (d *Detector) Detect(ctx context.Context, img image.Image) (*Result, error) {
	modelName := d.Settings.Detector.ModelName

	bounds := img.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return nil, errors.Newf("image has no pixels: %dx%d", bounds.Dx(), bounds.Dy()).
			Category(errors.CategoryImageDecode).
			Build()
	}

	filter := d.classFilterCached()
	input, lb := preprocess(img, d.inputSize)

	// A caller abandoning the queue must never touch shared tensors.
	if err := ctx.Err(); err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryCancellation).
			Context("operation", "detect_wait").
			Build()
	}

	d.mu.Lock()
	if err := ctx.Err(); err != nil {
		d.mu.Unlock()
		return nil, errors.New(err).
			Category(errors.CategoryCancellation).
			Context("operation", "detect_wait").
			Build()
	}

	start := time.Now()

	inputTensor := d.interpreter.GetInputTensor(0)
	if inputTensor == nil {
		d.mu.Unlock()
		return nil, d.inferenceError(fmt.Errorf("cannot get input tensor"), modelName, start)
	}
	copy(inputTensor.Float32s(), input)

	if status := d.interpreter.Invoke(); status != tflite.OK {
		d.mu.Unlock()
		return nil, d.inferenceError(fmt.Errorf("tensor invoke failed: %v", status), modelName, start)
	}

	outputTensor := d.interpreter.GetOutputTensor(0)
	if outputTensor == nil {
		d.mu.Unlock()
		return nil, d.inferenceError(fmt.Errorf("cannot get output tensor"), modelName, start)
	}

	attrs := outputTensor.Dim(1)
	candidates := outputTensor.Dim(2)
	raw := make([]float32, attrs*candidates)
	copy(raw, outputTensor.Float32s())
	d.mu.Unlock()

	invokeSeconds := time.Since(start).Seconds()

	decodeStart := time.Now()
	dets := decodeDetections(raw, attrs, candidates, d.labels, &lb,
		float32(d.Settings.Detector.Confidence), filter)
	dets = nonMaxSuppression(dets, float32(d.Settings.Detector.IoU))
	dets = filter.postFilter(dets)
	counts, total := countDetections(dets)
	elapsed := time.Since(start)

	if d.metrics != nil {
		d.metrics.RecordInference(modelName, invokeSeconds, nil)
		d.metrics.RecordDecode(modelName, time.Since(decodeStart).Seconds())
		d.metrics.SetProcessTime(float64(elapsed.Milliseconds()))
		for class, n := range counts {
			d.metrics.AddDetections(class, float64(n))
		}
	}

	d.log.Debug("Image analyzed",
		"model", modelName,
		"detections", len(dets),
		"total_count", total,
		"elapsed_ms", elapsed.Milliseconds())

	return &Result{
		Counts:       counts,
		TotalCount:   total,
		Detections:   dets,
		ModelName:    modelName,
		ProcessingMs: elapsed.Milliseconds(),
	}, nil
}

// inferenceError wraps an interpreter failure and reports it to metrics.
func (d *Detector) inferenceError(err error, modelName string, start time.Time) error {
	enhanced := errors.New(err).
		Category(errors.CategoryInference).
		ModelContext(d.Settings.Detector.ModelPath, modelName).
		Timing("inference", time.Since(start)).
		Build()
	if d.metrics != nil {
		d.metrics.RecordInference(modelName, time.Since(start).Seconds(), enhanced)
	}
	return enhanced
}

// preprocess letterboxes the image into a square RGB float tensor in NHWC
// layout, pixel values scaled to [0, 1].
func preprocess(img image.Image, size int) ([]float32, letterbox) {
	bounds := img.Bounds()
	origW, origH := bounds.Dx(), bounds.Dy()

	scale := min(float64(size)/float64(origW), float64(size)/float64(origH))
	newW := int(float64(origW)*scale + 0.5)
	newH := int(float64(origH)*scale + 0.5)
	newW = min(max(newW, 1), size)
	newH = min(max(newH, 1), size)
	padX := (size - newW) / 2
	padY := (size - newH) / 2

	input := make([]float32, size*size*3)
	for i := range input {
		input[i] = letterboxFill
	}

	// Nearest neighbor resize into the padded region.
	for y := range newH {
		srcY := bounds.Min.Y + min(int(float64(y)/scale), origH-1)
		rowBase := (y + padY) * size
		for x := range newW {
			srcX := bounds.Min.X + min(int(float64(x)/scale), origW-1)
			r, g, b, _ := img.At(srcX, srcY).RGBA()
			idx := (rowBase + x + padX) * 3
			input[idx] = float32(r>>8) / 255.0
			input[idx+1] = float32(g>>8) / 255.0
			input[idx+2] = float32(b>>8) / 255.0
		}
	}

	return input, letterbox{scale: scale, padX: padX, padY: padY, origW: origW, origH: origH}
}

// decodeDetections converts raw YOLO-family output in [attrs, candidates]
// transposed layout into detections in original image coordinates. With a
// restricted filter only the allow-listed class rows are scored.
func decodeDetections(raw []float32, attrs, candidates int, labels []string, lb *letterbox, confThreshold float32, filter *classFilter) []Detection {
	if attrs <= boxAttributes || candidates <= 0 || len(raw) < attrs*candidates {
		return nil
	}
	numClasses := min(attrs-boxAttributes, len(labels))

	var dets []Detection
	for i := range candidates {
		bestClass := -1
		var bestScore float32

		if filter != nil && filter.restricted {
			for cls := range filter.ids {
				if cls >= numClasses {
					continue
				}
				if score := raw[(boxAttributes+cls)*candidates+i]; score > bestScore {
					bestScore = score
					bestClass = cls
				}
			}
		} else {
			for cls := range numClasses {
				if score := raw[(boxAttributes+cls)*candidates+i]; score > bestScore {
					bestScore = score
					bestClass = cls
				}
			}
		}

		if bestClass < 0 || bestScore < confThreshold {
			continue
		}

		cx := float64(raw[0*candidates+i])
		cy := float64(raw[1*candidates+i])
		w := float64(raw[2*candidates+i])
		h := float64(raw[3*candidates+i])

		minX := int((cx-w/2-float64(lb.padX))/lb.scale + 0.5)
		minY := int((cy-h/2-float64(lb.padY))/lb.scale + 0.5)
		maxX := int((cx+w/2-float64(lb.padX))/lb.scale + 0.5)
		maxY := int((cy+h/2-float64(lb.padY))/lb.scale + 0.5)

		minX = min(max(minX, 0), lb.origW-1)
		minY = min(max(minY, 0), lb.origH-1)
		maxX = min(max(maxX, 0), lb.origW-1)
		maxY = min(max(maxY, 0), lb.origH-1)
		if maxX <= minX || maxY <= minY {
			continue
		}

		dets = append(dets, Detection{
			Class:      strings.ToLower(labels[bestClass]),
			Confidence: bestScore,
			MinX:       minX,
			MinY:       minY,
			MaxX:       maxX,
			MaxY:       maxY,
		})
	}
	return dets
}

// nonMaxSuppression greedily keeps the highest confidence detection in each
// overlapping same-class cluster.
func nonMaxSuppression(dets []Detection, iouThreshold float32) []Detection {
	if len(dets) <= 1 {
		return dets
	}

	sort.SliceStable(dets, func(i, j int) bool {
		return dets[i].Confidence > dets[j].Confidence
	})

	kept := make([]Detection, 0, len(dets))
	for _, candidate := range dets {
		overlaps := false
		for i := range kept {
			if kept[i].Class != candidate.Class {
				continue
			}
			if intersectionOverUnion(&kept[i], &candidate) > float64(iouThreshold) {
				overlaps = true
				break
			}
		}
		if !overlaps {
			kept = append(kept, candidate)
		}
	}
	return kept
}

// intersectionOverUnion computes box overlap as intersection area over union area.
func intersectionOverUnion(a, b *Detection) float64 {
	interMinX := max(a.MinX, b.MinX)
	interMinY := max(a.MinY, b.MinY)
	interMaxX := min(a.MaxX, b.MaxX)
	interMaxY := min(a.MaxY, b.MaxY)

	interW := interMaxX - interMinX
	interH := interMaxY - interMinY
	if interW <= 0 || interH <= 0 {
		return 0
	}

	interArea := float64(interW) * float64(interH)
	areaA := float64(a.MaxX-a.MinX) * float64(a.MaxY-a.MinY)
	areaB := float64(b.MaxX-b.MinX) * float64(b.MaxY-b.MinY)

	union := areaA + areaB - interArea
	if union <= 0 {
		return 0
	}
	return interArea / union
}

// countDetections aggregates per-class counts. Only classes with at least
// one detection appear in the map, absent means zero.
func countDetections(dets []Detection) (counts map[string]int, total int) {
	counts = make(map[string]int)
	for i := range dets {
		counts[dets[i].Class]++
		total++
	}
	return counts, total
}

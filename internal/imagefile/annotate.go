package imagefile

import (
	"hash/fnv"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"

	"github.com/tphakala/fruitcount-go/internal/errors"
)

// Box is a detection rectangle in original image coordinates, used for
// rendering annotated artifacts.
type Box struct {
	MinX, MinY, MaxX, MaxY int
	Class                  string
	Confidence             float32
}

// boxThickness is the outline width in pixels for annotated boxes.
const boxThickness = 3

// classColors assigns stable colors to the common fruit classes. Classes
// outside this map fall back to a hashed palette entry.
var classColors = map[string]color.RGBA{
	"apple":  {R: 220, G: 40, B: 40, A: 255},
	"banana": {R: 240, G: 200, B: 40, A: 255},
	"orange": {R: 245, G: 130, B: 30, A: 255},
}

var fallbackPalette = []color.RGBA{
	{R: 60, G: 180, B: 75, A: 255},
	{R: 0, G: 130, B: 200, A: 255},
	{R: 145, G: 30, B: 180, A: 255},
	{R: 70, G: 240, B: 240, A: 255},
	{R: 240, G: 50, B: 230, A: 255},
	{R: 128, G: 128, B: 0, A: 255},
}

// classColor returns the rendering color for a class name.
func classColor(class string) color.RGBA {
	if c, ok := classColors[strings.ToLower(class)]; ok {
		return c
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(strings.ToLower(class)))
	return fallbackPalette[int(h.Sum32())%len(fallbackPalette)]
}

// Annotate returns a copy of img with detection boxes drawn as colored
// outlines. The source image is never modified.
func Annotate(img image.Image, boxes []Box) *image.RGBA {
	dst := image.NewRGBA(img.Bounds())
	draw.Draw(dst, dst.Bounds(), img, img.Bounds().Min, draw.Src)

	for i := range boxes {
		drawBox(dst, &boxes[i])
	}
	return dst
}

// drawBox draws a rectangle outline clamped to the image bounds.
func drawBox(dst *image.RGBA, b *Box) {
	bounds := dst.Bounds()
	minX := max(b.MinX, bounds.Min.X)
	minY := max(b.MinY, bounds.Min.Y)
	maxX := min(b.MaxX, bounds.Max.X-1)
	maxY := min(b.MaxY, bounds.Max.Y-1)
	if minX >= maxX || minY >= maxY {
		return
	}

	c := classColor(b.Class)
	for t := range boxThickness {
		rect(dst, minX+t, minY+t, maxX-t, maxY-t, c)
	}
}

// rect draws a one-pixel rectangle outline.
func rect(dst *image.RGBA, minX, minY, maxX, maxY int, c color.RGBA) {
	if minX >= maxX || minY >= maxY {
		return
	}
	for x := minX; x <= maxX; x++ {
		dst.SetRGBA(x, minY, c)
		dst.SetRGBA(x, maxY, c)
	}
	for y := minY; y <= maxY; y++ {
		dst.SetRGBA(minX, y, c)
		dst.SetRGBA(maxX, y, c)
	}
}

// SaveAnnotated renders boxes onto img and writes a JPEG to the artifacts
// directory. It returns the artifact filename to be stored as the request's
// output reference. Rendering quality comes from the artifacts settings.
func (m *Manager) SaveAnnotated(img image.Image, boxes []Box, baseName string) (string, error) {
	name := strings.TrimSuffix(baseName, filepath.Ext(baseName)) + "_annotated.jpg"
	outPath := filepath.Join(m.settings.Artifacts.Path, name)

	annotated := Annotate(img, boxes)

	out, err := os.Create(outPath)
	if err != nil {
		return "", errors.New(err).
			Category(errors.CategoryArtifact).
			Context("operation", "artifact_create").
			Context("path", outPath).
			Build()
	}

	encodeErr := jpeg.Encode(out, annotated, &jpeg.Options{Quality: m.settings.Artifacts.Quality})
	closeErr := out.Close()

	if encodeErr == nil {
		encodeErr = closeErr
	}
	if encodeErr != nil {
		if rmErr := os.Remove(outPath); rmErr != nil && !os.IsNotExist(rmErr) {
			m.log.Warn("Failed to remove partial artifact", "path", outPath, "error", rmErr)
		}
		return "", errors.New(encodeErr).
			Category(errors.CategoryArtifact).
			Context("operation", "artifact_encode").
			Context("path", outPath).
			Build()
	}

	m.log.Debug("Saved annotated artifact", "path", outPath, "boxes", len(boxes))
	return name, nil
}

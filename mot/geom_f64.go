package mot

import (
	"image"
	"math"

	"github.com/pkg/errors"
)

// Rectangle is an axis-aligned bounding box. All rectangles passed to a single
// Update call must share the same coordinate space.
type Rectangle struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

func NewRect(x, y, width, height float64) Rectangle {
	return Rectangle{
		X:      x,
		Y:      y,
		Width:  width,
		Height: height,
	}
}

func NewRectFrom(rect image.Rectangle) Rectangle {
	return Rectangle{
		X:      float64(rect.Min.X),
		Y:      float64(rect.Min.Y),
		Width:  float64(rect.Dx()),
		Height: float64(rect.Dy()),
	}
}

// Center returns the centroid of the rectangle
func (rect Rectangle) Center() Point {
	return Point{
		X: rect.X + rect.Width/2.0,
		Y: rect.Y + rect.Height/2.0,
	}
}

// Validate reports ErrMalformedInput for negative sizes and non-finite coordinates
func (rect Rectangle) Validate() error {
	for _, v := range [4]float64{rect.X, rect.Y, rect.Width, rect.Height} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.Wrapf(ErrMalformedInput, "non-finite rectangle %+v", rect)
		}
	}
	if rect.Width < 0 || rect.Height < 0 {
		return errors.Wrapf(ErrMalformedInput, "negative size %.2fx%.2f", rect.Width, rect.Height)
	}
	return nil
}

// Point is a 2-D position. Centroids of tracked objects are Points.
type Point struct {
	X float64
	Y float64
}

func NewPoint(x, y float64) Point {
	return Point{
		X: x,
		Y: y,
	}
}

func euclideanDistance(p1, p2 Point) float64 {
	return math.Sqrt(math.Pow(p1.X-p2.X, 2) + math.Pow(p1.Y-p2.Y, 2))
}

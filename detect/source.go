// Package detect is the boundary between the counting engine and whatever
// produces bounding boxes: a neural detector, a visual tracker filling the
// gaps between detections, or a recording of either.
package detect

import (
	"context"

	"github.com/LdDl/crossline/mot"
)

// DefaultClass is the class counted by default
const DefaultClass = "person"

// Detection is a single bounding box reported by a detector
type Detection struct {
	Box        mot.Rectangle
	Confidence float64
	Class      string
}

// Frame holds detections of a single video frame
type Frame struct {
	Index      int64
	Detections []Detection
}

// BoxSource produces detections frame by frame.
// NextFrame returns io.EOF when there are no more frames.
type BoxSource interface {
	NextFrame(ctx context.Context) (Frame, error)
}

package detect

import (
	"math"

	"github.com/LdDl/crossline/mot"
)

// Filter selects detections which should be tracked
type Filter struct {
	// Detections with confidence not greater than this are dropped
	MinConfidence float64
	// Only detections of this class are kept. Empty means any class
	Class string
}

// Apply returns boxes of accepted detections in their original order.
// Box origin is clamped to zero and size to 1px minimum (the size is not
// shrunk by clamping). Negative sizes are kept as is so the tracker can reject the frame.
func (filter Filter) Apply(frame Frame) []mot.Rectangle {
	rects := make([]mot.Rectangle, 0, len(frame.Detections))
	for _, detection := range frame.Detections {
		if detection.Confidence <= filter.MinConfidence {
			continue
		}
		if filter.Class != "" && detection.Class != filter.Class {
			continue
		}
		rects = append(rects, clamp(detection.Box))
	}
	return rects
}

func clamp(rect mot.Rectangle) mot.Rectangle {
	rect.X = math.Max(rect.X, 0)
	rect.Y = math.Max(rect.Y, 0)
	if rect.Width >= 0 {
		rect.Width = math.Max(rect.Width, 1)
	}
	if rect.Height >= 0 {
		rect.Height = math.Max(rect.Height, 1)
	}
	return rect
}

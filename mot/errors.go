package mot

import "github.com/pkg/errors"

var (
	// ErrInvalidConfig is returned by constructors. It is fatal: the tracker is not created.
	ErrInvalidConfig = errors.New("invalid tracker configuration")
	// ErrMalformedInput means the frame's detections must be discarded.
	// The caller should treat such frame as having zero detections.
	ErrMalformedInput = errors.New("malformed detections")
	// ErrAssociation means no valid assignment could be produced for the frame.
	// Registry is left untouched; the caller skips counting and goes on with the next frame.
	ErrAssociation = errors.New("association failed")
)

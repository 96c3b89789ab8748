package mot

import (
	kalman_filter "github.com/LdDl/kalman-filter"
	"github.com/pkg/errors"
)

const (
	// DefaultMaxTrackLen is the default cap on the number of centroids kept per object
	DefaultMaxTrackLen = 50
)

// Direction is the vertical movement direction inferred from the last two centroids
type Direction uint8

const (
	// DirectionUnknown is used until an object has at least two centroids
	DirectionUnknown Direction = iota
	// DirectionUp means the object moved towards smaller Y (entering)
	DirectionUp
	// DirectionDown means the object moved towards bigger Y or stayed (exiting)
	DirectionDown
)

func (d Direction) String() string {
	switch d {
	case DirectionUp:
		return "up"
	case DirectionDown:
		return "down"
	default:
		return "unknown"
	}
}

// Action returns counting verb for the direction: "entered" for Up, "exited" for Down
func (d Direction) Action() string {
	switch d {
	case DirectionUp:
		return "entered"
	case DirectionDown:
		return "exited"
	default:
		return ""
	}
}

// TrackableObject is a single tracked identity. It is owned by CentroidTracker
// and must not be retained by the caller across Update calls.
type TrackableObject struct {
	id            uint64
	track         []Point
	maxTrackLen   int
	counted       bool
	lastDirection Direction
	estimate      Point
	estimator     *kalman_filter.Kalman2D
}

func newTrackableObject(id uint64, center Point, maxTrackLen int, dt float64) *TrackableObject {
	/* Kalman filter props */
	ux := 1.0
	uy := 1.0
	stdDevA := 2.0
	stdDevMx := 0.1
	stdDevMy := 0.1
	var kf *kalman_filter.Kalman2D
	if dt > 0 {
		kf = kalman_filter.NewKalman2D(dt, ux, uy, stdDevA, stdDevMx, stdDevMy, kalman_filter.WithState2D(center.X, center.Y))
	}
	object := TrackableObject{
		id:            id,
		track:         make([]Point, 0, maxTrackLen+1),
		maxTrackLen:   maxTrackLen,
		counted:       false,
		lastDirection: DirectionUnknown,
		estimate:      center,
		estimator:     kf,
	}
	object.track = append(object.track, center)
	return &object
}

// ID returns object's identity
func (object *TrackableObject) ID() uint64 {
	return object.id
}

// GetCenter returns the latest centroid
func (object *TrackableObject) GetCenter() Point {
	return object.track[len(object.track)-1]
}

// GetTrack returns a copy of the centroid history, oldest first
func (object *TrackableObject) GetTrack() []Point {
	track := make([]Point, len(object.track))
	copy(track, object.track)
	return track
}

// GetMaxTrackLen returns object's max track length
func (object *TrackableObject) GetMaxTrackLen() int {
	return object.maxTrackLen
}

// Counted reports whether crossing event has been fired for this object
func (object *TrackableObject) Counted() bool {
	return object.counted
}

// LastDirection returns direction inferred on the latest evaluation
func (object *TrackableObject) LastDirection() Direction {
	return object.lastDirection
}

// Estimate returns Kalman-smoothed position. It keeps moving on frames where
// the object was not matched, so it is useful for drawing coasting objects.
// When smoothing is disabled it equals GetCenter().
func (object *TrackableObject) Estimate() Point {
	return object.estimate
}

// observe appends a matched centroid and trims the history to maxTrackLen.
// History is updated even if the Kalman step fails.
func (object *TrackableObject) observe(center Point) error {
	object.track = append(object.track, center)
	if len(object.track) > object.maxTrackLen {
		object.track = object.track[len(object.track)-object.maxTrackLen:]
	}
	if object.estimator == nil {
		object.estimate = center
		return nil
	}
	object.estimator.Predict()
	err := object.estimator.Update(center.X, center.Y)
	if err != nil {
		object.estimate = center
		return errors.Wrapf(err, "Can't update estimator of object %d", object.id)
	}
	object.estimate.X, object.estimate.Y = object.estimator.GetState()
	return nil
}

// coast advances the estimate on a frame without a match
func (object *TrackableObject) coast() {
	if object.estimator == nil {
		return
	}
	object.estimator.Predict()
	object.estimate.X, object.estimate.Y = object.estimator.GetState()
}

// inferDirection compares the last two centroids. Equal Y resolves to Down.
func (object *TrackableObject) inferDirection() (Direction, bool) {
	n := len(object.track)
	if n < 2 {
		return DirectionUnknown, false
	}
	prevY := object.track[n-2].Y
	currentY := object.track[n-1].Y
	if currentY < prevY {
		return DirectionUp, true
	}
	return DirectionDown, true
}

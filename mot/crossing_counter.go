package mot

import (
	"log/slog"

	"github.com/google/uuid"
)

// CrossingEvent is fired once per object when it crosses the zone line
type CrossingEvent struct {
	// Unique key of the event (for telemetry deduplication)
	EventID   uuid.UUID
	ObjectID  uint64
	Direction Direction
	// Centroid at the moment of crossing
	Position Point
}

// CrossingCounter derives one-shot directional crossing events from the tracker state.
// It keeps no counters of its own: the only state is the per-object latch inside TrackableObject.
type CrossingCounter struct {
	// Horizontal zone line
	zoneY  float64
	logger *slog.Logger
}

// CounterOption configures CrossingCounter
type CounterOption func(*CrossingCounter)

// WithCounterLogger sets logger for crossing events
func WithCounterLogger(logger *slog.Logger) CounterOption {
	return func(counter *CrossingCounter) {
		if logger != nil {
			counter.logger = logger
		}
	}
}

// NewCrossingCounter creates counter for horizontal line at zoneY
func NewCrossingCounter(zoneY float64, options ...CounterOption) *CrossingCounter {
	counter := &CrossingCounter{
		zoneY:  zoneY,
		logger: discardLogger(),
	}
	for _, option := range options {
		option(counter)
	}
	return counter
}

// ZoneY returns position of the zone line
func (counter *CrossingCounter) ZoneY() float64 {
	return counter.zoneY
}

// Evaluate updates direction of every object present in centroids (output of CentroidTracker.Update)
// and returns crossing events fired on this frame ordered by object identity.
//
// Object crosses when it moves up and is above the line, or moves down and is below it.
// Once counted, the object never fires again.
func (counter *CrossingCounter) Evaluate(tracker *CentroidTracker, centroids map[uint64]Point) []CrossingEvent {
	events := make([]CrossingEvent, 0)
	for _, objectID := range sortedKeys(centroids) {
		object, ok := tracker.Object(objectID)
		if !ok {
			continue
		}
		direction, ok := object.inferDirection()
		if !ok {
			continue
		}
		currentY := object.GetCenter().Y
		if !object.counted {
			crossed := (direction == DirectionUp && currentY < counter.zoneY) ||
				(direction == DirectionDown && currentY > counter.zoneY)
			if crossed {
				object.counted = true
				event := CrossingEvent{
					EventID:   uuid.New(),
					ObjectID:  objectID,
					Direction: direction,
					Position:  object.GetCenter(),
				}
				events = append(events, event)
				counter.logger.Info("object "+direction.Action(), "object_id", objectID, "y", currentY, "zone_y", counter.zoneY)
			}
		}
		object.lastDirection = direction
	}
	return events
}

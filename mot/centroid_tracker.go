package mot

import (
	"io"
	"log/slog"
	"math"
	"runtime"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// MatchingAlgorithm is for algorithm type for matching detections to tracked objects
type MatchingAlgorithm uint16

const (
	// MatchingAlgorithmAuto uses greedy matching when both tracked objects and detections
	// are few (see WithGreedyLimit) and the Hungarian algorithm otherwise
	MatchingAlgorithmAuto MatchingAlgorithm = iota
	// MatchingAlgorithmHungarian uses the Hungarian algorithm (Kuhn-Munkres) for optimal assignment
	MatchingAlgorithmHungarian
	// MatchingAlgorithmGreedy uses a greedy algorithm for faster but potentially suboptimal assignment
	MatchingAlgorithmGreedy
)

func (algorithm MatchingAlgorithm) String() string {
	switch algorithm {
	case MatchingAlgorithmAuto:
		return "auto"
	case MatchingAlgorithmHungarian:
		return "hungarian"
	case MatchingAlgorithmGreedy:
		return "greedy"
	default:
		return "unknown"
	}
}

const (
	// DefaultGreedyLimit is the max number of objects and detections handled by greedy path in auto mode
	DefaultGreedyLimit = 5
)

// CentroidTracker is a centroid based Multi-object tracker (MOT).
// It is not safe for concurrent use: Update is expected to be called from a single frame loop.
type CentroidTracker struct {
	// Main storage
	objects map[uint64]*TrackableObject
	// Consecutive misses. Present only for registered objects which missed at least one frame
	disappeared map[uint64]int
	// Next identity to assign. Never decreases, identities are never reused
	nextID uint64
	// Max number of consecutive frames when object could not be found again. Default is 3
	maxDisappeared int
	// Threshold distance between centroids on consecutive frames (most of time in pixels). Default is 20.0
	maxDistance float64
	// Max number of centroids kept per object. Default is 50
	maxTrackLen int
	// Objects and detections limit for greedy path in auto mode
	greedyLimit int
	// Algorithm to use for matching
	algorithm MatchingAlgorithm
	// Time step for Kalman estimate. Zero disables smoothing
	dt     float64
	logger *slog.Logger
}

// TrackerOption configures CentroidTracker
type TrackerOption func(*CentroidTracker)

// WithMatchingAlgorithm forces matching algorithm. Default is MatchingAlgorithmAuto
func WithMatchingAlgorithm(algorithm MatchingAlgorithm) TrackerOption {
	return func(tracker *CentroidTracker) {
		tracker.algorithm = algorithm
	}
}

// WithMaxTrackLen sets max number of centroids kept per object
func WithMaxTrackLen(maxTrackLen int) TrackerOption {
	return func(tracker *CentroidTracker) {
		tracker.maxTrackLen = maxTrackLen
	}
}

// WithGreedyLimit sets the objects/detections count up to which auto mode uses greedy matching
func WithGreedyLimit(limit int) TrackerOption {
	return func(tracker *CentroidTracker) {
		tracker.greedyLimit = limit
	}
}

// WithSmoothing sets time step for Kalman estimates of objects. Zero disables smoothing
func WithSmoothing(dt float64) TrackerOption {
	return func(tracker *CentroidTracker) {
		tracker.dt = dt
	}
}

// WithLogger sets logger. By default nothing is logged
func WithLogger(logger *slog.Logger) TrackerOption {
	return func(tracker *CentroidTracker) {
		if logger != nil {
			tracker.logger = logger
		}
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// NewCentroidTrackerDefault creates default instance of CentroidTracker: maxDisappeared=3, maxDistance=20.0
func NewCentroidTrackerDefault() *CentroidTracker {
	tracker, err := NewCentroidTracker(3, 20.0)
	if err != nil {
		panic(err)
	}
	return tracker
}

// NewCentroidTracker creates new instance of CentroidTracker.
// Object is removed once it has not been matched for more than maxDisappeared consecutive frames.
// Detection is matched to an object only if centroids are not farther than maxDistance.
func NewCentroidTracker(maxDisappeared int, maxDistance float64, options ...TrackerOption) (*CentroidTracker, error) {
	tracker := &CentroidTracker{
		objects:        make(map[uint64]*TrackableObject),
		disappeared:    make(map[uint64]int),
		nextID:         0,
		maxDisappeared: maxDisappeared,
		maxDistance:    maxDistance,
		maxTrackLen:    DefaultMaxTrackLen,
		greedyLimit:    DefaultGreedyLimit,
		algorithm:      MatchingAlgorithmAuto,
		dt:             1.0,
		logger:         discardLogger(),
	}
	for _, option := range options {
		option(tracker)
	}
	if err := tracker.validate(); err != nil {
		return nil, err
	}
	return tracker, nil
}

func (tracker *CentroidTracker) validate() error {
	if tracker.maxDisappeared <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "max disappeared should be > 0, got %d", tracker.maxDisappeared)
	}
	if !(tracker.maxDistance > 0) || math.IsInf(tracker.maxDistance, 0) {
		return errors.Wrapf(ErrInvalidConfig, "max distance should be positive and finite, got %f", tracker.maxDistance)
	}
	if math.Round(tracker.maxDistance*CostScale) >= float64(ForbiddenCost) {
		return errors.Wrapf(ErrInvalidConfig, "max distance %f is too big for integer costs", tracker.maxDistance)
	}
	if tracker.maxTrackLen < 2 {
		return errors.Wrapf(ErrInvalidConfig, "max track length should be >= 2, got %d", tracker.maxTrackLen)
	}
	if tracker.greedyLimit < 0 {
		return errors.Wrapf(ErrInvalidConfig, "greedy limit should be >= 0, got %d", tracker.greedyLimit)
	}
	if tracker.dt < 0 {
		return errors.Wrapf(ErrInvalidConfig, "smoothing time step should be >= 0, got %f", tracker.dt)
	}
	switch tracker.algorithm {
	case MatchingAlgorithmAuto, MatchingAlgorithmHungarian, MatchingAlgorithmGreedy:
	default:
		return errors.Wrapf(ErrInvalidConfig, "unknown matching algorithm %d", tracker.algorithm)
	}
	return nil
}

// match pairs a row of the current association (index into sorted identities) with an input index
type match struct {
	row   int
	input int
}

// Update matches bounding boxes of the current frame to tracked objects.
// It returns the latest centroid of every registered object.
//
// Update runs in two phases: a read-only association phase which produces a
// list of matches, then a sequential phase mutating the registry. When it
// returns an error the registry is left untouched.
func (tracker *CentroidTracker) Update(rects []Rectangle) (map[uint64]Point, error) {
	input := make([]Point, len(rects))
	for j, rect := range rects {
		if err := rect.Validate(); err != nil {
			return nil, errors.Wrapf(err, "detection %d", j)
		}
		input[j] = rect.Center()
	}

	if len(tracker.objects) == 0 {
		for _, center := range input {
			tracker.register(center)
		}
		return tracker.currentCentroids(), nil
	}

	ids := sortedKeys(tracker.objects)
	matches, err := tracker.associate(ids, input)
	if err != nil {
		return nil, err
	}
	tracker.apply(ids, input, matches)
	return tracker.currentCentroids(), nil
}

// associate is the read-only phase of Update
func (tracker *CentroidTracker) associate(ids []uint64, input []Point) ([]match, error) {
	if len(input) == 0 {
		return nil, nil
	}
	switch tracker.pickAlgorithm(len(ids), len(input)) {
	case MatchingAlgorithmGreedy:
		lastCentroids, err := tracker.lastCentroids(ids)
		if err != nil {
			return nil, err
		}
		return tracker.greedyMatch(lastCentroids, input), nil
	default:
		return tracker.optimalMatch(ids, input)
	}
}

// lastCentroids snapshots the latest centroid of every object in ids
func (tracker *CentroidTracker) lastCentroids(ids []uint64) ([]Point, error) {
	centroids := make([]Point, 0, len(ids))
	for _, id := range ids {
		object, ok := tracker.objects[id]
		if !ok {
			return nil, errors.Wrapf(ErrAssociation, "object %d is not registered", id)
		}
		if len(object.track) == 0 {
			return nil, errors.Wrapf(ErrAssociation, "object %d has no centroids", id)
		}
		centroids = append(centroids, object.GetCenter())
	}
	return centroids, nil
}

func (tracker *CentroidTracker) pickAlgorithm(numObjects, numDetections int) MatchingAlgorithm {
	if tracker.algorithm != MatchingAlgorithmAuto {
		return tracker.algorithm
	}
	if numObjects <= tracker.greedyLimit && numDetections <= tracker.greedyLimit {
		return MatchingAlgorithmGreedy
	}
	return MatchingAlgorithmHungarian
}

// greedyMatch lets objects claim their closest free detection one by one in ascending identity order.
// Ties go to the lowest detection index.
func (tracker *CentroidTracker) greedyMatch(lastCentroids []Point, input []Point) []match {
	matches := make([]match, 0)
	used := make([]bool, len(input))
	for i, lastCentroid := range lastCentroids {
		bestIdx := -1
		bestDistance := math.Inf(1)
		for j := range input {
			if used[j] {
				continue
			}
			distance := euclideanDistance(lastCentroid, input[j])
			if distance < bestDistance {
				bestDistance = distance
				bestIdx = j
			}
		}
		if bestIdx != -1 && bestDistance <= tracker.maxDistance {
			matches = append(matches, match{row: i, input: bestIdx})
			used[bestIdx] = true
		}
	}
	return matches
}

// optimalMatch finds assignment with minimal total integer cost
func (tracker *CentroidTracker) optimalMatch(ids []uint64, input []Point) ([]match, error) {
	cost, err := tracker.costMatrix(ids, input)
	if err != nil {
		return nil, err
	}
	numObjects := len(ids)
	numDetections := len(input)
	assignment, err := HungarianMin(padSquare(cost, numObjects, numDetections))
	if err != nil {
		return nil, errors.Wrapf(err, "can't solve %dx%d assignment", numObjects, numDetections)
	}
	matches := make([]match, 0, len(assignment))
	for i := 0; i < numObjects; i++ {
		j := assignment[i]
		// Dummy column or gated cell
		if j >= numDetections || cost[i][j] >= ForbiddenCost {
			continue
		}
		matches = append(matches, match{row: i, input: j})
	}
	return matches, nil
}

// costMatrix builds numObjects×numDetections integer costs from the distance matrix
func (tracker *CentroidTracker) costMatrix(ids []uint64, input []Point) ([][]int64, error) {
	numObjects := len(ids)
	numDetections := len(input)
	if numObjects == 0 || numDetections == 0 {
		return nil, errors.Wrapf(ErrAssociation, "can't build %dx%d cost matrix", numObjects, numDetections)
	}
	lastCentroids, err := tracker.lastCentroids(ids)
	if err != nil {
		return nil, err
	}
	distances, err := distanceMatrix(lastCentroids, input)
	if err != nil {
		return nil, err
	}
	return quantizeCosts(distances, numObjects, numDetections, tracker.maxDistance)
}

// distanceMatrix fills Euclidean distances between last centroids and detections.
// Rows are filled concurrently: each row reads only its own centroid and the input.
func distanceMatrix(lastCentroids, input []Point) (*mat.Dense, error) {
	distances := mat.NewDense(len(lastCentroids), len(input), nil)
	var group errgroup.Group
	group.SetLimit(runtime.GOMAXPROCS(0))
	for i := range lastCentroids {
		group.Go(func() error {
			row := distances.RawRowView(i)
			for j := range input {
				row[j] = euclideanDistance(lastCentroids[i], input[j])
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, errors.Wrapf(ErrAssociation, "can't fill distance matrix: %v", err)
	}
	return distances, nil
}

// quantizeCosts converts distances to integer costs. Gated cells get ForbiddenCost.
func quantizeCosts(distances mat.Matrix, numObjects, numDetections int, maxDistance float64) ([][]int64, error) {
	rows, cols := distances.Dims()
	if rows != numObjects || cols != numDetections {
		return nil, errors.Wrapf(ErrAssociation, "distance matrix is %dx%d, expected %dx%d", rows, cols, numObjects, numDetections)
	}
	cost := make([][]int64, rows)
	for i := range cost {
		cost[i] = make([]int64, cols)
		for j := range cost[i] {
			cost[i][j] = quantizeDistance(distances.At(i, j), maxDistance)
		}
	}
	return cost, nil
}

// apply is the sequential phase of Update
func (tracker *CentroidTracker) apply(ids []uint64, input []Point, matches []match) {
	matchedObjects := make(map[uint64]struct{}, len(matches))
	usedInputs := make([]bool, len(input))
	for _, m := range matches {
		objectID := ids[m.row]
		object := tracker.objects[objectID]
		if err := object.observe(input[m.input]); err != nil {
			tracker.logger.Warn("estimator update failed", "object_id", objectID, "error", err)
		}
		delete(tracker.disappeared, objectID)
		matchedObjects[objectID] = struct{}{}
		usedInputs[m.input] = true
	}

	for _, objectID := range ids {
		if _, ok := matchedObjects[objectID]; ok {
			continue
		}
		tracker.disappeared[objectID]++
		tracker.objects[objectID].coast()
		if tracker.disappeared[objectID] > tracker.maxDisappeared {
			tracker.deregister(objectID)
		}
	}

	for j, center := range input {
		if !usedInputs[j] {
			tracker.register(center)
		}
	}
}

func (tracker *CentroidTracker) register(center Point) {
	objectID := tracker.nextID
	tracker.nextID++
	tracker.objects[objectID] = newTrackableObject(objectID, center, tracker.maxTrackLen, tracker.dt)
	tracker.logger.Debug("object registered", "object_id", objectID, "x", center.X, "y", center.Y)
}

func (tracker *CentroidTracker) deregister(objectID uint64) {
	delete(tracker.objects, objectID)
	delete(tracker.disappeared, objectID)
	tracker.logger.Debug("object deregistered", "object_id", objectID)
}

func (tracker *CentroidTracker) currentCentroids() map[uint64]Point {
	centroids := make(map[uint64]Point, len(tracker.objects))
	for objectID, object := range tracker.objects {
		centroids[objectID] = object.GetCenter()
	}
	return centroids
}

// Object returns registered object by identity
func (tracker *CentroidTracker) Object(objectID uint64) (*TrackableObject, bool) {
	object, ok := tracker.objects[objectID]
	return object, ok
}

// IDs returns identities of registered objects in ascending order
func (tracker *CentroidTracker) IDs() []uint64 {
	return sortedKeys(tracker.objects)
}

// Len returns number of registered objects
func (tracker *CentroidTracker) Len() int {
	return len(tracker.objects)
}

// Disappeared returns number of consecutive misses of registered object
func (tracker *CentroidTracker) Disappeared(objectID uint64) (int, bool) {
	if _, ok := tracker.objects[objectID]; !ok {
		return 0, false
	}
	return tracker.disappeared[objectID], true
}

// NextID returns identity which will be assigned to the next registered object
func (tracker *CentroidTracker) NextID() uint64 {
	return tracker.nextID
}

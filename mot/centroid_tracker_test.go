package mot

import (
	"math"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// boxAt returns 10x10 box centered at (x, y)
func boxAt(x, y float64) Rectangle {
	return NewRect(x-5, y-5, 10, 10)
}

func newTestTracker(t *testing.T, maxDisappeared int, maxDistance float64, options ...TrackerOption) *CentroidTracker {
	t.Helper()
	tracker, err := NewCentroidTracker(maxDisappeared, maxDistance, options...)
	require.NoError(t, err)
	return tracker
}

func TestNewCentroidTracker(t *testing.T) {
	tracker := NewCentroidTrackerDefault()
	if tracker.maxDisappeared != 3 {
		t.Errorf("Expected default maxDisappeared 3, got %d", tracker.maxDisappeared)
	}
	if tracker.maxDistance != 20.0 {
		t.Errorf("Expected default maxDistance 20.0, got %f", tracker.maxDistance)
	}
	if tracker.maxTrackLen != DefaultMaxTrackLen {
		t.Errorf("Expected default maxTrackLen %d, got %d", DefaultMaxTrackLen, tracker.maxTrackLen)
	}
	if tracker.algorithm != MatchingAlgorithmAuto {
		t.Errorf("Expected auto matching, got %s", tracker.algorithm)
	}
}

func TestNewCentroidTrackerInvalidConfig(t *testing.T) {
	cases := []struct {
		name           string
		maxDisappeared int
		maxDistance    float64
		options        []TrackerOption
	}{
		{"zero max disappeared", 0, 20, nil},
		{"negative max disappeared", -1, 20, nil},
		{"zero max distance", 3, 0, nil},
		{"negative max distance", 3, -5, nil},
		{"NaN max distance", 3, math.NaN(), nil},
		{"infinite max distance", 3, math.Inf(1), nil},
		{"max distance overflows costs", 3, 3e6, nil},
		{"short track", 3, 20, []TrackerOption{WithMaxTrackLen(1)}},
		{"negative greedy limit", 3, 20, []TrackerOption{WithGreedyLimit(-1)}},
		{"negative time step", 3, 20, []TrackerOption{WithSmoothing(-1)}},
		{"unknown algorithm", 3, 20, []TrackerOption{WithMatchingAlgorithm(MatchingAlgorithm(42))}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tracker, err := NewCentroidTracker(tc.maxDisappeared, tc.maxDistance, tc.options...)
			require.Nil(t, tracker)
			require.True(t, errors.Is(err, ErrInvalidConfig), "got %v", err)
		})
	}
}

func TestUpdateRegistersOnEmptyRegistry(t *testing.T) {
	tracker := newTestTracker(t, 3, 20)
	centroids, err := tracker.Update([]Rectangle{boxAt(100, 100), boxAt(300, 300)})
	require.NoError(t, err)
	require.Equal(t, map[uint64]Point{
		0: {X: 100, Y: 100},
		1: {X: 300, Y: 300},
	}, centroids)
	require.Equal(t, uint64(2), tracker.NextID())
}

// Scenario A
func TestUpdateMatchWithinDistance(t *testing.T) {
	tracker := newTestTracker(t, 3, 20)
	_, err := tracker.Update([]Rectangle{boxAt(100, 100)})
	require.NoError(t, err)
	// Miss once, so that the counter has something to reset
	_, err = tracker.Update(nil)
	require.NoError(t, err)
	misses, ok := tracker.Disappeared(0)
	require.True(t, ok)
	require.Equal(t, 1, misses)

	centroids, err := tracker.Update([]Rectangle{boxAt(105, 102)})
	require.NoError(t, err)
	require.Equal(t, map[uint64]Point{0: {X: 105, Y: 102}}, centroids)

	object, ok := tracker.Object(0)
	require.True(t, ok)
	require.Equal(t, []Point{{X: 100, Y: 100}, {X: 105, Y: 102}}, object.GetTrack())
	misses, ok = tracker.Disappeared(0)
	require.True(t, ok)
	require.Equal(t, 0, misses)
}

func TestUpdateBeyondDistanceRegistersNew(t *testing.T) {
	tracker := newTestTracker(t, 3, 20)
	_, err := tracker.Update([]Rectangle{boxAt(100, 100)})
	require.NoError(t, err)
	centroids, err := tracker.Update([]Rectangle{boxAt(130, 100)})
	require.NoError(t, err)
	require.Equal(t, map[uint64]Point{
		0: {X: 100, Y: 100},
		1: {X: 130, Y: 100},
	}, centroids)
	misses, _ := tracker.Disappeared(0)
	require.Equal(t, 1, misses)
}

// Scenario B
func TestUpdateDisappearance(t *testing.T) {
	tracker := newTestTracker(t, 3, 20)
	_, err := tracker.Update([]Rectangle{boxAt(100, 100)})
	require.NoError(t, err)

	for miss := 1; miss <= 3; miss++ {
		centroids, err := tracker.Update(nil)
		require.NoError(t, err)
		require.Contains(t, centroids, uint64(0), "object should survive %d misses", miss)
		misses, ok := tracker.Disappeared(0)
		require.True(t, ok)
		require.Equal(t, miss, misses)
	}

	centroids, err := tracker.Update(nil)
	require.NoError(t, err)
	require.Empty(t, centroids)
	require.Equal(t, 0, tracker.Len())
	_, ok := tracker.Disappeared(0)
	require.False(t, ok)
	require.Empty(t, tracker.disappeared)
}

func TestUpdateEmptyInputNeverRegisters(t *testing.T) {
	tracker := newTestTracker(t, 2, 20)
	_, err := tracker.Update([]Rectangle{boxAt(10, 10), boxAt(100, 100), boxAt(200, 200)})
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		centroids, err := tracker.Update([]Rectangle{})
		require.NoError(t, err)
		require.LessOrEqual(t, len(centroids), 3)
		require.Equal(t, uint64(3), tracker.NextID())
	}
	require.Equal(t, 0, tracker.Len())
}

func TestIdentitiesNeverReused(t *testing.T) {
	tracker := newTestTracker(t, 1, 20)
	_, err := tracker.Update([]Rectangle{boxAt(10, 10)})
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		_, err = tracker.Update(nil)
		require.NoError(t, err)
	}
	require.Equal(t, 0, tracker.Len())

	centroids, err := tracker.Update([]Rectangle{boxAt(10, 10)})
	require.NoError(t, err)
	require.Equal(t, map[uint64]Point{1: {X: 10, Y: 10}}, centroids)
}

func TestUpdateMatchingCorrectness(t *testing.T) {
	algorithms := []MatchingAlgorithm{MatchingAlgorithmAuto, MatchingAlgorithmGreedy, MatchingAlgorithmHungarian}
	for _, algorithm := range algorithms {
		for _, numObjects := range []int{1, 3, 5, 8, 12} {
			tracker := newTestTracker(t, 3, 20, WithMatchingAlgorithm(algorithm))
			first := make([]Rectangle, numObjects)
			for i := range first {
				first[i] = boxAt(float64(100*i), float64(50*(i%3)))
			}
			_, err := tracker.Update(first)
			require.NoError(t, err)

			// Shift every object a bit and feed detections in reverse order
			second := make([]Rectangle, numObjects)
			expected := make(map[uint64]Point, numObjects)
			for i := 0; i < numObjects; i++ {
				x := float64(100*i) + float64(i%4) + 3
				y := float64(50*(i%3)) - float64(i%5)
				second[numObjects-1-i] = boxAt(x, y)
				expected[uint64(i)] = Point{X: x, Y: y}
			}
			centroids, err := tracker.Update(second)
			require.NoError(t, err, "algorithm %s, objects %d", algorithm, numObjects)
			require.Equal(t, expected, centroids, "algorithm %s, objects %d", algorithm, numObjects)
			require.Equal(t, uint64(numObjects), tracker.NextID())
		}
	}
}

func TestGreedyTieBreakLowestIndex(t *testing.T) {
	tracker := newTestTracker(t, 3, 20)
	_, err := tracker.Update([]Rectangle{boxAt(0, 0)})
	require.NoError(t, err)
	centroids, err := tracker.Update([]Rectangle{boxAt(5, 0), boxAt(-5, 0)})
	require.NoError(t, err)
	require.Equal(t, map[uint64]Point{
		0: {X: 5, Y: 0},
		1: {X: -5, Y: 0},
	}, centroids)
}

func TestGreedyEarlierObjectsClaimFirst(t *testing.T) {
	// Object 0 at (0,0), object 1 at (4,0). Detections at (3,0) and (-4,0).
	// Greedy: object 0 takes (3,0), object 1 is left with (-4,0) at distance 8.
	tracker := newTestTracker(t, 3, 20, WithMatchingAlgorithm(MatchingAlgorithmGreedy))
	_, err := tracker.Update([]Rectangle{boxAt(0, 0), boxAt(4, 0)})
	require.NoError(t, err)
	centroids, err := tracker.Update([]Rectangle{boxAt(3, 0), boxAt(-4, 0)})
	require.NoError(t, err)
	require.Equal(t, map[uint64]Point{
		0: {X: 3, Y: 0},
		1: {X: -4, Y: 0},
	}, centroids)

	// Same input, optimal assignment swaps it: 4+1 < 3+8
	tracker = newTestTracker(t, 3, 20, WithMatchingAlgorithm(MatchingAlgorithmHungarian))
	_, err = tracker.Update([]Rectangle{boxAt(0, 0), boxAt(4, 0)})
	require.NoError(t, err)
	centroids, err = tracker.Update([]Rectangle{boxAt(3, 0), boxAt(-4, 0)})
	require.NoError(t, err)
	require.Equal(t, map[uint64]Point{
		0: {X: -4, Y: 0},
		1: {X: 3, Y: 0},
	}, centroids)
}

// Scenario D
func TestOptimalPathMatchesBruteForce(t *testing.T) {
	tracker := newTestTracker(t, 3, 20)
	objects := make([]Rectangle, 0, 6)
	detections := make([]Rectangle, 0, 6)
	expected := make(map[uint64]Point, 6)
	for k := 0; k < 3; k++ {
		y := float64(100 * k)
		objects = append(objects, boxAt(0, y), boxAt(4, y))
		detections = append(detections, boxAt(3, y), boxAt(-4, y))
		expected[uint64(2*k)] = Point{X: -4, Y: y}
		expected[uint64(2*k+1)] = Point{X: 3, Y: y}
	}
	_, err := tracker.Update(objects)
	require.NoError(t, err)
	require.Equal(t, MatchingAlgorithmHungarian, tracker.pickAlgorithm(6, 6))

	ids := tracker.IDs()
	input := make([]Point, len(detections))
	for j, rect := range detections {
		input[j] = rect.Center()
	}
	cost, err := tracker.costMatrix(ids, input)
	require.NoError(t, err)
	matches, err := tracker.optimalMatch(ids, input)
	require.NoError(t, err)
	require.Len(t, matches, 6)
	assignment := make([]int, len(ids))
	for _, m := range matches {
		assignment[m.row] = m.input
	}
	require.Equal(t, bruteForceMin(cost), totalCost(cost, assignment))
	require.Equal(t, int64(3*(4000+1000)), totalCost(cost, assignment))

	centroids, err := tracker.Update(detections)
	require.NoError(t, err)
	require.Equal(t, expected, centroids)
}

func TestOptimalPathRectangular(t *testing.T) {
	// More objects than detections
	tracker := newTestTracker(t, 3, 20)
	objects := make([]Rectangle, 7)
	for i := range objects {
		objects[i] = boxAt(float64(100*i), 0)
	}
	_, err := tracker.Update(objects)
	require.NoError(t, err)
	centroids, err := tracker.Update([]Rectangle{boxAt(602, 1), boxAt(201, 2)})
	require.NoError(t, err)
	require.Len(t, centroids, 7)
	assert.Equal(t, Point{X: 201, Y: 2}, centroids[2])
	assert.Equal(t, Point{X: 602, Y: 1}, centroids[6])
	for _, objectID := range []uint64{0, 1, 3, 4, 5} {
		misses, ok := tracker.Disappeared(objectID)
		require.True(t, ok)
		assert.Equal(t, 1, misses, "object %d", objectID)
	}
	assert.Equal(t, uint64(7), tracker.NextID())

	// More detections than objects
	tracker = newTestTracker(t, 3, 20)
	_, err = tracker.Update([]Rectangle{boxAt(0, 0), boxAt(500, 0)})
	require.NoError(t, err)
	detections := make([]Rectangle, 7)
	for j := range detections {
		detections[j] = boxAt(float64(1000+100*j), 300)
	}
	detections[3] = boxAt(498, 3)
	detections[5] = boxAt(1, -2)
	centroids, err = tracker.Update(detections)
	require.NoError(t, err)
	require.Len(t, centroids, 7)
	assert.Equal(t, Point{X: 1, Y: -2}, centroids[0])
	assert.Equal(t, Point{X: 498, Y: 3}, centroids[1])
	assert.Equal(t, uint64(7), tracker.NextID())
}

func TestOptimalPathRejectsForbidden(t *testing.T) {
	tracker := newTestTracker(t, 3, 20)
	objects := make([]Rectangle, 6)
	detections := make([]Rectangle, 6)
	for i := range objects {
		objects[i] = boxAt(float64(100*i), 0)
		detections[i] = boxAt(float64(100*i), 500)
	}
	_, err := tracker.Update(objects)
	require.NoError(t, err)
	centroids, err := tracker.Update(detections)
	require.NoError(t, err)
	require.Len(t, centroids, 12)
	for objectID := uint64(0); objectID < 6; objectID++ {
		object, ok := tracker.Object(objectID)
		require.True(t, ok)
		require.Len(t, object.GetTrack(), 1)
	}
	for objectID := uint64(6); objectID < 12; objectID++ {
		require.Equal(t, 500.0, centroids[objectID].Y)
	}
}

func TestUpdateMalformedInputLeavesRegistry(t *testing.T) {
	tracker := newTestTracker(t, 3, 20)
	_, err := tracker.Update([]Rectangle{boxAt(100, 100)})
	require.NoError(t, err)
	_, err = tracker.Update(nil)
	require.NoError(t, err)

	centroids, err := tracker.Update([]Rectangle{boxAt(101, 101), NewRect(0, 0, -10, 10)})
	require.Nil(t, centroids)
	require.True(t, errors.Is(err, ErrMalformedInput), "got %v", err)
	require.False(t, errors.Is(err, ErrAssociation))

	require.Equal(t, 1, tracker.Len())
	require.Equal(t, uint64(1), tracker.NextID())
	misses, _ := tracker.Disappeared(0)
	require.Equal(t, 1, misses)
	object, _ := tracker.Object(0)
	require.Len(t, object.GetTrack(), 1)
}

func TestCostMatrixMalformedDimensions(t *testing.T) {
	tracker := newTestTracker(t, 3, 20)
	_, err := tracker.costMatrix(nil, []Point{{X: 1, Y: 1}})
	require.True(t, errors.Is(err, ErrAssociation), "got %v", err)
	_, err = tracker.costMatrix([]uint64{42}, []Point{{X: 1, Y: 1}})
	require.True(t, errors.Is(err, ErrAssociation), "got %v", err)

	_, err = quantizeCosts(mat.NewDense(2, 3, nil), 2, 2, 20)
	require.True(t, errors.Is(err, ErrAssociation), "got %v", err)
	_, err = quantizeCosts(mat.NewDense(1, 2, nil), 2, 2, 20)
	require.True(t, errors.Is(err, ErrAssociation), "got %v", err)
}

func TestCostMatrixFromDistances(t *testing.T) {
	distances := mat.NewDense(2, 2, []float64{
		0, 1.5,
		25, math.NaN(),
	})
	cost, err := quantizeCosts(distances, 2, 2, 20)
	require.NoError(t, err)
	require.Equal(t, [][]int64{{0, 1500}, {ForbiddenCost, ForbiddenCost}}, cost)

	tracker := newTestTracker(t, 3, 20)
	_, err = tracker.Update([]Rectangle{boxAt(0, 0), boxAt(100, 0)})
	require.NoError(t, err)
	input := []Point{{X: 3, Y: 4}, {X: 100, Y: 10}, {X: 50, Y: 0}}
	cost, err = tracker.costMatrix(tracker.IDs(), input)
	require.NoError(t, err)
	require.Equal(t, [][]int64{
		{5000, ForbiddenCost, ForbiddenCost},
		{ForbiddenCost, 10000, ForbiddenCost},
	}, cost)
}

func TestUpdateObjectWithoutCentroids(t *testing.T) {
	for _, algorithm := range []MatchingAlgorithm{MatchingAlgorithmGreedy, MatchingAlgorithmHungarian} {
		t.Run(algorithm.String(), func(t *testing.T) {
			tracker := newTestTracker(t, 3, 20, WithMatchingAlgorithm(algorithm))
			_, err := tracker.Update([]Rectangle{boxAt(10, 10)})
			require.NoError(t, err)
			tracker.objects[0].track = tracker.objects[0].track[:0]

			_, err = tracker.costMatrix([]uint64{0}, []Point{{X: 10, Y: 10}})
			require.True(t, errors.Is(err, ErrAssociation), "got %v", err)

			centroids, err := tracker.Update([]Rectangle{boxAt(11, 11)})
			require.Nil(t, centroids)
			require.True(t, errors.Is(err, ErrAssociation), "got %v", err)
			require.Equal(t, 1, tracker.Len())
			require.Equal(t, uint64(1), tracker.NextID())
			misses, ok := tracker.Disappeared(0)
			require.True(t, ok)
			require.Equal(t, 0, misses)
		})
	}
}

func TestHistoryBound(t *testing.T) {
	tracker := newTestTracker(t, 3, 20)
	_, err := tracker.Update([]Rectangle{boxAt(0, 0)})
	require.NoError(t, err)
	for step := 1; step <= 120; step++ {
		_, err := tracker.Update([]Rectangle{boxAt(float64(step), 0)})
		require.NoError(t, err)
		object, ok := tracker.Object(0)
		require.True(t, ok)
		track := object.GetTrack()
		require.GreaterOrEqual(t, len(track), 1)
		require.LessOrEqual(t, len(track), DefaultMaxTrackLen)
		require.Equal(t, Point{X: float64(step), Y: 0}, track[len(track)-1])
	}
	object, _ := tracker.Object(0)
	track := object.GetTrack()
	require.Len(t, track, DefaultMaxTrackLen)
	require.Equal(t, Point{X: 71, Y: 0}, track[0])
}

func TestCustomMaxTrackLen(t *testing.T) {
	tracker := newTestTracker(t, 3, 20, WithMaxTrackLen(3))
	for step := 0; step < 10; step++ {
		_, err := tracker.Update([]Rectangle{boxAt(float64(step), 0)})
		require.NoError(t, err)
	}
	object, _ := tracker.Object(0)
	require.Equal(t, 3, object.GetMaxTrackLen())
	require.Equal(t, []Point{{X: 7, Y: 0}, {X: 8, Y: 0}, {X: 9, Y: 0}}, object.GetTrack())
}

func TestEstimate(t *testing.T) {
	tracker := newTestTracker(t, 3, 20, WithSmoothing(0))
	_, err := tracker.Update([]Rectangle{boxAt(10, 10)})
	require.NoError(t, err)
	_, err = tracker.Update([]Rectangle{boxAt(12, 11)})
	require.NoError(t, err)
	object, _ := tracker.Object(0)
	require.Equal(t, object.GetCenter(), object.Estimate())

	tracker = newTestTracker(t, 3, 20)
	for step := 0; step < 5; step++ {
		_, err := tracker.Update([]Rectangle{boxAt(float64(10+2*step), 10)})
		require.NoError(t, err)
	}
	_, err = tracker.Update(nil)
	require.NoError(t, err)
	object, _ = tracker.Object(0)
	estimate := object.Estimate()
	require.False(t, math.IsNaN(estimate.X) || math.IsNaN(estimate.Y))
	require.Equal(t, Point{X: 18, Y: 10}, object.GetCenter())
}

func TestMatchObjectsSpread(t *testing.T) {
	// Two walkers move down through the frame, a third one appears midway and a fourth one leaves
	frames := [][]Rectangle{
		{boxAt(100, 50), boxAt(400, 60)},
		{boxAt(102, 58), boxAt(398, 69)},
		{boxAt(103, 66), boxAt(397, 77), boxAt(700, 400)},
		{boxAt(105, 75), boxAt(395, 86), boxAt(701, 392)},
		{boxAt(106, 84), boxAt(700, 383)},
		{boxAt(108, 92), boxAt(699, 375)},
		{boxAt(109, 101), boxAt(698, 366)},
		{boxAt(111, 110), boxAt(697, 358)},
		{boxAt(112, 118), boxAt(696, 349)},
	}
	tracker := newTestTracker(t, 3, 20)
	for _, frame := range frames {
		_, err := tracker.Update(frame)
		require.NoError(t, err)
	}
	correctNumOfObjects := 2
	numOfObjects := tracker.Len()
	if numOfObjects != correctNumOfObjects {
		t.Errorf("incorrect number of objects: %d, expected: %d", numOfObjects, correctNumOfObjects)
		return
	}
	require.Equal(t, []uint64{0, 2}, tracker.IDs())
	walker, _ := tracker.Object(0)
	require.Len(t, walker.GetTrack(), len(frames))
}

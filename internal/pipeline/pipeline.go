// Package pipeline is the frame-processing loop owning the centroid tracker:
// it feeds detections into the tracker, runs the crossing counter and keeps
// the entered/exited tally.
package pipeline

import (
	"context"
	"io"
	"log/slog"

	"github.com/LdDl/crossline/detect"
	"github.com/LdDl/crossline/internal/config"
	"github.com/LdDl/crossline/mot"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Tally aggregates counting results of a run
type Tally struct {
	Entered int
	Exited  int
	// Frames passed through Step
	Frames int
	// Frames whose detections were discarded as malformed
	Malformed int
	// Frames for which association failed and counting was skipped
	Skipped int
}

// FrameResult is the outcome of a single frame
type FrameResult struct {
	Index int64
	// Latest centroid per live identity, for overlays
	Centroids map[uint64]mot.Point
	// Smoothed position per live identity. Keeps moving while an object is not matched
	Estimates map[uint64]mot.Point
	Events    []mot.CrossingEvent
	// Per-frame recoverable failure, if any
	Err error
}

// Pipeline owns tracker and counter. It is not safe for concurrent use
type Pipeline struct {
	RunID   uuid.UUID
	tracker *mot.CentroidTracker
	counter *mot.CrossingCounter
	filter  detect.Filter
	tally   Tally
	logger  *slog.Logger
}

// New creates pipeline from configuration
func New(cfg *config.Config, logger *slog.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = slog.Default()
	}
	algorithm, err := cfg.Tracker.Algorithm()
	if err != nil {
		return nil, errors.Wrap(err, "Can't create pipeline")
	}
	runID := uuid.New()
	logger = logger.With("run_id", runID.String())
	tracker, err := mot.NewCentroidTracker(
		cfg.Tracker.MaxDisappeared,
		cfg.Tracker.MaxDistance,
		mot.WithMatchingAlgorithm(algorithm),
		mot.WithMaxTrackLen(cfg.Tracker.MaxTrackLen),
		mot.WithGreedyLimit(cfg.Tracker.GreedyLimit),
		mot.WithSmoothing(cfg.Tracker.SmoothingDT),
		mot.WithLogger(logger.With("component", "tracker")),
	)
	if err != nil {
		return nil, errors.Wrap(err, "Can't create tracker")
	}
	return &Pipeline{
		RunID:   runID,
		tracker: tracker,
		counter: mot.NewCrossingCounter(cfg.Zone.Y, mot.WithCounterLogger(logger.With("component", "counter"))),
		filter: detect.Filter{
			MinConfidence: cfg.Detector.MinConfidence,
			Class:         cfg.Detector.Class,
		},
		logger: logger,
	}, nil
}

// Tracker gives read access to the tracker state, e.g. for rendering
func (p *Pipeline) Tracker() *mot.CentroidTracker {
	return p.tracker
}

// Tally returns counting results so far
func (p *Pipeline) Tally() Tally {
	return p.tally
}

// Step processes detections of a single frame.
// Malformed detections are replaced with an empty frame; association failure skips counting for the frame.
func (p *Pipeline) Step(frame detect.Frame) FrameResult {
	p.tally.Frames++
	result := FrameResult{Index: frame.Index}
	centroids, err := p.tracker.Update(p.filter.Apply(frame))
	if errors.Is(err, mot.ErrMalformedInput) {
		p.tally.Malformed++
		p.logger.Warn("discarding malformed detections", "frame", frame.Index, "error", err)
		result.Err = err
		centroids, err = p.tracker.Update(nil)
	}
	if err != nil {
		p.tally.Skipped++
		p.logger.Warn("skipping frame", "frame", frame.Index, "error", err)
		result.Err = err
		return result
	}
	result.Centroids = centroids
	result.Estimates = make(map[uint64]mot.Point, len(centroids))
	for objectID := range centroids {
		if object, ok := p.tracker.Object(objectID); ok {
			result.Estimates[objectID] = object.Estimate()
		}
	}
	result.Events = p.counter.Evaluate(p.tracker, centroids)
	for _, event := range result.Events {
		switch event.Direction {
		case mot.DirectionUp:
			p.tally.Entered++
		case mot.DirectionDown:
			p.tally.Exited++
		}
	}
	return result
}

// Run pulls frames from source until it is exhausted or ctx is cancelled.
// onResult, if not nil, is called after every frame.
func (p *Pipeline) Run(ctx context.Context, source detect.BoxSource, onResult func(FrameResult)) (Tally, error) {
	p.logger.Info("pipeline started")
	for {
		frame, err := source.NextFrame(ctx)
		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
			p.logger.Info("pipeline finished", "frames", p.tally.Frames, "entered", p.tally.Entered, "exited", p.tally.Exited)
			return p.tally, nil
		case errors.Is(err, mot.ErrMalformedInput):
			p.logger.Warn("source returned malformed frame", "frame", frame.Index, "error", err)
			p.tally.Malformed++
			frame.Detections = nil
		default:
			return p.tally, errors.Wrap(err, "Can't read frame")
		}
		result := p.Step(frame)
		if onResult != nil {
			onResult(result)
		}
	}
}

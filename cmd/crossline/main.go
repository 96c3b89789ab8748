// Command crossline replays recorded person detections through the centroid
// tracker and prints every zone line crossing as a JSON line.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/LdDl/crossline/detect"
	"github.com/LdDl/crossline/internal/config"
	"github.com/LdDl/crossline/internal/pipeline"
	"github.com/LdDl/crossline/mot"
	"github.com/tidwall/sjson"
)

var (
	configPath = flag.String("config", "", "Path to YAML configuration (defaults are used when empty)")
	inputPath  = flag.String("input", "-", "Recorded detections, one JSON document per frame ('-' for stdin)")
	debug      = flag.Bool("debug", false, "Output debug information")
)

func main() {
	flag.Parse()
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "crossline: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			return err
		}
	}
	level, err := cfg.Log.SlogLevel()
	if err != nil {
		return err
	}
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	var input io.Reader = os.Stdin
	if *inputPath != "-" {
		file, err := os.Open(*inputPath)
		if err != nil {
			return fmt.Errorf("failed to open input: %w", err)
		}
		defer file.Close()
		input = file
	}

	p, err := pipeline.New(cfg, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tally, err := p.Run(ctx, detect.NewReplaySource(input), func(result pipeline.FrameResult) {
		for _, event := range result.Events {
			line, err := eventJSON(result.Index, event, result.Estimates[event.ObjectID])
			if err != nil {
				logger.Error("failed to encode event", "error", err)
				continue
			}
			fmt.Println(line)
		}
	})
	logger.Info("tally",
		"entered", tally.Entered,
		"exited", tally.Exited,
		"frames", tally.Frames,
		"malformed", tally.Malformed,
		"skipped", tally.Skipped,
	)
	return err
}

func eventJSON(frame int64, event mot.CrossingEvent, estimate mot.Point) (string, error) {
	fields := []struct {
		path  string
		value any
	}{
		{"event_id", event.EventID.String()},
		{"frame", frame},
		{"object_id", event.ObjectID},
		{"direction", event.Direction.String()},
		{"action", event.Direction.Action()},
		{"x", event.Position.X},
		{"y", event.Position.Y},
		{"estimate.x", estimate.X},
		{"estimate.y", estimate.Y},
	}
	doc := "{}"
	for _, field := range fields {
		var err error
		doc, err = sjson.Set(doc, field.path, field.value)
		if err != nil {
			return "", err
		}
	}
	return doc, nil
}

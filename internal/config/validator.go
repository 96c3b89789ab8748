package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/LdDl/crossline/mot"
)

// Validate checks if the configuration is valid
func Validate(cfg *Config) error {
	if cfg.Tracker.MaxDisappeared <= 0 {
		return fmt.Errorf("tracker.max_disappeared must be > 0")
	}
	if cfg.Tracker.MaxDistance <= 0 {
		return fmt.Errorf("tracker.max_distance must be > 0")
	}
	if cfg.Tracker.MaxTrackLen < 2 {
		return fmt.Errorf("tracker.max_track_len must be >= 2")
	}
	if cfg.Tracker.GreedyLimit < 0 {
		return fmt.Errorf("tracker.greedy_limit must be >= 0")
	}
	if cfg.Tracker.SmoothingDT < 0 {
		return fmt.Errorf("tracker.smoothing_dt must be >= 0")
	}
	if _, err := cfg.Tracker.Algorithm(); err != nil {
		return err
	}
	if cfg.Detector.MinConfidence < 0 || cfg.Detector.MinConfidence >= 1 {
		return fmt.Errorf("detector.min_confidence must be in [0, 1)")
	}
	if _, err := cfg.Log.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// Algorithm maps matching name to mot.MatchingAlgorithm
func (tc TrackerConfig) Algorithm() (mot.MatchingAlgorithm, error) {
	switch strings.ToLower(tc.Matching) {
	case "", "auto":
		return mot.MatchingAlgorithmAuto, nil
	case "hungarian":
		return mot.MatchingAlgorithmHungarian, nil
	case "greedy":
		return mot.MatchingAlgorithmGreedy, nil
	default:
		return 0, fmt.Errorf("tracker.matching must be one of auto, hungarian, greedy; got %q", tc.Matching)
	}
}

// SlogLevel maps level name to slog.Level
func (lc LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if lc.Level == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(lc.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}

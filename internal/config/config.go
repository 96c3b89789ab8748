package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the complete crossline configuration
type Config struct {
	Tracker  TrackerConfig  `yaml:"tracker"`
	Zone     ZoneConfig     `yaml:"zone"`
	Detector DetectorConfig `yaml:"detector"`
	Log      LogConfig      `yaml:"log"`
}

// TrackerConfig contains centroid tracker settings
type TrackerConfig struct {
	MaxDisappeared int     `yaml:"max_disappeared"` // misses before an object is removed
	MaxDistance    float64 `yaml:"max_distance"`    // max centroid displacement per frame, pixels
	MaxTrackLen    int     `yaml:"max_track_len"`   // centroids kept per object
	Matching       string  `yaml:"matching"`        // auto, hungarian, greedy
	GreedyLimit    int     `yaml:"greedy_limit"`    // auto mode uses greedy up to this many objects/detections
	SmoothingDT    float64 `yaml:"smoothing_dt"`    // Kalman time step, 0 disables
}

// ZoneConfig defines the counting line
type ZoneConfig struct {
	Y float64 `yaml:"y"` // horizontal line position
}

// DetectorConfig filters raw detections before tracking
type DetectorConfig struct {
	MinConfidence float64 `yaml:"min_confidence"`
	Class         string  `yaml:"class"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// Default returns configuration of the original deployment
func Default() *Config {
	return &Config{
		Tracker: TrackerConfig{
			MaxDisappeared: 3,
			MaxDistance:    20,
			MaxTrackLen:    50,
			Matching:       "auto",
			GreedyLimit:    5,
			SmoothingDT:    1,
		},
		Zone: ZoneConfig{
			Y: 250,
		},
		Detector: DetectorConfig{
			MinConfidence: 0.1,
			Class:         "person",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads and parses a YAML configuration file. Missing keys keep default values
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration on top of Default()
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

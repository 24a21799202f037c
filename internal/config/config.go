// Package config handles engine configuration loading.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/shepherd-dynamics/go-engine/internal/detector"
	"github.com/shepherd-dynamics/go-engine/internal/model"
)

// Config is the root configuration structure.
type Config struct {
	Model    model.Config   `yaml:"model"`
	Detector DetectorConfig `yaml:"detector"`
	Stream   StreamConfig   `yaml:"stream"`
	Archive  ArchiveConfig  `yaml:"archive"`
}

// DetectorConfig is the YAML-facing shape of detector tuning.
type DetectorConfig struct {
	WindowSize      int     `yaml:"window_size"`
	SmoothingWindow int     `yaml:"smoothing_window"`
	Threshold       float64 `yaml:"threshold"`
	MinPeakDistance int     `yaml:"min_peak_distance"`
	Kernel          string  `yaml:"kernel"`
}

// ToDetector converts to the detector package's config type.
func (d DetectorConfig) ToDetector() detector.Config {
	kernel := detector.KernelUniform
	if d.Kernel == string(detector.KernelTriangular) {
		kernel = detector.KernelTriangular
	}
	return detector.Config{
		WindowSize:      d.WindowSize,
		SmoothingWindow: d.SmoothingWindow,
		Threshold:       d.Threshold,
		MinPeakDistance: d.MinPeakDistance,
		Kernel:          kernel,
	}
}

// StreamConfig holds event-stream adapter settings.
type StreamConfig struct {
	// ListenAddr is the websocket server bind address.
	ListenAddr string `yaml:"listen_addr"`
	// DedupWindowMS is how long a seen event id suppresses duplicates.
	DedupWindowMS int64 `yaml:"dedup_window_ms"`
	// AlertCooldownMS suppresses repeat same-level alerts per dyad.
	AlertCooldownMS int64 `yaml:"alert_cooldown_ms"`
	// AlertBuffer is the outbound alert channel capacity.
	AlertBuffer int `yaml:"alert_buffer"`
}

// ArchiveConfig holds durable alert/snapshot storage settings.
type ArchiveConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Default returns the default configuration.
func Default() *Config {
	det := detector.DefaultConfig()
	return &Config{
		Model: model.DefaultConfig(50),
		Detector: DetectorConfig{
			WindowSize:      det.WindowSize,
			SmoothingWindow: det.SmoothingWindow,
			Threshold:       det.Threshold,
			MinPeakDistance: det.MinPeakDistance,
			Kernel:          string(det.Kernel),
		},
		Stream: StreamConfig{
			ListenAddr:      ":8090",
			DedupWindowMS:   60_000,
			AlertCooldownMS: 5_000,
			AlertBuffer:     256,
		},
		Archive: ArchiveConfig{
			Enabled: false,
			Path:    "shepherd.db",
		},
	}
}

// Load loads configuration from a YAML file over the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault loads config from path, or returns defaults if path is empty
// or missing.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}
	return Load(path)
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	if c.Model.NCategories <= 0 {
		return fmt.Errorf("config: n_categories must be positive, got %d", c.Model.NCategories)
	}
	if c.Model.LearningRate <= 0 || c.Model.LearningRate > 1 {
		return fmt.Errorf("config: learning_rate must be in (0, 1], got %v", c.Model.LearningRate)
	}
	if c.Detector.WindowSize <= 0 {
		return fmt.Errorf("config: window_size must be positive, got %d", c.Detector.WindowSize)
	}
	switch c.Detector.Kernel {
	case string(detector.KernelUniform), string(detector.KernelTriangular):
	default:
		return fmt.Errorf("config: unknown kernel %q", c.Detector.Kernel)
	}
	return nil
}

// ApplyEnv overlays SHEPHERD_* environment variables on top of the loaded
// configuration. Unset variables leave values untouched.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("SHEPHERD_LISTEN_ADDR"); v != "" {
		c.Stream.ListenAddr = v
	}
	if v := os.Getenv("SHEPHERD_ARCHIVE_PATH"); v != "" {
		c.Archive.Path = v
		c.Archive.Enabled = true
	}
	if v := os.Getenv("SHEPHERD_N_CATEGORIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Model.NCategories = n
		}
	}
	if v := os.Getenv("SHEPHERD_LEARNING_RATE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 && f <= 1 {
			c.Model.LearningRate = f
		}
	}
	if v := os.Getenv("SHEPHERD_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			c.Detector.Threshold = f
		}
	}
}

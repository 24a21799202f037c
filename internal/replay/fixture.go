// Package replay loads recorded event traces from JSON fixtures and runs
// them through the engine in-memory, checking the outcome against recorded
// expectations. Useful for regression traces and offline tuning.
package replay

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/shepherd-dynamics/go-engine/internal/detector"
	"github.com/shepherd-dynamics/go-engine/internal/model"
	"github.com/shepherd-dynamics/go-engine/internal/stream"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture.
type Fixture struct {
	Description string             `json:"description"`
	Config      FixtureConfig      `json:"config"`
	Actors      []FixtureActor     `json:"actors"`
	Events      []stream.Event     `json:"events"`
	Expected    FixtureExpectation `json:"expected"`
}

// FixtureActor is an actor registered before the trace starts.
type FixtureActor struct {
	ActorID      string    `json:"actor_id"`
	Distribution []float64 `json:"distribution"`
}

// FixtureConfig mirrors the engine configs with JSON tags.
type FixtureConfig struct {
	NCategories     int     `json:"n_categories"`
	LearningRate    float64 `json:"learning_rate"`
	WindowSize      int     `json:"window_size"`
	SmoothingWindow int     `json:"smoothing_window"`
	Threshold       float64 `json:"threshold"`
	MinPeakDistance int     `json:"min_peak_distance"`
	Kernel          string  `json:"kernel"`
}

// FixtureExpectation captures the minimums a trace must reach.
type FixtureExpectation struct {
	MinAlerts     int              `json:"min_alerts"`
	MinActionable int              `json:"min_actionable"`
	MinFinalPhi   []FixtureDyadPhi `json:"min_final_phi"`
}

// FixtureDyadPhi is a per-dyad final Φ floor.
type FixtureDyadPhi struct {
	ActorA string  `json:"actor_a"`
	ActorB string  `json:"actor_b"`
	Phi    float64 `json:"phi"`
}

// #endregion fixture-types

// #region load

// LoadFixture reads and parses a fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}
	if f.Config.NCategories <= 0 {
		return nil, fmt.Errorf("fixture %q: n_categories must be positive", f.Description)
	}
	return &f, nil
}

// ToModelConfig converts the fixture config to a model config, filling
// defaults for unset fields.
func (fc *FixtureConfig) ToModelConfig() model.Config {
	cfg := model.DefaultConfig(fc.NCategories)
	if fc.LearningRate > 0 {
		cfg.LearningRate = fc.LearningRate
	}
	return cfg
}

// ToDetectorConfig converts the fixture config to a detector config,
// filling defaults for unset fields.
func (fc *FixtureConfig) ToDetectorConfig() detector.Config {
	cfg := detector.DefaultConfig()
	if fc.WindowSize > 0 {
		cfg.WindowSize = fc.WindowSize
	}
	if fc.SmoothingWindow > 0 {
		cfg.SmoothingWindow = fc.SmoothingWindow
	}
	if fc.Threshold > 0 {
		cfg.Threshold = fc.Threshold
	}
	if fc.MinPeakDistance > 0 {
		cfg.MinPeakDistance = fc.MinPeakDistance
	}
	if fc.Kernel == string(detector.KernelTriangular) {
		cfg.Kernel = detector.KernelTriangular
	}
	return cfg
}

// #endregion load

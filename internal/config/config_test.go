package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shepherd-dynamics/go-engine/internal/detector"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Model.NCategories != 50 {
		t.Fatalf("default n_categories = %d, want 50", cfg.Model.NCategories)
	}
	if cfg.Detector.WindowSize != 40 {
		t.Fatalf("default window_size = %d, want 40", cfg.Detector.WindowSize)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.yaml")
	body := `
model:
  n_categories: 12
  learning_rate: 0.2
detector:
  threshold: 2.0
  kernel: triangular
stream:
  listen_addr: ":9999"
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Model.NCategories != 12 {
		t.Fatalf("n_categories = %d, want 12", cfg.Model.NCategories)
	}
	if cfg.Model.LearningRate != 0.2 {
		t.Fatalf("learning_rate = %v, want 0.2", cfg.Model.LearningRate)
	}
	if cfg.Detector.Threshold != 2.0 {
		t.Fatalf("threshold = %v, want 2.0", cfg.Detector.Threshold)
	}
	if got := cfg.Detector.ToDetector().Kernel; got != detector.KernelTriangular {
		t.Fatalf("kernel = %v, want triangular", got)
	}
	if cfg.Stream.ListenAddr != ":9999" {
		t.Fatalf("listen_addr = %q, want :9999", cfg.Stream.ListenAddr)
	}
	// Untouched sections keep defaults.
	if cfg.Model.GrievanceWindow != 30 {
		t.Fatalf("grievance_window = %d, want default 30", cfg.Model.GrievanceWindow)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.yaml")
	if err := os.WriteFile(path, []byte("model:\n  n_categories: -3\n"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("negative n_categories accepted")
	}

	if err := os.WriteFile(path, []byte("detector:\n  kernel: gaussian\n"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("unknown kernel accepted")
	}
}

func TestLoadOrDefaultMissingFile(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("load or default: %v", err)
	}
	if cfg.Model.NCategories != 50 {
		t.Fatal("missing file did not fall back to defaults")
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("SHEPHERD_LISTEN_ADDR", ":7777")
	t.Setenv("SHEPHERD_N_CATEGORIES", "8")
	t.Setenv("SHEPHERD_LEARNING_RATE", "0.05")

	cfg := Default()
	cfg.ApplyEnv()

	if cfg.Stream.ListenAddr != ":7777" {
		t.Fatalf("listen_addr = %q, want :7777", cfg.Stream.ListenAddr)
	}
	if cfg.Model.NCategories != 8 {
		t.Fatalf("n_categories = %d, want 8", cfg.Model.NCategories)
	}
	if cfg.Model.LearningRate != 0.05 {
		t.Fatalf("learning_rate = %v, want 0.05", cfg.Model.LearningRate)
	}
}

package signal

import (
	"math"
	"testing"
)

func TestRollingStatsMeanAndVariance(t *testing.T) {
	stats := NewRollingStats(5)
	for i := 1; i <= 5; i++ {
		stats.Push(float64(i))
	}

	if got := stats.Mean(); math.Abs(got-3.0) > 1e-10 {
		t.Fatalf("mean = %f, want 3.0", got)
	}
	// Population variance of [1..5] is 2.
	if got := stats.Variance(); math.Abs(got-2.0) > 0.01 {
		t.Fatalf("variance = %f, want 2.0", got)
	}
}

func TestRollingStatsWindowEviction(t *testing.T) {
	stats := NewRollingStats(3)
	for i := 1; i <= 6; i++ {
		stats.Push(float64(i))
	}

	if stats.Len() != 3 {
		t.Fatalf("len = %d, want 3", stats.Len())
	}
	// Window is [4, 5, 6].
	if got := stats.Mean(); math.Abs(got-5.0) > 1e-10 {
		t.Fatalf("mean after eviction = %f, want 5.0", got)
	}
}

func TestRollingStatsZScoreDegenerate(t *testing.T) {
	stats := NewRollingStats(10)
	if got := stats.ZScore(); got != 0 {
		t.Fatalf("empty z-score = %f, want 0", got)
	}
	for i := 0; i < 10; i++ {
		stats.Push(7.0)
	}
	if got := stats.ZScore(); got != 0 {
		t.Fatalf("constant-series z-score = %f, want 0", got)
	}
}

func TestGradientTrackerLinearSlope(t *testing.T) {
	tracker := NewGradientTracker(10)
	for i := 0; i < 10; i++ {
		tracker.Push(2.0*float64(i), float64(i))
	}
	if got := tracker.Gradient(); math.Abs(got-2.0) > 0.01 {
		t.Fatalf("gradient = %f, want 2.0", got)
	}
}

func TestGradientTrackerInsufficientSamples(t *testing.T) {
	tracker := NewGradientTracker(10)
	tracker.Push(1.0, 0.0)
	if got := tracker.Gradient(); got != 0 {
		t.Fatalf("single-sample gradient = %f, want 0", got)
	}
	if got := tracker.Acceleration(); got != 0 {
		t.Fatalf("single-sample acceleration = %f, want 0", got)
	}
}

func TestGradientTrackerAcceleration(t *testing.T) {
	tracker := NewGradientTracker(10)
	// Quadratic: y = t², so the second derivative is 2.
	for i := 0; i < 5; i++ {
		ti := float64(i)
		tracker.Push(ti*ti, ti)
	}
	if got := tracker.Acceleration(); math.Abs(got-2.0) > 0.01 {
		t.Fatalf("acceleration = %f, want 2.0", got)
	}
}

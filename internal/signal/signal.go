// Package signal provides streaming statistics over scalar series: windowed
// mean/variance/z-score and regression-based gradient estimation. The types
// are generic over any series; the engine feeds them divergence trajectories.
package signal

import "math"

// #region rolling-stats

// RollingStats tracks mean, variance and z-score over a bounded trailing
// window using running sums.
type RollingStats struct {
	windowSize int
	values     []float64
	sum        float64
	sumSq      float64
}

// NewRollingStats creates a tracker with the given window size.
func NewRollingStats(windowSize int) *RollingStats {
	return &RollingStats{
		windowSize: windowSize,
		values:     make([]float64, 0, windowSize),
	}
}

// Push appends a value, evicting the oldest once the window is full.
func (s *RollingStats) Push(value float64) {
	if len(s.values) >= s.windowSize {
		old := s.values[0]
		s.values = s.values[1:]
		s.sum -= old
		s.sumSq -= old * old
	}
	s.values = append(s.values, value)
	s.sum += value
	s.sumSq += value * value
}

// Mean returns the window mean, 0 when empty.
func (s *RollingStats) Mean() float64 {
	if len(s.values) == 0 {
		return 0
	}
	return s.sum / float64(len(s.values))
}

// Variance returns the population variance of the window, 0 with fewer than
// two samples.
func (s *RollingStats) Variance() float64 {
	n := float64(len(s.values))
	if n < 2 {
		return 0
	}
	mean := s.Mean()
	v := s.sumSq/n - mean*mean
	if v < 0 {
		// Running-sum cancellation can land a hair below zero.
		return 0
	}
	return v
}

// StdDev returns the window standard deviation.
func (s *RollingStats) StdDev() float64 {
	return math.Sqrt(s.Variance())
}

// Len returns the number of retained samples.
func (s *RollingStats) Len() int {
	return len(s.values)
}

// ZScore returns the z-score of the most recent value against the window.
// Degenerate windows (empty, or near-zero spread) yield 0.
func (s *RollingStats) ZScore() float64 {
	if len(s.values) == 0 {
		return 0
	}
	std := s.StdDev()
	if std < 1e-10 {
		return 0
	}
	last := s.values[len(s.values)-1]
	return (last - s.Mean()) / std
}

// #endregion rolling-stats

// #region gradient-tracker

// GradientTracker estimates the slope and acceleration of a timestamped
// series over a bounded trailing window.
type GradientTracker struct {
	windowSize int
	values     []float64
	timestamps []float64
}

// NewGradientTracker creates a tracker with the given window size.
func NewGradientTracker(windowSize int) *GradientTracker {
	return &GradientTracker{
		windowSize: windowSize,
		values:     make([]float64, 0, windowSize),
		timestamps: make([]float64, 0, windowSize),
	}
}

// Push appends a (value, timestamp) sample, evicting the oldest once full.
func (g *GradientTracker) Push(value, timestamp float64) {
	if len(g.values) >= g.windowSize {
		g.values = g.values[1:]
		g.timestamps = g.timestamps[1:]
	}
	g.values = append(g.values, value)
	g.timestamps = append(g.timestamps, timestamp)
}

// Len returns the number of retained samples.
func (g *GradientTracker) Len() int {
	return len(g.values)
}

// Gradient returns the least-squares slope of value over timestamp, 0 with
// fewer than two samples or degenerate time spread.
func (g *GradientTracker) Gradient() float64 {
	n := len(g.values)
	if n < 2 {
		return 0
	}
	nf := float64(n)

	meanT, meanV := 0.0, 0.0
	for i := 0; i < n; i++ {
		meanT += g.timestamps[i]
		meanV += g.values[i]
	}
	meanT /= nf
	meanV /= nf

	cov, varT := 0.0, 0.0
	for i := 0; i < n; i++ {
		dt := g.timestamps[i] - meanT
		dv := g.values[i] - meanV
		cov += dt * dv
		varT += dt * dt
	}
	if varT < 1e-10 {
		return 0
	}
	return cov / varT
}

// Acceleration returns a finite-difference second derivative from the three
// most recent samples, 0 with fewer than three samples or degenerate spacing.
func (g *GradientTracker) Acceleration() float64 {
	n := len(g.values)
	if n < 3 {
		return 0
	}

	dt1 := g.timestamps[n-1] - g.timestamps[n-2]
	dt2 := g.timestamps[n-2] - g.timestamps[n-3]
	if dt1 < 1e-10 || dt2 < 1e-10 {
		return 0
	}

	g1 := (g.values[n-1] - g.values[n-2]) / dt1
	g2 := (g.values[n-2] - g.values[n-3]) / dt2
	return (g1 - g2) / ((dt1 + dt2) / 2)
}

// #endregion gradient-tracker

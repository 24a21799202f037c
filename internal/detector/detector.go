// Package detector implements the variance-inflection phase detector: a
// streaming state machine that classifies a scalar series into
// Stable/Approaching/Critical/Transitioning by watching the second derivative
// of its rolling variance against a self-calibrating noise baseline.
//
// Transitions produce inflection points in variance regardless of direction —
// variance rises before a bifurcation and falls before a commitment — so the
// detector thresholds the z-score of |d²V/dt²|.
package detector

import "math"

// #region phase

// Phase is the detector's four-state classification.
type Phase int

const (
	// PhaseStable is normal operation, no transition signature.
	PhaseStable Phase = iota
	// PhaseApproaching means variance dynamics are changing.
	PhaseApproaching
	// PhaseCritical means a strong inflection signal, transition likely.
	PhaseCritical
	// PhaseTransitioning means a committed transition is in progress.
	PhaseTransitioning
)

func (p Phase) String() string {
	switch p {
	case PhaseStable:
		return "stable"
	case PhaseApproaching:
		return "approaching"
	case PhaseCritical:
		return "critical"
	case PhaseTransitioning:
		return "transitioning"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler so phases appear as names
// in JSON output.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Phase) UnmarshalText(text []byte) error {
	switch string(text) {
	case "approaching":
		*p = PhaseApproaching
	case "critical":
		*p = PhaseCritical
	case "transitioning":
		*p = PhaseTransitioning
	default:
		*p = PhaseStable
	}
	return nil
}

// #endregion phase

// #region kernel

// Kernel selects how the variance trajectory is smoothed.
type Kernel string

const (
	// KernelUniform averages the smoothing window with equal weights.
	KernelUniform Kernel = "uniform"
	// KernelTriangular weights recent samples more, decaying linearly.
	KernelTriangular Kernel = "triangular"
)

// #endregion kernel

// #region config

// Config holds detector tuning knobs.
type Config struct {
	// WindowSize is the rolling-variance window.
	WindowSize int
	// SmoothingWindow is the window for smoothing the variance trajectory.
	SmoothingWindow int
	// Threshold is the inflection z-score above which the phase escalates.
	Threshold float64
	// MinPeakDistance is the cooldown length armed by CheckTransition.
	MinPeakDistance int
	// Kernel is the smoothing kernel.
	Kernel Kernel
}

// DefaultConfig returns the balanced configuration.
func DefaultConfig() Config {
	return Config{
		WindowSize:      40,
		SmoothingWindow: 15,
		Threshold:       1.5,
		MinPeakDistance: 20,
		Kernel:          KernelUniform,
	}
}

// SensitiveConfig trades precision for earlier detection.
func SensitiveConfig() Config {
	c := DefaultConfig()
	c.Threshold = 1.0
	c.MinPeakDistance = 10
	return c
}

// ConservativeConfig trades lead time for fewer false positives.
func ConservativeConfig() Config {
	c := DefaultConfig()
	c.Threshold = 2.5
	c.MinPeakDistance = 30
	return c
}

// #endregion config

// #region result

// Result is one update's classification and supporting statistics.
type Result struct {
	Phase       Phase
	Confidence  float64
	InflectionZ float64
	Variance    float64
	VarTrend    float64
	D2Variance  float64
}

// #endregion result

// #region detector

// Detector is the streaming variance-inflection detector. One instance tracks
// one scalar series.
type Detector struct {
	config Config

	observations []float64
	varianceHist []float64
	smoothedVar  []float64
	d1Variance   []float64
	d2Variance   []float64

	// Self-calibrating noise baseline over |d²V|.
	baselineMean    float64
	baselineStd     float64
	baselineSamples int

	cooldown int
	count    int
}

// New creates a detector with the given configuration.
func New(config Config) *Detector {
	cap := config.WindowSize * 3
	return &Detector{
		config:       config,
		observations: make([]float64, 0, cap),
		varianceHist: make([]float64, 0, cap),
		smoothedVar:  make([]float64, 0, cap),
		d1Variance:   make([]float64, 0, cap),
		d2Variance:   make([]float64, 0, cap),
		baselineStd:  1.0,
	}
}

// Update processes one observation and returns the fresh classification.
// Update never arms a cooldown itself; only CheckTransition commits a
// transition.
func (d *Detector) Update(value float64) Result {
	d.count++

	if len(d.observations) >= d.config.WindowSize*3 {
		d.observations = d.observations[1:]
	}
	d.observations = append(d.observations, value)

	if len(d.observations) >= d.config.WindowSize {
		d.updateVarianceTrajectory(d.rollingVariance())
	}

	if d.cooldown > 0 {
		d.cooldown--
	}

	return d.result()
}

// UpdateBatch processes values in order and returns the final classification.
func (d *Detector) UpdateBatch(values []float64) Result {
	res := d.result()
	for _, v := range values {
		res = d.Update(v)
	}
	return res
}

// CheckTransition is the only path that commits a transition: when the
// current phase is Critical and no cooldown is active, it arms a cooldown of
// MinPeakDistance updates and returns the result with ok=true. Otherwise
// ok=false.
func (d *Detector) CheckTransition() (Result, bool) {
	res := d.result()
	if res.Phase == PhaseCritical && d.cooldown == 0 {
		d.cooldown = d.config.MinPeakDistance
		return res, true
	}
	return res, false
}

// Phase returns the current classification.
func (d *Detector) Phase() Phase {
	return d.result().Phase
}

// Confidence returns the current confidence in [0, 1].
func (d *Detector) Confidence() float64 {
	return d.result().Confidence
}

// Variance returns the most recent rolling variance.
func (d *Detector) Variance() float64 {
	if len(d.varianceHist) == 0 {
		return 0
	}
	return d.varianceHist[len(d.varianceHist)-1]
}

// InflectionMagnitude returns the current |d²V| z-score.
func (d *Detector) InflectionMagnitude() float64 {
	return d.result().InflectionZ
}

// Count returns total observations processed.
func (d *Detector) Count() int {
	return d.count
}

// Config returns the detector configuration.
func (d *Detector) Config() Config {
	return d.config
}

// Reset clears all state.
func (d *Detector) Reset() {
	d.observations = d.observations[:0]
	d.varianceHist = d.varianceHist[:0]
	d.smoothedVar = d.smoothedVar[:0]
	d.d1Variance = d.d1Variance[:0]
	d.d2Variance = d.d2Variance[:0]
	d.baselineMean = 0
	d.baselineStd = 1.0
	d.baselineSamples = 0
	d.cooldown = 0
	d.count = 0
}

// #endregion detector

// #region internals

func (d *Detector) rollingVariance() float64 {
	n := d.config.WindowSize
	if len(d.observations) < n {
		return 0
	}
	window := d.observations[len(d.observations)-n:]

	mean := 0.0
	for _, x := range window {
		mean += x
	}
	mean /= float64(n)

	variance := 0.0
	for _, x := range window {
		dx := x - mean
		variance += dx * dx
	}
	return variance / float64(n)
}

func (d *Detector) updateVarianceTrajectory(variance float64) {
	cap2 := d.config.WindowSize * 2

	if len(d.varianceHist) >= cap2 {
		d.varianceHist = d.varianceHist[1:]
	}
	d.varianceHist = append(d.varianceHist, variance)

	smoothed := d.smoothVariance()
	if len(d.smoothedVar) >= cap2 {
		d.smoothedVar = d.smoothedVar[1:]
	}
	d.smoothedVar = append(d.smoothedVar, smoothed)

	if n := len(d.smoothedVar); n >= 2 {
		d1 := d.smoothedVar[n-1] - d.smoothedVar[n-2]
		if len(d.d1Variance) >= cap2 {
			d.d1Variance = d.d1Variance[1:]
		}
		d.d1Variance = append(d.d1Variance, d1)
	}

	if n := len(d.d1Variance); n >= 2 {
		d2 := d.d1Variance[n-1] - d.d1Variance[n-2]
		if len(d.d2Variance) >= cap2 {
			d.d2Variance = d.d2Variance[1:]
		}
		d.d2Variance = append(d.d2Variance, d2)
		d.updateBaseline(math.Abs(d2))
	}
}

func (d *Detector) smoothVariance() float64 {
	n := d.config.SmoothingWindow
	if n > len(d.varianceHist) {
		n = len(d.varianceHist)
	}
	if n == 0 {
		return 0
	}
	window := d.varianceHist[len(d.varianceHist)-n:]

	switch d.config.Kernel {
	case KernelTriangular:
		// Linearly decaying weights, newest sample heaviest.
		sum, weightSum := 0.0, 0.0
		for i := 0; i < n; i++ {
			w := 1.0 - float64(i)/float64(n)
			sum += window[n-1-i] * w
			weightSum += w
		}
		return sum / weightSum
	default:
		sum := 0.0
		for _, v := range window {
			sum += v
		}
		return sum / float64(n)
	}
}

// updateBaseline maintains an exponentially-weighted mean and std of |d²V|
// as the noise floor for the inflection z-score.
func (d *Detector) updateBaseline(absD2 float64) {
	d.baselineSamples++

	const alpha = 0.02
	d.baselineMean = (1-alpha)*d.baselineMean + alpha*absD2

	deviation := (absD2 - d.baselineMean) * (absD2 - d.baselineMean)
	varianceEst := (1-alpha)*d.baselineStd*d.baselineStd + alpha*deviation
	d.baselineStd = math.Max(math.Sqrt(varianceEst), 1e-10)
}

func (d *Detector) result() Result {
	variance := d.Variance()
	d2 := 0.0
	if len(d.d2Variance) > 0 {
		d2 = d.d2Variance[len(d.d2Variance)-1]
	}

	z := 0.0
	if d.baselineStd > 1e-10 {
		z = (math.Abs(d2) - d.baselineMean) / d.baselineStd
	}

	varTrend := 0.0
	if len(d.d1Variance) > 0 {
		varTrend = d.d1Variance[len(d.d1Variance)-1]
	}

	// Warm-up overrides everything else.
	var phase Phase
	switch {
	case d.count < d.config.WindowSize*2:
		phase = PhaseStable
	case d.cooldown > 0:
		phase = PhaseTransitioning
	case z > d.config.Threshold*1.5:
		phase = PhaseCritical
	case z > d.config.Threshold:
		phase = PhaseApproaching
	default:
		phase = PhaseStable
	}

	confidence := 0.0
	if d.count >= d.config.WindowSize {
		confidence = clamp(z/(d.config.Threshold*2), 0, 1)
	}

	return Result{
		Phase:       phase,
		Confidence:  confidence,
		InflectionZ: z,
		Variance:    variance,
		VarTrend:    varTrend,
		D2Variance:  d2,
	}
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// #endregion internals

// Package shepherd is the fusion layer: it owns the compression-dynamics
// model plus one variance-inflection detector per dyad, fed exclusively by
// that dyad's Φ series, and turns the combined signal into leveled early
// warnings.
package shepherd

import (
	"fmt"

	"github.com/shepherd-dynamics/go-engine/internal/detector"
	"github.com/shepherd-dynamics/go-engine/internal/model"
	"github.com/shepherd-dynamics/go-engine/internal/signal"
)

// #region alert

// AlertLevel is the four-step warning scale.
type AlertLevel int

const (
	// Green means normal, no significant change. Green alerts are computed
	// for bookkeeping but never returned to callers.
	Green AlertLevel = iota
	// Yellow means elevated divergence, worth watching.
	Yellow
	// Orange means a pre-transition signature.
	Orange
	// Red means nucleation detected, transition imminent.
	Red
)

func (l AlertLevel) String() string {
	switch l {
	case Green:
		return "green"
	case Yellow:
		return "yellow"
	case Orange:
		return "orange"
	case Red:
		return "red"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler so levels appear as names
// in JSON output.
func (l AlertLevel) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *AlertLevel) UnmarshalText(text []byte) error {
	switch string(text) {
	case "yellow":
		*l = Yellow
	case "orange":
		*l = Orange
	case "red":
		*l = Red
	default:
		*l = Green
	}
	return nil
}

// Alert is one dyad-level early warning.
type Alert struct {
	ActorA      string         `json:"actor_a"`
	ActorB      string         `json:"actor_b"`
	Level       AlertLevel     `json:"alert_level"`
	Phase       detector.Phase `json:"phase"`
	Phi         float64        `json:"phi"`
	PhiTrend    float64        `json:"phi_trend"`
	Confidence  float64        `json:"confidence"`
	TimestampMS int64          `json:"timestamp_ms"`
	Message     string         `json:"message"`
}

// IsActionable reports whether the alert is Orange or above.
func (a Alert) IsActionable() bool {
	return a.Level >= Orange
}

// AlertLevelFor is the pure alert-level rule. It depends only on its inputs,
// so identical (phase, phi, trend) always yields the identical level.
func AlertLevelFor(phase detector.Phase, phi, phiTrend float64) AlertLevel {
	switch phase {
	case detector.PhaseCritical, detector.PhaseTransitioning:
		if phi > 1.0 {
			return Red
		}
		return Orange
	case detector.PhaseApproaching:
		if phi > 1.5 || phiTrend > 0.1 {
			return Orange
		}
		return Yellow
	default:
		if phi > 2.0 || (phi > 1.0 && phiTrend > 0.05) {
			return Yellow
		}
		return Green
	}
}

func alertMessage(actorA, actorB string, level AlertLevel, phase detector.Phase, phi, phiTrend float64) string {
	trend := "stable"
	if phiTrend > 0.05 {
		trend = "increasing"
	} else if phiTrend < -0.05 {
		trend = "decreasing"
	}

	switch level {
	case Red:
		return fmt.Sprintf("NUCLEATION ALERT: %s-%s divergence critical (phi=%.2f, %s). Transition imminent.",
			actorA, actorB, phi, trend)
	case Orange:
		return fmt.Sprintf("WARNING: %s-%s showing pre-transition signature (phi=%.2f, %s, phase=%s)",
			actorA, actorB, phi, trend, phase)
	case Yellow:
		return fmt.Sprintf("WATCH: %s-%s divergence elevated (phi=%.2f, %s)", actorA, actorB, phi, trend)
	default:
		return fmt.Sprintf("%s-%s normal (phi=%.2f)", actorA, actorB, phi)
	}
}

// #endregion alert

// #region tracker

// PhiSample is one timestamped Φ measurement for a dyad.
type PhiSample struct {
	TimestampMS int64   `json:"timestamp_ms"`
	Phi         float64 `json:"phi"`
}

const (
	phiHistoryCap   = 1000
	alertHistoryCap = 10000
)

type dyadTracker struct {
	actorA     string
	actorB     string
	detector   *detector.Detector
	phiStats   *signal.RollingStats
	phiGrad    *signal.GradientTracker
	phiHistory []PhiSample
	lastAlert  *Alert
}

func newDyadTracker(actorA, actorB string, cfg detector.Config) *dyadTracker {
	return &dyadTracker{
		actorA:   actorA,
		actorB:   actorB,
		detector: detector.New(cfg),
		phiStats: signal.NewRollingStats(cfg.WindowSize),
		phiGrad:  signal.NewGradientTracker(cfg.WindowSize),
	}
}

// update feeds one Φ sample through the detector and produces the dyad's
// alert. Green alerts are recorded as lastAlert but not returned.
func (t *dyadTracker) update(phi float64, timestampMS int64) *Alert {
	t.phiHistory = append(t.phiHistory, PhiSample{TimestampMS: timestampMS, Phi: phi})
	if len(t.phiHistory) > phiHistoryCap {
		t.phiHistory = t.phiHistory[1:]
	}
	t.phiStats.Push(phi)
	t.phiGrad.Push(phi, float64(timestampMS)/1000.0)

	res := t.detector.Update(phi)

	// Trend: newest minus the oldest of the last 10 samples.
	phiTrend := 0.0
	if n := len(t.phiHistory); n >= 2 {
		start := n - 10
		if start < 0 {
			start = 0
		}
		phiTrend = t.phiHistory[n-1].Phi - t.phiHistory[start].Phi
	}

	level := AlertLevelFor(res.Phase, phi, phiTrend)

	alert := Alert{
		ActorA:      t.actorA,
		ActorB:      t.actorB,
		Level:       level,
		Phase:       res.Phase,
		Phi:         phi,
		PhiTrend:    phiTrend,
		Confidence:  res.Confidence,
		TimestampMS: timestampMS,
		Message:     alertMessage(t.actorA, t.actorB, level, res.Phase, phi, phiTrend),
	}
	t.lastAlert = &alert

	if level >= Yellow {
		return &alert
	}
	return nil
}

// #endregion tracker

// #region shepherd

// Shepherd monitors all registered dyads for nucleation signatures.
// It is not safe for concurrent use.
type Shepherd struct {
	model          *model.Model
	detectorConfig detector.Config
	trackers       map[[2]string]*dyadTracker
	alertHistory   []Alert
}

// New creates a shepherd with default model and detector configuration.
func New(nCategories int) *Shepherd {
	return WithConfig(model.DefaultConfig(nCategories), detector.DefaultConfig())
}

// WithConfig creates a shepherd with explicit configuration.
func WithConfig(modelCfg model.Config, detectorCfg detector.Config) *Shepherd {
	return &Shepherd{
		model:          model.WithConfig(modelCfg),
		detectorConfig: detectorCfg,
		trackers:       make(map[[2]string]*dyadTracker),
	}
}

// Model exposes the underlying compression-dynamics model.
func (s *Shepherd) Model() *model.Model {
	return s.model
}

// RegisterActor registers an actor, nil distribution meaning uniform.
func (s *Shepherd) RegisterActor(actorID string, distribution []float64) {
	s.model.RegisterActor(actorID, distribution, nil)
}

// Actors returns all registered actor ids, sorted.
func (s *Shepherd) Actors() []string {
	return s.model.Actors()
}

// UpdateActor applies an observation to one actor, then re-measures Φ
// against every other registered actor in sorted order, yielding at most one
// alert per dyad.
func (s *Shepherd) UpdateActor(actorID string, observation []float64, timestampMS int64) ([]Alert, error) {
	if _, err := s.model.UpdateScheme(actorID, observation, timestampMS); err != nil {
		return nil, err
	}

	var alerts []Alert
	for _, other := range s.model.Actors() {
		if other == actorID {
			continue
		}
		alert, err := s.CheckDyad(actorID, other, timestampMS)
		if err != nil {
			return alerts, err
		}
		if alert != nil {
			alerts = append(alerts, *alert)
		}
	}
	return alerts, nil
}

// CheckDyad measures a dyad's Φ, feeds it to the dyad's detector and returns
// a Yellow-or-higher alert, or nil when the dyad is Green. Returned alerts
// are appended to the alert history.
func (s *Shepherd) CheckDyad(actorA, actorB string, timestampMS int64) (*Alert, error) {
	p, err := s.model.Potential(actorA, actorB)
	if err != nil {
		return nil, err
	}

	key := dyadKey(actorA, actorB)
	tracker, ok := s.trackers[key]
	if !ok {
		tracker = newDyadTracker(key[0], key[1], s.detectorConfig)
		s.trackers[key] = tracker
	}

	alert := tracker.update(p.Phi, timestampMS)
	if alert != nil {
		s.alertHistory = append(s.alertHistory, *alert)
		if len(s.alertHistory) > alertHistoryCap {
			s.alertHistory = s.alertHistory[len(s.alertHistory)-alertHistoryCap:]
		}
	}
	return alert, nil
}

// CheckAllDyads checks every unordered pair of registered actors.
func (s *Shepherd) CheckAllDyads(timestampMS int64) []Alert {
	actors := s.model.Actors()
	var alerts []Alert
	for i := 0; i < len(actors); i++ {
		for j := i + 1; j < len(actors); j++ {
			alert, err := s.CheckDyad(actors[i], actors[j], timestampMS)
			if err != nil {
				continue
			}
			if alert != nil {
				alerts = append(alerts, *alert)
			}
		}
	}
	return alerts
}

// PhiHistory returns the retained Φ samples for a dyad, oldest first.
func (s *Shepherd) PhiHistory(actorA, actorB string) []PhiSample {
	t, ok := s.trackers[dyadKey(actorA, actorB)]
	if !ok {
		return nil
	}
	out := make([]PhiSample, len(t.phiHistory))
	copy(out, t.phiHistory)
	return out
}

// DyadStats summarizes a dyad's recent Φ series.
type DyadStats struct {
	Mean     float64 `json:"mean"`
	Variance float64 `json:"variance"`
	ZScore   float64 `json:"z_score"`
	Gradient float64 `json:"gradient"`
	Samples  int     `json:"samples"`
}

// PhiStats returns rolling statistics of a dyad's Φ series: windowed mean,
// variance, the z-score of the latest sample, and the least-squares Φ slope
// per second.
func (s *Shepherd) PhiStats(actorA, actorB string) (DyadStats, bool) {
	t, ok := s.trackers[dyadKey(actorA, actorB)]
	if !ok {
		return DyadStats{}, false
	}
	return DyadStats{
		Mean:     t.phiStats.Mean(),
		Variance: t.phiStats.Variance(),
		ZScore:   t.phiStats.ZScore(),
		Gradient: t.phiGrad.Gradient(),
		Samples:  t.phiStats.Len(),
	}, true
}

// LastAlert returns the most recent alert for a dyad, including suppressed
// Green ones.
func (s *Shepherd) LastAlert(actorA, actorB string) (Alert, bool) {
	t, ok := s.trackers[dyadKey(actorA, actorB)]
	if !ok || t.lastAlert == nil {
		return Alert{}, false
	}
	return *t.lastAlert, true
}

// AlertHistory returns every returned (Yellow+) alert, oldest first.
func (s *Shepherd) AlertHistory() []Alert {
	return s.alertHistory
}

// ActionableAlerts returns the Orange/Red subset of the alert history.
func (s *Shepherd) ActionableAlerts() []Alert {
	var out []Alert
	for _, a := range s.alertHistory {
		if a.IsActionable() {
			out = append(out, a)
		}
	}
	return out
}

// RestoreModel replaces the underlying model with one rebuilt from a
// snapshot payload. Dyad trackers start cold; their Φ history refills as
// events arrive.
func (s *Shepherd) RestoreModel(snapshot []byte) error {
	m, err := model.Restore(snapshot)
	if err != nil {
		return err
	}
	s.model = m
	s.trackers = make(map[[2]string]*dyadTracker)
	return nil
}

// ClearAlertHistory drops the retained alert history. Dyad trackers and the
// model are untouched.
func (s *Shepherd) ClearAlertHistory() {
	s.alertHistory = nil
}

func dyadKey(a, b string) [2]string {
	if a > b {
		a, b = b, a
	}
	return [2]string{a, b}
}

// #endregion shepherd

// Package model is the aggregate that owns all registered actors: their
// compression schemes, their grievances, and the measured history of pairwise
// conflict potentials. It layers escalation prediction and alignment-path
// search on top of the raw divergence measures.
//
// Registration policy is deliberately asymmetric: UpdateScheme auto-registers
// an unknown actor with a uniform prior (ingesting a stream should never
// fail on a new id), while query operations such as Potential and
// FindAlignmentPath return UnknownActorError for ids never seen. Do not
// unify the two.
package model

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/shepherd-dynamics/go-engine/internal/scheme"
)

// #region errors

// UnknownActorError reports a query against an actor id that was never
// registered.
type UnknownActorError struct {
	ActorID string
}

func (e *UnknownActorError) Error() string {
	return fmt.Sprintf("unknown actor %q", e.ActorID)
}

// #endregion errors

// #region config

// Config holds model tuning knobs.
type Config struct {
	// NCategories is the dimensionality of the compression space.
	NCategories int `json:"n_categories" yaml:"n_categories"`
	// LearningRate is the EMA blend factor for scheme updates.
	LearningRate float64 `json:"learning_rate" yaml:"learning_rate"`
	// EscalationAlpha weights the current divergence.
	EscalationAlpha float64 `json:"escalation_alpha" yaml:"escalation_alpha"`
	// EscalationBeta weights communication dampening.
	EscalationBeta float64 `json:"escalation_beta" yaml:"escalation_beta"`
	// EscalationGamma weights divergence trend and shock.
	EscalationGamma float64 `json:"escalation_gamma" yaml:"escalation_gamma"`
	// GrievanceWindow is the trailing window for windowed grievance.
	GrievanceWindow int `json:"grievance_window" yaml:"grievance_window"`
}

// DefaultConfig returns the standard configuration for n categories.
func DefaultConfig(nCategories int) Config {
	return Config{
		NCategories:     nCategories,
		LearningRate:    0.1,
		EscalationAlpha: 0.5,
		EscalationBeta:  0.3,
		EscalationGamma: 0.8,
		GrievanceWindow: 30,
	}
}

// #endregion config

// #region model

// HistoryEntry records one scheme state after an update.
type HistoryEntry struct {
	TimestampMS  int64     `json:"timestamp_ms"`
	ActorID      string    `json:"actor_id"`
	Distribution []float64 `json:"distribution"`
}

// Retention caps for the two append-only histories. Oldest entries are
// evicted first; ClearHistory remains the explicit full reset.
const (
	maxHistoryEntries   = 10000
	maxStoredPotentials = 10000
)

// Model tracks compression schemes over time, computes conflict potentials
// and predicts escalation from divergence dynamics. It is not safe for
// concurrent use; callers running it under a scheduler must serialize access.
type Model struct {
	config     Config
	schemes    map[string]*scheme.Scheme
	grievances map[string]*scheme.Grievance
	history    []HistoryEntry
	potentials []ConflictPotential
}

// New creates a model with the default configuration for n categories.
func New(nCategories int) *Model {
	return WithConfig(DefaultConfig(nCategories))
}

// WithConfig creates a model with an explicit configuration.
func WithConfig(config Config) *Model {
	return &Model{
		config:     config,
		schemes:    make(map[string]*scheme.Scheme),
		grievances: make(map[string]*scheme.Grievance),
	}
}

// Config returns the model configuration.
func (m *Model) Config() Config {
	return m.config
}

// Actors returns all registered actor ids, sorted.
func (m *Model) Actors() []string {
	ids := make([]string, 0, len(m.schemes))
	for id := range m.schemes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Scheme looks up an actor's scheme.
func (m *Model) Scheme(actorID string) (*scheme.Scheme, bool) {
	s, ok := m.schemes[actorID]
	return s, ok
}

// Grievance looks up an actor's grievance state.
func (m *Model) Grievance(actorID string) (*scheme.Grievance, bool) {
	g, ok := m.grievances[actorID]
	return g, ok
}

// RegisterActor registers an actor with an initial distribution. A nil
// distribution registers a uniform prior. Re-registering an existing id
// replaces its scheme and resets its grievance.
func (m *Model) RegisterActor(actorID string, distribution []float64, categories []string) *scheme.Scheme {
	var s *scheme.Scheme
	if distribution == nil {
		s = scheme.Uniform(actorID, m.config.NCategories)
	} else {
		s = scheme.New(actorID, distribution, categories)
	}
	m.schemes[actorID] = s
	m.grievances[actorID] = scheme.NewGrievance(actorID)
	return s
}

// UpdateScheme applies an observation to an actor's scheme. Unknown ids are
// auto-registered with a uniform prior first. A timestampMS of zero or less
// means "now". The squared prediction error of the observation against the
// pre-update distribution feeds the actor's grievance.
func (m *Model) UpdateScheme(actorID string, observation []float64, timestampMS int64) (*scheme.Scheme, error) {
	s, ok := m.schemes[actorID]
	if !ok {
		s = m.RegisterActor(actorID, nil, nil)
	}

	old := s.Distribution()
	oldCopy := make([]float64, len(old))
	copy(oldCopy, old)

	if err := s.Update(observation, m.config.LearningRate); err != nil {
		return nil, err
	}

	if timestampMS <= 0 {
		timestampMS = time.Now().UnixMilli()
	}
	s.TimestampMS = timestampMS

	snapshot := make([]float64, len(oldCopy))
	copy(snapshot, s.Distribution())
	m.history = append(m.history, HistoryEntry{
		TimestampMS:  timestampMS,
		ActorID:      actorID,
		Distribution: snapshot,
	})
	if len(m.history) > maxHistoryEntries {
		m.history = m.history[len(m.history)-maxHistoryEntries:]
	}

	predictionError := 0.0
	for i, o := range observation {
		d := o - oldCopy[i]
		predictionError += d * d
	}
	m.grievances[actorID].Update(predictionError, m.config.GrievanceWindow)

	return s, nil
}

// Potential measures the conflict potential between two actors and appends
// it to the dyad history. Unknown ids fail with UnknownActorError.
func (m *Model) Potential(actorA, actorB string) (ConflictPotential, error) {
	sa, ok := m.schemes[actorA]
	if !ok {
		return ConflictPotential{}, &UnknownActorError{ActorID: actorA}
	}
	sb, ok := m.schemes[actorB]
	if !ok {
		return ConflictPotential{}, &UnknownActorError{ActorID: actorB}
	}

	p, err := NewPotential(sa, sb, time.Now().UnixMilli())
	if err != nil {
		return ConflictPotential{}, err
	}
	m.potentials = append(m.potentials, p)
	if len(m.potentials) > maxStoredPotentials {
		m.potentials = m.potentials[len(m.potentials)-maxStoredPotentials:]
	}
	return p, nil
}

// AllPotentials measures every unordered pair of registered actors. Pairs
// that fail are skipped.
func (m *Model) AllPotentials() []ConflictPotential {
	actors := m.Actors()
	results := make([]ConflictPotential, 0, len(actors)*(len(actors)-1)/2)
	for i := 0; i < len(actors); i++ {
		for j := i + 1; j < len(actors); j++ {
			p, err := m.Potential(actors[i], actors[j])
			if err != nil {
				continue
			}
			results = append(results, p)
		}
	}
	return results
}

// DyadHistory returns every recorded potential between two actors, in
// measurement order. Caller order does not matter.
func (m *Model) DyadHistory(actorA, actorB string) []ConflictPotential {
	if actorA > actorB {
		actorA, actorB = actorB, actorA
	}
	var out []ConflictPotential
	for _, p := range m.potentials {
		if p.ActorA == actorA && p.ActorB == actorB {
			out = append(out, p)
		}
	}
	return out
}

// PotentialCount returns the total number of recorded potentials.
func (m *Model) PotentialCount() int {
	return len(m.potentials)
}

// History returns the scheme update history.
func (m *Model) History() []HistoryEntry {
	return m.history
}

// ClearHistory drops scheme history and potential history and zeroes every
// grievance. Registered schemes are kept.
func (m *Model) ClearHistory() {
	m.history = nil
	m.potentials = nil
	for _, g := range m.grievances {
		g.Reset()
	}
}

// Reset drops everything, returning the model to its freshly-created state.
func (m *Model) Reset() {
	m.schemes = make(map[string]*scheme.Scheme)
	m.grievances = make(map[string]*scheme.Grievance)
	m.history = nil
	m.potentials = nil
}

// #endregion model

// #region escalation

// EscalationPrediction is the output of PredictEscalation.
type EscalationPrediction struct {
	ActorA             string    `json:"actor_a"`
	ActorB             string    `json:"actor_b"`
	Probability        float64   `json:"probability"`
	CurrentPhi         float64   `json:"current_phi"`
	CurrentJS          float64   `json:"current_js"`
	DPhiDt             float64   `json:"d_phi_dt"`
	AvgGrievance       float64   `json:"avg_grievance"`
	CommunicationLevel float64   `json:"communication_level"`
	Risk               RiskLevel `json:"risk"`
}

// PredictEscalation estimates the probability of escalation for a dyad with
// a logistic model over current divergence, divergence trend, grievance,
// communication level and shock intensity. Only a rising divergence trend
// contributes.
func (m *Model) PredictEscalation(actorA, actorB string, communicationLevel, shockIntensity float64) (EscalationPrediction, error) {
	current, err := m.Potential(actorA, actorB)
	if err != nil {
		return EscalationPrediction{}, err
	}

	hist := m.DyadHistory(actorA, actorB)
	dPhi := 0.0
	if len(hist) >= 2 {
		dPhi = hist[len(hist)-1].Phi - hist[len(hist)-2].Phi
	}

	avgGrievance := 0.0
	ga, okA := m.grievances[actorA]
	gb, okB := m.grievances[actorB]
	switch {
	case okA && okB:
		avgGrievance = (ga.WindowError + gb.WindowError) / 2.0
	case okA:
		avgGrievance = ga.WindowError
	case okB:
		avgGrievance = gb.WindowError
	}

	logit := m.config.EscalationAlpha*current.Phi +
		m.config.EscalationGamma*math.Max(0, dPhi) +
		0.5*avgGrievance -
		m.config.EscalationBeta*communicationLevel +
		m.config.EscalationGamma*shockIntensity

	prob := 1.0 / (1.0 + math.Exp(-logit))

	return EscalationPrediction{
		ActorA:             actorA,
		ActorB:             actorB,
		Probability:        prob,
		CurrentPhi:         current.Phi,
		CurrentJS:          current.JS,
		DPhiDt:             dPhi,
		AvgGrievance:       avgGrievance,
		CommunicationLevel: communicationLevel,
		Risk:               RiskFromProbability(prob),
	}, nil
}

// #endregion escalation

// #region alignment

// CategoryDivergence is one category's contribution to a dyad's divergence.
type CategoryDivergence struct {
	Category     string  `json:"category"`
	ProbA        float64 `json:"prob_a"`
	ProbB        float64 `json:"prob_b"`
	Contribution float64 `json:"contribution"`
}

// AlignmentPath ranks the categories that most separate a dyad's worldviews.
// Alignment does not require agreeing on the past, only on how future
// observations are compressed.
type AlignmentPath struct {
	CurrentPhi          float64              `json:"current_phi"`
	TargetPhi           float64              `json:"target_phi"`
	AlignmentNeeded     float64              `json:"alignment_needed"`
	DivergingCategories []CategoryDivergence `json:"diverging_categories"`
	Recommendation      string               `json:"recommendation"`
}

// FindAlignmentPath scores every category by its symmetrized log-ratio
// contribution p_a·|ln(p_a/p_b)| + p_b·|ln(p_b/p_a)| and returns the top 5,
// with the top 3 named in the recommendation text. Unknown ids fail with
// UnknownActorError.
func (m *Model) FindAlignmentPath(actorA, actorB string, targetPhi float64) (AlignmentPath, error) {
	sa, ok := m.schemes[actorA]
	if !ok {
		return AlignmentPath{}, &UnknownActorError{ActorID: actorA}
	}
	sb, ok := m.schemes[actorB]
	if !ok {
		return AlignmentPath{}, &UnknownActorError{ActorID: actorB}
	}

	currentPhi, err := sa.SymmetricDivergence(sb)
	if err != nil {
		return AlignmentPath{}, err
	}

	distA := sa.Distribution()
	distB := sb.Distribution()

	type indexed struct {
		idx     int
		contrib float64
	}
	contributions := make([]indexed, len(distA))
	for i := range distA {
		ratioAB := math.Abs(math.Log(distA[i] / (distB[i] + 1e-10)))
		ratioBA := math.Abs(math.Log(distB[i] / (distA[i] + 1e-10)))
		contributions[i] = indexed{idx: i, contrib: distA[i]*ratioAB + distB[i]*ratioBA}
	}
	sort.SliceStable(contributions, func(i, j int) bool {
		return contributions[i].contrib > contributions[j].contrib
	})

	n := 5
	if n > len(contributions) {
		n = len(contributions)
	}
	diverging := make([]CategoryDivergence, 0, n)
	for _, c := range contributions[:n] {
		name := fmt.Sprintf("cat_%d", c.idx)
		if c.idx < len(sa.Categories) {
			name = sa.Categories[c.idx]
		}
		diverging = append(diverging, CategoryDivergence{
			Category:     name,
			ProbA:        distA[c.idx],
			ProbB:        distB[c.idx],
			Contribution: c.contrib,
		})
	}

	top := make([]string, 0, 3)
	for _, d := range diverging {
		if len(top) == 3 {
			break
		}
		top = append(top, d.Category)
	}

	return AlignmentPath{
		CurrentPhi:          currentPhi,
		TargetPhi:           targetPhi,
		AlignmentNeeded:     currentPhi - targetPhi,
		DivergingCategories: diverging,
		Recommendation:      alignmentMessage(top),
	}, nil
}

// alignmentMessage renders the recommendation text. Only the ranking feeding
// it is contractual; the wording is presentation.
func alignmentMessage(categories []string) string {
	return "Focus dialogue on shared interpretations of: " + strings.Join(categories, ", ")
}

// #endregion alignment

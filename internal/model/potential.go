package model

import (
	"strings"

	"github.com/shepherd-dynamics/go-engine/internal/scheme"
)

// #region risk

// RiskLevel is a coarse categorization of conflict risk.
type RiskLevel int

const (
	RiskLow RiskLevel = iota
	RiskModerate
	RiskElevated
	RiskHigh
	RiskCritical
)

// RiskFromPhi maps a conflict potential onto a risk level.
func RiskFromPhi(phi float64) RiskLevel {
	switch {
	case phi < 0.5:
		return RiskLow
	case phi < 1.0:
		return RiskModerate
	case phi < 2.0:
		return RiskElevated
	case phi < 4.0:
		return RiskHigh
	default:
		return RiskCritical
	}
}

// RiskFromProbability maps an escalation probability onto a risk level using
// fixed cut points at 0.2, 0.4, 0.6 and 0.8.
func RiskFromProbability(prob float64) RiskLevel {
	switch {
	case prob < 0.2:
		return RiskLow
	case prob < 0.4:
		return RiskModerate
	case prob < 0.6:
		return RiskElevated
	case prob < 0.8:
		return RiskHigh
	default:
		return RiskCritical
	}
}

func (r RiskLevel) String() string {
	switch r {
	case RiskLow:
		return "LOW"
	case RiskModerate:
		return "MODERATE"
	case RiskElevated:
		return "ELEVATED"
	case RiskHigh:
		return "HIGH"
	case RiskCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// MarshalText implements encoding.TextMarshaler so risk levels round-trip
// through JSON as their names.
func (r RiskLevel) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *RiskLevel) UnmarshalText(text []byte) error {
	switch strings.ToUpper(string(text)) {
	case "LOW":
		*r = RiskLow
	case "MODERATE":
		*r = RiskModerate
	case "ELEVATED":
		*r = RiskElevated
	case "HIGH":
		*r = RiskHigh
	default:
		*r = RiskCritical
	}
	return nil
}

// #endregion risk

// #region potential

// ConflictPotential is one measured dyad divergence. Actors are stored in
// canonical (lexicographic) order regardless of caller order; the directional
// KL terms follow the stored order.
type ConflictPotential struct {
	ActorA      string  `json:"actor_a"`
	ActorB      string  `json:"actor_b"`
	Phi         float64 `json:"phi"`
	JS          float64 `json:"js"`
	Hellinger   float64 `json:"hellinger"`
	KLAB        float64 `json:"kl_a_b"`
	KLBA        float64 `json:"kl_b_a"`
	TimestampMS int64   `json:"timestamp_ms"`
}

// NewPotential measures the divergence between two schemes.
func NewPotential(a, b *scheme.Scheme, timestampMS int64) (ConflictPotential, error) {
	if a.ActorID > b.ActorID {
		a, b = b, a
	}

	m, err := a.AllMetrics(b)
	if err != nil {
		return ConflictPotential{}, err
	}

	return ConflictPotential{
		ActorA:      a.ActorID,
		ActorB:      b.ActorID,
		Phi:         m.SymmetricKL,
		JS:          m.JensenShannon,
		Hellinger:   m.Hellinger,
		KLAB:        m.KLPQ,
		KLBA:        m.KLQP,
		TimestampMS: timestampMS,
	}, nil
}

// Asymmetry is |KL(A‖B) − KL(B‖A)|. High asymmetry means one actor would be
// more surprised by the other's worldview than vice versa.
func (p ConflictPotential) Asymmetry() float64 {
	d := p.KLAB - p.KLBA
	if d < 0 {
		return -d
	}
	return d
}

// DominantDiverger names the actor whose scheme is harder for the other to
// predict.
func (p ConflictPotential) DominantDiverger() string {
	if p.KLBA > p.KLAB {
		return p.ActorA
	}
	return p.ActorB
}

// Risk categorizes this potential's phi.
func (p ConflictPotential) Risk() RiskLevel {
	return RiskFromPhi(p.Phi)
}

// #endregion potential

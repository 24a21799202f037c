// Package divergence implements the information-theoretic primitives the
// engine is built on: normalization, Laplace smoothing, Shannon entropy, and
// the divergence family (KL, symmetric KL, Jensen-Shannon, Hellinger,
// Bhattacharyya, cosine). All divergences work in bits (log base 2).
package divergence

import (
	"fmt"
	"math"
)

// #region constants

// Epsilon clamps distribution components before ratios and logs so results
// stay finite.
const Epsilon = 1e-10

// Smoothing is the Laplace constant added to every component before
// renormalization; it guarantees strict positivity downstream.
const Smoothing = 1e-8

// #endregion constants

// #region errors

// DimensionError reports a length mismatch between two vectors. It is always
// surfaced; vectors are never resized to fit.
type DimensionError struct {
	Expected int
	Got      int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}

func checkDims(p, q []float64) error {
	if len(p) != len(q) {
		return &DimensionError{Expected: len(p), Got: len(q)}
	}
	return nil
}

// #endregion errors

// #region normalize

// Normalize scales dist in place to sum to 1. A non-positive sum falls back to
// the uniform distribution rather than erroring.
func Normalize(dist []float64) {
	sum := 0.0
	for _, x := range dist {
		sum += x
	}
	if sum > 0 {
		for i := range dist {
			dist[i] /= sum
		}
		return
	}
	uniform := 1.0 / float64(len(dist))
	for i := range dist {
		dist[i] = uniform
	}
}

// Smooth applies Laplace smoothing in place: add epsilon to every component,
// then renormalize.
func Smooth(dist []float64, epsilon float64) {
	for i := range dist {
		dist[i] += epsilon
	}
	Normalize(dist)
}

// #endregion normalize

// #region entropy

// Entropy returns the Shannon entropy H(P) = -Σ p_i·log2(p_i) in bits.
// Components at or below Epsilon contribute nothing.
func Entropy(p []float64) float64 {
	h := 0.0
	for _, x := range p {
		if x > Epsilon {
			h -= x * math.Log2(x)
		}
	}
	return h
}

// #endregion entropy

// #region kl

// KLDivergence returns D_KL(P‖Q) = Σ p_i·log2(p_i/q_i) in bits. Components are
// clamped to Epsilon before the ratio so the result is always finite.
//
// Non-negative, zero iff P == Q, and asymmetric.
func KLDivergence(p, q []float64) (float64, error) {
	if err := checkDims(p, q); err != nil {
		return 0, err
	}
	kl := 0.0
	for i := range p {
		pi := math.Max(p[i], Epsilon)
		qi := math.Max(q[i], Epsilon)
		kl += pi * math.Log(pi/qi)
	}
	return kl / math.Ln2, nil
}

// SymmetricKL returns Φ(P,Q) = D_KL(P‖Q) + D_KL(Q‖P), the conflict potential
// measure.
func SymmetricKL(p, q []float64) (float64, error) {
	pq, err := KLDivergence(p, q)
	if err != nil {
		return 0, err
	}
	qp, err := KLDivergence(q, p)
	if err != nil {
		return 0, err
	}
	return pq + qp, nil
}

// #endregion kl

// #region jensen-shannon

// JensenShannon returns JS(P,Q) = 0.5·D_KL(P‖M) + 0.5·D_KL(Q‖M) with
// M = 0.5(P+Q), bounded in [0, 1] in bits. The mixture is built from clamped
// components so the result matches ComputeMetrics exactly.
func JensenShannon(p, q []float64) (float64, error) {
	if err := checkDims(p, q); err != nil {
		return 0, err
	}
	jsP, jsQ := 0.0, 0.0
	for i := range p {
		pi := math.Max(p[i], Epsilon)
		qi := math.Max(q[i], Epsilon)
		mi := 0.5 * (pi + qi)
		jsP += pi * math.Log(pi/mi)
		jsQ += qi * math.Log(qi/mi)
	}
	return 0.5 * (jsP + jsQ) / math.Ln2, nil
}

// #endregion jensen-shannon

// #region hellinger

// HellingerDistance returns H(P,Q) = sqrt(0.5·Σ(√p_i−√q_i)²), bounded in
// [0, 1] and a true metric.
func HellingerDistance(p, q []float64) (float64, error) {
	if err := checkDims(p, q); err != nil {
		return 0, err
	}
	sumSq := 0.0
	for i := range p {
		d := math.Sqrt(p[i]) - math.Sqrt(q[i])
		sumSq += d * d
	}
	return math.Sqrt(0.5 * sumSq), nil
}

// BhattacharyyaCoefficient returns BC(P,Q) = Σ√(p_i·q_i) in [0, 1]: 1 iff
// P == Q, 0 iff the supports are disjoint.
func BhattacharyyaCoefficient(p, q []float64) (float64, error) {
	if err := checkDims(p, q); err != nil {
		return 0, err
	}
	bc := 0.0
	for i := range p {
		bc += math.Sqrt(p[i] * q[i])
	}
	return bc, nil
}

// #endregion hellinger

// #region cosine

// CosineSimilarity returns the cosine of the angle between p and q. A
// zero-norm input yields 0 rather than a division by zero.
func CosineSimilarity(p, q []float64) (float64, error) {
	if err := checkDims(p, q); err != nil {
		return 0, err
	}
	dot, normP, normQ := 0.0, 0.0, 0.0
	for i := range p {
		dot += p[i] * q[i]
		normP += p[i] * p[i]
		normQ += q[i] * q[i]
	}
	normP = math.Sqrt(normP)
	normQ = math.Sqrt(normQ)
	if normP < Epsilon || normQ < Epsilon {
		return 0, nil
	}
	return dot / (normP * normQ), nil
}

// #endregion cosine

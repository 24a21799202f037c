package divergence

import "math"

// #region metrics

// Metrics bundles every divergence measure for one pair of distributions.
type Metrics struct {
	KLPQ          float64 `json:"kl_p_q"`
	KLQP          float64 `json:"kl_q_p"`
	SymmetricKL   float64 `json:"symmetric_kl"`
	JensenShannon float64 `json:"jensen_shannon"`
	Hellinger     float64 `json:"hellinger"`
	Bhattacharyya float64 `json:"bhattacharyya"`
	Cosine        float64 `json:"cosine"`
}

// ComputeMetrics computes all divergence measures in a single pass over the
// vectors. Results are numerically identical to calling each primitive on its
// own.
func ComputeMetrics(p, q []float64) (Metrics, error) {
	if err := checkDims(p, q); err != nil {
		return Metrics{}, err
	}

	var (
		klPQ, klQP       float64
		jsP, jsQ         float64
		hellingerSum     float64
		bhattacharyyaSum float64
		dot, normP, normQ float64
	)

	for i := range p {
		pi := math.Max(p[i], Epsilon)
		qi := math.Max(q[i], Epsilon)
		mi := 0.5 * (pi + qi)

		klPQ += pi * math.Log(pi/qi)
		klQP += qi * math.Log(qi/pi)
		jsP += pi * math.Log(pi/mi)
		jsQ += qi * math.Log(qi/mi)

		// The bounded measures use the raw components, as the standalone
		// primitives do.
		d := math.Sqrt(p[i]) - math.Sqrt(q[i])
		hellingerSum += d * d
		bhattacharyyaSum += math.Sqrt(p[i] * q[i])

		dot += p[i] * q[i]
		normP += p[i] * p[i]
		normQ += q[i] * q[i]
	}

	klPQ /= math.Ln2
	klQP /= math.Ln2

	normP = math.Sqrt(normP)
	normQ = math.Sqrt(normQ)
	cosine := 0.0
	if normP >= Epsilon && normQ >= Epsilon {
		cosine = dot / (normP * normQ)
	}

	return Metrics{
		KLPQ:          klPQ,
		KLQP:          klQP,
		SymmetricKL:   klPQ + klQP,
		JensenShannon: 0.5 * (jsP + jsQ) / math.Ln2,
		Hellinger:     math.Sqrt(0.5 * hellingerSum),
		Bhattacharyya: bhattacharyyaSum,
		Cosine:        cosine,
	}, nil
}

// #endregion metrics

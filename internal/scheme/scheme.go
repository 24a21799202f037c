// Package scheme models an actor's worldview as a compression scheme: a
// smoothed probability distribution over a fixed category set, updated online
// from observations, plus the grievance accumulator tracking how badly that
// worldview predicts what actually arrives.
package scheme

import (
	"fmt"
	"math"
	"sort"

	"github.com/shepherd-dynamics/go-engine/internal/divergence"
)

// #region source

// Source tags where a scheme's data came from.
type Source string

const (
	SourceText   Source = "text"
	SourceEvents Source = "events"
	SourceHybrid Source = "hybrid"
	SourceManual Source = "manual"
)

// #endregion source

// #region scheme

// Scheme is an actor's compression scheme. The distribution is always
// normalized and Laplace-smoothed, so every component is strictly positive
// and downstream logs stay finite.
type Scheme struct {
	ActorID     string
	Categories  []string
	TimestampMS int64
	Source      Source
	Metadata    map[string]string

	distribution []float64
}

// New creates a scheme from a raw distribution, normalizing and smoothing it.
// A non-positive sum falls back to the uniform distribution. Nil categories
// get generated cat_i labels.
func New(actorID string, distribution []float64, categories []string) *Scheme {
	if categories == nil {
		categories = make([]string, len(distribution))
		for i := range categories {
			categories[i] = fmt.Sprintf("cat_%d", i)
		}
	}

	dist := make([]float64, len(distribution))
	copy(dist, distribution)

	s := &Scheme{
		ActorID:      actorID,
		Categories:   categories,
		Source:       SourceManual,
		Metadata:     map[string]string{},
		distribution: dist,
	}
	s.normalizeAndSmooth()
	return s
}

// Uniform creates a maximum-entropy scheme over n categories.
func Uniform(actorID string, n int) *Scheme {
	dist := make([]float64, n)
	for i := range dist {
		dist[i] = 1.0 / float64(n)
	}
	return New(actorID, dist, nil)
}

func (s *Scheme) normalizeAndSmooth() {
	divergence.Normalize(s.distribution)
	divergence.Smooth(s.distribution, divergence.Smoothing)
}

// Distribution returns the current distribution. The slice is owned by the
// scheme; callers must not modify it.
func (s *Scheme) Distribution() []float64 {
	return s.distribution
}

// NCategories returns the number of categories.
func (s *Scheme) NCategories() int {
	return len(s.distribution)
}

// #endregion scheme

// #region entropy-reads

// Entropy returns the Shannon entropy of the scheme in bits. Higher means a
// more diffuse worldview, lower a more concentrated one.
func (s *Scheme) Entropy() float64 {
	return divergence.Entropy(s.distribution)
}

// MaxEntropy returns log2 of the category count.
func (s *Scheme) MaxEntropy() float64 {
	if len(s.distribution) == 0 {
		return 0
	}
	return math.Log2(float64(len(s.distribution)))
}

// NormalizedEntropy returns entropy scaled into [0, 1]: 0 is a point mass,
// 1 is uniform.
func (s *Scheme) NormalizedEntropy() float64 {
	maxH := s.MaxEntropy()
	if maxH <= 0 {
		return 0
	}
	return s.Entropy() / maxH
}

// #endregion entropy-reads

// #region divergence-reads

// KLDivergence returns D_KL(s‖other) in bits.
func (s *Scheme) KLDivergence(other *Scheme) (float64, error) {
	return divergence.KLDivergence(s.distribution, other.distribution)
}

// SymmetricDivergence returns Φ(s,other), the conflict potential measure.
func (s *Scheme) SymmetricDivergence(other *Scheme) (float64, error) {
	return divergence.SymmetricKL(s.distribution, other.distribution)
}

// JensenShannon returns the bounded symmetric divergence.
func (s *Scheme) JensenShannon(other *Scheme) (float64, error) {
	return divergence.JensenShannon(s.distribution, other.distribution)
}

// Hellinger returns the Hellinger distance.
func (s *Scheme) Hellinger(other *Scheme) (float64, error) {
	return divergence.HellingerDistance(s.distribution, other.distribution)
}

// Bhattacharyya returns the Bhattacharyya coefficient.
func (s *Scheme) Bhattacharyya(other *Scheme) (float64, error) {
	return divergence.BhattacharyyaCoefficient(s.distribution, other.distribution)
}

// Cosine returns the cosine similarity.
func (s *Scheme) Cosine(other *Scheme) (float64, error) {
	return divergence.CosineSimilarity(s.distribution, other.distribution)
}

// AllMetrics computes every divergence measure in one pass.
func (s *Scheme) AllMetrics(other *Scheme) (divergence.Metrics, error) {
	return divergence.ComputeMetrics(s.distribution, other.distribution)
}

// #endregion divergence-reads

// #region update

// Update blends an observation into the scheme with learning rate η:
// new[i] = (1−η)·old[i] + η·obs[i], then renormalizes and re-smooths.
// The observation is normalized first, with a uniform fallback when its sum
// is non-positive.
func (s *Scheme) Update(observation []float64, learningRate float64) error {
	if len(observation) != len(s.distribution) {
		return &divergence.DimensionError{Expected: len(s.distribution), Got: len(observation)}
	}

	obsSum := 0.0
	for _, x := range observation {
		obsSum += x
	}

	obs := make([]float64, len(observation))
	if obsSum > 0 {
		for i, x := range observation {
			obs[i] = x / obsSum
		}
	} else {
		uniform := 1.0 / float64(len(observation))
		for i := range obs {
			obs[i] = uniform
		}
	}

	for i := range s.distribution {
		s.distribution[i] = (1-learningRate)*s.distribution[i] + learningRate*obs[i]
	}
	s.normalizeAndSmooth()
	return nil
}

// #endregion update

// #region top-categories

// CategoryMass pairs a category name with its probability mass.
type CategoryMass struct {
	Name string
	Prob float64
}

// TopCategories returns the n highest-probability categories in descending
// order. Ties keep original index order.
func (s *Scheme) TopCategories(n int) []CategoryMass {
	type indexed struct {
		idx  int
		prob float64
	}
	ranked := make([]indexed, len(s.distribution))
	for i, p := range s.distribution {
		ranked[i] = indexed{idx: i, prob: p}
	}
	sort.SliceStable(ranked, func(a, b int) bool {
		return ranked[a].prob > ranked[b].prob
	})

	if n > len(ranked) {
		n = len(ranked)
	}
	out := make([]CategoryMass, 0, n)
	for _, r := range ranked[:n] {
		name := fmt.Sprintf("cat_%d", r.idx)
		if r.idx < len(s.Categories) {
			name = s.Categories[r.idx]
		}
		out = append(out, CategoryMass{Name: name, Prob: r.prob})
	}
	return out
}

// #endregion top-categories

// #region clone

// Clone returns a deep copy, used by snapshotting.
func (s *Scheme) Clone() *Scheme {
	dist := make([]float64, len(s.distribution))
	copy(dist, s.distribution)
	cats := make([]string, len(s.Categories))
	copy(cats, s.Categories)
	meta := make(map[string]string, len(s.Metadata))
	for k, v := range s.Metadata {
		meta[k] = v
	}
	return &Scheme{
		ActorID:      s.ActorID,
		Categories:   cats,
		TimestampMS:  s.TimestampMS,
		Source:       s.Source,
		Metadata:     meta,
		distribution: dist,
	}
}

// Restore rebuilds a scheme from already-normalized snapshot data without
// re-smoothing, preserving the exact stored distribution.
func Restore(actorID string, distribution []float64, categories []string, timestampMS int64, source Source, metadata map[string]string) *Scheme {
	dist := make([]float64, len(distribution))
	copy(dist, distribution)
	if metadata == nil {
		metadata = map[string]string{}
	}
	return &Scheme{
		ActorID:      actorID,
		Categories:   categories,
		TimestampMS:  timestampMS,
		Source:       source,
		Metadata:     metadata,
		distribution: dist,
	}
}

// #endregion clone

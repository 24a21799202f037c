package scheme

// #region grievance

// Grievance accumulates an actor's prediction error: the cumulative integral
// (never decaying) and a mean over a bounded trailing window.
type Grievance struct {
	ActorID         string
	CumulativeError float64
	WindowError     float64

	errorHistory []float64
}

// NewGrievance creates an empty grievance for an actor.
func NewGrievance(actorID string) *Grievance {
	return &Grievance{ActorID: actorID}
}

// Update appends a prediction error, trims the history to windowSize, and
// recomputes the windowed mean. CumulativeError only ever grows.
func (g *Grievance) Update(predictionError float64, windowSize int) {
	g.CumulativeError += predictionError
	g.errorHistory = append(g.errorHistory, predictionError)

	if windowSize > 0 && len(g.errorHistory) > windowSize {
		g.errorHistory = g.errorHistory[len(g.errorHistory)-windowSize:]
	}

	sum := 0.0
	for _, e := range g.errorHistory {
		sum += e
	}
	g.WindowError = sum / float64(len(g.errorHistory))
}

// History returns the retained error window.
func (g *Grievance) History() []float64 {
	return g.errorHistory
}

// Reset clears all accumulated error.
func (g *Grievance) Reset() {
	g.CumulativeError = 0
	g.WindowError = 0
	g.errorHistory = nil
}

// RestoreGrievance rebuilds a grievance from snapshot data.
func RestoreGrievance(actorID string, cumulative, window float64, history []float64) *Grievance {
	h := make([]float64, len(history))
	copy(h, history)
	return &Grievance{
		ActorID:         actorID,
		CumulativeError: cumulative,
		WindowError:     window,
		errorHistory:    h,
	}
}

// #endregion grievance

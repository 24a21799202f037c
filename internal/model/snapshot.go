package model

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/shepherd-dynamics/go-engine/internal/scheme"
)

// #region snapshot

type actorState struct {
	ActorID      string            `json:"actor_id"`
	Distribution []float64         `json:"distribution"`
	Categories   []string          `json:"categories"`
	TimestampMS  int64             `json:"timestamp_ms"`
	Source       scheme.Source     `json:"source"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	Cumulative   float64           `json:"cumulative_error"`
	WindowError  float64           `json:"window_error"`
	ErrorHistory []float64         `json:"error_history"`
}

type snapshotState struct {
	SnapshotID string              `json:"snapshot_id"`
	Config     Config              `json:"config"`
	Actors     []actorState        `json:"actors"`
	History    []HistoryEntry      `json:"history"`
	Potentials []ConflictPotential `json:"potentials"`
}

// Snapshot serializes the full model state to JSON: configuration, every
// scheme with its grievance, scheme history and potential history. The
// output round-trips losslessly through Restore.
func (m *Model) Snapshot() ([]byte, error) {
	state := snapshotState{
		SnapshotID: uuid.NewString(),
		Config:     m.config,
		Actors:     make([]actorState, 0, len(m.schemes)),
		History:    m.history,
		Potentials: m.potentials,
	}

	for _, id := range m.Actors() {
		s := m.schemes[id]
		g := m.grievances[id]
		state.Actors = append(state.Actors, actorState{
			ActorID:      id,
			Distribution: s.Distribution(),
			Categories:   s.Categories,
			TimestampMS:  s.TimestampMS,
			Source:       s.Source,
			Metadata:     s.Metadata,
			Cumulative:   g.CumulativeError,
			WindowError:  g.WindowError,
			ErrorHistory: g.History(),
		})
	}

	data, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return data, nil
}

// Restore rebuilds a model from a Snapshot payload. Distributions are
// restored verbatim, without re-normalization, so divergence values computed
// before and after a round trip are identical.
func Restore(data []byte) (*Model, error) {
	var state snapshotState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if state.Config.NCategories <= 0 {
		return nil, fmt.Errorf("decode snapshot: invalid n_categories %d", state.Config.NCategories)
	}

	m := WithConfig(state.Config)
	for _, a := range state.Actors {
		if len(a.Distribution) != state.Config.NCategories {
			return nil, fmt.Errorf("decode snapshot: actor %q has %d components, config says %d",
				a.ActorID, len(a.Distribution), state.Config.NCategories)
		}
		m.schemes[a.ActorID] = scheme.Restore(a.ActorID, a.Distribution, a.Categories, a.TimestampMS, a.Source, a.Metadata)
		m.grievances[a.ActorID] = scheme.RestoreGrievance(a.ActorID, a.Cumulative, a.WindowError, a.ErrorHistory)
	}
	m.history = state.History
	m.potentials = state.Potentials
	return m, nil
}

// #endregion snapshot

// #region summary

// Summary is a lightweight view of model state.
type Summary struct {
	NActors     int      `json:"n_actors"`
	NHistory    int      `json:"n_history_entries"`
	NPotentials int      `json:"n_potentials"`
	Actors      []string `json:"actors"`
	Config      Config   `json:"config"`
}

// Summary exports the current state counts.
func (m *Model) Summary() Summary {
	return Summary{
		NActors:     len(m.schemes),
		NHistory:    len(m.history),
		NPotentials: len(m.potentials),
		Actors:      m.Actors(),
		Config:      m.config,
	}
}

// #endregion summary

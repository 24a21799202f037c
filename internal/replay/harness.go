package replay

import (
	"errors"
	"fmt"

	"github.com/shepherd-dynamics/go-engine/internal/config"
	"github.com/shepherd-dynamics/go-engine/internal/shepherd"
	"github.com/shepherd-dynamics/go-engine/internal/stream"
)

// #region types

// Result captures the outcome of replaying one fixture.
type Result struct {
	Description string
	Alerts      []shepherd.Alert
	Skipped     int
	FinalPhi    map[[2]string]float64
}

// Actionable counts the Orange/Red alerts in the result.
func (r *Result) Actionable() int {
	n := 0
	for _, a := range r.Alerts {
		if a.IsActionable() {
			n++
		}
	}
	return n
}

// #endregion types

// #region replay

// Replay runs a fixture's trace through a fresh engine, entirely in-memory:
// register actors, feed events in order, collect every returned alert, then
// measure final Φ for each dyad the expectations mention.
func Replay(f *Fixture) (*Result, error) {
	sh := shepherd.WithConfig(f.Config.ToModelConfig(), f.Config.ToDetectorConfig())
	for _, a := range f.Actors {
		sh.RegisterActor(a.ActorID, a.Distribution)
	}

	streamCfg := config.Default().Stream
	streamCfg.AlertCooldownMS = 0
	proc := stream.NewProcessor(sh, streamCfg)

	res := &Result{
		Description: f.Description,
		FinalPhi:    make(map[[2]string]float64),
	}

	for i, ev := range f.Events {
		alerts, err := proc.HandleEvent(ev)
		if err != nil {
			if errors.Is(err, stream.ErrDuplicateEvent) {
				res.Skipped++
				continue
			}
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
		res.Alerts = append(res.Alerts, alerts...)
	}

	for _, dyad := range f.Expected.MinFinalPhi {
		p, err := sh.Model().Potential(dyad.ActorA, dyad.ActorB)
		if err != nil {
			return nil, fmt.Errorf("final phi %s-%s: %w", dyad.ActorA, dyad.ActorB, err)
		}
		res.FinalPhi[[2]string{p.ActorA, p.ActorB}] = p.Phi
	}

	return res, nil
}

// Verify checks a result against the fixture's expectations and returns one
// message per unmet expectation.
func (f *Fixture) Verify(res *Result) []string {
	var failures []string
	if len(res.Alerts) < f.Expected.MinAlerts {
		failures = append(failures, fmt.Sprintf("alerts: got %d, want >= %d", len(res.Alerts), f.Expected.MinAlerts))
	}
	if res.Actionable() < f.Expected.MinActionable {
		failures = append(failures, fmt.Sprintf("actionable: got %d, want >= %d", res.Actionable(), f.Expected.MinActionable))
	}
	for _, dyad := range f.Expected.MinFinalPhi {
		a, b := dyad.ActorA, dyad.ActorB
		if a > b {
			a, b = b, a
		}
		phi, ok := res.FinalPhi[[2]string{a, b}]
		if !ok {
			failures = append(failures, fmt.Sprintf("phi %s-%s: not measured", a, b))
			continue
		}
		if phi < dyad.Phi {
			failures = append(failures, fmt.Sprintf("phi %s-%s: got %.4f, want >= %.4f", a, b, phi, dyad.Phi))
		}
	}
	return failures
}

// #endregion replay

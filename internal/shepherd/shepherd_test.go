package shepherd

import (
	"errors"
	"testing"

	"github.com/shepherd-dynamics/go-engine/internal/detector"
	"github.com/shepherd-dynamics/go-engine/internal/model"
)

func TestAlertLevelRuleIsPure(t *testing.T) {
	cases := []struct {
		phase detector.Phase
		phi   float64
		trend float64
		want  AlertLevel
	}{
		{detector.PhaseCritical, 1.5, 0, Red},
		{detector.PhaseTransitioning, 1.5, 0, Red},
		{detector.PhaseCritical, 0.5, 0, Orange},
		{detector.PhaseTransitioning, 0.9, -0.2, Orange},
		{detector.PhaseApproaching, 1.6, 0, Orange},
		{detector.PhaseApproaching, 0.5, 0.2, Orange},
		{detector.PhaseApproaching, 0.5, 0.05, Yellow},
		{detector.PhaseStable, 2.5, 0, Yellow},
		{detector.PhaseStable, 1.2, 0.06, Yellow},
		{detector.PhaseStable, 1.2, 0.01, Green},
		{detector.PhaseStable, 0.3, 0.2, Green},
	}
	for _, c := range cases {
		got := AlertLevelFor(c.phase, c.phi, c.trend)
		if got != c.want {
			t.Fatalf("AlertLevelFor(%v, %v, %v) = %v, want %v", c.phase, c.phi, c.trend, got, c.want)
		}
		// Same inputs, same output.
		if again := AlertLevelFor(c.phase, c.phi, c.trend); again != got {
			t.Fatalf("rule not deterministic for (%v, %v, %v)", c.phase, c.phi, c.trend)
		}
	}
}

func TestIsActionable(t *testing.T) {
	for _, c := range []struct {
		level AlertLevel
		want  bool
	}{
		{Green, false}, {Yellow, false}, {Orange, true}, {Red, true},
	} {
		a := Alert{Level: c.level}
		if got := a.IsActionable(); got != c.want {
			t.Fatalf("IsActionable(%v) = %v, want %v", c.level, got, c.want)
		}
	}
}

func TestGreenAlertsSuppressedButRecorded(t *testing.T) {
	s := New(4)
	dist := []float64{0.25, 0.25, 0.25, 0.25}
	s.RegisterActor("a", dist)
	s.RegisterActor("b", dist)

	alert, err := s.CheckDyad("a", "b", 1000)
	if err != nil {
		t.Fatalf("check dyad: %v", err)
	}
	if alert != nil {
		t.Fatalf("identical actors produced alert %+v, want suppressed green", alert)
	}

	last, ok := s.LastAlert("a", "b")
	if !ok {
		t.Fatal("green alert not recorded as last alert")
	}
	if last.Level != Green {
		t.Fatalf("last alert level = %v, want green", last.Level)
	}
	if len(s.AlertHistory()) != 0 {
		t.Fatalf("green alert leaked into history: %d entries", len(s.AlertHistory()))
	}
}

func TestCheckDyadUnknownActor(t *testing.T) {
	s := New(3)
	s.RegisterActor("a", nil)
	var ua *model.UnknownActorError
	if _, err := s.CheckDyad("a", "ghost", 1); !errors.As(err, &ua) {
		t.Fatalf("err = %v, want UnknownActorError", err)
	}
}

func TestPhiHistoryBounded(t *testing.T) {
	tr := newDyadTracker("a", "b", detector.DefaultConfig())
	for i := 0; i < phiHistoryCap+50; i++ {
		tr.update(0.5, int64(i))
	}
	if len(tr.phiHistory) != phiHistoryCap {
		t.Fatalf("phi history length = %d, want %d", len(tr.phiHistory), phiHistoryCap)
	}
	if tr.phiHistory[0].TimestampMS != 50 {
		t.Fatalf("oldest retained sample at ts %d, want 50", tr.phiHistory[0].TimestampMS)
	}
}

func TestPhiTrend(t *testing.T) {
	tr := newDyadTracker("a", "b", detector.DefaultConfig())

	tr.update(0.5, 0)
	if tr.lastAlert.PhiTrend != 0 {
		t.Fatalf("single sample: trend = %v, want 0", tr.lastAlert.PhiTrend)
	}

	// 14 more samples climbing by 0.1; trend spans the last 10 samples.
	phi := 0.5
	for i := 1; i <= 14; i++ {
		phi += 0.1
		tr.update(phi, int64(i))
	}
	hist := tr.phiHistory
	want := hist[len(hist)-1].Phi - hist[len(hist)-10].Phi
	if got := tr.lastAlert.PhiTrend; got != want {
		t.Fatalf("trend = %v, want %v", got, want)
	}
}

func TestUpdateActorChecksEveryOtherActor(t *testing.T) {
	s := New(3)
	s.RegisterActor("a", []float64{0.8, 0.1, 0.1})
	s.RegisterActor("b", []float64{0.1, 0.8, 0.1})
	s.RegisterActor("c", []float64{0.1, 0.1, 0.8})

	if _, err := s.UpdateActor("a", []float64{1, 0, 0}, 1000); err != nil {
		t.Fatalf("update: %v", err)
	}

	// a-b and a-c trackers must exist, b-c must not.
	if s.PhiHistory("a", "b") == nil || s.PhiHistory("c", "a") == nil {
		t.Fatal("updated dyads missing phi history")
	}
	if s.PhiHistory("b", "c") != nil {
		t.Fatal("untouched dyad gained phi history")
	}
}

func TestCheckAllDyadsCoversAllPairs(t *testing.T) {
	s := New(3)
	for _, id := range []string{"a", "b", "c", "d"} {
		s.RegisterActor(id, nil)
	}
	s.CheckAllDyads(1)

	pairs := [][2]string{{"a", "b"}, {"a", "c"}, {"a", "d"}, {"b", "c"}, {"b", "d"}, {"c", "d"}}
	for _, p := range pairs {
		if s.PhiHistory(p[0], p[1]) == nil {
			t.Fatalf("dyad %v-%v has no phi history after CheckAllDyads", p[0], p[1])
		}
	}
}

func TestDivergenceScenario(t *testing.T) {
	s := New(5)
	s.RegisterActor("A", []float64{0.4, 0.3, 0.15, 0.1, 0.05})
	s.RegisterActor("B", []float64{0.1, 0.2, 0.3, 0.25, 0.15})

	initial, err := s.Model().Potential("A", "B")
	if err != nil {
		t.Fatalf("initial potential: %v", err)
	}
	if initial.Phi <= 0 {
		t.Fatalf("initial phi = %v, want > 0", initial.Phi)
	}

	// Drive A toward a point mass over 150 sequential observations.
	target := []float64{1, 0, 0, 0, 0}
	sawYellowOrHigher := false
	for i := 0; i < 150; i++ {
		if _, err := s.UpdateActor("A", target, int64(1000+i)); err != nil {
			t.Fatalf("update %d: %v", i, err)
		}
		for _, a := range s.CheckAllDyads(int64(1000 + i)) {
			if a.Level >= Yellow {
				sawYellowOrHigher = true
			}
		}
	}

	final, err := s.Model().Potential("A", "B")
	if err != nil {
		t.Fatalf("final potential: %v", err)
	}
	if final.Phi <= initial.Phi {
		t.Fatalf("phi did not grow: initial %v, final %v", initial.Phi, final.Phi)
	}
	if final.Phi > 1.0 && !sawYellowOrHigher {
		t.Fatalf("phi reached %v but no yellow-or-higher alert fired", final.Phi)
	}
}

func TestPhiStats(t *testing.T) {
	s := New(4)
	s.RegisterActor("a", []float64{0.97, 0.01, 0.01, 0.01})
	s.RegisterActor("b", []float64{0.01, 0.01, 0.01, 0.97})

	if _, ok := s.PhiStats("a", "b"); ok {
		t.Fatal("stats reported for unchecked dyad")
	}

	// Rising phi series gives a positive gradient.
	for i := 0; i < 30; i++ {
		if _, err := s.UpdateActor("a", []float64{1, 0, 0, 0}, int64(1000*(i+1))); err != nil {
			t.Fatalf("update %d: %v", i, err)
		}
	}

	stats, ok := s.PhiStats("b", "a")
	if !ok {
		t.Fatal("no stats after updates")
	}
	if stats.Samples != 30 {
		t.Fatalf("samples = %d, want 30", stats.Samples)
	}
	if stats.Mean <= 0 {
		t.Fatalf("mean = %v, want > 0", stats.Mean)
	}
	if stats.Gradient <= 0 {
		t.Fatalf("gradient = %v, want > 0 for rising phi", stats.Gradient)
	}
}

func TestActionableAlertsFilter(t *testing.T) {
	s := New(3)
	s.alertHistory = []Alert{
		{Level: Yellow}, {Level: Orange}, {Level: Red}, {Level: Yellow},
	}
	got := s.ActionableAlerts()
	if len(got) != 2 {
		t.Fatalf("actionable count = %d, want 2", len(got))
	}
	for _, a := range got {
		if !a.IsActionable() {
			t.Fatalf("non-actionable alert %v in filter output", a.Level)
		}
	}
	s.ClearAlertHistory()
	if len(s.AlertHistory()) != 0 {
		t.Fatal("clear left alert history")
	}
}

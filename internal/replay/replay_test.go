package replay

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/shepherd-dynamics/go-engine/internal/stream"
)

func writeFixture(t *testing.T, f *Fixture) string {
	t.Helper()
	data, err := json.Marshal(f)
	if err != nil {
		t.Fatalf("marshal fixture: %v", err)
	}
	path := filepath.Join(t.TempDir(), "fixture.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func divergingFixture() *Fixture {
	f := &Fixture{
		Description: "two actors drifting apart",
		Config:      FixtureConfig{NCategories: 5, LearningRate: 0.1},
		Actors: []FixtureActor{
			{ActorID: "A", Distribution: []float64{0.4, 0.3, 0.15, 0.1, 0.05}},
			{ActorID: "B", Distribution: []float64{0.1, 0.2, 0.3, 0.25, 0.15}},
		},
		Expected: FixtureExpectation{
			MinAlerts: 1,
			MinFinalPhi: []FixtureDyadPhi{
				{ActorA: "A", ActorB: "B", Phi: 1.0},
			},
		},
	}
	for i := 0; i < 150; i++ {
		f.Events = append(f.Events, stream.Event{
			EventID:     fmt.Sprintf("e%03d", i),
			ActorID:     "A",
			Observation: []float64{1, 0, 0, 0, 0},
			TimestampMS: int64(1000 + i),
		})
	}
	return f
}

func TestLoadFixtureRoundTrip(t *testing.T) {
	path := writeFixture(t, divergingFixture())
	f, err := LoadFixture(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if f.Description != "two actors drifting apart" {
		t.Fatalf("description = %q", f.Description)
	}
	if len(f.Events) != 150 {
		t.Fatalf("got %d events, want 150", len(f.Events))
	}
	if got := f.Config.ToModelConfig(); got.NCategories != 5 || got.LearningRate != 0.1 {
		t.Fatalf("model config = %+v", got)
	}
	// Unset detector fields take defaults.
	if got := f.Config.ToDetectorConfig(); got.WindowSize != 40 || got.Threshold != 1.5 {
		t.Fatalf("detector config = %+v", got)
	}
}

func TestLoadFixtureRejectsBadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte(`{"config":{"n_categories":0}}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadFixture(path); err == nil {
		t.Fatal("zero-category fixture accepted")
	}
}

func TestReplayMeetsExpectations(t *testing.T) {
	f := divergingFixture()
	res, err := Replay(f)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if failures := f.Verify(res); len(failures) != 0 {
		t.Fatalf("expectations not met: %v", failures)
	}
	if phi := res.FinalPhi[[2]string{"A", "B"}]; phi <= 1.0 {
		t.Fatalf("final phi = %v, want > 1.0", phi)
	}
}

func TestReplaySkipsDuplicates(t *testing.T) {
	f := divergingFixture()
	f.Events = append(f.Events, f.Events[0])
	res, err := Replay(f)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if res.Skipped != 1 {
		t.Fatalf("skipped = %d, want 1", res.Skipped)
	}
}

func TestVerifyReportsShortfalls(t *testing.T) {
	f := divergingFixture()
	f.Expected.MinAlerts = 100000
	f.Expected.MinActionable = 100000
	res, err := Replay(f)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	failures := f.Verify(res)
	if len(failures) < 2 {
		t.Fatalf("got %d failures, want at least 2: %v", len(failures), failures)
	}
}

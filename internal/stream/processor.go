// Package stream adapts the synchronous engine core to an event-driven
// world: a Processor serializes all mutating access behind one writer lock,
// deduplicates incoming events, rate-limits repeat alerts per dyad, and a
// websocket server fans alerts out to subscribers.
package stream

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/shepherd-dynamics/go-engine/internal/config"
	"github.com/shepherd-dynamics/go-engine/internal/shepherd"
)

// #region event

// Event is the wire-level input contract.
type Event struct {
	EventID     string            `json:"event_id"`
	ActorID     string            `json:"actor_id"`
	Observation []float64         `json:"observation"`
	TimestampMS int64             `json:"timestamp_ms"`
	Source      string            `json:"source,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// ErrDuplicateEvent reports an event id seen within the dedup window.
var ErrDuplicateEvent = errors.New("duplicate event")

// #endregion event

// #region processor

type levelStamp struct {
	level       shepherd.AlertLevel
	timestampMS int64
}

// Processor drives a Shepherd from an event stream. All engine mutation goes
// through one mutex, so a pair's Φ always observes both schemes at the same
// logical instant.
type Processor struct {
	mu sync.Mutex

	shepherd *shepherd.Shepherd
	cfg      config.StreamConfig

	seen      map[string]int64
	lastLevel map[[2]string]levelStamp

	alerts chan shepherd.Alert
}

// NewProcessor wraps a shepherd in a stream adapter.
func NewProcessor(sh *shepherd.Shepherd, cfg config.StreamConfig) *Processor {
	buf := cfg.AlertBuffer
	if buf <= 0 {
		buf = 256
	}
	return &Processor{
		shepherd:  sh,
		cfg:       cfg,
		seen:      make(map[string]int64),
		lastLevel: make(map[[2]string]levelStamp),
		alerts:    make(chan shepherd.Alert, buf),
	}
}

// Alerts is the outbound alert channel. Alerts are dropped, not blocked on,
// when no consumer keeps up.
func (p *Processor) Alerts() <-chan shepherd.Alert {
	return p.alerts
}

// HandleEvent validates, deduplicates and applies one event, returning the
// alerts that survived per-dyad cooldown filtering.
func (p *Processor) HandleEvent(ev Event) ([]shepherd.Alert, error) {
	if ev.ActorID == "" {
		return nil, fmt.Errorf("event %q: empty actor_id", ev.EventID)
	}
	if len(ev.Observation) == 0 {
		return nil, fmt.Errorf("event %q: empty observation", ev.EventID)
	}
	for i, v := range ev.Observation {
		if v < 0 {
			return nil, fmt.Errorf("event %q: negative component %d (%v)", ev.EventID, i, v)
		}
	}
	if ev.TimestampMS <= 0 {
		ev.TimestampMS = time.Now().UnixMilli()
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if ev.EventID != "" {
		if _, dup := p.seen[ev.EventID]; dup {
			return nil, fmt.Errorf("event %q: %w", ev.EventID, ErrDuplicateEvent)
		}
		p.seen[ev.EventID] = ev.TimestampMS
		p.pruneSeen(ev.TimestampMS)
	}

	raw, err := p.shepherd.UpdateActor(ev.ActorID, ev.Observation, ev.TimestampMS)
	if err != nil {
		return nil, fmt.Errorf("event %q: %w", ev.EventID, err)
	}

	kept := raw[:0]
	for _, a := range raw {
		if p.suppressed(a) {
			continue
		}
		kept = append(kept, a)
		select {
		case p.alerts <- a:
		default:
			log.Printf("[stream] alert channel full, dropping %s-%s %s", a.ActorA, a.ActorB, a.Level)
		}
	}
	return kept, nil
}

// HandleBatch applies events in order. The first hard error stops the batch;
// duplicates are skipped and counted, not fatal.
func (p *Processor) HandleBatch(events []Event) ([]shepherd.Alert, error) {
	var out []shepherd.Alert
	for _, ev := range events {
		alerts, err := p.HandleEvent(ev)
		if err != nil {
			if errors.Is(err, ErrDuplicateEvent) {
				continue
			}
			return out, err
		}
		out = append(out, alerts...)
	}
	return out, nil
}

// suppressed reports whether an alert repeats the dyad's previous level
// within the cooldown window. Escalations always pass.
func (p *Processor) suppressed(a shepherd.Alert) bool {
	key := [2]string{a.ActorA, a.ActorB}
	prev, ok := p.lastLevel[key]
	if ok && p.cfg.AlertCooldownMS > 0 &&
		a.Level <= prev.level &&
		a.TimestampMS-prev.timestampMS < p.cfg.AlertCooldownMS {
		return true
	}
	p.lastLevel[key] = levelStamp{level: a.Level, timestampMS: a.TimestampMS}
	return false
}

func (p *Processor) pruneSeen(nowMS int64) {
	if len(p.seen) < 1024 || p.cfg.DedupWindowMS <= 0 {
		return
	}
	for id, ts := range p.seen {
		if nowMS-ts > p.cfg.DedupWindowMS {
			delete(p.seen, id)
		}
	}
}

// Shepherd exposes the wrapped engine for read-style queries. Callers must
// not mutate it concurrently with HandleEvent.
func (p *Processor) Shepherd() *shepherd.Shepherd {
	return p.shepherd
}

// SnapshotJSON exports the underlying model state while holding the writer
// lock, so the snapshot is never torn.
func (p *Processor) SnapshotJSON() ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.shepherd.Model().Snapshot()
}

// SummaryJSON exports the model summary.
func (p *Processor) SummaryJSON() ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return json.Marshal(p.shepherd.Model().Summary())
}

// #endregion processor

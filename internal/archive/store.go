// Package archive persists alerts, potentials and model snapshots to
// SQLite. The in-memory engine never depends on it; command-line frontends
// attach a store when durability across restarts is wanted.
package archive

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/shepherd-dynamics/go-engine/internal/model"
	"github.com/shepherd-dynamics/go-engine/internal/shepherd"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS alerts (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	actor_a       TEXT NOT NULL,
	actor_b       TEXT NOT NULL,
	alert_level   TEXT NOT NULL,
	phase         TEXT NOT NULL,
	phi           REAL NOT NULL,
	phi_trend     REAL NOT NULL,
	confidence    REAL NOT NULL,
	timestamp_ms  INTEGER NOT NULL,
	message       TEXT NOT NULL,
	created_at    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS potentials (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	actor_a       TEXT NOT NULL,
	actor_b       TEXT NOT NULL,
	phi           REAL NOT NULL,
	js            REAL NOT NULL,
	hellinger     REAL NOT NULL,
	kl_a_b        REAL NOT NULL,
	kl_b_a        REAL NOT NULL,
	timestamp_ms  INTEGER NOT NULL,
	created_at    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS snapshots (
	snapshot_id   TEXT PRIMARY KEY,
	payload       TEXT NOT NULL,
	created_at    TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_alerts_dyad ON alerts(actor_a, actor_b);
CREATE INDEX IF NOT EXISTS idx_potentials_dyad ON potentials(actor_a, actor_b);
`

// #endregion schema

// #region store-struct

// Store manages durable engine output in SQLite.
type Store struct {
	db *sql.DB
}

// #endregion store-struct

// #region constructor

// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB.
func (s *Store) DB() *sql.DB {
	return s.db
}

// #endregion constructor

// #region alerts

// AppendAlert persists one alert.
func (s *Store) AppendAlert(a shepherd.Alert) error {
	_, err := s.db.Exec(
		`INSERT INTO alerts (actor_a, actor_b, alert_level, phase, phi, phi_trend, confidence, timestamp_ms, message, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ActorA, a.ActorB, a.Level.String(), a.Phase.String(),
		a.Phi, a.PhiTrend, a.Confidence, a.TimestampMS, a.Message,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

// RecentAlerts returns the most recent n alerts, newest first.
func (s *Store) RecentAlerts(n int) ([]shepherd.Alert, error) {
	rows, err := s.db.Query(
		`SELECT actor_a, actor_b, alert_level, phase, phi, phi_trend, confidence, timestamp_ms, message
		 FROM alerts ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close()

	var out []shepherd.Alert
	for rows.Next() {
		var a shepherd.Alert
		var level, phase string
		if err := rows.Scan(&a.ActorA, &a.ActorB, &level, &phase,
			&a.Phi, &a.PhiTrend, &a.Confidence, &a.TimestampMS, &a.Message); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		if err := a.Level.UnmarshalText([]byte(level)); err != nil {
			return nil, fmt.Errorf("decode level: %w", err)
		}
		if err := a.Phase.UnmarshalText([]byte(phase)); err != nil {
			return nil, fmt.Errorf("decode phase: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// #endregion alerts

// #region potentials

// AppendPotential persists one measured potential.
func (s *Store) AppendPotential(p model.ConflictPotential) error {
	_, err := s.db.Exec(
		`INSERT INTO potentials (actor_a, actor_b, phi, js, hellinger, kl_a_b, kl_b_a, timestamp_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ActorA, p.ActorB, p.Phi, p.JS, p.Hellinger, p.KLAB, p.KLBA, p.TimestampMS,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert potential: %w", err)
	}
	return nil
}

// DyadPotentials returns up to n recorded potentials for a dyad, newest
// first. Caller order of the two ids does not matter.
func (s *Store) DyadPotentials(actorA, actorB string, n int) ([]model.ConflictPotential, error) {
	if actorA > actorB {
		actorA, actorB = actorB, actorA
	}
	rows, err := s.db.Query(
		`SELECT actor_a, actor_b, phi, js, hellinger, kl_a_b, kl_b_a, timestamp_ms
		 FROM potentials WHERE actor_a = ? AND actor_b = ? ORDER BY id DESC LIMIT ?`,
		actorA, actorB, n)
	if err != nil {
		return nil, fmt.Errorf("query potentials: %w", err)
	}
	defer rows.Close()

	var out []model.ConflictPotential
	for rows.Next() {
		var p model.ConflictPotential
		if err := rows.Scan(&p.ActorA, &p.ActorB, &p.Phi, &p.JS, &p.Hellinger,
			&p.KLAB, &p.KLBA, &p.TimestampMS); err != nil {
			return nil, fmt.Errorf("scan potential: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// #endregion potentials

// #region snapshots

// SaveSnapshot stores a model snapshot payload and returns its id.
func (s *Store) SaveSnapshot(payload []byte) (string, error) {
	if !json.Valid(payload) {
		return "", fmt.Errorf("save snapshot: payload is not valid JSON")
	}
	id := uuid.New().String()
	_, err := s.db.Exec(
		`INSERT INTO snapshots (snapshot_id, payload, created_at) VALUES (?, ?, ?)`,
		id, string(payload), time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return "", fmt.Errorf("insert snapshot: %w", err)
	}
	return id, nil
}

// LatestSnapshot returns the most recently stored snapshot payload.
// sql.ErrNoRows surfaces when no snapshot exists.
func (s *Store) LatestSnapshot() ([]byte, error) {
	var payload string
	err := s.db.QueryRow(
		`SELECT payload FROM snapshots ORDER BY rowid DESC LIMIT 1`,
	).Scan(&payload)
	if err != nil {
		return nil, fmt.Errorf("latest snapshot: %w", err)
	}
	return []byte(payload), nil
}

// #endregion snapshots

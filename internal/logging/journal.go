// Package logging keeps the durable decision journal: every hook the engine
// handled and every checkpoint attempt, in SQLite.
package logging

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrNoCheckpoint is returned by LatestCheckpoint on an empty journal.
var ErrNoCheckpoint = errors.New("no published checkpoint")

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS hook_events (
	seq           INTEGER PRIMARY KEY AUTOINCREMENT,
	event_id      TEXT NOT NULL UNIQUE,
	kind          TEXT NOT NULL,
	app_a         TEXT NOT NULL,
	app_b         TEXT,
	context_json  TEXT,
	decision_json TEXT,
	trained       INTEGER NOT NULL DEFAULT 0,
	created_at    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS checkpoints (
	seq            INTEGER PRIMARY KEY AUTOINCREMENT,
	checkpoint_id  TEXT NOT NULL UNIQUE,
	parent_id      TEXT,
	gating_bias    REAL NOT NULL,
	gating_norm    REAL NOT NULL,
	gating_dim     INTEGER NOT NULL,
	ranking_bias   REAL NOT NULL,
	ranking_norm   REAL NOT NULL,
	ranking_dim    INTEGER NOT NULL,
	markov_rows    INTEGER NOT NULL,
	markov_trans   INTEGER NOT NULL,
	outcome        TEXT NOT NULL,
	reason         TEXT,
	created_at     TEXT NOT NULL,
	FOREIGN KEY (parent_id) REFERENCES checkpoints(checkpoint_id)
);
`

// #endregion schema

// #region journal-struct
// Journal is the SQLite-backed event and checkpoint log.
type Journal struct {
	db *sql.DB
}

// #endregion journal-struct

// #region constructor
// Open opens (or creates) the journal at dbPath and runs migrations.
// ":memory:" is accepted for tests.
func Open(dbPath string) (*Journal, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if dbPath == ":memory:" {
		// every pooled connection would get its own empty database
		db.SetMaxOpenConns(1)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Journal{db: db}, nil
}

// Close closes the underlying database connection.
func (j *Journal) Close() error {
	return j.db.Close()
}

// DB returns the underlying *sql.DB.
func (j *Journal) DB() *sql.DB {
	return j.db
}

// #endregion constructor

// #region log-event
// LogEvent writes a hook event. Missing EventID and CreatedAt are filled in;
// the stored event is returned.
func (j *Journal) LogEvent(ev HookEvent) (HookEvent, error) {
	if ev.EventID == "" {
		ev.EventID = uuid.New().String()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}

	_, err := j.db.Exec(
		`INSERT INTO hook_events (event_id, kind, app_a, app_b, context_json, decision_json, trained, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.EventID,
		ev.Kind,
		ev.AppA,
		nullIfEmpty(ev.AppB),
		nullIfEmpty(ev.ContextJSON),
		nullIfEmpty(ev.DecisionJSON),
		boolInt(ev.Trained),
		ev.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return HookEvent{}, fmt.Errorf("log event: %w", err)
	}
	return ev, nil
}

// #endregion log-event

// #region list-events
// ListEvents returns the most recent limit events in the order they were
// logged (oldest first).
func (j *Journal) ListEvents(limit int) ([]HookEvent, error) {
	rows, err := j.db.Query(
		`SELECT event_id, kind, app_a, app_b, context_json, decision_json, trained, created_at
		 FROM (SELECT * FROM hook_events ORDER BY seq DESC LIMIT ?) ORDER BY seq ASC`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []HookEvent
	for rows.Next() {
		var ev HookEvent
		var appB, ctxJSON, decJSON sql.NullString
		var trained int
		var createdStr string
		if err := rows.Scan(&ev.EventID, &ev.Kind, &ev.AppA, &appB, &ctxJSON, &decJSON, &trained, &createdStr); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.AppB = appB.String
		ev.ContextJSON = ctxJSON.String
		ev.DecisionJSON = decJSON.String
		ev.Trained = trained != 0
		ev.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		events = append(events, ev)
	}
	return events, rows.Err()
}

// CountEvents returns the number of logged events.
func (j *Journal) CountEvents() (int, error) {
	var n int
	if err := j.db.QueryRow(`SELECT COUNT(*) FROM hook_events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

// #endregion list-events

// #region log-checkpoint
// LogCheckpoint records a checkpoint attempt. When ParentID is empty it is
// linked to the latest published checkpoint. The stored record is returned.
func (j *Journal) LogCheckpoint(rec CheckpointRecord) (CheckpointRecord, error) {
	if rec.CheckpointID == "" {
		rec.CheckpointID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	tx, err := j.db.Begin()
	if err != nil {
		return CheckpointRecord{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if rec.ParentID == "" {
		var parent string
		err := tx.QueryRow(
			`SELECT checkpoint_id FROM checkpoints WHERE outcome = ? ORDER BY seq DESC LIMIT 1`, OutcomePublished,
		).Scan(&parent)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return CheckpointRecord{}, fmt.Errorf("find parent: %w", err)
		}
		rec.ParentID = parent
	}

	_, err = tx.Exec(
		`INSERT INTO checkpoints (checkpoint_id, parent_id,
			gating_bias, gating_norm, gating_dim, ranking_bias, ranking_norm, ranking_dim,
			markov_rows, markov_trans, outcome, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.CheckpointID, nullIfEmpty(rec.ParentID),
		rec.Gating.Bias, rec.Gating.Norm, rec.Gating.Dim,
		rec.Ranking.Bias, rec.Ranking.Norm, rec.Ranking.Dim,
		rec.MarkovRows, rec.MarkovTransitions, rec.Outcome, nullIfEmpty(rec.Reason),
		rec.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return CheckpointRecord{}, fmt.Errorf("insert checkpoint: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return CheckpointRecord{}, fmt.Errorf("commit: %w", err)
	}
	return rec, nil
}

// #endregion log-checkpoint

// #region list-checkpoints
const checkpointCols = `checkpoint_id, parent_id,
	gating_bias, gating_norm, gating_dim, ranking_bias, ranking_norm, ranking_dim,
	markov_rows, markov_trans, outcome, reason, created_at`

// ListCheckpoints returns the most recent checkpoints, newest first.
func (j *Journal) ListCheckpoints(limit int) ([]CheckpointRecord, error) {
	rows, err := j.db.Query(
		`SELECT `+checkpointCols+` FROM checkpoints ORDER BY seq DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	defer rows.Close()

	var records []CheckpointRecord
	for rows.Next() {
		rec, err := scanCheckpoint(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// LatestCheckpoint returns the newest published checkpoint.
func (j *Journal) LatestCheckpoint() (CheckpointRecord, error) {
	row := j.db.QueryRow(
		`SELECT `+checkpointCols+` FROM checkpoints WHERE outcome = ? ORDER BY seq DESC LIMIT 1`, OutcomePublished,
	)
	rec, err := scanCheckpoint(row)
	if errors.Is(err, sql.ErrNoRows) {
		return CheckpointRecord{}, ErrNoCheckpoint
	}
	return rec, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCheckpoint(s scanner) (CheckpointRecord, error) {
	var rec CheckpointRecord
	var parentID, reason sql.NullString
	var createdStr string
	err := s.Scan(&rec.CheckpointID, &parentID,
		&rec.Gating.Bias, &rec.Gating.Norm, &rec.Gating.Dim,
		&rec.Ranking.Bias, &rec.Ranking.Norm, &rec.Ranking.Dim,
		&rec.MarkovRows, &rec.MarkovTransitions, &rec.Outcome, &reason, &createdStr)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return CheckpointRecord{}, err
		}
		return CheckpointRecord{}, fmt.Errorf("scan checkpoint: %w", err)
	}
	rec.ParentID = parentID.String
	rec.Reason = reason.String
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
	return rec, nil
}

// #endregion list-checkpoints

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// #endregion helpers

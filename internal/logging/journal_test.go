package logging

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// #region helpers
func tempJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

// #endregion helpers

// #region event-tests
func TestLogEvent_Success(t *testing.T) {
	j := tempJournal(t)

	ev, err := j.LogEvent(HookEvent{
		Kind:         "allowed_to_run",
		AppA:         "com.mail",
		ContextJSON:  `{"time_bucket":3}`,
		DecisionJSON: `{"prefetch":["com.chat"],"reason":"prefetch"}`,
		CreatedAt:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.EventID == "" {
		t.Fatal("expected generated event id")
	}

	events, err := j.ListEvents(10)
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	got := events[0]
	if got.EventID != ev.EventID || got.AppA != "com.mail" || got.Kind != "allowed_to_run" {
		t.Fatalf("unexpected row: %+v", got)
	}
	if got.DecisionJSON != ev.DecisionJSON {
		t.Fatalf("decision json: got %q", got.DecisionJSON)
	}
	if !got.CreatedAt.Equal(ev.CreatedAt) {
		t.Fatalf("created_at: got %v, want %v", got.CreatedAt, ev.CreatedAt)
	}
}

func TestLogEvent_ZeroCreatedAt(t *testing.T) {
	j := tempJournal(t)
	before := time.Now().UTC()

	ev, err := j.LogEvent(HookEvent{Kind: "foreground_changed", AppA: "A", AppB: "B", Trained: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.CreatedAt.Before(before) {
		t.Error("expected auto-filled created_at to be >= test start time")
	}

	events, _ := j.ListEvents(1)
	if !events[0].Trained || events[0].AppB != "B" {
		t.Fatalf("unexpected row: %+v", events[0])
	}
}

func TestLogEvent_EmptyOptionalFields(t *testing.T) {
	j := tempJournal(t)
	if _, err := j.LogEvent(HookEvent{Kind: "ttl_expired_no_next_app", AppA: "A"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var appB, ctxJSON, decJSON sql.NullString
	j.DB().QueryRow("SELECT app_b, context_json, decision_json FROM hook_events").Scan(&appB, &ctxJSON, &decJSON)
	if appB.Valid || ctxJSON.Valid || decJSON.Valid {
		t.Error("expected NULL for empty optional fields")
	}
}

func TestListEvents_ReturnsNewestInLogOrder(t *testing.T) {
	j := tempJournal(t)
	for _, app := range []string{"A", "B", "C", "D"} {
		if _, err := j.LogEvent(HookEvent{Kind: "allowed_to_run", AppA: app}); err != nil {
			t.Fatal(err)
		}
	}

	events, err := j.ListEvents(2)
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(events) != 2 || events[0].AppA != "C" || events[1].AppA != "D" {
		t.Fatalf("expected [C D], got %+v", events)
	}

	n, err := j.CountEvents()
	if err != nil || n != 4 {
		t.Fatalf("CountEvents: %d, %v", n, err)
	}
}

func TestLogEvent_Error(t *testing.T) {
	j := tempJournal(t)
	j.Close() // close to force error

	if _, err := j.LogEvent(HookEvent{Kind: "allowed_to_run", AppA: "A"}); err == nil {
		t.Fatal("expected error on closed db")
	}
}

// #endregion event-tests

// #region checkpoint-tests
func TestLogCheckpoint_ChainsToLatestPublished(t *testing.T) {
	j := tempJournal(t)

	first, err := j.LogCheckpoint(CheckpointRecord{
		Gating:     ModelStats{Bias: 0.1, Norm: 1.5, Dim: 16},
		Ranking:    ModelStats{Bias: -0.2, Norm: 2.5, Dim: 16},
		MarkovRows: 3,
		Outcome:    OutcomePublished,
	})
	if err != nil {
		t.Fatalf("LogCheckpoint: %v", err)
	}
	if first.ParentID != "" {
		t.Fatalf("expected no parent, got %q", first.ParentID)
	}

	rejected, err := j.LogCheckpoint(CheckpointRecord{Outcome: OutcomeRejected, Reason: "weight norm too large"})
	if err != nil {
		t.Fatalf("LogCheckpoint: %v", err)
	}
	if rejected.ParentID != first.CheckpointID {
		t.Fatalf("expected parent %s, got %s", first.CheckpointID, rejected.ParentID)
	}

	second, _ := j.LogCheckpoint(CheckpointRecord{Outcome: OutcomePublished})
	if second.ParentID != first.CheckpointID {
		t.Fatal("rejected checkpoints must not become parents")
	}

	latest, err := j.LatestCheckpoint()
	if err != nil {
		t.Fatalf("LatestCheckpoint: %v", err)
	}
	if latest.CheckpointID != second.CheckpointID {
		t.Fatalf("expected %s, got %s", second.CheckpointID, latest.CheckpointID)
	}
}

func TestListCheckpoints_NewestFirst(t *testing.T) {
	j := tempJournal(t)
	j.LogCheckpoint(CheckpointRecord{Outcome: OutcomePublished, MarkovRows: 1})
	j.LogCheckpoint(CheckpointRecord{Outcome: OutcomeFailed, Reason: "disk full", MarkovRows: 2})

	recs, err := j.ListCheckpoints(10)
	if err != nil {
		t.Fatalf("ListCheckpoints: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2, got %d", len(recs))
	}
	if recs[0].Outcome != OutcomeFailed || recs[0].Reason != "disk full" || recs[0].MarkovRows != 2 {
		t.Fatalf("unexpected newest: %+v", recs[0])
	}
}

func TestCheckpointStatsRoundTrip(t *testing.T) {
	j := tempJournal(t)
	in := CheckpointRecord{
		Gating:            ModelStats{Bias: 0.25, Norm: 3.5, Dim: 65536},
		Ranking:           ModelStats{Bias: -1.5, Norm: 0.5, Dim: 65536},
		MarkovRows:        12,
		MarkovTransitions: 40,
		Outcome:           OutcomePublished,
	}
	if _, err := j.LogCheckpoint(in); err != nil {
		t.Fatal(err)
	}
	got, err := j.LatestCheckpoint()
	if err != nil {
		t.Fatal(err)
	}
	if got.Gating != in.Gating || got.Ranking != in.Ranking || got.MarkovTransitions != 40 {
		t.Fatalf("stats mismatch: %+v", got)
	}
}

func TestLatestCheckpoint_Empty(t *testing.T) {
	j := tempJournal(t)
	_, err := j.LatestCheckpoint()
	if !errors.Is(err, ErrNoCheckpoint) {
		t.Fatalf("expected ErrNoCheckpoint, got %v", err)
	}
}

// #endregion checkpoint-tests

func TestOpenInMemory(t *testing.T) {
	j, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer j.Close()
	if _, err := j.LogEvent(HookEvent{Kind: "allowed_to_run", AppA: "A"}); err != nil {
		t.Fatalf("LogEvent: %v", err)
	}
}

func TestOpenInvalidPath(t *testing.T) {
	_, err := Open(filepath.Join(string(os.PathSeparator), "nonexistent", "deep", "path", "j.db"))
	if err == nil {
		t.Fatal("expected error for invalid path")
	}
}

// #region null-if-empty-tests
func TestNullIfEmpty(t *testing.T) {
	if nullIfEmpty("") != nil {
		t.Error("expected nil for empty string")
	}
	if nullIfEmpty("hello") != "hello" {
		t.Error("expected passthrough")
	}
}

// #endregion null-if-empty-tests

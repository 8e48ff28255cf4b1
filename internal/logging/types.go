package logging

import "time"

// #region hook-event
// HookEvent is a single row in the hook_events table. ContextJSON and
// DecisionJSON carry the exact inputs and outputs for deterministic replay.
type HookEvent struct {
	EventID      string
	Kind         string // allowed_to_run | foreground_changed | ttl_expired_no_next_app | prefetch_ttl_expired_not_used
	AppA         string
	AppB         string
	ContextJSON  string
	DecisionJSON string
	Trained      bool
	CreatedAt    time.Time
}

// #endregion hook-event

// #region checkpoint-record
// Checkpoint outcomes.
const (
	OutcomePublished = "published"
	OutcomeRejected  = "rejected" // failed validation, files untouched
	OutcomeFailed    = "failed"   // write error
)

// ModelStats summarizes one logistic model at checkpoint time.
type ModelStats struct {
	Bias float32 `json:"bias"`
	Norm float32 `json:"norm"`
	Dim  int     `json:"dim"`
}

// CheckpointRecord is a single row in the checkpoints table. ParentID links
// to the previous published checkpoint.
type CheckpointRecord struct {
	CheckpointID      string
	ParentID          string
	Gating            ModelStats
	Ranking           ModelStats
	MarkovRows        int
	MarkovTransitions int
	Outcome           string
	Reason            string
	CreatedAt         time.Time
}

// #endregion checkpoint-record

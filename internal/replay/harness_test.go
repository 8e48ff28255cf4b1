package replay

import (
	"testing"

	"github.com/danielpatrickdp/nextapp/go-controller/internal/features"
	"github.com/danielpatrickdp/nextapp/go-controller/internal/policy"
	"github.com/danielpatrickdp/nextapp/go-controller/internal/predictor"
)

var evening = features.Context{TimeBucket: 2, AllowReason: features.UserTapIcon, BatteryBucket: 3}

// helper: small predictor config with Markov-order ranking.
func markovOnly() predictor.Config {
	cfg := predictor.DefaultConfig()
	cfg.Model.HashDimPow2 = 10
	cfg.EnableRanking = false
	return cfg
}

func allowed(app string) Event {
	return Event{Kind: KindAllowedToRun, App: app, Context: evening}
}

func opened(prev, now string) Event {
	return Event{Kind: KindForeground, App: prev, Other: now}
}

// 1. Cold start: no Markov row → no_candidates, then the transition trains.
func TestReplay_ColdStart(t *testing.T) {
	results, sum := Replay([]Event{allowed("A"), opened("A", "B")}, markovOnly())

	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Decision == nil || results[0].Decision.Reason != policy.ReasonNoCandidates {
		t.Errorf("expected no_candidates decision, got %+v", results[0].Decision)
	}
	if results[1].Action != ActionTrained {
		t.Errorf("expected trained, got %s", results[1].Action)
	}
	if results[1].Resolution == nil || !results[1].Resolution.MarkovUpdated {
		t.Error("expected Markov update on foreground change")
	}
	if sum.NoneByReason[policy.ReasonNoCandidates] != 1 {
		t.Errorf("expected one no_candidates, got %v", sum.NoneByReason)
	}
}

// 2. Hit: a learned transition is prefetched and then opened.
func TestReplay_Hit(t *testing.T) {
	events := []Event{allowed("A"), opened("A", "B"), allowed("A"), opened("A", "B")}
	results, sum := Replay(events, markovOnly())

	if results[2].Action != string(policy.ReasonPrefetch) {
		t.Fatalf("expected prefetch, got %s", results[2].Action)
	}
	if got := results[2].Decision.Prefetch; len(got) != 1 || got[0] != "B" {
		t.Errorf("expected prefetch [B], got %v", got)
	}
	if sum.Hits != 1 || sum.Misses != 0 {
		t.Errorf("expected 1 hit 0 misses, got %d/%d", sum.Hits, sum.Misses)
	}
	if sum.Prefetches != 1 || sum.Decisions != 2 {
		t.Errorf("expected 1 prefetch of 2 decisions, got %d/%d", sum.Prefetches, sum.Decisions)
	}
}

// 3. Miss by expiry: prefetched but nothing followed.
func TestReplay_MissOnNoNextApp(t *testing.T) {
	events := []Event{
		allowed("A"), opened("A", "B"),
		allowed("A"), {Kind: KindNoNextApp, App: "A"},
	}
	_, sum := Replay(events, markovOnly())

	if sum.Misses != 1 || sum.Hits != 0 {
		t.Errorf("expected 1 miss, got hits=%d misses=%d", sum.Hits, sum.Misses)
	}
}

// 4. A transition without a pending session only touches the Markov table.
func TestReplay_MarkovOnlyWithoutSession(t *testing.T) {
	results, sum := Replay([]Event{opened("A", "B")}, markovOnly())

	if results[0].Action != ActionMarkovOnly {
		t.Errorf("expected markov_only, got %s", results[0].Action)
	}
	if sum.TrainingEvents != 0 {
		t.Errorf("expected no training events, got %d", sum.TrainingEvents)
	}
}

// 5. Ranking label for an unused prefetch counts as training when ranking is on.
func TestReplay_PrefetchUnusedTrainsRanking(t *testing.T) {
	cfg := markovOnly()
	cfg.EnableRanking = true
	events := []Event{
		allowed("A"),
		{Kind: KindPrefetchUnused, App: "A", Other: "B"},
	}
	results, sum := Replay(events, cfg)

	if results[1].Action != ActionTrained {
		t.Errorf("expected trained, got %s", results[1].Action)
	}
	if results[1].Resolution.RankingNegatives != 1 {
		t.Errorf("expected one ranking negative, got %d", results[1].Resolution.RankingNegatives)
	}
	if sum.TrainingEvents != 1 {
		t.Errorf("expected 1 training event, got %d", sum.TrainingEvents)
	}
}

// 6. Disabled predictor: every decision is disabled and nothing trains.
func TestReplay_Disabled(t *testing.T) {
	cfg := markovOnly()
	cfg.Enable = false
	results, sum := Replay([]Event{allowed("A"), opened("A", "B")}, cfg)

	if results[0].Action != string(policy.ReasonDisabled) {
		t.Errorf("expected disabled, got %s", results[0].Action)
	}
	if results[1].Action != ActionIgnored {
		t.Errorf("expected ignored, got %s", results[1].Action)
	}
	if sum.NoneByReason[policy.ReasonDisabled] != 1 {
		t.Errorf("expected disabled counted, got %v", sum.NoneByReason)
	}
}

// 7. Checkpoint signals follow the training count.
func TestReplay_Checkpoints(t *testing.T) {
	cfg := markovOnly()
	cfg.CheckpointEvery = 2
	var events []Event
	for i := 0; i < 5; i++ {
		events = append(events, allowed("A"), opened("A", "B"))
	}
	_, sum := Replay(events, cfg)

	if sum.TrainingEvents != 5 {
		t.Fatalf("expected 5 training events, got %d", sum.TrainingEvents)
	}
	if sum.Checkpoints != 2 {
		t.Errorf("expected 2 checkpoints, got %d", sum.Checkpoints)
	}
	if sum.Events != 10 {
		t.Errorf("expected 10 events, got %d", sum.Events)
	}
}

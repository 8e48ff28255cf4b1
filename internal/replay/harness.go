package replay

import (
	"slices"

	"github.com/danielpatrickdp/nextapp/go-controller/internal/features"
	"github.com/danielpatrickdp/nextapp/go-controller/internal/policy"
	"github.com/danielpatrickdp/nextapp/go-controller/internal/predictor"
)

// #region types
// Event kinds accepted by Replay. Outcome kinds use predictor.OutcomeKind
// names.
const (
	KindAllowedToRun   = "allowed_to_run"
	KindForeground     = "foreground_changed"
	KindNoNextApp      = "ttl_expired_no_next_app"
	KindPrefetchUnused = "prefetch_ttl_expired_not_used"
)

// Actions reported for resolution events.
const (
	ActionTrained    = "trained"
	ActionMarkovOnly = "markov_only"
	ActionIgnored    = "ignored"
	ActionUnknown    = "unknown_kind"
)

// Event is one recorded hook call.
type Event struct {
	Kind    string           `json:"kind"`
	App     string           `json:"app"`
	Other   string           `json:"other,omitempty"`
	Context features.Context `json:"context"`
}

// Result captures what one event did to the predictor.
type Result struct {
	Index  int
	Kind   string
	App    string
	Action string // decision reason for allowed_to_run, Action* otherwise

	// Decision is set for allowed_to_run events.
	Decision *policy.Decision
	// Resolution is set for outcome events.
	Resolution *predictor.Resolution
}

// Summary provides aggregate stats from a replay run.
type Summary struct {
	Events         int
	Decisions      int
	Prefetches     int
	NoneByReason   map[policy.Reason]int
	Hits           int // prefetched app was the next foreground app
	Misses         int // prefetch made but a different app, or none, came next
	TrainingEvents int
	Checkpoints    int
}

// #endregion types

// #region replay
// Replay feeds events through a fresh in-memory predictor built from cfg.
// Nothing is persisted. The returned Summary counts checkpoint signals the
// predictor raised along the way.
func Replay(events []Event, cfg predictor.Config) ([]Result, Summary) {
	p := predictor.New(cfg)
	sum := Summary{NoneByReason: map[policy.Reason]int{}}
	p.OnCheckpoint(func() { sum.Checkpoints++ })

	// latest prefetch set per source app, cleared when scored
	open := map[string][]string{}
	results := make([]Result, 0, len(events))

	for i, ev := range events {
		r := Result{Index: i, Kind: ev.Kind, App: ev.App}
		switch ev.Kind {
		case KindAllowedToRun:
			d := p.AllowedToRun(ev.App, ev.Context)
			r.Decision = &d
			r.Action = string(d.Reason)
			sum.Decisions++
			if d.ShouldPrefetch() {
				sum.Prefetches++
				open[ev.App] = d.Prefetch
			} else {
				sum.NoneByReason[d.Reason]++
				delete(open, ev.App)
			}
		case KindForeground, KindNoNextApp, KindPrefetchUnused:
			o := outcome(ev)
			if prefetched, ok := open[ev.App]; ok && o.Kind != predictor.OutcomePrefetchUnused {
				if o.Kind == predictor.OutcomeForeground && slices.Contains(prefetched, ev.Other) {
					sum.Hits++
				} else {
					sum.Misses++
				}
				delete(open, ev.App)
			}
			res := p.Resolve(o)
			r.Resolution = &res
			r.Action = action(res)
			if res.Trained() {
				sum.TrainingEvents++
			}
		default:
			r.Action = ActionUnknown
		}
		results = append(results, r)
	}
	sum.Events = len(results)
	return results, sum
}

func outcome(ev Event) predictor.Outcome {
	switch ev.Kind {
	case KindForeground:
		return predictor.Outcome{Kind: predictor.OutcomeForeground, App: ev.App, Other: ev.Other}
	case KindNoNextApp:
		return predictor.Outcome{Kind: predictor.OutcomeNoNextApp, App: ev.App}
	default:
		return predictor.Outcome{Kind: predictor.OutcomePrefetchUnused, App: ev.App, Other: ev.Other}
	}
}

func action(res predictor.Resolution) string {
	switch {
	case res.Trained():
		return ActionTrained
	case res.MarkovUpdated:
		return ActionMarkovOnly
	default:
		return ActionIgnored
	}
}

// #endregion replay

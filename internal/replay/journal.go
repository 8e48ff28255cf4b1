package replay

import (
	"encoding/json"
	"fmt"

	"github.com/danielpatrickdp/nextapp/go-controller/internal/logging"
	"github.com/danielpatrickdp/nextapp/go-controller/internal/policy"
)

// #region journal-extract

// FromJournal converts journaled hook events, oldest first, into replay
// events and the actions the live engine recorded for them. The actions are
// what a faithful replay from the same starting models must reproduce.
func FromJournal(rows []logging.HookEvent) ([]Event, []FixtureExpectedResult, error) {
	events := make([]Event, 0, len(rows))
	expected := make([]FixtureExpectedResult, 0, len(rows))
	for _, r := range rows {
		ev := Event{Kind: r.Kind, App: r.AppA, Other: r.AppB}
		exp := FixtureExpectedResult{Kind: r.Kind, App: r.AppA}

		switch r.Kind {
		case KindAllowedToRun:
			if r.ContextJSON != "" {
				if err := json.Unmarshal([]byte(r.ContextJSON), &ev.Context); err != nil {
					return nil, nil, fmt.Errorf("event %s: context: %w", r.EventID, err)
				}
			}
			var d policy.Decision
			if r.DecisionJSON != "" {
				if err := json.Unmarshal([]byte(r.DecisionJSON), &d); err != nil {
					return nil, nil, fmt.Errorf("event %s: decision: %w", r.EventID, err)
				}
			}
			exp.Action = string(d.Reason)
		case KindForeground:
			exp.Action = resolvedAction(r.Trained, r.AppA != "" && r.AppB != "" && r.AppA != r.AppB)
		case KindNoNextApp, KindPrefetchUnused:
			exp.Action = resolvedAction(r.Trained, false)
		default:
			exp.Action = ActionUnknown
		}
		events = append(events, ev)
		expected = append(expected, exp)
	}
	return events, expected, nil
}

func resolvedAction(trained, markov bool) string {
	switch {
	case trained:
		return ActionTrained
	case markov:
		return ActionMarkovOnly
	default:
		return ActionIgnored
	}
}

// #endregion journal-extract

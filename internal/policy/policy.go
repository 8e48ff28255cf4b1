// Package policy decides between "no prefetch" and a prefetch set from the
// gating probability and the ranked candidates.
package policy

// #region policy
// Policy applies the threshold and gap rules.
type Policy struct {
	config Config
}

// New creates a policy with the given thresholds.
func New(config Config) *Policy {
	return &Policy{config: config}
}

// Config returns the thresholds in use.
func (p *Policy) Config() Config {
	return p.config
}

// Decide runs the checks in order; the first match wins. scored must be
// sorted by score descending. The result always carries pNext and the top-1
// score (0 when there is no candidate or the gating model vetoed).
func (p *Policy) Decide(pNext float32, scored []Scored) Decision {
	cfg := p.config

	if !cfg.Enable {
		return none(pNext, 0, ReasonDisabled)
	}

	if cfg.EnableGating && pNext < cfg.GatingThreshold {
		return none(pNext, 0, ReasonGatingVeto)
	}

	if len(scored) == 0 {
		return none(pNext, 0, ReasonNoCandidates)
	}

	top := scored[0].Score
	if top < cfg.RankThreshold {
		return none(pNext, top, ReasonLowScore)
	}

	// ambiguity suppression: do not spend power on a coin flip
	if len(scored) >= 2 && top-scored[1].Score < cfg.GapDelta {
		return none(pNext, top, ReasonAmbiguous)
	}

	k := cfg.PrefetchTopK
	if k > len(scored) {
		k = len(scored)
	}
	if k <= 0 {
		return none(pNext, top, ReasonLowScore)
	}

	apps := make([]string, k)
	for i := 0; i < k; i++ {
		apps[i] = scored[i].App
	}
	return Decision{Prefetch: apps, GatingP: pNext, TopScore: top, Reason: ReasonPrefetch}
}

func none(pNext, top float32, reason Reason) Decision {
	return Decision{Prefetch: []string{}, GatingP: pNext, TopScore: top, Reason: reason}
}

// #endregion policy

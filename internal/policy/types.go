package policy

// #region reason
// Reason names the policy branch that produced a decision.
type Reason string

const (
	ReasonDisabled     Reason = "disabled"
	ReasonGatingVeto   Reason = "gating_veto"
	ReasonNoCandidates Reason = "no_candidates"
	ReasonLowScore     Reason = "below_rank_threshold"
	ReasonAmbiguous    Reason = "ambiguous_gap"
	ReasonPrefetch     Reason = "prefetch"
	ReasonInvalid      Reason = "invalid_argument"
)

// #endregion reason

// #region policy-config
// Config holds the thresholds that turn scores into a prefetch set.
type Config struct {
	Enable          bool
	EnableGating    bool
	GatingThreshold float32 // pNext below this => no prefetch
	RankThreshold   float32 // top-1 score below this => no prefetch
	GapDelta        float32 // top1-top2 below this => no prefetch
	PrefetchTopK    int     // apps to prefetch when confident (usually 1)
}

// DefaultConfig returns the production thresholds.
func DefaultConfig() Config {
	return Config{
		Enable:          true,
		EnableGating:    true,
		GatingThreshold: 0.40,
		RankThreshold:   0.70,
		GapDelta:        0.10,
		PrefetchTopK:    1,
	}
}

// #endregion policy-config

// #region scored
// Scored is one candidate app with its ranking score.
type Scored struct {
	App   string
	Score float32
}

// #endregion scored

// #region decision
// Decision is returned to the host when an app is allowed to run. An empty
// Prefetch list means "no prefetch".
type Decision struct {
	Prefetch []string `json:"prefetch"`
	GatingP  float32  `json:"gating_p"`
	TopScore float32  `json:"top_score"`
	Reason   Reason   `json:"reason"`
}

// None is the safe default decision.
var None = Decision{Prefetch: []string{}, Reason: ReasonDisabled}

// ShouldPrefetch reports whether the decision names any app.
func (d Decision) ShouldPrefetch() bool {
	return len(d.Prefetch) > 0
}

// #endregion decision

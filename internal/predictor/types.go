package predictor

import (
	"github.com/danielpatrickdp/nextapp/go-controller/internal/model"
	"github.com/danielpatrickdp/nextapp/go-controller/internal/policy"
)

// #region predictor-config
// Config bundles everything the predictor wires together.
type Config struct {
	Enable        bool
	EnableGating  bool
	EnableRanking bool

	Model model.Config

	MarkovTopM    int     // destinations kept per source app (default 50)
	MarkovDecay   float64 // per-update row decay (default 0.9995)
	CandidateTopN int     // Markov candidates scored per decision (default 15)

	// Policy thresholds. Enable/EnableGating are taken from the fields above.
	Policy policy.Config

	HardNegPerPos   int // hard negatives mined per positive transition (default 5)
	MaxSessions     int // pending sessions kept (default 64)
	CheckpointEvery int // training events between checkpoint signals (default 300)
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		Enable:          true,
		EnableGating:    true,
		EnableRanking:   true,
		Model:           model.DefaultConfig(),
		MarkovTopM:      50,
		MarkovDecay:     0.9995,
		CandidateTopN:   15,
		Policy:          policy.DefaultConfig(),
		HardNegPerPos:   5,
		MaxSessions:     64,
		CheckpointEvery: 300,
	}
}

// #endregion predictor-config

// #region outcome
// OutcomeKind tags the event that resolves (or partially labels) a session.
type OutcomeKind int

const (
	// OutcomeForeground: the foreground moved from App to Other.
	OutcomeForeground OutcomeKind = iota + 1
	// OutcomeNoNextApp: the TTL for App expired with no next app.
	OutcomeNoNextApp
	// OutcomePrefetchUnused: Other was prefetched for App and not opened in time.
	OutcomePrefetchUnused
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeForeground:
		return "foreground_changed"
	case OutcomeNoNextApp:
		return "ttl_expired_no_next_app"
	case OutcomePrefetchUnused:
		return "prefetch_ttl_expired_not_used"
	default:
		return "unknown"
	}
}

// Outcome is a ground-truth observation fed to Resolve.
type Outcome struct {
	Kind  OutcomeKind
	App   string
	Other string
}

// #endregion outcome

// #region resolution
// Resolution reports what Resolve did with an outcome.
type Resolution struct {
	Outcome Outcome

	MarkovUpdated    bool
	HadSession       bool
	GatingLabel      int // -1 when the gating model was not trained
	RankingPositives int
	RankingNegatives int
	Closed           bool // the session was resolved and removed
	Checkpoint       bool // the checkpoint threshold was reached
}

// Trained reports whether any logistic model was updated.
func (r Resolution) Trained() bool {
	return r.GatingLabel >= 0 || r.RankingPositives > 0 || r.RankingNegatives > 0
}

// #endregion resolution

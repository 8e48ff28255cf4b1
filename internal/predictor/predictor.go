// Package predictor wires the hasher, encoders, logistic models, Markov
// table, policy and session store into the four lifecycle hooks.
//
// Decisions are made in AllowedToRun and recorded as pending sessions.
// Labels arrive later as Outcomes and are applied by a single resolver.
//
// Thread safety: NOT safe for concurrent use. The caller must serialize
// every hook (see internal/engine).
package predictor

import (
	"sort"
	"time"

	"github.com/danielpatrickdp/nextapp/go-controller/internal/features"
	"github.com/danielpatrickdp/nextapp/go-controller/internal/markov"
	"github.com/danielpatrickdp/nextapp/go-controller/internal/model"
	"github.com/danielpatrickdp/nextapp/go-controller/internal/policy"
	"github.com/danielpatrickdp/nextapp/go-controller/internal/session"
)

// #region predictor
// Predictor owns all learned state for one engine instance.
type Predictor struct {
	cfg Config

	markov  *markov.Table
	gating  *model.Logistic // P(next exists | A, ctx)
	ranking *model.Logistic // P(B | A, ctx)

	gatingEnc  *features.GatingEncoder
	rankingEnc *features.RankingEncoder

	policy   *policy.Policy
	sessions *session.Store

	updates      int
	now          func() time.Time
	onCheckpoint func()
}

// New creates a cold-start predictor.
func New(cfg Config) *Predictor {
	pc := cfg.Policy
	pc.Enable = cfg.Enable
	pc.EnableGating = cfg.EnableGating

	return &Predictor{
		cfg:        cfg,
		markov:     markov.NewTable(cfg.MarkovTopM, cfg.MarkovDecay),
		gating:     model.NewLogistic(cfg.Model),
		ranking:    model.NewLogistic(cfg.Model),
		gatingEnc:  features.NewGatingEncoder(cfg.Model.HashDimPow2),
		rankingEnc: features.NewRankingEncoder(cfg.Model.HashDimPow2),
		policy:     policy.New(pc),
		sessions:   session.NewStore(cfg.MaxSessions),
		now:        time.Now,
	}
}

// SetClock replaces the session timestamp source.
func (p *Predictor) SetClock(now func() time.Time) { p.now = now }

// OnCheckpoint registers fn to run each time the training counter reaches
// CheckpointEvery. fn runs synchronously inside the hook.
func (p *Predictor) OnCheckpoint(fn func()) { p.onCheckpoint = fn }

// Config returns the configuration in use.
func (p *Predictor) Config() Config { return p.cfg }

// Markov returns the transition table.
func (p *Predictor) Markov() *markov.Table { return p.markov }

// Gating returns the gating model.
func (p *Predictor) Gating() *model.Logistic { return p.gating }

// Ranking returns the ranking model.
func (p *Predictor) Ranking() *model.Logistic { return p.ranking }

// Sessions returns the pending-session store.
func (p *Predictor) Sessions() *session.Store { return p.sessions }

// PendingUpdates returns training events since the last checkpoint signal.
func (p *Predictor) PendingUpdates() int { return p.updates }

// #endregion predictor

// #region allowed-to-run
// AllowedToRun decides whether to prefetch after app was allowed to run and
// records a pending session for later labeling.
func (p *Predictor) AllowedToRun(app string, ctx features.Context) policy.Decision {
	if !p.cfg.Enable {
		return policy.None
	}
	if app == "" {
		d := policy.None
		d.Reason = policy.ReasonInvalid
		return d
	}

	// 1) gating
	pNext := float32(1.0)
	if p.cfg.EnableGating {
		pNext = p.gating.Score(p.gatingEnc.Encode(app, ctx))
	}

	// 2) candidates
	candidates := p.markov.TopN(app, p.cfg.CandidateTopN)

	// 3) scores
	scored := p.scoreCandidates(app, candidates, ctx)

	// 4) policy
	decision := p.policy.Decide(pNext, scored)

	// 5) session for deferred labels
	prefetched := make([]string, len(decision.Prefetch))
	copy(prefetched, decision.Prefetch)
	p.sessions.Put(&session.Session{
		App:        app,
		Context:    ctx,
		CreatedAt:  p.now(),
		Candidates: candidates,
		Prefetched: prefetched,
	})

	return decision
}

func (p *Predictor) scoreCandidates(app string, candidates []string, ctx features.Context) []policy.Scored {
	scored := make([]policy.Scored, len(candidates))
	if !p.cfg.EnableRanking {
		// Markov-only: earlier candidates score higher
		for i, c := range candidates {
			scored[i] = policy.Scored{App: c, Score: 1.0 - float32(i)*0.01}
		}
		return scored
	}
	for i, c := range candidates {
		scored[i] = policy.Scored{App: c, Score: p.ranking.Score(p.rankingEnc.Encode(app, c, ctx))}
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	return scored
}

// #endregion allowed-to-run

// #region hooks
// ForegroundChanged reports a real transition prev -> now.
func (p *Predictor) ForegroundChanged(prev, now string) Resolution {
	return p.Resolve(Outcome{Kind: OutcomeForeground, App: prev, Other: now})
}

// TTLExpiredNoNextApp reports that no app followed app within the TTL.
func (p *Predictor) TTLExpiredNoNextApp(app string) Resolution {
	return p.Resolve(Outcome{Kind: OutcomeNoNextApp, App: app})
}

// PrefetchTTLExpiredNotUsed reports that prefetched was not opened after app.
func (p *Predictor) PrefetchTTLExpiredNotUsed(app, prefetched string) Resolution {
	return p.Resolve(Outcome{Kind: OutcomePrefetchUnused, App: app, Other: prefetched})
}

// #endregion hooks

// #region resolve
// Resolve applies one outcome. It is the only path that trains the models.
func (p *Predictor) Resolve(o Outcome) Resolution {
	res := Resolution{Outcome: o, GatingLabel: -1}
	if !p.cfg.Enable {
		return res
	}

	switch o.Kind {
	case OutcomeForeground:
		p.resolveForeground(o, &res)
	case OutcomeNoNextApp:
		p.resolveNoNextApp(o, &res)
	case OutcomePrefetchUnused:
		p.resolvePrefetchUnused(o, &res)
	default:
		return res
	}

	if res.Trained() {
		res.Checkpoint = p.tick()
	}
	return res
}

func (p *Predictor) resolveForeground(o Outcome, res *Resolution) {
	prev, now := o.App, o.Other
	if prev == "" || now == "" || prev == now {
		return
	}

	// long-term memory is updated whether or not a session exists
	p.markov.Update(prev, now)
	res.MarkovUpdated = true

	s := p.sessions.Get(prev)
	if s == nil || s.Resolved {
		return
	}
	res.HadSession = true

	if p.cfg.EnableGating {
		p.gating.Update(p.gatingEnc.Encode(prev, s.Context), 1)
		res.GatingLabel = 1
	}

	if p.cfg.EnableRanking {
		p.ranking.Update(p.rankingEnc.Encode(prev, now, s.Context), 1)
		res.RankingPositives = 1

		for _, cand := range s.Candidates {
			if res.RankingNegatives >= p.cfg.HardNegPerPos {
				break
			}
			if cand == now {
				continue
			}
			p.ranking.Update(p.rankingEnc.Encode(prev, cand, s.Context), 0)
			res.RankingNegatives++
		}
	}

	p.close(s, res)
}

func (p *Predictor) resolveNoNextApp(o Outcome, res *Resolution) {
	if !p.cfg.EnableGating || o.App == "" {
		return
	}
	s := p.sessions.Get(o.App)
	if s == nil || s.Resolved {
		return
	}
	res.HadSession = true

	p.gating.Update(p.gatingEnc.Encode(o.App, s.Context), 0)
	res.GatingLabel = 0

	p.close(s, res)
}

// resolvePrefetchUnused only checks that a session exists, not whether it is
// resolved. This mirrors the deployed behavior; see DESIGN.md.
func (p *Predictor) resolvePrefetchUnused(o Outcome, res *Resolution) {
	if !p.cfg.EnableRanking || o.App == "" || o.Other == "" {
		return
	}
	s := p.sessions.Get(o.App)
	if s == nil {
		return
	}
	res.HadSession = true

	p.ranking.Update(p.rankingEnc.Encode(o.App, o.Other, s.Context), 0)
	res.RankingNegatives = 1
}

func (p *Predictor) close(s *session.Session, res *Resolution) {
	s.Resolved = true
	p.sessions.Remove(s.App)
	res.Closed = true
}

func (p *Predictor) tick() bool {
	p.updates++
	if p.cfg.CheckpointEvery <= 0 || p.updates < p.cfg.CheckpointEvery {
		return false
	}
	p.updates = 0
	if p.onCheckpoint != nil {
		p.onCheckpoint()
	}
	return true
}

// #endregion resolve

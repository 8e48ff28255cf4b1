// Package engine is the host-facing boundary around the predictor. It
// serializes every hook, keeps persistence and journaling off the hook path,
// and guarantees hooks never fail: malformed state degrades to a cold start
// and any internal fault yields the safe default decision.
package engine

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/danielpatrickdp/nextapp/go-controller/internal/eval"
	"github.com/danielpatrickdp/nextapp/go-controller/internal/features"
	"github.com/danielpatrickdp/nextapp/go-controller/internal/logging"
	"github.com/danielpatrickdp/nextapp/go-controller/internal/policy"
	"github.com/danielpatrickdp/nextapp/go-controller/internal/predictor"
	"github.com/danielpatrickdp/nextapp/go-controller/internal/state"
)

// #region options
// Options wires optional collaborators. Zero values disable the feature.
type Options struct {
	Files     *state.Files       // nil: no model persistence
	Journal   *logging.Journal   // nil: no journal
	Eval      *eval.Config       // nil: eval.DefaultConfig()
	Logger    logrus.FieldLogger // nil: logrus standard logger
	QueueSize int                // journal queue (default 256)
}

// #endregion options

// #region engine
// Engine owns one Predictor and its persistence. All methods are safe for
// concurrent use.
type Engine struct {
	mu     sync.Mutex
	p      *predictor.Predictor
	closed bool

	gatingStore  *state.ModelStore
	rankingStore *state.ModelStore
	markovStore  *state.MarkovStore
	journal      *logging.Journal
	harness      *eval.Harness
	log          logrus.FieldLogger

	saves  chan pendingSave
	events chan logging.HookEvent
	stop   chan struct{}
	wg     sync.WaitGroup

	persistMu    sync.Mutex
	saveSeq      uint64 // guarded by mu
	persistedSeq uint64 // guarded by persistMu

	dropped     atomic.Int64
	checkpoints atomic.Int64
	rejected    atomic.Int64
	closeOnce   sync.Once
}

type pendingSave struct {
	seq uint64
	cp  eval.Checkpoint
}

// New creates an engine around a cold-start predictor and starts the
// persistence worker. Call LoadModels to restore state and Close to stop.
func New(cfg predictor.Config, opts Options) *Engine {
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	evalCfg := eval.DefaultConfig()
	if opts.Eval != nil {
		evalCfg = *opts.Eval
	}
	queue := opts.QueueSize
	if queue <= 0 {
		queue = 256
	}

	e := &Engine{
		p:       predictor.New(cfg),
		journal: opts.Journal,
		harness: eval.NewHarness(evalCfg),
		log:     log.WithField("component", "engine"),
		saves:   make(chan pendingSave, 1),
		events:  make(chan logging.HookEvent, queue),
		stop:    make(chan struct{}),
	}
	if opts.Files != nil {
		pow2 := cfg.Model.HashDimPow2
		e.gatingStore = state.NewModelStore(opts.Files.Gating, pow2)
		e.rankingStore = state.NewModelStore(opts.Files.Ranking, pow2)
		e.markovStore = state.NewMarkovStore(opts.Files.Markov)
	}
	e.p.OnCheckpoint(e.scheduleSaveLocked)

	e.wg.Add(1)
	go e.run()
	return e
}

// #endregion engine

// #region hooks
// AllowedToRun returns the prefetch decision for app. It never fails.
func (e *Engine) AllowedToRun(app string, ctx features.Context) (d policy.Decision) {
	defer e.recoverHook("allowed_to_run", app, func() { d = policy.None })

	e.mu.Lock()
	defer e.mu.Unlock()

	d = e.p.AllowedToRun(app, ctx)
	e.log.WithFields(logrus.Fields{
		"app":       app,
		"reason":    d.Reason,
		"p_next":    d.GatingP,
		"top_score": d.TopScore,
		"prefetch":  d.Prefetch,
	}).Debug("allowed to run")

	e.enqueueLocked(logging.HookEvent{
		Kind:         "allowed_to_run",
		AppA:         app,
		ContextJSON:  marshal(ctx),
		DecisionJSON: marshal(d),
	})
	return d
}

// ForegroundChanged reports the transition prev -> now.
func (e *Engine) ForegroundChanged(prev, now string) {
	e.resolve(predictor.Outcome{Kind: predictor.OutcomeForeground, App: prev, Other: now})
}

// TTLExpiredNoNextApp reports that nothing followed app in time.
func (e *Engine) TTLExpiredNoNextApp(app string) {
	e.resolve(predictor.Outcome{Kind: predictor.OutcomeNoNextApp, App: app})
}

// PrefetchTTLExpiredNotUsed reports that prefetched went unused after app.
func (e *Engine) PrefetchTTLExpiredNotUsed(app, prefetched string) {
	e.resolve(predictor.Outcome{Kind: predictor.OutcomePrefetchUnused, App: app, Other: prefetched})
}

func (e *Engine) resolve(o predictor.Outcome) {
	defer e.recoverHook(o.Kind.String(), o.App, nil)

	e.mu.Lock()
	defer e.mu.Unlock()

	res := e.p.Resolve(o)
	e.log.WithFields(logrus.Fields{
		"kind":      o.Kind,
		"app":       o.App,
		"other":     o.Other,
		"trained":   res.Trained(),
		"negatives": res.RankingNegatives,
	}).Debug("resolved")

	e.enqueueLocked(logging.HookEvent{
		Kind:    o.Kind.String(),
		AppA:    o.App,
		AppB:    o.Other,
		Trained: res.Trained(),
	})
}

func (e *Engine) recoverHook(hook, app string, fallback func()) {
	if r := recover(); r != nil {
		e.log.WithFields(logrus.Fields{"hook": hook, "app": app}).Errorf("hook panic: %v", r)
		if fallback != nil {
			fallback()
		}
	}
}

// #endregion hooks

// #region inspect
// Inspect runs fn with exclusive access to the predictor.
func (e *Engine) Inspect(fn func(p *predictor.Predictor)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e.p)
}

// Stats is a point-in-time view of engine counters.
type Stats struct {
	Sessions          int   `json:"sessions"`
	MarkovRows        int   `json:"markov_rows"`
	PendingUpdates    int   `json:"pending_updates"`
	Checkpoints       int64 `json:"checkpoints"`
	RejectedSnapshots int64 `json:"rejected_snapshots"`
	DroppedEvents     int64 `json:"dropped_events"`
}

// Stats returns current counters.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	s := Stats{
		Sessions:       e.p.Sessions().Len(),
		MarkovRows:     e.p.Markov().Rows(),
		PendingUpdates: e.p.PendingUpdates(),
	}
	e.mu.Unlock()
	s.Checkpoints = e.checkpoints.Load()
	s.RejectedSnapshots = e.rejected.Load()
	s.DroppedEvents = e.dropped.Load()
	return s
}

// #endregion inspect

// #region lifecycle
// Close stops the worker, drains queued work and writes a final checkpoint.
// Hooks keep answering after Close but nothing more is persisted.
func (e *Engine) Close(ctx context.Context) error {
	var err error
	e.closeOnce.Do(func() {
		e.mu.Lock()
		e.closed = true
		e.saveSeq++
		final := pendingSave{seq: e.saveSeq, cp: e.snapshotLocked()}
		e.mu.Unlock()

		close(e.stop)
		done := make(chan struct{})
		go func() {
			e.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			err = ctx.Err()
			return
		}
		_, err = e.persist(final, "shutdown")
	})
	return err
}

// #endregion lifecycle

// #region helpers
func marshal(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

// #endregion helpers

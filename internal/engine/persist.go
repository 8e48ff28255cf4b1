package engine

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/danielpatrickdp/nextapp/go-controller/internal/eval"
	"github.com/danielpatrickdp/nextapp/go-controller/internal/logging"
	"github.com/danielpatrickdp/nextapp/go-controller/internal/state"
)

// ErrRejected is returned by Checkpoint when validation refuses the snapshot.
var ErrRejected = errors.New("checkpoint rejected by validation")

// #region load
// LoadReport says which models were restored.
type LoadReport struct {
	Gating            bool
	Ranking           bool
	Markov            bool
	MarkovTransitions int
}

// LoadModels restores the models from disk. Anything missing, corrupt or
// sized for another dimension is left at cold start.
func (e *Engine) LoadModels() LoadReport {
	var rep LoadReport
	if e.gatingStore == nil {
		return rep
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	rep.Gating = e.loadLogged("gating", e.gatingStore.Path(), e.gatingStore.Load(e.p.Gating()))
	rep.Ranking = e.loadLogged("ranking", e.rankingStore.Path(), e.rankingStore.Load(e.p.Ranking()))

	n, err := e.markovStore.Load(e.p.Markov())
	rep.Markov = e.loadLogged("markov", e.markovStore.Path(), err)
	rep.MarkovTransitions = n

	e.log.WithFields(logrus.Fields{
		"gating":  rep.Gating,
		"ranking": rep.Ranking,
		"markov":  rep.MarkovTransitions,
	}).Info("models loaded")
	return rep
}

func (e *Engine) loadLogged(name, path string, err error) bool {
	switch {
	case err == nil:
		return true
	case errors.Is(err, state.ErrNoModel):
		e.log.WithFields(logrus.Fields{"model": name, "path": path}).Info("no usable model file, cold start")
	default:
		e.log.WithFields(logrus.Fields{"model": name, "path": path}).Warnf("load failed, cold start: %v", err)
	}
	return false
}

// #endregion load

// #region checkpoint
// Checkpoint validates and writes the current models synchronously. Use it
// at lifecycle boundaries; during normal operation checkpoints are written
// by the background worker.
func (e *Engine) Checkpoint() (logging.CheckpointRecord, error) {
	e.mu.Lock()
	e.saveSeq++
	ps := pendingSave{seq: e.saveSeq, cp: e.snapshotLocked()}
	e.mu.Unlock()
	return e.persist(ps, "manual")
}

func (e *Engine) snapshotLocked() eval.Checkpoint {
	return eval.Checkpoint{
		Gating:  e.p.Gating().Snapshot(),
		Ranking: e.p.Ranking().Snapshot(),
		Markov:  e.p.Markov().Export(),
	}
}

// scheduleSaveLocked runs inside a hook when the predictor's training counter
// fires. The channel holds one snapshot; a newer one replaces an unsaved one.
func (e *Engine) scheduleSaveLocked() {
	if e.closed || e.gatingStore == nil {
		return
	}
	e.saveSeq++
	ps := pendingSave{seq: e.saveSeq, cp: e.snapshotLocked()}
	select {
	case <-e.saves:
	default:
	}
	e.saves <- ps
}

func (e *Engine) enqueueLocked(ev logging.HookEvent) {
	if e.closed || e.journal == nil {
		return
	}
	select {
	case e.events <- ev:
	default:
		e.dropped.Add(1)
		e.log.WithField("kind", ev.Kind).Debug("journal queue full, event dropped")
	}
}

// #endregion checkpoint

// #region worker
func (e *Engine) run() {
	defer e.wg.Done()
	for {
		select {
		case ps := <-e.saves:
			e.persist(ps, "periodic")
		case ev := <-e.events:
			e.writeEvent(ev)
		case <-e.stop:
			for {
				select {
				case ps := <-e.saves:
					e.persist(ps, "periodic")
				case ev := <-e.events:
					e.writeEvent(ev)
				default:
					return
				}
			}
		}
	}
}

func (e *Engine) writeEvent(ev logging.HookEvent) {
	if _, err := e.journal.LogEvent(ev); err != nil {
		e.log.WithField("kind", ev.Kind).Warnf("journal write failed: %v", err)
	}
}

// persist validates and writes one snapshot. Snapshots older than the last
// one persisted are skipped.
func (e *Engine) persist(ps pendingSave, trigger string) (logging.CheckpointRecord, error) {
	e.persistMu.Lock()
	defer e.persistMu.Unlock()

	if e.gatingStore == nil || ps.seq <= e.persistedSeq {
		return logging.CheckpointRecord{}, nil
	}

	rec := checkpointRecord(ps.cp)
	log := e.log.WithFields(logrus.Fields{"trigger": trigger, "seq": ps.seq})

	result := e.harness.Run(ps.cp)
	var err error
	if !result.Passed {
		rec.Outcome = logging.OutcomeRejected
		rec.Reason = result.Reason
		err = fmt.Errorf("%w: %s", ErrRejected, result.Reason)
		e.rejected.Add(1)
		log.Warn(result.Reason)
	} else if werr := e.writeFiles(ps.cp); werr != nil {
		rec.Outcome = logging.OutcomeFailed
		rec.Reason = werr.Error()
		err = werr
		log.Warnf("checkpoint write failed: %v", werr)
	} else {
		rec.Outcome = logging.OutcomePublished
		rec.Reason = trigger
		e.persistedSeq = ps.seq
		log.WithFields(logrus.Fields{
			"gating_norm":  rec.Gating.Norm,
			"ranking_norm": rec.Ranking.Norm,
			"markov_rows":  rec.MarkovRows,
		}).Info("checkpoint published")
	}

	if e.journal != nil {
		stored, jerr := e.journal.LogCheckpoint(rec)
		if jerr != nil {
			log.Warnf("journal checkpoint failed: %v", jerr)
		} else {
			rec = stored
		}
	}
	if err == nil {
		e.checkpoints.Add(1)
	}
	return rec, err
}

func (e *Engine) writeFiles(cp eval.Checkpoint) error {
	if err := e.gatingStore.Write(cp.Gating); err != nil {
		return fmt.Errorf("gating: %w", err)
	}
	if err := e.rankingStore.Write(cp.Ranking); err != nil {
		return fmt.Errorf("ranking: %w", err)
	}
	if err := e.markovStore.Write(cp.Markov); err != nil {
		return fmt.Errorf("markov: %w", err)
	}
	return nil
}

func checkpointRecord(cp eval.Checkpoint) logging.CheckpointRecord {
	transitions := 0
	for _, r := range cp.Markov.Rows {
		transitions += len(r.Transitions)
	}
	return logging.CheckpointRecord{
		Gating: logging.ModelStats{
			Bias: cp.Gating.Bias,
			Norm: eval.WeightNorm(cp.Gating.Weights),
			Dim:  len(cp.Gating.Weights),
		},
		Ranking: logging.ModelStats{
			Bias: cp.Ranking.Bias,
			Norm: eval.WeightNorm(cp.Ranking.Weights),
			Dim:  len(cp.Ranking.Weights),
		},
		MarkovRows:        len(cp.Markov.Rows),
		MarkovTransitions: transitions,
	}
}

// #endregion worker

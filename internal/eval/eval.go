// Package eval validates learned state before a checkpoint is written, so a
// diverged model never replaces the last good files on disk.
package eval

import (
	"fmt"
	"math"

	"github.com/danielpatrickdp/nextapp/go-controller/internal/model"
)

// #region eval-harness
// Harness runs the pre-publish checks.
type Harness struct {
	config Config
}

// NewHarness creates a harness with the given configuration.
func NewHarness(config Config) *Harness {
	return &Harness{config: config}
}

// Run checks both logistic models and the Markov table.
func (h *Harness) Run(cp Checkpoint) Result {
	var metrics []Metric
	var failReasons []string

	check := func(name string, value float32, pass bool, why string) {
		metrics = append(metrics, Metric{Name: name, Value: value, Pass: pass})
		if !pass {
			failReasons = append(failReasons, why)
		}
	}

	// 1. Logistic models: finite, bounded norm, bounded bias
	for _, m := range []struct {
		name string
		snap model.Snapshot
	}{
		{"gating", cp.Gating},
		{"ranking", cp.Ranking},
	} {
		finite := Finite(m.snap)
		check(m.name+"_finite", boolValue(finite), finite, fmt.Sprintf("%s has non-finite parameters", m.name))

		norm := WeightNorm(m.snap.Weights)
		check(m.name+"_weight_norm", norm, finite && norm <= h.config.MaxWeightNorm,
			fmt.Sprintf("%s weight norm %.4f exceeds %.4f", m.name, norm, h.config.MaxWeightNorm))

		bias := float32(math.Abs(float64(m.snap.Bias)))
		check(m.name+"_abs_bias", bias, finite && bias <= h.config.MaxAbsBias,
			fmt.Sprintf("%s |bias| %.4f exceeds %.4f", m.name, bias, h.config.MaxAbsBias))
	}

	// 2. Markov rows bounded, weights finite and non-negative
	limit := h.config.MaxRowLen
	if limit <= 0 {
		limit = cp.Markov.TopM
	}
	maxRow, badWeights := 0, 0
	for _, r := range cp.Markov.Rows {
		if len(r.Transitions) > maxRow {
			maxRow = len(r.Transitions)
		}
		for _, tr := range r.Transitions {
			if tr.Weight < 0 || math.IsNaN(tr.Weight) || math.IsInf(tr.Weight, 0) {
				badWeights++
			}
		}
	}
	check("markov_max_row", float32(maxRow), maxRow <= limit,
		fmt.Sprintf("markov row of %d exceeds %d", maxRow, limit))
	check("markov_bad_weights", float32(badWeights), badWeights == 0,
		fmt.Sprintf("markov has %d invalid weights", badWeights))

	reason := "all checks passed"
	if len(failReasons) > 0 {
		reason = fmt.Sprintf("eval failed: %s", failReasons[0])
		if len(failReasons) > 1 {
			reason = fmt.Sprintf("eval failed: %d checks: %s", len(failReasons), failReasons[0])
		}
	}

	return Result{
		Passed:  len(failReasons) == 0,
		Metrics: metrics,
		Reason:  reason,
	}
}

// #endregion eval-harness

// #region helpers
// WeightNorm computes the L2 norm of w.
func WeightNorm(w []float32) float32 {
	var sum float64
	for _, x := range w {
		sum += float64(x) * float64(x)
	}
	return float32(math.Sqrt(sum))
}

// Finite reports whether the bias and every weight are finite.
func Finite(s model.Snapshot) bool {
	if !finite32(s.Bias) {
		return false
	}
	for _, w := range s.Weights {
		if !finite32(w) {
			return false
		}
	}
	return true
}

func finite32(x float32) bool {
	f := float64(x)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func boolValue(b bool) float32 {
	if b {
		return 1
	}
	return 0
}

// #endregion helpers

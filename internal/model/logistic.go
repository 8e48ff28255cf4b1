// Package model implements the streaming logistic regression used for both
// the gating and the ranking task.
//
// Features are sparse and binary: every listed index has value 1. Repeated
// indices are not deduplicated, so a repeat doubles that weight's
// contribution to the score and receives two gradient steps.
//
// Thread safety: NOT safe for concurrent use. The engine serializes access.
package model

import (
	"fmt"
	"math"
)

// #region logistic
// Logistic is an online binary classifier over hashed features.
type Logistic struct {
	hashDimPow2  int
	learningRate float32
	l2           float32

	bias    float32
	weights []float32
}

// NewLogistic creates a cold-start model (zero bias, zero weights).
func NewLogistic(cfg Config) *Logistic {
	return &Logistic{
		hashDimPow2:  cfg.HashDimPow2,
		learningRate: cfg.LearningRate,
		l2:           cfg.L2,
		weights:      make([]float32, 1<<uint(cfg.HashDimPow2)),
	}
}

// HashDimPow2 returns the configured index-space exponent.
func (m *Logistic) HashDimPow2() int { return m.hashDimPow2 }

// Dim returns the weight vector length.
func (m *Logistic) Dim() int { return len(m.weights) }

// Bias returns the intercept.
func (m *Logistic) Bias() float32 { return m.bias }

// #endregion logistic

// #region score
// Score returns sigmoid(bias + sum of weights at indices). Indices outside
// [0, Dim) are ignored.
func (m *Logistic) Score(indices []int) float32 {
	return float32(sigmoid(m.logit(indices)))
}

func (m *Logistic) logit(indices []int) float64 {
	z := float64(m.bias)
	for _, idx := range indices {
		if idx < 0 || idx >= len(m.weights) {
			continue
		}
		z += float64(m.weights[idx])
	}
	return z
}

func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

// #endregion score

// #region update
// Update takes one gradient step toward label (0 or 1):
//
//	err = score - label
//	w[i] -= lr * (err + l2*w[i])   for each listed index occurrence
//	bias -= lr * err
func (m *Logistic) Update(indices []int, label int) {
	y := 0.0
	if label > 0 {
		y = 1.0
	}
	err := sigmoid(m.logit(indices)) - y
	lr := float64(m.learningRate)
	l2 := float64(m.l2)

	for _, idx := range indices {
		if idx < 0 || idx >= len(m.weights) {
			continue
		}
		w := float64(m.weights[idx])
		m.weights[idx] = float32(w - lr*(err+l2*w))
	}
	m.bias = float32(float64(m.bias) - lr*err)
}

// #endregion update

// #region persistence
// Weights returns a copy of the weight vector.
func (m *Logistic) Weights() []float32 {
	out := make([]float32, len(m.weights))
	copy(out, m.weights)
	return out
}

// Snapshot returns a detached copy of the parameters.
func (m *Logistic) Snapshot() Snapshot {
	return Snapshot{
		HashDimPow2: m.hashDimPow2,
		Bias:        m.bias,
		Weights:     m.Weights(),
	}
}

// Restore replaces bias and weights. A vector whose length differs from Dim
// is rejected and the prior state is kept.
func (m *Logistic) Restore(bias float32, weights []float32) error {
	if len(weights) != len(m.weights) {
		return fmt.Errorf("restore %d weights into dim %d: %w", len(weights), len(m.weights), ErrDimMismatch)
	}
	copy(m.weights, weights)
	m.bias = bias
	return nil
}

// Reset returns the model to cold start.
func (m *Logistic) Reset() {
	for i := range m.weights {
		m.weights[i] = 0
	}
	m.bias = 0
}

// #endregion persistence

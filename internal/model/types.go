package model

import "errors"

// ErrDimMismatch is returned by Restore when the weight vector does not match
// the configured dimension. The model keeps its prior state.
var ErrDimMismatch = errors.New("weight vector length does not match model dimension")

// #region model-config
// Config holds hyperparameters shared by the gating and ranking models.
type Config struct {
	HashDimPow2  int     // index space is 2^HashDimPow2 (default 16)
	LearningRate float32 // SGD step size (default 0.05)
	L2           float32 // weight shrinkage, bias excluded (default 1e-6)
}

// DefaultConfig returns the production hyperparameters.
func DefaultConfig() Config {
	return Config{
		HashDimPow2:  16,
		LearningRate: 0.05,
		L2:           1e-6,
	}
}

// #endregion model-config

// #region snapshot
// Snapshot is a detached copy of a model's parameters, safe to hand to
// another goroutine for persistence.
type Snapshot struct {
	HashDimPow2 int
	Bias        float32
	Weights     []float32
}

// #endregion snapshot

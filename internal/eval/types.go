package eval

import (
	"github.com/danielpatrickdp/nextapp/go-controller/internal/markov"
	"github.com/danielpatrickdp/nextapp/go-controller/internal/model"
)

// #region eval-config
// Config holds thresholds for pre-publish checkpoint validation.
type Config struct {
	MaxWeightNorm float32 // reject if either model's weight L2 norm exceeds this
	MaxAbsBias    float32 // reject if either model's |bias| exceeds this
	MaxRowLen     int     // reject if a Markov row exceeds this; 0 uses the snapshot's TopM
}

// DefaultConfig returns production thresholds.
func DefaultConfig() Config {
	return Config{
		MaxWeightNorm: 500.0,
		MaxAbsBias:    50.0,
	}
}

// #endregion eval-config

// #region checkpoint
// Checkpoint is the full set of learned state about to be published.
type Checkpoint struct {
	Gating  model.Snapshot
	Ranking model.Snapshot
	Markov  markov.Snapshot
}

// #endregion checkpoint

// #region eval-metric
// Metric captures a single validation check result.
type Metric struct {
	Name  string
	Value float32
	Pass  bool
}

// #endregion eval-metric

// #region eval-result
// Result is the output of checkpoint validation.
type Result struct {
	Passed  bool
	Metrics []Metric
	Reason  string
}

// #endregion eval-result

package replay

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/danielpatrickdp/nextapp/go-controller/internal/predictor"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture.
type Fixture struct {
	Description     string                  `json:"description"`
	Config          FixtureConfig           `json:"config"`
	Events          []Event                 `json:"events"`
	ExpectedResults []FixtureExpectedResult `json:"expected_results"`
}

// FixtureExpectedResult captures the expected action per event.
type FixtureExpectedResult struct {
	Kind   string `json:"kind"`
	App    string `json:"app"`
	Action string `json:"action"`
}

// FixtureConfig mirrors predictor.Config with JSON tags.
type FixtureConfig struct {
	Enable          bool    `json:"enable"`
	EnableGating    bool    `json:"enable_gating"`
	EnableRanking   bool    `json:"enable_ranking"`
	HashDimPow2     int     `json:"hash_dim_pow2"`
	LearningRate    float32 `json:"learning_rate"`
	L2              float32 `json:"l2"`
	MarkovTopM      int     `json:"markov_top_m"`
	MarkovDecay     float64 `json:"markov_decay"`
	CandidateTopN   int     `json:"candidate_top_n"`
	GatingThreshold float32 `json:"gating_threshold"`
	RankThreshold   float32 `json:"rank_threshold"`
	GapDelta        float32 `json:"gap_delta"`
	PrefetchTopK    int     `json:"prefetch_top_k"`
	HardNegPerPos   int     `json:"hard_neg_per_pos"`
	MaxSessions     int     `json:"max_sessions"`
	CheckpointEvery int     `json:"checkpoint_every"`
}

// #endregion fixture-types

// #region fixture-loader

// DefaultFixtureConfig returns the production predictor settings.
func DefaultFixtureConfig() FixtureConfig {
	return FromPredictorConfig(predictor.DefaultConfig())
}

// FromPredictorConfig converts a domain config to its fixture form.
func FromPredictorConfig(c predictor.Config) FixtureConfig {
	return FixtureConfig{
		Enable:          c.Enable,
		EnableGating:    c.EnableGating,
		EnableRanking:   c.EnableRanking,
		HashDimPow2:     c.Model.HashDimPow2,
		LearningRate:    c.Model.LearningRate,
		L2:              c.Model.L2,
		MarkovTopM:      c.MarkovTopM,
		MarkovDecay:     c.MarkovDecay,
		CandidateTopN:   c.CandidateTopN,
		GatingThreshold: c.Policy.GatingThreshold,
		RankThreshold:   c.Policy.RankThreshold,
		GapDelta:        c.Policy.GapDelta,
		PrefetchTopK:    c.Policy.PrefetchTopK,
		HardNegPerPos:   c.HardNegPerPos,
		MaxSessions:     c.MaxSessions,
		CheckpointEvery: c.CheckpointEvery,
	}
}

// LoadFixture reads and parses a JSON fixture file. Config keys the file
// omits keep their production defaults.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	f := Fixture{Config: DefaultFixtureConfig()}
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return &f, nil
}

// ToPredictorConfig converts a FixtureConfig to a domain predictor.Config.
func (fc *FixtureConfig) ToPredictorConfig() predictor.Config {
	c := predictor.DefaultConfig()
	c.Enable = fc.Enable
	c.EnableGating = fc.EnableGating
	c.EnableRanking = fc.EnableRanking
	c.Model.HashDimPow2 = fc.HashDimPow2
	c.Model.LearningRate = fc.LearningRate
	c.Model.L2 = fc.L2
	c.MarkovTopM = fc.MarkovTopM
	c.MarkovDecay = fc.MarkovDecay
	c.CandidateTopN = fc.CandidateTopN
	c.Policy.GatingThreshold = fc.GatingThreshold
	c.Policy.RankThreshold = fc.RankThreshold
	c.Policy.GapDelta = fc.GapDelta
	c.Policy.PrefetchTopK = fc.PrefetchTopK
	c.HardNegPerPos = fc.HardNegPerPos
	c.MaxSessions = fc.MaxSessions
	c.CheckpointEvery = fc.CheckpointEvery
	return c
}

// Mismatch is one event whose action differs from the fixture.
type Mismatch struct {
	Index    int
	Kind     string
	App      string
	Expected string
	Actual   string
}

// Check replays the fixture and returns every event whose action differs
// from ExpectedResults, plus the run's results and summary. A length
// difference is reported as mismatches against "" on the short side.
func (f *Fixture) Check() ([]Mismatch, []Result, Summary) {
	results, sum := Replay(f.Events, f.Config.ToPredictorConfig())
	var out []Mismatch
	n := max(len(results), len(f.ExpectedResults))
	for i := 0; i < n; i++ {
		var exp FixtureExpectedResult
		var got Result
		if i < len(f.ExpectedResults) {
			exp = f.ExpectedResults[i]
		}
		if i < len(results) {
			got = results[i]
		}
		if i >= len(results) || i >= len(f.ExpectedResults) || exp.Action != got.Action || (exp.Kind != "" && exp.Kind != got.Kind) {
			out = append(out, Mismatch{Index: i, Kind: got.Kind, App: got.App, Expected: exp.Action, Actual: got.Action})
		}
	}
	return out, results, sum
}

// #endregion fixture-loader

// Package config loads the engine configuration from YAML and the
// environment and converts it into the per-package domain configs.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/danielpatrickdp/nextapp/go-controller/internal/eval"
	"github.com/danielpatrickdp/nextapp/go-controller/internal/model"
	"github.com/danielpatrickdp/nextapp/go-controller/internal/policy"
	"github.com/danielpatrickdp/nextapp/go-controller/internal/predictor"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

// #region config-types
// Config mirrors the YAML file. All top-level sections must be listed so
// strict decoding rejects typos.
type Config struct {
	Engine      EngineConfig      `yaml:"engine"`
	Markov      MarkovConfig      `yaml:"markov"`
	Model       ModelConfig       `yaml:"model"`
	Policy      PolicyConfig      `yaml:"policy"`
	Gating      GatingConfig      `yaml:"gating"`
	Session     SessionConfig     `yaml:"session"`
	Persistence PersistenceConfig `yaml:"persistence"`
	TTL         TTLConfig         `yaml:"ttl"`
	Server      ServerConfig      `yaml:"server"`
	Log         LogConfig         `yaml:"log"`
}

type EngineConfig struct {
	Enable          bool `yaml:"enable"`
	EnableRanking   bool `yaml:"enable_ranking"`
	CheckpointEvery int  `yaml:"checkpoint_every"`
	HardNegPerPos   int  `yaml:"hard_neg_per_pos"`
}

type MarkovConfig struct {
	TopM          int     `yaml:"top_m"`
	Decay         float64 `yaml:"decay"`
	CandidateTopN int     `yaml:"candidate_top_n"`
}

type ModelConfig struct {
	HashDimPow2  int     `yaml:"hash_dim_pow2"`
	LearningRate float32 `yaml:"learning_rate"`
	L2           float32 `yaml:"l2"`
}

type PolicyConfig struct {
	PrefetchTopK  int     `yaml:"prefetch_top_k"`
	RankThreshold float32 `yaml:"rank_threshold"`
	GapDelta      float32 `yaml:"gap_delta"`
}

type GatingConfig struct {
	Enable    bool    `yaml:"enable"`
	Threshold float32 `yaml:"threshold"`
}

type SessionConfig struct {
	MaxSessions int `yaml:"max_sessions"`
}

type PersistenceConfig struct {
	DataDir       string  `yaml:"data_dir"`
	Journal       string  `yaml:"journal"` // empty disables the journal
	QueueSize     int     `yaml:"queue_size"`
	MaxWeightNorm float32 `yaml:"max_weight_norm"`
	MaxAbsBias    float32 `yaml:"max_abs_bias"`
}

type TTLConfig struct {
	Prefetch time.Duration `yaml:"prefetch"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// #endregion config-types

// #region defaults
// Default returns the production configuration.
func Default() Config {
	pc := predictor.DefaultConfig()
	ec := eval.DefaultConfig()
	return Config{
		Engine: EngineConfig{
			Enable:          pc.Enable,
			EnableRanking:   pc.EnableRanking,
			CheckpointEvery: pc.CheckpointEvery,
			HardNegPerPos:   pc.HardNegPerPos,
		},
		Markov: MarkovConfig{
			TopM:          pc.MarkovTopM,
			Decay:         pc.MarkovDecay,
			CandidateTopN: pc.CandidateTopN,
		},
		Model: ModelConfig{
			HashDimPow2:  pc.Model.HashDimPow2,
			LearningRate: pc.Model.LearningRate,
			L2:           pc.Model.L2,
		},
		Policy: PolicyConfig{
			PrefetchTopK:  pc.Policy.PrefetchTopK,
			RankThreshold: pc.Policy.RankThreshold,
			GapDelta:      pc.Policy.GapDelta,
		},
		Gating: GatingConfig{
			Enable:    pc.EnableGating,
			Threshold: pc.Policy.GatingThreshold,
		},
		Session: SessionConfig{MaxSessions: pc.MaxSessions},
		Persistence: PersistenceConfig{
			DataDir:       "nextapp-data",
			Journal:       filepath.Join("nextapp-data", "journal.db"),
			QueueSize:     256,
			MaxWeightNorm: ec.MaxWeightNorm,
			MaxAbsBias:    ec.MaxAbsBias,
		},
		TTL:    TTLConfig{Prefetch: 30 * time.Second},
		Server: ServerConfig{Addr: "localhost:50061"},
		Log:    LogConfig{Level: "info"},
	}
}

// #endregion defaults

// #region load
// Load reads path over the defaults. Unknown keys are rejected. An empty
// path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config: %w", err)
	}
	if err := Parse(data, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse decodes YAML into cfg with strict field checking.
func Parse(data []byte, cfg *Config) error {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}
	return nil
}

// ApplyEnv overrides paths and the listen address from the environment.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvDataDir); v != "" {
		c.Persistence.DataDir = v
	}
	if v := os.Getenv(EnvJournal); v != "" {
		c.Persistence.Journal = v
	}
	if v := os.Getenv(EnvAddr); v != "" {
		c.Server.Addr = v
	}
}

// #endregion load

// #region validate
// Validate checks ranges. Every error wraps ErrInvalid.
func (c Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	if c.Model.HashDimPow2 < 4 || c.Model.HashDimPow2 > 24 {
		bad("model.hash_dim_pow2 must be in [4,24], got %d", c.Model.HashDimPow2)
	}
	if c.Model.LearningRate <= 0 {
		bad("model.learning_rate must be positive, got %g", c.Model.LearningRate)
	}
	if c.Model.L2 < 0 {
		bad("model.l2 must be non-negative, got %g", c.Model.L2)
	}
	if c.Markov.Decay <= 0 || c.Markov.Decay > 1 {
		bad("markov.decay must be in (0,1], got %g", c.Markov.Decay)
	}
	if c.Markov.TopM < 1 {
		bad("markov.top_m must be positive, got %d", c.Markov.TopM)
	}
	if c.Markov.CandidateTopN < 1 {
		bad("markov.candidate_top_n must be positive, got %d", c.Markov.CandidateTopN)
	}
	for name, v := range map[string]float32{
		"gating.threshold":      c.Gating.Threshold,
		"policy.rank_threshold": c.Policy.RankThreshold,
		"policy.gap_delta":      c.Policy.GapDelta,
	} {
		if v < 0 || v > 1 {
			bad("%s must be in [0,1], got %g", name, v)
		}
	}
	if c.Policy.PrefetchTopK < 0 {
		bad("policy.prefetch_top_k must be non-negative, got %d", c.Policy.PrefetchTopK)
	}
	if c.Engine.HardNegPerPos < 0 {
		bad("engine.hard_neg_per_pos must be non-negative, got %d", c.Engine.HardNegPerPos)
	}
	if c.Engine.CheckpointEvery < 1 {
		bad("engine.checkpoint_every must be positive, got %d", c.Engine.CheckpointEvery)
	}
	if c.Session.MaxSessions < 1 {
		bad("session.max_sessions must be positive, got %d", c.Session.MaxSessions)
	}
	if c.Persistence.QueueSize < 1 {
		bad("persistence.queue_size must be positive, got %d", c.Persistence.QueueSize)
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		bad("log.level: %v", err)
	}
	if c.TTL.Prefetch <= 0 {
		bad("ttl.prefetch must be positive, got %s", c.TTL.Prefetch)
	}
	return errors.Join(errs...)
}

// #endregion validate

// #region conversions
// ToPredictorConfig converts to the predictor's domain config.
func (c Config) ToPredictorConfig() predictor.Config {
	return predictor.Config{
		Enable:        c.Engine.Enable,
		EnableGating:  c.Gating.Enable,
		EnableRanking: c.Engine.EnableRanking,
		Model: model.Config{
			HashDimPow2:  c.Model.HashDimPow2,
			LearningRate: c.Model.LearningRate,
			L2:           c.Model.L2,
		},
		MarkovTopM:    c.Markov.TopM,
		MarkovDecay:   c.Markov.Decay,
		CandidateTopN: c.Markov.CandidateTopN,
		Policy: policy.Config{
			Enable:          c.Engine.Enable,
			EnableGating:    c.Gating.Enable,
			GatingThreshold: c.Gating.Threshold,
			RankThreshold:   c.Policy.RankThreshold,
			GapDelta:        c.Policy.GapDelta,
			PrefetchTopK:    c.Policy.PrefetchTopK,
		},
		HardNegPerPos:   c.Engine.HardNegPerPos,
		MaxSessions:     c.Session.MaxSessions,
		CheckpointEvery: c.Engine.CheckpointEvery,
	}
}

// ToEvalConfig converts to the checkpoint validator's config.
func (c Config) ToEvalConfig() eval.Config {
	return eval.Config{
		MaxWeightNorm: c.Persistence.MaxWeightNorm,
		MaxAbsBias:    c.Persistence.MaxAbsBias,
	}
}

// #endregion conversions

package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func exampleConfig() Config {
	return Config{
		Enable:          true,
		EnableGating:    true,
		GatingThreshold: 0.4,
		RankThreshold:   0.7,
		GapDelta:        0.1,
		PrefetchTopK:    1,
	}
}

// #region decide-tests
func TestDecide_PrefetchTop1(t *testing.T) {
	p := New(exampleConfig())
	d := p.Decide(0.5, []Scored{{"B", 0.82}, {"C", 0.60}})

	assert.Equal(t, []string{"B"}, d.Prefetch)
	assert.Equal(t, float32(0.82), d.TopScore)
	assert.Equal(t, float32(0.5), d.GatingP)
	assert.Equal(t, ReasonPrefetch, d.Reason)
	assert.True(t, d.ShouldPrefetch())
}

func TestDecide_GatingVeto(t *testing.T) {
	p := New(exampleConfig())
	d := p.Decide(0.3, []Scored{{"B", 0.82}, {"C", 0.60}})

	assert.Empty(t, d.Prefetch)
	assert.Equal(t, float32(0), d.TopScore)
	assert.Equal(t, float32(0.3), d.GatingP)
	assert.Equal(t, ReasonGatingVeto, d.Reason)
}

func TestDecide_GatingDisabledIgnoresPNext(t *testing.T) {
	cfg := exampleConfig()
	cfg.EnableGating = false
	d := New(cfg).Decide(0.01, []Scored{{"B", 0.9}})
	assert.Equal(t, []string{"B"}, d.Prefetch)
	assert.Equal(t, float32(0.01), d.GatingP)
}

func TestDecide_GapSuppression(t *testing.T) {
	p := New(exampleConfig())
	d := p.Decide(0.5, []Scored{{"B", 0.82}, {"C", 0.75}})

	assert.Empty(t, d.Prefetch)
	assert.Equal(t, float32(0.82), d.TopScore)
	assert.Equal(t, ReasonAmbiguous, d.Reason)
}

func TestDecide_BelowRankThreshold(t *testing.T) {
	p := New(exampleConfig())
	d := p.Decide(0.9, []Scored{{"B", 0.65}})
	assert.Empty(t, d.Prefetch)
	assert.Equal(t, float32(0.65), d.TopScore)
	assert.Equal(t, ReasonLowScore, d.Reason)
}

func TestDecide_NoCandidates(t *testing.T) {
	p := New(exampleConfig())
	d := p.Decide(0.9, nil)
	assert.Empty(t, d.Prefetch)
	assert.NotNil(t, d.Prefetch)
	assert.Equal(t, float32(0), d.TopScore)
	assert.Equal(t, ReasonNoCandidates, d.Reason)
}

func TestDecide_Disabled(t *testing.T) {
	cfg := exampleConfig()
	cfg.Enable = false
	d := New(cfg).Decide(0.9, []Scored{{"B", 0.99}})
	assert.Empty(t, d.Prefetch)
	assert.Equal(t, ReasonDisabled, d.Reason)
}

func TestDecide_SingleCandidateSkipsGapCheck(t *testing.T) {
	d := New(exampleConfig()).Decide(0.5, []Scored{{"B", 0.71}})
	assert.Equal(t, []string{"B"}, d.Prefetch)
}

func TestDecide_TopKCappedByCandidates(t *testing.T) {
	cfg := exampleConfig()
	cfg.PrefetchTopK = 3
	d := New(cfg).Decide(0.5, []Scored{{"B", 0.95}, {"C", 0.80}})
	assert.Equal(t, []string{"B", "C"}, d.Prefetch)
}

func TestDecide_ZeroTopK(t *testing.T) {
	cfg := exampleConfig()
	cfg.PrefetchTopK = 0
	d := New(cfg).Decide(0.5, []Scored{{"B", 0.95}})
	assert.Empty(t, d.Prefetch)
	assert.Equal(t, float32(0.95), d.TopScore)
}

// #endregion decide-tests

func TestNoneIsEmpty(t *testing.T) {
	assert.False(t, None.ShouldPrefetch())
}

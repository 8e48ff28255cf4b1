package host

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/nextapp/go-controller/internal/engine"
	"github.com/danielpatrickdp/nextapp/go-controller/internal/features"
	"github.com/danielpatrickdp/nextapp/go-controller/internal/policy"
	"github.com/danielpatrickdp/nextapp/go-controller/internal/predictor"
	"github.com/danielpatrickdp/nextapp/go-controller/internal/ttl"
)

type manualTimer struct {
	f       func()
	stopped bool
}

func (t *manualTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

type manualClock struct{ timers []*manualTimer }

func (c *manualClock) AfterFunc(_ time.Duration, f func()) ttl.Timer {
	t := &manualTimer{f: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *manualClock) expire() {
	for _, t := range c.timers {
		if !t.stopped {
			t.stopped = true
			t.f()
		}
	}
}

var ctx0 = features.Context{TimeBucket: 2, AllowReason: features.UserRecents}

func newHost(t *testing.T, cfg predictor.Config) (*Host, *engine.Engine, *manualClock) {
	t.Helper()
	log, _ := test.NewNullLogger()
	e := engine.New(cfg, engine.Options{Logger: log})
	t.Cleanup(func() { e.Close(context.Background()) })
	clk := &manualClock{}
	h := New(e, 30*time.Second, log, ttl.WithAfterFunc(clk.AfterFunc))
	t.Cleanup(h.Stop)
	return h, e, clk
}

func smallConfig() predictor.Config {
	cfg := predictor.DefaultConfig()
	cfg.Model.HashDimPow2 = 8
	return cfg
}

func TestTransitionCancelsTimersAndTrains(t *testing.T) {
	h, e, clk := newHost(t, smallConfig())

	d := h.AllowedToRun("A", ctx0)
	assert.Equal(t, policy.ReasonNoCandidates, d.Reason)
	assert.Equal(t, 1, h.Pending())

	h.ForegroundChanged("A", "B")
	assert.Equal(t, 0, h.Pending())

	clk.expire()
	e.Inspect(func(p *predictor.Predictor) {
		assert.Greater(t, p.Gating().Bias(), float32(0), "only the positive label was applied")
		assert.Equal(t, []string{"B"}, p.Markov().TopN("A", 3))
	})
}

func TestExpiryLabelsNegatives(t *testing.T) {
	cfg := smallConfig()
	cfg.EnableRanking = false
	h, e, clk := newHost(t, cfg)

	h.ForegroundChanged("A", "B") // seeds Markov without a session
	d := h.AllowedToRun("A", ctx0)
	require.Equal(t, []string{"B"}, d.Prefetch)
	assert.Equal(t, 2, h.Pending())

	clk.expire()
	e.Inspect(func(p *predictor.Predictor) {
		assert.Less(t, p.Gating().Bias(), float32(0))
		assert.Nil(t, p.Sessions().Get("A"))
	})
}

func TestUnusedPrefetchAfterOtherApp(t *testing.T) {
	cfg := smallConfig()
	cfg.EnableRanking = false
	h, _, clk := newHost(t, cfg)

	h.ForegroundChanged("A", "B")
	h.AllowedToRun("A", ctx0)
	h.ForegroundChanged("A", "C")

	// the no-next timer and (A,C) are gone; (A,B) still pending
	assert.Equal(t, 1, h.Pending())
	clk.expire()
	assert.Equal(t, 0, h.Pending())
}

func TestDisabledEngineArmsNothing(t *testing.T) {
	cfg := smallConfig()
	cfg.Enable = false
	h, _, _ := newHost(t, cfg)

	h.AllowedToRun("A", ctx0)
	h.AllowedToRun("", ctx0)
	assert.Equal(t, 0, h.Pending())
}

func TestExternalExpiryDisarmsLocalTimer(t *testing.T) {
	h, e, clk := newHost(t, smallConfig())
	h.AllowedToRun("A", ctx0)

	h.TTLExpiredNoNextApp("A")
	assert.Equal(t, 0, h.Pending())
	var bias float32
	e.Inspect(func(p *predictor.Predictor) { bias = p.Gating().Bias() })

	clk.expire()
	e.Inspect(func(p *predictor.Predictor) {
		assert.Equal(t, bias, p.Gating().Bias(), "label applied once")
	})
}

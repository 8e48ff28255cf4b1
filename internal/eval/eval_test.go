package eval

import (
	"math"
	"strings"
	"testing"

	"github.com/danielpatrickdp/nextapp/go-controller/internal/markov"
	"github.com/danielpatrickdp/nextapp/go-controller/internal/model"
)

func makeCheckpoint() Checkpoint {
	tbl := markov.NewTable(3, 0.9)
	tbl.Update("A", "B")
	tbl.Update("A", "C")
	return Checkpoint{
		Gating:  model.Snapshot{HashDimPow2: 4, Weights: make([]float32, 16)},
		Ranking: model.Snapshot{HashDimPow2: 4, Weights: make([]float32, 16)},
		Markov:  tbl.Export(),
	}
}

func findMetric(t *testing.T, r Result, name string) Metric {
	t.Helper()
	for _, m := range r.Metrics {
		if m.Name == name {
			return m
		}
	}
	t.Fatalf("metric %s not found", name)
	return Metric{}
}

func TestEvalPassesOnColdStart(t *testing.T) {
	h := NewHarness(DefaultConfig())
	result := h.Run(makeCheckpoint())

	if !result.Passed {
		t.Fatalf("expected pass on cold start, got fail: %s", result.Reason)
	}
	if result.Reason != "all checks passed" {
		t.Fatalf("unexpected reason %q", result.Reason)
	}
}

func TestEvalMetricCount(t *testing.T) {
	result := NewHarness(DefaultConfig()).Run(makeCheckpoint())
	// 3 per model + 2 markov
	if len(result.Metrics) != 8 {
		t.Fatalf("expected 8 metrics, got %d", len(result.Metrics))
	}
}

func TestEvalFailsOnWeightNormSpike(t *testing.T) {
	config := DefaultConfig()
	config.MaxWeightNorm = 2.0
	h := NewHarness(config)

	cp := makeCheckpoint()
	for i := range cp.Ranking.Weights {
		cp.Ranking.Weights[i] = 1.0 // L2 norm = 4
	}
	result := h.Run(cp)

	if result.Passed {
		t.Fatal("expected fail on high weight norm")
	}
	m := findMetric(t, result, "ranking_weight_norm")
	if m.Pass || m.Value != 4 {
		t.Fatalf("unexpected metric %+v", m)
	}
	if !findMetric(t, result, "gating_weight_norm").Pass {
		t.Fatal("gating should pass")
	}
}

func TestEvalFailsOnBias(t *testing.T) {
	config := DefaultConfig()
	config.MaxAbsBias = 1.0
	cp := makeCheckpoint()
	cp.Gating.Bias = -3

	result := NewHarness(config).Run(cp)
	if result.Passed {
		t.Fatal("expected fail on |bias|")
	}
	if !strings.Contains(result.Reason, "gating |bias|") {
		t.Fatalf("unexpected reason %q", result.Reason)
	}
}

func TestEvalFailsOnNonFinite(t *testing.T) {
	cp := makeCheckpoint()
	cp.Gating.Weights[3] = float32(math.NaN())
	cp.Ranking.Bias = float32(math.Inf(1))

	result := NewHarness(DefaultConfig()).Run(cp)
	if result.Passed {
		t.Fatal("expected fail on NaN/Inf")
	}
	if findMetric(t, result, "gating_finite").Pass || findMetric(t, result, "ranking_finite").Pass {
		t.Fatal("finite metrics should fail")
	}
	if !strings.HasPrefix(result.Reason, "eval failed: ") {
		t.Fatalf("unexpected reason %q", result.Reason)
	}
}

func TestEvalFailsOnMarkovRowBound(t *testing.T) {
	cp := makeCheckpoint()
	cp.Markov.TopM = 1

	result := NewHarness(DefaultConfig()).Run(cp)
	if result.Passed {
		t.Fatal("expected fail on row > topM")
	}
	if v := findMetric(t, result, "markov_max_row").Value; v != 2 {
		t.Fatalf("expected max row 2, got %v", v)
	}

	config := DefaultConfig()
	config.MaxRowLen = 5
	if !NewHarness(config).Run(cp).Passed {
		t.Fatal("explicit MaxRowLen should override TopM")
	}
}

func TestEvalFailsOnBadMarkovWeight(t *testing.T) {
	cp := makeCheckpoint()
	cp.Markov.Rows[0].Transitions[0].Weight = -1

	result := NewHarness(DefaultConfig()).Run(cp)
	if result.Passed {
		t.Fatal("expected fail on negative weight")
	}
}

func TestWeightNorm(t *testing.T) {
	if n := WeightNorm([]float32{3, 4}); n != 5 {
		t.Fatalf("expected 5, got %v", n)
	}
	if n := WeightNorm(nil); n != 0 {
		t.Fatalf("expected 0, got %v", n)
	}
}

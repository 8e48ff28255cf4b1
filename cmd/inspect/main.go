package main

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/nextapp/go-controller/internal/config"
	"github.com/danielpatrickdp/nextapp/go-controller/internal/eval"
	"github.com/danielpatrickdp/nextapp/go-controller/internal/logging"
	"github.com/danielpatrickdp/nextapp/go-controller/internal/markov"
	"github.com/danielpatrickdp/nextapp/go-controller/internal/state"
)

var (
	configPath string
	dataDir    string
	journal    string
	limit      int
	topWeights int
	topDst     int
	jsonOut    bool
)

// #region main
var rootCmd = &cobra.Command{
	Use:           "inspect",
	Short:         "Print persisted models and journal contents",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "YAML config file (default $"+config.EnvConfig+")")
	pf.StringVar(&dataDir, "data-dir", "", "model directory (overrides persistence.data_dir)")
	pf.StringVar(&journal, "journal", "", "journal database (overrides persistence.journal)")
	pf.IntVar(&limit, "limit", 20, "rows to show")
	pf.BoolVar(&jsonOut, "json", false, "output as JSON instead of table")

	modelsCmd.Flags().IntVar(&topWeights, "top", 10, "largest weights to show per model")
	markovCmd.Flags().IntVar(&topDst, "top", 5, "transitions to show per row")
	rootCmd.AddCommand(modelsCmd, markovCmd, checkpointsCmd, eventsCmd)

	if err := rootCmd.Execute(); err != nil {
		logrus.Errorf("error: %v", err)
		os.Exit(1)
	}
}

func loadConfig() (config.Config, error) {
	config.LoadDotEnv()
	cfg, err := config.FromEnv(configPath)
	if err != nil {
		return config.Config{}, err
	}
	if dataDir != "" {
		cfg.Persistence.DataDir = dataDir
	}
	if journal != "" {
		cfg.Persistence.Journal = journal
	}
	return cfg, nil
}

// #endregion main

// #region models

type weightRow struct {
	Index  int     `json:"index"`
	Weight float32 `json:"weight"`
}

type modelRow struct {
	Name    string      `json:"name"`
	Path    string      `json:"path"`
	Present bool        `json:"present"`
	Dim     int         `json:"dim,omitempty"`
	Bias    float32     `json:"bias"`
	Norm    float32     `json:"norm"`
	NonZero int         `json:"non_zero"`
	Top     []weightRow `json:"top,omitempty"`
}

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Show gating and ranking model summaries",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		pow2 := cfg.Model.HashDimPow2
		dir := cfg.Persistence.DataDir
		rows := []modelRow{
			summarizeModel("gating", state.NewModelStore(filepath.Join(dir, state.GatingFile), pow2)),
			summarizeModel("ranking", state.NewModelStore(filepath.Join(dir, state.RankFile), pow2)),
		}
		if jsonOut {
			return printJSON(rows)
		}
		for _, r := range rows {
			if !r.Present {
				fmt.Printf("%-8s  %s  (missing or unreadable)\n", r.Name, r.Path)
				continue
			}
			fmt.Printf("%-8s  %s\n", r.Name, r.Path)
			fmt.Printf("  dim=%d  bias=%.6f  norm=%.6f  non_zero=%d\n", r.Dim, r.Bias, r.Norm, r.NonZero)
			for _, w := range r.Top {
				fmt.Printf("  [%6d] %+.6f\n", w.Index, w.Weight)
			}
		}
		return nil
	},
}

func summarizeModel(name string, store *state.ModelStore) modelRow {
	r := modelRow{Name: name, Path: store.Path()}
	snap := store.Read()
	if snap == nil {
		return r
	}
	r.Present = true
	r.Dim = len(snap.Weights)
	r.Bias = snap.Bias
	r.Norm = eval.WeightNorm(snap.Weights)

	for i, w := range snap.Weights {
		if w != 0 {
			r.NonZero++
			r.Top = append(r.Top, weightRow{Index: i, Weight: w})
		}
	}
	sort.Slice(r.Top, func(i, j int) bool {
		return math.Abs(float64(r.Top[i].Weight)) > math.Abs(float64(r.Top[j].Weight))
	})
	if len(r.Top) > topWeights {
		r.Top = r.Top[:topWeights]
	}
	return r
}

// #endregion models

// #region markov

type markovRow struct {
	Src         string              `json:"src"`
	Total       float64             `json:"total"`
	Transitions []markov.Transition `json:"transitions"`
}

var markovCmd = &cobra.Command{
	Use:   "markov",
	Short: "Show the heaviest Markov rows",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store := state.NewMarkovStore(filepath.Join(cfg.Persistence.DataDir, state.MarkovFile))
		snap := store.Read()
		if snap == nil {
			return fmt.Errorf("no readable markov table at %s", store.Path())
		}

		rows := make([]markovRow, 0, len(snap.Rows))
		for _, r := range snap.Rows {
			mr := markovRow{Src: r.Src, Transitions: r.Transitions}
			for _, t := range r.Transitions {
				mr.Total += t.Weight
			}
			if len(mr.Transitions) > topDst {
				mr.Transitions = mr.Transitions[:topDst]
			}
			rows = append(rows, mr)
		}
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].Total > rows[j].Total })
		if len(rows) > limit {
			rows = rows[:limit]
		}

		if jsonOut {
			return printJSON(map[string]any{
				"top_m": snap.TopM, "decay": snap.Decay, "row_count": len(snap.Rows), "rows": rows,
			})
		}
		fmt.Printf("top_m=%d  decay=%g  rows=%d\n\n", snap.TopM, snap.Decay, len(snap.Rows))
		for _, r := range rows {
			fmt.Printf("%-32s  total=%.3f\n", r.Src, r.Total)
			for _, t := range r.Transitions {
				fmt.Printf("    -> %-32s %.3f\n", t.Dst, t.Weight)
			}
		}
		return nil
	},
}

// #endregion markov

// #region journal

func openJournal() (*logging.Journal, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if cfg.Persistence.Journal == "" {
		return nil, fmt.Errorf("journal disabled in config")
	}
	if _, err := os.Stat(cfg.Persistence.Journal); err != nil {
		return nil, fmt.Errorf("journal %s: %w", cfg.Persistence.Journal, err)
	}
	return logging.Open(cfg.Persistence.Journal)
}

var checkpointsCmd = &cobra.Command{
	Use:   "checkpoints",
	Short: "List recent checkpoints, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		j, err := openJournal()
		if err != nil {
			return err
		}
		defer j.Close()

		recs, err := j.ListCheckpoints(limit)
		if err != nil {
			return err
		}
		if jsonOut {
			return printJSON(recs)
		}
		if len(recs) == 0 {
			fmt.Fprintln(os.Stderr, "no checkpoints found")
			return nil
		}
		fmt.Printf("%-12s  %-12s  %-9s  %10s  %10s  %6s  %s\n",
			"Checkpoint", "Parent", "Outcome", "Gate Norm", "Rank Norm", "Rows", "Time")
		for _, r := range recs {
			fmt.Printf("%-12s  %-12s  %-9s  %10.4f  %10.4f  %6d  %s\n",
				shortID(r.CheckpointID), shortID(r.ParentID), r.Outcome,
				r.Gating.Norm, r.Ranking.Norm, r.MarkovRows, r.CreatedAt.Format("2006-01-02T15:04:05Z"))
			if r.Outcome != logging.OutcomePublished {
				fmt.Printf("    reason: %s\n", r.Reason)
			}
		}
		return nil
	},
}

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "List recent hook events, oldest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		j, err := openJournal()
		if err != nil {
			return err
		}
		defer j.Close()

		evs, err := j.ListEvents(limit)
		if err != nil {
			return err
		}
		if jsonOut {
			return printJSON(evs)
		}
		total, err := j.CountEvents()
		if err != nil {
			return err
		}
		fmt.Printf("%d of %d events\n", len(evs), total)
		for _, ev := range evs {
			line := fmt.Sprintf("%s  %-30s  %s", ev.CreatedAt.Format("15:04:05"), ev.Kind, ev.AppA)
			if ev.AppB != "" {
				line += " -> " + ev.AppB
			}
			if ev.DecisionJSON != "" {
				line += "  " + ev.DecisionJSON
			}
			if ev.Trained {
				line += "  [trained]"
			}
			fmt.Println(line)
		}
		return nil
	},
}

// #endregion journal

// #region helpers

func shortID(id string) string {
	if id == "" {
		return "-"
	}
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// #endregion helpers

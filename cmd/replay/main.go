package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/nextapp/go-controller/internal/config"
	"github.com/danielpatrickdp/nextapp/go-controller/internal/logging"
	"github.com/danielpatrickdp/nextapp/go-controller/internal/policy"
	"github.com/danielpatrickdp/nextapp/go-controller/internal/replay"
)

var (
	fixturePath string // fixture mode
	journalPath string // journal mode
	configPath  string // predictor config for journal mode
	last        int
	verbose     bool
)

// #region main
var rootCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay a fixture or a journal and report drift",
	Long: "Replays recorded hook events through a fresh in-memory predictor.\n" +
		"Journal mode starts from empty models, so it matches a journal recorded from a cold start.\n" +
		"Exit code 1 means at least one event produced a different action, 2 means the input could not be read.",
	SilenceUsage:  true,
	SilenceErrors: true,
	Run: func(cmd *cobra.Command, args []string) {
		if (fixturePath == "") == (journalPath == "") {
			fmt.Fprintln(os.Stderr, "usage: replay --fixture path/to/fixture.json")
			fmt.Fprintln(os.Stderr, "       replay --journal path/to/journal.db [--config nextapp.yaml] [--last N]")
			os.Exit(2)
		}
		f, err := loadInput()
		if err != nil {
			logrus.Errorf("error: %v", err)
			os.Exit(2)
		}
		os.Exit(report(f))
	},
}

func main() {
	rootCmd.Flags().StringVar(&fixturePath, "fixture", "", "fixture JSON to replay")
	rootCmd.Flags().StringVar(&journalPath, "journal", "", "journal database to replay")
	rootCmd.Flags().StringVar(&configPath, "config", "", "YAML config used for journal mode (default $"+config.EnvConfig+")")
	rootCmd.Flags().IntVar(&last, "last", 1000, "journal mode: most recent events to replay")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print every event, not only mismatches")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(2)
	}
}

// #endregion main

// #region input
func loadInput() (*replay.Fixture, error) {
	if fixturePath != "" {
		return replay.LoadFixture(fixturePath)
	}

	cfg, err := config.FromEnv(configPath)
	if err != nil {
		return nil, err
	}
	j, err := logging.Open(journalPath)
	if err != nil {
		return nil, err
	}
	defer j.Close()

	rows, err := j.ListEvents(last)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("no hook events in %s", journalPath)
	}
	events, expected, err := replay.FromJournal(rows)
	if err != nil {
		return nil, err
	}
	return &replay.Fixture{
		Description:     "journal " + journalPath,
		Config:          replay.FromPredictorConfig(cfg.ToPredictorConfig()),
		Events:          events,
		ExpectedResults: expected,
	}, nil
}

// #endregion input

// #region report
func report(f *replay.Fixture) int {
	mismatches, results, sum := f.Check()

	if verbose {
		for _, r := range results {
			fmt.Printf("%4d  %-30s %-24s %s\n", r.Index, r.Kind, r.App, r.Action)
		}
		fmt.Println()
	}
	for _, m := range mismatches {
		fmt.Printf("DRIFT %4d  %-30s %-24s expected=%s actual=%s\n", m.Index, m.Kind, m.App, m.Expected, m.Actual)
	}

	fmt.Printf("events=%d decisions=%d prefetches=%d hits=%d misses=%d trained=%d checkpoints=%d\n",
		sum.Events, sum.Decisions, sum.Prefetches, sum.Hits, sum.Misses, sum.TrainingEvents, sum.Checkpoints)
	if sum.Hits+sum.Misses > 0 {
		fmt.Printf("hit_rate=%.3f\n", float64(sum.Hits)/float64(sum.Hits+sum.Misses))
	}
	reasons := make([]string, 0, len(sum.NoneByReason))
	for r := range sum.NoneByReason {
		reasons = append(reasons, string(r))
	}
	sort.Strings(reasons)
	for _, r := range reasons {
		fmt.Printf("  none[%s]=%d\n", r, sum.NoneByReason[policy.Reason(r)])
	}

	if len(mismatches) > 0 {
		fmt.Printf("%d of %d events drifted\n", len(mismatches), len(results))
		return 1
	}
	fmt.Println("no drift")
	return 0
}

// #endregion report

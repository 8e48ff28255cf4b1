package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/nextapp/go-controller/internal/config"
	"github.com/danielpatrickdp/nextapp/go-controller/internal/logging"
	"github.com/danielpatrickdp/nextapp/go-controller/internal/replay"
)

var (
	journalPath string
	outPath     string
	configPath  string
	last        int
	description string
)

// #region main
var rootCmd = &cobra.Command{
	Use:           "fixture-export",
	Short:         "Export recent journal hook events as a replay fixture",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if journalPath == "" || outPath == "" {
			return fmt.Errorf("usage: fixture-export --journal path/to/journal.db --out path/to/fixture.json [--last N]")
		}
		return run()
	},
}

func main() {
	rootCmd.Flags().StringVar(&journalPath, "journal", "", "journal database")
	rootCmd.Flags().StringVar(&outPath, "out", "", "output fixture JSON path")
	rootCmd.Flags().StringVar(&configPath, "config", "", "YAML config whose predictor settings go into the fixture (default $"+config.EnvConfig+")")
	rootCmd.Flags().IntVar(&last, "last", 50, "number of most recent hook events to export")
	rootCmd.Flags().StringVar(&description, "description", "", "fixture description")

	if err := rootCmd.Execute(); err != nil {
		logrus.Errorf("error: %v", err)
		os.Exit(1)
	}
}

// #endregion main

// #region export
func run() error {
	cfg, err := config.FromEnv(configPath)
	if err != nil {
		return err
	}
	j, err := logging.Open(journalPath)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer j.Close()

	rows, err := j.ListEvents(last)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("no hook events in %s", journalPath)
	}
	events, expected, err := replay.FromJournal(rows)
	if err != nil {
		return err
	}

	desc := description
	if desc == "" {
		desc = fmt.Sprintf("exported from %s: %d events %s .. %s", journalPath, len(rows),
			rows[0].CreatedAt.Format("2006-01-02T15:04:05Z"), rows[len(rows)-1].CreatedAt.Format("2006-01-02T15:04:05Z"))
	}
	f := replay.Fixture{
		Description:     desc,
		Config:          replay.FromPredictorConfig(cfg.ToPredictorConfig()),
		Events:          events,
		ExpectedResults: expected,
	}

	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal fixture: %w", err)
	}
	if err := os.WriteFile(outPath, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write fixture: %w", err)
	}
	logrus.WithFields(logrus.Fields{"out": outPath, "events": len(events)}).Info("fixture written")
	return nil
}

// #endregion export

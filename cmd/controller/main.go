package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	"github.com/danielpatrickdp/nextapp/go-controller/internal/config"
	"github.com/danielpatrickdp/nextapp/go-controller/internal/engine"
	"github.com/danielpatrickdp/nextapp/go-controller/internal/host"
	"github.com/danielpatrickdp/nextapp/go-controller/internal/logging"
	"github.com/danielpatrickdp/nextapp/go-controller/internal/rpc"
	"github.com/danielpatrickdp/nextapp/go-controller/internal/state"
)

var (
	configPath string // YAML config file
	envFile    string // dotenv file loaded before the config
	addr       string // overrides server.addr
	logLevel   string // overrides log.level
)

const shutdownTimeout = 10 * time.Second

// #region main
var rootCmd = &cobra.Command{
	Use:   "controller",
	Short: "Next-app prefetch engine daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		config.LoadDotEnv(envFile)
		cfg, err := config.FromEnv(configPath)
		if err != nil {
			return err
		}
		if addr != "" {
			cfg.Server.Addr = addr
		}
		if logLevel != "" {
			cfg.Log.Level = logLevel
		}
		level, err := logrus.ParseLevel(cfg.Log.Level)
		if err != nil {
			return fmt.Errorf("log level: %w", err)
		}
		logrus.SetLevel(level)
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg, logrus.StandardLogger())
	},
}

func main() {
	rootCmd.Flags().StringVar(&configPath, "config", "", "YAML config file (default $"+config.EnvConfig+")")
	rootCmd.Flags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the config")
	rootCmd.Flags().StringVar(&addr, "addr", "", "gRPC listen address (overrides server.addr)")
	rootCmd.Flags().StringVar(&logLevel, "log", "", "Log level (trace, debug, info, warn, error)")
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// #endregion main

// #region serve
func serve(ctx context.Context, cfg config.Config, log *logrus.Logger) error {
	files, err := state.NewFiles(cfg.Persistence.DataDir)
	if err != nil {
		return err
	}

	var journal *logging.Journal
	if cfg.Persistence.Journal != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Persistence.Journal), 0o700); err != nil {
			return fmt.Errorf("create journal dir: %w", err)
		}
		journal, err = logging.Open(cfg.Persistence.Journal)
		if err != nil {
			return err
		}
		defer journal.Close()
	}

	evalCfg := cfg.ToEvalConfig()
	eng := engine.New(cfg.ToPredictorConfig(), engine.Options{
		Files:     &files,
		Journal:   journal,
		Eval:      &evalCfg,
		Logger:    log,
		QueueSize: cfg.Persistence.QueueSize,
	})
	eng.LoadModels()

	h := host.New(eng, cfg.TTL.Prefetch, log)
	srv := rpc.NewServer(h, eng, log)
	g := srv.NewGRPCServer()

	lis, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		h.Stop()
		eng.Close(context.Background())
		return fmt.Errorf("listen %s: %w", cfg.Server.Addr, err)
	}

	serveErr := make(chan error, 1)
	go func() { serveErr <- g.Serve(lis) }()
	log.WithFields(logrus.Fields{
		"addr":     lis.Addr().String(),
		"data_dir": files.Dir,
		"journal":  cfg.Persistence.Journal,
	}).Info("controller ready")

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err = <-serveErr:
		if err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			log.WithError(err).Error("grpc server stopped")
		}
	}

	srv.Shutdown()
	g.GracefulStop()
	h.Stop()

	closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if cerr := eng.Close(closeCtx); cerr != nil {
		log.WithError(cerr).Warn("final checkpoint")
	}
	st := eng.Stats()
	log.WithFields(logrus.Fields{
		"checkpoints":        st.Checkpoints,
		"rejected_snapshots": st.RejectedSnapshots,
		"dropped_events":     st.DroppedEvents,
	}).Info("controller stopped")
	return err
}

// #endregion serve

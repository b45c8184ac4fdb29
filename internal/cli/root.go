package cli

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/vietddude/blockledger/internal/control"
	"github.com/vietddude/blockledger/internal/core/config"
	"github.com/vietddude/stylelog"
)

var (
	cfgPath string
	isDebug bool
)

var rootCmd = &cobra.Command{
	Use:   "blockledger",
	Short: "Block ledger indexer",
	Long: `blockledger follows a Tendermint chain node and appends every block
height and hash, in order and without gaps, to a durable ledger.`,
	Run: runIndexer,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "config file (default is config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&isDebug, "debug", false, "enable debug logging")
}

func runIndexer(cmd *cobra.Command, args []string) {
	_ = godotenv.Load()

	// Load Configuration
	cfg, err := config.Load(cfgPath)
	if err != nil {
		stylelog.InitDefault()
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.Logging, isDebug)

	app, err := control.NewApp(*cfg)
	if err != nil {
		slog.Error("Failed to initialize indexer", "error", err)
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		for sig := range sigChan {
			slog.Info("Received signal, shutting down...", "signal", sig.String())
			app.Stop()
		}
	}()

	if code := exitCode(app.Run(context.Background())); code != 0 {
		os.Exit(code)
	}
}

// exitCode maps the result of App.Run to the process exit status. Losing the
// instance lock race to another instance is a clean exit.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, control.ErrAlreadyRunning):
		return 0
	default:
		slog.Error("Indexer stopped with error", "error", err)
		return 1
	}
}

// loadMaintenanceConfig loads configuration for commands that do not need
// the chain node.
func loadMaintenanceConfig() *config.AppConfig {
	_ = godotenv.Load()

	cfg, err := config.Read(cfgPath)
	if err != nil {
		stylelog.InitDefault()
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	setupLogger(cfg.Logging, isDebug)
	return cfg
}

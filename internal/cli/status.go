package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/vietddude/blockledger/internal/core/config"
	"github.com/vietddude/blockledger/internal/infra/ledger"
	"github.com/vietddude/blockledger/internal/infra/lock"
	redisclient "github.com/vietddude/blockledger/internal/infra/redis"
	"github.com/vietddude/blockledger/internal/infra/storage/postgres"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the ledger tail height and the instance lock state",
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	cfg := loadMaintenanceConfig()
	ctx := context.Background()

	tail, err := readLedgerTail(ctx, cfg)
	if err != nil {
		slog.Error("Failed to read ledger tail", "error", err)
		os.Exit(1)
	}

	lockState, err := describeLock(ctx, cfg)
	if err != nil {
		slog.Error("Failed to inspect instance lock", "error", err)
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "STORAGE\tDRIVER\tTAIL\tNEXT\tLOCK")
	_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n", cfg.Storage.Path, cfg.Storage.Driver, tail, tail+1, lockState)
	_ = w.Flush()
}

func readLedgerTail(ctx context.Context, cfg *config.AppConfig) (uint64, error) {
	if cfg.Storage.Driver != config.DriverPostgres {
		return ledger.ReadTail(filepath.Join(cfg.Storage.Path, ledger.FileName))
	}

	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		return 0, err
	}
	l := ledger.NewPostgresLedger(db)
	defer func() {
		_ = l.Close()
	}()
	return l.Tail(ctx)
}

func describeLock(ctx context.Context, cfg *config.AppConfig) (string, error) {
	if cfg.Lock.Driver != config.DriverRedis {
		held, err := lock.NewFileLock(cfg.Storage.Path).Held(ctx)
		if err != nil {
			return "", err
		}
		if held {
			return lock.MarkerProcessing, nil
		}
		return "free", nil
	}

	client, err := redisclient.NewClient(cfg.Redis)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = client.Close()
	}()

	holder, err := client.LockHolder(ctx, redisclient.LockKey(cfg.Storage.Path))
	if err != nil {
		return "", err
	}
	if holder == "" {
		return "free", nil
	}
	return holder, nil
}

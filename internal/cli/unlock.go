package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/vietddude/blockledger/internal/core/config"
	"github.com/vietddude/blockledger/internal/infra/lock"
	redisclient "github.com/vietddude/blockledger/internal/infra/redis"
)

var unlockCmd = &cobra.Command{
	Use:   "unlock",
	Short: "Remove a stale instance lock left behind by a crashed indexer",
	Long: `unlock clears the instance lock marker for the configured storage path.
Only run it when no indexer is running against that storage: a crashed
process cannot release its own lock, and a new one refuses to start while
the marker says "processing".`,
	Run: runUnlock,
}

func init() {
	rootCmd.AddCommand(unlockCmd)
}

func runUnlock(cmd *cobra.Command, args []string) {
	cfg := loadMaintenanceConfig()
	ctx := context.Background()

	var err error
	switch cfg.Lock.Driver {
	case config.DriverRedis:
		err = forceReleaseRedis(ctx, cfg)
	default:
		err = lock.NewFileLock(cfg.Storage.Path).Release(ctx)
	}
	if err != nil {
		slog.Error("Failed to remove instance lock", "error", err)
		os.Exit(1)
	}

	fmt.Printf("Successfully removed instance lock for %s\n", cfg.Storage.Path)
}

func forceReleaseRedis(ctx context.Context, cfg *config.AppConfig) error {
	client, err := redisclient.NewClient(cfg.Redis)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	return client.ForceRelease(ctx, redisclient.LockKey(cfg.Storage.Path))
}

package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/vietddude/blockledger/internal/core/config"
	"github.com/vietddude/blockledger/internal/infra/ledger"
)

var verifyCmd = &cobra.Command{
	Use:   "verify [ledger_file]",
	Short: "Check that a CSV ledger is ordered and gap free",
	Args:  cobra.MaximumNArgs(1),
	Run:   runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) {
	cfg := loadMaintenanceConfig()

	path := filepath.Join(cfg.Storage.Path, ledger.FileName)
	if len(args) == 1 {
		path = args[0]
	} else if cfg.Storage.Driver == config.DriverPostgres {
		fmt.Println("verify reads CSV ledgers; the postgres ledger enforces order with its primary key")
		return
	}

	report, err := ledger.VerifyFile(path)
	if err != nil {
		slog.Error("Ledger verification failed",
			"path", path,
			"valid_records", report.Records,
			"error", err,
		)
		os.Exit(1)
	}

	fmt.Printf("%s: %d records, heights %d..%d, last hash %s\n",
		path, report.Records, report.First, report.Tail, report.LastHash)
}

package ledger

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vietddude/blockledger/internal/core/domain"
	"github.com/vietddude/blockledger/internal/infra/storage/postgres"
)

// PostgresLedger stores records in the ledger_blocks table. The primary key
// on height rejects duplicates at the database level as well.
type PostgresLedger struct {
	db      *postgres.DB
	migrate bool
}

// NewPostgresLedger creates a ledger that applies migrations on Initialize.
func NewPostgresLedger(db *postgres.DB) *PostgresLedger {
	return &PostgresLedger{db: db, migrate: true}
}

// Initialize implements Ledger.
func (l *PostgresLedger) Initialize(ctx context.Context) (uint64, error) {
	if l.migrate {
		if err := l.db.Migrate(ctx); err != nil {
			return 0, err
		}
	}

	height, err := l.Tail(ctx)
	if err != nil {
		slog.Error("Error reading ledger tail, starting from genesis",
			"event", "error",
			"error", err,
		)
		return domain.GenesisSentinel, nil
	}

	slog.Info("Opened postgres ledger", "event", "init", "last_height", height)
	return height, nil
}

// Append implements Ledger.
func (l *PostgresLedger) Append(ctx context.Context, block domain.Block) error {
	if err := block.Validate(); err != nil {
		return err
	}

	tx, err := l.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO ledger_blocks (height, hash) VALUES ($1, $2)`,
		int64(block.Height), block.Hash,
	); err != nil {
		return fmt.Errorf("failed to append block %d: %w", block.Height, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit block %d: %w", block.Height, err)
	}
	return nil
}

// Tail implements Ledger.
func (l *PostgresLedger) Tail(ctx context.Context) (uint64, error) {
	var height int64
	if err := l.db.GetContext(ctx, &height,
		`SELECT COALESCE(MAX(height), 0) FROM ledger_blocks`,
	); err != nil {
		return 0, fmt.Errorf("failed to read ledger tail: %w", err)
	}
	if height < 0 {
		return 0, fmt.Errorf("%w: negative height %d", ErrMalformedTail, height)
	}
	return uint64(height), nil
}

// Close implements Ledger.
func (l *PostgresLedger) Close() error {
	return l.db.Close()
}

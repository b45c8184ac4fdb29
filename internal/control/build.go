package control

import (
	"context"
	"fmt"

	"github.com/vietddude/blockledger/internal/core/config"
	"github.com/vietddude/blockledger/internal/infra/chain/tendermint"
	"github.com/vietddude/blockledger/internal/infra/ledger"
	"github.com/vietddude/blockledger/internal/infra/lock"
	redisclient "github.com/vietddude/blockledger/internal/infra/redis"
	"github.com/vietddude/blockledger/internal/infra/storage/postgres"
)

// NewApp creates an App with the backends selected in cfg.
func NewApp(cfg config.AppConfig) (*App, error) {
	node, err := tendermint.NewClient(cfg.Node.URL, tendermint.Options{
		Timeout:           cfg.Node.Timeout,
		RequestsPerSecond: cfg.Node.RequestsPerSecond,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create node client: %w", err)
	}

	comp := Components{
		Node:    node,
		Closers: []func() error{node.Close},
	}

	switch cfg.Lock.Driver {
	case config.DriverRedis:
		client, err := redisclient.NewClient(cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("failed to init redis: %w", err)
		}
		rl := lock.NewRedisLock(client, redisclient.LockKey(cfg.Storage.Path), cfg.Lock.TTL)
		comp.Lock = rl
		comp.Keepalive = rl.Keepalive
		comp.Closers = append(comp.Closers, client.Close)
	default:
		comp.Lock = lock.NewFileLock(cfg.Storage.Path)
	}

	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		db, err := postgres.NewDB(context.Background(), cfg.Database)
		if err != nil {
			closeAll(comp.Closers)
			return nil, fmt.Errorf("failed to init db: %w", err)
		}
		comp.Ledger = ledger.NewPostgresLedger(db)
		comp.Workers = append(comp.Workers, db.RunMetricsCollector)
	default:
		comp.Ledger = ledger.NewFileLedger(cfg.Storage.Path)
	}

	return NewAppWith(cfg, comp), nil
}

func closeAll(fns []func() error) {
	for _, fn := range fns {
		_ = fn()
	}
}

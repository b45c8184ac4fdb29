// Package control runs the indexer process: instance lock, ledger, catch-up
// loop and the auxiliary health server, in that order.
package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vietddude/blockledger/internal/core/config"
	"github.com/vietddude/blockledger/internal/core/cursor"
	"github.com/vietddude/blockledger/internal/core/domain"
	"github.com/vietddude/blockledger/internal/indexing/health"
	"github.com/vietddude/blockledger/internal/indexing/indexer"
	"github.com/vietddude/blockledger/internal/indexing/metrics"
	"github.com/vietddude/blockledger/internal/infra/chain"
	"github.com/vietddude/blockledger/internal/infra/ledger"
	"github.com/vietddude/blockledger/internal/infra/lock"
)

// ErrAlreadyRunning is returned by Run when another instance holds the lock.
// It is a normal outcome, not a failure.
var ErrAlreadyRunning = errors.New("another instance is already processing")

const (
	releaseTimeout = 5 * time.Second
	statusHeadTTL  = 5 * time.Second
)

// Components are the backends an App drives.
type Components struct {
	Lock   lock.Locker
	Ledger ledger.Ledger
	Node   chain.Node

	// Keepalive, if set, runs for as long as the loop does and must return
	// lock.ErrLockLost if the lock is taken away.
	Keepalive func(ctx context.Context) error

	// Workers run alongside the loop until it exits. Their errors are logged.
	Workers []func(ctx context.Context) error

	// Closers are closed after the run finishes.
	Closers []func() error
}

// App is the main application struct that manages the indexer lifecycle.
type App struct {
	cfg  config.AppConfig
	comp Components
	log  *slog.Logger

	mu      sync.Mutex
	state   *indexer.RunState
	stopped bool
}

// NewAppWith creates an App around already constructed components.
func NewAppWith(cfg config.AppConfig, comp Components) *App {
	return &App{
		cfg:  cfg,
		comp: comp,
		log:  slog.Default(),
	}
}

// Run acquires the instance lock, resumes the ledger and catches up with the
// chain until Stop is called or ctx is cancelled. It returns
// ErrAlreadyRunning without touching the ledger if the lock is held.
func (a *App) Run(ctx context.Context) error {
	defer a.close()

	a.log.Info("Block indexer starting",
		"event", "startup",
		"storage_path", a.cfg.Storage.Path,
		"storage_driver", a.cfg.Storage.Driver,
		"lock_driver", a.cfg.Lock.Driver,
		"node", a.cfg.Node.URL,
	)

	ok, err := a.comp.Lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire instance lock: %w", err)
	}
	if !ok {
		a.log.Warn("Another instance is already processing, exiting",
			"event", "lock_contention",
			"storage_path", a.cfg.Storage.Path,
		)
		return ErrAlreadyRunning
	}
	metrics.InstanceLockHeld.Set(1)

	c, err := a.initialize(ctx)
	if err != nil {
		a.release()
		return err
	}

	state := indexer.NewRunState(ctx, c)
	a.mu.Lock()
	a.state = state
	if a.stopped {
		state.Stop()
	}
	a.mu.Unlock()

	runErr := a.run(state)

	_ = c.SetState(domain.CursorStateStopping, "shutdown")
	a.release()
	a.log.Info("Block indexer stopped",
		"event", "shutdown_complete",
		"final_height", c.Height(),
	)
	return runErr
}

// Stop requests a graceful shutdown. It only flips the run state, so it is
// safe to call from a signal handler goroutine and more than once.
func (a *App) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.stopped = true
	if a.state == nil {
		return
	}
	if a.state.Stop() {
		a.log.Info("Shutdown requested, finishing current block",
			"event", "shutdown_initiated",
			"height", a.state.Cursor.Height(),
		)
	}
}

func (a *App) initialize(ctx context.Context) (*cursor.Cursor, error) {
	tail, err := a.comp.Ledger.Initialize(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ledger: %w", err)
	}
	metrics.LedgerTailBlock.Set(float64(tail))

	c := cursor.New(tail)
	c.SetStateChangeCallback(func(t cursor.Transition) {
		a.log.Debug("Cursor state changed", "from", t.From, "to", t.To, "reason", t.Reason)
	})
	a.log.Info("Resuming from ledger tail", "event", "init", "last_height", tail, "next_height", c.Next())
	return c, nil
}

// run blocks until the loop exits. The auxiliary goroutines stop with it
// because they share the run state's context.
func (a *App) run(state *indexer.RunState) error {
	g, gctx := errgroup.WithContext(state.Context())

	if a.cfg.Server.Port > 0 {
		monitor := health.NewMonitor(state.Cursor, chain.NewHeadCache(a.comp.Node, statusHeadTTL), nodeReporter(a.comp.Node), inspector(a.comp.Lock))
		srv := health.NewServer(monitor, a.cfg.Server.Port)
		g.Go(func() error {
			a.log.Info("Health server listening", "port", a.cfg.Server.Port)
			if err := srv.Run(gctx); err != nil {
				a.log.Error("Health server failed", "error", err)
			}
			return nil
		})
	}

	if a.comp.Keepalive != nil {
		g.Go(func() error {
			err := a.comp.Keepalive(gctx)
			if errors.Is(err, lock.ErrLockLost) {
				a.log.Error("Instance lock lost, stopping", "event", "error", "error", err)
				state.Stop()
				return err
			}
			return nil
		})
	}

	for _, worker := range a.comp.Workers {
		worker := worker
		g.Go(func() error {
			if err := worker(gctx); err != nil {
				a.log.Warn("Background worker stopped", "error", err)
			}
			return nil
		})
	}

	loop := indexer.NewLoop(indexer.Config{
		Node:         a.comp.Node,
		Ledger:       a.comp.Ledger,
		Interval:     a.cfg.Poll.Interval,
		ErrorBackoff: a.cfg.Poll.ErrorBackoff,
		Logger:       a.log,
	})
	g.Go(func() error {
		loop.Run(state)
		return nil
	})

	return g.Wait()
}

func (a *App) release() {
	ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
	defer cancel()

	if err := a.comp.Lock.Release(ctx); err != nil {
		a.log.Error("Failed to release instance lock", "event", "error", "error", err)
		return
	}
	metrics.InstanceLockHeld.Set(0)
}

func (a *App) close() {
	if a.comp.Ledger != nil {
		if err := a.comp.Ledger.Close(); err != nil {
			a.log.Warn("Failed to close ledger", "error", err)
		}
	}
	for _, fn := range a.comp.Closers {
		if err := fn(); err != nil {
			a.log.Warn("Failed to close resource", "error", err)
		}
	}
}

func nodeReporter(n chain.Node) health.NodeReporter {
	if r, ok := n.(health.NodeReporter); ok {
		return r
	}
	return nil
}

func inspector(l lock.Locker) health.LockInspector {
	if i, ok := l.(lock.Inspector); ok {
		return i
	}
	return nil
}

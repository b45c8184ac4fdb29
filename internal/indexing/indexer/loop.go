package indexer

import (
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/vietddude/blockledger/internal/indexing/metrics"
)

// Loop drives the engine until the run state is stopped.
type Loop struct {
	engine       *Engine
	interval     time.Duration
	errorBackoff time.Duration
	log          *slog.Logger
}

// NewLoop creates a poll loop from cfg, filling in default pauses.
func NewLoop(cfg Config) *Loop {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = DefaultErrorBackoff
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Loop{
		engine:       NewEngine(cfg.Node, cfg.Ledger, cfg.Logger),
		interval:     cfg.Interval,
		errorBackoff: cfg.ErrorBackoff,
		log:          cfg.Logger,
	}
}

// Engine returns the loop's catch-up engine.
func (l *Loop) Engine() *Engine {
	return l.engine
}

// Run ticks until state is stopped. Routine fetch and append failures are
// retried after the normal interval; anything else, including a panic inside
// a tick, waits for the error backoff first. Run never returns an error: the
// loop only ends on shutdown.
func (l *Loop) Run(state *RunState) {
	for state.Running() {
		_, err := l.safeTick(state)

		delay := l.interval
		if err != nil && !Expected(err) {
			l.log.Error("Error in main loop", "event", "error", "error", err)
			delay = l.errorBackoff
		}

		if !state.Running() {
			return
		}
		timer := time.NewTimer(delay)
		select {
		case <-state.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (l *Loop) safeTick(state *RunState) (res TickResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			metrics.TicksTotal.WithLabelValues(metrics.TickUnexpected).Inc()
			l.log.Error("Panic in catch-up tick", "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("%w: panic: %v", ErrUnexpected, r)
		}
	}()
	return l.engine.Tick(state)
}

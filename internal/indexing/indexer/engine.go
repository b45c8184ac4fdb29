package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vietddude/blockledger/internal/core/domain"
	"github.com/vietddude/blockledger/internal/indexing/metrics"
	"github.com/vietddude/blockledger/internal/infra/chain"
	"github.com/vietddude/blockledger/internal/infra/ledger"
)

// Engine is the catch-up engine: it brings the ledger from the cursor up to
// the chain head, one block at a time.
//
// Any failure at height h ends the tick with the ledger tail at h-1. The
// next tick starts again at h, so a gap can never be committed.
type Engine struct {
	node   chain.Node
	ledger ledger.Ledger
	log    *slog.Logger
}

// NewEngine creates a catch-up engine.
func NewEngine(node chain.Node, l ledger.Ledger, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		node:   node,
		ledger: l,
		log:    log,
	}
}

// Tick runs one catch-up attempt. A returned error wraps ErrFetch or
// ErrAppend; the ledger is never left with a gap or a partial record.
func (e *Engine) Tick(state *RunState) (TickResult, error) {
	start := time.Now()
	defer func() {
		metrics.TickDuration.Observe(time.Since(start).Seconds())
	}()

	ctx := state.Context()
	cur := state.Cursor

	head, err := e.node.Head(ctx)
	if err != nil && !state.Running() {
		// Shutdown cancelled the request.
		metrics.TicksTotal.WithLabelValues(metrics.TickInterrupted).Inc()
		return TickResult{From: cur.Next(), To: cur.Height(), Interrupted: true}, nil
	}
	if err != nil {
		metrics.TicksTotal.WithLabelValues(metrics.TickFetchError).Inc()
		e.log.Error("Error fetching chain head", "event", "error", "error", err)
		return TickResult{}, fmt.Errorf("%w: head: %w", ErrFetch, err)
	}
	metrics.ChainHeadBlock.Set(float64(head.Height))

	result := TickResult{
		Head: head.Height,
		From: cur.Next(),
		To:   cur.Height(),
	}

	if head.Height <= cur.Height() {
		_ = cur.SetState(domain.CursorStateIdle, "at chain head")
		metrics.TicksTotal.WithLabelValues(metrics.TickIdle).Inc()
		return result, nil
	}

	_ = cur.SetState(domain.CursorStateCatchup, fmt.Sprintf("%d blocks behind", cur.Lag(head.Height)))

	for h := cur.Next(); h <= head.Height; h++ {
		if !state.Running() {
			result.Interrupted = true
			metrics.TicksTotal.WithLabelValues(metrics.TickInterrupted).Inc()
			e.log.Info("Stopping block processing due to shutdown signal",
				"event", "shutdown_processing",
				"last_height", cur.Height(),
			)
			return result, nil
		}

		if err := e.step(ctx, state, h); err != nil {
			if errors.Is(err, ErrFetch) && !state.Running() {
				result.Interrupted = true
				metrics.TicksTotal.WithLabelValues(metrics.TickInterrupted).Inc()
				return result, nil
			}
			metrics.TicksTotal.WithLabelValues(tickLabel(err)).Inc()
			return result, err
		}

		result.To = h
		result.Processed++
	}

	_ = cur.SetState(domain.CursorStateIdle, "caught up")
	metrics.TicksTotal.WithLabelValues(metrics.TickCaughtUp).Inc()
	return result, nil
}

// step fetches and appends height h, then advances the cursor.
func (e *Engine) step(ctx context.Context, state *RunState, h uint64) error {
	block, err := e.node.Block(ctx, h)
	if err == nil && block.Height != h {
		err = fmt.Errorf("node returned height %d", block.Height)
	}
	if err != nil {
		if state.Running() {
			e.log.Error("Error fetching block", "event", "error", "height", h, "error", err)
		}
		return fmt.Errorf("%w at height %d: %w", ErrFetch, h, err)
	}

	// A block that was fetched is written even if shutdown arrives meanwhile.
	if err := e.ledger.Append(context.WithoutCancel(ctx), block); err != nil {
		e.log.Error("Error appending block", "event", "error", "height", h, "error", err)
		return fmt.Errorf("%w at height %d: %w", ErrAppend, h, err)
	}

	if err := state.Cursor.Advance(block); err != nil {
		// The ledger already holds the block; only the in-memory view is off.
		return fmt.Errorf("%w: %w", ErrUnexpected, err)
	}

	metrics.BlocksProcessed.Inc()
	metrics.LedgerTailBlock.Set(float64(h))
	e.log.Info("Block processed", "event", "block_processed", "height", block.Height, "hash", block.Hash)
	return nil
}

func tickLabel(err error) string {
	switch {
	case errors.Is(err, ErrAppend):
		return metrics.TickAppendError
	case errors.Is(err, ErrFetch):
		return metrics.TickFetchError
	default:
		return metrics.TickUnexpected
	}
}

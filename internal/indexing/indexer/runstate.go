package indexer

import (
	"context"
	"sync/atomic"

	"github.com/vietddude/blockledger/internal/core/cursor"
)

// RunState is the process-local state shared between the driver, the
// catch-up engine and the shutdown signal handler.
//
// The running flag only goes from true to false. Stop also cancels the
// context so in-flight node requests return promptly.
type RunState struct {
	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc

	Cursor *cursor.Cursor
}

// NewRunState creates a running state. Cancelling parent has the same effect as Stop.
func NewRunState(parent context.Context, c *cursor.Cursor) *RunState {
	ctx, cancel := context.WithCancel(parent)
	s := &RunState{
		ctx:    ctx,
		cancel: cancel,
		Cursor: c,
	}
	s.running.Store(true)
	return s
}

// Running reports whether the indexer should keep iterating.
func (s *RunState) Running() bool {
	return s.running.Load() && s.ctx.Err() == nil
}

// Stop clears the running flag. It is safe to call from any goroutine and
// more than once; only the first call returns true.
func (s *RunState) Stop() bool {
	first := s.running.CompareAndSwap(true, false)
	s.cancel()
	return first
}

// Context is cancelled once Stop is called.
func (s *RunState) Context() context.Context {
	return s.ctx
}

// Done is closed once Stop is called.
func (s *RunState) Done() <-chan struct{} {
	return s.ctx.Done()
}

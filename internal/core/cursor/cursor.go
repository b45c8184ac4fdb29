// Package cursor tracks the last durably recorded block height.
//
// The cursor is the resume point of the indexer. It is derived from the
// ledger tail at startup and only moves forward, one block at a time, after
// that block has been appended:
//
//	c := cursor.New(tail)
//	c.Advance(domain.Block{Height: tail + 1, Hash: h}) // ok
//	c.Advance(domain.Block{Height: tail + 5, Hash: h}) // ErrBlockGap
//	c.Advance(domain.Block{Height: tail, Hash: h})     // ErrDuplicateBlock
//
// A single writer (the catch-up engine) advances it; any number of readers
// (health server, metrics, shutdown logging) may observe it concurrently.
package cursor

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vietddude/blockledger/internal/core/domain"
)

var (
	// ErrBlockGap is returned when Advance would skip one or more heights.
	ErrBlockGap = errors.New("block gap detected")

	// ErrDuplicateBlock is returned when Advance is called with a height that
	// is already recorded.
	ErrDuplicateBlock = errors.New("block already recorded")
)

// Cursor holds last_processed_height plus a little bookkeeping for status reporting.
type Cursor struct {
	height atomic.Uint64

	mu       sync.RWMutex
	state    State
	lastHash string
	metrics  *MetricsCollector
	onChange func(Transition)
}

// New creates a cursor positioned at height, which must be the ledger tail
// (or domain.GenesisSentinel for an empty ledger).
func New(height uint64) *Cursor {
	c := &Cursor{
		state:   domain.CursorStateInit,
		metrics: NewMetricsCollector(100),
	}
	c.height.Store(height)
	return c
}

// Height returns the highest durably recorded height.
func (c *Cursor) Height() uint64 {
	return c.height.Load()
}

// LastHash returns the hash of the block at Height, if it was recorded by this process.
func (c *Cursor) LastHash() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastHash
}

// Next returns the height that must be appended next.
func (c *Cursor) Next() uint64 {
	return c.height.Load() + 1
}

// Advance moves the cursor to block.Height. Only the immediate successor of
// the current height is accepted.
func (c *Cursor) Advance(block domain.Block) error {
	current := c.height.Load()
	switch {
	case block.Height <= current:
		return fmt.Errorf("%w: cursor at %d, got %d", ErrDuplicateBlock, current, block.Height)
	case block.Height != current+1:
		return fmt.Errorf("%w: expected block %d, got %d", ErrBlockGap, current+1, block.Height)
	}

	c.height.Store(block.Height)

	c.mu.Lock()
	c.lastHash = block.Hash
	c.metrics.RecordBlock(block.Height, time.Now())
	c.mu.Unlock()

	return nil
}

// Lag returns how many blocks the cursor is behind head. It is never negative.
func (c *Cursor) Lag(head uint64) uint64 {
	current := c.height.Load()
	if head <= current {
		return 0
	}
	return head - current
}

// State returns the current cursor state.
func (c *Cursor) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// SetState transitions the cursor to a new state. Setting the current state
// again is a no-op.
func (c *Cursor) SetState(to State, reason string) error {
	c.mu.Lock()
	from := c.state
	if from == to {
		c.mu.Unlock()
		return nil
	}
	if !CanTransition(from, to) {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	t := NewTransition(from, to, reason)
	c.state = to
	c.metrics.RecordTransition(t)
	callback := c.onChange
	c.mu.Unlock()

	if callback != nil {
		callback(t)
	}
	return nil
}

// SetStateChangeCallback registers a callback invoked after every transition.
func (c *Cursor) SetStateChangeCallback(fn func(t Transition)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChange = fn
}

// Metrics returns a snapshot of the throughput metrics.
func (c *Cursor) Metrics() Metrics {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.metrics.GetMetrics()
}

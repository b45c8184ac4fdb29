// Package ledger is the append-only record of (height, hash) pairs.
//
// Records are written in strictly increasing height order with no gaps. The
// ledger itself does not re-check ordering on Append; the catch-up engine only
// ever appends cursor+1. Nothing is ever rewritten or deleted.
package ledger

import (
	"context"
	"errors"

	"github.com/vietddude/blockledger/internal/core/domain"
)

var (
	// ErrNotInitialized is returned by Append before Initialize succeeded.
	ErrNotInitialized = errors.New("ledger not initialized")

	// ErrMalformedTail is returned when the last record cannot be parsed.
	ErrMalformedTail = errors.New("malformed ledger tail")
)

// Ledger is the durable block record.
type Ledger interface {
	// Initialize creates the backing store if it is missing and returns the
	// height of the last record, or domain.GenesisSentinel if there is none.
	Initialize(ctx context.Context) (uint64, error)

	// Append durably writes one record after the current tail. On failure the
	// stored state is unchanged.
	Append(ctx context.Context, block domain.Block) error

	// Tail returns the height of the last record without creating anything.
	Tail(ctx context.Context) (uint64, error)

	// Close releases the underlying resources.
	Close() error
}

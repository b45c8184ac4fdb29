package indexer

import (
	"errors"
	"log/slog"
	"time"

	"github.com/vietddude/blockledger/internal/infra/chain"
	"github.com/vietddude/blockledger/internal/infra/ledger"
)

var (
	// ErrFetch marks a tick stopped because a block could not be fetched.
	ErrFetch = errors.New("fetch failed")

	// ErrAppend marks a tick stopped because a block could not be appended.
	ErrAppend = errors.New("append failed")

	// ErrUnexpected marks anything else that went wrong inside a tick.
	ErrUnexpected = errors.New("unexpected tick error")
)

const (
	DefaultInterval     = 1 * time.Second
	DefaultErrorBackoff = 5 * time.Second
)

// Config holds indexer configuration
type Config struct {
	Node         chain.Node
	Ledger       ledger.Ledger
	Interval     time.Duration // pause after a normal tick
	ErrorBackoff time.Duration // pause after an unexpected error
	Logger       *slog.Logger
}

// TickResult describes what one catch-up tick did.
type TickResult struct {
	Head        uint64 // chain head seen at the start of the tick
	From        uint64 // first height attempted
	To          uint64 // last height appended, or From-1 if none
	Processed   int
	Interrupted bool // stopped early because shutdown was requested
}

// Expected reports whether err is a routine fetch/append failure that is
// retried on the next tick at the normal interval.
func Expected(err error) bool {
	return errors.Is(err, ErrFetch) || errors.Is(err, ErrAppend)
}

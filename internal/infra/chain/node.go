package chain

import (
	"context"
	"errors"

	"github.com/vietddude/blockledger/internal/core/domain"
)

// ErrBlockUnavailable wraps every node failure: unreachable node, timeout,
// non-2xx status, malformed response, or a block that does not exist yet.
// Callers treat all of them the same way.
var ErrBlockUnavailable = errors.New("block not currently available")

// Node is the chain node API the catch-up engine consumes.
type Node interface {
	// Head returns the node's current head height and hash.
	Head(ctx context.Context) (domain.Block, error)

	// Block returns the block at height.
	Block(ctx context.Context, height uint64) (domain.Block, error)
}

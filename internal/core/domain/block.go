package domain

import (
	"fmt"
	"math"
	"strings"
)

// GenesisSentinel is the cursor value of a ledger that holds no records yet.
// The first block ever recorded therefore has height GenesisSentinel+1.
const GenesisSentinel uint64 = 0

// MaxHeight is the largest height a ledger accepts. Heights are stored as
// signed 64-bit integers in SQL backends.
const MaxHeight uint64 = math.MaxInt64

// Block is one ledger record: a chain height and the block-id hash at that height.
type Block struct {
	Height uint64
	Hash   string
}

// Validate checks that the block can be written as a single ledger line.
func (b Block) Validate() error {
	if b.Height == GenesisSentinel {
		return fmt.Errorf("invalid block height %d", b.Height)
	}
	if b.Height > MaxHeight {
		return fmt.Errorf("block height %d exceeds %d", b.Height, MaxHeight)
	}
	if b.Hash == "" {
		return fmt.Errorf("block %d: empty hash", b.Height)
	}
	if strings.ContainsAny(b.Hash, ",\r\n") {
		return fmt.Errorf("block %d: hash %q contains a separator", b.Height, b.Hash)
	}
	return nil
}

func (b Block) String() string {
	return fmt.Sprintf("%d,%s", b.Height, b.Hash)
}

// Package lock guarantees at most one active indexer per storage location.
//
// Two backends are provided. FileLock keeps a marker file next to the ledger
// and needs manual cleanup after a crash. RedisLock keeps the marker in Redis
// with a TTL that the holder refreshes while it runs.
package lock

import (
	"context"
	"errors"
)

// MarkerProcessing is the marker value while a lock is held.
const MarkerProcessing = "processing"

// ErrLockLost is returned by a keepalive when the lock was taken away from
// its holder, e.g. after the TTL expired.
var ErrLockLost = errors.New("instance lock lost")

// Locker is the instance lock contract.
type Locker interface {
	// Acquire marks the lock as held and returns true, or returns false
	// without any mutation if another holder is marked as processing.
	Acquire(ctx context.Context) (bool, error)

	// Release removes the holder marker. Calling it when no marker exists is
	// not an error.
	Release(ctx context.Context) error
}

// Inspector reports the lock state without changing it.
type Inspector interface {
	Held(ctx context.Context) (bool, error)
}

package lock

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// MarkerFile is the lock marker name inside the storage directory.
const MarkerFile = "processor.state"

// FileLock is a marker file holding "processing" while an instance runs.
//
// The marker is written to a private temp file first and published with
// os.Link, which fails if the marker already exists. Check and mark are a
// single filesystem operation and the marker is never visible half-written.
type FileLock struct {
	dir  string
	path string
}

// NewFileLock creates a lock for the given storage directory.
func NewFileLock(dir string) *FileLock {
	return &FileLock{
		dir:  dir,
		path: filepath.Join(dir, MarkerFile),
	}
}

// Path returns the marker file location.
func (l *FileLock) Path() string {
	return l.path
}

// Acquire implements Locker.
func (l *FileLock) Acquire(ctx context.Context) (bool, error) {
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return false, fmt.Errorf("failed to create storage dir: %w", err)
	}

	// A marker with any other content is a leftover, not a holder. Remove it
	// and try once more.
	for attempt := 0; attempt < 2; attempt++ {
		if err := ctx.Err(); err != nil {
			return false, err
		}

		published, err := l.publish()
		if err != nil {
			return false, err
		}
		if published {
			return true, nil
		}

		state, info, err := l.inspect()
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return false, err
		}
		if state == MarkerProcessing {
			return false, nil
		}
		if err := l.discard(info); err != nil {
			return false, err
		}
	}
	return false, nil
}

// Release implements Locker.
func (l *FileLock) Release(_ context.Context) error {
	if err := os.Remove(l.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove lock marker: %w", err)
	}
	return nil
}

// Held implements Inspector.
func (l *FileLock) Held(_ context.Context) (bool, error) {
	state, err := l.read()
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return state == MarkerProcessing, nil
}

// inspect reads the marker together with the identity of the file read.
func (l *FileLock) inspect() (string, os.FileInfo, error) {
	f, err := os.Open(l.path)
	if err != nil {
		return "", nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", nil, fmt.Errorf("failed to stat lock marker: %w", err)
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return "", nil, fmt.Errorf("failed to read lock marker: %w", err)
	}
	return strings.TrimSpace(string(data)), info, nil
}

// discard removes the leftover marker described by seen. The marker is moved
// aside first and deleted only if it is still that file; a marker published
// by another instance in the meantime is linked back into place.
func (l *FileLock) discard(seen os.FileInfo) error {
	aside := fmt.Sprintf("%s.stale-%s", l.path, uuid.NewString())
	if err := os.Rename(l.path, aside); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to move stale marker: %w", err)
	}
	defer os.Remove(aside)

	moved, err := os.Stat(aside)
	if err != nil {
		return fmt.Errorf("failed to stat stale marker: %w", err)
	}
	if os.SameFile(seen, moved) {
		return nil
	}

	if err := os.Link(aside, l.path); err != nil && !errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("failed to restore lock marker: %w", err)
	}
	return nil
}

func (l *FileLock) read() (string, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// publish reports false if a marker already exists.
func (l *FileLock) publish() (bool, error) {
	tmp, err := os.CreateTemp(l.dir, MarkerFile+".*")
	if err != nil {
		return false, fmt.Errorf("failed to create lock marker: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(MarkerProcessing + "\n"); err != nil {
		tmp.Close()
		return false, fmt.Errorf("failed to write lock marker: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return false, fmt.Errorf("failed to sync lock marker: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return false, fmt.Errorf("failed to close lock marker: %w", err)
	}

	err = os.Link(tmp.Name(), l.path)
	if errors.Is(err, fs.ErrExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to publish lock marker: %w", err)
	}
	return true, nil
}

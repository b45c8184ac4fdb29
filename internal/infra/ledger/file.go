package ledger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/vietddude/blockledger/internal/core/domain"
)

const (
	// FileName is the ledger file inside the storage directory.
	FileName = "blocks.csv"

	// Header is the first line of every ledger file.
	Header = "height,hash"

	tailChunk = 4096
)

// FileLedger stores records as CSV lines in blocks.csv:
//
//	height,hash
//	1,4A3F...
//	2,9C1B...
type FileLedger struct {
	dir  string
	path string

	mu   sync.Mutex
	f    *os.File
	size int64 // bytes known to hold complete records
}

// NewFileLedger creates a ledger in the given storage directory.
func NewFileLedger(dir string) *FileLedger {
	return &FileLedger{
		dir:  dir,
		path: filepath.Join(dir, FileName),
	}
}

// Path returns the ledger file location.
func (l *FileLedger) Path() string {
	return l.path
}

// Initialize implements Ledger. A tail that cannot be parsed is logged and
// treated as an empty ledger instead of failing startup.
func (l *FileLedger) Initialize(_ context.Context) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return 0, fmt.Errorf("failed to create storage dir: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_RDWR|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return 0, fmt.Errorf("failed to open ledger: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return 0, fmt.Errorf("failed to stat ledger: %w", err)
	}

	if l.f != nil {
		l.f.Close()
	}
	l.f = f
	l.size = info.Size()

	if l.size == 0 {
		if err := l.write([]byte(Header + "\n")); err != nil {
			l.f.Close()
			l.f = nil
			return 0, fmt.Errorf("failed to write ledger header: %w", err)
		}
		slog.Info("Created new ledger", "event", "init", "path", l.path)
		return domain.GenesisSentinel, nil
	}

	height, err := readTail(f, l.size)
	if err != nil {
		slog.Error("Error reading ledger tail, starting from genesis",
			"event", "error",
			"path", l.path,
			"error", err,
		)
		if err := l.terminateFragment(); err != nil {
			l.f.Close()
			l.f = nil
			return 0, err
		}
		return domain.GenesisSentinel, nil
	}

	slog.Info("Found existing ledger", "event", "init", "path", l.path, "last_height", height)
	return height, nil
}

// Append implements Ledger. The record is written with a single write and
// fsynced; if either fails the file is truncated back to its previous size.
func (l *FileLedger) Append(_ context.Context, block domain.Block) error {
	if err := block.Validate(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.f == nil {
		return ErrNotInitialized
	}
	return l.write([]byte(block.String() + "\n"))
}

// Tail implements Ledger.
func (l *FileLedger) Tail(_ context.Context) (uint64, error) {
	return ReadTail(l.path)
}

// Close implements Ledger.
func (l *FileLedger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.f == nil {
		return nil
	}
	err := l.f.Close()
	l.f = nil
	return err
}

func (l *FileLedger) write(line []byte) error {
	n, err := l.f.Write(line)
	if err == nil && n < len(line) {
		err = io.ErrShortWrite
	}
	if err == nil {
		err = l.f.Sync()
	}
	if err != nil {
		if terr := l.f.Truncate(l.size); terr != nil {
			slog.Error("Failed to roll back partial ledger write",
				"event", "error",
				"path", l.path,
				"size", l.size,
				"error", terr,
			)
		}
		return fmt.Errorf("failed to append to ledger: %w", err)
	}
	l.size += int64(n)
	return nil
}

// terminateFragment closes a torn last line so the next record starts on a
// line of its own.
func (l *FileLedger) terminateFragment() error {
	last := make([]byte, 1)
	if _, err := l.f.ReadAt(last, l.size-1); err != nil {
		return fmt.Errorf("failed to read ledger tail: %w", err)
	}
	if last[0] == '\n' {
		return nil
	}
	if err := l.write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to terminate torn ledger line: %w", err)
	}
	return nil
}

// ReadTail returns the height of the last record in the ledger file at path.
// A missing file or a header-only file yields domain.GenesisSentinel.
func ReadTail(path string) (uint64, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return domain.GenesisSentinel, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to open ledger: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("failed to stat ledger: %w", err)
	}
	if info.Size() == 0 {
		return domain.GenesisSentinel, nil
	}
	return readTail(f, info.Size())
}

// readTail reads backwards from the end of r until it holds the whole last line.
func readTail(r io.ReaderAt, size int64) (uint64, error) {
	var buf []byte
	offset := size
	for {
		chunk := int64(tailChunk)
		if chunk > offset {
			chunk = offset
		}
		offset -= chunk

		part := make([]byte, chunk)
		if _, err := r.ReadAt(part, offset); err != nil && !errors.Is(err, io.EOF) {
			return 0, fmt.Errorf("failed to read ledger tail: %w", err)
		}
		buf = append(part, buf...)

		if len(buf) > 0 && buf[len(buf)-1] != '\n' {
			return 0, fmt.Errorf("%w: last record is not newline-terminated", ErrMalformedTail)
		}
		body := buf[:len(buf)-1]
		if i := bytes.LastIndexByte(body, '\n'); i >= 0 || offset == 0 {
			return parseLine(string(body[i+1:]))
		}
	}
}

// parseLine parses one ledger line. The header parses as the sentinel.
func parseLine(line string) (uint64, error) {
	line = strings.TrimSuffix(line, "\r")
	if line == Header {
		return domain.GenesisSentinel, nil
	}
	block, err := ParseRecord(line)
	if err != nil {
		return 0, err
	}
	return block.Height, nil
}

// ParseRecord parses a "<height>,<hash>" line.
func ParseRecord(line string) (domain.Block, error) {
	heightStr, hash, ok := strings.Cut(line, ",")
	if !ok {
		return domain.Block{}, fmt.Errorf("%w: %q", ErrMalformedTail, line)
	}
	height, err := strconv.ParseUint(heightStr, 10, 64)
	if err != nil {
		return domain.Block{}, fmt.Errorf("%w: invalid height in %q", ErrMalformedTail, line)
	}
	block := domain.Block{Height: height, Hash: hash}
	if err := block.Validate(); err != nil {
		return domain.Block{}, fmt.Errorf("%w: %v", ErrMalformedTail, err)
	}
	return block, nil
}

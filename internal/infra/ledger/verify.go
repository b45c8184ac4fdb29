package ledger

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/vietddude/blockledger/internal/core/domain"
)

// ErrOrderViolation is returned by Verify when records are not consecutive.
var ErrOrderViolation = errors.New("ledger order violation")

// Report summarizes a verified ledger.
type Report struct {
	Records  int
	First    uint64
	Tail     uint64
	LastHash string
}

// Scan calls fn for every record in a CSV ledger, in file order. The header
// line is required.
func Scan(r io.Reader, fn func(line int, block domain.Block) error) error {
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		text := scanner.Text()
		if lineNo == 1 {
			if text != Header {
				return fmt.Errorf("line 1: expected header %q, got %q", Header, text)
			}
			continue
		}
		block, err := ParseRecord(text)
		if err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
		if err := fn(lineNo, block); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to scan ledger: %w", err)
	}
	if lineNo == 0 {
		return fmt.Errorf("line 1: missing header %q", Header)
	}
	return nil
}

// Verify checks that the first record is genesis and every record follows
// its predecessor by exactly one height.
func Verify(r io.Reader) (Report, error) {
	var report Report
	prev := domain.GenesisSentinel

	err := Scan(r, func(line int, block domain.Block) error {
		if block.Height != prev+1 {
			return fmt.Errorf("%w at line %d: expected height %d, got %d",
				ErrOrderViolation, line, prev+1, block.Height)
		}
		if report.Records == 0 {
			report.First = block.Height
		}
		report.Records++
		report.Tail = block.Height
		report.LastHash = block.Hash
		prev = block.Height
		return nil
	})
	return report, err
}

// VerifyFile runs Verify on the ledger file at path.
func VerifyFile(path string) (Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return Report{}, fmt.Errorf("failed to open ledger: %w", err)
	}
	defer f.Close()
	return Verify(f)
}

package cli

import (
	"errors"
	"fmt"
	"testing"

	"github.com/vietddude/blockledger/internal/control"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"graceful stop", nil, 0},
		{"lock held elsewhere", control.ErrAlreadyRunning, 0},
		{"wrapped contention", fmt.Errorf("run: %w", control.ErrAlreadyRunning), 0},
		{"startup failure", errors.New("failed to open ledger"), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCode(tt.err); got != tt.want {
				t.Errorf("exitCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

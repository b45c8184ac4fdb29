package ledger

import (
	"errors"
	"strings"
	"testing"
)

func TestVerify(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		wantTail  uint64
		wantCount int
		wantOrder bool // expect ErrOrderViolation
		wantErr   bool
	}{
		{"header only", "height,hash\n", 0, 0, false, false},
		{"consecutive", "height,hash\n1,A\n2,B\n3,C\n", 3, 3, false, false},
		{"gap", "height,hash\n1,A\n3,C\n", 0, 0, true, true},
		{"duplicate", "height,hash\n1,A\n2,B\n2,B\n", 0, 0, true, true},
		{"not from genesis", "height,hash\n5,A\n6,B\n", 0, 0, true, true},
		{"missing header", "1,A\n2,B\n", 0, 0, false, true},
		{"empty", "", 0, 0, false, true},
		{"garbage", "height,hash\n1,A\nzzz\n", 0, 0, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report, err := Verify(strings.NewReader(tt.content))
			if (err != nil) != tt.wantErr {
				t.Fatalf("Verify() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantOrder && !errors.Is(err, ErrOrderViolation) {
				t.Errorf("expected ErrOrderViolation, got %v", err)
			}
			if err != nil {
				return
			}
			if report.Tail != tt.wantTail {
				t.Errorf("expected tail %d, got %d", tt.wantTail, report.Tail)
			}
			if report.Records != tt.wantCount {
				t.Errorf("expected %d records, got %d", tt.wantCount, report.Records)
			}
		})
	}
}

func TestVerify_Report(t *testing.T) {
	report, err := Verify(strings.NewReader("height,hash\n1,A\n2,B\n"))
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if report.First != 1 || report.LastHash != "B" {
		t.Errorf("unexpected report %+v", report)
	}
}

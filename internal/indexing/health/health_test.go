package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vietddude/blockledger/internal/core/cursor"
	"github.com/vietddude/blockledger/internal/core/domain"
	"github.com/vietddude/blockledger/internal/infra/chain/tendermint"
)

// =============================================================================
// Mocks
// =============================================================================

type mockFetcher struct {
	height uint64
	err    error
}

func (m *mockFetcher) Head(ctx context.Context) (domain.Block, error) {
	return domain.Block{Height: m.height, Hash: "HEAD"}, m.err
}

type stubNode struct {
	status tendermint.HealthStatus
}

func (s *stubNode) GetHealth() tendermint.HealthStatus { return s.status }

type stubLock struct {
	held bool
	err  error
}

func (s *stubLock) Held(ctx context.Context) (bool, error) { return s.held, s.err }

func newMonitor(height, head uint64) (*Monitor, *mockFetcher) {
	fetcher := &mockFetcher{height: head}
	m := NewMonitor(cursor.New(height), fetcher, &stubNode{status: tendermint.HealthStatus{Available: true}}, &stubLock{held: true})
	return m, fetcher
}

// =============================================================================
// Tests
// =============================================================================

func TestMonitor_Status(t *testing.T) {
	tests := []struct {
		name   string
		height uint64
		head   uint64
		want   SystemStatus
	}{
		{"healthy", 995, 1000, StatusHealthy},
		{"degraded", 950, 1000, StatusDegraded},
		{"critical", 800, 1000, StatusCritical},
		{"ahead of head", 1000, 990, StatusHealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _ := newMonitor(tt.height, tt.head)
			report := m.CheckHealth(context.Background())
			if report.Status != tt.want {
				t.Errorf("expected %s, got %s (lag %d)", tt.want, report.Status, report.Lag)
			}
		})
	}
}

func TestMonitor_HeadUnavailable(t *testing.T) {
	m, fetcher := newMonitor(10, 0)
	fetcher.err = errors.New("connection refused")

	report := m.CheckHealth(context.Background())
	if report.Status != StatusDegraded {
		t.Errorf("expected degraded, got %s", report.Status)
	}
	if report.Error == "" {
		t.Error("expected error to be reported")
	}
	if report.Height != 10 {
		t.Errorf("expected height 10, got %d", report.Height)
	}
}

func TestMonitor_LockLost(t *testing.T) {
	m := NewMonitor(cursor.New(10), &mockFetcher{height: 10}, nil, &stubLock{held: false})

	report := m.CheckHealth(context.Background())
	if report.Status != StatusCritical {
		t.Errorf("expected critical, got %s", report.Status)
	}
	if report.LockHeld {
		t.Error("expected lock_held false")
	}
}

func TestMonitor_NodeUnavailable(t *testing.T) {
	m := NewMonitor(cursor.New(10), &mockFetcher{height: 10},
		&stubNode{status: tendermint.HealthStatus{Available: false, LastError: "timeout"}}, nil)

	report := m.CheckHealth(context.Background())
	if report.Status != StatusDegraded {
		t.Errorf("expected degraded, got %s", report.Status)
	}
	if report.Node == nil || report.Node.LastError != "timeout" {
		t.Errorf("expected node health in report, got %+v", report.Node)
	}
	if !report.LockHeld {
		t.Error("no lock inspector should report the lock as held")
	}
}

func TestServer_Endpoints(t *testing.T) {
	m, _ := newMonitor(995, 1000)
	srv := httptest.NewServer(NewServer(m, 0).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health failed: %v", err)
	}
	var health map[string]string
	json.NewDecoder(resp.Body).Decode(&health)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || health["status"] != string(StatusHealthy) {
		t.Errorf("unexpected /health response: %d %v", resp.StatusCode, health)
	}

	resp, err = http.Get(srv.URL + "/status")
	if err != nil {
		t.Fatalf("GET /status failed: %v", err)
	}
	var report Report
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		t.Fatalf("decode /status: %v", err)
	}
	resp.Body.Close()
	if report.Height != 995 || report.Head != 1000 || report.Lag != 5 {
		t.Errorf("unexpected report %+v", report)
	}
	if report.State != domain.CursorStateInit {
		t.Errorf("expected init state, got %s", report.State)
	}

	resp, err = http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 from /metrics, got %d", resp.StatusCode)
	}
}

func TestServer_CriticalReturns503(t *testing.T) {
	m := NewMonitor(cursor.New(1), &mockFetcher{height: 1}, nil, &stubLock{held: false})
	srv := httptest.NewServer(NewServer(m, 0).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", resp.StatusCode)
	}
}

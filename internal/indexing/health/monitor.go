package health

import (
	"context"
	"time"

	"github.com/vietddude/blockledger/internal/core/cursor"
	"github.com/vietddude/blockledger/internal/core/domain"
	"github.com/vietddude/blockledger/internal/infra/chain/tendermint"
)

// HeadFetcher fetches the current chain head. Wrap the node in a
// chain.HeadCache to bound how often status requests reach it.
type HeadFetcher interface {
	Head(ctx context.Context) (domain.Block, error)
}

// NodeReporter exposes node client request statistics.
type NodeReporter interface {
	GetHealth() tendermint.HealthStatus
}

// LockInspector reports whether this instance still holds the instance lock.
type LockInspector interface {
	Held(ctx context.Context) (bool, error)
}

// Monitor aggregates the indexer status from the cursor, node and lock.
type Monitor struct {
	cursor *cursor.Cursor
	head   HeadFetcher
	node   NodeReporter
	lock   LockInspector
}

// NewMonitor creates a new health monitor. node and lock may be nil.
func NewMonitor(c *cursor.Cursor, head HeadFetcher, node NodeReporter, lock LockInspector) *Monitor {
	return &Monitor{
		cursor: c,
		head:   head,
		node:   node,
		lock:   lock,
	}
}

// CheckHealth builds a status report.
func (m *Monitor) CheckHealth(ctx context.Context) Report {
	metrics := m.cursor.Metrics()
	report := Report{
		Status:          StatusHealthy,
		State:           m.cursor.State(),
		Height:          m.cursor.Height(),
		LastHash:        m.cursor.LastHash(),
		BlocksPerSecond: metrics.BlocksPerSecond,
		LastProcessedAt: metrics.LastProcessedAt,
		CheckedAt:       time.Now(),
	}

	head, err := m.head.Head(ctx)
	if err != nil {
		report.Status = StatusDegraded
		report.Error = err.Error()
	} else {
		report.Head = head.Height
		report.Lag = m.cursor.Lag(head.Height)
	}

	if m.node != nil {
		nh := m.node.GetHealth()
		report.Node = &nh
		if !nh.Available {
			report.Status = StatusDegraded
		}
	}

	if m.lock != nil {
		held, err := m.lock.Held(ctx)
		report.LockHeld = held && err == nil
	} else {
		report.LockHeld = true
	}

	switch {
	case !report.LockHeld || report.State == domain.CursorStateStopping:
		report.Status = StatusCritical
	case report.Lag > CriticalLag:
		report.Status = StatusCritical
	case report.Lag > DegradedLag:
		report.Status = StatusDegraded
	}

	return report
}

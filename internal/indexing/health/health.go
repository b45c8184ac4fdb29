// Package health provides the indexer's health and status endpoints.
package health

import (
	"time"

	"github.com/vietddude/blockledger/internal/core/domain"
	"github.com/vietddude/blockledger/internal/infra/chain/tendermint"
)

// SystemStatus represents the overall health state of the indexer.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

// Lag thresholds for status evaluation.
const (
	DegradedLag = 10
	CriticalLag = 100
)

// Report contains the full indexer status.
type Report struct {
	Status          SystemStatus             `json:"status"`
	State           domain.CursorState       `json:"state"`
	Height          uint64                   `json:"height"`
	LastHash        string                   `json:"last_hash,omitempty"`
	Head            uint64                   `json:"head"`
	Lag             uint64                   `json:"lag"`
	BlocksPerSecond float64                  `json:"blocks_per_second"`
	LastProcessedAt *time.Time               `json:"last_processed_at,omitempty"`
	LockHeld        bool                     `json:"lock_held"`
	Node            *tendermint.HealthStatus `json:"node,omitempty"`
	Error           string                   `json:"error,omitempty"`
	CheckedAt       time.Time                `json:"checked_at"`
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Tick outcomes used as the "result" label of TicksTotal.
const (
	TickCaughtUp    = "caught_up"
	TickIdle        = "idle"
	TickFetchError  = "fetch_error"
	TickAppendError = "append_error"
	TickInterrupted = "interrupted"
	TickUnexpected  = "unexpected"
)

var (
	// BlocksProcessed tracks total blocks appended to the ledger
	BlocksProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "blockledger_blocks_processed_total",
			Help: "Total number of blocks appended to the ledger",
		},
	)

	// TicksTotal tracks catch-up ticks by outcome
	TicksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blockledger_ticks_total",
			Help: "Total number of catch-up ticks by result",
		},
		[]string{"result"},
	)

	// TickDuration tracks how long a catch-up tick takes
	TickDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "blockledger_tick_duration_seconds",
			Help:    "Catch-up tick duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// NodeRequestsTotal tracks chain node requests
	NodeRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blockledger_node_requests_total",
			Help: "Total number of chain node requests",
		},
		[]string{"method", "status"},
	)

	// NodeLatency tracks chain node request latency
	NodeLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "blockledger_node_latency_seconds",
			Help:    "Chain node request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// ChainHeadBlock tracks the latest block height reported by the node
	ChainHeadBlock = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "blockledger_chain_head_block",
			Help: "Latest block height reported by the chain node",
		},
	)

	// LedgerTailBlock tracks the last block height recorded in the ledger
	LedgerTailBlock = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "blockledger_ledger_tail_block",
			Help: "Last block height recorded in the ledger",
		},
	)

	// InstanceLockHeld is 1 while this process holds the instance lock
	InstanceLockHeld = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "blockledger_instance_lock_held",
			Help: "Whether this process holds the instance lock",
		},
	)

	// DBConnectionPoolUsage tracks postgres connection pool usage
	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "blockledger_db_connection_pool_usage_percent",
			Help: "Percentage of the postgres connection pool in use",
		},
	)
)

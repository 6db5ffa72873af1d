// Package metrics defines Prometheus metrics for the stake indexer.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BlocksScanned tracks total blocks walked by the range scanner.
	BlocksScanned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stakewatch_blocks_scanned_total",
			Help: "Total number of blocks scanned",
		},
	)

	// RewardsIndexed tracks reward rows actually inserted, per scan kind.
	RewardsIndexed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stakewatch_rewards_indexed_total",
			Help: "Total number of stake rewards persisted",
		},
		[]string{"scan"},
	)

	// RewardAnomalies tracks extracted rewards outside the epoch's expected set.
	RewardAnomalies = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stakewatch_reward_anomalies_total",
			Help: "Total number of rewards flagged as off-schedule",
		},
	)

	// MalformedBlocks tracks blocks skipped for structural anomalies.
	MalformedBlocks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stakewatch_malformed_blocks_total",
			Help: "Total number of blocks skipped as malformed",
		},
	)

	// RPCCallsTotal tracks node RPC calls per provider and method.
	RPCCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stakewatch_rpc_calls_total",
			Help: "Total number of node RPC calls",
		},
		[]string{"provider", "method"},
	)

	// RPCErrorsTotal tracks node RPC errors per provider.
	RPCErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stakewatch_rpc_errors_total",
			Help: "Total number of node RPC errors",
		},
		[]string{"provider", "method"},
	)

	// RPCLatency tracks node RPC call latency.
	RPCLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stakewatch_rpc_latency_seconds",
			Help:    "Node RPC call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider", "method"},
	)

	// ScanDuration tracks end-to-end scan run duration per target kind.
	ScanDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stakewatch_scan_duration_seconds",
			Help:    "Scan run duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 4, 8),
		},
		[]string{"scan"},
	)

	// ScansActive tracks currently running scans.
	ScansActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "stakewatch_scans_active",
			Help: "Number of scans currently running",
		},
	)

	// ScanRetries tracks transient-failure retries per target kind.
	ScanRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stakewatch_scan_retries_total",
			Help: "Total number of scan retries after transient failures",
		},
		[]string{"scan"},
	)

	// CoverageGaps tracks the number of uncovered ranges at last detection.
	CoverageGaps = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "stakewatch_coverage_gaps",
			Help: "Number of uncovered block ranges at last gap detection",
		},
	)

	// ChainTip tracks the node's reported best height.
	ChainTip = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "stakewatch_chain_tip",
			Help: "Best block height reported by the node",
		},
	)

	// DBBatchSize tracks reward batch sizes at flush time.
	DBBatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "stakewatch_db_batch_size",
			Help:    "Number of rewards per persisted batch",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		},
	)

	// DBConnectionPoolUsage tracks database pool utilization percent.
	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "stakewatch_db_pool_usage_percent",
			Help: "Database connection pool usage percentage",
		},
	)
)

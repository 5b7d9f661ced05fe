package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HttpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	ResponseTimeHistogram = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_response_time_seconds",
			Help:    "Histogram of response times",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	TransfersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wallet_transfers_total",
			Help: "Peer transfers by outcome",
		},
		[]string{"result"},
	)

	WithdrawalsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wallet_withdrawals_total",
			Help: "Withdrawal requests by outcome",
		},
		[]string{"result"},
	)

	CommissionBatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "commission_batches_total",
			Help: "Commission event batches by event type and result",
		},
		[]string{"event_type", "result"},
	)

	LedgerRecordsAppended = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_records_appended_total",
			Help: "Ledger rows written by record kind and type",
		},
		[]string{"kind", "type"},
	)

	TxConflictRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "db_tx_conflict_retries_total",
			Help: "Transactions retried after a serialization or deadlock conflict",
		},
	)

	ExcellenceUnlocks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "excellence_unlocks_total",
			Help: "Excellence milestones unlocked",
		},
	)

	LeaderboardRefreshSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "leaderboard_refresh_seconds",
			Help:    "Time spent rebuilding the leaderboard snapshot",
			Buckets: prometheus.DefBuckets,
		},
	)

	JobsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_jobs_processed_total",
			Help: "Background jobs processed by queue and result",
		},
		[]string{"queue", "result"},
	)
)

// Package metrics exposes prometheus instrumentation for the ledger engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TransactionsTotal counts finalized transactions by kind and terminal status.
	TransactionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_transactions_total",
		Help: "Finalized ledger transactions by kind and status.",
	}, []string{"kind", "status"})

	// VersionConflictsTotal counts optimistic-lock losses during balance swaps.
	VersionConflictsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_version_conflicts_total",
		Help: "Compare-and-swap attempts lost to a concurrent writer.",
	})

	// ReversalsTotal counts compensating credits issued for half-failed transfers.
	ReversalsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_transfer_reversals_total",
		Help: "Transfer debit reversals by outcome.",
	}, []string{"outcome"})

	// OperationDuration observes end-to-end engine operation latency.
	OperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ledger_operation_duration_seconds",
		Help:    "Latency of ledger engine operations.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	// IdempotentReplaysTotal counts requests short-circuited by a completed
	// transaction holding the same idempotency key.
	IdempotentReplaysTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_idempotent_replays_total",
		Help: "Operations answered from a previously completed transaction.",
	})

	// AbandonedTotal counts pending transactions finalized by the reconciler.
	AbandonedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_abandoned_transactions_total",
		Help: "Stale pending transactions finalized as failed by the reconciliation sweep.",
	})
)

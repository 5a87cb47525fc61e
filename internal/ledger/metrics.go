package ledger

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	transactionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "credits_transactions_total",
		Help: "Ledger transactions committed, by type",
	}, []string{"type"})

	insufficientBalanceTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "credits_insufficient_balance_total",
		Help: "Consume attempts rejected for insufficient balance",
	})

	integrityViolationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "credits_integrity_violations_total",
		Help: "Accounts frozen after a balance/ledger mismatch",
	})

	applyDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "credits_apply_duration_seconds",
		Help:    "Latency of ledger apply operations",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1},
	})
)

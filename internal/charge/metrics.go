package charge

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	chargesCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "charges_created_total",
		Help: "Pending charges opened against the payment gateway",
	})

	chargesDedupedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "charges_deduplicated_total",
		Help: "Charge creations coalesced onto an existing pending charge",
	})

	chargesFinalizedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "charges_finalized_total",
		Help: "Charges moved into a terminal state, by status",
	}, []string{"status"})

	reconcileOutcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "charge_reconcile_outcomes_total",
		Help: "Reconciliation runs, by outcome",
	}, []string{"outcome"})
)

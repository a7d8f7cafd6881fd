package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "model_router_decisions_total",
			Help: "Total number of routing decisions by model and rule",
		},
		[]string{"model", "rule"},
	)

	ReservationsRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "model_router_reservations_rejected_total",
			Help: "Total number of budget reservations rejected",
		},
	)

	InvocationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "model_router_invocations_total",
			Help: "Total number of backend invocations by model and outcome",
		},
		[]string{"model", "outcome"},
	)

	InvocationLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "model_router_invocation_latency_seconds",
			Help: "Backend invocation latency in seconds",
		},
	)

	FallbackAttempts = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "model_router_fallback_attempts",
			Help:    "Number of candidates tried per executed task",
			Buckets: []float64{1, 2, 3, 4, 5},
		},
	)

	BudgetSpent = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "model_router_budget_spent",
			Help: "Committed spend for the current budget day",
		},
	)

	BudgetRemaining = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "model_router_budget_remaining",
			Help: "Remaining budget for the current budget day",
		},
	)
)

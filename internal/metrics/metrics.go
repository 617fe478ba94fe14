package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MintsTotal counts wines reaching a terminal status, by run mode.
	MintsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "minter_mints_total",
		Help: "Wines that reached a terminal minting status",
	}, []string{"mode", "status"})

	StepDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "minter_step_duration_seconds",
		Help:    "Duration of the main network pipeline steps",
		Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"step"})

	ConfirmationChecks = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "minter_confirmation_checks",
		Help:    "Status checks needed until a transaction reached a terminal state",
		Buckets: []float64{1, 2, 5, 10, 20, 40, 60},
	})

	StatusCheckErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "minter_status_check_errors_total",
		Help: "Transient errors returned by the chain status service",
	})

	ActiveRuns = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "minter_active_runs",
		Help: "Minting runs currently in progress",
	})
)

package coordinator

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	sagaPlacement    = "placement"
	sagaCancellation = "cancellation"

	outcomeCompleted   = "completed"
	outcomeRejected    = "rejected"
	outcomeCompensated = "compensated"
)

var (
	sagaOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "saga_outcomes_total",
			Help: "Terminal saga outcomes by saga type",
		},
		[]string{"saga", "outcome"},
	)

	sagaDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "saga_duration_seconds",
			Help:    "Time from saga start to its terminal outcome",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"saga"},
	)

	sagasInFlight = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sagas_in_flight",
			Help: "Sagas holding scratch state in a worker",
		},
		[]string{"saga"},
	)
)

func observeStart(saga string) {
	sagasInFlight.WithLabelValues(saga).Inc()
}

func observeEnd(saga, outcome string, started time.Time) {
	sagasInFlight.WithLabelValues(saga).Dec()
	sagaOutcomes.WithLabelValues(saga, outcome).Inc()
	sagaDuration.WithLabelValues(saga).Observe(time.Since(started).Seconds())
}

package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	assignmentsTotal *prometheus.CounterVec
	tasksInflight    prometheus.Gauge
	tripDuration     prometheus.Histogram
	assignmentETA    prometheus.Histogram
)

// newCollectors creates new metric collectors.
func newCollectors() (*prometheus.CounterVec, prometheus.Gauge, prometheus.Histogram, prometheus.Histogram) {
	asn := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "liftd_assignments_total",
			Help: "Number of assignment requests by outcome",
		},
		[]string{"outcome"},
	)
	inflight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "liftd_tasks_inflight",
			Help: "Number of movement tasks currently executing",
		},
	)
	trip := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "liftd_trip_duration_seconds",
			Help:    "Wall-clock duration of completed rides",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		},
	)
	eta := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "liftd_assignment_eta_seconds",
			Help:    "Estimated arrival time promised at assignment",
			Buckets: prometheus.ExponentialBuckets(1, 2, 8),
		},
	)
	return asn, inflight, trip, eta
}

func init() {
	assignmentsTotal, tasksInflight, tripDuration, assignmentETA = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers dispatch metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(assignmentsTotal, tasksInflight, tripDuration, assignmentETA)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	assignmentsTotal, tasksInflight, tripDuration, assignmentETA = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}

// Outcome labels for liftd_assignments_total.
const (
	outcomeAssigned    = "assigned"
	outcomeReplayed    = "replayed"
	outcomeInvalid     = "invalid_floor"
	outcomeNoUnit      = "no_available_unit"
	outcomeKeyConflict = "idempotency_conflict"
)

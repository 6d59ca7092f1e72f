package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/verticore/liftd/core/metrics"
)

// PromSink records assignments and trips in Prometheus metrics.
type PromSink struct {
	assignments *prometheus.CounterVec
	trips       *prometheus.CounterVec
	eta         prometheus.Histogram
}

// NewPromSink registers sink metrics on the default Prometheus registerer.
// The Prometheus server should be started separately using cfg.PrometheusPort.
func NewPromSink(cfg coremetrics.Config) (coremetrics.MetricsSink, error) {
	return NewPromSinkWithRegistry(cfg, prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(_ coremetrics.Config, reg prometheus.Registerer) (coremetrics.MetricsSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	assignments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "liftd_sink_assignments_total",
		Help: "Assignments recorded per elevator",
	}, []string{"elevator_id"})
	trips := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "liftd_sink_trips_total",
		Help: "Terminal rides recorded per elevator and outcome",
	}, []string{"elevator_id", "completed"})
	eta := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "liftd_sink_eta_seconds",
		Help:    "Promised estimated arrival times",
		Buckets: prometheus.ExponentialBuckets(1, 2, 8),
	})

	if err := reg.Register(assignments); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			assignments = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(trips); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			trips = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(eta); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			eta = are.ExistingCollector.(prometheus.Histogram)
		} else {
			return nil, err
		}
	}

	return &PromSink{assignments: assignments, trips: trips, eta: eta}, nil
}

// RecordAssignment increments the counter for each accepted assignment.
func (s *PromSink) RecordAssignment(recs []coremetrics.AssignmentMetric) error {
	for _, r := range recs {
		s.assignments.WithLabelValues(strconv.Itoa(r.ElevatorID)).Inc()
		s.eta.Observe(r.ETASeconds)
	}
	return nil
}

// RecordUnitTrip increments the trip counter per outcome.
func (s *PromSink) RecordUnitTrip(recs []coremetrics.UnitTripMetric) error {
	for _, r := range recs {
		s.trips.WithLabelValues(strconv.Itoa(r.ElevatorID), strconv.FormatBool(r.Completed)).Inc()
	}
	return nil
}

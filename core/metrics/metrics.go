// Package metrics defines the sink contracts used to record dispatch
// observability data. Implementations live in infra/metrics.
package metrics

import "time"

// AssignmentMetric represents one accepted assignment.
type AssignmentMetric struct {
	TaskID     string
	ElevatorID int
	FromFloor  int
	ToFloor    int
	CallerID   string
	ETASeconds float64
	Time       time.Time
}

// UnitTripMetric represents one terminal ride execution.
type UnitTripMetric struct {
	TaskID     string
	ElevatorID int
	FromFloor  int
	ToFloor    int
	Completed  bool
	Reason     string
	Duration   time.Duration
	Time       time.Time
}

// MetricsSink records accepted assignments for observability purposes.
type MetricsSink interface {
	RecordAssignment(recs []AssignmentMetric) error
}

// TripRecorder records terminal rides. Sinks implement it when they can
// represent trip outcomes.
type TripRecorder interface {
	RecordUnitTrip(recs []UnitTripMetric) error
}

// NopSink discards all metrics.
type NopSink struct{}

func (NopSink) RecordAssignment([]AssignmentMetric) error { return nil }
func (NopSink) RecordUnitTrip([]UnitTripMetric) error     { return nil }

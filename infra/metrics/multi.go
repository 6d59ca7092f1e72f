package metrics

import coremetrics "github.com/verticore/liftd/core/metrics"

// MultiSink fans records out to multiple sinks.
type MultiSink struct {
	Sinks []coremetrics.MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...coremetrics.MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordAssignment forwards the records to all sinks, returning the first
// error encountered.
func (m *MultiSink) RecordAssignment(recs []coremetrics.AssignmentMetric) error {
	for _, s := range m.Sinks {
		if err := s.RecordAssignment(recs); err != nil {
			return err
		}
	}
	return nil
}

// RecordUnitTrip forwards trip records to sinks that support them.
func (m *MultiSink) RecordUnitTrip(recs []coremetrics.UnitTripMetric) error {
	for _, s := range m.Sinks {
		if tr, ok := s.(coremetrics.TripRecorder); ok {
			if err := tr.RecordUnitTrip(recs); err != nil {
				return err
			}
		}
	}
	return nil
}

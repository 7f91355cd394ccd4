package metrics

import "errors"

// MultiSink fans events out to several sinks.
type MultiSink struct {
	Sinks []Sink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...Sink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordStudy forwards the event to every sink, even after a failure, and
// joins the errors.
func (m *MultiSink) RecordStudy(ev StudyEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		if err := s.RecordStudy(ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

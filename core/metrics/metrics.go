package metrics

import (
	"time"

	"github.com/kilianp07/dcopf/core/optim"
)

// StudyEvent summarises one study outcome.
type StudyEvent struct {
	StudyID string
	Network string
	Status  optim.Status
	// Error is the failure text of a non-optimal study.
	Error         string
	SolveDuration time.Duration
	TotalDuration time.Duration
	TotalCost     float64
	// LMPs, Flows and CongestionRents are keyed by bus and line ID and are
	// empty unless the study is optimal.
	LMPs            map[string]float64
	Flows           map[string]float64
	CongestionRents map[string]float64
	Warnings        int
	Time            time.Time
}

// Optimal reports whether the study produced a dispatch.
func (e StudyEvent) Optimal() bool { return e.Status == optim.StatusOptimal }

// Sink records study events for observability purposes.
type Sink interface {
	RecordStudy(ev StudyEvent) error
}

// NopSink discards every event.
type NopSink struct{}

func (NopSink) RecordStudy(StudyEvent) error { return nil }

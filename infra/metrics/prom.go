package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/dcopf/core/metrics"
)

// PromSink records study outcomes in Prometheus metrics.
type PromSink struct {
	studies   *prometheus.CounterVec
	duration  prometheus.Histogram
	lmp       *prometheus.GaugeVec
	flow      *prometheus.GaugeVec
	rent      *prometheus.GaugeVec
	totalCost *prometheus.GaugeVec
}

// NewPromSink registers study metrics on the default Prometheus registerer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer. Collectors
// already registered by an earlier sink are reused.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{
		studies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dcopf_studies_total",
			Help: "Total number of studies by solve status",
		}, []string{"status"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "dcopf_solve_duration_seconds",
			Help:    "Time spent in the LP solver",
			Buckets: prometheus.DefBuckets,
		}),
		lmp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dcopf_bus_lmp",
			Help: "Locational marginal price of the last optimal study",
		}, []string{"network", "bus"}),
		flow: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dcopf_line_flow_mw",
			Help: "Active power flow from the from-bus to the to-bus",
		}, []string{"network", "line"}),
		rent: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dcopf_line_congestion_rent",
			Help: "Shadow price of the binding line limit",
		}, []string{"network", "line"}),
		totalCost: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dcopf_total_cost",
			Help: "Objective value of the last optimal study",
		}, []string{"network"}),
	}
	var err error
	if s.studies, err = register(reg, s.studies); err != nil {
		return nil, err
	}
	if s.duration, err = register(reg, s.duration); err != nil {
		return nil, err
	}
	if s.lmp, err = register(reg, s.lmp); err != nil {
		return nil, err
	}
	if s.flow, err = register(reg, s.flow); err != nil {
		return nil, err
	}
	if s.rent, err = register(reg, s.rent); err != nil {
		return nil, err
	}
	if s.totalCost, err = register(reg, s.totalCost); err != nil {
		return nil, err
	}
	return s, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(C); ok {
			return existing, nil
		}
	}
	return c, err
}

// RecordStudy counts the study and, when optimal, publishes its prices and
// flows.
func (s *PromSink) RecordStudy(ev coremetrics.StudyEvent) error {
	s.studies.WithLabelValues(ev.Status.String()).Inc()
	if ev.SolveDuration > 0 {
		s.duration.Observe(ev.SolveDuration.Seconds())
	}
	if !ev.Optimal() {
		return nil
	}
	s.totalCost.WithLabelValues(ev.Network).Set(ev.TotalCost)
	for bus, v := range ev.LMPs {
		s.lmp.WithLabelValues(ev.Network, bus).Set(v)
	}
	for line, v := range ev.Flows {
		s.flow.WithLabelValues(ev.Network, line).Set(v)
	}
	for line, v := range ev.CongestionRents {
		s.rent.WithLabelValues(ev.Network, line).Set(v)
	}
	return nil
}

// Package app wires configuration into a study runner: the configured solver
// behind its license guard, the metrics sinks and the optional Prometheus
// endpoints.
package app

import (
	"context"
	"fmt"

	"github.com/kilianp07/dcopf/config"
	coremetrics "github.com/kilianp07/dcopf/core/metrics"
	"github.com/kilianp07/dcopf/core/optim"
	"github.com/kilianp07/dcopf/core/study"
	"github.com/kilianp07/dcopf/infra/logger"
	"github.com/kilianp07/dcopf/infra/metrics"
	_ "github.com/kilianp07/dcopf/infra/mqtt"
	_ "github.com/kilianp07/dcopf/infra/simplex"
	"github.com/kilianp07/dcopf/internal/netfile"
)

// Service runs batches of network files.
type Service struct {
	Runner *study.Runner
	sink   coremetrics.Sink
	cfg    *config.Config
	log    logger.Logger
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.New("service")
	solver, err := optim.NewSolver(cfg.Solver.Module())
	if err != nil {
		return nil, fmt.Errorf("solver: %w", err)
	}
	solver = optim.WithLicenses(solver, cfg.Solver.Licenses)

	sink, err := coremetrics.NewSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, fmt.Errorf("metrics sinks: %w", err)
	}
	runner, err := study.NewRunner(solver,
		study.WithLogger(logger.New("study")),
		study.WithSink(sink),
		study.WithTimeout(cfg.Solver.Timeout()),
		study.WithParallelism(cfg.Study.Parallelism),
		study.WithResultOptions(cfg.Results),
	)
	if err != nil {
		return nil, err
	}
	return &Service{Runner: runner, sink: sink, cfg: cfg, log: logg}, nil
}

// Run solves every network file and pushes the collected metrics when a
// Pushgateway is configured. Outcomes follow the order of files.
func (s *Service) Run(ctx context.Context, files []*netfile.File) []study.Outcome {
	if addr := s.cfg.Metrics.PrometheusAddr; addr != "" {
		srvCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go func() {
			if err := metrics.StartPromServer(srvCtx, addr, nil); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
	studies := make([]study.Study, len(files))
	for i, f := range files {
		studies[i] = study.Study{Name: f.Name, Network: f.Network}
	}
	s.log.Infof("running %d studies with %s", len(studies), s.cfg.Solver.Type)
	outcomes := s.Runner.RunAll(ctx, studies)
	if err := metrics.Push(ctx, s.cfg.Metrics.Pushgateway, nil); err != nil {
		s.log.Errorf("pushgateway: %v", err)
	}
	return outcomes
}

// Close releases resources held by the configured sinks.
func (s *Service) Close() {
	closeSink(s.sink)
}

func closeSink(sink coremetrics.Sink) {
	switch v := sink.(type) {
	case *coremetrics.MultiSink:
		for _, inner := range v.Sinks {
			closeSink(inner)
		}
	case interface{ Close() }:
		v.Close()
	}
}

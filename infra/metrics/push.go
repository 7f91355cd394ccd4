package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	coremetrics "github.com/kilianp07/dcopf/core/metrics"
)

// Push sends the gatherer's metrics to the configured Pushgateway. It is a
// no-op when no URL is set. A nil gatherer pushes the default registry.
func Push(ctx context.Context, cfg coremetrics.PushConfig, g prometheus.Gatherer) error {
	if cfg.URL == "" {
		return nil
	}
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	job := cfg.Job
	if job == "" {
		job = "dcopf"
	}
	if err := push.New(cfg.URL, job).Gatherer(g).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics to %s: %w", cfg.URL, err)
	}
	return nil
}

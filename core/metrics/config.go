package metrics

import (
	"fmt"

	"github.com/kilianp07/dcopf/core/factory"
)

// Config defines settings for metrics sinks.
type Config struct {
	Sinks []factory.ModuleConfig `json:"sinks"`
	// PrometheusAddr, when set, serves the default registry on /metrics.
	PrometheusAddr string     `json:"prometheus_addr"`
	Pushgateway    PushConfig `json:"pushgateway"`
}

// PushConfig points at a Prometheus Pushgateway receiving batch results.
type PushConfig struct {
	URL string `json:"url"`
	Job string `json:"job"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.Pushgateway.Job == "" {
		c.Pushgateway.Job = "dcopf"
	}
}

// Validate rejects sinks without a type.
func (c Config) Validate() error {
	for i, s := range c.Sinks {
		if s.Type == "" {
			return fmt.Errorf("metrics: sink %d has no type", i)
		}
	}
	return nil
}

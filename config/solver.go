package config

import (
	"fmt"
	"math"
	"runtime"
	"time"

	"github.com/kilianp07/dcopf/core/factory"
	"github.com/kilianp07/dcopf/infra/simplex"
)

// SolverConfig selects the LP back-end.
type SolverConfig struct {
	// Type is the registered solver name.
	Type string         `json:"type"`
	Conf map[string]any `json:"conf"`
	// TimeoutSeconds bounds each solve; zero disables the deadline.
	TimeoutSeconds float64 `json:"timeout_seconds"`
	// Licenses caps concurrent solves; zero leaves them uncapped.
	Licenses int64 `json:"licenses"`
}

// SetDefaults applies sane defaults.
func (c *SolverConfig) SetDefaults() {
	if c.Type == "" {
		c.Type = simplex.Name
	}
}

// Validate checks mandatory fields.
func (c SolverConfig) Validate() error {
	if c.Type == "" {
		return fmt.Errorf("solver: type is required")
	}
	if c.TimeoutSeconds < 0 || math.IsNaN(c.TimeoutSeconds) || math.IsInf(c.TimeoutSeconds, 0) {
		return fmt.Errorf("solver: timeout_seconds must be a finite non-negative number")
	}
	if c.Licenses < 0 {
		return fmt.Errorf("solver: licenses must not be negative")
	}
	return nil
}

// Module returns the registry entry for the configured solver.
func (c SolverConfig) Module() factory.ModuleConfig {
	return factory.ModuleConfig{Type: c.Type, Conf: c.Conf}
}

// Timeout converts TimeoutSeconds to a duration.
func (c SolverConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds * float64(time.Second))
}

// StudyConfig tunes batch execution.
type StudyConfig struct {
	// Parallelism bounds concurrently running studies.
	Parallelism int `json:"parallelism"`
}

// SetDefaults applies sane defaults.
func (c *StudyConfig) SetDefaults() {
	if c.Parallelism <= 0 {
		c.Parallelism = runtime.NumCPU()
	}
}

// Validate checks mandatory fields.
func (c StudyConfig) Validate() error {
	if c.Parallelism <= 0 {
		return fmt.Errorf("study: parallelism must be positive")
	}
	return nil
}

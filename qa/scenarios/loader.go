// Package scenarios runs regression dispatch studies described in YAML files
// against their expected outcome.
package scenarios

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type Expected struct {
	Status    string             `yaml:"status"`
	TotalCost *float64           `yaml:"total_cost,omitempty"`
	Outputs   map[string]float64 `yaml:"outputs,omitempty"`
	LMPs      map[string]float64 `yaml:"lmps,omitempty"`
	Flows     map[string]float64 `yaml:"flows,omitempty"`
	Congested []string           `yaml:"congested,omitempty"`
}

type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	// Network is a network file path, relative to the scenario file.
	Network   string   `yaml:"network"`
	Tolerance float64  `yaml:"tolerance,omitempty"`
	Expected  Expected `yaml:"expected"`
}

// Load reads a scenario and resolves its network path.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, err
	}
	if sc.Network != "" && !filepath.IsAbs(sc.Network) {
		sc.Network = filepath.Join(filepath.Dir(path), sc.Network)
	}
	if sc.Tolerance <= 0 {
		sc.Tolerance = 1e-6
	}
	return &sc, nil
}

package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/dcopf/core/metrics"
	"github.com/kilianp07/dcopf/core/results"
)

// EnvPrefix prefixes environment overrides, with "__" separating sections:
// DCOPF_SOLVER__TIMEOUT_SECONDS sets solver.timeout_seconds.
const EnvPrefix = "DCOPF_"

type Config struct {
	Solver  SolverConfig    `json:"solver"`
	Results results.Options `json:"results"`
	Study   StudyConfig     `json:"study"`
	Metrics metrics.Config  `json:"metrics"`
	Logging LoggingConfig   `json:"logging"`
}

// Load reads the configuration file at path, applies environment overrides
// and defaults, and validates the result. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if path != "" {
		parser, err := parserFor(path)
		if err != nil {
			return nil, err
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}
	// Optional environment overrides
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), strings.ToLower(EnvPrefix))
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func parserFor(path string) (koanf.Parser, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return yaml.Parser(), nil
	case ".json":
		return json.Parser(), nil
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
}

// SetDefaults applies the defaults of every section.
func (c *Config) SetDefaults() {
	c.Solver.SetDefaults()
	c.Results.SetDefaults()
	c.Study.SetDefaults()
	c.Metrics.SetDefaults()
	c.Logging.SetDefaults()
}

// Validate checks every section.
func (c Config) Validate() error {
	if err := c.Solver.Validate(); err != nil {
		return err
	}
	if err := c.Results.Validate(); err != nil {
		return err
	}
	if err := c.Study.Validate(); err != nil {
		return err
	}
	if err := c.Metrics.Validate(); err != nil {
		return err
	}
	return c.Logging.Validate()
}

package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeFile(t, "config.yaml", `solver:
  type: gonum-simplex
  timeout_seconds: 2.5
  licenses: 2
  conf:
    tolerance: 1e-10
results:
  balance_tolerance_mw: 0.001
  dual_tolerance: 1e-8
study:
  parallelism: 3
metrics:
  sinks:
    - type: nop
    - type: prometheus
  pushgateway:
    url: http://localhost:9091
logging:
  level: debug
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	checks := []struct {
		name string
		got  any
		want any
	}{
		{"solver.type", cfg.Solver.Type, "gonum-simplex"},
		{"solver.timeout", cfg.Solver.Timeout(), 2500 * time.Millisecond},
		{"solver.licenses", cfg.Solver.Licenses, int64(2)},
		{"solver.conf", cfg.Solver.Module().Conf["tolerance"], 1e-10},
		{"results.balance", cfg.Results.BalanceToleranceMW, 0.001},
		{"results.dual", cfg.Results.DualTolerance, 1e-8},
		{"study.parallelism", cfg.Study.Parallelism, 3},
		{"metrics.sinks", len(cfg.Metrics.Sinks), 2},
		{"metrics.sink1", cfg.Metrics.Sinks[1].Type, "prometheus"},
		{"metrics.push.url", cfg.Metrics.Pushgateway.URL, "http://localhost:9091"},
		{"metrics.push.job", cfg.Metrics.Pushgateway.Job, "dcopf"},
		{"logging.level", cfg.Logging.ZerologLevel(), zerolog.DebugLevel},
	}
	for _, c := range checks {
		assert.Equal(t, c.want, c.got, c.name)
	}
}

func TestLoadJSON(t *testing.T) {
	path := writeFile(t, "config.json", `{"solver":{"timeout_seconds":1},"study":{"parallelism":1}}`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "gonum-simplex", cfg.Solver.Type)
	assert.Equal(t, time.Second, cfg.Solver.Timeout())
	assert.Equal(t, 1, cfg.Study.Parallelism)
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "gonum-simplex", cfg.Solver.Type)
	assert.Zero(t, cfg.Solver.Timeout())
	assert.Equal(t, runtime.NumCPU(), cfg.Study.Parallelism)
	assert.Positive(t, cfg.Results.BalanceToleranceMW)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Empty(t, cfg.Metrics.Sinks)
}

func TestLoadEnvOverride(t *testing.T) {
	path := writeFile(t, "config.yaml", "solver:\n  timeout_seconds: 10\n")
	t.Setenv("DCOPF_SOLVER__TIMEOUT_SECONDS", "3")
	t.Setenv("DCOPF_STUDY__PARALLELISM", "5")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, cfg.Solver.Timeout())
	assert.Equal(t, 5, cfg.Study.Parallelism)
}

func TestLoadErrors(t *testing.T) {
	tests := map[string]string{
		"unsupported extension": writeFile(t, "config.toml", "x = 1"),
		"missing file":          filepath.Join(t.TempDir(), "missing.yaml"),
		"negative timeout":      writeFile(t, "neg.yaml", "solver:\n  timeout_seconds: -1\n"),
		"negative licenses":     writeFile(t, "lic.yaml", "solver:\n  licenses: -2\n"),
		"bad level":             writeFile(t, "lvl.yaml", "logging:\n  level: loud\n"),
		"sink without type":     writeFile(t, "sink.yaml", "metrics:\n  sinks:\n    - conf: {}\n"),
	}
	for name, path := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

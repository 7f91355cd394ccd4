package metrics_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/dcopf/core/factory"
	metrics "github.com/kilianp07/dcopf/core/metrics"
	_ "github.com/kilianp07/dcopf/infra/metrics"
)

func TestNewSink_Builtins(t *testing.T) {
	s, err := metrics.NewSink([]factory.ModuleConfig{{Type: "nop"}})
	require.NoError(t, err)
	assert.Equal(t, metrics.NopSink{}, s)

	_, err = metrics.NewSink([]factory.ModuleConfig{{Type: "missing"}})
	assert.ErrorIs(t, err, factory.ErrUnknownModule)
	assert.Contains(t, metrics.SinkNames(), "prometheus")
	assert.Contains(t, metrics.SinkNames(), "influx")
}

func TestNewSink_Multi(t *testing.T) {
	s, err := metrics.NewSink(nil)
	require.NoError(t, err)
	assert.IsType(t, metrics.NopSink{}, s)

	var cfg metrics.Config
	require.NoError(t, json.Unmarshal([]byte(`{"sinks":[{"type":"nop"},{"type":"nop"}]}`), &cfg))
	require.NoError(t, cfg.Validate())
	s, err = metrics.NewSink(cfg.Sinks)
	require.NoError(t, err)
	multi, ok := s.(*metrics.MultiSink)
	require.True(t, ok)
	assert.Len(t, multi.Sinks, 2)
}

type recordSink struct {
	count int
	err   error
}

func (r *recordSink) RecordStudy(metrics.StudyEvent) error {
	r.count++
	return r.err
}

func TestMultiSink_ForwardsPastFailures(t *testing.T) {
	boom := errors.New("boom")
	s1 := &recordSink{err: boom}
	s2 := &recordSink{}
	m := metrics.NewMultiSink(s1, s2)

	err := m.RecordStudy(metrics.StudyEvent{StudyID: "s"})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, s1.count)
	assert.Equal(t, 1, s2.count)
}

func TestConfigValidate(t *testing.T) {
	cfg := metrics.Config{Sinks: []factory.ModuleConfig{{}}}
	assert.Error(t, cfg.Validate())
	cfg.SetDefaults()
	assert.Equal(t, "dcopf", cfg.Pushgateway.Job)
}

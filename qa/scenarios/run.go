package scenarios

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/dcopf/core/optim"
	"github.com/kilianp07/dcopf/core/study"
	"github.com/kilianp07/dcopf/infra/logger"
	"github.com/kilianp07/dcopf/infra/metrics"
	"github.com/kilianp07/dcopf/infra/simplex"
	"github.com/kilianp07/dcopf/internal/netfile"
)

// RunScenario solves the scenario's network and checks every expectation.
func RunScenario(t *testing.T, sc *Scenario) {
	t.Helper()
	reg := prometheus.NewRegistry()
	sink, err := metrics.NewPromSinkWithRegistry(reg)
	require.NoError(t, err)

	f, err := netfile.Load(sc.Network)
	require.NoError(t, err)
	runner, err := study.NewRunner(simplex.New(simplex.Config{}),
		study.WithSink(sink),
		study.WithLogger(logger.NopLogger{}),
	)
	require.NoError(t, err)

	res, err := runner.Run(context.Background(), study.Study{Name: sc.Name, Network: f.Network})
	status := optim.StatusOf(err)
	assert.Equal(t, sc.Expected.Status, status.String(), "status (err: %v)", err)
	count, err := testutil.GatherAndCount(reg, "dcopf_studies_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	if status != optim.StatusOptimal {
		assert.Nil(t, res)
		return
	}

	tol := sc.Tolerance
	if sc.Expected.TotalCost != nil {
		assert.InDelta(t, *sc.Expected.TotalCost, res.TotalCost, tol, "total cost")
	}
	for id, want := range sc.Expected.Outputs {
		g, ok := res.Generator(id)
		if assert.True(t, ok, "generator %s", id) {
			assert.InDelta(t, want, g.OutputMW, tol, "output of %s", id)
		}
	}
	lmps := res.LMPs()
	for bus, want := range sc.Expected.LMPs {
		assert.InDelta(t, want, lmps[bus], tol, "lmp at %s", bus)
	}
	for id, want := range sc.Expected.Flows {
		l, ok := res.Line(id)
		if assert.True(t, ok, "line %s", id) {
			assert.InDelta(t, want, l.FlowMW, tol, "flow on %s", id)
		}
	}
	if sc.Expected.Congested != nil {
		assert.ElementsMatch(t, sc.Expected.Congested, res.CongestedLines())
	}
	assert.InDelta(t, res.Balance.LoadMW, res.Balance.GenerationMW, tol, "balance")
}

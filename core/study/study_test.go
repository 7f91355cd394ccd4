package study_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/dcopf/core/metrics"
	"github.com/kilianp07/dcopf/core/network"
	"github.com/kilianp07/dcopf/core/optim"
	"github.com/kilianp07/dcopf/core/results"
	"github.com/kilianp07/dcopf/core/study"
	"github.com/kilianp07/dcopf/infra/simplex"
	"github.com/kilianp07/dcopf/internal/testnet"
)

type recordSink struct {
	mu     sync.Mutex
	events []metrics.StudyEvent
	err    error
}

func (s *recordSink) RecordStudy(ev metrics.StudyEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return s.err
}

func newRunner(t *testing.T, opts ...study.Option) *study.Runner {
	t.Helper()
	r, err := study.NewRunner(simplex.New(simplex.Config{}), opts...)
	require.NoError(t, err)
	return r
}

func output(t *testing.T, res *results.DispatchResult, gen string) float64 {
	t.Helper()
	g, ok := res.Generator(gen)
	require.True(t, ok, gen)
	return g.OutputMW
}

func TestScenarioUncongested(t *testing.T) {
	res, err := newRunner(t).Run(context.Background(), study.Study{Network: testnet.Uncongested()})
	require.NoError(t, err)

	assert.InDelta(t, 180, output(t, res, "g1"), 1e-6)
	assert.InDelta(t, 0, output(t, res, "g2"), 1e-6)
	assert.InDelta(t, 0, output(t, res, "g3"), 1e-6)
	assert.InDelta(t, 1800, res.TotalCost, 1e-6)
	for _, l := range res.Lines {
		assert.NotZero(t, l.FlowMW, l.Line)
		assert.False(t, l.Congested, l.Line)
	}
	assert.Empty(t, res.CongestedLines())
	assert.NotEmpty(t, res.StudyID)
}

func TestScenarioCongested(t *testing.T) {
	res, err := newRunner(t).Run(context.Background(), study.Study{Network: testnet.Congested()})
	require.NoError(t, err)

	assert.InDelta(t, 10, output(t, res, "g1"), 1e-6)
	assert.InDelta(t, 170, output(t, res, "g2"), 1e-6)
	assert.InDelta(t, 0, output(t, res, "g3"), 1e-6)
	assert.InDelta(t, 3500, res.TotalCost, 1e-6)

	l13, ok := res.Line("1-3")
	require.True(t, ok)
	assert.InDelta(t, 10, l13.FlowMW, 1e-6)
	assert.True(t, l13.AtLimit)
	assert.True(t, l13.Congested)
	assert.Greater(t, l13.CongestionRent, 0.0)
	assert.Equal(t, []string{"1-3"}, res.CongestedLines())

	assert.InDelta(t, 180, res.Balance.GenerationMW, 1e-6)
	assert.InDelta(t, 180, res.Balance.LoadMW, 1e-12)
	assert.False(t, res.Balance.Violated)

	lmp := res.LMPs()
	assert.InDelta(t, 10, lmp["1"], 1e-6)
	assert.InDelta(t, 20, lmp["2"], 1e-6)
	assert.InDelta(t, 30, lmp["3"], 1e-6)
}

func TestLosslessBalance(t *testing.T) {
	nets := map[string]*network.Network{
		"uncongested": testnet.Uncongested(),
		"congested":   testnet.Congested(),
	}
	for name, net := range nets {
		t.Run(name, func(t *testing.T) {
			res, err := newRunner(t).Run(context.Background(), study.Study{Network: net})
			require.NoError(t, err)
			assert.InDelta(t, res.Balance.LoadMW, res.Balance.GenerationMW, 1e-6)
			assert.Empty(t, res.Warnings)
		})
	}
}

func TestUniformPriceWithoutCongestion(t *testing.T) {
	res, err := newRunner(t).Run(context.Background(), study.Study{Network: testnet.Uncongested()})
	require.NoError(t, err)
	// g1 is the only generator providing power, so it sets every price.
	for bus, price := range res.LMPs() {
		assert.InDelta(t, 10, price, 1e-6, bus)
	}
	assert.True(t, res.CongestionSurplus.Abs().LessThan(decimal.NewFromFloat(1e-6)), res.CongestionSurplus.String())
}

func TestCongestionNeverDecreasesCost(t *testing.T) {
	r := newRunner(t)
	free, err := r.Run(context.Background(), study.Study{Network: testnet.Uncongested()})
	require.NoError(t, err)

	for _, limit := range []float64{5, 10, 40, 80, 500} {
		buses, gens, lines := testnet.Triangle()
		for i := range lines {
			lines[i].LimitMW = network.Float(limit)
		}
		net, err := network.New(buses, gens, lines)
		require.NoError(t, err)
		limited, err := r.Run(context.Background(), study.Study{Network: net})
		require.NoError(t, err, "limit %v", limit)
		assert.GreaterOrEqual(t, limited.TotalCost, free.TotalCost-1e-6, "limit %v", limit)
	}
}

func TestIdempotent(t *testing.T) {
	r := newRunner(t)
	net := testnet.Congested()
	a, err := r.Run(context.Background(), study.Study{ID: "same", Network: net})
	require.NoError(t, err)
	b, err := r.Run(context.Background(), study.Study{ID: "same", Network: net})
	require.NoError(t, err)
	a.SolveDuration, b.SolveDuration = 0, 0
	assert.Equal(t, a, b)
}

func TestFixedOutputGenerator(t *testing.T) {
	buses, gens, lines := testnet.Triangle()
	gens[2].MinMW = 50
	gens[2].MaxMW = network.Float(50)
	net, err := network.New(buses, gens, lines)
	require.NoError(t, err)

	res, err := newRunner(t).Run(context.Background(), study.Study{Network: net})
	require.NoError(t, err)
	assert.InDelta(t, 50, output(t, res, "g3"), 1e-6)
	assert.InDelta(t, 130, output(t, res, "g1"), 1e-6)
	assert.InDelta(t, 130*10+50*100, res.TotalCost, 1e-6)
	g3, _ := res.Generator("g3")
	assert.False(t, g3.Marginal)
}

func TestInfeasibleStudy(t *testing.T) {
	buses, gens, lines := testnet.Triangle()
	gens[0].MaxMW = network.Float(50)
	gens[1].MaxMW = network.Float(50)
	gens[2].MaxMW = network.Float(10)
	net, err := network.New(buses, gens, lines)
	require.NoError(t, err)

	sink := &recordSink{}
	res, err := newRunner(t, study.WithSink(sink)).Run(context.Background(), study.Study{Name: "short", Network: net})
	assert.Nil(t, res)
	require.Error(t, err)
	assert.ErrorIs(t, err, optim.ErrInfeasible)
	assert.Equal(t, optim.StatusInfeasible, optim.StatusOf(err))

	require.Len(t, sink.events, 1)
	ev := sink.events[0]
	assert.Equal(t, optim.StatusInfeasible, ev.Status)
	assert.Equal(t, "short", ev.Network)
	assert.NotEmpty(t, ev.Error)
	assert.Empty(t, ev.LMPs)
}

func TestNoGenerators(t *testing.T) {
	buses, _, lines := testnet.Triangle()
	net, err := network.New(buses, nil, lines)
	require.NoError(t, err)

	res, err := newRunner(t).Run(context.Background(), study.Study{Network: net})
	assert.Nil(t, res)
	assert.ErrorIs(t, err, optim.ErrInfeasible)
	assert.Equal(t, optim.StatusInfeasible, optim.StatusOf(err))

	for i := range buses {
		buses[i].LoadMW = 0
	}
	idle, err := network.New(buses, nil, lines)
	require.NoError(t, err)
	res, err = newRunner(t).Run(context.Background(), study.Study{Network: idle})
	require.NoError(t, err)
	assert.Equal(t, optim.StatusOptimal, res.Status)
	assert.InDelta(t, 0, res.TotalCost, 1e-9)
	for _, l := range res.Lines {
		assert.InDelta(t, 0, l.FlowMW, 1e-9, l.Line)
	}
	for bus, price := range res.LMPs() {
		assert.InDelta(t, 0, price, 1e-9, bus)
	}
}

func TestCongestedReversedLine(t *testing.T) {
	buses, gens, lines := testnet.Triangle()
	lines[1] = network.Line{ID: "3-1", From: "3", To: "1", Susceptance: 1, VoltageKV: 230, LimitMW: network.Float(10)}
	net, err := network.New(buses, gens, lines)
	require.NoError(t, err)

	res, err := newRunner(t).Run(context.Background(), study.Study{Network: net})
	require.NoError(t, err)
	assert.InDelta(t, 3500, res.TotalCost, 1e-6)

	l31, ok := res.Line("3-1")
	require.True(t, ok)
	assert.InDelta(t, -10, l31.FlowMW, 1e-6)
	assert.True(t, l31.AtLimit)
	assert.True(t, l31.Congested)
	assert.InDelta(t, 30, l31.CongestionRent, 1e-6)
	assert.Equal(t, []string{"3-1"}, res.CongestedLines())

	lmp := res.LMPs()
	assert.InDelta(t, 10, lmp["1"], 1e-6)
	assert.InDelta(t, 20, lmp["2"], 1e-6)
	assert.InDelta(t, 30, lmp["3"], 1e-6)
}

func TestSolverStatusPropagation(t *testing.T) {
	tests := []struct {
		name   string
		solver optim.SolverFunc
		want   error
	}{
		{"unbounded", func(context.Context, *optim.Problem) (*optim.Solution, error) {
			return nil, optim.NewStatusError(optim.StatusUnbounded, "objective unbounded below")
		}, optim.ErrUnbounded},
		{"numerical", func(context.Context, *optim.Problem) (*optim.Solution, error) {
			return nil, optim.NewStatusError(optim.StatusNumericalIssue, "singular basis")
		}, optim.ErrNumericalIssue},
		{"non-optimal solution", func(context.Context, *optim.Problem) (*optim.Solution, error) {
			return &optim.Solution{Status: optim.StatusInfeasible, Message: "no point"}, nil
		}, optim.ErrInfeasible},
		{"no solution", func(context.Context, *optim.Problem) (*optim.Solution, error) {
			return nil, nil
		}, optim.ErrUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := study.NewRunner(tt.solver)
			require.NoError(t, err)
			res, err := r.Run(context.Background(), study.Study{Network: testnet.Uncongested()})
			assert.Nil(t, res)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestTimeout(t *testing.T) {
	blocking := optim.SolverFunc(func(ctx context.Context, _ *optim.Problem) (*optim.Solution, error) {
		<-ctx.Done()
		return nil, optim.TimeoutError(ctx.Err())
	})
	r, err := study.NewRunner(blocking, study.WithTimeout(10*time.Millisecond))
	require.NoError(t, err)
	res, err := r.Run(context.Background(), study.Study{Network: testnet.Uncongested()})
	assert.Nil(t, res)
	assert.ErrorIs(t, err, optim.ErrTimeout)
}

func TestSinkErrorDoesNotFailStudy(t *testing.T) {
	sink := &recordSink{err: errors.New("sink down")}
	res, err := newRunner(t, study.WithSink(sink)).Run(context.Background(), study.Study{ID: "s1", Network: testnet.Congested()})
	require.NoError(t, err)
	require.NotNil(t, res)

	require.Len(t, sink.events, 1)
	ev := sink.events[0]
	assert.Equal(t, "s1", ev.StudyID)
	assert.Equal(t, optim.StatusOptimal, ev.Status)
	assert.InDelta(t, 3500, ev.TotalCost, 1e-6)
	assert.InDelta(t, 30, ev.LMPs["3"], 1e-6)
	assert.InDelta(t, 10, ev.Flows["1-3"], 1e-6)
	assert.Greater(t, ev.CongestionRents["1-3"], 0.0)
}

func TestRunAll(t *testing.T) {
	buses, gens, lines := testnet.Triangle()
	gens[0].MaxMW = network.Float(1)
	gens[1].MaxMW = network.Float(1)
	gens[2].MaxMW = network.Float(1)
	short, err := network.New(buses, gens, lines)
	require.NoError(t, err)

	sink := &recordSink{}
	r := newRunner(t, study.WithSink(sink), study.WithParallelism(2))
	outs := r.RunAll(context.Background(), []study.Study{
		{Name: "free", Network: testnet.Uncongested()},
		{Name: "short", Network: short},
		{Name: "limited", Network: testnet.Congested()},
		{Name: "missing"},
	})
	require.Len(t, outs, 4)

	assert.Equal(t, optim.StatusOptimal, outs[0].Status)
	assert.InDelta(t, 1800, outs[0].Result.TotalCost, 1e-6)
	assert.Equal(t, optim.StatusInfeasible, outs[1].Status)
	assert.Nil(t, outs[1].Result)
	assert.ErrorIs(t, outs[1].Err, optim.ErrInfeasible)
	assert.Equal(t, optim.StatusOptimal, outs[2].Status)
	assert.InDelta(t, 3500, outs[2].Result.TotalCost, 1e-6)
	assert.ErrorIs(t, outs[3].Err, network.ErrInvalidNetwork)

	ids := map[string]bool{}
	for i, o := range outs {
		assert.NotEmpty(t, o.StudyID, i)
		ids[o.StudyID] = true
	}
	assert.Len(t, ids, 4)
	assert.Len(t, sink.events, 4)
}

func TestLicensedRunAll(t *testing.T) {
	solver := optim.WithLicenses(simplex.New(simplex.Config{}), 1)
	r, err := study.NewRunner(solver, study.WithParallelism(4))
	require.NoError(t, err)
	studies := make([]study.Study, 6)
	for i := range studies {
		studies[i] = study.Study{Network: testnet.Congested()}
	}
	for _, o := range r.RunAll(context.Background(), studies) {
		require.NoError(t, o.Err)
		assert.InDelta(t, 3500, o.Result.TotalCost, 1e-6)
	}
}

func TestNewRunnerRequiresSolver(t *testing.T) {
	_, err := study.NewRunner(nil)
	assert.Error(t, err)
}

// Package study runs dispatch studies: it formulates the DC-OPF of a network,
// solves it and extracts the dispatch result, reporting every outcome to a
// metrics sink. Independent studies can be run in parallel with RunAll.
package study

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kilianp07/dcopf/core/logger"
	"github.com/kilianp07/dcopf/core/metrics"
	"github.com/kilianp07/dcopf/core/network"
	"github.com/kilianp07/dcopf/core/opf"
	"github.com/kilianp07/dcopf/core/optim"
	"github.com/kilianp07/dcopf/core/results"
)

// Study is one network to dispatch. An empty ID is replaced by a random one.
type Study struct {
	ID      string
	Name    string
	Network *network.Network
}

// Outcome is the result of one study in a batch. Result is nil unless Status
// is StatusOptimal.
type Outcome struct {
	StudyID       string
	Name          string
	Status        optim.Status
	Result        *results.DispatchResult
	Err           error
	SolveDuration time.Duration
	TotalDuration time.Duration
}

// Runner executes studies with a shared solver and sink.
type Runner struct {
	solver      optim.Solver
	opts        results.Options
	timeout     time.Duration
	parallelism int
	sink        metrics.Sink
	log         logger.Logger
	now         func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option { return func(r *Runner) { r.log = logger.OrNop(l) } }

// WithSink sets the sink receiving one event per study.
func WithSink(s metrics.Sink) Option {
	return func(r *Runner) {
		if s != nil {
			r.sink = s
		}
	}
}

// WithTimeout bounds each solve. Zero disables the deadline.
func WithTimeout(d time.Duration) Option { return func(r *Runner) { r.timeout = d } }

// WithParallelism bounds the number of studies RunAll runs at once.
func WithParallelism(n int) Option { return func(r *Runner) { r.parallelism = n } }

// WithResultOptions sets the extraction tolerances.
func WithResultOptions(o results.Options) Option { return func(r *Runner) { r.opts = o } }

// NewRunner returns a Runner solving with s.
func NewRunner(s optim.Solver, opts ...Option) (*Runner, error) {
	if s == nil {
		return nil, errors.New("study: solver is required")
	}
	r := &Runner{
		solver:      s,
		parallelism: 1,
		sink:        metrics.NopSink{},
		log:         logger.NopLogger{},
		now:         time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	if r.parallelism <= 0 {
		r.parallelism = 1
	}
	r.opts.SetDefaults()
	return r, nil
}

// Run dispatches a single study. A non-optimal solve returns no result and an
// error matching the status sentinel, e.g. optim.ErrInfeasible.
func (r *Runner) Run(ctx context.Context, st Study) (*results.DispatchResult, error) {
	out := r.run(ctx, st)
	return out.Result, out.Err
}

// RunAll dispatches the studies concurrently. Outcomes are returned in input
// order; a failed study does not stop the others.
func (r *Runner) RunAll(ctx context.Context, studies []Study) []Outcome {
	outcomes := make([]Outcome, len(studies))
	var g errgroup.Group
	g.SetLimit(r.parallelism)
	for i, st := range studies {
		i, st := i, st
		g.Go(func() error {
			outcomes[i] = r.run(ctx, st)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

func (r *Runner) run(ctx context.Context, st Study) Outcome {
	start := r.now()
	if st.ID == "" {
		st.ID = uuid.NewString()
	}
	out := Outcome{StudyID: st.ID, Name: st.Name}
	res, solveDur, err := r.dispatch(ctx, st)
	out.SolveDuration = solveDur
	out.TotalDuration = r.now().Sub(start)
	if err != nil {
		out.Status = optim.StatusOf(err)
		out.Err = fmt.Errorf("study %s: %w", st.label(), err)
		r.log.Errorf("study %s failed with status %s: %v", st.label(), out.Status, err)
	} else {
		res.StudyID = st.ID
		res.SolveDuration = solveDur
		out.Status = res.Status
		out.Result = res
		for _, w := range res.Warnings {
			r.log.Warnf("study %s: %s %s: %s", st.label(), w.Kind, w.Subject, w.Message)
		}
		r.log.Infof("study %s optimal: total cost %.4f, %d congested line(s)", st.label(), res.TotalCost, len(res.CongestedLines()))
	}
	r.record(out)
	return out
}

func (r *Runner) dispatch(ctx context.Context, st Study) (*results.DispatchResult, time.Duration, error) {
	if st.Network == nil {
		return nil, 0, fmt.Errorf("%w: nil network", network.ErrInvalidNetwork)
	}
	form, err := opf.Formulate(st.Network)
	if err != nil {
		return nil, 0, err
	}
	r.log.Debugw("formulated", map[string]any{
		"study":       st.label(),
		"variables":   form.Problem.NumVariables(),
		"constraints": form.Problem.NumConstraints(),
	})
	solveCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		solveCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	begin := r.now()
	sol, err := r.solver.Solve(solveCtx, form.Problem)
	solveDur := r.now().Sub(begin)
	if err != nil {
		return nil, solveDur, err
	}
	if sol == nil {
		return nil, solveDur, optim.NewStatusError(optim.StatusUnknown, "solver returned no solution")
	}
	if sol.Status != optim.StatusOptimal {
		return nil, solveDur, optim.NewStatusError(sol.Status, "%s", sol.Message)
	}
	res, err := results.Extract(form, sol, r.opts)
	if err != nil {
		return nil, solveDur, err
	}
	return res, solveDur, nil
}

func (r *Runner) record(out Outcome) {
	ev := metrics.StudyEvent{
		StudyID:       out.StudyID,
		Network:       out.Name,
		Status:        out.Status,
		SolveDuration: out.SolveDuration,
		TotalDuration: out.TotalDuration,
		Time:          r.now(),
	}
	if out.Err != nil {
		ev.Error = out.Err.Error()
	}
	if res := out.Result; res != nil {
		ev.TotalCost = res.TotalCost
		ev.LMPs = res.LMPs()
		ev.Flows = make(map[string]float64, len(res.Lines))
		ev.CongestionRents = make(map[string]float64, len(res.Lines))
		for _, l := range res.Lines {
			ev.Flows[l.Line] = l.FlowMW
			ev.CongestionRents[l.Line] = l.CongestionRent
		}
		ev.Warnings = len(res.Warnings)
	}
	if err := r.sink.RecordStudy(ev); err != nil {
		r.log.Errorf("record study %s: %v", out.StudyID, err)
	}
}

func (st Study) label() string {
	if st.Name != "" {
		return st.Name
	}
	return st.ID
}

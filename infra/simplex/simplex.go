// Package simplex implements optim.Solver on top of gonum's simplex routine.
//
// gonum only reports primal values, so the adapter solves the Lagrangian dual
// of the problem as a second linear program and reads the constraint
// multipliers from it. Strong duality between the two solves is checked before
// a solution is returned.
package simplex

import (
	"context"
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"

	"github.com/kilianp07/dcopf/core/factory"
	"github.com/kilianp07/dcopf/core/logger"
	"github.com/kilianp07/dcopf/core/optim"
	infralogger "github.com/kilianp07/dcopf/infra/logger"
)

// Name is the registry key of this solver.
const Name = "gonum-simplex"

// rankTol is the relative residual below which an equality row counts as a
// combination of the rows kept before it.
const rankTol = 1e-9

// Config tunes the solver.
type Config struct {
	// Tolerance is handed to lp.Simplex.
	Tolerance float64 `json:"tolerance"`
	// DualityGap is the relative gap between primal and dual objectives above
	// which the solve is reported as a numerical issue.
	DualityGap float64 `json:"duality_gap"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.Tolerance <= 0 {
		c.Tolerance = 1e-9
	}
	if c.DualityGap <= 0 {
		c.DualityGap = 1e-6
	}
}

// Solver solves optim problems with lp.Simplex.
type Solver struct {
	cfg Config
	log logger.Logger
}

// New returns a Solver with defaults applied to cfg.
func New(cfg Config) *Solver {
	cfg.SetDefaults()
	return &Solver{cfg: cfg, log: infralogger.New("simplex")}
}

// WithLogger replaces the solver logger.
func (s *Solver) WithLogger(l logger.Logger) *Solver {
	s.log = logger.OrNop(l)
	return s
}

func init() {
	_ = optim.RegisterSolver(Name, func(conf map[string]any) (optim.Solver, error) {
		var c Config
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return New(c), nil
	})
}

// lpSimplex points to the routine used for both solves. Tests override it to
// simulate back-end failures.
var lpSimplex = lp.Simplex

type outcome struct {
	sol *optim.Solution
	err error
}

// Solve runs the primal and dual solves. The blocking work happens on its own
// goroutine so that ctx can end the call with StatusTimeout.
func (s *Solver) Solve(ctx context.Context, p *optim.Problem) (*optim.Solution, error) {
	if err := ctx.Err(); err != nil {
		return nil, optim.TimeoutError(err)
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: optim.NewStatusError(optim.StatusNumericalIssue, "solver panic: %v", r)}
			}
		}()
		sol, err := s.solve(p)
		done <- outcome{sol: sol, err: err}
	}()
	select {
	case <-ctx.Done():
		// lp.Simplex cannot be interrupted; keep the session until it stops.
		finish := optim.Detach(ctx)
		go func() {
			<-done
			finish()
		}()
		return nil, optim.TimeoutError(ctx.Err())
	case out := <-done:
		return out.sol, out.err
	}
}

// generalForm is min cᵀx subject to Gx <= h and Ax = b with x free.
type generalForm struct {
	c    []float64
	g, a [][]float64
	h, b []float64
	// rows maps each row of G to its origin. cons is -1 for bound rows.
	rows []rowOrigin
	// eqCons lists the constraint index of each row of A.
	eqCons []int
	// dropped lists the constraint index of equality rows removed as
	// redundant. Their dual is 0.
	dropped []int
}

type rowOrigin struct {
	cons int
	sign float64
}

func buildGeneralForm(p *optim.Problem) *generalForm {
	vars := p.Variables()
	col := make(map[string]int, len(vars))
	for j, v := range vars {
		col[v.Name] = j
	}
	n := len(vars)
	f := &generalForm{c: make([]float64, n)}
	for _, t := range p.Objective() {
		f.c[col[t.Var]] += t.Coef
	}
	dense := func(e optim.Expr, sign float64) []float64 {
		row := make([]float64, n)
		for _, t := range e {
			row[col[t.Var]] += sign * t.Coef
		}
		return row
	}
	for i, c := range p.Constraints() {
		switch c.Sense {
		case optim.Equal:
			f.a = append(f.a, dense(c.Expr, 1))
			f.b = append(f.b, c.RHS)
			f.eqCons = append(f.eqCons, i)
		case optim.LessEq:
			f.g = append(f.g, dense(c.Expr, 1))
			f.h = append(f.h, c.RHS)
			f.rows = append(f.rows, rowOrigin{cons: i, sign: 1})
		case optim.GreaterEq:
			f.g = append(f.g, dense(c.Expr, -1))
			f.h = append(f.h, -c.RHS)
			f.rows = append(f.rows, rowOrigin{cons: i, sign: -1})
		}
	}
	for j, v := range vars {
		if !math.IsInf(v.Lower, -1) {
			row := make([]float64, n)
			row[j] = -1
			f.g = append(f.g, row)
			f.h = append(f.h, -v.Lower)
			f.rows = append(f.rows, rowOrigin{cons: -1})
		}
		if !math.IsInf(v.Upper, 1) {
			row := make([]float64, n)
			row[j] = 1
			f.g = append(f.g, row)
			f.h = append(f.h, v.Upper)
			f.rows = append(f.rows, rowOrigin{cons: -1})
		}
	}
	return f
}

// independentRows selects a maximal set of linearly independent rows of a,
// scanning in order with twice-applied modified Gram-Schmidt. For a dropped
// row it checks that b agrees with the combination of kept rows that
// reproduces it; the index of the first disagreeing row is returned as bad,
// or -1 when the system is consistent.
func independentRows(a [][]float64, b []float64) (keep []int, bad int) {
	var basis [][]float64
	var beta []float64
	bScale := math.Max(1, floats.Norm(b, math.Inf(1)))
	var r []float64
	for i, row := range a {
		r = append(r[:0], row...)
		rb := b[i]
		for pass := 0; pass < 2; pass++ {
			for k, q := range basis {
				d := floats.Dot(q, r)
				floats.AddScaled(r, -d, q)
				rb -= d * beta[k]
			}
		}
		norm := floats.Norm(r, 2)
		if norm <= rankTol*math.Max(1, floats.Norm(row, 2)) {
			if math.Abs(rb) > rankTol*bScale*math.Max(1, float64(len(basis))) {
				return keep, i
			}
			continue
		}
		q := make([]float64, len(r))
		floats.ScaleTo(q, 1/norm, r)
		basis = append(basis, q)
		beta = append(beta, rb/norm)
		keep = append(keep, i)
	}
	return keep, -1
}

// reduceEqualities drops redundant rows of A. An inconsistent row makes the
// primal infeasible.
func (f *generalForm) reduceEqualities(cons []optim.Constraint) error {
	keep, bad := independentRows(f.a, f.b)
	if bad >= 0 {
		return optim.NewStatusError(optim.StatusInfeasible,
			"primal: equality %q contradicts the other equalities", cons[f.eqCons[bad]].ID)
	}
	if len(keep) == len(f.a) {
		return nil
	}
	a := make([][]float64, 0, len(keep))
	b := make([]float64, 0, len(keep))
	eq := make([]int, 0, len(keep))
	next := 0
	for i := range f.a {
		if next < len(keep) && keep[next] == i {
			a = append(a, f.a[i])
			b = append(b, f.b[i])
			eq = append(eq, f.eqCons[i])
			next++
			continue
		}
		f.dropped = append(f.dropped, f.eqCons[i])
	}
	f.a, f.b, f.eqCons = a, b, eq
	return nil
}

// toMatrix returns nil for an empty row set so that lp.Convert sees an absent
// block rather than a typed nil.
func toMatrix(rows [][]float64, cols int) mat.Matrix {
	if len(rows) == 0 || cols == 0 {
		return nil
	}
	m := mat.NewDense(len(rows), cols, nil)
	for i, r := range rows {
		m.SetRow(i, r)
	}
	return m
}

// solveFree solves min cᵀx, Gx <= h, Ax = b over free x and returns x.
func (s *Solver) solveFree(c []float64, g mat.Matrix, h []float64, a mat.Matrix, b []float64) (float64, []float64, error) {
	cStd, aStd, bStd := lp.Convert(c, g, h, a, b)
	opt, xStd, err := lpSimplex(cStd, aStd, bStd, s.cfg.Tolerance, nil)
	if err != nil {
		return 0, nil, err
	}
	n := len(c)
	x := make([]float64, n)
	for j := range x {
		x[j] = xStd[j] - xStd[n+j]
	}
	return opt, x, nil
}

func (s *Solver) solve(p *optim.Problem) (*optim.Solution, error) {
	n := p.NumVariables()
	if n == 0 {
		return nil, optim.NewStatusError(optim.StatusUnknown, "problem has no variables")
	}
	f := buildGeneralForm(p)
	cons := p.Constraints()
	if err := f.reduceEqualities(cons); err != nil {
		return nil, err
	}
	if len(f.dropped) > 0 {
		s.log.Debugf("primal: dropped %d redundant equality rows", len(f.dropped))
	}
	nIneq, nEq := len(f.h), len(f.b)
	s.log.Debugf("primal: %d variables, %d inequality rows, %d equality rows", n, nIneq, nEq)

	primalObj, x, err := s.solveFree(f.c, toMatrix(f.g, n), f.h, toMatrix(f.a, n), f.b)
	if err != nil {
		return nil, statusFromLP(err, "primal")
	}

	// Dual: min hᵀμ + bᵀλ  s.t.  Gᵀμ + Aᵀλ = -c,  μ >= 0.
	m := nIneq + nEq
	dc := make([]float64, m)
	copy(dc, f.h)
	copy(dc[nIneq:], f.b)
	dg := make([][]float64, nIneq)
	for k := range dg {
		dg[k] = make([]float64, m)
		dg[k][k] = -1
	}
	da := make([][]float64, n)
	for j := range da {
		da[j] = make([]float64, m)
		for k := 0; k < nIneq; k++ {
			da[j][k] = f.g[k][j]
		}
		for k := 0; k < nEq; k++ {
			da[j][nIneq+k] = f.a[k][j]
		}
	}
	db := make([]float64, n)
	for j, v := range f.c {
		db[j] = -v
	}
	keep, bad := independentRows(da, db)
	if bad >= 0 {
		// The dual is infeasible while the primal is not.
		return nil, optim.NewStatusError(optim.StatusUnbounded,
			"dual: no multipliers price variable %q", p.Variables()[bad].Name)
	}
	if len(keep) < len(da) {
		rows := make([][]float64, len(keep))
		rhs := make([]float64, len(keep))
		for i, k := range keep {
			rows[i], rhs[i] = da[k], db[k]
		}
		da, db = rows, rhs
	}
	dualObj, z, err := s.solveFree(dc, toMatrix(dg, m), make([]float64, nIneq), toMatrix(da, m), db)
	if err != nil {
		return nil, statusFromLP(err, "dual")
	}

	gap := math.Abs(primalObj + dualObj)
	if gap > s.cfg.DualityGap*math.Max(1, math.Abs(primalObj)) {
		return nil, optim.NewStatusError(optim.StatusNumericalIssue,
			"duality gap %g between primal %g and dual %g", gap, primalObj, -dualObj)
	}

	vars := p.Variables()
	sol := &optim.Solution{
		Status:    optim.StatusOptimal,
		Objective: floats.Dot(f.c, x),
		Primal:    make(map[string]float64, n),
		Duals:     make(map[string]float64, len(cons)),
	}
	for j, v := range vars {
		sol.Primal[v.Name] = x[j]
	}
	for k, r := range f.rows {
		if r.cons >= 0 {
			sol.Duals[cons[r.cons].ID] = r.sign * z[k]
		}
	}
	for k, ci := range f.eqCons {
		sol.Duals[cons[ci].ID] = z[nIneq+k]
	}
	for _, ci := range f.dropped {
		sol.Duals[cons[ci].ID] = 0
	}
	s.log.Debugf("optimal objective %g (dual %g)", sol.Objective, -dualObj)
	return sol, nil
}

// statusFromLP maps gonum lp errors onto the solve status taxonomy.
func statusFromLP(err error, stage string) *optim.StatusError {
	switch {
	case errors.Is(err, lp.ErrInfeasible):
		if stage == "dual" {
			// An infeasible dual with a feasible primal means the primal is unbounded.
			return optim.NewStatusError(optim.StatusUnbounded, "%s: %v", stage, err)
		}
		return optim.NewStatusError(optim.StatusInfeasible, "%s: %v", stage, err)
	case errors.Is(err, lp.ErrUnbounded):
		if stage == "dual" {
			return optim.NewStatusError(optim.StatusInfeasible, "%s: %v", stage, err)
		}
		return optim.NewStatusError(optim.StatusUnbounded, "%s: %v", stage, err)
	case errors.Is(err, lp.ErrSingular), errors.Is(err, lp.ErrZeroRow),
		errors.Is(err, lp.ErrZeroColumn), errors.Is(err, lp.ErrBland):
		return optim.NewStatusError(optim.StatusNumericalIssue, "%s: %v", stage, err)
	default:
		return optim.NewStatusError(optim.StatusUnknown, "%s: %v", stage, err)
	}
}

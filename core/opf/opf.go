// Package opf formulates the DC optimal power flow of a network as a linear
// program over named variables and constraints.
//
// For every bus the balance row reads
//
//	sum(p_g at bus) - sum over incident lines of ±B(theta_from - theta_to) = load
//
// where the from-bus carries the flow with a minus sign and the to-bus with a
// plus sign. With the dual convention of package optim, the LMP of a bus is the
// negated dual of its balance row.
package opf

import (
	"errors"
	"fmt"
	"math"

	"github.com/kilianp07/dcopf/core/network"
	"github.com/kilianp07/dcopf/core/optim"
)

// ErrFormulation reports an internal inconsistency met while building the
// problem.
var ErrFormulation = errors.New("formulation error")

// GeneratorVar names the output variable of a generator.
func GeneratorVar(gen string) string { return "p:" + gen }

// AngleVar names the voltage angle variable of a non-reference bus.
func AngleVar(bus string) string { return "theta:" + bus }

// BalanceID names the power balance constraint of a bus.
func BalanceID(bus string) string { return "balance:" + bus }

// FlowFwdID names the from-to flow limit of a line.
func FlowFwdID(line string) string { return "flow_fwd:" + line }

// FlowRevID names the to-from flow limit of a line.
func FlowRevID(line string) string { return "flow_rev:" + line }

// Formulation couples a problem with the network it was built from.
type Formulation struct {
	Network *network.Network
	Problem *optim.Problem
}

// Formulate builds the least-cost dispatch problem for net.
func Formulate(net *network.Network) (*Formulation, error) {
	if net == nil {
		return nil, fmt.Errorf("%w: nil network", ErrFormulation)
	}
	p := optim.NewProblem()
	ref := net.Reference().ID
	if ref == "" {
		return nil, fmt.Errorf("%w: network has no reference bus", ErrFormulation)
	}

	var objective optim.Expr
	for _, g := range net.Generators() {
		if _, ok := net.Bus(g.Bus); !ok {
			return nil, fmt.Errorf("%w: generator %q on missing bus %q", ErrFormulation, g.ID, g.Bus)
		}
		upper := math.Inf(1)
		if hi, ok := g.Max(); ok {
			upper = hi
		}
		if err := p.AddVariable(GeneratorVar(g.ID), g.MinMW, upper); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFormulation, err)
		}
		objective = objective.Plus(GeneratorVar(g.ID), g.CostPerMWh)
	}
	for _, b := range net.Buses() {
		if b.ID == ref {
			continue
		}
		if err := p.AddVariable(AngleVar(b.ID), math.Inf(-1), math.Inf(1)); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFormulation, err)
		}
	}
	if p.NumVariables() == 0 {
		return nil, fmt.Errorf("%w: network yields no decision variables", ErrFormulation)
	}
	if err := p.SetObjective(objective); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormulation, err)
	}

	for _, b := range net.Buses() {
		expr := optim.Expr{}
		for _, g := range net.GeneratorsAt(b.ID) {
			expr = expr.Plus(GeneratorVar(g.ID), 1)
		}
		for _, l := range net.LinesAt(b.ID) {
			sign := -1.0
			if l.To == b.ID {
				sign = 1
			}
			flow, err := flowExpr(net, l, ref)
			if err != nil {
				return nil, err
			}
			for _, t := range flow {
				expr = expr.Plus(t.Var, sign*t.Coef)
			}
		}
		c := optim.Constraint{ID: BalanceID(b.ID), Expr: expr, Sense: optim.Equal, RHS: b.LoadMW}
		if err := p.AddConstraint(c); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFormulation, err)
		}
	}

	for _, l := range net.Lines() {
		limit, ok := l.Limit()
		if !ok {
			continue
		}
		flow, err := flowExpr(net, l, ref)
		if err != nil {
			return nil, err
		}
		rev := make(optim.Expr, len(flow))
		for i, t := range flow {
			rev[i] = optim.Term{Var: t.Var, Coef: -t.Coef}
		}
		for _, c := range []optim.Constraint{
			{ID: FlowFwdID(l.ID), Expr: flow, Sense: optim.LessEq, RHS: limit},
			{ID: FlowRevID(l.ID), Expr: rev, Sense: optim.LessEq, RHS: limit},
		} {
			if err := p.AddConstraint(c); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrFormulation, err)
			}
		}
	}
	return &Formulation{Network: net, Problem: p}, nil
}

// flowExpr returns B(theta_from - theta_to) with the reference angle dropped.
func flowExpr(net *network.Network, l network.Line, ref string) (optim.Expr, error) {
	for _, end := range []string{l.From, l.To} {
		if _, ok := net.Bus(end); !ok {
			return nil, fmt.Errorf("%w: line %q ends at missing bus %q", ErrFormulation, l.ID, end)
		}
	}
	var e optim.Expr
	if l.From != ref {
		e = e.Plus(AngleVar(l.From), l.Susceptance)
	}
	if l.To != ref {
		e = e.Plus(AngleVar(l.To), -l.Susceptance)
	}
	return e, nil
}

// Angle returns the solved angle of a bus, zero for the reference.
func (f *Formulation) Angle(sol *optim.Solution, bus string) (float64, error) {
	if bus == f.Network.Reference().ID {
		return 0, nil
	}
	v, ok := sol.Value(AngleVar(bus))
	if !ok {
		return 0, fmt.Errorf("no value for %s", AngleVar(bus))
	}
	return v, nil
}

// Flow returns B(theta_from - theta_to) for a line from solved angles.
func (f *Formulation) Flow(sol *optim.Solution, l network.Line) (float64, error) {
	from, err := f.Angle(sol, l.From)
	if err != nil {
		return 0, err
	}
	to, err := f.Angle(sol, l.To)
	if err != nil {
		return 0, err
	}
	return l.Susceptance * (from - to), nil
}

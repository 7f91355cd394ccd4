package results

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/kilianp07/dcopf/core/network"
	"github.com/kilianp07/dcopf/core/opf"
	"github.com/kilianp07/dcopf/core/optim"
)

// ErrIncompleteSolution is returned when a solution lacks a value the
// formulation defines.
var ErrIncompleteSolution = errors.New("incomplete solution")

// ErrNotOptimal is returned when extraction is attempted on a non-optimal
// solution.
var ErrNotOptimal = errors.New("solution is not optimal")

// Options tunes extraction tolerances.
type Options struct {
	// BalanceToleranceMW is the absolute generation/load mismatch tolerated
	// before a BalanceViolation warning is raised.
	BalanceToleranceMW float64 `json:"balance_tolerance_mw"`
	// DualTolerance is the magnitude under which a multiplier counts as zero.
	DualTolerance float64 `json:"dual_tolerance"`
	// FlowToleranceMW is the distance to a limit under which a line is at its
	// limit.
	FlowToleranceMW float64 `json:"flow_tolerance_mw"`
}

// SetDefaults fills unset tolerances.
func (o *Options) SetDefaults() {
	if o.BalanceToleranceMW <= 0 {
		o.BalanceToleranceMW = 1e-6
	}
	if o.DualTolerance <= 0 {
		o.DualTolerance = 1e-7
	}
	if o.FlowToleranceMW <= 0 {
		o.FlowToleranceMW = 1e-6
	}
}

// Validate rejects non-finite tolerances.
func (o Options) Validate() error {
	for name, v := range map[string]float64{
		"balance_tolerance_mw": o.BalanceToleranceMW,
		"dual_tolerance":       o.DualTolerance,
		"flow_tolerance_mw":    o.FlowToleranceMW,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("results: %s must be a finite non-negative number", name)
		}
	}
	return nil
}

// Extract derives the dispatch result of an optimal solution.
func Extract(f *opf.Formulation, sol *optim.Solution, opts Options) (*DispatchResult, error) {
	if f == nil || f.Network == nil {
		return nil, fmt.Errorf("%w: nil formulation", ErrIncompleteSolution)
	}
	if sol == nil || sol.Status != optim.StatusOptimal {
		return nil, ErrNotOptimal
	}
	opts.SetDefaults()
	net := f.Network
	res := &DispatchResult{Status: sol.Status, TotalCost: sol.Objective}

	lmp := make(map[string]float64)
	for _, b := range net.Buses() {
		dual, ok := sol.Dual(opf.BalanceID(b.ID))
		if !ok {
			return nil, fmt.Errorf("%w: no dual for %s", ErrIncompleteSolution, opf.BalanceID(b.ID))
		}
		// Multipliers of the balance rows price a unit of load with the
		// opposite sign.
		price := -dual
		lmp[b.ID] = price
		angle, err := f.Angle(sol, b.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrIncompleteSolution, err)
		}
		pay := money(b.LoadMW, price)
		res.Buses = append(res.Buses, BusResult{
			Bus:         b.ID,
			LMP:         price,
			LoadMW:      b.LoadMW,
			AngleRad:    angle,
			AngleDeg:    angle * 180 / math.Pi,
			VoltagePU:   1,
			LoadPayment: pay,
		})
		res.LoadPayment = res.LoadPayment.Add(pay)
		res.Balance.LoadMW += b.LoadMW
	}

	for _, g := range net.Generators() {
		out, ok := sol.Value(opf.GeneratorVar(g.ID))
		if !ok {
			return nil, fmt.Errorf("%w: no value for %s", ErrIncompleteSolution, opf.GeneratorVar(g.ID))
		}
		rev := money(out, lmp[g.Bus])
		res.Generators = append(res.Generators, GeneratorResult{
			Generator:      g.ID,
			Bus:            g.Bus,
			OutputMW:       out,
			CostPerMWh:     g.CostPerMWh,
			LMP:            lmp[g.Bus],
			Marginal:       marginal(g, out, opts.FlowToleranceMW),
			Revenue:        rev,
			ProductionCost: money(out, g.CostPerMWh),
		})
		res.GeneratorRevenue = res.GeneratorRevenue.Add(rev)
		res.Balance.GenerationMW += out
	}
	res.CongestionSurplus = res.LoadPayment.Sub(res.GeneratorRevenue)

	for _, l := range net.Lines() {
		lr, err := extractLine(f, sol, l, opts)
		if err != nil {
			return nil, err
		}
		if lr.CurrentErr != nil {
			res.Warnings = append(res.Warnings, Warning{Kind: WarnConversion, Subject: l.ID, Message: lr.CurrentErr.Error()})
		}
		res.Lines = append(res.Lines, lr)
	}

	res.Balance = checkBalance(res.Balance.GenerationMW, res.Balance.LoadMW, opts.BalanceToleranceMW)
	if res.Balance.Violated {
		res.Warnings = append(res.Warnings, Warning{
			Kind: WarnBalanceViolation,
			Message: fmt.Sprintf("generation %.6f MW differs from load %.6f MW by %.6g MW",
				res.Balance.GenerationMW, res.Balance.LoadMW, res.Balance.MismatchMW),
		})
	}
	return res, nil
}

func extractLine(f *opf.Formulation, sol *optim.Solution, l network.Line, opts Options) (LineResult, error) {
	flow, err := f.Flow(sol, l)
	if err != nil {
		return LineResult{}, fmt.Errorf("%w: line %s: %v", ErrIncompleteSolution, l.ID, err)
	}
	lr := LineResult{Line: l.ID, From: l.From, To: l.To, FlowMW: flow}
	if limit, ok := l.Limit(); ok {
		lr.LimitMW = network.Float(limit)
		if limit > 0 {
			lr.LoadingPct = 100 * math.Abs(flow) / limit
		}
		lr.AtLimit = math.Abs(math.Abs(flow)-limit) <= opts.FlowToleranceMW
		lr.CongestionRent = congestionRent(sol, l.ID, opts.DualTolerance)
		lr.Congested = lr.CongestionRent != 0
	}
	ka, err := CurrentKA(flow, l.VoltageKV, l.PF())
	if err != nil {
		lr.CurrentErr = &ConversionError{Line: l.ID, Err: err}
	} else {
		lr.CurrentKA = ka
		lr.CurrentA = ka * 1000
	}
	return lr, nil
}

// congestionRent returns the multiplier of whichever limit row binds.
func congestionRent(sol *optim.Solution, line string, tol float64) float64 {
	if d, ok := sol.Dual(opf.FlowFwdID(line)); ok && math.Abs(d) > tol {
		return d
	}
	if d, ok := sol.Dual(opf.FlowRevID(line)); ok && math.Abs(d) > tol {
		return d
	}
	return 0
}

func marginal(g network.Generator, out, tol float64) bool {
	if out <= g.MinMW+tol {
		return false
	}
	if upper, ok := g.Max(); ok && out >= upper-tol {
		return false
	}
	return true
}

func checkBalance(gen, load, tol float64) Balance {
	b := Balance{GenerationMW: gen, LoadMW: load, MismatchMW: gen - load, ToleranceMW: tol}
	b.Violated = math.Abs(b.MismatchMW) > tol
	return b
}

// money multiplies a quantity by a price without rounding.
func money(mw, price float64) decimal.Decimal {
	return decimal.NewFromFloat(mw).Mul(decimal.NewFromFloat(price))
}

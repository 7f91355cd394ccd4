// Package results turns an optimal DC-OPF solution into market and network
// quantities: LMPs, dispatch and settlement, line flows with congestion rents
// and currents, and the bus angle profile.
package results

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/kilianp07/dcopf/core/optim"
)

// BusResult is the per-bus outcome.
type BusResult struct {
	Bus       string  `json:"bus"`
	LMP       float64 `json:"lmp"`
	LoadMW    float64 `json:"load_mw"`
	AngleRad  float64 `json:"angle_rad"`
	AngleDeg  float64 `json:"angle_deg"`
	VoltagePU float64 `json:"voltage_pu"`
	// LoadPayment is LoadMW * LMP.
	LoadPayment decimal.Decimal `json:"load_payment"`
}

// GeneratorResult is the per-generator dispatch and settlement.
type GeneratorResult struct {
	Generator  string  `json:"generator"`
	Bus        string  `json:"bus"`
	OutputMW   float64 `json:"output_mw"`
	CostPerMWh float64 `json:"cost_per_mwh"`
	LMP        float64 `json:"lmp"`
	// Marginal is set when the output lies strictly inside its bounds.
	Marginal bool `json:"marginal"`
	// Revenue is OutputMW * LMP at the hosting bus.
	Revenue decimal.Decimal `json:"revenue"`
	// ProductionCost is OutputMW * CostPerMWh.
	ProductionCost decimal.Decimal `json:"production_cost"`
}

// LineResult is the per-line loading.
type LineResult struct {
	Line   string  `json:"line"`
	From   string  `json:"from"`
	To     string  `json:"to"`
	FlowMW float64 `json:"flow_mw"`
	// LimitMW is nil for an unconstrained line.
	LimitMW    *float64 `json:"limit_mw,omitempty"`
	LoadingPct float64  `json:"loading_pct"`
	AtLimit    bool     `json:"at_limit"`
	// CongestionRent is the multiplier of the binding limit row, zero when the
	// line is not congested.
	CongestionRent float64 `json:"congestion_rent"`
	Congested      bool    `json:"congested"`
	CurrentKA      float64 `json:"current_ka"`
	CurrentA       float64 `json:"current_a"`
	// CurrentErr is set when the current could not be derived.
	CurrentErr error `json:"-"`
}

// Balance compares total generation with total load.
type Balance struct {
	GenerationMW float64 `json:"generation_mw"`
	LoadMW       float64 `json:"load_mw"`
	MismatchMW   float64 `json:"mismatch_mw"`
	ToleranceMW  float64 `json:"tolerance_mw"`
	Violated     bool    `json:"violated"`
}

// WarningKind classifies a non-fatal finding.
type WarningKind string

const (
	WarnBalanceViolation WarningKind = "balance_violation"
	WarnConversion       WarningKind = "conversion_error"
)

// Warning is a non-fatal finding attached to a result.
type Warning struct {
	Kind    WarningKind `json:"kind"`
	Subject string      `json:"subject,omitempty"`
	Message string      `json:"message"`
}

// DispatchResult is everything derived from one optimal solve.
type DispatchResult struct {
	StudyID    string            `json:"study_id"`
	Status     optim.Status      `json:"status"`
	TotalCost  float64           `json:"total_cost"`
	Buses      []BusResult       `json:"buses"`
	Generators []GeneratorResult `json:"generators"`
	Lines      []LineResult      `json:"lines"`
	Balance    Balance           `json:"balance"`
	Warnings   []Warning         `json:"warnings,omitempty"`

	GeneratorRevenue decimal.Decimal `json:"generator_revenue"`
	LoadPayment      decimal.Decimal `json:"load_payment"`
	// CongestionSurplus is LoadPayment - GeneratorRevenue, collected by the
	// market operator when lines are congested.
	CongestionSurplus decimal.Decimal `json:"congestion_surplus"`

	SolveDuration time.Duration `json:"solve_duration"`
}

// Bus returns the result for a bus.
func (r *DispatchResult) Bus(id string) (BusResult, bool) {
	for _, b := range r.Buses {
		if b.Bus == id {
			return b, true
		}
	}
	return BusResult{}, false
}

// Generator returns the result for a generator.
func (r *DispatchResult) Generator(id string) (GeneratorResult, bool) {
	for _, g := range r.Generators {
		if g.Generator == id {
			return g, true
		}
	}
	return GeneratorResult{}, false
}

// Line returns the result for a line.
func (r *DispatchResult) Line(id string) (LineResult, bool) {
	for _, l := range r.Lines {
		if l.Line == id {
			return l, true
		}
	}
	return LineResult{}, false
}

// LMPs maps bus IDs to prices.
func (r *DispatchResult) LMPs() map[string]float64 {
	out := make(map[string]float64, len(r.Buses))
	for _, b := range r.Buses {
		out[b.Bus] = b.LMP
	}
	return out
}

// CongestedLines lists the IDs of lines with a nonzero congestion rent.
func (r *DispatchResult) CongestedLines() []string {
	var out []string
	for _, l := range r.Lines {
		if l.Congested {
			out = append(out, l.Line)
		}
	}
	return out
}

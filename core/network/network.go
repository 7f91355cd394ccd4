// Package network holds the immutable description of a DC power network:
// buses with their loads, generators with linear costs, and lines with their
// susceptances and optional flow limits.
package network

import "sort"

// Bus is a node of the network. Exactly one bus is the angle reference.
type Bus struct {
	ID        string  `json:"id"`
	LoadMW    float64 `json:"load_mw"`
	Reference bool    `json:"reference"`
}

// Generator is a dispatchable unit with a linear marginal cost.
type Generator struct {
	ID         string  `json:"id"`
	Bus        string  `json:"bus"`
	CostPerMWh float64 `json:"cost_per_mwh"`
	MinMW      float64 `json:"min_mw"`
	// MaxMW is nil for a unit without an upper output bound.
	MaxMW *float64 `json:"max_mw,omitempty"`
}

// Max returns the upper output bound and whether one is set.
func (g Generator) Max() (float64, bool) {
	if g.MaxMW == nil {
		return 0, false
	}
	return *g.MaxMW, true
}

// Line is a branch between two buses. Flow from From to To is
// Susceptance * (theta_from - theta_to).
type Line struct {
	ID          string  `json:"id"`
	From        string  `json:"from"`
	To          string  `json:"to"`
	Susceptance float64 `json:"susceptance"`
	// LimitMW bounds the flow magnitude in both directions; nil leaves the
	// line unconstrained.
	LimitMW     *float64 `json:"limit_mw,omitempty"`
	VoltageKV   float64  `json:"voltage_kv"`
	PowerFactor float64  `json:"power_factor"`
}

// DefaultPowerFactor is assumed when a line does not declare one.
const DefaultPowerFactor = 1.0

// Limit returns the flow limit and whether one is set.
func (l Line) Limit() (float64, bool) {
	if l.LimitMW == nil {
		return 0, false
	}
	return *l.LimitMW, true
}

// PF returns the power factor used for current conversion.
func (l Line) PF() float64 {
	if l.PowerFactor == 0 {
		return DefaultPowerFactor
	}
	return l.PowerFactor
}

// Float returns a pointer to v, for optional fields such as MaxMW and LimitMW.
func Float(v float64) *float64 { return &v }

// Network is a validated, read-only network description. Build it with New.
type Network struct {
	buses      []Bus
	generators []Generator
	lines      []Line

	busIndex   map[string]int
	genByBus   map[string][]int
	linesByBus map[string][]int
	reference  string
}

// New validates the inputs and returns an immutable Network. Every violation
// found is reported, each wrapping ErrInvalidNetwork.
func New(buses []Bus, generators []Generator, lines []Line) (*Network, error) {
	if err := validate(buses, generators, lines); err != nil {
		return nil, err
	}
	n := &Network{
		buses:      cloneBuses(buses),
		generators: cloneGenerators(generators),
		lines:      cloneLines(lines),
		busIndex:   make(map[string]int, len(buses)),
		genByBus:   make(map[string][]int),
		linesByBus: make(map[string][]int),
	}
	for i, b := range n.buses {
		n.busIndex[b.ID] = i
		if b.Reference {
			n.reference = b.ID
		}
	}
	for i, g := range n.generators {
		n.genByBus[g.Bus] = append(n.genByBus[g.Bus], i)
	}
	for i, l := range n.lines {
		n.linesByBus[l.From] = append(n.linesByBus[l.From], i)
		n.linesByBus[l.To] = append(n.linesByBus[l.To], i)
	}
	return n, nil
}

// Buses returns a copy of the buses in input order.
func (n *Network) Buses() []Bus { return cloneBuses(n.buses) }

// Generators returns a copy of the generators in input order.
func (n *Network) Generators() []Generator { return cloneGenerators(n.generators) }

// Lines returns a copy of the lines in input order.
func (n *Network) Lines() []Line { return cloneLines(n.lines) }

// Bus looks up a bus by ID.
func (n *Network) Bus(id string) (Bus, bool) {
	i, ok := n.busIndex[id]
	if !ok {
		return Bus{}, false
	}
	return n.buses[i], true
}

// Reference returns the reference bus. The zero Bus is returned for an
// uninitialised Network.
func (n *Network) Reference() Bus {
	b, _ := n.Bus(n.reference)
	return b
}

// GeneratorsAt returns the generators hosted by the bus.
func (n *Network) GeneratorsAt(bus string) []Generator {
	idx := n.genByBus[bus]
	out := make([]Generator, len(idx))
	for i, j := range idx {
		out[i] = cloneGenerator(n.generators[j])
	}
	return out
}

// LinesAt returns the lines with one endpoint at the bus.
func (n *Network) LinesAt(bus string) []Line {
	idx := n.linesByBus[bus]
	out := make([]Line, len(idx))
	for i, j := range idx {
		out[i] = cloneLine(n.lines[j])
	}
	return out
}

// TotalLoadMW sums the load of every bus.
func (n *Network) TotalLoadMW() float64 {
	var sum float64
	for _, b := range n.buses {
		sum += b.LoadMW
	}
	return sum
}

// BusIDs returns the bus identifiers sorted lexically.
func (n *Network) BusIDs() []string {
	ids := make([]string, 0, len(n.buses))
	for _, b := range n.buses {
		ids = append(ids, b.ID)
	}
	sort.Strings(ids)
	return ids
}

func cloneBuses(in []Bus) []Bus {
	out := make([]Bus, len(in))
	copy(out, in)
	return out
}

func cloneGenerator(g Generator) Generator {
	if g.MaxMW != nil {
		g.MaxMW = Float(*g.MaxMW)
	}
	return g
}

func cloneGenerators(in []Generator) []Generator {
	out := make([]Generator, len(in))
	for i, g := range in {
		out[i] = cloneGenerator(g)
	}
	return out
}

func cloneLine(l Line) Line {
	if l.LimitMW != nil {
		l.LimitMW = Float(*l.LimitMW)
	}
	return l
}

func cloneLines(in []Line) []Line {
	out := make([]Line, len(in))
	for i, l := range in {
		out[i] = cloneLine(l)
	}
	return out
}

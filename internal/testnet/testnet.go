// Package testnet provides reference networks shared by tests.
package testnet

import "github.com/kilianp07/dcopf/core/network"

// Triangle returns the three-bus study network: generators costing 10, 20 and
// 100 per MWh at buses 1, 2 and 3 (the first two capped at 1200 MW), loads of
// 80 and 100 MW at buses 1 and 3, unit susceptances and no flow limits.
func Triangle() ([]network.Bus, []network.Generator, []network.Line) {
	buses := []network.Bus{
		{ID: "1", LoadMW: 80, Reference: true},
		{ID: "2"},
		{ID: "3", LoadMW: 100},
	}
	gens := []network.Generator{
		{ID: "g1", Bus: "1", CostPerMWh: 10, MaxMW: network.Float(1200)},
		{ID: "g2", Bus: "2", CostPerMWh: 20, MaxMW: network.Float(1200)},
		{ID: "g3", Bus: "3", CostPerMWh: 100},
	}
	lines := []network.Line{
		{ID: "1-2", From: "1", To: "2", Susceptance: 1, VoltageKV: 230},
		{ID: "1-3", From: "1", To: "3", Susceptance: 1, VoltageKV: 230},
		{ID: "2-3", From: "2", To: "3", Susceptance: 1, VoltageKV: 230},
	}
	return buses, gens, lines
}

// Uncongested builds the Triangle network.
func Uncongested() *network.Network {
	return mustNew(Triangle())
}

// Congested builds the Triangle network with line 1-3 limited to 10 MW.
func Congested() *network.Network {
	buses, gens, lines := Triangle()
	lines[1].LimitMW = network.Float(10)
	return mustNew(buses, gens, lines)
}

func mustNew(b []network.Bus, g []network.Generator, l []network.Line) *network.Network {
	n, err := network.New(b, g, l)
	if err != nil {
		panic(err)
	}
	return n
}

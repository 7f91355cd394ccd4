// Package factory provides a small generic registry used to build pluggable
// modules (LP solvers, metrics sinks) from configuration. A module is selected
// by a type string and receives a map of raw settings, which factories decode
// into typed structs with Decode.
//
// Example usage:
//
//	reg := factory.NewRegistry[optim.Solver]()
//	reg.Register("gonum-simplex", func(conf map[string]any) (optim.Solver, error) {
//	    var c simplex.Config
//	    if err := factory.Decode(conf, &c); err != nil {
//	        return nil, err
//	    }
//	    return simplex.New(c), nil
//	})
//	s, err := reg.Create(factory.ModuleConfig{Type: "gonum-simplex"})
package factory

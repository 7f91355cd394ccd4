package network

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// ErrInvalidNetwork marks malformed or inconsistent network data. Besides the
// per-element rules it covers topology: a second line between the same pair
// of buses (model parallel circuits as one line with the summed susceptance),
// and any bus with no path of lines to the reference bus, whose angle would be
// undefined.
var ErrInvalidNetwork = errors.New("invalid network")

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidNetwork, fmt.Sprintf(format, args...))
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

//gocyclo:ignore
func validate(buses []Bus, generators []Generator, lines []Line) error {
	var errs []error

	busSeen := make(map[string]bool, len(buses))
	var refs []string
	for _, b := range buses {
		switch {
		case b.ID == "":
			errs = append(errs, invalid("bus with empty id"))
			continue
		case busSeen[b.ID]:
			errs = append(errs, invalid("duplicate bus %q", b.ID))
			continue
		}
		busSeen[b.ID] = true
		if !finite(b.LoadMW) || b.LoadMW < 0 {
			errs = append(errs, invalid("bus %q: load %v must be finite and non-negative", b.ID, b.LoadMW))
		}
		if b.Reference {
			refs = append(refs, b.ID)
		}
	}
	switch len(refs) {
	case 0:
		errs = append(errs, invalid("no reference bus"))
	case 1:
	default:
		errs = append(errs, invalid("%d reference buses %v, exactly one required", len(refs), refs))
	}

	genSeen := make(map[string]bool, len(generators))
	for _, g := range generators {
		if g.ID == "" {
			errs = append(errs, invalid("generator with empty id"))
			continue
		}
		if genSeen[g.ID] {
			errs = append(errs, invalid("duplicate generator %q", g.ID))
			continue
		}
		genSeen[g.ID] = true
		if !busSeen[g.Bus] {
			errs = append(errs, invalid("generator %q: unknown bus %q", g.ID, g.Bus))
		}
		if !finite(g.CostPerMWh) {
			errs = append(errs, invalid("generator %q: cost must be finite", g.ID))
		}
		if !finite(g.MinMW) || g.MinMW < 0 {
			errs = append(errs, invalid("generator %q: minimum %v must be finite and non-negative", g.ID, g.MinMW))
		}
		if upper, ok := g.Max(); ok {
			switch {
			case math.IsNaN(upper):
				errs = append(errs, invalid("generator %q: maximum is NaN", g.ID))
			case g.MinMW > upper:
				errs = append(errs, invalid("generator %q: minimum %v exceeds maximum %v", g.ID, g.MinMW, upper))
			}
		}
	}

	lineSeen := make(map[string]bool, len(lines))
	pairs := make(map[[2]string]string, len(lines))
	for _, l := range lines {
		if l.ID == "" {
			errs = append(errs, invalid("line with empty id"))
			continue
		}
		if lineSeen[l.ID] {
			errs = append(errs, invalid("duplicate line %q", l.ID))
			continue
		}
		lineSeen[l.ID] = true
		if !busSeen[l.From] {
			errs = append(errs, invalid("line %q: unknown from bus %q", l.ID, l.From))
		}
		if !busSeen[l.To] {
			errs = append(errs, invalid("line %q: unknown to bus %q", l.ID, l.To))
		}
		if l.From == l.To {
			errs = append(errs, invalid("line %q: both endpoints at bus %q", l.ID, l.From))
		}
		if !finite(l.Susceptance) || l.Susceptance <= 0 {
			errs = append(errs, invalid("line %q: susceptance %v must be positive", l.ID, l.Susceptance))
		}
		if lim, ok := l.Limit(); ok && (math.IsNaN(lim) || lim < 0) {
			errs = append(errs, invalid("line %q: limit %v must be non-negative", l.ID, lim))
		}
		if l.PowerFactor < 0 || l.PowerFactor > 1 || math.IsNaN(l.PowerFactor) {
			errs = append(errs, invalid("line %q: power factor %v outside (0,1]", l.ID, l.PowerFactor))
		}
		key := pairKey(l.From, l.To)
		if other, ok := pairs[key]; ok {
			errs = append(errs, invalid("lines %q and %q join the same buses", other, l.ID))
		} else {
			pairs[key] = l.ID
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	if islanded := unreachable(buses, lines, refs[0]); len(islanded) > 0 {
		return invalid("buses %v are not connected to reference bus %q", islanded, refs[0])
	}
	return nil
}

func pairKey(a, b string) [2]string {
	if a > b {
		a, b = b, a
	}
	return [2]string{a, b}
}

// unreachable returns the buses that no path of lines links to the reference.
func unreachable(buses []Bus, lines []Line, ref string) []string {
	adj := make(map[string][]string, len(buses))
	for _, l := range lines {
		adj[l.From] = append(adj[l.From], l.To)
		adj[l.To] = append(adj[l.To], l.From)
	}
	visited := map[string]bool{ref: true}
	queue := []string{ref}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range adj[cur] {
			if !visited[next] {
				visited[next] = true
				queue = append(queue, next)
			}
		}
	}
	var out []string
	for _, b := range buses {
		if !visited[b.ID] {
			out = append(out, b.ID)
		}
	}
	sort.Strings(out)
	return out
}

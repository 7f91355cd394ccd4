package optim

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidProblem is returned when a problem is assembled inconsistently.
var ErrInvalidProblem = errors.New("invalid problem")

// Sense is the relational operator of a constraint.
type Sense int

const (
	LessEq Sense = iota
	Equal
	GreaterEq
)

func (s Sense) String() string {
	switch s {
	case LessEq:
		return "<="
	case Equal:
		return "="
	case GreaterEq:
		return ">="
	default:
		return fmt.Sprintf("Sense(%d)", int(s))
	}
}

// Term is one coefficient of a linear expression.
type Term struct {
	Var  string
	Coef float64
}

// Expr is a linear expression. Terms on the same variable are allowed; call
// Simplify to merge them.
type Expr []Term

// Plus appends a term and returns the extended expression.
func (e Expr) Plus(v string, coef float64) Expr {
	return append(e, Term{Var: v, Coef: coef})
}

// Simplify merges terms on the same variable, keeping first-seen order, and
// drops zero coefficients.
func (e Expr) Simplify() Expr {
	pos := make(map[string]int, len(e))
	out := make(Expr, 0, len(e))
	for _, t := range e {
		if i, ok := pos[t.Var]; ok {
			out[i].Coef += t.Coef
			continue
		}
		pos[t.Var] = len(out)
		out = append(out, t)
	}
	kept := out[:0]
	for _, t := range out {
		if t.Coef != 0 {
			kept = append(kept, t)
		}
	}
	return kept
}

// Eval computes the expression for the given variable values. Variables
// missing from values count as zero.
func (e Expr) Eval(values map[string]float64) float64 {
	var sum float64
	for _, t := range e {
		sum += t.Coef * values[t.Var]
	}
	return sum
}

// Variable is a decision variable with bounds. Use math.Inf for open bounds.
type Variable struct {
	Name  string
	Lower float64
	Upper float64
}

// Constraint is a named linear row: Expr (Sense) RHS.
type Constraint struct {
	ID    string
	Expr  Expr
	Sense Sense
	RHS   float64
}

// Problem is a minimisation problem over named variables and constraints.
// Iteration order is insertion order.
type Problem struct {
	vars        []Variable
	varIndex    map[string]int
	objective   Expr
	constraints []Constraint
	consIndex   map[string]int
}

// NewProblem returns an empty problem.
func NewProblem() *Problem {
	return &Problem{varIndex: make(map[string]int), consIndex: make(map[string]int)}
}

// AddVariable declares a variable. Lower must not exceed Upper.
func (p *Problem) AddVariable(name string, lower, upper float64) error {
	if name == "" {
		return fmt.Errorf("%w: empty variable name", ErrInvalidProblem)
	}
	if _, ok := p.varIndex[name]; ok {
		return fmt.Errorf("%w: duplicate variable %q", ErrInvalidProblem, name)
	}
	if math.IsNaN(lower) || math.IsNaN(upper) || lower > upper {
		return fmt.Errorf("%w: variable %q has bounds [%v, %v]", ErrInvalidProblem, name, lower, upper)
	}
	p.varIndex[name] = len(p.vars)
	p.vars = append(p.vars, Variable{Name: name, Lower: lower, Upper: upper})
	return nil
}

// SetObjective sets the expression to minimise.
func (p *Problem) SetObjective(e Expr) error {
	e = e.Simplify()
	if err := p.checkVars(e); err != nil {
		return fmt.Errorf("objective: %w", err)
	}
	p.objective = e
	return nil
}

// AddConstraint appends a named constraint. Its expression is simplified and
// must only reference declared variables.
func (p *Problem) AddConstraint(c Constraint) error {
	if c.ID == "" {
		return fmt.Errorf("%w: empty constraint id", ErrInvalidProblem)
	}
	if _, ok := p.consIndex[c.ID]; ok {
		return fmt.Errorf("%w: duplicate constraint %q", ErrInvalidProblem, c.ID)
	}
	if c.Sense < LessEq || c.Sense > GreaterEq {
		return fmt.Errorf("%w: constraint %q has sense %v", ErrInvalidProblem, c.ID, c.Sense)
	}
	c.Expr = c.Expr.Simplify()
	if err := p.checkVars(c.Expr); err != nil {
		return fmt.Errorf("constraint %q: %w", c.ID, err)
	}
	p.consIndex[c.ID] = len(p.constraints)
	p.constraints = append(p.constraints, c)
	return nil
}

func (p *Problem) checkVars(e Expr) error {
	for _, t := range e {
		if _, ok := p.varIndex[t.Var]; !ok {
			return fmt.Errorf("%w: unknown variable %q", ErrInvalidProblem, t.Var)
		}
	}
	return nil
}

// Variables returns the declared variables in order.
func (p *Problem) Variables() []Variable {
	out := make([]Variable, len(p.vars))
	copy(out, p.vars)
	return out
}

// Variable looks up a variable by name.
func (p *Problem) Variable(name string) (Variable, bool) {
	i, ok := p.varIndex[name]
	if !ok {
		return Variable{}, false
	}
	return p.vars[i], true
}

// Objective returns the objective expression.
func (p *Problem) Objective() Expr {
	out := make(Expr, len(p.objective))
	copy(out, p.objective)
	return out
}

// Constraints returns the constraints in order.
func (p *Problem) Constraints() []Constraint {
	out := make([]Constraint, len(p.constraints))
	copy(out, p.constraints)
	return out
}

// Constraint looks up a constraint by ID.
func (p *Problem) Constraint(id string) (Constraint, bool) {
	i, ok := p.consIndex[id]
	if !ok {
		return Constraint{}, false
	}
	return p.constraints[i], true
}

// NumVariables returns the number of declared variables.
func (p *Problem) NumVariables() int { return len(p.vars) }

// NumConstraints returns the number of constraints.
func (p *Problem) NumConstraints() int { return len(p.constraints) }

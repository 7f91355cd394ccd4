package optim

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpr_Simplify(t *testing.T) {
	e := Expr{}.Plus("a", 1).Plus("b", 2).Plus("a", -1).Plus("c", 0).Plus("b", 1)
	assert.Equal(t, Expr{{Var: "b", Coef: 3}}, e.Simplify())
	assert.InDelta(t, 6, Expr{{Var: "x", Coef: 2}, {Var: "y", Coef: 1}}.Eval(map[string]float64{"x": 3}), 1e-12)
}

func TestProblem_Build(t *testing.T) {
	p := NewProblem()
	require.NoError(t, p.AddVariable("x", 0, math.Inf(1)))
	require.NoError(t, p.AddVariable("y", math.Inf(-1), math.Inf(1)))
	require.NoError(t, p.SetObjective(Expr{{Var: "x", Coef: 2}}))
	require.NoError(t, p.AddConstraint(Constraint{ID: "c1", Expr: Expr{{"x", 1}, {"y", 1}, {"x", 1}}, Sense: Equal, RHS: 4}))

	assert.Equal(t, 2, p.NumVariables())
	assert.Equal(t, 1, p.NumConstraints())
	c, ok := p.Constraint("c1")
	require.True(t, ok)
	assert.Equal(t, Expr{{"x", 2}, {"y", 1}}, c.Expr)
	v, ok := p.Variable("y")
	require.True(t, ok)
	assert.True(t, math.IsInf(v.Lower, -1))
	assert.Equal(t, "x", p.Variables()[0].Name)
	assert.Equal(t, Expr{{"x", 2}}, p.Objective())
}

func TestProblem_Errors(t *testing.T) {
	p := NewProblem()
	require.NoError(t, p.AddVariable("x", 0, 1))

	errs := []error{
		p.AddVariable("x", 0, 1),
		p.AddVariable("", 0, 1),
		p.AddVariable("z", 2, 1),
		p.SetObjective(Expr{{"q", 1}}),
		p.AddConstraint(Constraint{ID: "", Expr: Expr{{"x", 1}}}),
		p.AddConstraint(Constraint{ID: "c", Expr: Expr{{"q", 1}}}),
		p.AddConstraint(Constraint{ID: "s", Expr: Expr{{"x", 1}}, Sense: Sense(7)}),
	}
	for i, err := range errs {
		assert.True(t, errors.Is(err, ErrInvalidProblem), "case %d: %v", i, err)
	}

	require.NoError(t, p.AddConstraint(Constraint{ID: "c", Expr: Expr{{"x", 1}}, Sense: LessEq, RHS: 1}))
	assert.True(t, errors.Is(p.AddConstraint(Constraint{ID: "c", Expr: Expr{{"x", 1}}}), ErrInvalidProblem))
}

func TestSense_String(t *testing.T) {
	assert.Equal(t, "<=", LessEq.String())
	assert.Equal(t, "=", Equal.String())
	assert.Equal(t, ">=", GreaterEq.String())
}

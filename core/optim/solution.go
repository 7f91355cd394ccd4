package optim

import (
	"errors"
	"fmt"
)

// Status is the terminal state reported for a solve.
type Status int

const (
	StatusUnknown Status = iota
	StatusOptimal
	StatusInfeasible
	StatusUnbounded
	StatusNumericalIssue
	// StatusTimeout means the caller's deadline ended the solve, as opposed to
	// a state reported by the solver itself.
	StatusTimeout
)

func (s Status) String() string {
	switch s {
	case StatusOptimal:
		return "optimal"
	case StatusInfeasible:
		return "infeasible"
	case StatusUnbounded:
		return "unbounded"
	case StatusNumericalIssue:
		return "numerical_issue"
	case StatusTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// MarshalText encodes the status by name.
func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Sentinel errors matched by StatusError through errors.Is.
var (
	ErrInfeasible     = errors.New("problem is infeasible")
	ErrUnbounded      = errors.New("problem is unbounded")
	ErrNumericalIssue = errors.New("solver numerical issue")
	ErrTimeout        = errors.New("solve timed out")
	ErrUnknown        = errors.New("solver returned unknown status")
)

// StatusError reports a non-optimal solve with the solver's diagnostic text.
type StatusError struct {
	Status  Status
	Message string
}

// NewStatusError builds a StatusError with a formatted diagnostic.
func NewStatusError(s Status, format string, args ...any) *StatusError {
	return &StatusError{Status: s, Message: fmt.Sprintf(format, args...)}
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("solve %s", e.Status)
	}
	return fmt.Sprintf("solve %s: %s", e.Status, e.Message)
}

// Unwrap exposes the sentinel matching the status.
func (e *StatusError) Unwrap() error {
	switch e.Status {
	case StatusInfeasible:
		return ErrInfeasible
	case StatusUnbounded:
		return ErrUnbounded
	case StatusNumericalIssue:
		return ErrNumericalIssue
	case StatusTimeout:
		return ErrTimeout
	default:
		return ErrUnknown
	}
}

// StatusOf extracts the solve status carried by err. A nil error is optimal
// and any error without a StatusError is unknown.
func StatusOf(err error) Status {
	if err == nil {
		return StatusOptimal
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status
	}
	return StatusUnknown
}

// Solution holds the outcome of an optimal solve.
type Solution struct {
	Status    Status
	Objective float64
	// Primal maps variable names to values.
	Primal map[string]float64
	// Duals maps constraint IDs to multipliers, see the package documentation
	// for the sign convention.
	Duals   map[string]float64
	Message string
}

// Value returns the primal value of a variable.
func (s *Solution) Value(name string) (float64, bool) {
	v, ok := s.Primal[name]
	return v, ok
}

// Dual returns the dual value of a constraint.
func (s *Solution) Dual(id string) (float64, bool) {
	v, ok := s.Duals[id]
	return v, ok
}

package cmd

import (
	"errors"

	"github.com/kilianp07/dcopf/core/optim"
)

// Process exit codes by study status.
const (
	ExitOK             = 0
	ExitError          = 1
	ExitInfeasible     = 2
	ExitUnbounded      = 3
	ExitNumericalIssue = 4
	ExitTimeout        = 5
	ExitUnknown        = 6
)

// ExitCode maps an error returned by Execute to a process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, optim.ErrInfeasible):
		return ExitInfeasible
	case errors.Is(err, optim.ErrUnbounded):
		return ExitUnbounded
	case errors.Is(err, optim.ErrNumericalIssue):
		return ExitNumericalIssue
	case errors.Is(err, optim.ErrTimeout):
		return ExitTimeout
	case errors.Is(err, optim.ErrUnknown):
		return ExitUnknown
	default:
		return ExitError
	}
}

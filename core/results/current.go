package results

import (
	"errors"
	"fmt"
	"math"
)

// ErrConversion marks a unit conversion that could not be carried out.
var ErrConversion = errors.New("conversion error")

// ConversionError reports why the current of a line is missing.
type ConversionError struct {
	Line string
	Err  error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("line %s: %v", e.Line, e.Err)
}

// Unwrap returns the underlying cause, which wraps ErrConversion.
func (e *ConversionError) Unwrap() error { return e.Err }

// CurrentKA converts a three-phase active power flow to line current:
// I = |P| / (sqrt(3) * V_LL * pf), with P in MW and V_LL in kV giving kA.
func CurrentKA(flowMW, voltageKV, powerFactor float64) (float64, error) {
	if !(voltageKV > 0) {
		return 0, fmt.Errorf("%w: nominal voltage %v kV must be positive", ErrConversion, voltageKV)
	}
	if !(powerFactor > 0) || powerFactor > 1 {
		return 0, fmt.Errorf("%w: power factor %v outside (0,1]", ErrConversion, powerFactor)
	}
	return math.Abs(flowMW) / (math.Sqrt(3) * voltageKV * powerFactor), nil
}
